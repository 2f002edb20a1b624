package ledger

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrSelfTransfer      = errors.New("cannot transfer to your own account")
	ErrAccountNotFound   = errors.New("account not found")
	ErrNotFound          = errors.New("transaction not found")
	ErrTransferFailed    = errors.New("transfer failed")
)
