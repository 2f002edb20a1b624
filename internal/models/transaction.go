package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID          string          `json:"id"`
	UserID      int             `json:"user_id"`
	SenderID    *int            `json:"sender_id,omitempty"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type TransactionType string

const (
	TransactionTypeTransferIn  TransactionType = "transfer_in"
	TransactionTypeTransferOut TransactionType = "transfer_out"
	TransactionTypeReceived    TransactionType = "received"
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeWithdrawal  TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSuccess   TransactionStatus = "success"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

type TransferRequest struct {
	RecipientAccountNumber string `json:"recipient_account_number"`
	Amount                 string `json:"amount"`
	Description            string `json:"description,omitempty"`
}

// TransferReceipt is returned to the sender after a committed transfer.
type TransferReceipt struct {
	Reference              string          `json:"reference"`
	Amount                 decimal.Decimal `json:"amount"`
	Currency               string          `json:"currency"`
	RecipientName          string          `json:"recipient_name"`
	RecipientAccountNumber string          `json:"recipient_account_number"`
	Description            string          `json:"description"`
	Timestamp              time.Time       `json:"timestamp"`
}

type AdjustBalanceRequest struct {
	UserID      int    `json:"user_id"`
	Amount      string `json:"amount"`
	Action      string `json:"action"` // increase, reduce, set
	Description string `json:"description,omitempty"`
}

type AdjustBalanceResponse struct {
	NewBalance  decimal.Decimal `json:"new_balance"`
	Transaction *Transaction    `json:"transaction"`
}

// HistoryEntry is a transaction joined with the sender's display name.
type HistoryEntry struct {
	Transaction
	SenderName *string `json:"sender_name,omitempty"`
}
