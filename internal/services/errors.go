package services

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("user with this email already exists")
	ErrInvalidLogin    = errors.New("invalid email or password")
	ErrAccountNotFound = errors.New("account not found")
	ErrSelfRecipient   = errors.New("cannot transfer to your own account")
	ErrKycNotFound     = errors.New("kyc submission not found")
	ErrProductNotFound = errors.New("card product not found or inactive")
	ErrProductInUse    = errors.New("card product is in use by existing cards")
	ErrCardNotFound    = errors.New("card not found")
	ErrChatNotFound    = errors.New("chat not found")
	ErrChatForbidden   = errors.New("no access to this chat")
	ErrInvalidStatus   = errors.New("invalid status")
)
