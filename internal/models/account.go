package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Balance struct {
	UserID    int             `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type AccountInfo struct {
	ID            int       `json:"id"`
	UserID        int       `json:"user_id"`
	AccountNumber string    `json:"account_number"`
	CreatedAt     time.Time `json:"created_at"`
}

// AccountDetails is the dashboard view of a user: identity joined with
// account number and current balance.
type AccountDetails struct {
	UserID        int             `json:"user_id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
}

// Recipient is what a sender is allowed to see about the other party of a
// transfer before committing it.
type Recipient struct {
	UserID        int    `json:"user_id"`
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
}
