package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CardProduct struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Type            string           `json:"type"`
	Description     string           `json:"description"`
	Price           decimal.Decimal  `json:"price"`
	Features        []string         `json:"features"`
	DailyLimit      *decimal.Decimal `json:"daily_limit,omitempty"`
	MonthlyLimit    *decimal.Decimal `json:"monthly_limit,omitempty"`
	WithdrawalLimit *decimal.Decimal `json:"withdrawal_limit,omitempty"`
	Status          string           `json:"status"`
	SortOrder       int              `json:"sort_order"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type Card struct {
	ID               string     `json:"id"`
	UserID           int        `json:"user_id"`
	CardProductID    string     `json:"card_product_id"`
	CardNumber       *string    `json:"card_number,omitempty"`
	ExpiryDate       *string    `json:"expiry_date,omitempty"`
	CVV              *string    `json:"-"`
	Status           string     `json:"status"`
	PaymentReference *string    `json:"payment_reference,omitempty"`
	PaymentStatus    string     `json:"payment_status"`
	AdminNotes       *string    `json:"admin_notes,omitempty"`
	IssuedAt         *time.Time `json:"issued_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type CardStatus string

const (
	CardStatusPending   CardStatus = "pending"
	CardStatusApproved  CardStatus = "approved"
	CardStatusRejected  CardStatus = "rejected"
	CardStatusIssued    CardStatus = "issued"
	CardStatusActive    CardStatus = "active"
	CardStatusSuspended CardStatus = "suspended"
	CardStatusExpired   CardStatus = "expired"
)

type CardRequest struct {
	CardProductID    string `json:"card_product_id"`
	PaymentReference string `json:"payment_reference"`
}

type CardReviewRequest struct {
	AdminNotes string `json:"admin_notes,omitempty"`
}

type CardProductRequest struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Description     string   `json:"description"`
	Price           string   `json:"price"`
	Features        []string `json:"features"`
	DailyLimit      *string  `json:"daily_limit,omitempty"`
	MonthlyLimit    *string  `json:"monthly_limit,omitempty"`
	WithdrawalLimit *string  `json:"withdrawal_limit,omitempty"`
	SortOrder       int      `json:"sort_order"`
	Status          string   `json:"status,omitempty"`
}

// CardListEntry is the admin review queue row.
type CardListEntry struct {
	Card
	UserName        string          `json:"user_name"`
	UserEmail       string          `json:"user_email"`
	CardProductName string          `json:"card_product_name"`
	CardProductType string          `json:"card_product_type"`
	Price           decimal.Decimal `json:"price"`
}
