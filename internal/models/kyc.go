package models

import "time"

type KycSubmission struct {
	ID             string     `json:"id"`
	UserID         int        `json:"user_id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	DateOfBirth    string     `json:"date_of_birth"`
	AddressLine1   string     `json:"address_line1"`
	AddressLine2   *string    `json:"address_line2,omitempty"`
	City           string     `json:"city"`
	State          string     `json:"state"`
	PostalCode     string     `json:"postal_code"`
	Country        string     `json:"country"`
	DocumentType   string     `json:"document_type"`
	DocumentNumber string     `json:"document_number"`
	Status         string     `json:"status"`
	AdminNotes     *string    `json:"admin_notes,omitempty"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type KycStatus string

const (
	KycStatusPending  KycStatus = "pending"
	KycStatusApproved KycStatus = "approved"
	KycStatusRejected KycStatus = "rejected"
)

type KycRequest struct {
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	DateOfBirth    string  `json:"date_of_birth"`
	AddressLine1   string  `json:"address_line1"`
	AddressLine2   *string `json:"address_line2,omitempty"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	PostalCode     string  `json:"postal_code"`
	Country        string  `json:"country"`
	DocumentType   string  `json:"document_type"`
	DocumentNumber string  `json:"document_number"`
}

type KycReviewRequest struct {
	AdminNotes string `json:"admin_notes,omitempty"`
}

// KycListEntry is the admin review queue row.
type KycListEntry struct {
	KycSubmission
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}
