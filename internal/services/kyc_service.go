package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"digibank/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type KycService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewKycService(db *sql.DB, logger zerolog.Logger) *KycService {
	return &KycService{
		db:     db,
		logger: logger,
	}
}

// Submit records a KYC submission. A resubmission overwrites the previous
// one and resets the status to pending for a fresh review.
func (s *KycService) Submit(ctx context.Context, userID int, req *models.KycRequest) error {
	if req.FirstName == "" || req.LastName == "" || req.DateOfBirth == "" ||
		req.AddressLine1 == "" || req.City == "" || req.State == "" ||
		req.PostalCode == "" || req.Country == "" ||
		req.DocumentType == "" || req.DocumentNumber == "" {
		return errors.New("all required kyc fields must be provided")
	}

	var existingID string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM kyc_submissions WHERE user_id = ?", userID).Scan(&existingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error checking existing kyc")
		return fmt.Errorf("database error: %w", err)
	}

	if existingID != "" {
		_, err = s.db.ExecContext(ctx, `
			UPDATE kyc_submissions
			SET first_name = ?, last_name = ?, date_of_birth = ?, address_line1 = ?, address_line2 = ?,
			    city = ?, state = ?, postal_code = ?, country = ?, document_type = ?, document_number = ?,
			    status = 'pending', admin_notes = NULL, submitted_at = NOW(), reviewed_at = NULL
			WHERE user_id = ?
		`, req.FirstName, req.LastName, req.DateOfBirth, req.AddressLine1, req.AddressLine2,
			req.City, req.State, req.PostalCode, req.Country, req.DocumentType, req.DocumentNumber, userID)
		if err != nil {
			s.logger.Error().Err(err).Int("user_id", userID).Msg("Error updating kyc submission")
			return fmt.Errorf("failed to update kyc submission: %w", err)
		}
		s.logger.Info().Int("user_id", userID).Msg("KYC resubmitted")
		return nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kyc_submissions (id, user_id, first_name, last_name, date_of_birth, address_line1, address_line2,
			city, state, postal_code, country, document_type, document_number, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', NOW())
	`, uuid.NewString(), userID, req.FirstName, req.LastName, req.DateOfBirth, req.AddressLine1, req.AddressLine2,
		req.City, req.State, req.PostalCode, req.Country, req.DocumentType, req.DocumentNumber)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error inserting kyc submission")
		return fmt.Errorf("failed to insert kyc submission: %w", err)
	}

	s.logger.Info().Int("user_id", userID).Msg("KYC submitted")
	return nil
}

func (s *KycService) GetByUser(ctx context.Context, userID int) (*models.KycSubmission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, first_name, last_name, date_of_birth, address_line1, address_line2,
		       city, state, postal_code, country, document_type, document_number,
		       status, admin_notes, submitted_at, reviewed_at, created_at, updated_at
		FROM kyc_submissions
		WHERE user_id = ?
	`, userID)

	submission, err := scanKycSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKycNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error fetching kyc submission")
		return nil, fmt.Errorf("database error: %w", err)
	}

	return submission, nil
}

func (s *KycService) List(ctx context.Context, pendingOnly bool) ([]*models.KycListEntry, error) {
	query := `
		SELECT k.id, k.user_id, k.first_name, k.last_name, k.date_of_birth, k.address_line1, k.address_line2,
		       k.city, k.state, k.postal_code, k.country, k.document_type, k.document_number,
		       k.status, k.admin_notes, k.submitted_at, k.reviewed_at, k.created_at, k.updated_at,
		       u.name, u.email
		FROM kyc_submissions k
		JOIN users u ON u.id = k.user_id
	`
	if pendingOnly {
		query += " WHERE k.status = 'pending'"
	}
	query += " ORDER BY k.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing kyc submissions")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var entries []*models.KycListEntry
	for rows.Next() {
		var entry models.KycListEntry
		var addressLine2, adminNotes sql.NullString
		var submittedAt, reviewedAt sql.NullTime

		err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.FirstName, &entry.LastName, &entry.DateOfBirth,
			&entry.AddressLine1, &addressLine2, &entry.City, &entry.State, &entry.PostalCode,
			&entry.Country, &entry.DocumentType, &entry.DocumentNumber, &entry.Status,
			&adminNotes, &submittedAt, &reviewedAt, &entry.CreatedAt, &entry.UpdatedAt,
			&entry.UserName, &entry.UserEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning kyc row: %w", err)
		}

		if addressLine2.Valid {
			entry.AddressLine2 = &addressLine2.String
		}
		if adminNotes.Valid {
			entry.AdminNotes = &adminNotes.String
		}
		if submittedAt.Valid {
			entry.SubmittedAt = &submittedAt.Time
		}
		if reviewedAt.Valid {
			entry.ReviewedAt = &reviewedAt.Time
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

func (s *KycService) Approve(ctx context.Context, kycID, adminNotes string) error {
	return s.review(ctx, kycID, string(models.KycStatusApproved), adminNotes)
}

func (s *KycService) Reject(ctx context.Context, kycID, adminNotes string) error {
	if adminNotes == "" {
		return errors.New("rejection requires admin notes")
	}
	return s.review(ctx, kycID, string(models.KycStatusRejected), adminNotes)
}

func (s *KycService) review(ctx context.Context, kycID, status, adminNotes string) error {
	var notes interface{}
	if adminNotes != "" {
		notes = adminNotes
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE kyc_submissions SET status = ?, admin_notes = ?, reviewed_at = NOW() WHERE id = ?",
		status, notes, kycID,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("kyc_id", kycID).Msg("Error reviewing kyc submission")
		return fmt.Errorf("failed to review kyc submission: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrKycNotFound
	}

	s.logger.Info().Str("kyc_id", kycID).Str("status", status).Msg("KYC reviewed")
	return nil
}

func scanKycSubmission(row rowScanner) (*models.KycSubmission, error) {
	var submission models.KycSubmission
	var addressLine2, adminNotes sql.NullString
	var submittedAt, reviewedAt sql.NullTime

	err := row.Scan(
		&submission.ID, &submission.UserID, &submission.FirstName, &submission.LastName, &submission.DateOfBirth,
		&submission.AddressLine1, &addressLine2, &submission.City, &submission.State, &submission.PostalCode,
		&submission.Country, &submission.DocumentType, &submission.DocumentNumber, &submission.Status,
		&adminNotes, &submittedAt, &reviewedAt, &submission.CreatedAt, &submission.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if addressLine2.Valid {
		submission.AddressLine2 = &addressLine2.String
	}
	if adminNotes.Valid {
		submission.AdminNotes = &adminNotes.String
	}
	if submittedAt.Valid {
		submission.SubmittedAt = &submittedAt.Time
	}
	if reviewedAt.Valid {
		submission.ReviewedAt = &reviewedAt.Time
	}

	return &submission, nil
}
