package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"digibank/internal/models"

	"github.com/rs/zerolog"
)

// TransactionService is the read side of the transaction log. Writes go
// through the ledger only.
type TransactionService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTransactionService(db *sql.DB, logger zerolog.Logger) *TransactionService {
	return &TransactionService{
		db:     db,
		logger: logger,
	}
}

func (s *TransactionService) GetUserTransactions(ctx context.Context, userID int, limit, offset int) ([]*models.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.sender_id, t.type, t.amount, t.currency, t.status, t.description, t.reference, t.created_at, t.updated_at, u.name
		FROM transactions t
		LEFT JOIN users u ON u.id = t.sender_id
		WHERE t.user_id = ?
		ORDER BY t.created_at DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error fetching transactions")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (s *TransactionService) GetTransactionByID(ctx context.Context, transactionID string) (*models.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.user_id, t.sender_id, t.type, t.amount, t.currency, t.status, t.description, t.reference, t.created_at, t.updated_at, u.name
		FROM transactions t
		LEFT JOIN users u ON u.id = t.sender_id
		WHERE t.id = ?
	`, transactionID)

	entry, err := scanHistoryEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("transaction not found")
	}
	if err != nil {
		s.logger.Error().Err(err).Str("transaction_id", transactionID).Msg("Error fetching transaction")
		return nil, err
	}

	return entry, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHistoryEntry(row rowScanner) (*models.HistoryEntry, error) {
	var entry models.HistoryEntry
	var senderID sql.NullInt64
	var senderName, description, reference sql.NullString

	err := row.Scan(
		&entry.ID, &entry.UserID, &senderID, &entry.Type, &entry.Amount, &entry.Currency,
		&entry.Status, &description, &reference, &entry.CreatedAt, &entry.UpdatedAt, &senderName,
	)
	if err != nil {
		return nil, err
	}

	if senderID.Valid {
		val := int(senderID.Int64)
		entry.SenderID = &val
	}
	if senderName.Valid {
		entry.SenderName = &senderName.String
	}
	entry.Description = description.String
	entry.Reference = reference.String

	return &entry, nil
}
