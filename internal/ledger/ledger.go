package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"digibank/internal/models"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service is the sole writer of balance and transaction state. Every
// mutation runs inside one database transaction so the balance and the
// transaction log cannot diverge, and balances never go negative.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.Map
}

func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

const maxRetries = 3

func (s *Service) userMutex(userID int) *sync.Mutex {
	mu, _ := s.mu.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// lockUsers acquires the per-user mutexes in ascending id order, so two
// transfers moving funds in opposite directions between the same pair
// cannot deadlock. The returned func releases in reverse order.
func (s *Service) lockUsers(userIDs ...int) func() {
	ids := append([]int(nil), userIDs...)
	sort.Ints(ids)

	locked := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		mu := s.userMutex(id)
		mu.Lock()
		locked = append(locked, mu)
	}

	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}

// AdjustBalance applies a signed delta to one user's balance and records the
// matching transaction: deposit for a credit, withdrawal for a debit. The
// resulting balance must stay non-negative.
func (s *Service) AdjustBalance(ctx context.Context, userID int, delta decimal.Decimal, description string) (*models.Balance, *models.Transaction, error) {
	if delta.IsZero() {
		return nil, nil, ErrInvalidAmount
	}

	unlock := s.lockUsers(userID)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		balance, txn, err := s.adjustOnce(ctx, userID, delta, description)
		if err == nil {
			s.logger.Info().
				Int("user_id", userID).
				Str("delta", delta.String()).
				Str("transaction_id", txn.ID).
				Msg("Balance adjusted")
			return balance, txn, nil
		}
		if !isRetryable(err) {
			return nil, nil, err
		}
		lastErr = err
		s.logger.Warn().Err(err).Int("user_id", userID).Msg("Store conflict, retrying balance adjustment")
	}

	return nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, lastErr)
}

// SetBalance sets a user's balance to an exact target amount, recording the
// difference as a deposit or withdrawal depending on its sign. All
// arithmetic is exact decimal; the direction of a set is never derived from
// floating point.
func (s *Service) SetBalance(ctx context.Context, userID int, target decimal.Decimal, description string) (*models.Balance, *models.Transaction, error) {
	if target.IsNegative() {
		return nil, nil, ErrInvalidAmount
	}

	unlock := s.lockUsers(userID)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		balance, txn, err := s.setOnce(ctx, userID, target, description)
		if err == nil {
			s.logger.Info().
				Int("user_id", userID).
				Str("target", target.String()).
				Str("transaction_id", txn.ID).
				Msg("Balance set")
			return balance, txn, nil
		}
		if !isRetryable(err) {
			return nil, nil, err
		}
		lastErr = err
		s.logger.Warn().Err(err).Int("user_id", userID).Msg("Store conflict, retrying balance set")
	}

	return nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, lastErr)
}

func (s *Service) adjustOnce(ctx context.Context, userID int, delta decimal.Decimal, description string) (*models.Balance, *models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	current, currency, err := lockBalance(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}

	newAmount := current.Add(delta)
	if newAmount.IsNegative() {
		return nil, nil, ErrInsufficientFunds
	}

	if description == "" {
		if delta.IsNegative() {
			description = fmt.Sprintf("Admin balance reduction: -$%s", delta.Abs().StringFixed(2))
		} else {
			description = fmt.Sprintf("Admin balance increase: +$%s", delta.StringFixed(2))
		}
	}

	txn, err := s.applyAdjustment(ctx, tx, userID, newAmount, delta, currency, description)
	if err != nil {
		return nil, nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit balance adjustment: %w", err)
	}

	balance := &models.Balance{
		UserID:    userID,
		Amount:    newAmount,
		Currency:  currency,
		UpdatedAt: time.Now(),
	}
	return balance, txn, nil
}

func (s *Service) setOnce(ctx context.Context, userID int, target decimal.Decimal, description string) (*models.Balance, *models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	current, currency, err := lockBalance(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}

	delta := target.Sub(current)
	if delta.IsZero() {
		return nil, nil, ErrInvalidAmount
	}

	if description == "" {
		sign := "+"
		if delta.IsNegative() {
			sign = "-"
		}
		description = fmt.Sprintf("Admin balance adjustment: %s$%s", sign, delta.Abs().StringFixed(2))
	}

	txn, err := s.applyAdjustment(ctx, tx, userID, target, delta, currency, description)
	if err != nil {
		return nil, nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit balance set: %w", err)
	}

	balance := &models.Balance{
		UserID:    userID,
		Amount:    target,
		Currency:  currency,
		UpdatedAt: time.Now(),
	}
	return balance, txn, nil
}

// applyAdjustment writes the new balance and the matching transaction row.
// Caller owns the surrounding database transaction.
func (s *Service) applyAdjustment(ctx context.Context, tx *sql.Tx, userID int, newAmount, delta decimal.Decimal, currency, description string) (*models.Transaction, error) {
	_, err := tx.ExecContext(ctx,
		"UPDATE balances SET amount = ?, updated_at = NOW() WHERE user_id = ?",
		newAmount, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	txnType := models.TransactionTypeDeposit
	if delta.IsNegative() {
		txnType = models.TransactionTypeWithdrawal
	}

	txn := &models.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        string(txnType),
		Amount:      delta.Abs(),
		Currency:    currency,
		Status:      string(models.TransactionStatusSuccess),
		Description: description,
		Reference:   adminReference(),
		CreatedAt:   time.Now(),
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO transactions (id, user_id, sender_id, type, amount, currency, status, description, reference) VALUES (?, ?, NULL, ?, ?, ?, ?, ?, ?)",
		txn.ID, txn.UserID, txn.Type, txn.Amount, txn.Currency, txn.Status, txn.Description, txn.Reference,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	return txn, nil
}

// Transfer moves amount from sender to recipient and records both legs
// under one shared reference: a transfer_out row owned by the sender and a
// received row owned by the recipient. Either everything commits or nothing
// is observable.
func (s *Service) Transfer(ctx context.Context, senderID, recipientID int, amount decimal.Decimal, description string) (*models.TransferReceipt, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if senderID == recipientID {
		return nil, ErrSelfTransfer
	}

	unlock := s.lockUsers(senderID, recipientID)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		receipt, err := s.transferOnce(ctx, senderID, recipientID, amount, description)
		if err == nil {
			s.logger.Info().
				Int("sender_id", senderID).
				Int("recipient_id", recipientID).
				Str("amount", amount.String()).
				Str("reference", receipt.Reference).
				Msg("Transfer completed")
			return receipt, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn().Err(err).
			Int("sender_id", senderID).
			Int("recipient_id", recipientID).
			Msg("Store conflict, retrying transfer")
	}

	return nil, fmt.Errorf("%w: %v", ErrTransferFailed, lastErr)
}

func (s *Service) transferOnce(ctx context.Context, senderID, recipientID int, amount decimal.Decimal, description string) (*models.TransferReceipt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	// Row locks in ascending user-id order, mirroring lockUsers.
	ordered := []int{senderID, recipientID}
	sort.Ints(ordered)

	balances := make(map[int]decimal.Decimal, 2)
	currencies := make(map[int]string, 2)
	for _, id := range ordered {
		bal, currency, err := lockBalance(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		balances[id] = bal
		currencies[id] = currency
	}

	if balances[senderID].LessThan(amount) {
		return nil, ErrInsufficientFunds
	}

	var recipientName, recipientAccount string
	err = tx.QueryRowContext(ctx, `
		SELECT u.name, a.account_number
		FROM users u
		JOIN account_info a ON a.user_id = u.id
		WHERE u.id = ?
	`, recipientID).Scan(&recipientName, &recipientAccount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recipient: %w", err)
	}

	if description == "" {
		description = fmt.Sprintf("Transfer to %s", recipientName)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE balances SET amount = ?, updated_at = NOW() WHERE user_id = ?",
		balances[senderID].Sub(amount), senderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to debit sender: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE balances SET amount = ?, updated_at = NOW() WHERE user_id = ?",
		balances[recipientID].Add(amount), recipientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to credit recipient: %w", err)
	}

	reference := transferReference()
	currency := currencies[senderID]

	_, err = tx.ExecContext(ctx,
		"INSERT INTO transactions (id, user_id, sender_id, type, amount, currency, status, description, reference) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		uuid.NewString(), senderID, senderID, string(models.TransactionTypeTransferOut),
		amount, currency, string(models.TransactionStatusSuccess), description, reference,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sender transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO transactions (id, user_id, sender_id, type, amount, currency, status, description, reference) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		uuid.NewString(), recipientID, senderID, string(models.TransactionTypeReceived),
		amount, currency, string(models.TransactionStatusSuccess), description, reference,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert recipient transaction: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}

	return &models.TransferReceipt{
		Reference:              reference,
		Amount:                 amount,
		Currency:               currency,
		RecipientName:          recipientName,
		RecipientAccountNumber: recipientAccount,
		Description:            description,
		Timestamp:              time.Now(),
	}, nil
}

// ReceiptByReference looks up the transaction matching a transfer reference.
// Read-only; used to render a receipt after a transfer.
func (s *Service) ReceiptByReference(ctx context.Context, reference string) (*models.HistoryEntry, error) {
	var entry models.HistoryEntry
	var senderID sql.NullInt64
	var senderName sql.NullString
	var description sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.user_id, t.sender_id, t.type, t.amount, t.currency, t.status, t.description, t.reference, t.created_at, t.updated_at, u.name
		FROM transactions t
		LEFT JOIN users u ON u.id = t.sender_id
		WHERE t.reference = ?
		LIMIT 1
	`, reference).Scan(
		&entry.ID, &entry.UserID, &senderID, &entry.Type, &entry.Amount, &entry.Currency,
		&entry.Status, &description, &entry.Reference, &entry.CreatedAt, &entry.UpdatedAt, &senderName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Str("reference", reference).Msg("Error fetching receipt")
		return nil, fmt.Errorf("database error: %w", err)
	}

	if senderID.Valid {
		val := int(senderID.Int64)
		entry.SenderID = &val
	}
	if senderName.Valid {
		entry.SenderName = &senderName.String
	}
	if description.Valid {
		entry.Description = description.String
	}

	return &entry, nil
}

// lockBalance reads one balance row under FOR UPDATE. Callers must hold the
// surrounding database transaction.
func lockBalance(ctx context.Context, tx *sql.Tx, userID int) (decimal.Decimal, string, error) {
	var amount decimal.Decimal
	var currency string

	err := tx.QueryRowContext(ctx,
		"SELECT amount, currency FROM balances WHERE user_id = ? FOR UPDATE",
		userID,
	).Scan(&amount, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, "", ErrAccountNotFound
	}
	if err != nil {
		return decimal.Decimal{}, "", fmt.Errorf("failed to fetch balance: %w", err)
	}

	return amount, currency, nil
}

// isRetryable reports whether the store signalled a concurrent conflicting
// write: MySQL 1213 (deadlock victim) or 1205 (lock wait timeout).
func isRetryable(err error) bool {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}
	return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
}
