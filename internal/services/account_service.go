package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"digibank/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// AccountService owns user onboarding and account lookups. Every new user
// gets an account number and a zero balance row at registration time; the
// balance is only ever mutated through the ledger afterwards.
type AccountService struct {
	db       *sql.DB
	logger   zerolog.Logger
	currency string
}

func NewAccountService(db *sql.DB, logger zerolog.Logger, currency string) *AccountService {
	return &AccountService{
		db:       db,
		logger:   logger,
		currency: currency,
	}
}

func (s *AccountService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, errors.New("name, email, and password are required")
	}

	user, err := s.createUser(ctx, req.Name, req.Email, req.Password, string(models.RoleUser), decimal.Zero)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("user_id", user.ID).Str("email", user.Email).Msg("User registered")
	return user, nil
}

// CreateUser is the admin variant of Register: role is caller-chosen and an
// opening balance may be set. The opening balance is written at creation,
// with no transaction record, matching account-opening semantics.
func (s *AccountService) CreateUser(ctx context.Context, req *models.CreateUserRequest) (*models.User, error) {
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, errors.New("name, email, and password are required")
	}

	role := req.Role
	if role != string(models.RoleAdmin) {
		role = string(models.RoleUser)
	}

	opening := decimal.Zero
	if req.OpeningBalance != "" {
		parsed, err := decimal.NewFromString(req.OpeningBalance)
		if err != nil || parsed.IsNegative() {
			return nil, errors.New("invalid opening balance")
		}
		opening = parsed
	}

	user, err := s.createUser(ctx, req.Name, req.Email, req.Password, role, opening)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("user_id", user.ID).Str("role", role).Msg("User created by admin")
	return user, nil
}

func (s *AccountService) createUser(ctx context.Context, name, email, password, role string, opening decimal.Decimal) (*models.User, error) {
	var existingID int
	err := s.db.QueryRowContext(ctx, "SELECT id FROM users WHERE email = ?", email).Scan(&existingID)
	if err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Error().Err(err).Msg("Error checking existing user")
		return nil, fmt.Errorf("database error: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error hashing password")
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)",
		name, email, string(hashedPassword), role,
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	userID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO account_info (user_id, account_number) VALUES (?, ?)",
		userID, generateAccountNumber(),
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating account info")
		return nil, fmt.Errorf("failed to create account info: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO balances (user_id, amount, currency) VALUES (?, ?, ?)",
		userID, opening, s.currency,
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating balance")
		return nil, fmt.Errorf("failed to create balance: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user creation: %w", err)
	}

	return s.GetUserByID(ctx, int(userID))
}

func (s *AccountService) Authenticate(ctx context.Context, req *models.LoginRequest) (*models.User, error) {
	if req.Email == "" || req.Password == "" {
		return nil, ErrInvalidLogin
	}

	var user models.User
	var passwordHash string
	var banReason sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, role, banned, ban_reason, created_at, updated_at FROM users WHERE email = ?",
		req.Email,
	).Scan(
		&user.ID, &user.Name, &user.Email, &passwordHash, &user.Role, &user.Banned, &banReason, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidLogin
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Error querying user")
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		s.logger.Warn().Str("email", req.Email).Msg("Failed authentication attempt")
		return nil, ErrInvalidLogin
	}

	if user.Banned {
		s.logger.Warn().Int("user_id", user.ID).Msg("Banned user attempted login")
		return nil, errors.New("account is banned")
	}

	return &user, nil
}

func (s *AccountService) GetUserByID(ctx context.Context, userID int) (*models.User, error) {
	var user models.User
	var banReason sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, role, banned, ban_reason, created_at, updated_at FROM users WHERE id = ?",
		userID,
	).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.Banned, &banReason, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error fetching user")
		return nil, fmt.Errorf("database error: %w", err)
	}

	if banReason.Valid {
		user.BanReason = &banReason.String
	}
	return &user, nil
}

// GetAccountDetails returns the dashboard view: identity, account number and
// current balance.
func (s *AccountService) GetAccountDetails(ctx context.Context, userID int) (*models.AccountDetails, error) {
	var details models.AccountDetails

	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.name, u.email, a.account_number, b.amount, b.currency
		FROM users u
		JOIN account_info a ON a.user_id = u.id
		JOIN balances b ON b.user_id = u.id
		WHERE u.id = ?
	`, userID).Scan(
		&details.UserID, &details.Name, &details.Email, &details.AccountNumber, &details.Balance, &details.Currency,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error fetching account details")
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &details, nil
}

// GetRecipientByAccountNumber resolves the other party of a transfer.
// Sending to your own account number is rejected here, before the ledger is
// ever involved.
func (s *AccountService) GetRecipientByAccountNumber(ctx context.Context, accountNumber string, requesterID int) (*models.Recipient, error) {
	var recipient models.Recipient

	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.name, a.account_number
		FROM users u
		JOIN account_info a ON a.user_id = u.id
		WHERE a.account_number = ?
	`, accountNumber).Scan(&recipient.UserID, &recipient.Name, &recipient.AccountNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Str("account_number", accountNumber).Msg("Error fetching recipient")
		return nil, fmt.Errorf("database error: %w", err)
	}

	if recipient.UserID == requesterID {
		return nil, ErrSelfRecipient
	}

	return &recipient, nil
}

func (s *AccountService) ListUsers(ctx context.Context) ([]*models.UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.role, u.banned, a.account_number, b.amount
		FROM users u
		LEFT JOIN account_info a ON a.user_id = u.id
		LEFT JOIN balances b ON b.user_id = u.id
		ORDER BY u.id
	`)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing users")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var users []*models.UserSummary
	for rows.Next() {
		var u models.UserSummary
		var accountNumber, balance sql.NullString

		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Banned, &accountNumber, &balance); err != nil {
			return nil, fmt.Errorf("error scanning user row: %w", err)
		}
		u.AccountNumber = accountNumber.String
		u.Balance = balance.String
		users = append(users, &u)
	}

	return users, rows.Err()
}

func (s *AccountService) UpdateUserRole(ctx context.Context, userID int, newRole string) error {
	if newRole != string(models.RoleUser) && newRole != string(models.RoleAdmin) {
		return errors.New("invalid role")
	}

	result, err := s.db.ExecContext(ctx, "UPDATE users SET role = ? WHERE id = ?", newRole, userID)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error updating user role")
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}

	s.logger.Info().Int("user_id", userID).Str("new_role", newRole).Msg("User role updated")
	return nil
}

func (s *AccountService) BanUser(ctx context.Context, userID int, reason string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET banned = 1, ban_reason = ? WHERE id = ?",
		reason, userID,
	)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error banning user")
		return fmt.Errorf("failed to ban user: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}

	s.logger.Info().Int("user_id", userID).Str("reason", reason).Msg("User banned")
	return nil
}

func (s *AccountService) UnbanUser(ctx context.Context, userID int) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET banned = 0, ban_reason = NULL WHERE id = ?",
		userID,
	)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error unbanning user")
		return fmt.Errorf("failed to unban user: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrUserNotFound
	}

	s.logger.Info().Int("user_id", userID).Msg("User unbanned")
	return nil
}

// generateAccountNumber builds an ACC-prefixed number: six trailing digits
// of the current millisecond timestamp plus three random digits.
func generateAccountNumber() string {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if len(timestamp) > 6 {
		timestamp = timestamp[len(timestamp)-6:]
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("ACC%s%03d", timestamp, n.Int64())
}
