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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type CardService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewCardService(db *sql.DB, logger zerolog.Logger) *CardService {
	return &CardService{
		db:     db,
		logger: logger,
	}
}

func (s *CardService) ListProducts(ctx context.Context, activeOnly bool) ([]*models.CardProduct, error) {
	query := `
		SELECT id, name, type, description, price, daily_limit, monthly_limit, withdrawal_limit,
		       status, sort_order, created_at, updated_at
		FROM card_products
	`
	if activeOnly {
		query += " WHERE status = 'active'"
	}
	query += " ORDER BY sort_order, created_at"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing card products")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var products []*models.CardProduct
	for rows.Next() {
		var p models.CardProduct
		var description sql.NullString
		var daily, monthly, withdrawal decimal.NullDecimal

		err := rows.Scan(
			&p.ID, &p.Name, &p.Type, &description, &p.Price, &daily, &monthly, &withdrawal,
			&p.Status, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning card product: %w", err)
		}

		p.Description = description.String
		if daily.Valid {
			p.DailyLimit = &daily.Decimal
		}
		if monthly.Valid {
			p.MonthlyLimit = &monthly.Decimal
		}
		if withdrawal.Valid {
			p.WithdrawalLimit = &withdrawal.Decimal
		}
		products = append(products, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range products {
		features, err := s.productFeatures(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Features = features
	}

	return products, nil
}

func (s *CardService) productFeatures(ctx context.Context, productID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT feature FROM card_product_features WHERE card_product_id = ? ORDER BY id",
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var features []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

func (s *CardService) CreateProduct(ctx context.Context, req *models.CardProductRequest) (string, error) {
	if req.Name == "" || req.Type == "" || req.Price == "" {
		return "", errors.New("name, type, and price are required")
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return "", errors.New("invalid price")
	}

	limits := make([]interface{}, 0, 3)
	for _, raw := range []*string{req.DailyLimit, req.MonthlyLimit, req.WithdrawalLimit} {
		if raw == nil {
			limits = append(limits, nil)
			continue
		}
		parsed, err := decimal.NewFromString(*raw)
		if err != nil || parsed.IsNegative() {
			return "", errors.New("invalid limit")
		}
		limits = append(limits, parsed)
	}

	status := req.Status
	if status == "" {
		status = "active"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO card_products (id, name, type, description, price, daily_limit, monthly_limit, withdrawal_limit, status, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, req.Name, req.Type, req.Description, price, limits[0], limits[1], limits[2], status, req.SortOrder)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating card product")
		return "", fmt.Errorf("failed to create card product: %w", err)
	}

	for _, feature := range req.Features {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO card_product_features (card_product_id, feature) VALUES (?, ?)",
			id, feature,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert product feature: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit card product: %w", err)
	}

	s.logger.Info().Str("product_id", id).Str("name", req.Name).Msg("Card product created")
	return id, nil
}

// UpdateProduct replaces a product's definition, features included.
func (s *CardService) UpdateProduct(ctx context.Context, productID string, req *models.CardProductRequest) error {
	if req.Name == "" || req.Price == "" {
		return errors.New("name and price are required")
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return errors.New("invalid price")
	}

	limits := make([]interface{}, 0, 3)
	for _, raw := range []*string{req.DailyLimit, req.MonthlyLimit, req.WithdrawalLimit} {
		if raw == nil {
			limits = append(limits, nil)
			continue
		}
		parsed, err := decimal.NewFromString(*raw)
		if err != nil || parsed.IsNegative() {
			return errors.New("invalid limit")
		}
		limits = append(limits, parsed)
	}

	status := req.Status
	if status != "" && status != "active" && status != "inactive" {
		return ErrInvalidStatus
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM card_products WHERE id = ?", productID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE card_products
		SET name = ?, description = ?, price = ?, daily_limit = ?, monthly_limit = ?, withdrawal_limit = ?,
		    sort_order = ?, status = COALESCE(NULLIF(?, ''), status)
		WHERE id = ?
	`, req.Name, req.Description, price, limits[0], limits[1], limits[2], req.SortOrder, status, productID)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", productID).Msg("Error updating card product")
		return fmt.Errorf("failed to update card product: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM card_product_features WHERE card_product_id = ?", productID)
	if err != nil {
		return fmt.Errorf("failed to replace product features: %w", err)
	}
	for _, feature := range req.Features {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO card_product_features (card_product_id, feature) VALUES (?, ?)",
			productID, feature,
		)
		if err != nil {
			return fmt.Errorf("failed to insert product feature: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit card product update: %w", err)
	}

	s.logger.Info().Str("product_id", productID).Msg("Card product updated")
	return nil
}

// SeedDefaultProducts inserts the launch catalog. It refuses to run when any
// product already exists.
func (s *CardService) SeedDefaultProducts(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM card_products").Scan(&count); err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	if count > 0 {
		return 0, errors.New("card products already exist")
	}

	defaults := []*models.CardProductRequest{
		{
			Name:        "Classic Debit",
			Type:        "classic-debit",
			Description: "Perfect for everyday spending and ATM withdrawals",
			Price:       "10.00",
			Features:    []string{"Free transactions", "ATM access", "Online shopping"},
			DailyLimit:  strPtr("1000.00"), MonthlyLimit: strPtr("5000.00"), WithdrawalLimit: strPtr("500.00"),
			SortOrder: 1,
		},
		{
			Name:        "Premium Debit",
			Type:        "premium-debit",
			Description: "Enhanced features for frequent users",
			Price:       "20.00",
			Features:    []string{"Priority support", "Higher limits", "Travel insurance", "Cashback rewards"},
			DailyLimit:  strPtr("5000.00"), MonthlyLimit: strPtr("25000.00"), WithdrawalLimit: strPtr("2000.00"),
			SortOrder: 2,
		},
		{
			Name:        "Gold Credit",
			Type:        "gold-credit",
			Description: "Build credit while earning rewards",
			Price:       "50.00",
			Features:    []string{"Credit facility", "Rewards program", "Purchase protection", "Extended warranty"},
			DailyLimit:  strPtr("10000.00"), MonthlyLimit: strPtr("50000.00"), WithdrawalLimit: strPtr("5000.00"),
			SortOrder: 3,
		},
		{
			Name:        "Platinum Credit",
			Type:        "platinum-credit",
			Description: "Ultimate luxury and convenience",
			Price:       "100.00",
			Features:    []string{"Premium credit line", "Concierge service", "Airport lounge access", "Travel benefits"},
			SortOrder:   4,
		},
	}

	for _, product := range defaults {
		if _, err := s.CreateProduct(ctx, product); err != nil {
			return 0, err
		}
	}

	s.logger.Info().Int("count", len(defaults)).Msg("Default card products seeded")
	return len(defaults), nil
}

func strPtr(s string) *string { return &s }

func (s *CardService) DeleteProduct(ctx context.Context, productID string) error {
	var inUse int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cards WHERE card_product_id = ?",
		productID,
	).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if inUse > 0 {
		return ErrProductInUse
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM card_products WHERE id = ?", productID)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", productID).Msg("Error deleting card product")
		return fmt.Errorf("failed to delete card product: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// RequestCard creates a pending card request against an active product.
func (s *CardService) RequestCard(ctx context.Context, userID int, req *models.CardRequest) (string, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		"SELECT status FROM card_products WHERE id = ?",
		req.CardProductID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && status != "active") {
		return "", ErrProductNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Error checking card product")
		return "", fmt.Errorf("database error: %w", err)
	}

	cardID := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cards (id, user_id, card_product_id, status, payment_reference, payment_status)
		VALUES (?, ?, ?, 'pending', ?, 'pending')
	`, cardID, userID, req.CardProductID, req.PaymentReference)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error creating card request")
		return "", fmt.Errorf("failed to create card request: %w", err)
	}

	s.logger.Info().Str("card_id", cardID).Int("user_id", userID).Msg("Card requested")
	return cardID, nil
}

func (s *CardService) ConfirmPayment(ctx context.Context, userID int, cardID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE cards SET payment_status = 'confirmed' WHERE id = ? AND user_id = ?",
		cardID, userID,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("card_id", cardID).Msg("Error confirming card payment")
		return fmt.Errorf("failed to confirm payment: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrCardNotFound
	}

	return nil
}

func (s *CardService) ListUserCards(ctx context.Context, userID int) ([]*models.CardListEntry, error) {
	return s.listCards(ctx, "WHERE c.user_id = ?", userID)
}

func (s *CardService) ListRequests(ctx context.Context, pendingOnly bool) ([]*models.CardListEntry, error) {
	if pendingOnly {
		return s.listCards(ctx, "WHERE c.status = 'pending'")
	}
	return s.listCards(ctx, "")
}

func (s *CardService) listCards(ctx context.Context, where string, args ...interface{}) ([]*models.CardListEntry, error) {
	query := `
		SELECT c.id, c.user_id, c.card_product_id, c.card_number, c.expiry_date, c.status,
		       c.payment_reference, c.payment_status, c.admin_notes, c.issued_at, c.created_at, c.updated_at,
		       u.name, u.email, p.name, p.type, p.price
		FROM cards c
		JOIN users u ON u.id = c.user_id
		JOIN card_products p ON p.id = c.card_product_id
	` + where + " ORDER BY c.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing cards")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var entries []*models.CardListEntry
	for rows.Next() {
		var e models.CardListEntry
		var cardNumber, expiryDate, paymentReference, adminNotes sql.NullString
		var issuedAt sql.NullTime

		err := rows.Scan(
			&e.ID, &e.UserID, &e.CardProductID, &cardNumber, &expiryDate, &e.Status,
			&paymentReference, &e.PaymentStatus, &adminNotes, &issuedAt, &e.CreatedAt, &e.UpdatedAt,
			&e.UserName, &e.UserEmail, &e.CardProductName, &e.CardProductType, &e.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning card row: %w", err)
		}

		if cardNumber.Valid {
			e.CardNumber = &cardNumber.String
		}
		if expiryDate.Valid {
			e.ExpiryDate = &expiryDate.String
		}
		if paymentReference.Valid {
			e.PaymentReference = &paymentReference.String
		}
		if adminNotes.Valid {
			e.AdminNotes = &adminNotes.String
		}
		if issuedAt.Valid {
			e.IssuedAt = &issuedAt.Time
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

func (s *CardService) Approve(ctx context.Context, cardID, adminNotes string) error {
	return s.setCardStatus(ctx, cardID, string(models.CardStatusApproved), adminNotes)
}

func (s *CardService) Reject(ctx context.Context, cardID, adminNotes string) error {
	if adminNotes == "" {
		return errors.New("rejection requires admin notes")
	}
	return s.setCardStatus(ctx, cardID, string(models.CardStatusRejected), adminNotes)
}

func (s *CardService) Activate(ctx context.Context, cardID string) error {
	return s.setCardStatus(ctx, cardID, string(models.CardStatusActive), "")
}

func (s *CardService) Suspend(ctx context.Context, cardID, adminNotes string) error {
	if adminNotes == "" {
		return errors.New("suspension requires admin notes")
	}
	return s.setCardStatus(ctx, cardID, string(models.CardStatusSuspended), adminNotes)
}

// Issue generates the card credentials and stamps the issuance time.
func (s *CardService) Issue(ctx context.Context, cardID, adminNotes string) (*models.Card, error) {
	cardNumber := generateCardNumber()
	cvv := generateCVV()
	expiryDate := generateExpiryDate(time.Now())

	var notes interface{}
	if adminNotes != "" {
		notes = adminNotes
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET status = 'issued', card_number = ?, cvv = ?, expiry_date = ?, issued_at = NOW(), admin_notes = ?
		WHERE id = ?
	`, cardNumber, cvv, expiryDate, notes, cardID)
	if err != nil {
		s.logger.Error().Err(err).Str("card_id", cardID).Msg("Error issuing card")
		return nil, fmt.Errorf("failed to issue card: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, ErrCardNotFound
	}

	s.logger.Info().Str("card_id", cardID).Msg("Card issued")

	now := time.Now()
	return &models.Card{
		ID:         cardID,
		CardNumber: &cardNumber,
		ExpiryDate: &expiryDate,
		CVV:        &cvv,
		Status:     string(models.CardStatusIssued),
		IssuedAt:   &now,
	}, nil
}

func (s *CardService) setCardStatus(ctx context.Context, cardID, status, adminNotes string) error {
	var notes interface{}
	if adminNotes != "" {
		notes = adminNotes
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE cards SET status = ?, admin_notes = COALESCE(?, admin_notes) WHERE id = ?",
		status, notes, cardID,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("card_id", cardID).Msg("Error updating card status")
		return fmt.Errorf("failed to update card status: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrCardNotFound
	}

	s.logger.Info().Str("card_id", cardID).Str("status", status).Msg("Card status updated")
	return nil
}

func generateCardNumber() string {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if len(timestamp) > 8 {
		timestamp = timestamp[len(timestamp)-8:]
	}
	return fmt.Sprintf("**** **** **** %s%s", timestamp, randomDigits(4))
}

func generateCVV() string {
	return randomDigits(3)
}

// generateExpiryDate returns MM/YY four years from the given date.
func generateExpiryDate(from time.Time) string {
	expiry := from.AddDate(4, 0, 0)
	return expiry.Format("01/06")
}

func randomDigits(n int) string {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			panic(err)
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits)
}
