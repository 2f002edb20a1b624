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

type SupportService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSupportService(db *sql.DB, logger zerolog.Logger) *SupportService {
	return &SupportService{
		db:     db,
		logger: logger,
	}
}

// CreateChat opens a chat and stores its first message in one transaction.
func (s *SupportService) CreateChat(ctx context.Context, userID int, req *models.CreateChatRequest) (string, error) {
	if req.Subject == "" || req.InitialMessage == "" {
		return "", errors.New("subject and message are required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	chatID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO support_chats (id, user_id, subject, status, last_message_at)
		VALUES (?, ?, ?, 'open', NOW())
	`, chatID, userID, req.Subject)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error creating support chat")
		return "", fmt.Errorf("failed to create support chat: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO support_messages (id, chat_id, sender_id, sender_type, content)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), chatID, userID, models.SenderTypeUser, req.InitialMessage)
	if err != nil {
		return "", fmt.Errorf("failed to store chat message: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit support chat: %w", err)
	}

	s.logger.Info().Str("chat_id", chatID).Int("user_id", userID).Msg("Support chat created")
	return chatID, nil
}

func (s *SupportService) ListUserChats(ctx context.Context, userID int) ([]*models.SupportChat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, subject, status, last_message_at, created_at, updated_at
		FROM support_chats
		WHERE user_id = ?
		ORDER BY last_message_at DESC
	`, userID)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error listing support chats")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var chats []*models.SupportChat
	for rows.Next() {
		var c models.SupportChat
		err := rows.Scan(&c.ID, &c.UserID, &c.Subject, &c.Status, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning support chat: %w", err)
		}
		chats = append(chats, &c)
	}

	return chats, rows.Err()
}

// ListAllChats returns every chat with its owner and unread user-message
// count, newest activity first. Admin-side view.
func (s *SupportService) ListAllChats(ctx context.Context) ([]*models.ChatWithUser, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.subject, c.status, c.last_message_at, c.created_at, c.updated_at,
		       u.name, u.email,
		       (SELECT COUNT(*) FROM support_messages m
		        WHERE m.chat_id = c.id AND m.sender_type = 'user' AND m.is_read = FALSE)
		FROM support_chats c
		JOIN users u ON u.id = c.user_id
		ORDER BY c.last_message_at DESC
	`)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing support chats")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var chats []*models.ChatWithUser
	for rows.Next() {
		var c models.ChatWithUser
		err := rows.Scan(
			&c.ID, &c.UserID, &c.Subject, &c.Status, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt,
			&c.UserName, &c.UserEmail, &c.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning support chat: %w", err)
		}
		chats = append(chats, &c)
	}

	return chats, rows.Err()
}

// GetChatDetail loads a chat with its full message history. Non-admin callers
// may only read their own chats.
func (s *SupportService) GetChatDetail(ctx context.Context, chatID string, requesterID int, requesterRole string) (*models.ChatDetail, error) {
	var detail models.ChatDetail
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.user_id, c.subject, c.status, c.last_message_at, c.created_at, c.updated_at, u.name, u.email
		FROM support_chats c
		JOIN users u ON u.id = c.user_id
		WHERE c.id = ?
	`, chatID).Scan(
		&detail.ID, &detail.UserID, &detail.Subject, &detail.Status,
		&detail.LastMessageAt, &detail.CreatedAt, &detail.UpdatedAt, &detail.UserName, &detail.UserEmail,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Str("chat_id", chatID).Msg("Error loading support chat")
		return nil, fmt.Errorf("database error: %w", err)
	}

	if requesterRole != string(models.RoleAdmin) && detail.UserID != requesterID {
		return nil, ErrChatForbidden
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.chat_id, m.sender_id, m.sender_type, m.content, m.is_read, m.created_at, u.name
		FROM support_messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.chat_id = ?
		ORDER BY m.created_at
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.ChatMessage
		err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.SenderType, &m.Content, &m.IsRead, &m.CreatedAt, &m.SenderName)
		if err != nil {
			return nil, fmt.Errorf("error scanning chat message: %w", err)
		}
		detail.Messages = append(detail.Messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &detail, nil
}

// SendMessage appends a message and bumps the chat's activity timestamp. The
// sender type follows the sender's role, not a client-supplied field.
func (s *SupportService) SendMessage(ctx context.Context, chatID string, senderID int, senderRole, message string) (string, error) {
	if message == "" {
		return "", errors.New("message is required")
	}

	senderType := models.SenderTypeUser
	if senderRole == string(models.RoleAdmin) {
		senderType = models.SenderTypeAdmin
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var ownerID int
	err = tx.QueryRowContext(ctx, "SELECT user_id FROM support_chats WHERE id = ?", chatID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrChatNotFound
	}
	if err != nil {
		return "", fmt.Errorf("database error: %w", err)
	}
	if senderType == models.SenderTypeUser && ownerID != senderID {
		return "", ErrChatForbidden
	}

	messageID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO support_messages (id, chat_id, sender_id, sender_type, content)
		VALUES (?, ?, ?, ?, ?)
	`, messageID, chatID, senderID, senderType, message)
	if err != nil {
		s.logger.Error().Err(err).Str("chat_id", chatID).Msg("Error storing chat message")
		return "", fmt.Errorf("failed to store chat message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE support_chats SET last_message_at = NOW() WHERE id = ?",
		chatID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to update chat activity: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit chat message: %w", err)
	}

	return messageID, nil
}

// MarkMessagesRead marks the other party's messages in a chat as read.
func (s *SupportService) MarkMessagesRead(ctx context.Context, chatID string, readerID int, readerRole string) error {
	otherSide := models.SenderTypeAdmin
	if readerRole == string(models.RoleAdmin) {
		otherSide = models.SenderTypeUser
	} else {
		var ownerID int
		err := s.db.QueryRowContext(ctx, "SELECT user_id FROM support_chats WHERE id = ?", chatID).Scan(&ownerID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrChatNotFound
		}
		if err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		if ownerID != readerID {
			return ErrChatForbidden
		}
	}

	_, err := s.db.ExecContext(ctx,
		"UPDATE support_messages SET is_read = TRUE WHERE chat_id = ? AND sender_type = ?",
		chatID, otherSide,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("chat_id", chatID).Msg("Error marking messages read")
		return fmt.Errorf("failed to mark messages read: %w", err)
	}

	return nil
}

func (s *SupportService) UpdateChatStatus(ctx context.Context, chatID, status string) error {
	switch status {
	case string(models.ChatStatusOpen), string(models.ChatStatusPending), string(models.ChatStatusClosed):
	default:
		return ErrInvalidStatus
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE support_chats SET status = ? WHERE id = ?",
		status, chatID,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("chat_id", chatID).Msg("Error updating chat status")
		return fmt.Errorf("failed to update chat status: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrChatNotFound
	}

	s.logger.Info().Str("chat_id", chatID).Str("status", status).Msg("Support chat status updated")
	return nil
}

// UnreadCount reports how many messages from the other side await the reader:
// admins see unread user messages across all chats, users see unread admin
// replies in their own.
func (s *SupportService) UnreadCount(ctx context.Context, readerID int, readerRole string) (int, error) {
	var query string
	var args []interface{}
	if readerRole == string(models.RoleAdmin) {
		query = `
			SELECT COUNT(*) FROM support_messages
			WHERE sender_type = 'user' AND is_read = FALSE
		`
	} else {
		query = `
			SELECT COUNT(*) FROM support_messages m
			JOIN support_chats c ON c.id = m.chat_id
			WHERE c.user_id = ? AND m.sender_type = 'admin' AND m.is_read = FALSE
		`
		args = append(args, readerID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		s.logger.Error().Err(err).Msg("Error counting unread messages")
		return 0, fmt.Errorf("database error: %w", err)
	}

	return count, nil
}
