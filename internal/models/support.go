package models

import "time"

type SupportChat struct {
	ID            string     `json:"id"`
	UserID        int        `json:"user_id"`
	Subject       string     `json:"subject"`
	Status        string     `json:"status"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type SupportMessage struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	SenderID   int       `json:"sender_id"`
	SenderType string    `json:"sender_type"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

type ChatStatus string

const (
	ChatStatusOpen    ChatStatus = "open"
	ChatStatusPending ChatStatus = "pending"
	ChatStatusClosed  ChatStatus = "closed"
)

const (
	SenderTypeUser  = "user"
	SenderTypeAdmin = "admin"
)

type CreateChatRequest struct {
	Subject        string `json:"subject"`
	InitialMessage string `json:"initial_message"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type ChatStatusRequest struct {
	Status string `json:"status"`
}

// ChatWithUser is the admin inbox row.
type ChatWithUser struct {
	SupportChat
	UserName    string `json:"user_name"`
	UserEmail   string `json:"user_email"`
	UnreadCount int    `json:"unread_count"`
}

// ChatDetail is a chat with its full message history.
type ChatDetail struct {
	ChatWithUser
	Messages []*ChatMessage `json:"messages"`
}

// ChatMessage is a message joined with the sender's display name.
type ChatMessage struct {
	SupportMessage
	SenderName string `json:"sender_name"`
}
