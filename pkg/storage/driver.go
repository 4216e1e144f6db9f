// Package storage defines the durable message store that backs every user's
// conversation history.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/memoir/pkg/llm"
)

// Row is one persisted conversation message.
type Row struct {
	// MessageID is the primary key. Inserting an existing id is a no-op.
	MessageID   string    `json:"message_id"`
	UserID      string    `json:"user_id"`
	IsAssistant bool      `json:"is_assistant"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// Driver defines the interface for persisting and retrieving conversation rows.
type Driver interface {
	// Insert stores rows in a single round trip. Rows whose MessageID already
	// exists are skipped, so retrying a partially applied insert is safe.
	Insert(ctx context.Context, rows []Row) error

	// History returns every row for the user, oldest first.
	History(ctx context.Context, userID string) ([]Row, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the store and releases any resources.
	Close() error
}

// NewRow converts a conversation message into a durable row. Only the text
// content is persisted.
func NewRow(userID string, msg llm.Message) Row {
	id := msg.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return Row{
		MessageID:   id,
		UserID:      userID,
		IsAssistant: msg.Role == llm.RoleAssistant,
		Text:        msg.Text(),
		CreatedAt:   created,
	}
}

// Message converts the row back into a conversation message.
func (r Row) Message() llm.Message {
	role := llm.RoleHuman
	if r.IsAssistant {
		role = llm.RoleAssistant
	}
	msg := llm.NewTextMessage(role, r.Text)
	msg.ID = r.MessageID
	msg.CreatedAt = r.CreatedAt
	return msg
}
