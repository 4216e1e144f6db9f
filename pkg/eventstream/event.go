// Package eventstream publishes memoir's domain events (persisted turns,
// saved recall memories) to an external stream.
package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnPersisted is emitted after a chat turn is appended to the
	// user's conversation.
	EventTypeTurnPersisted = "memoir.turn.persisted"

	// EventTypeMemorySaved is emitted after a recall memory is stored.
	EventTypeMemorySaved = "memoir.memory.saved"
)

// Event is a transport-neutral event envelope. Exactly one of Turn and
// Memory is set, matching EventType.
type Event struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	UserID        string    `json:"user_id"`

	Turn   *TurnPersisted `json:"turn,omitempty"`
	Memory *MemorySaved   `json:"memory,omitempty"`
}

// TurnPersisted describes the messages a turn added to the conversation.
type TurnPersisted struct {
	MessageIDs    []string `json:"message_ids"`
	Retained      int      `json:"retained"`
	HistoryLength int      `json:"history_length"`
	Model         string   `json:"model,omitempty"`
	DurationMs    int64    `json:"duration_ms"`
}

// MemorySaved describes a stored recall memory and the near-duplicates it
// replaced.
type MemorySaved struct {
	FactID      string   `json:"fact_id"`
	ReplacedIDs []string `json:"replaced_ids,omitempty"`
}

// NewTurnPersistedEvent stamps a turn event with a fresh id and time.
func NewTurnPersistedEvent(userID string, turn TurnPersisted) *Event {
	return newEvent(EventTypeTurnPersisted, userID, &turn, nil)
}

// NewMemorySavedEvent stamps a memory event with a fresh id and time.
func NewMemorySavedEvent(userID string, saved MemorySaved) *Event {
	return newEvent(EventTypeMemorySaved, userID, nil, &saved)
}

func newEvent(eventType, userID string, turn *TurnPersisted, mem *MemorySaved) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		UserID:        userID,
		Turn:          turn,
		Memory:        mem,
	}
}
