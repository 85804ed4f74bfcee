package models

import (
	"encoding/json"
	"time"
)

// Chat is an opaque conversation handle. Messages are not stored on the
// chat itself; they are appended as interactions.
type Chat struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Interaction is one appended conversation turn. Content holds the wire
// message verbatim (pre-sanitisation for tool results). Interactions are
// append-only and ordered by CreatedAt with insertion order as the
// tie-break.
type Interaction struct {
	ID          string          `json:"id"`
	ChatID      string          `json:"chat_id"`
	Content     json.RawMessage `json:"content"`
	Tainted     bool            `json:"tainted"`
	TaintReason string          `json:"taint_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ChatWithInteractions is the read model for chat retrieval.
type ChatWithInteractions struct {
	Chat
	Interactions []*Interaction `json:"interactions"`
}
