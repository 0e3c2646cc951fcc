package core

import (
	"strings"
	"time"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Turn is a single conversational exchange entry.
// Turns are immutable once created; the short-term window owns them and
// discards them on eviction.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a turn stamped with the current time.
func NewTurn(role Role, text string) Turn {
	return Turn{
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

// Validate checks the turn shape. Malformed turns are rejected before any
// state mutation happens.
func (t Turn) Validate() error {
	if t.Role != RoleUser && t.Role != RoleAgent {
		return Validationf("invalid role %q", t.Role)
	}
	if strings.TrimSpace(t.Text) == "" {
		return Validationf("empty turn text")
	}
	if t.Timestamp.IsZero() {
		return Validationf("zero timestamp")
	}
	return nil
}
