// internal/models/session.go
package models

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one prior message of a session, oldest first.
type ConversationTurn struct {
	Role      Role      `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
}

// Label is the display name used when rendering turns into prompt text.
func (t ConversationTurn) Label() string {
	if t.Role == RoleUser {
		return "User"
	}
	return "Assistant"
}

// SessionRepository loads and stores conversation history. The research core never
// depends on it; workers and the CLI do.
type SessionRepository interface {
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]ConversationTurn, error)
	SaveRun(ctx context.Context, sessionID string, result *PipelineResult) error
}
