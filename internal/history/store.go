// internal/history/store.go
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"research-workers/internal/models"
)

var (
	ErrHistoryUnavailable = errors.New("HISTORY_UNAVAILABLE")
	ErrMissingSession     = errors.New("session id is required")
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

const (
	upsertSessionSQL = `INSERT INTO chat_sessions (id, mode) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET mode = EXCLUDED.mode, updated_at = now()`

	insertMessageSQL = `INSERT INTO chat_messages (id, session_id, role, content, sources, reasoning, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertSearchSQL = `INSERT INTO search_history (id, session_id, query, mode, answer, sources, reasoning_steps, response_time, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	recentTurnsSQL = `SELECT role, content, created_at FROM chat_messages
WHERE session_id = $1 ORDER BY seq DESC LIMIT $2`
)

// Store persists research runs in Postgres. It satisfies models.SessionRepository.
type Store struct {
	db     *sql.DB
	logger Logger
	now    func() time.Time
	newID  func() string
}

func NewStore(db *sql.DB, log Logger) *Store {
	return &Store{
		db:     db,
		logger: log,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("%w: create schema: %v", ErrHistoryUnavailable, err)
	}
	return nil
}

// RecentTurns returns up to limit turns of a session, oldest first.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]models.ConversationTurn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSession
	}
	if limit <= 0 {
		return []models.ConversationTurn{}, nil
	}

	rows, err := s.db.QueryContext(ctx, recentTurnsSQL, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var (
			turn models.ConversationTurn
			role string
		)
		if err := rows.Scan(&role, &turn.Content, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: scan turn: %v", ErrHistoryUnavailable, err)
		}
		turn.Role = models.Role(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}
	return turns, nil
}

// SaveRun records the user query, the assistant answer and a search history row in one
// transaction. Error results are stored in search_history only.
func (s *Store) SaveRun(ctx context.Context, sessionID string, result *models.PipelineResult) error {
	if result == nil {
		return errors.New("result is required")
	}

	sources, err := json.Marshal(result.Sources)
	if err != nil {
		return fmt.Errorf("encode sources: %w", err)
	}
	reasoning, err := json.Marshal(result.ReasoningTrace)
	if err != nil {
		return fmt.Errorf("encode reasoning: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrHistoryUnavailable, err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	var session sql.NullString
	if sessionID != "" {
		session = sql.NullString{String: sessionID, Valid: true}
		if result.Mode != models.ModeError {
			if err := s.saveTurns(ctx, tx, sessionID, result, sources, reasoning, now); err != nil {
				return err
			}
		}
	}

	if _, err := tx.ExecContext(ctx, insertSearchSQL,
		s.newID(), session, result.Query, string(result.Mode), result.Answer,
		sources, reasoning, result.ResponseTimeSeconds, now); err != nil {
		return fmt.Errorf("%w: insert search history: %v", ErrHistoryUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrHistoryUnavailable, err)
	}

	s.logger.Info("research run saved", map[string]interface{}{
		"sessionId": sessionID,
		"mode":      result.Mode,
		"runId":     result.RunID,
	})
	return nil
}

func (s *Store) saveTurns(ctx context.Context, tx *sql.Tx, sessionID string, result *models.PipelineResult, sources, reasoning []byte, now time.Time) error {
	if _, err := tx.ExecContext(ctx, upsertSessionSQL, sessionID, string(result.Mode)); err != nil {
		return fmt.Errorf("%w: upsert session: %v", ErrHistoryUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, insertMessageSQL,
		s.newID(), sessionID, string(models.RoleUser), result.Query, nil, nil, now); err != nil {
		return fmt.Errorf("%w: insert user message: %v", ErrHistoryUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, insertMessageSQL,
		s.newID(), sessionID, string(models.RoleAssistant), result.Answer, sources, reasoning, now); err != nil {
		return fmt.Errorf("%w: insert assistant message: %v", ErrHistoryUnavailable, err)
	}
	return nil
}

var _ models.SessionRepository = (*Store)(nil)
