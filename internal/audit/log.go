package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Turn is one answered question as stored in research_turns.
type Turn struct {
	ID        uuid.UUID
	SessionID string
	Question  string
	Sources   []string
	Answer    string
	Duration  time.Duration
	CreatedAt time.Time
}

type Log struct {
	db *sql.DB
}

func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

func (l *Log) Record(ctx context.Context, turn *Turn) error {
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	sources := turn.Sources
	if sources == nil {
		sources = []string{}
	}

	query := `
		INSERT INTO research_turns (id, session_id, question, sources, answer, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := l.db.ExecContext(ctx, query,
		turn.ID.String(),
		turn.SessionID,
		turn.Question,
		pq.Array(sources),
		turn.Answer,
		turn.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record turn: %w", err)
	}
	return nil
}

// Recent lists a session's turns, newest first.
func (l *Log) Recent(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, session_id, question, sources, answer, duration_ms, created_at
		FROM research_turns
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := l.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t          Turn
			id         string
			durationMS int64
		)
		if err := rows.Scan(&id, &t.SessionID, &t.Question, pq.Array(&t.Sources), &t.Answer, &durationMS, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if t.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid turn id %q: %w", id, err)
		}
		t.Duration = time.Duration(durationMS) * time.Millisecond
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}
	return turns, nil
}
