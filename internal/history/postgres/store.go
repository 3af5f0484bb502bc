// Package postgres stores conversation history in a Postgres table. Tables
// used by a turn are kept as a comma-joined list; they are display metadata,
// not a relation worth normalising.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VicerInfoTech/TIF-AI/internal/history"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS conversation_turn (
    turn_id     UUID PRIMARY KEY,
    user_id     TEXT NOT NULL,
    session_id  TEXT NOT NULL,
    database_id TEXT NOT NULL,
    question    TEXT NOT NULL,
    sql_text    TEXT NOT NULL,
    tables_used TEXT NOT NULL DEFAULT '',
    row_count   INTEGER NOT NULL DEFAULT 0,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS conversation_turn_scope_idx
    ON conversation_turn (user_id, session_id, database_id, created_at DESC);
`

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the history table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

func (s *Store) AppendTurn(ctx context.Context, turn history.Turn) (history.Turn, error) {
	if turn.TurnID == "" {
		turn.TurnID = uuid.NewString()
	}

	query := `
INSERT INTO conversation_turn (turn_id, user_id, session_id, database_id, question, sql_text, tables_used, row_count, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at`
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, query,
		turn.TurnID, turn.UserID, turn.SessionID, turn.DatabaseID,
		turn.Question, turn.SQL, strings.Join(turn.Tables, ","),
		turn.RowCount, turn.DurationMs,
	).Scan(&createdAt)
	if err != nil {
		return history.Turn{}, fmt.Errorf("append turn: %w", err)
	}
	turn.CreatedAt = createdAt
	return turn, nil
}

func (s *Store) RecentTurns(ctx context.Context, userID, sessionID, databaseID string, limit int) ([]history.Turn, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `
SELECT turn_id, question, sql_text, tables_used, row_count, duration_ms, created_at
FROM conversation_turn
WHERE user_id = $1 AND session_id = $2 AND database_id = $3
ORDER BY created_at DESC
LIMIT $4`
	rows, err := s.db.QueryContext(ctx, query, userID, sessionID, databaseID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch recent turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []history.Turn
	for rows.Next() {
		turn := history.Turn{UserID: userID, SessionID: sessionID, DatabaseID: databaseID}
		var tables string
		if err := rows.Scan(&turn.TurnID, &turn.Question, &turn.SQL, &tables, &turn.RowCount, &turn.DurationMs, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if tables != "" {
			turn.Tables = strings.Split(tables, ",")
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}
