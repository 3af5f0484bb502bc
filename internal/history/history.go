// Package history persists conversation turns so a follow-up question can be
// resolved against what was asked before. The pipeline works without a
// store; when one is configured, recent turns enrich intent resolution.
package history

import (
	"context"
	"time"
)

// Turn is one answered question.
type Turn struct {
	TurnID     string
	UserID     string
	SessionID  string
	DatabaseID string
	Question   string
	SQL        string
	Tables     []string
	RowCount   int
	DurationMs int64
	CreatedAt  time.Time
}

// Store persists and retrieves turns for a (user, session, database) scope.
type Store interface {
	AppendTurn(ctx context.Context, turn Turn) (Turn, error)
	RecentTurns(ctx context.Context, userID, sessionID, databaseID string, limit int) ([]Turn, error)
}
