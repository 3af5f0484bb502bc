// Package executor is the thin adapter between a validated SQL statement and
// the database that runs it. Only text that passed the sqlguard gate is ever
// handed to a Boundary.
package executor

import (
	"context"
	"errors"
	"time"
)

// ErrPoolExhausted means no connection could be acquired within the acquire
// timeout. It is distinguishable from an execution failure so callers can
// choose to retry later.
var ErrPoolExhausted = errors.New("executor: connection pool exhausted")

// Request carries one read-only statement with its resource limits.
type Request struct {
	SQL     string
	MaxRows int
	Timeout time.Duration
}

// Result is the tabular outcome of one query.
type Result struct {
	Columns   []string
	Rows      [][]any
	RowCount  int
	Truncated bool
	Duration  time.Duration
}

// Boundary executes validated SQL against one target database.
type Boundary interface {
	Execute(ctx context.Context, request Request) (Result, error)
	HealthCheck(ctx context.Context) error
}
