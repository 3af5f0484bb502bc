package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config describes a SQL target database. Driver is one of "postgres",
// "sqlite" or "duckdb".
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	AcquireTimeout  time.Duration
}

// SQLBoundary runs queries over a database/sql pool. The pool bounds
// concurrent queries; acquisition failures surface as ErrPoolExhausted while
// everything after acquisition is an ordinary execution error.
type SQLBoundary struct {
	db             *sql.DB
	acquireTimeout time.Duration
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*SQLBoundary, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("executor: dsn is required")
	}
	driver, err := driverName(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open target db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping target db: %w", err)
	}
	return NewSQLBoundary(db, cfg.AcquireTimeout), nil
}

// NewSQLBoundary wraps an existing pool.
func NewSQLBoundary(db *sql.DB, acquireTimeout time.Duration) *SQLBoundary {
	if acquireTimeout <= 0 {
		acquireTimeout = 2 * time.Second
	}
	return &SQLBoundary{db: db, acquireTimeout: acquireTimeout}
}

// Close releases the underlying pool.
func (b *SQLBoundary) Close() error { return b.db.Close() }

// DB exposes the underlying pool for tooling that needs raw access, such as
// schema introspection.
func (b *SQLBoundary) DB() *sql.DB { return b.db }

// HealthCheck pings the target database.
func (b *SQLBoundary) HealthCheck(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping target db: %w", err)
	}
	return nil
}

// Execute runs one statement and materialises up to MaxRows rows.
func (b *SQLBoundary) Execute(ctx context.Context, request Request) (Result, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return Result{}, fmt.Errorf("executor: sql is required")
	}
	maxRows := request.MaxRows
	if maxRows <= 0 {
		maxRows = 1000
	}

	start := time.Now()

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, b.acquireTimeout)
	conn, err := b.db.Conn(acquireCtx)
	cancelAcquire()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Result{}, fmt.Errorf("%w: no connection within %s", ErrPoolExhausted, b.acquireTimeout)
		}
		return Result{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	queryCtx := ctx
	if request.Timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, request.Timeout)
		defer cancel()
	}

	rows, err := conn.QueryContext(queryCtx, request.SQL)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("read result columns: %w", err)
	}

	result := Result{Columns: columns}
	for rows.Next() {
		if result.RowCount >= maxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		for i, value := range values {
			if raw, ok := value.([]byte); ok {
				values[i] = string(raw)
			}
		}
		result.Rows = append(result.Rows, values)
		result.RowCount++
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

func driverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx", "":
		return "pgx", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "duckdb":
		return "duckdb", nil
	default:
		return "", fmt.Errorf("executor: unsupported driver %q", driver)
	}
}
