package postgres

import (
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/VicerInfoTech/TIF-AI/internal/history"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestAppendTurnAssignsIDAndTimestamp(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO conversation_turn")).
		WithArgs(sqlmock.AnyArg(), "alice", "s1", "sales",
			"total revenue", "SELECT SUM(total) FROM orders", "orders", 1, int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	turn, err := store.AppendTurn(t.Context(), history.Turn{
		UserID:     "alice",
		SessionID:  "s1",
		DatabaseID: "sales",
		Question:   "total revenue",
		SQL:        "SELECT SUM(total) FROM orders",
		Tables:     []string{"orders"},
		RowCount:   1,
		DurationMs: 42,
	})
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if turn.TurnID == "" {
		t.Fatal("turn id not assigned")
	}
	if !turn.CreatedAt.Equal(created) {
		t.Fatalf("created at = %v", turn.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAppendTurnKeepsExplicitID(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO conversation_turn")).
		WithArgs("turn-7", "alice", "s1", "sales", "q", "SELECT 1", "", 0, int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	turn, err := store.AppendTurn(t.Context(), history.Turn{
		TurnID: "turn-7", UserID: "alice", SessionID: "s1", DatabaseID: "sales",
		Question: "q", SQL: "SELECT 1",
	})
	if err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if turn.TurnID != "turn-7" {
		t.Fatalf("turn id = %q", turn.TurnID)
	}
}

func TestRecentTurnsScopesAndSplitsTables(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM conversation_turn")).
		WithArgs("alice", "s1", "sales", 2).
		WillReturnRows(sqlmock.NewRows(
			[]string{"turn_id", "question", "sql_text", "tables_used", "row_count", "duration_ms", "created_at"}).
			AddRow("t2", "second", "SELECT 2", "orders,customers", 5, int64(10), created).
			AddRow("t1", "first", "SELECT 1", "", 0, int64(3), created.Add(-time.Minute)),
		)

	turns, err := store.RecentTurns(t.Context(), "alice", "s1", "sales", 2)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("turns = %d", len(turns))
	}
	if turns[0].TurnID != "t2" || len(turns[0].Tables) != 2 {
		t.Fatalf("first turn = %+v", turns[0])
	}
	if turns[1].Tables != nil {
		t.Fatalf("empty tables column should stay nil, got %v", turns[1].Tables)
	}
	if turns[0].UserID != "alice" || turns[0].DatabaseID != "sales" {
		t.Fatalf("scope not carried: %+v", turns[0])
	}
}

func TestRecentTurnsDefaultLimit(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM conversation_turn")).
		WithArgs("alice", "s1", "sales", 5).
		WillReturnRows(sqlmock.NewRows(
			[]string{"turn_id", "question", "sql_text", "tables_used", "row_count", "duration_ms", "created_at"}))

	turns, err := store.RecentTurns(t.Context(), "alice", "s1", "sales", 0)
	if err != nil {
		t.Fatalf("RecentTurns: %v", err)
	}
	if turns != nil {
		t.Fatalf("turns = %v", turns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS conversation_turn")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.EnsureSchema(t.Context()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
}
