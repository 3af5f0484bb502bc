package executor

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockBoundary(t *testing.T) (*SQLBoundary, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLBoundary(db, 0), mock
}

func TestExecuteMaterialisesRows(t *testing.T) {
	boundary, mock := newMockBoundary(t)
	mock.ExpectQuery("SELECT region, total FROM sales").WillReturnRows(
		sqlmock.NewRows([]string{"region", "total"}).
			AddRow("north", 120).
			AddRow("south", 80),
	)

	result, err := boundary.Execute(t.Context(), Request{SQL: "SELECT region, total FROM sales"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RowCount != 2 || result.Truncated {
		t.Fatalf("rows=%d truncated=%v", result.RowCount, result.Truncated)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "region" {
		t.Fatalf("columns = %v", result.Columns)
	}
	if result.Rows[0][0] != "north" {
		t.Fatalf("row[0][0] = %v", result.Rows[0][0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestExecuteConvertsByteSlices(t *testing.T) {
	boundary, mock := newMockBoundary(t)
	mock.ExpectQuery("SELECT name FROM t").WillReturnRows(
		sqlmock.NewRows([]string{"name"}).AddRow([]byte("widget")),
	)

	result, err := boundary.Execute(t.Context(), Request{SQL: "SELECT name FROM t"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got, ok := result.Rows[0][0].(string); !ok || got != "widget" {
		t.Fatalf("row value = %#v", result.Rows[0][0])
	}
}

func TestExecuteTruncatesAtMaxRows(t *testing.T) {
	boundary, mock := newMockBoundary(t)
	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 10; i++ {
		rows.AddRow(i)
	}
	mock.ExpectQuery("SELECT n FROM seq").WillReturnRows(rows)

	result, err := boundary.Execute(t.Context(), Request{SQL: "SELECT n FROM seq", MaxRows: 3})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RowCount != 3 || !result.Truncated {
		t.Fatalf("rows=%d truncated=%v", result.RowCount, result.Truncated)
	}
}

func TestExecuteEmptySQL(t *testing.T) {
	boundary, _ := newMockBoundary(t)
	if _, err := boundary.Execute(t.Context(), Request{SQL: "   "}); err == nil {
		t.Fatal("expected error for empty sql")
	}
}

func TestExecuteQueryErrorIsNotPoolExhaustion(t *testing.T) {
	boundary, mock := newMockBoundary(t)
	mock.ExpectQuery("SELECT broken").WillReturnError(errors.New("syntax error"))

	_, err := boundary.Execute(t.Context(), Request{SQL: "SELECT broken"})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrPoolExhausted) {
		t.Fatal("query failure must not read as pool exhaustion")
	}
}

func TestDriverName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"postgres", "pgx", true},
		{"pgx", "pgx", true},
		{"", "pgx", true},
		{" Postgres ", "pgx", true},
		{"sqlite", "sqlite", true},
		{"sqlite3", "sqlite", true},
		{"duckdb", "duckdb", true},
		{"oracle", "", false},
	}
	for _, tc := range cases {
		got, err := driverName(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("driverName(%q) = %q, %v", tc.in, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("driverName(%q) accepted", tc.in)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry()
	boundary, _ := newMockBoundary(t)
	registry.Register("sales", boundary)

	if _, err := registry.Boundary("sales"); err != nil {
		t.Fatalf("Boundary: %v", err)
	}
	if _, err := registry.Boundary("warehouse"); err == nil {
		t.Fatal("unknown database accepted")
	}
	ids := registry.DatabaseIDs()
	if len(ids) != 1 || ids[0] != "sales" {
		t.Fatalf("ids = %v", ids)
	}
}
