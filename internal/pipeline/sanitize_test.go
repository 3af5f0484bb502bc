package pipeline

import "testing"

func TestSanitizeSQL(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "already clean",
			raw:  "SELECT * FROM orders",
			want: "SELECT * FROM orders",
		},
		{
			name: "keeps trailing semicolon",
			raw:  "SELECT 1;",
			want: "SELECT 1;",
		},
		{
			name: "markdown fence with language tag",
			raw:  "```sql\nSELECT id FROM orders\n```",
			want: "SELECT id FROM orders",
		},
		{
			name: "bare fence",
			raw:  "```\nSELECT 1\n```",
			want: "SELECT 1",
		},
		{
			name: "narration before statement",
			raw:  "Sure! The query you need is: SELECT total FROM orders",
			want: "SELECT total FROM orders",
		},
		{
			name: "narration before cte",
			raw:  "Here you go:\nWITH recent AS (SELECT 1) SELECT * FROM recent",
			want: "WITH recent AS (SELECT 1) SELECT * FROM recent",
		},
		{
			name: "narration after fence ignored",
			raw:  "```sql\nSELECT 1\n```\nLet me know if you need anything else!",
			want: "SELECT 1",
		},
		{
			name: "select inside identifier not a start",
			raw:  "The selected_rows table is irrelevant. SELECT id FROM orders",
			want: "SELECT id FROM orders",
		},
		{
			name: "empty input",
			raw:  "   ",
			want: "",
		},
		{
			name: "no statement at all",
			raw:  "I cannot answer that question.",
			want: "I cannot answer that question.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSQL(tc.raw); got != tc.want {
				t.Fatalf("SanitizeSQL(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestSanitizeSQLNeverRewritesStatementBody(t *testing.T) {
	raw := "SELECT 'DROP TABLE users' AS quoted FROM audit"
	if got := SanitizeSQL(raw); got != raw {
		t.Fatalf("SanitizeSQL changed the statement: %q", got)
	}
}
