package executor

import (
	_ "github.com/jackc/pgx/v5/stdlib"      // postgres
	_ "github.com/marcboeker/go-duckdb/v2"  // duckdb
	_ "modernc.org/sqlite"                  // sqlite
)
