package schemasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/VicerInfoTech/TIF-AI/internal/schema"
)

// Introspector reads table, column and key metadata from a live database so
// artifacts can be generated for databases that have none yet. Postgres and
// SQLite are supported; generated artifacts usually get their descriptions
// and keywords edited afterwards.
type Introspector struct {
	db      *sql.DB
	dialect string
	schema  string
}

// NewIntrospector wraps an open connection. Dialect is "postgres" or
// "sqlite"; schemaName scopes postgres introspection and defaults to public.
func NewIntrospector(db *sql.DB, dialect, schemaName string) (*Introspector, error) {
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	switch dialect {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("schemasource: unsupported introspection dialect %q", dialect)
	}
	if schemaName == "" {
		schemaName = "public"
	}
	return &Introspector{db: db, dialect: dialect, schema: schemaName}, nil
}

// Introspect builds a schema description for the database.
func (in *Introspector) Introspect(ctx context.Context, databaseID string) (schema.Description, error) {
	names, err := in.tableNames(ctx)
	if err != nil {
		return schema.Description{}, err
	}
	desc := schema.Description{DatabaseID: databaseID}
	for _, name := range names {
		table, err := in.introspectTable(ctx, name)
		if err != nil {
			return schema.Description{}, fmt.Errorf("introspect table %q: %w", name, err)
		}
		desc.Tables = append(desc.Tables, table)
	}
	return desc, nil
}

func (in *Introspector) tableNames(ctx context.Context) ([]string, error) {
	var query string
	var args []any
	switch in.dialect {
	case "postgres":
		query = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`
		args = []any{in.schema}
	case "sqlite":
		query = `
SELECT name
FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`
	}

	rows, err := in.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (in *Introspector) introspectTable(ctx context.Context, name string) (schema.Table, error) {
	table := schema.Table{Schema: in.schema, Name: name}
	if in.dialect == "sqlite" {
		table.Schema = "main"
	}

	columns, pk, err := in.columns(ctx, name)
	if err != nil {
		return schema.Table{}, err
	}
	table.Columns = columns
	table.PrimaryKey = pk

	fks, err := in.foreignKeys(ctx, name)
	if err != nil {
		return schema.Table{}, err
	}
	table.ForeignKeys = fks
	return table, nil
}

func (in *Introspector) columns(ctx context.Context, table string) ([]schema.Column, []string, error) {
	switch in.dialect {
	case "postgres":
		return in.postgresColumns(ctx, table)
	default:
		return in.sqliteColumns(ctx, table)
	}
}

func (in *Introspector) postgresColumns(ctx context.Context, table string) ([]schema.Column, []string, error) {
	query := `
SELECT c.column_name, c.data_type, c.is_nullable
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`
	rows, err := in.db.QueryContext(ctx, query, in.schema, table)
	if err != nil {
		return nil, nil, fmt.Errorf("list columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []schema.Column
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, schema.Column{
			Name:         name,
			Type:         CategorizeType(dataType),
			DeclaredType: dataType,
			Nullable:     strings.EqualFold(isNullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	pkQuery := `
SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.ordinal_position`
	pkRows, err := in.db.QueryContext(ctx, pkQuery, in.schema, table)
	if err != nil {
		return nil, nil, fmt.Errorf("list primary key: %w", err)
	}
	defer func() { _ = pkRows.Close() }()

	var pk []string
	for pkRows.Next() {
		var name string
		if err := pkRows.Scan(&name); err != nil {
			return nil, nil, fmt.Errorf("scan primary key column: %w", err)
		}
		pk = append(pk, name)
	}
	return columns, pk, pkRows.Err()
}

func (in *Introspector) sqliteColumns(ctx context.Context, table string) ([]schema.Column, []string, error) {
	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, nil, fmt.Errorf("table_info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []schema.Column
	var pk []string
	for rows.Next() {
		var cid, notNull, pkOrder int
		var name, declType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pkOrder); err != nil {
			return nil, nil, fmt.Errorf("scan table_info row: %w", err)
		}
		columns = append(columns, schema.Column{
			Name:         name,
			Type:         CategorizeType(declType),
			DeclaredType: declType,
			Nullable:     notNull == 0,
		})
		if pkOrder > 0 {
			pk = append(pk, name)
		}
	}
	return columns, pk, rows.Err()
}

func (in *Introspector) foreignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	switch in.dialect {
	case "postgres":
		return in.postgresForeignKeys(ctx, table)
	default:
		return in.sqliteForeignKeys(ctx, table)
	}
}

func (in *Introspector) postgresForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	query := `
SELECT tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'FOREIGN KEY'
ORDER BY tc.constraint_name, kcu.ordinal_position`
	rows, err := in.db.QueryContext(ctx, query, in.schema, table)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byName := map[string]*schema.ForeignKey{}
	var order []string
	for rows.Next() {
		var constraint, column, refTable, refColumn string
		if err := rows.Scan(&constraint, &column, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		fk, ok := byName[constraint]
		if !ok {
			fk = &schema.ForeignKey{Name: constraint, RefTable: refTable, Cardinality: schema.ManyToOne}
			byName[constraint] = fk
			order = append(order, constraint)
		}
		fk.Columns = append(fk.Columns, column)
		fk.RefColumns = append(fk.RefColumns, refColumn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks := make([]schema.ForeignKey, 0, len(order))
	for _, name := range order {
		fks = append(fks, *byName[name])
	}
	return fks, nil
}

func (in *Introspector) sqliteForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("foreign_key_list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := map[int]*schema.ForeignKey{}
	var order []int
	for rows.Next() {
		var id, seq int
		var refTable, from, to string
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("scan foreign_key_list row: %w", err)
		}
		fk, ok := byID[id]
		if !ok {
			fk = &schema.ForeignKey{RefTable: refTable, Cardinality: schema.ManyToOne}
			byID[id] = fk
			order = append(order, id)
		}
		fk.Columns = append(fk.Columns, from)
		fk.RefColumns = append(fk.RefColumns, to)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks := make([]schema.ForeignKey, 0, len(order))
	for _, id := range order {
		fks = append(fks, *byID[id])
	}
	return fks, nil
}
