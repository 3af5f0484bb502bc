package schema

import "strings"

// DataType is the semantic category of a column's declared SQL type.
type DataType string

const (
	TypeInteger  DataType = "integer"
	TypeDecimal  DataType = "decimal"
	TypeText     DataType = "text"
	TypeDateTime DataType = "datetime"
	TypeBoolean  DataType = "boolean"
	TypeOther    DataType = "other"
)

// Cardinality tags the direction of a foreign key relationship.
type Cardinality string

const (
	OneToMany Cardinality = "one_to_many"
	ManyToOne Cardinality = "many_to_one"
	OneToOne  Cardinality = "one_to_one"
)

// Column describes a single table column. DeclaredType keeps the raw SQL type
// as written in the source artifact; Type is its semantic category.
type Column struct {
	Name         string
	Type         DataType
	DeclaredType string
	Nullable     bool
	Description  string
	Keywords     []string
}

// ForeignKey is a directed relationship from the owning table's columns to
// columns of a referenced table.
type ForeignKey struct {
	Name        string
	Columns     []string
	RefTable    string
	RefColumns  []string
	Cardinality Cardinality
}

// Table describes one table of a database: identity, columns, keys and the
// search metadata used by the toolkit.
type Table struct {
	Schema      string
	Name        string
	Description string
	Keywords    []string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// Column returns the named column, matched case-insensitively.
func (t Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return Column{}, false
}

// IsPrimaryKey reports whether the named column belongs to the primary key set.
func (t Table) IsPrimaryKey(column string) bool {
	for _, pk := range t.PrimaryKey {
		if strings.EqualFold(pk, column) {
			return true
		}
	}
	return false
}

// Description records are what a schema source hands to the catalog builder:
// the raw table documents of one database, plus the artifact version.
type Description struct {
	DatabaseID string
	Version    string
	Tables     []Table
}

// JoinEdge is one hop of a join path. Reversed marks edges traversed against
// their declared foreign key direction.
type JoinEdge struct {
	FromTable   string
	FromColumns []string
	ToTable     string
	ToColumns   []string
	Cardinality Cardinality
	Reversed    bool
}

// JoinPath is an ordered edge sequence connecting a source table to a target
// table. A zero-hop path means source and target are the same table.
type JoinPath struct {
	Source string
	Target string
	Edges  []JoinEdge
}

// Hops returns the number of edges on the path.
func (p JoinPath) Hops() int { return len(p.Edges) }

// Reversals returns how many edges on the path run against their declared
// direction.
func (p JoinPath) Reversals() int {
	n := 0
	for _, e := range p.Edges {
		if e.Reversed {
			n++
		}
	}
	return n
}

// TableMatch is one ranked result from SearchTables.
type TableMatch struct {
	Table       string
	Score       float64
	Description string
	Columns     []string
	MatchedOn   []string
}
