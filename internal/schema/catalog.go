package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrTableNotFound is returned by catalog lookups for unknown tables.
var ErrTableNotFound = errors.New("schema: table not found")

// LoadError reports a malformed schema description. It aborts catalog
// construction before any provider or database call happens.
type LoadError struct {
	DatabaseID string
	Reason     string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load schema for %q: %s", e.DatabaseID, e.Reason)
}

// Catalog is the immutable in-memory index of one database's tables. It is
// built once per database identifier and shared read-only across concurrent
// pipeline runs; no method mutates it after NewCatalog returns.
//
// All lookups, including foreign key targets, are by bare table name: a
// description whose table names collide across schemas fails to load rather
// than silently shadowing one of the tables.
type Catalog struct {
	databaseID string
	version    string
	tables     []Table          // sorted by (schema, name), fixed iteration order
	byName     map[string]int   // lower(table name) -> index into tables
	adjacency  map[string][]JoinEdge
}

// NewCatalog validates a schema description and builds the index. Tables are
// ordered lexically by schema then name, columns keep their declared order,
// and foreign keys are ordered lexically by (target table, columns) so that
// later graph traversal is reproducible.
func NewCatalog(desc Description) (*Catalog, error) {
	if strings.TrimSpace(desc.DatabaseID) == "" {
		return nil, &LoadError{DatabaseID: desc.DatabaseID, Reason: "database identifier is empty"}
	}
	if len(desc.Tables) == 0 {
		return nil, &LoadError{DatabaseID: desc.DatabaseID, Reason: "description contains no tables"}
	}

	tables := make([]Table, len(desc.Tables))
	copy(tables, desc.Tables)
	sort.Slice(tables, func(i, j int) bool {
		if tables[i].Schema != tables[j].Schema {
			return tables[i].Schema < tables[j].Schema
		}
		return tables[i].Name < tables[j].Name
	})

	byName := make(map[string]int, len(tables))
	for i, table := range tables {
		if strings.TrimSpace(table.Name) == "" {
			return nil, &LoadError{DatabaseID: desc.DatabaseID, Reason: "table with empty name"}
		}
		if len(table.Columns) == 0 {
			return nil, &LoadError{
				DatabaseID: desc.DatabaseID,
				Reason:     fmt.Sprintf("table %q has no columns", table.Name),
			}
		}
		key := strings.ToLower(table.Name)
		if prev, dup := byName[key]; dup {
			reason := fmt.Sprintf("duplicate table %q", table.Name)
			if !strings.EqualFold(tables[prev].Schema, table.Schema) {
				reason = fmt.Sprintf("table name %q appears in schemas %q and %q; lookups are by bare table name, so names must be unique across schemas",
					table.Name, tables[prev].Schema, table.Schema)
			}
			return nil, &LoadError{DatabaseID: desc.DatabaseID, Reason: reason}
		}
		byName[key] = i

		seen := make(map[string]struct{}, len(table.Columns))
		for _, col := range table.Columns {
			colKey := strings.ToLower(col.Name)
			if _, dup := seen[colKey]; dup {
				return nil, &LoadError{
					DatabaseID: desc.DatabaseID,
					Reason:     fmt.Sprintf("table %q has duplicate column %q", table.Name, col.Name),
				}
			}
			seen[colKey] = struct{}{}
		}
		for _, pk := range table.PrimaryKey {
			if _, ok := seen[strings.ToLower(pk)]; !ok {
				return nil, &LoadError{
					DatabaseID: desc.DatabaseID,
					Reason:     fmt.Sprintf("table %q declares unknown primary key column %q", table.Name, pk),
				}
			}
		}
	}

	for i := range tables {
		fks := tables[i].ForeignKeys
		sort.SliceStable(fks, func(a, b int) bool {
			if !strings.EqualFold(fks[a].RefTable, fks[b].RefTable) {
				return strings.ToLower(fks[a].RefTable) < strings.ToLower(fks[b].RefTable)
			}
			return strings.Join(fks[a].Columns, ",") < strings.Join(fks[b].Columns, ",")
		})
		for _, fk := range fks {
			if _, ok := byName[strings.ToLower(fk.RefTable)]; !ok {
				return nil, &LoadError{
					DatabaseID: desc.DatabaseID,
					Reason: fmt.Sprintf("table %q references unknown table %q",
						tables[i].Name, fk.RefTable),
				}
			}
			if len(fk.Columns) == 0 {
				return nil, &LoadError{
					DatabaseID: desc.DatabaseID,
					Reason:     fmt.Sprintf("table %q has a foreign key without source columns", tables[i].Name),
				}
			}
		}
	}

	cat := &Catalog{
		databaseID: desc.DatabaseID,
		version:    desc.Version,
		tables:     tables,
		byName:     byName,
	}
	cat.adjacency = buildAdjacency(cat)
	return cat, nil
}

// buildAdjacency materialises the foreign key graph with both the declared
// edge and its reverse, in catalog iteration order. Reverse edges flip the
// cardinality tag and are marked Reversed.
func buildAdjacency(cat *Catalog) map[string][]JoinEdge {
	adj := make(map[string][]JoinEdge)
	for _, table := range cat.tables {
		for _, fk := range table.ForeignKeys {
			card := fk.Cardinality
			if card == "" {
				card = ManyToOne
			}
			forward := JoinEdge{
				FromTable:   table.Name,
				FromColumns: fk.Columns,
				ToTable:     fk.RefTable,
				ToColumns:   fk.RefColumns,
				Cardinality: card,
			}
			reverse := JoinEdge{
				FromTable:   fk.RefTable,
				FromColumns: fk.RefColumns,
				ToTable:     table.Name,
				ToColumns:   fk.Columns,
				Cardinality: invertCardinality(card),
				Reversed:    true,
			}
			fromKey := strings.ToLower(table.Name)
			toKey := strings.ToLower(fk.RefTable)
			adj[fromKey] = append(adj[fromKey], forward)
			adj[toKey] = append(adj[toKey], reverse)
		}
	}
	return adj
}

func invertCardinality(card Cardinality) Cardinality {
	switch card {
	case ManyToOne:
		return OneToMany
	case OneToMany:
		return ManyToOne
	default:
		return card
	}
}

// DatabaseID returns the identifier this catalog was built for.
func (c *Catalog) DatabaseID() string { return c.databaseID }

// Version returns the schema artifact version, empty when the source does not
// track one.
func (c *Catalog) Version() string { return c.version }

// Tables returns every table in catalog iteration order. Callers must not
// mutate the returned slice.
func (c *Catalog) Tables() []Table { return c.tables }

// TableNames returns the table names in catalog iteration order.
func (c *Catalog) TableNames() []string {
	names := make([]string, len(c.tables))
	for i, table := range c.tables {
		names[i] = table.Name
	}
	return names
}

// Lookup resolves a table by name, case-insensitively.
func (c *Catalog) Lookup(name string) (Table, error) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	return c.tables[i], nil
}

// Has reports whether the named table exists in the catalog.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (c *Catalog) edgesFrom(table string) []JoinEdge {
	return c.adjacency[strings.ToLower(table)]
}
