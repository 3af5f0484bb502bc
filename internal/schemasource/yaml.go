// Package schemasource loads versioned schema descriptions for the catalog.
// The artifact layout is one YAML document per table plus a schema_index.yaml,
// grouped under the database identifier, stored either on the local
// filesystem or in an S3-compatible object store. The package also contains
// the introspector that produces artifacts from a live database.
package schemasource

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/VicerInfoTech/TIF-AI/internal/schema"
)

const indexFileName = "schema_index.yaml"

type indexDoc struct {
	Database string   `yaml:"database"`
	Version  string   `yaml:"version"`
	Tables   []string `yaml:"tables,omitempty"`
}

type columnDoc struct {
	Name        string   `yaml:"name"`
	SQLType     string   `yaml:"sql_type"`
	Nullable    *bool    `yaml:"nullable,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty"`
}

type primaryKeyDoc struct {
	Columns []string `yaml:"columns"`
}

type foreignKeyDoc struct {
	Name              string   `yaml:"name,omitempty"`
	Columns           []string `yaml:"columns"`
	ReferencedTable   string   `yaml:"referenced_table"`
	ReferencedColumns []string `yaml:"referenced_columns"`
	RelationshipType  string   `yaml:"relationship_type,omitempty"`
}

type tableDoc struct {
	Table       string          `yaml:"table"`
	Schema      string          `yaml:"schema,omitempty"`
	Description string          `yaml:"description,omitempty"`
	Keywords    []string        `yaml:"keywords,omitempty"`
	Columns     []columnDoc     `yaml:"columns"`
	PrimaryKey  *primaryKeyDoc  `yaml:"primary_key,omitempty"`
	ForeignKeys []foreignKeyDoc `yaml:"foreign_keys,omitempty"`
}

func decodeTable(data []byte) (schema.Table, error) {
	var doc tableDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return schema.Table{}, fmt.Errorf("decode table artifact: %w", err)
	}
	if strings.TrimSpace(doc.Table) == "" {
		return schema.Table{}, fmt.Errorf("table artifact is missing the table name")
	}

	table := schema.Table{
		Schema:      doc.Schema,
		Name:        doc.Table,
		Description: doc.Description,
		Keywords:    doc.Keywords,
	}
	if table.Schema == "" {
		table.Schema = "public"
	}
	for _, col := range doc.Columns {
		nullable := true
		if col.Nullable != nil {
			nullable = *col.Nullable
		}
		table.Columns = append(table.Columns, schema.Column{
			Name:         col.Name,
			Type:         CategorizeType(col.SQLType),
			DeclaredType: col.SQLType,
			Nullable:     nullable,
			Description:  col.Description,
			Keywords:     col.Keywords,
		})
	}
	if doc.PrimaryKey != nil {
		table.PrimaryKey = doc.PrimaryKey.Columns
	}
	for _, fk := range doc.ForeignKeys {
		table.ForeignKeys = append(table.ForeignKeys, schema.ForeignKey{
			Name:        fk.Name,
			Columns:     fk.Columns,
			RefTable:    fk.ReferencedTable,
			RefColumns:  fk.ReferencedColumns,
			Cardinality: cardinalityFromString(fk.RelationshipType),
		})
	}
	return table, nil
}

func encodeTable(table schema.Table) ([]byte, error) {
	doc := tableDoc{
		Table:       table.Name,
		Schema:      table.Schema,
		Description: table.Description,
		Keywords:    table.Keywords,
	}
	for _, col := range table.Columns {
		nullable := col.Nullable
		doc.Columns = append(doc.Columns, columnDoc{
			Name:        col.Name,
			SQLType:     col.DeclaredType,
			Nullable:    &nullable,
			Description: col.Description,
			Keywords:    col.Keywords,
		})
	}
	if len(table.PrimaryKey) > 0 {
		doc.PrimaryKey = &primaryKeyDoc{Columns: table.PrimaryKey}
	}
	for _, fk := range table.ForeignKeys {
		doc.ForeignKeys = append(doc.ForeignKeys, foreignKeyDoc{
			Name:              fk.Name,
			Columns:           fk.Columns,
			ReferencedTable:   fk.RefTable,
			ReferencedColumns: fk.RefColumns,
			RelationshipType:  string(fk.Cardinality),
		})
	}
	return yaml.Marshal(doc)
}

func cardinalityFromString(value string) schema.Cardinality {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "one_to_many":
		return schema.OneToMany
	case "one_to_one":
		return schema.OneToOne
	case "many_to_one", "":
		return schema.ManyToOne
	default:
		return schema.ManyToOne
	}
}

// CategorizeType maps a declared SQL type to its semantic category.
func CategorizeType(sqlType string) schema.DataType {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	switch {
	case t == "":
		return schema.TypeOther
	case strings.Contains(t, "int"), t == "serial", t == "bigserial", t == "smallserial":
		return schema.TypeInteger
	case strings.Contains(t, "decimal"), strings.Contains(t, "numeric"),
		strings.Contains(t, "real"), strings.Contains(t, "double"),
		strings.Contains(t, "float"), t == "money":
		return schema.TypeDecimal
	case strings.Contains(t, "char"), strings.Contains(t, "text"),
		t == "uuid", t == "json", t == "jsonb", t == "xml", t == "citext":
		return schema.TypeText
	case strings.Contains(t, "timestamp"), strings.Contains(t, "date"),
		strings.Contains(t, "time"), t == "interval":
		return schema.TypeDateTime
	case t == "bool", t == "boolean", t == "bit":
		return schema.TypeBoolean
	default:
		return schema.TypeOther
	}
}
