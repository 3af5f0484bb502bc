package pipeline

import (
	"fmt"
	"strings"

	"github.com/VicerInfoTech/TIF-AI/internal/schema"
)

// catalogSummary renders the one-line-per-table overview used during intent
// resolution, where the model needs breadth rather than column detail.
func catalogSummary(catalog *schema.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database %q (schema version %s) contains %d tables:\n",
		catalog.DatabaseID(), catalog.Version(), len(catalog.Tables()))
	for _, table := range catalog.Tables() {
		b.WriteString("- ")
		b.WriteString(table.Name)
		if table.Description != "" {
			b.WriteString(": ")
			b.WriteString(table.Description)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// renderTable produces the full descriptor block for one candidate table:
// every column with its type, nullability and description, plus primary and
// foreign key annotations.
func renderTable(table schema.Table) string {
	var b strings.Builder
	b.WriteString("Table: ")
	b.WriteString(table.Name)
	b.WriteByte('\n')
	if table.Description != "" {
		b.WriteString("Description: ")
		b.WriteString(table.Description)
		b.WriteByte('\n')
	}
	b.WriteString("Columns:\n")
	for _, col := range table.Columns {
		fmt.Fprintf(&b, "  - %s (%s", col.Name, col.DeclaredType)
		if !col.Nullable {
			b.WriteString(", not null")
		}
		if table.IsPrimaryKey(col.Name) {
			b.WriteString(", primary key")
		}
		b.WriteString(")")
		if col.Description != "" {
			b.WriteString(" -- ")
			b.WriteString(col.Description)
		}
		b.WriteByte('\n')
	}
	for _, fk := range table.ForeignKeys {
		fmt.Fprintf(&b, "Foreign key: %s(%s) references %s(%s)\n",
			table.Name, strings.Join(fk.Columns, ", "),
			fk.RefTable, strings.Join(fk.RefColumns, ", "))
	}
	return b.String()
}

// schemaContext concatenates the rendered descriptors of all candidate
// tables in ranking order.
func schemaContext(tables []schema.Table) string {
	blocks := make([]string, 0, len(tables))
	for _, table := range tables {
		blocks = append(blocks, renderTable(table))
	}
	return strings.Join(blocks, "\n")
}

// joinSummary renders the discovered join conditions as equality lines the
// model can lift directly into ON clauses.
func joinSummary(plan schema.JoinPlan) string {
	if len(plan.Edges) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Join conditions:\n")
	for _, edge := range plan.Edges {
		for i := range edge.FromColumns {
			if i >= len(edge.ToColumns) {
				break
			}
			fmt.Fprintf(&b, "  %s.%s = %s.%s\n", edge.FromTable, edge.FromColumns[i], edge.ToTable, edge.ToColumns[i])
		}
	}
	return b.String()
}
