// Package format shapes tabular query results into the caller-requested
// serialization. Serialization is deterministic: the same columns and rows
// always produce byte-identical output for a given target.
package format

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

// Target names an output serialization.
type Target string

const (
	TargetJSON  Target = "json"
	TargetCSV   Target = "csv"
	TargetTable Target = "table"
)

// ParseTarget validates a requested format, defaulting empty input to JSON.
func ParseTarget(value string) (Target, error) {
	switch Target(strings.ToLower(strings.TrimSpace(value))) {
	case TargetJSON, "":
		return TargetJSON, nil
	case TargetCSV:
		return TargetCSV, nil
	case TargetTable:
		return TargetTable, nil
	default:
		return "", fmt.Errorf("format: unsupported target %q", value)
	}
}

// ContentType returns the MIME type for a target.
func (t Target) ContentType() string {
	switch t {
	case TargetCSV:
		return "text/csv"
	case TargetTable:
		return "text/plain"
	default:
		return "application/json"
	}
}

// Serialize renders rows under the named columns. JSON output is an array of
// objects whose keys appear in column order, which requires writing the
// objects by hand rather than round-tripping through a map.
func Serialize(columns []string, rows [][]any, target Target) ([]byte, error) {
	switch target {
	case TargetJSON, "":
		return serializeJSON(columns, rows)
	case TargetCSV:
		return serializeCSV(columns, rows)
	case TargetTable:
		return serializeTable(columns, rows)
	default:
		return nil, fmt.Errorf("format: unsupported target %q", target)
	}
}

func serializeJSON(columns []string, rows [][]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, column := range columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(column)
			if err != nil {
				return nil, fmt.Errorf("encode column name: %w", err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			value, err := json.Marshal(normalizeValue(cellAt(row, j)))
			if err != nil {
				return nil, fmt.Errorf("encode value for column %q: %w", column, err)
			}
			buf.Write(value)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func serializeCSV(columns []string, rows [][]any) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for j := range columns {
			record[j] = cellString(cellAt(row, j))
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func serializeTable(columns []string, rows [][]any) ([]byte, error) {
	var buf bytes.Buffer
	writer := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, strings.Join(columns, "\t"))
	cells := make([]string, len(columns))
	for _, row := range rows {
		for j := range columns {
			cells[j] = cellString(cellAt(row, j))
		}
		fmt.Fprintln(writer, strings.Join(cells, "\t"))
	}
	if err := writer.Flush(); err != nil {
		return nil, fmt.Errorf("flush table: %w", err)
	}
	return buf.Bytes(), nil
}

func cellAt(row []any, i int) any {
	if i >= len(row) {
		return nil
	}
	return row[i]
}

// normalizeValue keeps JSON output stable across drivers: byte slices become
// strings and timestamps are rendered as RFC 3339.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return value
	}
}

func cellString(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}
