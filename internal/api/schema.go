package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/VicerInfoTech/TIF-AI/internal/schema"
)

type tableSummary struct {
	Name        string   `json:"name"`
	Schema      string   `json:"schema,omitempty"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	ColumnCount int      `json:"column_count"`
}

type columnDetail struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	DeclaredType string   `json:"declared_type"`
	Nullable     bool     `json:"nullable"`
	Description  string   `json:"description,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	PrimaryKey   bool     `json:"primary_key"`
}

type foreignKeyDetail struct {
	Name        string   `json:"name,omitempty"`
	Columns     []string `json:"columns"`
	RefTable    string   `json:"referenced_table"`
	RefColumns  []string `json:"referenced_columns"`
	Cardinality string   `json:"cardinality,omitempty"`
}

type tableDetail struct {
	Name        string             `json:"name"`
	Schema      string             `json:"schema,omitempty"`
	Description string             `json:"description,omitempty"`
	Keywords    []string           `json:"keywords,omitempty"`
	Columns     []columnDetail     `json:"columns"`
	ForeignKeys []foreignKeyDetail `json:"foreign_keys,omitempty"`
}

func loadCatalog(deps Dependencies, w http.ResponseWriter, r *http.Request) (*schema.Catalog, bool) {
	if deps.Catalogs == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema catalog is not configured", false, nil)
		return nil, false
	}
	databaseID := r.PathValue("db")
	catalog, err := deps.Catalogs.Load(r.Context(), databaseID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_LOAD_ERROR", "failed to load schema catalog", true, map[string]any{
			"database_id": databaseID,
			"details":     err.Error(),
		})
		return nil, false
	}
	return catalog, true
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	catalog, ok := loadCatalog(deps, w, r)
	if !ok {
		return
	}
	tables := catalog.Tables()
	summaries := make([]tableSummary, 0, len(tables))
	for _, table := range tables {
		summaries = append(summaries, tableSummary{
			Name:        table.Name,
			Schema:      table.Schema,
			Description: table.Description,
			Keywords:    table.Keywords,
			ColumnCount: len(table.Columns),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"database_id": catalog.DatabaseID(),
		"version":     catalog.Version(),
		"tables":      summaries,
	})
}

func handleGetTable(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	catalog, ok := loadCatalog(deps, w, r)
	if !ok {
		return
	}
	table, err := catalog.Lookup(r.PathValue("table"))
	if err != nil {
		if errors.Is(err, schema.ErrTableNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_LOAD_ERROR", err.Error(), true, nil)
		return
	}

	detail := tableDetail{
		Name:        table.Name,
		Schema:      table.Schema,
		Description: table.Description,
		Keywords:    table.Keywords,
		Columns:     make([]columnDetail, 0, len(table.Columns)),
	}
	for _, col := range table.Columns {
		detail.Columns = append(detail.Columns, columnDetail{
			Name:         col.Name,
			Type:         string(col.Type),
			DeclaredType: col.DeclaredType,
			Nullable:     col.Nullable,
			Description:  col.Description,
			Keywords:     col.Keywords,
			PrimaryKey:   table.IsPrimaryKey(col.Name),
		})
	}
	for _, fk := range table.ForeignKeys {
		detail.ForeignKeys = append(detail.ForeignKeys, foreignKeyDetail{
			Name:        fk.Name,
			Columns:     fk.Columns,
			RefTable:    fk.RefTable,
			RefColumns:  fk.RefColumns,
			Cardinality: string(fk.Cardinality),
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

func handleSearchTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	catalog, ok := loadCatalog(deps, w, r)
	if !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_REQUIRED", "q parameter is required", false, nil)
		return
	}
	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = parsed
	}

	matches := schema.NewToolkit(catalog).SearchTables(query, limit)
	results := make([]searchMatch, 0, len(matches))
	for _, m := range matches {
		results = append(results, searchMatch{
			Table:       m.Table,
			Score:       m.Score,
			Description: m.Description,
			Columns:     m.Columns,
			MatchedOn:   m.MatchedOn,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"database_id": catalog.DatabaseID(),
		"query":       query,
		"matches":     results,
	})
}

type searchMatch struct {
	Table       string   `json:"table"`
	Score       float64  `json:"score"`
	Description string   `json:"description,omitempty"`
	Columns     []string `json:"columns,omitempty"`
	MatchedOn   []string `json:"matched_on,omitempty"`
}

type joinEdgeDetail struct {
	FromTable   string   `json:"from_table"`
	FromColumns []string `json:"from_columns"`
	ToTable     string   `json:"to_table"`
	ToColumns   []string `json:"to_columns"`
	Cardinality string   `json:"cardinality,omitempty"`
	Reversed    bool     `json:"reversed"`
}

type joinPathDetail struct {
	Source string           `json:"source"`
	Target string           `json:"target"`
	Hops   int              `json:"hops"`
	Edges  []joinEdgeDetail `json:"edges"`
}

func handleJoinPath(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	catalog, ok := loadCatalog(deps, w, r)
	if !ok {
		return
	}
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if from == "" || to == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLES_REQUIRED", "from and to parameters are required", false, nil)
		return
	}

	path, err := schema.NewToolkit(catalog).FindJoinPath(from, to)
	if err != nil {
		if errors.Is(err, schema.ErrTableNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", err.Error(), false, nil)
			return
		}
		if errors.Is(err, schema.ErrNoJoinPath) {
			writeError(r.Context(), w, http.StatusNotFound, "NO_JOIN_PATH", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_LOAD_ERROR", err.Error(), true, nil)
		return
	}

	detail := joinPathDetail{
		Source: path.Source,
		Target: path.Target,
		Hops:   path.Hops(),
		Edges:  make([]joinEdgeDetail, 0, len(path.Edges)),
	}
	for _, edge := range path.Edges {
		detail.Edges = append(detail.Edges, joinEdgeDetail{
			FromTable:   edge.FromTable,
			FromColumns: edge.FromColumns,
			ToTable:     edge.ToTable,
			ToColumns:   edge.ToColumns,
			Cardinality: string(edge.Cardinality),
			Reversed:    edge.Reversed,
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

func handleReloadSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Catalogs == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema catalog is not configured", false, nil)
		return
	}
	databaseID := r.PathValue("db")
	deps.Catalogs.Invalidate(databaseID)
	catalog, err := deps.Catalogs.Load(r.Context(), databaseID)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_LOAD_ERROR", "failed to rebuild schema catalog", true, map[string]any{
			"database_id": databaseID,
			"details":     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"database_id": catalog.DatabaseID(),
		"version":     catalog.Version(),
		"tables":      len(catalog.Tables()),
	})
}
