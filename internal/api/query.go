package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/VicerInfoTech/TIF-AI/internal/auth"
	"github.com/VicerInfoTech/TIF-AI/internal/config"
	"github.com/VicerInfoTech/TIF-AI/internal/format"
	"github.com/VicerInfoTech/TIF-AI/internal/pipeline"
)

// queryLimit is the per-database default and ceiling for the row count and
// execution time handed to the executor. Caller values below the ceiling are
// honoured; omitted or excessive values fall back to the configured limit.
type queryLimit struct {
	maxRows int
	timeout time.Duration
}

func queryLimits(cfg config.Config) map[string]queryLimit {
	limits := make(map[string]queryLimit, len(cfg.Databases))
	for _, db := range cfg.Databases {
		limits[db.ID] = queryLimit{maxRows: db.MaxRows, timeout: db.QueryTimeout}
	}
	return limits
}

type queryRequest struct {
	Question   string `json:"question"`
	DatabaseID string `json:"database_id"`
	SessionID  string `json:"session_id"`
	Format     string `json:"format"`
	MaxRows    int    `json:"max_rows"`
	TimeoutMs  int    `json:"timeout_ms"`
}

type queryResponse struct {
	SQL               string          `json:"sql"`
	Tables            []string        `json:"tables"`
	ExcludedTables    []string        `json:"excluded_tables,omitempty"`
	UnmatchedEntities []string        `json:"unmatched_entities,omitempty"`
	RowCount          int             `json:"row_count"`
	Truncated         bool            `json:"truncated"`
	DurationMs        int64           `json:"duration_ms"`
	Results           json.RawMessage `json:"results"`
}

func handleQuery(deps Dependencies, limits map[string]queryLimit, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query pipeline is not configured", false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	if strings.TrimSpace(request.DatabaseID) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "DATABASE_REQUIRED", "database_id is required", false, nil)
		return
	}
	target, err := format.ParseTarget(request.Format)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), false, nil)
		return
	}

	userID := "anonymous"
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		userID = identity.UserID
	}

	maxRows := request.MaxRows
	timeout := time.Duration(request.TimeoutMs) * time.Millisecond
	if limit, ok := limits[request.DatabaseID]; ok {
		if maxRows <= 0 || (limit.maxRows > 0 && maxRows > limit.maxRows) {
			maxRows = limit.maxRows
		}
		if timeout <= 0 || (limit.timeout > 0 && timeout > limit.timeout) {
			timeout = limit.timeout
		}
	}

	resp, err := deps.Pipeline.Run(r.Context(), pipeline.Request{
		Question:   request.Question,
		DatabaseID: request.DatabaseID,
		UserID:     userID,
		SessionID:  request.SessionID,
		Format:     target,
		MaxRows:    maxRows,
		Timeout:    timeout,
	})
	if err != nil {
		writePipelineError(w, r, request, err)
		return
	}

	if target != format.TargetJSON {
		w.Header().Set("Content-Type", resp.ContentType)
		w.Header().Set("X-Generated-SQL", strings.ReplaceAll(resp.SQL, "\n", " "))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp.Body)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		SQL:               resp.SQL,
		Tables:            resp.Tables,
		ExcludedTables:    resp.ExcludedTables,
		UnmatchedEntities: resp.UnmatchedEntities,
		RowCount:          resp.RowCount,
		Truncated:         resp.Truncated,
		DurationMs:        resp.Duration.Milliseconds(),
		Results:           json.RawMessage(resp.Body),
	})
}

// writePipelineError maps each failure kind to an HTTP status. Every failure
// payload echoes the question and database identifier; the rejected statement
// of a validation failure stays out of the payload so unvetted SQL never
// reaches the caller. Retryability follows the error's own judgement so
// clients can back off selectively.
func writePipelineError(w http.ResponseWriter, r *http.Request, request queryRequest, err error) {
	extra := map[string]any{
		"question":    request.Question,
		"database_id": request.DatabaseID,
	}

	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(r.Context(), w, http.StatusRequestTimeout, "REQUEST_CANCELLED", "request cancelled", true, extra)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL", err.Error(), false, extra)
		return
	}

	status := http.StatusInternalServerError
	switch perr.Kind {
	case pipeline.KindSchemaLoad:
		status = http.StatusInternalServerError
	case pipeline.KindAllProvidersExhausted:
		status = http.StatusBadGateway
	case pipeline.KindNoUsableSchema, pipeline.KindValidationRejected:
		status = http.StatusUnprocessableEntity
	case pipeline.KindExecutionFailed:
		status = http.StatusBadRequest
	case pipeline.KindResourceExhausted:
		status = http.StatusServiceUnavailable
	}

	if perr.Question != "" {
		extra["question"] = perr.Question
	}
	if perr.DatabaseID != "" {
		extra["database_id"] = perr.DatabaseID
	}
	if perr.Query != "" && perr.Kind != pipeline.KindValidationRejected {
		extra["sql"] = perr.Query
	}
	if len(perr.Providers) > 0 {
		extra["providers"] = perr.Providers
	}
	if perr.Reason != "" {
		extra["reason"] = perr.Reason
	}
	writeError(r.Context(), w, status, strings.ToUpper(string(perr.Kind)), perr.Message, perr.Retryable(), extra)
}
