package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/VicerInfoTech/TIF-AI/internal/auth"
)

type historyTurn struct {
	TurnID     string    `json:"turn_id"`
	Question   string    `json:"question"`
	SQL        string    `json:"sql"`
	Tables     []string  `json:"tables,omitempty"`
	RowCount   int       `json:"row_count"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "conversation history is not configured", false, nil)
		return
	}

	userID := "anonymous"
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		userID = identity.UserID
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	databaseID := strings.TrimSpace(r.URL.Query().Get("database_id"))
	if sessionID == "" || databaseID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SCOPE_REQUIRED", "session_id and database_id parameters are required", false, nil)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = parsed
	}

	turns, err := deps.History.RecentTurns(r.Context(), userID, sessionID, databaseID, limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to load conversation history", true, map[string]any{"details": err.Error()})
		return
	}

	payload := make([]historyTurn, 0, len(turns))
	for _, turn := range turns {
		payload = append(payload, historyTurn{
			TurnID:     turn.TurnID,
			Question:   turn.Question,
			SQL:        turn.SQL,
			Tables:     turn.Tables,
			RowCount:   turn.RowCount,
			DurationMs: turn.DurationMs,
			CreatedAt:  turn.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"session_id":  sessionID,
		"database_id": databaseID,
		"turns":       payload,
	})
}
