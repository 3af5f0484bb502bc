// Package api exposes the HTTP surface: the question endpoint, schema
// inspection routes and conversation history, plus health, readiness and
// metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VicerInfoTech/TIF-AI/internal/config"
	"github.com/VicerInfoTech/TIF-AI/internal/history"
	"github.com/VicerInfoTech/TIF-AI/internal/observability"
	"github.com/VicerInfoTech/TIF-AI/internal/pipeline"
	"github.com/VicerInfoTech/TIF-AI/internal/schema"
)

type ReadinessCheck func(ctx context.Context) error

// QueryRunner is the pipeline as the handlers see it.
type QueryRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Pipeline          QueryRunner
	Catalogs          *schema.Cache
	History           history.Store
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	limits := queryLimits(cfg)
	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(deps, limits, w, r)
	})
	protected.HandleFunc("GET /v1/schema/{db}/tables", func(w http.ResponseWriter, r *http.Request) {
		handleListTables(deps, w, r)
	})
	protected.HandleFunc("GET /v1/schema/{db}/tables/{table}", func(w http.ResponseWriter, r *http.Request) {
		handleGetTable(deps, w, r)
	})
	protected.HandleFunc("GET /v1/schema/{db}/search", func(w http.ResponseWriter, r *http.Request) {
		handleSearchTables(deps, w, r)
	})
	protected.HandleFunc("GET /v1/schema/{db}/join-path", func(w http.ResponseWriter, r *http.Request) {
		handleJoinPath(deps, w, r)
	})
	protected.HandleFunc("POST /v1/schema/{db}/reload", func(w http.ResponseWriter, r *http.Request) {
		handleReloadSchema(deps, w, r)
	})
	protected.HandleFunc("GET /v1/history", func(w http.ResponseWriter, r *http.Request) {
		handleHistory(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /v1/query", protectedHandler)
	mux.Handle("GET /v1/schema/{db}/tables", protectedHandler)
	mux.Handle("GET /v1/schema/{db}/tables/{table}", protectedHandler)
	mux.Handle("GET /v1/schema/{db}/search", protectedHandler)
	mux.Handle("GET /v1/schema/{db}/join-path", protectedHandler)
	mux.Handle("POST /v1/schema/{db}/reload", protectedHandler)
	mux.Handle("GET /v1/history", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func CheckSchemaSourceConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		switch cfg.SchemaSource.Kind {
		case "dir":
			if cfg.SchemaSource.Dir == "" {
				return errors.New("schema directory is not configured")
			}
		case "s3":
			if cfg.SchemaSource.Endpoint == "" {
				return errors.New("schema object store endpoint is not configured")
			}
			if cfg.SchemaSource.Bucket == "" {
				return errors.New("schema object store bucket is not configured")
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
