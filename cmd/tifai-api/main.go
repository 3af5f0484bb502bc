package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VicerInfoTech/TIF-AI/internal/api"
	"github.com/VicerInfoTech/TIF-AI/internal/auth"
	"github.com/VicerInfoTech/TIF-AI/internal/config"
	"github.com/VicerInfoTech/TIF-AI/internal/executor"
	"github.com/VicerInfoTech/TIF-AI/internal/history"
	historypostgres "github.com/VicerInfoTech/TIF-AI/internal/history/postgres"
	"github.com/VicerInfoTech/TIF-AI/internal/observability"
	"github.com/VicerInfoTech/TIF-AI/internal/pipeline"
	"github.com/VicerInfoTech/TIF-AI/internal/provider"
	"github.com/VicerInfoTech/TIF-AI/internal/schema"
	"github.com/VicerInfoTech/TIF-AI/internal/schemasource"
	s3store "github.com/VicerInfoTech/TIF-AI/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("tifai-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx := context.Background()

	source, err := schemaSource(cfg)
	if err != nil {
		logger.Error("failed to initialize schema source", slog.Any("error", err))
		os.Exit(1)
	}
	catalogs := schema.NewCache(source)

	registry := executor.NewRegistry()
	var boundaries []*executor.SQLBoundary
	for _, db := range cfg.Databases {
		boundary, err := executor.Open(ctx, executor.Config{
			Driver:          db.Driver,
			DSN:             db.DSN,
			MaxOpenConns:    db.MaxOpenConns,
			MaxIdleConns:    db.MaxIdleConns,
			ConnMaxIdleTime: db.ConnMaxIdleTime,
			ConnMaxLifetime: db.ConnMaxLifetime,
			AcquireTimeout:  db.AcquireTimeout,
		})
		if err != nil {
			logger.Error("failed to open target database",
				slog.String("database_id", db.ID),
				slog.Any("error", err),
			)
			os.Exit(1)
		}
		boundaries = append(boundaries, boundary)
		registry.Register(db.ID, boundary)
	}
	defer func() {
		for _, boundary := range boundaries {
			_ = boundary.Close()
		}
	}()

	providers := make([]provider.Provider, 0, len(cfg.AI.Providers))
	for _, pc := range cfg.AI.Providers {
		prov, err := provider.NewOpenAIProvider(provider.OpenAIConfig{
			Name:        pc.Name,
			BaseURL:     pc.BaseURL,
			APIKey:      pc.APIKey,
			Model:       pc.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.AttemptTimeout,
		})
		if err != nil {
			logger.Error("failed to initialize provider",
				slog.String("provider", pc.Name),
				slog.Any("error", err),
			)
			os.Exit(1)
		}
		providers = append(providers, prov)
	}

	var historyStore history.Store
	if cfg.History.Enabled {
		historyDB, err := historypostgres.Open(ctx, historypostgres.DBConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyDB.Close() }()
		store := historypostgres.NewStore(historyDB)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure history schema", slog.Any("error", err))
			os.Exit(1)
		}
		historyStore = store
	}

	runner := pipeline.New(pipeline.Options{
		Catalogs:           catalogs,
		Providers:          providers,
		Executors:          registry,
		History:            historyStore,
		Logger:             logger,
		MaxCandidateTables: cfg.Pipeline.MaxCandidateTables,
		HistoryTurns:       cfg.Pipeline.HistoryTurns,
		AttemptTimeout:     cfg.AI.AttemptTimeout,
	})

	deps := api.Dependencies{
		Logger:            logger,
		Pipeline:          runner,
		Catalogs:          catalogs,
		History:           historyStore,
		Readiness:         api.CheckSchemaSourceConfig(cfg),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-runCtx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func schemaSource(cfg config.Config) (schema.Source, error) {
	if cfg.SchemaSource.Kind == "s3" {
		store, err := s3store.New(s3store.Config{
			Endpoint:        cfg.SchemaSource.Endpoint,
			Region:          cfg.SchemaSource.Region,
			Bucket:          cfg.SchemaSource.Bucket,
			AccessKeyID:     cfg.SchemaSource.AccessKeyID,
			SecretAccessKey: cfg.SchemaSource.SecretAccessKey,
			UseSSL:          cfg.SchemaSource.UseSSL,
			Prefix:          cfg.SchemaSource.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return schemasource.NewObjectSource(store), nil
	}
	return schemasource.NewDirSource(cfg.SchemaSource.Dir), nil
}
