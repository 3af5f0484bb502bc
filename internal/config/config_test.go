package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFromMap(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("tifai-api", lookupFromMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ProfileDev, cfg.Profile)
	assert.Equal(t, "tifai-api", cfg.Service.Name)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, "dir", cfg.SchemaSource.Kind)
	assert.Equal(t, "config/schemas", cfg.SchemaSource.Dir)
	assert.Empty(t, cfg.Databases)
	assert.Empty(t, cfg.AI.Providers)
	assert.Equal(t, 6, cfg.Pipeline.MaxCandidateTables)
	assert.Equal(t, 5, cfg.Pipeline.HistoryTurns)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, slog.LevelDebug, cfg.Observability.LogLevel)
}

func TestLoadProfileOverrides(t *testing.T) {
	cfg, err := Load("tifai-api", lookupFromMap(map[string]string{
		"TIFAI_PROFILE": "prod",
	}))
	require.NoError(t, err)

	assert.Equal(t, ProfileProd, cfg.Profile)
	assert.Equal(t, slog.LevelInfo, cfg.Observability.LogLevel)
	assert.True(t, cfg.SchemaSource.UseSSL)
}

func TestLoadInvalidProfile(t *testing.T) {
	_, err := Load("tifai-api", lookupFromMap(map[string]string{
		"TIFAI_PROFILE": "staging",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIFAI_PROFILE")
}

func TestLoadDatabases(t *testing.T) {
	cfg, err := Load("tifai-api", lookupFromMap(map[string]string{
		"TIFAI_DATABASES":                "sales, warehouse-eu",
		"TIFAI_DB_SALES_DSN":             "postgres://app@db/sales",
		"TIFAI_DB_SALES_MAX_ROWS":        "250",
		"TIFAI_DB_SALES_QUERY_TIMEOUT":   "10s",
		"TIFAI_DB_SALES_ACQUIRE_TIMEOUT": "5s",
		"TIFAI_DB_WAREHOUSE_EU_DRIVER":   "duckdb",
		"TIFAI_DB_WAREHOUSE_EU_DSN":      "/data/warehouse.duckdb",
		"TIFAI_DB_WAREHOUSE_EU_MAX_ROWS": "5000",
	}))
	require.NoError(t, err)
	require.Len(t, cfg.Databases, 2)

	sales := cfg.Databases[0]
	assert.Equal(t, "sales", sales.ID)
	assert.Equal(t, "postgres", sales.Driver)
	assert.Equal(t, "postgres://app@db/sales", sales.DSN)
	assert.Equal(t, 250, sales.MaxRows)
	assert.Equal(t, 10*time.Second, sales.QueryTimeout)
	assert.Equal(t, 5*time.Second, sales.AcquireTimeout)

	warehouse := cfg.Databases[1]
	assert.Equal(t, "warehouse-eu", warehouse.ID)
	assert.Equal(t, "duckdb", warehouse.Driver)
	assert.Equal(t, 5000, warehouse.MaxRows)
	assert.Equal(t, 30*time.Second, warehouse.QueryTimeout)
	assert.Equal(t, 2*time.Second, warehouse.AcquireTimeout)
}

func TestLoadDatabaseRequiresDSN(t *testing.T) {
	_, err := Load("tifai-api", lookupFromMap(map[string]string{
		"TIFAI_DATABASES": "sales",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIFAI_DB_SALES_DSN")
}

func TestLoadProvidersKeepOrder(t *testing.T) {
	cfg, err := Load("tifai-api", lookupFromMap(map[string]string{
		"TIFAI_AI_PROVIDERS":       "openai,groq",
		"TIFAI_AI_OPENAI_API_KEY":  "sk-test",
		"TIFAI_AI_OPENAI_MODEL":    "gpt-4o-mini",
		"TIFAI_AI_GROQ_BASE_URL":   "https://api.groq.com/openai",
		"TIFAI_AI_GROQ_API_KEY":    "gsk-test",
		"TIFAI_AI_GROQ_MODEL":      "llama-3.3-70b-versatile",
		"TIFAI_AI_ATTEMPT_TIMEOUT": "15s",
	}))
	require.NoError(t, err)
	require.Len(t, cfg.AI.Providers, 2)

	assert.Equal(t, "openai", cfg.AI.Providers[0].Name)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Providers[0].Model)
	assert.Equal(t, "groq", cfg.AI.Providers[1].Name)
	assert.Equal(t, "https://api.groq.com/openai", cfg.AI.Providers[1].BaseURL)
	assert.Equal(t, 15*time.Second, cfg.AI.AttemptTimeout)
}

func TestLoadInvalidSchemaSource(t *testing.T) {
	_, err := Load("tifai-api", lookupFromMap(map[string]string{
		"TIFAI_SCHEMA_SOURCE": "ftp",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIFAI_SCHEMA_SOURCE")
}

func TestLoadInvalidDuration(t *testing.T) {
	_, err := Load("tifai-api", lookupFromMap(map[string]string{
		"TIFAI_HTTP_READ_TIMEOUT": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIFAI_HTTP_READ_TIMEOUT")
}

func TestLoadHistory(t *testing.T) {
	cfg, err := Load("tifai-api", lookupFromMap(map[string]string{
		"TIFAI_HISTORY_ENABLED": "true",
		"TIFAI_HISTORY_DSN":     "postgres://app@db/history",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "postgres://app@db/history", cfg.History.DSN)
}
