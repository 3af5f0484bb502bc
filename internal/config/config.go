package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	SchemaSource  SchemaSourceConfig
	Databases     []DatabaseConfig
	AI            AIConfig
	Pipeline      PipelineConfig
	History       HistoryConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SchemaSourceConfig selects where schema artifacts come from: a local
// directory ("dir") or an S3-compatible object store ("s3").
type SchemaSourceConfig struct {
	Kind            string
	Dir             string
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

// DatabaseConfig describes one queryable target database. The identifier is
// what callers pass as database_id and what names the schema artifact
// directory.
type DatabaseConfig struct {
	ID              string
	Driver          string
	DSN             string
	MaxRows         int
	QueryTimeout    time.Duration
	AcquireTimeout  time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// ProviderConfig describes one entry of the ordered provider roster. All
// entries speak the OpenAI-compatible chat protocol.
type ProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Model   string
}

type AIConfig struct {
	Providers      []ProviderConfig
	Temperature    float64
	AttemptTimeout time.Duration
}

type PipelineConfig struct {
	MaxCandidateTables int
	HistoryTurns       int
}

type HistoryConfig struct {
	Enabled         bool
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// AuthConfig controls API key authentication. StaticKeys is a comma-separated
// list of key:user entries; each authenticated request runs with that user's
// conversation scope.
type AuthConfig struct {
	Required   bool
	StaticKeys string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("TIFAI_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid TIFAI_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "TIFAI_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TIFAI_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TIFAI_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TIFAI_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TIFAI_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TIFAI_SCHEMA_SOURCE", &cfg.SchemaSource.Kind); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TIFAI_SCHEMA_DIR", &cfg.SchemaSource.Dir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TIFAI_SCHEMA_S3_ENDPOINT", &cfg.SchemaSource.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TIFAI_SCHEMA_S3_REGION", &cfg.SchemaSource.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TIFAI_SCHEMA_S3_BUCKET", &cfg.SchemaSource.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TIFAI_SCHEMA_S3_ACCESS_KEY", &cfg.SchemaSource.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TIFAI_SCHEMA_S3_SECRET_KEY", &cfg.SchemaSource.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TIFAI_SCHEMA_S3_USE_SSL", &cfg.SchemaSource.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TIFAI_SCHEMA_S3_PREFIX", &cfg.SchemaSource.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyDatabases(lookup, &cfg.Databases); err != nil {
		return Config{}, err
	}
	if err := applyProviders(lookup, &cfg.AI.Providers); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "TIFAI_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TIFAI_AI_ATTEMPT_TIMEOUT", &cfg.AI.AttemptTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TIFAI_PIPELINE_MAX_CANDIDATE_TABLES", &cfg.Pipeline.MaxCandidateTables); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TIFAI_PIPELINE_HISTORY_TURNS", &cfg.Pipeline.HistoryTurns); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TIFAI_HISTORY_ENABLED", &cfg.History.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TIFAI_HISTORY_DSN", &cfg.History.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TIFAI_HISTORY_MAX_OPEN_CONNS", &cfg.History.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TIFAI_HISTORY_MAX_IDLE_CONNS", &cfg.History.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TIFAI_HISTORY_CONN_MAX_IDLE_TIME", &cfg.History.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TIFAI_HISTORY_CONN_MAX_LIFETIME", &cfg.History.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TIFAI_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TIFAI_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TIFAI_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "TIFAI_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	switch cfg.SchemaSource.Kind {
	case "dir", "s3":
	default:
		return Config{}, fmt.Errorf("invalid TIFAI_SCHEMA_SOURCE: %q", cfg.SchemaSource.Kind)
	}
	return cfg, nil
}

// applyDatabases reads the target database roster. TIFAI_DATABASES is a
// comma-separated list of identifiers; each identifier I has its settings
// under TIFAI_DB_<I>_* with the identifier upper-cased and dashes mapped to
// underscores.
func applyDatabases(lookup LookupFunc, dst *[]DatabaseConfig) error {
	raw, ok := lookup("TIFAI_DATABASES")
	if !ok {
		return nil
	}
	var databases []DatabaseConfig
	for _, id := range splitList(raw) {
		prefix := "TIFAI_DB_" + envSegment(id) + "_"
		db := DatabaseConfig{
			ID:             id,
			Driver:         "postgres",
			MaxRows:        1000,
			QueryTimeout:   30 * time.Second,
			AcquireTimeout: 2 * time.Second,
			MaxOpenConns:   5,
			MaxIdleConns:   2,
		}
		if err := applyString(lookup, prefix+"DRIVER", &db.Driver); err != nil {
			return err
		}
		if err := applyString(lookup, prefix+"DSN", &db.DSN); err != nil {
			return err
		}
		if db.DSN == "" {
			return fmt.Errorf("%sDSN is required for database %q", prefix, id)
		}
		if err := applyInt(lookup, prefix+"MAX_ROWS", &db.MaxRows); err != nil {
			return err
		}
		if err := applyDuration(lookup, prefix+"QUERY_TIMEOUT", &db.QueryTimeout); err != nil {
			return err
		}
		if err := applyDuration(lookup, prefix+"ACQUIRE_TIMEOUT", &db.AcquireTimeout); err != nil {
			return err
		}
		if err := applyInt(lookup, prefix+"MAX_OPEN_CONNS", &db.MaxOpenConns); err != nil {
			return err
		}
		if err := applyInt(lookup, prefix+"MAX_IDLE_CONNS", &db.MaxIdleConns); err != nil {
			return err
		}
		if err := applyDuration(lookup, prefix+"CONN_MAX_IDLE_TIME", &db.ConnMaxIdleTime); err != nil {
			return err
		}
		if err := applyDuration(lookup, prefix+"CONN_MAX_LIFETIME", &db.ConnMaxLifetime); err != nil {
			return err
		}
		databases = append(databases, db)
	}
	*dst = databases
	return nil
}

// applyProviders reads the ordered provider roster the same way:
// TIFAI_AI_PROVIDERS lists names in fallback order, each configured under
// TIFAI_AI_<NAME>_*.
func applyProviders(lookup LookupFunc, dst *[]ProviderConfig) error {
	raw, ok := lookup("TIFAI_AI_PROVIDERS")
	if !ok {
		return nil
	}
	var providers []ProviderConfig
	for _, name := range splitList(raw) {
		prefix := "TIFAI_AI_" + envSegment(name) + "_"
		p := ProviderConfig{Name: name}
		if err := applyString(lookup, prefix+"BASE_URL", &p.BaseURL); err != nil {
			return err
		}
		if err := applyString(lookup, prefix+"API_KEY", &p.APIKey); err != nil {
			return err
		}
		if err := applyString(lookup, prefix+"MODEL", &p.Model); err != nil {
			return err
		}
		providers = append(providers, p)
	}
	*dst = providers
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "tifai-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		SchemaSource: SchemaSourceConfig{
			Kind:   "dir",
			Dir:    "config/schemas",
			Region: "us-east-1",
		},
		AI: AIConfig{
			Temperature:    0.1,
			AttemptTimeout: 20 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxCandidateTables: 6,
			HistoryTurns:       5,
		},
		History: HistoryConfig{
			Enabled:         false,
			MaxOpenConns:    5,
			MaxIdleConns:    5,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.SchemaSource.UseSSL = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func envSegment(id string) string {
	segment := strings.ToUpper(strings.TrimSpace(id))
	segment = strings.ReplaceAll(segment, "-", "_")
	return segment
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
