// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/genesis/genesis/internal/provider"
	"github.com/genesis/genesis/internal/store"
)

// Backends
const (
	VFSBadger    = "badger"
	VFSRedis     = "redis"
	VectorSQL    = "sql"
	VectorDgraph = "dgraph"
)

// Config holds environment configuration
type Config struct {
	HTTPAddr      string
	LogLevel      string
	ServiceSecret string

	VFSBackend    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BadgerPath    string

	DBDriver      string
	DatabaseURL   string
	VectorBackend string
	DgraphAddr    string

	Credentials provider.Credentials
	ProviderRPS float64

	StaticDir       string
	StaticURLPrefix string
	UpgradeURL      string

	OrchestratorTimeout time.Duration
	SessionTTL          time.Duration
}

// DefaultConfig returns the configuration used when no variable is set
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:            ":8080",
		LogLevel:            "info",
		VFSBackend:          VFSBadger,
		RedisAddr:           "localhost:6379",
		DBDriver:            store.DriverSQLite,
		DatabaseURL:         ":memory:",
		VectorBackend:       VectorSQL,
		DgraphAddr:          "localhost:9080",
		ProviderRPS:         5,
		StaticDir:           "./static/generated",
		StaticURLPrefix:     "/static/generated",
		UpgradeURL:          "/pricing",
		OrchestratorTimeout: 120 * time.Second,
		SessionTTL:          2 * time.Hour,
	}
}

// Load reads .env (when present) and the environment on top of the defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("Config.Load: no .env file loaded", "error", err)
	}

	c := DefaultConfig()
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.ServiceSecret = os.Getenv("SERVICE_SECRET")

	c.VFSBackend = strings.ToLower(getEnv("VFS_BACKEND", c.VFSBackend))
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = os.Getenv("REDIS_PASSWORD")
	c.BadgerPath = os.Getenv("BADGER_PATH")

	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.DBDriver = strings.ToLower(getEnv("DB_DRIVER", store.DetectDriver(c.DatabaseURL)))
	c.VectorBackend = strings.ToLower(getEnv("VECTOR_BACKEND", c.VectorBackend))
	c.DgraphAddr = getEnv("DGRAPH_ADDR", c.DgraphAddr)

	c.Credentials = provider.Credentials{
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		OllamaURL:     os.Getenv("OLLAMA_URL"),
		TavilyKey:     os.Getenv("TAVILY_API_KEY"),
		SearchBaseURL: os.Getenv("SEARCH_BASE_URL"),
	}

	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.StaticURLPrefix = getEnv("STATIC_URL_PREFIX", c.StaticURLPrefix)
	c.UpgradeURL = getEnv("UPGRADE_URL", c.UpgradeURL)

	var err error
	if c.RedisDB, err = getInt("REDIS_DB", c.RedisDB); err != nil {
		return nil, err
	}
	if c.ProviderRPS, err = getFloat("PROVIDER_RPS", c.ProviderRPS); err != nil {
		return nil, err
	}
	if c.OrchestratorTimeout, err = getDuration("ORCHESTRATOR_TIMEOUT", c.OrchestratorTimeout); err != nil {
		return nil, err
	}
	if c.SessionTTL, err = getDuration("SESSION_TTL", c.SessionTTL); err != nil {
		return nil, err
	}

	slog.Debug("Config.Load: environment loaded",
		"http_addr", c.HTTPAddr,
		"vfs_backend", c.VFSBackend,
		"db_driver", c.DBDriver,
		"vector_backend", c.VectorBackend,
		"openai_key_set", c.Credentials.OpenAIKey != "",
		"gemini_key_set", c.Credentials.GeminiKey != "",
		"tavily_key_set", c.Credentials.TavilyKey != "",
		"service_secret_set", c.ServiceSecret != "")

	return c, c.Validate()
}

// Validate rejects unknown backends and drivers
func (c *Config) Validate() error {
	switch c.VFSBackend {
	case VFSBadger, VFSRedis:
	default:
		return fmt.Errorf("unknown VFS_BACKEND %q", c.VFSBackend)
	}
	switch c.DBDriver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	switch c.VectorBackend {
	case VectorSQL, VectorDgraph:
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorBackend)
	}
	if c.ProviderRPS <= 0 {
		return fmt.Errorf("PROVIDER_RPS must be positive, got %v", c.ProviderRPS)
	}
	if c.OrchestratorTimeout <= 0 || c.SessionTTL <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level; unknown values are info
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
