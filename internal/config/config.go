// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Analysis AnalysisConfig
	LLM      LLMConfig
	Search   SearchConfig
	Report   ReportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
// The database is optional; without a URL run history is kept in memory.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database URL was configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// AnalysisConfig holds upload and crew execution settings.
type AnalysisConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 25MB)
	MaxFileSize int64 `env:"ANALYSIS_MAX_FILE_SIZE" default:"26214400"`

	// MaxConcurrent is the maximum number of crews running at once (default: 2)
	MaxConcurrent int `env:"ANALYSIS_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long a run waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"ANALYSIS_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single crew kickoff (default: 10m)
	Timeout time.Duration `env:"ANALYSIS_TIMEOUT" default:"10m"`

	// PreviewRows is the number of rows shown in the dataframe preview (default: 50)
	PreviewRows int `env:"ANALYSIS_PREVIEW_ROWS" default:"50"`

	// PromptRows is the number of rows embedded in agent prompts (default: 30)
	PromptRows int `env:"ANALYSIS_PROMPT_ROWS" default:"30"`

	// HistorySize bounds the in-memory run history when no database is set (default: 100)
	HistorySize int `env:"ANALYSIS_HISTORY_SIZE" default:"100"`
}

// LLMConfig selects and configures the language-model provider.
type LLMConfig struct {
	// Provider is one of: openai, openrouter, anthropic (default: openai)
	Provider string `env:"LLM_PROVIDER" default:"openai"`

	// Model is the provider model id (default: gpt-4o-mini)
	Model string `env:"LLM_MODEL" default:"gpt-4o-mini"`

	// APIKey authenticates against the provider (required)
	APIKey string `env:"LLM_API_KEY" envAlt:"OPENAI_API_KEY" required:"true"`

	// BaseURL overrides the provider endpoint (optional)
	BaseURL string `env:"LLM_BASE_URL"`

	// Temperature is the sampling temperature (default: 0.3)
	Temperature float64 `env:"LLM_TEMPERATURE" default:"0.3"`

	// MaxTokens caps each completion (default: 1500)
	MaxTokens int `env:"LLM_MAX_TOKENS" default:"1500"`

	// Timeout is the per-request HTTP timeout (default: 90s)
	Timeout time.Duration `env:"LLM_TIMEOUT" default:"90s"`

	// MaxRetries is the retry budget for 429/5xx responses (default: 3)
	MaxRetries int `env:"LLM_MAX_RETRIES" default:"3"`

	// MaxIter bounds tool round-trips per task (default: 5)
	MaxIter int `env:"CREW_MAX_ITER" default:"5"`

	// Verbose logs every agent step at info level (default: true)
	Verbose bool `env:"CREW_VERBOSE" default:"true"`
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	// APIKey is the Serper.dev key; the search tool degrades gracefully without it
	APIKey string `env:"SERPER_API_KEY"`

	// URL is the search endpoint (default: https://google.serper.dev/search)
	URL string `env:"SERPER_URL" default:"https://google.serper.dev/search"`

	// Results is the number of organic results returned to the agent (default: 5)
	Results int `env:"SERPER_RESULTS" default:"5"`
}

// ReportConfig controls where reports are written and how long they are kept.
type ReportConfig struct {
	// Dir is the root directory for per-run report files (default: reports)
	Dir string `env:"REPORT_DIR" default:"reports"`

	// FileName is the report file written by the reporting task
	FileName string `env:"REPORT_FILE_NAME" default:"data-analysis-report.md"`

	// RetentionDays is how long reports and history are kept (default: 30)
	RetentionDays int `env:"REPORT_RETENTION_DAYS" default:"30"`

	// CheckInterval is how often the retention job runs (default: 24h)
	CheckInterval time.Duration `env:"REPORT_CHECK_INTERVAL" default:"24h"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
