// Package cfg holds the pcsboard application flags. Shared concerns (logging,
// http server, tracing, profiling) register their own flags from go-core.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"time"
)

// Key-value backends for favorites and the assistant conversation.
const (
	KVMemory   = "memory"
	KVPostgres = "postgres"
	KVRedis    = "redis"
)

// Config adds application-specific fields to the common cfg.Registerable and
// cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string

	WebhookURL     string
	WebhookRetries int
	StaleSeconds   int
	RefreshSeconds int

	KVBackend       string
	DatabaseURL     string
	DBMaxConns      int
	SlowQueryMillis int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisPrefix     string

	AgentWebhookURL string
	ClaudeAPIKey    string
	ClaudeModel     string

	SlackWebhookURL string
	DashboardURL    string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on mutating API routes (empty = open)")

	fs.StringVar(&c.WebhookURL, "webhook-url", "", "PCS status webhook URL")
	fs.IntVar(&c.WebhookRetries, "webhook-retries", 2, "retries after a failed PCS webhook request (0..10)")
	fs.IntVar(&c.StaleSeconds, "stale-seconds", 30, "seconds a fetched snapshot is served before refetching (1..3600)")
	fs.IntVar(&c.RefreshSeconds, "refresh-seconds", 60, "background snapshot refresh interval in seconds (0 = disabled)")

	fs.StringVar(&c.KVBackend, "kv-backend", KVMemory, "storage for favorites and conversation: memory, postgres or redis")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (kv-backend=postgres)")
	fs.IntVar(&c.DBMaxConns, "db-max-conns", 0, "maximum PostgreSQL pool connections (0 = pgx default)")
	fs.IntVar(&c.SlowQueryMillis, "slow-query-ms", 500, "log database queries slower than this many milliseconds (0 = off)")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "Redis host:port (kv-backend=redis)")
	fs.StringVar(&c.RedisPassword, "redis-password", "", "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "Redis logical database")
	fs.StringVar(&c.RedisPrefix, "redis-prefix", "pcsboard:", "prefix for Redis keys")

	fs.StringVar(&c.AgentWebhookURL, "agent-webhook-url", "", "remote assistant webhook URL")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude assistant (replaces agent-webhook-url)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")

	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for executive report notifications")
	fs.StringVar(&c.DashboardURL, "dashboard-url", "", "public dashboard URL linked from notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// PCS webhook
	if c.WebhookURL == "" {
		errs = append(errs, errors.New("WEBHOOK_URL is required"))
	} else if err := checkURL(c.WebhookURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid WEBHOOK_URL: %w", err))
	}
	if c.WebhookRetries < 0 || c.WebhookRetries > 10 {
		errs = append(errs, fmt.Errorf("invalid WEBHOOK_RETRIES %d (must be 0..10)", c.WebhookRetries))
	}
	if c.StaleSeconds <= 0 || c.StaleSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid STALE_SECONDS %d (must be 1..3600)", c.StaleSeconds))
	}
	if c.RefreshSeconds < 0 || c.RefreshSeconds > 86400 {
		errs = append(errs, fmt.Errorf("invalid REFRESH_SECONDS %d (must be 0..86400)", c.RefreshSeconds))
	}

	// Storage
	switch c.KVBackend {
	case KVMemory:
	case KVPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when KV_BACKEND=postgres"))
		}
	case KVRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when KV_BACKEND=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid KV_BACKEND %q (must be memory, postgres or redis)", c.KVBackend))
	}
	if c.DBMaxConns < 0 {
		errs = append(errs, fmt.Errorf("invalid DB_MAX_CONNS %d (must be >= 0)", c.DBMaxConns))
	}
	if c.SlowQueryMillis < 0 {
		errs = append(errs, fmt.Errorf("invalid SLOW_QUERY_MS %d (must be >= 0)", c.SlowQueryMillis))
	}
	if c.RedisDB < 0 {
		errs = append(errs, fmt.Errorf("invalid REDIS_DB %d (must be >= 0)", c.RedisDB))
	}

	// Assistant
	if c.AgentWebhookURL != "" && c.ClaudeAPIKey != "" {
		errs = append(errs, errors.New("set only one of AGENT_WEBHOOK_URL and CLAUDE_API_KEY"))
	}
	if c.AgentWebhookURL != "" {
		if err := checkURL(c.AgentWebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid AGENT_WEBHOOK_URL: %w", err))
		}
	}
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	// Notifications
	if c.SlackWebhookURL != "" {
		if err := checkURL(c.SlackWebhookURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid SLACK_WEBHOOK_URL: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Assistant names the configured assistant provider: "claude", "webhook" or
// "" when the assistant is disabled.
func (c *Config) Assistant() string {
	switch {
	case c.ClaudeAPIKey != "":
		return "claude"
	case c.AgentWebhookURL != "":
		return "webhook"
	}
	return ""
}

// StaleAfter is the snapshot cache lifetime.
func (c *Config) StaleAfter() time.Duration { return time.Duration(c.StaleSeconds) * time.Second }

// RefreshInterval is the background refresh period, zero when disabled.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSeconds) * time.Second
}

// SlowQuery is the slow query log threshold, zero when disabled.
func (c *Config) SlowQuery() time.Duration {
	return time.Duration(c.SlowQueryMillis) * time.Millisecond
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
