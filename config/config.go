// Package config loads process configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	posauth "github.com/vndocker/pos-AI-community"
	"github.com/vndocker/pos-AI-community/activity"
	"github.com/vndocker/pos-AI-community/throttle"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Executors.
const (
	ExecutorLocal    = "local"
	ExecutorTemporal = "temporal"
)

// Config is the process configuration.
type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR" env-default:":8000"`
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"json"`

	Store       string `env:"STORE" env-default:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisAddr   string `env:"REDIS_ADDR" env-default:"localhost:6379"`

	Executor          string `env:"EXECUTOR" env-default:"local"`
	OrchestratorURL   string `env:"ORCHESTRATOR_URL" env-default:"localhost:7233"`
	TemporalNamespace string `env:"TEMPORAL_NAMESPACE" env-default:"default"`
	TaskQueue         string `env:"TASK_QUEUE" env-default:"auth-queue"`

	TurnstileSecret string `env:"TURNSTILE_SECRET"`
	TurnstileURL    string `env:"TURNSTILE_URL" env-default:"https://challenges.cloudflare.com/turnstile/v0/siteverify"`
	// AllowTestSecret lets an empty TurnstileSecret fall back to
	// Cloudflare's always-pass test secret. Development only.
	AllowTestSecret bool `env:"TURNSTILE_ALLOW_TEST_SECRET" env-default:"false"`

	Mail Mail

	OTPTTL          time.Duration `env:"OTP_TTL" env-default:"5m"`
	SignInRate      float64       `env:"SIGNIN_RATE" env-default:"0.0833"`
	SignInBurst     int           `env:"SIGNIN_BURST" env-default:"3"`
	VerifyRate      float64       `env:"VERIFY_RATE" env-default:"0.0833"`
	VerifyBurst     int           `env:"VERIFY_BURST" env-default:"5"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	RunRetention    time.Duration `env:"RUN_RETENTION" env-default:"24h"`
	PruneInterval   time.Duration `env:"PRUNE_INTERVAL" env-default:"1h"`

	// AdminToken enables the /v1/runs inspection routes, guarded by
	// "Authorization: Bearer <AdminToken>". Empty leaves them unmounted.
	AdminToken string `env:"ADMIN_TOKEN"`

	KafkaBrokers    []string `env:"KAFKA_BROKERS" env-separator:","`
	KafkaAuditTopic string   `env:"KAFKA_AUDIT_TOPIC" env-default:"posauth.audit"`

	OTLPEndpoint string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	CORSOrigins  []string `env:"CORS_ORIGINS" env-separator:","`
}

// Mail configures code delivery. An empty Username selects the log
// mailer, which only writes messages to the log.
type Mail struct {
	Provider string `env:"MAIL_PROVIDER" env-default:"custom"`
	Server   string `env:"MAIL_SERVER"`
	Port     int    `env:"MAIL_PORT"`
	Username string `env:"MAIL_USERNAME"`
	Password string `env:"MAIL_PASSWORD"`
	From     string `env:"MAIL_FROM"`
	TLS      string `env:"MAIL_TLS" env-default:"starttls"`
}

// Load reads envFiles (missing files are skipped) and then the process
// environment. Variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values and required combinations.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown STORE %q", c.Store)
	}
	switch c.Executor {
	case ExecutorLocal, ExecutorTemporal:
	default:
		return fmt.Errorf("config: unknown EXECUTOR %q", c.Executor)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown LOG_FORMAT %q", c.LogFormat)
	}
	switch activity.TLSMode(c.Mail.TLS) {
	case activity.TLSStartTLS, activity.TLSImplicit, activity.TLSNone:
	default:
		return fmt.Errorf("config: unknown MAIL_TLS %q", c.Mail.TLS)
	}
	if c.OTPTTL <= 0 {
		return errors.New("config: OTP_TTL must be positive")
	}
	if c.TurnstileSecret == "" && !c.AllowTestSecret {
		return errors.New("config: TURNSTILE_SECRET is required (set TURNSTILE_ALLOW_TEST_SECRET=true to use the test secret)")
	}
	if c.RunRetention < 0 {
		return errors.New("config: RUN_RETENTION must not be negative")
	}
	return nil
}

// SMTP returns the relay settings, or false when mail delivery is not
// configured. Named providers fill in host and port unless overridden.
func (c *Config) SMTP() (activity.SMTPConfig, bool) {
	if c.Mail.Username == "" {
		return activity.SMTPConfig{}, false
	}
	smtp, ok := activity.SMTPPreset(c.Mail.Provider)
	if !ok {
		smtp = activity.SMTPConfig{TLS: activity.TLSMode(c.Mail.TLS)}
	}
	if c.Mail.Server != "" {
		smtp.Host = c.Mail.Server
	}
	if c.Mail.Port != 0 {
		smtp.Port = c.Mail.Port
	}
	smtp.Username = c.Mail.Username
	smtp.Password = c.Mail.Password
	smtp.From = c.Mail.From
	if smtp.From == "" {
		smtp.From = c.Mail.Username
	}
	return smtp, true
}

// Throttle returns the per-email sign-in limits.
func (c *Config) Throttle() throttle.Config {
	t := throttle.DefaultConfig()
	t.Rate = c.SignInRate
	t.Burst = c.SignInBurst
	return t
}

// VerifyThrottle returns the per-email verification limits.
func (c *Config) VerifyThrottle() throttle.Config {
	t := throttle.DefaultConfig()
	t.Rate = c.VerifyRate
	t.Burst = c.VerifyBurst
	return t
}

// Engine returns the engine configuration.
func (c *Config) Engine() posauth.Config {
	e := posauth.DefaultConfig()
	e.TaskQueue = c.TaskQueue
	e.CodeTTL = c.OTPTTL
	e.ShutdownTimeout = c.ShutdownTimeout
	e.RunRetention = c.RunRetention
	e.PruneInterval = c.PruneInterval
	return e
}
