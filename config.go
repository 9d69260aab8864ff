package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cart-recovery-service/database"
	awspkg "cart-recovery-service/pkg/aws"
	"cart-recovery-service/services"
)

const (
	FeedStream = "stream"
	FeedPoll   = "poll"
	FeedRedis  = "redis"
)

// Options are the command-line switches that shape the config.
type Options struct {
	TestMode bool
	Debug    bool
}

// Config holds all configuration for the cart recovery service.
type Config struct {
	Env          string
	Debug        bool
	TestMode     bool
	Timeout      time.Duration
	SummaryEvery int

	SlackWebhookURL string
	SlackTimeout    time.Duration
	SlackRate       float64

	FeedMode     string
	FirebaseURL  string
	FirebasePath string
	FirebaseAuth string
	PollInterval time.Duration
	RedisURL     string

	DBDriver         string
	DBDSN            string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	APIEnabled         bool
	Port               string
	AllowedOrigins     []string
	RateLimitPerMinute int
	DashboardTZ        *time.Location

	SNSTopicArn         string
	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
}

// Database maps the DB settings onto the database package config.
func (c *Config) Database() database.Config {
	return database.Config{
		Driver:   c.DBDriver,
		DSN:      c.DBDSN,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		Name:     c.PostgresDB,
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		SSLMode:  c.PostgresSSLMode,
		TimeZone: c.PostgresTimeZone,
	}
}

// NeedsAWS reports whether any AWS integration is configured.
func (c *Config) NeedsAWS() bool {
	return c.CloudWatchEnabled || c.SNSTopicArn != ""
}

// LoadConfig reads configuration from environment variables with optional
// Secrets Manager override.
func LoadConfig(opts Options) (*Config, error) {
	cfg := &Config{
		Env:          getEnv("APP_ENV", "development"),
		Debug:        opts.Debug || getEnvBool("DEBUG", false),
		TestMode:     opts.TestMode,
		SummaryEvery: services.DefaultSummaryEvery,

		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),

		FeedMode:     strings.ToLower(getEnv("FEED_MODE", FeedStream)),
		FirebaseURL:  os.Getenv("FIREBASE_DATABASE_URL"),
		FirebasePath: getEnv("FIREBASE_PATH", "checkout_sessions"),
		FirebaseAuth: os.Getenv("FIREBASE_AUTH"),
		RedisURL:     os.Getenv("REDIS_URL"),

		DBDriver:         getEnv("DB_DRIVER", database.DriverSQLite),
		DBDSN:            os.Getenv("DB_DSN"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "America/Sao_Paulo"),

		APIEnabled:     getEnvBool("API_ENABLED", true),
		Port:           getEnv("PORT", "8090"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		SNSTopicArn:         os.Getenv("SNS_TOPIC_ARN"),
		CloudWatchEnabled:   getEnvBool("CLOUDWATCH_ENABLED", false),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "CartRecovery"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/cart-recovery/service"),
	}

	var err error
	if cfg.Timeout, err = getEnvDuration("ABANDONED_TIMEOUT", services.DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.TestMode {
		cfg.Timeout = services.TestModeTimeout
	}
	if cfg.SlackTimeout, err = getEnvDuration("SLACK_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getEnvDuration("POLL_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SlackRate, err = getEnvFloat("SLACK_RATE", 1); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, err
	}
	if cfg.SummaryEvery, err = getEnvInt("SUMMARY_EVERY", services.DefaultSummaryEvery); err != nil {
		return nil, err
	}
	if cfg.DashboardTZ, err = time.LoadLocation(getEnv("DASHBOARD_TZ", "America/Sao_Paulo")); err != nil {
		return nil, fmt.Errorf("invalid DASHBOARD_TZ: %w", err)
	}

	// Override secrets from Secrets Manager when running on AWS
	if getEnvBool("AWS_USE_SECRETS", false) {
		if awsCfg, err := awspkg.LoadAWSConfig(context.Background()); err == nil {
			applySecrets(context.Background(), cfg, awspkg.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applySecrets(ctx context.Context, cfg *Config, sm awspkg.SecretGetter) {
	if v, err := sm.GetSecret(ctx, "cart-recovery/SLACK_WEBHOOK_URL"); err == nil && v != "" {
		cfg.SlackWebhookURL = v
	}
	if v, err := sm.GetSecret(ctx, "cart-recovery/FIREBASE_AUTH"); err == nil && v != "" {
		cfg.FirebaseAuth = v
	}

	dbjson, err := sm.GetSecret(ctx, "cart-recovery/DB_CREDENTIALS")
	if err != nil || dbjson == "" {
		return
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(dbjson), &m); err != nil {
		return
	}
	for key, dst := range map[string]*string{
		"POSTGRES_USER":     &cfg.PostgresUser,
		"POSTGRES_PASSWORD": &cfg.PostgresPassword,
		"POSTGRES_DB":       &cfg.PostgresDB,
		"POSTGRES_HOST":     &cfg.PostgresHost,
		"POSTGRES_PORT":     &cfg.PostgresPort,
	} {
		if v := m[key]; v != "" {
			*dst = v
		}
	}
}

func (c *Config) validate() error {
	if c.SlackWebhookURL == "" {
		return fmt.Errorf("SLACK_WEBHOOK_URL is required")
	}
	switch c.FeedMode {
	case FeedStream, FeedPoll:
		if c.FirebaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL is required for feed mode %q", c.FeedMode)
		}
	case FeedRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for feed mode %q", c.FeedMode)
		}
	default:
		return fmt.Errorf("unknown FEED_MODE %q", c.FeedMode)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("ABANDONED_TIMEOUT must be positive")
	}
	if c.SlackRate <= 0 {
		return fmt.Errorf("SLACK_RATE must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
