package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/walletlens/service/analysis"
	"github.com/brojonat/walletlens/service/retrieval"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr  string
	MetricsAddr string
	LogLevel    string

	// Database configuration (optional; reports are not persisted without it)
	DatabaseURL string

	// NATS configuration (optional; reports are not published without it)
	NATSURL string

	// Solana configuration. Several endpoints may be given comma-separated;
	// each RPC call goes to one of them at random.
	SolanaRPCURLs []string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
	RefreshSchedule   string

	// Mint activity path
	MintBatchDelay time.Duration
	MintMaxRetries int

	// Volume analysis path
	VolumeBatchDelay time.Duration
	VolumeMaxRetries int

	// Shared retrieval settings
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	FetchBatchSize    int
	MaxPages          int
	WalletConcurrency int
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Solana configuration
	rpcURLs := os.Getenv("SOLANA_RPC_URL")
	if rpcURLs == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	} else {
		cfg.SolanaRPCURLs = splitList(rpcURLs)
		for _, u := range cfg.SolanaRPCURLs {
			if err := validateRPCURL(u); err != nil {
				errs = append(errs, fmt.Errorf("SOLANA_RPC_URL: %w", err))
			}
		}
	}

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "walletlens-refresh")
	cfg.RefreshSchedule = getEnvOrDefault("REFRESH_SCHEDULE", "*/30 * * * *")

	// Retrieval tuning
	durations := []struct {
		key, def string
		dst      *time.Duration
	}{
		{"MINT_BATCH_DELAY", "500ms", &cfg.MintBatchDelay},
		{"VOLUME_BATCH_DELAY", "300ms", &cfg.VolumeBatchDelay},
		{"RETRY_BASE_DELAY", "1s", &cfg.RetryBaseDelay},
		{"RETRY_MAX_DELAY", "10s", &cfg.RetryMaxDelay},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*d.dst = v
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"MINT_MAX_RETRIES", retrieval.DefaultMaxAttempts, &cfg.MintMaxRetries},
		{"VOLUME_MAX_RETRIES", retrieval.DefaultMaxAttempts, &cfg.VolumeMaxRetries},
		{"FETCH_BATCH_SIZE", retrieval.DefaultBatchSize, &cfg.FetchBatchSize},
		{"MAX_PAGES", retrieval.DefaultMaxPages, &cfg.MaxPages},
		{"WALLET_CONCURRENCY", analysis.DefaultWalletConcurrency, &cfg.WalletConcurrency},
	}
	for _, i := range ints {
		v, err := parseInt(i.key, i.def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*i.dst = v
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SolanaRPCURLs is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if c.MintMaxRetries < 1 || c.VolumeMaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max retries must be at least 1"))
	}

	if c.MintBatchDelay < 0 || c.VolumeBatchDelay < 0 {
		errs = append(errs, fmt.Errorf("batch delays cannot be negative"))
	}

	if c.RetryBaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("RetryBaseDelay must be positive"))
	}

	if c.RetryMaxDelay < c.RetryBaseDelay {
		errs = append(errs, fmt.Errorf("RetryMaxDelay (%v) cannot be less than RetryBaseDelay (%v)",
			c.RetryMaxDelay, c.RetryBaseDelay))
	}

	if c.FetchBatchSize < 1 {
		errs = append(errs, fmt.Errorf("FetchBatchSize must be at least 1"))
	}

	if c.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("MaxPages must be at least 1"))
	}

	if c.WalletConcurrency < 1 {
		errs = append(errs, fmt.Errorf("WalletConcurrency must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// AnalysisConfig maps the retrieval settings onto the per-path engine options.
func (c *Config) AnalysisConfig() analysis.Config {
	ac := analysis.DefaultConfig()
	ac.WalletConcurrency = c.WalletConcurrency

	ac.MintOptions.BatchDelay = c.MintBatchDelay
	ac.MintOptions.Retry.MaxAttempts = c.MintMaxRetries
	ac.VolumeOptions.BatchDelay = c.VolumeBatchDelay
	ac.VolumeOptions.Retry.MaxAttempts = c.VolumeMaxRetries

	for _, o := range []*retrieval.Options{&ac.MintOptions, &ac.VolumeOptions} {
		o.BatchSize = c.FetchBatchSize
		o.MaxPages = c.MaxPages
		o.Retry.BaseDelay = c.RetryBaseDelay
		o.Retry.MaxDelay = c.RetryMaxDelay
	}
	return ac
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateRPCURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}
