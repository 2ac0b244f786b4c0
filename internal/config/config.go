// Package config provides application configuration management.
// It loads settings from environment variables (optionally from a .env file)
// and provides defaults for the server, retrieval budgets, LLM providers,
// backups and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// ValidationMode selects which settings Validate requires.
type ValidationMode int

const (
	// ServerMode validates everything the HTTP server needs.
	ServerMode ValidationMode = iota
	// CLIMode validates only storage and backup settings used by kbctl.
	CLIMode
)

// Config holds all application configuration
type Config struct {
	// Server Configuration
	Port            string
	LogLevel        string
	ServerName      string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration

	// Data Configuration
	DataDir string // Data directory for the SQLite database

	// Retrieval and answer budgets
	Chat ChatConfig

	// LLM Configuration
	LLM LLMSettings

	// Admin and metrics Basic Auth (empty password = route disabled / open)
	AdminUsername   string
	AdminPassword   string
	MetricsUsername string
	MetricsPassword string

	// Schedules
	ReloadSchedule  string // cron expression for knowledge reload (empty = disabled)
	BackupSchedule  string // cron expression for R2 backups (empty = disabled)
	CleanupSchedule string // cron expression for conversation pruning (empty = disabled)

	// ConversationRetention is how long conversation turns are kept.
	ConversationRetention time.Duration

	// Backup object storage
	R2 R2Config

	// Observability
	SentryDSN              string
	SentryEnvironment      string
	SentrySampleRate       float64
	SentryTracesSampleRate float64
	BetterStackToken       string
	BetterStackEndpoint    string
}

// ChatConfig holds retrieval, composition and rate limit settings.
type ChatConfig struct {
	TopK                 int
	FuzzyThreshold       float64
	HistoryWindow        int
	MaxHistoryChars      int
	MaxEvidenceChars     int
	MaxResponseChars     int
	DirectoryEmailDomain string

	RateBurst  float64 // token bucket size per session
	RateRefill float64 // tokens per second per session

	// IP buckets cap a client that rotates session ids.
	IPRateBurst  float64
	IPRateRefill float64
}

// LLMSettings holds provider credentials and call tuning.
type LLMSettings struct {
	Mock         bool     // force the deterministic evidence fallback
	Providers    []string // provider order, e.g. ["gemini", "groq"]
	GeminiAPIKey string
	GeminiModels []string
	GroqAPIKey   string
	GroqModels   []string
	MaxAttempts  int
	Temperature  float64
	MaxTokens    int
	CallTimeout  time.Duration
}

// R2Config holds Cloudflare R2 (S3 compatible) backup settings.
type R2Config struct {
	Enabled         bool
	AccountID       string
	Endpoint        string // overrides the account endpoint, e.g. a MinIO URL
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	BackupPrefix    string
	BackupRetain    int // newest backups kept by pruning; 0 keeps everything
}

// Load reads configuration from environment variables for server mode.
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode reads configuration and validates it for the given mode.
// It attempts to load .env file first, then reads from env vars.
func LoadForMode(mode ValidationMode) (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv(EnvPort, DefaultPort),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ServerName:      getEnv(EnvServerName, ""),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		RequestTimeout:  getDurationEnv(EnvRequestTimeout, RequestProcessing),

		DataDir: getEnv(EnvDataDir, getDefaultDataDir()),

		Chat: ChatConfig{
			TopK:                 getIntEnv(EnvTopK, DefaultTopK),
			FuzzyThreshold:       getFloatEnv(EnvFuzzyThreshold, DefaultFuzzyThreshold),
			HistoryWindow:        getIntEnv(EnvHistoryWindow, DefaultHistoryWindow),
			MaxHistoryChars:      getIntEnv(EnvMaxHistoryChars, DefaultMaxHistoryChars),
			MaxEvidenceChars:     getIntEnv(EnvMaxEvidenceChars, DefaultMaxEvidenceChars),
			MaxResponseChars:     getIntEnv(EnvMaxResponseChars, DefaultMaxResponseChars),
			DirectoryEmailDomain: getEnv(EnvDirectoryEmailDomain, DefaultDirectoryEmailDomain),
			RateBurst:            getFloatEnv(EnvChatRateBurst, DefaultChatRateBurst),
			RateRefill:           getFloatEnv(EnvChatRateRefill, DefaultChatRateRefill),
			IPRateBurst:          getFloatEnv(EnvChatIPRateBurst, DefaultChatIPRateBurst),
			IPRateRefill:         getFloatEnv(EnvChatIPRateRefill, DefaultChatIPRateRefill),
		},

		LLM: LLMSettings{
			Mock:         getBoolEnv(EnvLLMMock, false),
			Providers:    lowerAll(getListEnv(EnvLLMProviders, []string{"gemini", "groq"})),
			GeminiAPIKey: getEnv(EnvGeminiAPIKey, ""),
			GeminiModels: getListEnv(EnvGeminiModels, nil),
			GroqAPIKey:   getEnv(EnvGroqAPIKey, ""),
			GroqModels:   getListEnv(EnvGroqModels, nil),
			MaxAttempts:  getIntEnv(EnvLLMMaxAttempts, 1),
			Temperature:  getFloatEnv(EnvLLMTemperature, 0.4),
			MaxTokens:    getIntEnv(EnvLLMMaxTokens, 1024),
			CallTimeout:  getDurationEnv(EnvLLMCallTimeout, LLMCall),
		},

		AdminUsername:   getEnv(EnvAdminUsername, "admin"),
		AdminPassword:   getEnv(EnvAdminPassword, ""),
		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		ReloadSchedule:        getEnv(EnvReloadSchedule, ""),
		BackupSchedule:        getEnv(EnvBackupSchedule, ""),
		CleanupSchedule:       getEnv(EnvCleanupSchedule, ""),
		ConversationRetention: getDurationEnv(EnvConversationRetention, DefaultConversationRetention),

		R2: R2Config{
			Enabled:         getBoolEnv(EnvR2Enabled, false),
			AccountID:       getEnv(EnvR2AccountID, ""),
			Endpoint:        getEnv(EnvR2Endpoint, ""),
			AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
			SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
			BucketName:      getEnv(EnvR2BucketName, ""),
			BackupPrefix:    getEnv(EnvR2BackupPrefix, "backups"),
			BackupRetain:    getIntEnv(EnvR2BackupRetain, DefaultBackupRetain),
		},

		SentryDSN:              getEnv(EnvSentryDSN, ""),
		SentryEnvironment:      getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:       getFloatEnv(EnvSentrySampleRate, 1.0),
		SentryTracesSampleRate: getFloatEnv(EnvSentryTracesSampleRate, 0.0),
		BetterStackToken:       getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint:    getEnv(EnvBetterStackEndpoint, ""),
	}

	if err := cfg.ValidateForMode(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks server mode requirements.
func (c *Config) Validate() error {
	return c.ValidateForMode(ServerMode)
}

// ValidateForMode checks if required configuration values are set
func (c *Config) ValidateForMode(mode ValidationMode) error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is required"))
	}
	if err := c.R2.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("r2 config: %w", err))
	}
	if err := validateSchedule("BACKUP_SCHEDULE", c.BackupSchedule); err != nil {
		errs = append(errs, err)
	}
	if c.BackupSchedule != "" && !c.R2.Enabled {
		errs = append(errs, errors.New("BACKUP_SCHEDULE requires R2_ENABLED"))
	}

	if mode == ServerMode {
		if c.Port == "" {
			errs = append(errs, errors.New("PORT is required"))
		}
		if c.ShutdownTimeout <= 0 {
			errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %v", c.ShutdownTimeout))
		}
		if c.RequestTimeout <= 0 {
			errs = append(errs, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %v", c.RequestTimeout))
		}
		if err := c.Chat.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("chat config: %w", err))
		}
		if err := c.LLM.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("llm config: %w", err))
		}
		if err := validateSchedule("RELOAD_SCHEDULE", c.ReloadSchedule); err != nil {
			errs = append(errs, err)
		}
		if err := validateSchedule("CLEANUP_SCHEDULE", c.CleanupSchedule); err != nil {
			errs = append(errs, err)
		}
		if c.CleanupSchedule != "" && c.ConversationRetention <= 0 {
			errs = append(errs, fmt.Errorf("CONVERSATION_RETENTION must be positive, got %v", c.ConversationRetention))
		}
		if c.SentrySampleRate < 0 || c.SentrySampleRate > 1 {
			errs = append(errs, fmt.Errorf("SENTRY_SAMPLE_RATE must be within [0,1], got %v", c.SentrySampleRate))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// validateSchedule accepts an empty expression or a standard five-field cron
// expression (descriptors like @daily included).
func validateSchedule(name, expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("%s is not a valid cron expression %q: %w", name, expr, err)
	}
	return nil
}

// Validate checks retrieval budgets and rate limits.
func (c ChatConfig) Validate() error {
	var errs []error
	if c.TopK <= 0 {
		errs = append(errs, fmt.Errorf("TOP_K must be positive, got %d", c.TopK))
	}
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("FUZZY_THRESHOLD must be within (0,1], got %v", c.FuzzyThreshold))
	}
	if c.HistoryWindow < 0 {
		errs = append(errs, fmt.Errorf("HISTORY_WINDOW cannot be negative, got %d", c.HistoryWindow))
	}
	if c.MaxHistoryChars <= 0 || c.MaxEvidenceChars <= 0 || c.MaxResponseChars <= 0 {
		errs = append(errs, errors.New("character budgets must be positive"))
	}
	if !strings.Contains(c.DirectoryEmailDomain, ".") {
		errs = append(errs, fmt.Errorf("DIRECTORY_EMAIL_DOMAIN looks invalid: %q", c.DirectoryEmailDomain))
	}
	if c.RateBurst <= 0 || c.RateRefill <= 0 {
		errs = append(errs, errors.New("CHAT_RATE_BURST and CHAT_RATE_REFILL must be positive"))
	}
	if c.IPRateBurst <= 0 || c.IPRateRefill <= 0 {
		errs = append(errs, errors.New("CHAT_IP_RATE_BURST and CHAT_IP_RATE_REFILL must be positive"))
	}
	return errors.Join(errs...)
}

// Validate checks provider names and call tuning.
func (l LLMSettings) Validate() error {
	var errs []error
	for _, p := range l.Providers {
		if p != "gemini" && p != "groq" {
			errs = append(errs, fmt.Errorf("unknown LLM provider %q", p))
		}
	}
	if l.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("LLM_MAX_ATTEMPTS must be at least 1, got %d", l.MaxAttempts))
	}
	if l.CallTimeout <= 0 {
		errs = append(errs, fmt.Errorf("LLM_CALL_TIMEOUT must be positive, got %v", l.CallTimeout))
	}
	return errors.Join(errs...)
}

// Validate checks R2 credentials when backups are enabled.
func (r R2Config) Validate() error {
	if !r.Enabled {
		return nil
	}
	var errs []error
	if r.AccountID == "" && r.Endpoint == "" {
		errs = append(errs, errors.New("R2_ACCOUNT_ID or R2_ENDPOINT is required"))
	}
	if r.AccessKeyID == "" || r.SecretAccessKey == "" {
		errs = append(errs, errors.New("R2_ACCESS_KEY_ID and R2_SECRET_ACCESS_KEY are required"))
	}
	if r.BucketName == "" {
		errs = append(errs, errors.New("R2_BUCKET_NAME is required"))
	}
	if r.BackupRetain < 0 {
		errs = append(errs, fmt.Errorf("R2_BACKUP_RETAIN cannot be negative, got %d", r.BackupRetain))
	}
	return errors.Join(errs...)
}

// EndpointURL returns the S3 API endpoint for the bucket.
func (r R2Config) EndpointURL() string {
	if r.Endpoint != "" {
		return r.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.AccountID)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping empty items.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func lowerAll(items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = strings.ToLower(item)
	}
	return out
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "chatbot.db")
}

// HasLLMProvider returns true if at least one LLM provider is configured.
func (c *Config) HasLLMProvider() bool {
	return c.LLM.GeminiAPIKey != "" || c.LLM.GroqAPIKey != ""
}

// UseMockLLM reports whether answers must use the deterministic fallback.
func (c *Config) UseMockLLM() bool {
	return c.LLM.Mock || !c.HasLLMProvider()
}
