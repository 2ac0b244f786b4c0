// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Server
	EnvPort            = "UTS_PORT"
	EnvLogLevel        = "UTS_LOG_LEVEL"
	EnvShutdownTimeout = "UTS_SHUTDOWN_TIMEOUT"
	EnvRequestTimeout  = "UTS_REQUEST_TIMEOUT"
	EnvServerName      = "UTS_SERVER_NAME"

	// Data
	EnvDataDir = "UTS_DATA_DIR"

	// Retrieval and answer budgets
	EnvTopK                 = "UTS_TOP_K"
	EnvFuzzyThreshold       = "UTS_FUZZY_THRESHOLD"
	EnvHistoryWindow        = "UTS_HISTORY_WINDOW"
	EnvMaxHistoryChars      = "UTS_MAX_HISTORY_CHARS"
	EnvMaxEvidenceChars     = "UTS_MAX_EVIDENCE_CHARS"
	EnvMaxResponseChars     = "UTS_MAX_RESPONSE_CHARS"
	EnvDirectoryEmailDomain = "UTS_DIRECTORY_EMAIL_DOMAIN"

	// Rate limits
	EnvChatRateBurst    = "UTS_CHAT_RATE_BURST"
	EnvChatRateRefill   = "UTS_CHAT_RATE_REFILL"
	EnvChatIPRateBurst  = "UTS_CHAT_IP_RATE_BURST"
	EnvChatIPRateRefill = "UTS_CHAT_IP_RATE_REFILL"

	// LLM
	EnvLLMMock        = "UTS_LLM_MOCK"
	EnvLLMProviders   = "UTS_LLM_PROVIDERS"
	EnvLLMMaxAttempts = "UTS_LLM_MAX_ATTEMPTS"
	EnvLLMTemperature = "UTS_LLM_TEMPERATURE"
	EnvLLMMaxTokens   = "UTS_LLM_MAX_OUTPUT_TOKENS"
	EnvLLMCallTimeout = "UTS_LLM_CALL_TIMEOUT"
	EnvGeminiAPIKey   = "UTS_GEMINI_API_KEY"
	EnvGeminiModels   = "UTS_GEMINI_MODELS"
	EnvGroqAPIKey     = "UTS_GROQ_API_KEY"
	EnvGroqModels     = "UTS_GROQ_MODELS"

	// Admin and metrics Basic Auth
	EnvAdminUsername   = "UTS_ADMIN_USERNAME"
	EnvAdminPassword   = "UTS_ADMIN_PASSWORD"
	EnvMetricsUsername = "UTS_METRICS_USERNAME"
	EnvMetricsPassword = "UTS_METRICS_PASSWORD"

	// Schedules (cron expressions, empty = disabled)
	EnvReloadSchedule = "UTS_RELOAD_SCHEDULE"
	EnvBackupSchedule = "UTS_BACKUP_SCHEDULE"

	// Conversation retention
	EnvCleanupSchedule       = "UTS_CLEANUP_SCHEDULE"
	EnvConversationRetention = "UTS_CONVERSATION_RETENTION"

	// R2 backup feature
	EnvR2Enabled         = "UTS_R2_ENABLED"
	EnvR2AccountID       = "UTS_R2_ACCOUNT_ID"
	EnvR2Endpoint        = "UTS_R2_ENDPOINT"
	EnvR2AccessKeyID     = "UTS_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "UTS_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "UTS_R2_BUCKET_NAME"
	EnvR2BackupPrefix    = "UTS_R2_BACKUP_PREFIX"
	EnvR2BackupRetain    = "UTS_R2_BACKUP_RETAIN"

	// Sentry feature
	EnvSentryDSN              = "UTS_SENTRY_DSN"
	EnvSentryEnvironment      = "UTS_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate       = "UTS_SENTRY_SAMPLE_RATE"
	EnvSentryTracesSampleRate = "UTS_SENTRY_TRACES_SAMPLE_RATE"

	// Better Stack feature
	EnvBetterStackToken    = "UTS_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "UTS_BETTERSTACK_ENDPOINT"
)
