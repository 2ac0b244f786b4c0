// Package config provides centralized timeout constants for the application.
//
// The chat request path is bounded end to end: the HTTP write timeout must
// cover RequestProcessing, which in turn must cover one LLM call plus the
// SQLite reads and writes around it.
package config

import "time"

// HTTP server timeouts
const (
	// RequestProcessing bounds one /api/chat request, including the LLM call.
	RequestProcessing = 45 * time.Second

	// HTTPRead is the HTTP server read timeout. Chat payloads are small.
	HTTPRead = 10 * time.Second

	// HTTPWrite must exceed RequestProcessing plus response serialization.
	HTTPWrite = 50 * time.Second

	// HTTPIdle is the keep-alive idle timeout.
	HTTPIdle = 120 * time.Second

	// ReadinessCheck bounds the database ping behind /readyz.
	ReadinessCheck = 3 * time.Second

	// GracefulShutdown is the default time allowed for in-flight requests.
	GracefulShutdown = 30 * time.Second
)

// LLM timeouts
const (
	// LLMCall bounds a single provider call.
	LLMCall = 30 * time.Second

	// LLMRetryInitial is the base delay for provider retries (full jitter).
	LLMRetryInitial = 500 * time.Millisecond

	// LLMRetryMax caps a single retry delay.
	LLMRetryMax = 5 * time.Second
)

// Database timeouts
const (
	// DatabaseBusyTimeout is the SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour

	// SlowQueryThreshold logs queries slower than this at warn level.
	SlowQueryThreshold = 200 * time.Millisecond
)

// Background job timeouts
const (
	// KnowledgeReload bounds a full index reload from SQLite.
	KnowledgeReload = 30 * time.Second

	// BackupRun bounds snapshot + compression + upload.
	BackupRun = 10 * time.Minute

	// ConversationCleanup bounds one retention sweep.
	ConversationCleanup = 2 * time.Minute

	// RateLimiterCleanup is how often idle per-session limiters are dropped.
	RateLimiterCleanup = 5 * time.Minute
)
