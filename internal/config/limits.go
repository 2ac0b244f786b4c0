package config

import "time"

// DefaultPort is the HTTP listen port when UTS_PORT is unset.
const DefaultPort = "10000"

// Retrieval and answer composition defaults.
const (
	// DefaultTopK is how many evidence chunks a chat answer uses.
	DefaultTopK = 3

	// DefaultFuzzyThreshold is the maximum per-field fuzzy distance (0..1)
	// that still counts as a match.
	DefaultFuzzyThreshold = 0.55

	// DefaultHistoryWindow is how many recent turns are loaded per session.
	DefaultHistoryWindow = 5

	// DefaultMaxHistoryChars bounds the history section of the LLM prompt.
	DefaultMaxHistoryChars = 800

	// DefaultMaxEvidenceChars bounds the evidence section of the LLM prompt.
	DefaultMaxEvidenceChars = 2500

	// DefaultMaxResponseChars bounds every returned answer.
	DefaultMaxResponseChars = 1800

	// MaxQuestionRunes rejects oversized questions at the HTTP boundary.
	MaxQuestionRunes = 1000

	// DefaultHistoryLimit and MaxHistoryLimit bound the history endpoint.
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100

	// MaxAdminSearchResults caps the admin knowledge search.
	MaxAdminSearchResults = 50

	// DefaultDirectoryEmailDomain is the institutional e-mail suffix for
	// teacher directory records.
	DefaultDirectoryEmailDomain = "uts.edu.co"
)

// Rate limit defaults (token bucket per session and per client IP).
const (
	DefaultChatRateBurst    = 10.0
	DefaultChatRateRefill   = 0.2 // one question every 5s sustained
	DefaultChatIPRateBurst  = 30.0
	DefaultChatIPRateRefill = 1.0
)

// DefaultBackupRetain is how many backups survive pruning.
const DefaultBackupRetain = 14

// DefaultConversationRetention is how long turns are kept when the cleanup
// job is scheduled.
const DefaultConversationRetention = 90 * 24 * time.Hour
