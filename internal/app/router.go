package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/utsbot/uts-chatbot-go/internal/backup"
	"github.com/utsbot/uts-chatbot-go/internal/chat"
	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/rag"
	"github.com/utsbot/uts-chatbot-go/internal/ratelimit"
)

// ChatService answers questions and returns session history.
type ChatService interface {
	Ask(ctx context.Context, req chat.AskRequest) (chat.AskResponse, error)
	History(ctx context.Context, sessionID string, limit int) ([]chat.Turn, error)
}

// KnowledgeIndex is the retriever surface the HTTP layer uses.
type KnowledgeIndex interface {
	RetrieveTopK(ctx context.Context, q rag.Query) (rag.Result, error)
	Reload(ctx context.Context) (int, error)
	Ready() bool
	Size() int
	LoadedAt() time.Time
}

// BackupRunner takes one backup.
type BackupRunner interface {
	Run(ctx context.Context) (backup.Result, error)
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ErrorRecorder counts failed requests. metrics.Metrics implements it.
type ErrorRecorder interface {
	RecordHTTPError(errorType, module string)
}

// RouterDeps is everything NewRouter wires. Limiter, IPLimiter, Backups,
// Registry, HTTP and Errors are optional.
type RouterDeps struct {
	Chat    ChatService
	Index   KnowledgeIndex
	DB      Pinger
	Backups BackupRunner
	Limiter   *ratelimit.KeyedLimiter
	IPLimiter *ratelimit.KeyedLimiter
	Logger    *logger.Logger

	Registry *prometheus.Registry
	HTTP     HTTPRecorder
	Errors   ErrorRecorder

	RequestTimeout  time.Duration
	LLMEnabled      bool
	SentryEnabled   bool
	AdminUsername   string
	AdminPassword   string
	MetricsUsername string
	MetricsPassword string
}

// NewRouter builds the HTTP API. Admin routes are only mounted when an
// admin password is configured.
func NewRouter(deps RouterDeps) *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	if deps.SentryEnabled {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(deps.Logger))
	if deps.HTTP != nil {
		router.Use(metricsMiddleware(deps.HTTP))
	}

	h := &handlers{deps: deps}

	router.GET("/livez", h.liveness)
	router.HEAD("/livez", h.liveness)
	router.GET("/readyz", h.readiness)
	router.HEAD("/readyz", h.readiness)
	if deps.Registry != nil {
		if deps.MetricsPassword == "" {
			deps.Logger.WithField("route", "/metrics").
				Warn("Metrics are served without authentication; set UTS_METRICS_PASSWORD to protect them")
		}
		router.GET("/metrics",
			basicAuthMiddleware("metrics", deps.MetricsUsername, deps.MetricsPassword),
			gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api", timeoutMiddleware(deps.RequestTimeout))
	chatHandlers := []gin.HandlerFunc{h.chat}
	if deps.Limiter != nil || deps.IPLimiter != nil {
		chatHandlers = append([]gin.HandlerFunc{rateLimitMiddleware(deps.Limiter, deps.IPLimiter)}, chatHandlers...)
	}
	api.POST("/chat", chatHandlers...)
	api.GET("/chat/history/:session_id", h.history)

	if deps.AdminPassword != "" {
		admin := router.Group("/admin", basicAuthMiddleware("admin", deps.AdminUsername, deps.AdminPassword))
		admin.POST("/knowledge/reload", h.reloadKnowledge)
		admin.GET("/knowledge/search", h.searchKnowledge)
		admin.POST("/backup", h.runBackup)
	}

	return router
}
