package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/utsbot/uts-chatbot-go/internal/backup"
	"github.com/utsbot/uts-chatbot-go/internal/chat"
	"github.com/utsbot/uts-chatbot-go/internal/config"
	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
	"github.com/utsbot/uts-chatbot-go/internal/knowledge"
	"github.com/utsbot/uts-chatbot-go/internal/rag"
	"github.com/utsbot/uts-chatbot-go/internal/render"
	"github.com/utsbot/uts-chatbot-go/internal/sentry"
)

const (
	apologyMessage = "Lo siento, tuve un problema al procesar tu pregunta. Por favor intenta de nuevo en unos momentos."
	timeoutMessage = "La respuesta está tardando más de lo esperado. Por favor intenta de nuevo."
)

type errorBody struct {
	Error string `json:"error"`
}

type chatRequest struct {
	Pregunta    string `json:"pregunta" binding:"required,max=4000"`
	SessionID   string `json:"session_id" binding:"omitempty,max=128"`
	TipoUsuario string `json:"tipo_usuario" binding:"omitempty,usertype"`
}

type chatResponse struct {
	chat.AskResponse
	RespuestaHTML string `json:"respuesta_html"`
}

type historyResponse struct {
	SessionID string      `json:"session_id"`
	Turnos    []chat.Turn `json:"turnos"`
}

type searchRequest struct {
	Query       string `form:"q" binding:"required,max=1000"`
	TipoUsuario string `form:"tipo_usuario" binding:"omitempty,usertype"`
	Limit       int    `form:"limit" binding:"omitempty,min=1"`
}

type searchResponse struct {
	Query   string      `json:"query"`
	Chunks  []rag.Chunk `json:"chunks"`
	Meta    rag.Meta    `json:"meta"`
	Entries int         `json:"entries"`
}

type handlers struct {
	deps RouterDeps
}

func (h *handlers) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: bindingMessage(err)})
		return
	}
	if req.SessionID == "" {
		req.SessionID = c.GetHeader(headerSessionID)
	}

	ctx := c.Request.Context()
	resp, err := h.deps.Chat.Ask(ctx, chat.AskRequest{
		SessionID: req.SessionID,
		Question:  req.Pregunta,
		UserType:  req.TipoUsuario,
	})
	if err != nil {
		h.fail(c, "chat", err)
		return
	}

	c.JSON(http.StatusOK, chatResponse{
		AskResponse:   resp,
		RespuestaHTML: render.Markdown(resp.Respuesta),
	})
}

func (h *handlers) history(c *gin.Context) {
	sessionID := c.Param("session_id")
	limit := config.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, errorBody{Error: "limit debe ser un entero positivo"})
			return
		}
		limit = min(n, config.MaxHistoryLimit)
	}

	turns, err := h.deps.Chat.History(c.Request.Context(), sessionID, limit)
	if err != nil {
		h.fail(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, historyResponse{SessionID: sessionID, Turnos: turns})
}

func (h *handlers) liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (h *handlers) readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheck)
	defer cancel()

	if err := h.deps.DB.Ping(ctx); err != nil {
		h.deps.Logger.WithError(err).WarnContext(ctx, "Readiness check failed: database unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}
	if !h.deps.Index.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "knowledge index not loaded",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"database":  "connected",
		"entries":   h.deps.Index.Size(),
		"loaded_at": h.deps.Index.LoadedAt().UTC().Format(time.RFC3339),
		"features": gin.H{
			"llm":     h.deps.LLMEnabled,
			"backups": h.deps.Backups != nil,
		},
	})
}

func (h *handlers) reloadKnowledge(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.KnowledgeReload)
	defer cancel()

	start := time.Now()
	n, err := h.deps.Index.Reload(ctx)
	if err != nil {
		h.fail(c, "reload", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries":     n,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (h *handlers) searchKnowledge(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: bindingMessage(err)})
		return
	}
	userType := knowledge.Todos
	if strings.TrimSpace(req.TipoUsuario) != "" {
		// Already checked by the usertype rule.
		userType, _ = knowledge.ParseUserType(req.TipoUsuario)
	}
	limit := config.DefaultTopK
	if req.Limit > 0 {
		limit = min(req.Limit, config.MaxAdminSearchResults)
	}

	res, err := h.deps.Index.RetrieveTopK(c.Request.Context(), rag.Query{
		Text:     req.Query,
		UserType: userType,
		K:        limit,
	})
	if err != nil {
		h.fail(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, searchResponse{
		Query:   req.Query,
		Chunks:  res.Chunks,
		Meta:    res.Meta,
		Entries: h.deps.Index.Size(),
	})
}

func (h *handlers) runBackup(c *gin.Context) {
	if h.deps.Backups == nil {
		c.JSON(http.StatusNotFound, errorBody{Error: domerrors.ErrBackupDisabled.Error()})
		return
	}
	// The backup outlives a dropped admin connection.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), config.BackupRun)
	defer cancel()

	res, err := h.deps.Backups.Run(ctx)
	if err != nil {
		h.fail(c, "backup", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"key":         res.Key,
		"size":        res.Size,
		"duration_ms": res.Duration.Milliseconds(),
		"pruned":      res.Pruned,
	})
}

// fail maps an error to a response. Input errors become 400s with their
// validation message; everything else is logged, reported and answered
// with a generic apology.
func (h *handlers) fail(c *gin.Context, module string, err error) {
	ctx := c.Request.Context()
	if domerrors.IsInvalidInput(err) {
		c.JSON(http.StatusBadRequest, errorBody{Error: inputMessage(err)})
		return
	}

	_ = c.Error(err)
	if h.deps.Errors != nil {
		h.deps.Errors.RecordHTTPError(errorType(err), module)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, errorBody{Error: timeoutMessage})
	case errors.Is(err, backup.ErrLocked):
		c.JSON(http.StatusConflict, errorBody{Error: "ya hay una copia de seguridad en curso"})
	case errors.Is(err, domerrors.ErrBackupDisabled):
		c.JSON(http.StatusNotFound, errorBody{Error: err.Error()})
	case domerrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, errorBody{Error: domerrors.GetUserMessage(err, "recurso no encontrado")})
	default:
		sentry.CaptureError(ctx, err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: apologyMessage})
	}
}

func inputMessage(err error) string {
	var ve *domerrors.ValidationError
	if errors.As(err, &ve) {
		return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
	}
	if errors.Is(err, domerrors.ErrMissingParameter) {
		return "falta un parámetro obligatorio"
	}
	return "solicitud inválida"
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domerrors.ErrLLMUnavailable):
		return "llm_unavailable"
	case errors.Is(err, domerrors.ErrKnowledgeLoad):
		return "knowledge_load"
	case domerrors.IsNotFound(err):
		return "not_found"
	case errors.Is(err, backup.ErrLocked):
		return "locked"
	default:
		return "internal"
	}
}
