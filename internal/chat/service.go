package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utsbot/uts-chatbot-go/internal/config"
	"github.com/utsbot/uts-chatbot-go/internal/ctxutil"
	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
	"github.com/utsbot/uts-chatbot-go/internal/knowledge"
	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/rag"
	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

// maxSessionIDLength bounds client supplied session ids.
const maxSessionIDLength = 128

// Recorder receives per-question measurements. metrics.Metrics implements it.
type Recorder interface {
	RecordChat(branch string, suggestWeb bool, duration time.Duration)
}

// AskRequest is one question from a client.
type AskRequest struct {
	SessionID string
	Question  string
	UserType  string
}

// Source is an evidence reference returned to the client.
type Source struct {
	ID     string  `json:"id"`
	Titulo string  `json:"titulo"`
	Score  float64 `json:"score"`
}

// AskResponse is the answer returned to a client.
type AskResponse struct {
	Respuesta          string   `json:"respuesta"`
	SessionID          string   `json:"session_id"`
	SugerirBusquedaWeb bool     `json:"sugerir_busqueda_web"`
	Fuentes            []Source `json:"fuentes"`
	Meta               rag.Meta `json:"meta"`
	Branch             Branch   `json:"branch"`
	// WidgetMostrado is true once this session has been shown the
	// curriculum widget, including by this answer.
	WidgetMostrado     bool     `json:"widget_mostrado"`
}

// Service answers questions for sessions: it validates input, loads
// history, composes, scores the answer and persists the turn.
type Service struct {
	composer      *Composer
	history       HistoryStore
	sink          ConversationSink
	historyWindow int
	recorder      Recorder
	logger        *logger.Logger
}

// NewService creates a service. recorder may be nil.
func NewService(composer *Composer, history HistoryStore, sink ConversationSink, historyWindow int, recorder Recorder, log *logger.Logger) *Service {
	return &Service{
		composer:      composer,
		history:       history,
		sink:          sink,
		historyWindow: historyWindow,
		recorder:      recorder,
		logger:        log.WithModule("chat"),
	}
}

// Ask answers one question. Input errors satisfy errors.IsInvalidInput.
// A failure to persist the turn is logged and does not fail the answer.
func (s *Service) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return AskResponse{}, domerrors.NewValidationError("pregunta", "must not be empty")
	}
	if stringutil.RuneLen(question) > config.MaxQuestionRunes {
		return AskResponse{}, domerrors.NewValidationError("pregunta", "is too long")
	}

	userType := knowledge.Todos
	if strings.TrimSpace(req.UserType) != "" {
		ut, err := knowledge.ParseUserType(req.UserType)
		if err != nil {
			return AskResponse{}, err
		}
		userType = ut
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	} else if len(sessionID) > maxSessionIDLength {
		return AskResponse{}, domerrors.NewValidationError("session_id", "is too long")
	}
	ctx = ctxutil.WithSessionID(ctx, sessionID)
	ctx = ctxutil.WithUserType(ctx, string(userType))

	var turns []Turn
	if s.historyWindow > 0 {
		var err error
		turns, err = s.history.GetRecentHistory(ctx, sessionID, s.historyWindow)
		if err != nil {
			return AskResponse{}, domerrors.NewWrapper("chat", "load_history").Wrap(err, "no se pudo cargar la conversación")
		}
	}
	session := NewSession(sessionID, turns)

	ans, err := s.composer.Compose(ctx, Request{Question: question, UserType: userType, Session: session})
	if err != nil {
		s.logger.WithError(err).ErrorContext(ctx, "Failed to compose answer")
		return AskResponse{}, err
	}

	session.Record(Turn{Pregunta: question, Respuesta: ans.Text, CreatedAt: time.Now()})
	suggestWeb := AnalyzeResponseQuality(ans.Text, question, ans.Evidence)
	s.persist(ctx, ConversationRecord{
		SessionID:     sessionID,
		Pregunta:      question,
		Respuesta:     ans.Text,
		UserType:      string(userType),
		KnowledgeRefs: chunkIDs(ans.Evidence),
		SuggestWeb:    suggestWeb,
		Branch:        ans.Branch,
	})

	duration := time.Since(start)
	if s.recorder != nil {
		s.recorder.RecordChat(string(ans.Branch), suggestWeb, duration)
	}
	s.logger.WithField("branch", ans.Branch).
		WithField("evidence", len(ans.Evidence)).
		WithField("suggest_web", suggestWeb).
		WithField("duration_ms", duration.Milliseconds()).
		InfoContext(ctx, "Question answered")

	return AskResponse{
		Respuesta:          ans.Text,
		SessionID:          sessionID,
		SugerirBusquedaWeb: suggestWeb,
		Fuentes:            sources(ans.Evidence),
		Meta:               ans.Meta,
		Branch:             ans.Branch,
		WidgetMostrado:     session.WidgetShown(),
	}, nil
}

// History returns the last limit turns of a session, oldest first.
func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domerrors.NewValidationError("session_id", "must not be empty")
	}
	turns, err := s.history.GetRecentHistory(ctx, sessionID, limit)
	if err != nil {
		return nil, domerrors.NewWrapper("chat", "load_history").Wrap(err, "no se pudo cargar la conversación")
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}

func (s *Service) persist(ctx context.Context, rec ConversationRecord) {
	if s.sink == nil {
		return
	}
	if err := s.sink.SaveConversation(ctx, rec); err != nil {
		s.logger.WithError(err).WarnContext(ctx, "Failed to persist conversation turn")
	}
}

func chunkIDs(chunks []rag.Chunk) []string {
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
	}
	return ids
}

func sources(chunks []rag.Chunk) []Source {
	out := make([]Source, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, Source{ID: c.ID, Titulo: c.Titulo, Score: c.Score})
	}
	return out
}
