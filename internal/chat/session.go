package chat

import (
	"strings"
	"time"

	"github.com/utsbot/uts-chatbot-go/internal/intent"
)

// Turn is one question/answer pair of a session.
type Turn struct {
	Pregunta  string    `json:"pregunta"`
	Respuesta string    `json:"respuesta"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the conversation state the composer reads. History is
// chronological, oldest first.
type Session struct {
	ID      string
	History []Turn
	Widget  intent.WidgetState
}

// NewSession materializes a session from stored turns. The widget state is
// derived once here by scanning the stored answers for the sentinel.
func NewSession(id string, history []Turn) *Session {
	answers := make([]string, len(history))
	for i, t := range history {
		answers[i] = t.Respuesta
	}
	return &Session{
		ID:      id,
		History: history,
		Widget:  intent.WidgetStateFromHistory(answers),
	}
}

// Record appends a turn. Showing the widget flips the session state.
func (s *Session) Record(t Turn) {
	s.History = append(s.History, t)
	if strings.Contains(t.Respuesta, intent.WidgetSentinel) {
		s.Widget = intent.WidgetShown
	}
}

// WidgetShown reports whether the session has already seen the widget.
func (s *Session) WidgetShown() bool {
	return s != nil && s.Widget == intent.WidgetShown
}

// HasHistory reports whether the session has previous turns.
func (s *Session) HasHistory() bool {
	return s != nil && len(s.History) > 0
}
