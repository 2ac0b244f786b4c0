package chat

import (
	"context"

	"github.com/utsbot/uts-chatbot-go/internal/storage"
)

// HistoryStore returns the last limit turns of a session, oldest first.
type HistoryStore interface {
	GetRecentHistory(ctx context.Context, sessionID string, limit int) ([]Turn, error)
}

// ConversationRecord is the persisted shape of one answered question.
type ConversationRecord struct {
	SessionID     string
	Pregunta      string
	Respuesta     string
	UserType      string
	KnowledgeRefs []string
	SuggestWeb    bool
	Branch        Branch
}

// ConversationSink persists answered questions.
type ConversationSink interface {
	SaveConversation(ctx context.Context, rec ConversationRecord) error
}

// StorageStore adapts a storage.ConversationRepository to HistoryStore and
// ConversationSink.
type StorageStore struct {
	repo storage.ConversationRepository
}

// NewStorageStore wraps repo.
func NewStorageStore(repo storage.ConversationRepository) *StorageStore {
	return &StorageStore{repo: repo}
}

// GetRecentHistory implements HistoryStore.
func (s *StorageStore) GetRecentHistory(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	convs, err := s.repo.GetRecentConversations(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	turns := make([]Turn, len(convs))
	for i, c := range convs {
		turns[i] = Turn{Pregunta: c.Pregunta, Respuesta: c.Respuesta, CreatedAt: c.CreatedAt}
	}
	return turns, nil
}

// SaveConversation implements ConversationSink.
func (s *StorageStore) SaveConversation(ctx context.Context, rec ConversationRecord) error {
	return s.repo.SaveConversation(ctx, &storage.Conversation{
		SessionID:     rec.SessionID,
		Pregunta:      rec.Pregunta,
		Respuesta:     rec.Respuesta,
		TipoUsuario:   rec.UserType,
		KnowledgeRefs: rec.KnowledgeRefs,
		SuggestWeb:    rec.SuggestWeb,
		Branch:        string(rec.Branch),
	})
}

var (
	_ HistoryStore     = (*StorageStore)(nil)
	_ ConversationSink = (*StorageStore)(nil)
)
