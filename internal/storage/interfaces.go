package storage

import "context"

// KnowledgeRepository reads and writes knowledge entries.
type KnowledgeRepository interface {
	ListKnowledge(ctx context.Context) ([]KnowledgeEntry, error)
	GetKnowledge(ctx context.Context, id string) (*KnowledgeEntry, error)
	SearchKnowledge(ctx context.Context, term string, limit int) ([]KnowledgeEntry, error)
	SaveKnowledge(ctx context.Context, entry *KnowledgeEntry) error
	SaveKnowledgeBatch(ctx context.Context, entries []KnowledgeEntry) error
	DeleteKnowledge(ctx context.Context, id string) error
	CountKnowledge(ctx context.Context) (int, error)
}

// ConversationRepository stores chat turns per session.
type ConversationRepository interface {
	SaveConversation(ctx context.Context, conv *Conversation) error
	GetRecentConversations(ctx context.Context, sessionID string, limit int) ([]Conversation, error)
	CountConversations(ctx context.Context) (int, error)
	DeleteConversationsBefore(ctx context.Context, unix int64) (int64, error)
}

var (
	_ KnowledgeRepository    = (*DB)(nil)
	_ ConversationRepository = (*DB)(nil)
)
