package knowledge

import (
	"context"
	"fmt"

	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/storage"
)

// RepositoryLoader loads every stored entry and derives the computed fields.
// It satisfies rag.Loader.
type RepositoryLoader struct {
	repo    storage.KnowledgeRepository
	builder *Builder
	logger  *logger.Logger
}

// NewRepositoryLoader creates a loader over repo.
func NewRepositoryLoader(repo storage.KnowledgeRepository, builder *Builder, log *logger.Logger) *RepositoryLoader {
	return &RepositoryLoader{
		repo:    repo,
		builder: builder,
		logger:  log.WithModule("knowledge"),
	}
}

// LoadAll returns entries in storage order. Rows with an unknown user type
// are skipped with a warning so one bad row cannot block a reload.
func (l *RepositoryLoader) LoadAll(ctx context.Context) ([]Entry, error) {
	rows, err := l.repo.ListKnowledge(ctx)
	if err != nil {
		return nil, fmt.Errorf("load knowledge: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		ut := UserType(row.TipoUsuario)
		if !ut.Valid() {
			l.logger.WithField("id", row.ID).
				WithField("tipo_usuario", row.TipoUsuario).
				Warn("Skipping knowledge entry with unknown user type")
			continue
		}
		entries = append(entries, l.builder.Build(FromRow(row)))
	}
	return entries, nil
}

// FromRow converts a storage row without deriving computed fields.
func FromRow(row storage.KnowledgeEntry) Entry {
	return Entry{
		ID:             row.ID,
		Pregunta:       row.Pregunta,
		RespuestaTexto: row.RespuestaTexto,
		PalabrasClave:  row.PalabrasClave,
		TipoUsuario:    UserType(row.TipoUsuario),
	}
}

// ToRow converts an entry to its storage row.
func ToRow(e Entry) storage.KnowledgeEntry {
	return storage.KnowledgeEntry{
		ID:             e.ID,
		Pregunta:       e.Pregunta,
		RespuestaTexto: e.RespuestaTexto,
		PalabrasClave:  e.PalabrasClave,
		TipoUsuario:    string(e.TipoUsuario),
	}
}
