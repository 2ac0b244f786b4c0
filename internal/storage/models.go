package storage

import "time"

// KnowledgeEntry is one row of the knowledge table. Field names follow the
// column names used by the admin tools.
type KnowledgeEntry struct {
	ID             string
	Pregunta       string
	RespuestaTexto string
	PalabrasClave  string // comma separated
	TipoUsuario    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Conversation is one persisted question/answer turn.
type Conversation struct {
	ID            int64
	SessionID     string
	Pregunta      string
	Respuesta     string
	TipoUsuario   string
	KnowledgeRefs []string // IDs of the evidence entries used
	SuggestWeb    bool
	Branch        string // composer branch that produced the answer
	CreatedAt     time.Time
}
