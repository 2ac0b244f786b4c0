package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if err := createKnowledgeTable(ctx, db); err != nil {
		return err
	}
	return createConversationsTable(ctx, db)
}

func createKnowledgeTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS knowledge (
		id TEXT PRIMARY KEY,
		pregunta TEXT NOT NULL,
		respuesta_texto TEXT NOT NULL,
		palabras_clave TEXT NOT NULL DEFAULT '',
		tipo_usuario TEXT NOT NULL
			CHECK(tipo_usuario IN ('estudiante', 'docente', 'aspirante', 'visitante', 'todos')),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_tipo_usuario ON knowledge(tipo_usuario);
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create knowledge table: %w", err)
	}
	return nil
}

func createConversationsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		pregunta TEXT NOT NULL,
		respuesta TEXT NOT NULL,
		tipo_usuario TEXT NOT NULL,
		knowledge_refs TEXT NOT NULL DEFAULT '[]',
		sugerir_web INTEGER NOT NULL DEFAULT 0,
		branch TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id, id);
	CREATE INDEX IF NOT EXISTS idx_conversations_created_at ON conversations(created_at);
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create conversations table: %w", err)
	}
	return nil
}
