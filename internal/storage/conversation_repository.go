package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// SaveConversation appends one turn to a session.
func (db *DB) SaveConversation(ctx context.Context, conv *Conversation) error {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	refs := conv.KnowledgeRefs
	if refs == nil {
		refs = []string{}
	}
	refsJSON, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("failed to encode knowledge refs: %w", err)
	}

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO conversations (session_id, pregunta, respuesta, tipo_usuario, knowledge_refs, sugerir_web, branch, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		conv.SessionID, conv.Pregunta, conv.Respuesta, conv.TipoUsuario, string(refsJSON),
		conv.SuggestWeb, conv.Branch, conv.CreatedAt.UnixNano())
	if err != nil {
		slog.ErrorContext(ctx, "failed to save conversation",
			"session_id", conv.SessionID,
			"error", err)
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		conv.ID = id
	}

	if duration := time.Since(start); duration > slowQueryThreshold {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "SaveConversation",
			"duration_ms", duration.Milliseconds())
	}
	return nil
}

// GetRecentConversations returns the last limit turns of a session in
// chronological order (oldest first). limit <= 0 returns nothing.
func (db *DB) GetRecentConversations(ctx context.Context, sessionID string, limit int) ([]Conversation, error) {
	if limit <= 0 || sessionID == "" {
		return nil, nil
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, session_id, pregunta, respuesta, tipo_usuario, knowledge_refs, sugerir_web, branch, created_at
		FROM conversations
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var (
			c        Conversation
			refsJSON string
			created  int64
		)
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Pregunta, &c.Respuesta, &c.TipoUsuario,
			&refsJSON, &c.SuggestWeb, &c.Branch, &created); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if err := json.Unmarshal([]byte(refsJSON), &c.KnowledgeRefs); err != nil {
			slog.WarnContext(ctx, "invalid knowledge refs in conversation",
				"conversation_id", c.ID,
				"error", err)
		}
		c.CreatedAt = time.Unix(0, created)
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	slices.Reverse(convs)
	return convs, nil
}

// CountConversations returns the number of stored turns.
func (db *DB) CountConversations(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}

// DeleteConversationsBefore removes turns older than the given Unix time (seconds).
func (db *DB) DeleteConversationsBefore(ctx context.Context, unix int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM conversations WHERE created_at < ?`, time.Unix(unix, 0).UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old conversations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
