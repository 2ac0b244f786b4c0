package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
)

const knowledgeColumns = `id, pregunta, respuesta_texto, palabras_clave, tipo_usuario, created_at, updated_at`

const upsertKnowledgeQuery = `
	INSERT INTO knowledge (id, pregunta, respuesta_texto, palabras_clave, tipo_usuario, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		pregunta = excluded.pregunta,
		respuesta_texto = excluded.respuesta_texto,
		palabras_clave = excluded.palabras_clave,
		tipo_usuario = excluded.tipo_usuario,
		updated_at = excluded.updated_at
`

// ListKnowledge returns every entry in insertion order. Load order is the
// tie-break for equally ranked retrieval results.
func (db *DB) ListKnowledge(ctx context.Context) ([]KnowledgeEntry, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries, err := scanKnowledgeRows(rows)
	if err != nil {
		return nil, err
	}

	if duration := time.Since(start); duration > slowQueryThreshold {
		slog.WarnContext(ctx, "slow database query",
			"operation", "ListKnowledge",
			"duration_ms", duration.Milliseconds(),
			"rows", len(entries))
	}
	return entries, nil
}

// GetKnowledge returns one entry or an error wrapping ErrNotFound.
func (db *DB) GetKnowledge(ctx context.Context, id string) (*KnowledgeEntry, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+knowledgeColumns+` FROM knowledge WHERE id = ?`, id)
	entry, err := scanKnowledge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("knowledge %s: %w", id, domerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get knowledge %s: %w", id, err)
	}
	return entry, nil
}

// SearchKnowledge does a plain substring search over pregunta and
// palabras_clave for admin tooling. Chat retrieval never uses it.
func (db *DB) SearchKnowledge(ctx context.Context, term string, limit int) ([]KnowledgeEntry, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + sanitizeSearchTerm(term) + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+knowledgeColumns+` FROM knowledge
		WHERE pregunta LIKE ? ESCAPE '\' OR palabras_clave LIKE ? ESCAPE '\'
		ORDER BY created_at, rowid
		LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanKnowledgeRows(rows)
}

// SaveKnowledge inserts or updates a knowledge entry.
func (db *DB) SaveKnowledge(ctx context.Context, entry *KnowledgeEntry) error {
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx, upsertKnowledgeQuery,
		entry.ID, entry.Pregunta, entry.RespuestaTexto, entry.PalabrasClave, entry.TipoUsuario,
		entry.CreatedAt.UnixNano(), entry.UpdatedAt.UnixNano())
	if err != nil {
		slog.ErrorContext(ctx, "failed to save knowledge",
			"knowledge_id", entry.ID,
			"error", err)
		return fmt.Errorf("failed to save knowledge: %w", err)
	}
	return nil
}

// SaveKnowledgeBatch upserts entries in a single transaction, keeping their
// slice order as load order for new rows.
func (db *DB) SaveKnowledgeBatch(ctx context.Context, entries []KnowledgeEntry) error {
	if len(entries) == 0 {
		return nil
	}

	start := time.Now()
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertKnowledgeQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	base := time.Now()
	for i := range entries {
		e := &entries[i]
		// Distinct timestamps keep the batch order stable in ListKnowledge.
		ts := base.Add(time.Duration(i))
		if e.CreatedAt.IsZero() {
			e.CreatedAt = ts
		}
		e.UpdatedAt = ts
		if _, err := stmt.ExecContext(ctx, e.ID, e.Pregunta, e.RespuestaTexto, e.PalabrasClave, e.TipoUsuario,
			e.CreatedAt.UnixNano(), e.UpdatedAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to save knowledge %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if duration := time.Since(start); duration > slowQueryThreshold {
		slog.WarnContext(ctx, "slow batch operation",
			"operation", "SaveKnowledgeBatch",
			"duration_ms", duration.Milliseconds(),
			"count", len(entries))
	}
	return nil
}

// DeleteKnowledge removes an entry; missing IDs return ErrNotFound.
func (db *DB) DeleteKnowledge(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM knowledge WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("knowledge %s: %w", id, domerrors.ErrNotFound)
	}
	return nil
}

// CountKnowledge returns the number of knowledge entries.
func (db *DB) CountKnowledge(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count knowledge: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKnowledge(row rowScanner) (*KnowledgeEntry, error) {
	var (
		e                KnowledgeEntry
		created, updated int64
	)
	if err := row.Scan(&e.ID, &e.Pregunta, &e.RespuestaTexto, &e.PalabrasClave, &e.TipoUsuario, &created, &updated); err != nil {
		return nil, err
	}
	e.CreatedAt = time.Unix(0, created)
	e.UpdatedAt = time.Unix(0, updated)
	return &e, nil
}

func scanKnowledgeRows(rows *sql.Rows) ([]KnowledgeEntry, error) {
	var entries []KnowledgeEntry
	for rows.Next() {
		e, err := scanKnowledge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate knowledge: %w", err)
	}
	return entries, nil
}
