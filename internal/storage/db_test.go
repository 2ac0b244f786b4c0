package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewTestDB()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_CreatesDirectoryAndSchema(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "chatbot.db")

	db, err := New(context.Background(), path)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	if db.Path() != path {
		t.Errorf("Path() = %s, want %s", db.Path(), path)
	}

	for _, table := range []string{"knowledge", "conversations"} {
		var name string
		err := db.Conn().QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
}

func TestCreateSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := New(ctx, filepath.Join(dir, "src.db"))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.SaveKnowledge(ctx, &KnowledgeEntry{
		ID: "k1", Pregunta: "Horario biblioteca", RespuestaTexto: "7am a 9pm", TipoUsuario: "todos",
	}); err != nil {
		t.Fatalf("SaveKnowledge failed: %v", err)
	}

	dest := filepath.Join(dir, "snapshot's copy.db")
	if err := db.CreateSnapshot(ctx, dest); err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}

	snap, err := New(ctx, dest)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer func() { _ = snap.Close() }()

	count, err := snap.CountKnowledge(ctx)
	if err != nil || count != 1 {
		t.Errorf("snapshot count = %d (err %v), want 1", count, err)
	}

	if err := db.CreateSnapshot(ctx, dest); err == nil {
		t.Error("expected error when destination exists")
	}
}

func TestSanitizeSearchTerm(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		want  string
	}{
		{"normal", "normal"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`c:\path`, `c:\\path`},
	}
	for _, tt := range tests {
		if got := sanitizeSearchTerm(tt.input); got != tt.want {
			t.Errorf("sanitizeSearchTerm(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
