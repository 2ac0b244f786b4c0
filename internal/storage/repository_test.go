package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
)

func TestKnowledgeCRUD(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	entry := &KnowledgeEntry{
		ID:             "k-creditos",
		Pregunta:       "Créditos de Cálculo Diferencial",
		RespuestaTexto: "Cálculo Diferencial tiene 4 créditos.",
		PalabrasClave:  "creditos, calculo",
		TipoUsuario:    "estudiante",
	}
	if err := db.SaveKnowledge(ctx, entry); err != nil {
		t.Fatalf("SaveKnowledge failed: %v", err)
	}

	got, err := db.GetKnowledge(ctx, "k-creditos")
	if err != nil {
		t.Fatalf("GetKnowledge failed: %v", err)
	}
	if got.RespuestaTexto != entry.RespuestaTexto || got.TipoUsuario != "estudiante" {
		t.Errorf("unexpected entry: %+v", got)
	}

	entry.RespuestaTexto = "Cálculo Diferencial tiene 4 créditos académicos."
	if err := db.SaveKnowledge(ctx, entry); err != nil {
		t.Fatalf("SaveKnowledge update failed: %v", err)
	}
	count, _ := db.CountKnowledge(ctx)
	if count != 1 {
		t.Errorf("upsert should not duplicate, count = %d", count)
	}

	if err := db.DeleteKnowledge(ctx, "k-creditos"); err != nil {
		t.Fatalf("DeleteKnowledge failed: %v", err)
	}
	if _, err := db.GetKnowledge(ctx, "k-creditos"); !errors.Is(err, domerrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := db.DeleteKnowledge(ctx, "k-creditos"); !errors.Is(err, domerrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestSaveKnowledge_RejectsUnknownUserType(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	err := db.SaveKnowledge(context.Background(), &KnowledgeEntry{
		ID: "bad", Pregunta: "x", RespuestaTexto: "y", TipoUsuario: "alien",
	})
	if err == nil {
		t.Fatal("expected CHECK constraint failure for unknown tipo_usuario")
	}
}

func TestSaveKnowledgeBatch_PreservesOrder(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	var entries []KnowledgeEntry
	for i := range 20 {
		entries = append(entries, KnowledgeEntry{
			ID:             fmt.Sprintf("k%02d", 19-i),
			Pregunta:       fmt.Sprintf("Pregunta %d", i),
			RespuestaTexto: "respuesta",
			TipoUsuario:    "todos",
		})
	}
	if err := db.SaveKnowledgeBatch(ctx, entries); err != nil {
		t.Fatalf("SaveKnowledgeBatch failed: %v", err)
	}

	listed, err := db.ListKnowledge(ctx)
	if err != nil {
		t.Fatalf("ListKnowledge failed: %v", err)
	}
	if len(listed) != 20 {
		t.Fatalf("expected 20 entries, got %d", len(listed))
	}
	for i, e := range listed {
		if e.ID != entries[i].ID {
			t.Errorf("position %d: got %s, want %s", i, e.ID, entries[i].ID)
		}
	}
}

func TestSearchKnowledge(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	_ = db.SaveKnowledgeBatch(ctx, []KnowledgeEntry{
		{ID: "a", Pregunta: "Malla curricular de Sistemas", RespuestaTexto: "...", PalabrasClave: "malla, pensum", TipoUsuario: "estudiante"},
		{ID: "b", Pregunta: "Horario de biblioteca", RespuestaTexto: "...", PalabrasClave: "biblioteca", TipoUsuario: "todos"},
		{ID: "c", Pregunta: "Descuento 100% matrícula", RespuestaTexto: "...", PalabrasClave: "becas", TipoUsuario: "aspirante"},
	})

	got, err := db.SearchKnowledge(ctx, "pensum", 10)
	if err != nil || len(got) != 1 || got[0].ID != "a" {
		t.Errorf("search pensum = %+v (err %v)", got, err)
	}
	got, _ = db.SearchKnowledge(ctx, "100%", 10)
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("percent must be matched literally, got %+v", got)
	}
	got, _ = db.SearchKnowledge(ctx, "   ", 10)
	if len(got) != 0 {
		t.Errorf("blank term should return nothing, got %d", len(got))
	}
}

func TestConversations_RecentChronological(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	for i := range 7 {
		err := db.SaveConversation(ctx, &Conversation{
			SessionID:     "s1",
			Pregunta:      fmt.Sprintf("q%d", i),
			Respuesta:     fmt.Sprintf("a%d", i),
			TipoUsuario:   "estudiante",
			KnowledgeRefs: []string{fmt.Sprintf("k%d", i)},
			SuggestWeb:    i%2 == 0,
			Branch:        "llm",
		})
		if err != nil {
			t.Fatalf("SaveConversation failed: %v", err)
		}
	}
	_ = db.SaveConversation(ctx, &Conversation{SessionID: "other", Pregunta: "x", Respuesta: "y", TipoUsuario: "todos"})

	recent, err := db.GetRecentConversations(ctx, "s1", 5)
	if err != nil {
		t.Fatalf("GetRecentConversations failed: %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("expected 5 turns, got %d", len(recent))
	}
	for i, c := range recent {
		want := fmt.Sprintf("q%d", i+2)
		if c.Pregunta != want {
			t.Errorf("turn %d = %s, want %s (oldest first)", i, c.Pregunta, want)
		}
	}
	if recent[0].KnowledgeRefs[0] != "k2" || !recent[0].SuggestWeb || recent[0].Branch != "llm" {
		t.Errorf("fields not round-tripped: %+v", recent[0])
	}

	none, _ := db.GetRecentConversations(ctx, "s1", 0)
	if len(none) != 0 {
		t.Errorf("limit 0 should return nothing, got %d", len(none))
	}
}

func TestDeleteConversationsBefore(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	_ = db.SaveConversation(ctx, &Conversation{SessionID: "s", Pregunta: "viejo", Respuesta: "r", TipoUsuario: "todos", CreatedAt: old})
	_ = db.SaveConversation(ctx, &Conversation{SessionID: "s", Pregunta: "nuevo", Respuesta: "r", TipoUsuario: "todos"})

	n, err := db.DeleteConversationsBefore(ctx, time.Now().Add(-24*time.Hour).Unix())
	if err != nil || n != 1 {
		t.Fatalf("DeleteConversationsBefore = %d (err %v), want 1", n, err)
	}
	count, _ := db.CountConversations(ctx)
	if count != 1 {
		t.Errorf("expected 1 remaining conversation, got %d", count)
	}
}
