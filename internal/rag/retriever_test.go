package rag

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
	"github.com/utsbot/uts-chatbot-go/internal/knowledge"
	"github.com/utsbot/uts-chatbot-go/internal/logger"
)

type fakeLoader struct {
	mu      sync.Mutex
	entries []knowledge.Entry
	err     error
	calls   int
}

func (f *fakeLoader) LoadAll(context.Context) ([]knowledge.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

func (f *fakeLoader) set(entries []knowledge.Entry, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries, f.err = entries, err
}

type fakeRecorder struct {
	mu         sync.Mutex
	retrievals int
	reloads    []string
}

func (f *fakeRecorder) RecordRetrieval(string, int, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrievals++
}

func (f *fakeRecorder) RecordReload(status string, _ int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads = append(f.reloads, status)
}

func entry(id, pregunta, keywords, answer string, ut knowledge.UserType) knowledge.Entry {
	return knowledge.NewBuilder(nil).Build(knowledge.Entry{
		ID:             id,
		Pregunta:       pregunta,
		PalabrasClave:  keywords,
		RespuestaTexto: answer,
		TipoUsuario:    ut,
	})
}

func sampleEntries() []knowledge.Entry {
	return []knowledge.Entry{
		entry("doc-matricula", "Costo de la matrícula", "matricula, costo", "Docentes: descuento del 50%.", knowledge.Docente),
		entry("est-matricula", "Costo de la matrícula", "matricula, costo", "Estudiantes: ver liquidación.", knowledge.Estudiante),
		entry("all-matricula", "Costo de la matrícula", "matricula, costo", "Consulte tesorería.", knowledge.Todos),
		entry("asp-matricula", "Costo de la matrícula", "matricula, costo", "Aspirantes: pago de inscripción.", knowledge.Aspirante),
		entry("biblioteca", "Horario de la biblioteca", "biblioteca, horario", "Abre de 7:00 a 21:00.", knowledge.Todos),
	}
}

func newTestRetriever(t *testing.T, entries []knowledge.Entry) (*Retriever, *fakeLoader) {
	t.Helper()
	loader := &fakeLoader{entries: entries}
	r := NewRetriever(loader, logger.NewWithWriter("error", io.Discard))
	if _, err := r.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return r, loader
}

func TestRetrieveTopK_FiltersBeforeCut(t *testing.T) {
	t.Parallel()
	r, _ := newTestRetriever(t, sampleEntries())
	ctx := context.Background()

	res, err := r.RetrieveTopK(ctx, Query{Text: "costo de la matrícula", UserType: knowledge.Estudiante, K: 2})
	if err != nil {
		t.Fatalf("RetrieveTopK: %v", err)
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("expected 2 visible chunks, got %d: %+v", len(res.Chunks), res.Chunks)
	}
	for _, c := range res.Chunks {
		if c.TipoUsuario != knowledge.Estudiante && c.TipoUsuario != knowledge.Todos {
			t.Errorf("chunk %s leaked user type %s", c.ID, c.TipoUsuario)
		}
	}
	if res.Chunks[0].ID != "est-matricula" {
		t.Errorf("ties should keep load order, first = %s", res.Chunks[0].ID)
	}
	if res.Chunks[1].ID != "all-matricula" {
		t.Errorf("second chunk = %s, want all-matricula", res.Chunks[1].ID)
	}
	if res.Meta.TotalMatches < 2 {
		t.Errorf("TotalMatches = %d, want at least 2", res.Meta.TotalMatches)
	}

	res, _ = r.RetrieveTopK(ctx, Query{Text: "costo de la matrícula", UserType: knowledge.Todos, K: 5})
	if len(res.Chunks) == 0 || res.Chunks[0].ID != "all-matricula" {
		t.Fatalf("expected all-matricula first, got %+v", res.Chunks)
	}
	for _, c := range res.Chunks {
		if c.TipoUsuario != knowledge.Todos {
			t.Errorf("todos requester got %s entry %s", c.TipoUsuario, c.ID)
		}
	}
}

func TestRetrieveTopK_Bounds(t *testing.T) {
	t.Parallel()
	r, _ := newTestRetriever(t, sampleEntries())
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
		max  int
	}{
		{"k zero", Query{Text: "matricula", UserType: knowledge.Docente, K: 0}, 0},
		{"k negative", Query{Text: "matricula", UserType: knowledge.Docente, K: -1}, 0},
		{"k one", Query{Text: "matricula", UserType: knowledge.Docente, K: 1}, 1},
		{"empty query", Query{Text: "  ¿? ", UserType: knowledge.Docente, K: 3}, 0},
		{"single rune", Query{Text: "a", UserType: knowledge.Docente, K: 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := r.RetrieveTopK(ctx, tt.q)
			if err != nil {
				t.Fatalf("RetrieveTopK: %v", err)
			}
			if res.Chunks == nil {
				t.Error("chunks should be empty, not nil")
			}
			if len(res.Chunks) > tt.max {
				t.Errorf("got %d chunks, max %d", len(res.Chunks), tt.max)
			}
		})
	}
}

func TestRetrieveTopK_Scores(t *testing.T) {
	t.Parallel()
	r, _ := newTestRetriever(t, sampleEntries())

	res, err := r.RetrieveTopK(context.Background(), Query{Text: "Horario de la biblioteca", UserType: knowledge.Visitante, K: 3})
	if err != nil {
		t.Fatalf("RetrieveTopK: %v", err)
	}
	if len(res.Chunks) == 0 || res.Chunks[0].ID != "biblioteca" {
		t.Fatalf("expected biblioteca first, got %+v", res.Chunks)
	}
	if res.Chunks[0].Text != "Abre de 7:00 a 21:00." || res.Chunks[0].Titulo != "Horario de la biblioteca" {
		t.Errorf("unexpected chunk content: %+v", res.Chunks[0])
	}
	prev := 1.0
	for _, c := range res.Chunks {
		if c.Score < 0 || c.Score > 1 {
			t.Errorf("score %v out of range", c.Score)
		}
		if math.Abs(c.Score*100-math.Round(c.Score*100)) > 1e-9 {
			t.Errorf("score %v not rounded to 2 decimals", c.Score)
		}
		if c.Score > prev {
			t.Errorf("scores not descending: %v after %v", c.Score, prev)
		}
		prev = c.Score
	}
	if res.Meta.NormalizedQuery != "horario de la biblioteca" {
		t.Errorf("NormalizedQuery = %q", res.Meta.NormalizedQuery)
	}
}

func TestReload_FailureKeepsIndex(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{}
	loader := &fakeLoader{entries: sampleEntries()}
	r := NewRetriever(loader, logger.NewWithWriter("error", io.Discard), WithRecorder(rec))
	ctx := context.Background()

	if r.Ready() {
		t.Error("retriever should not be ready before the first reload")
	}
	n, err := r.Reload(ctx)
	if err != nil || n != 5 {
		t.Fatalf("Reload = %d, %v", n, err)
	}
	loadedAt := r.LoadedAt()

	loader.set(nil, errors.New("disk gone"))
	if _, err := r.Reload(ctx); !errors.Is(err, domerrors.ErrKnowledgeLoad) {
		t.Fatalf("expected ErrKnowledgeLoad, got %v", err)
	}
	if r.Size() != 5 || !r.LoadedAt().Equal(loadedAt) {
		t.Error("failed reload must keep the previous index")
	}

	if _, err := r.RetrieveTopK(ctx, Query{Text: "biblioteca", UserType: knowledge.Todos, K: 1}); err != nil {
		t.Fatalf("RetrieveTopK after failed reload: %v", err)
	}
	if len(rec.reloads) != 2 || rec.reloads[0] != "success" || rec.reloads[1] != "error" {
		t.Errorf("reloads recorded = %v", rec.reloads)
	}
	if rec.retrievals != 1 {
		t.Errorf("retrievals recorded = %d", rec.retrievals)
	}
}

func TestReload_SwapsSnapshot(t *testing.T) {
	t.Parallel()
	r, loader := newTestRetriever(t, sampleEntries())
	ctx := context.Background()

	loader.set([]knowledge.Entry{
		entry("cafeteria", "Horario de la cafetería", "cafeteria", "Abre a las 6.", knowledge.Todos),
	}, nil)
	if _, err := r.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	res, _ := r.RetrieveTopK(ctx, Query{Text: "biblioteca", UserType: knowledge.Todos, K: 3})
	for _, c := range res.Chunks {
		if c.ID == "biblioteca" {
			t.Error("old entry served after reload")
		}
	}
}

func TestRetriever_ConcurrentReadsDuringReload(t *testing.T) {
	t.Parallel()
	r, _ := newTestRetriever(t, sampleEntries())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = r.Reload(ctx)
				return
			}
			res, err := r.RetrieveTopK(ctx, Query{Text: "matricula", UserType: knowledge.Estudiante, K: 3})
			if err != nil {
				t.Errorf("RetrieveTopK: %v", err)
			}
			if len(res.Chunks) < 2 {
				t.Errorf("expected at least 2 chunks, got %d", len(res.Chunks))
			}
		}()
	}
	wg.Wait()
}

func TestRetrieveTopK_CanceledContext(t *testing.T) {
	t.Parallel()
	r, _ := newTestRetriever(t, sampleEntries())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.RetrieveTopK(ctx, Query{Text: "matricula", UserType: knowledge.Todos, K: 3}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDetectDates(t *testing.T) {
	t.Parallel()
	got := DetectDates("¿Qué pasa el 15 de marzo de 2025 y el próximo lunes? también mañana y 03/04")
	want := []string{"15 de marzo de 2025", "lunes", "mañana", "03/04"}
	if len(got) != len(want) {
		t.Fatalf("DetectDates = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("date %d = %q, want %q", i, got[i], want[i])
		}
	}

	if got := DetectDates("horario de la biblioteca"); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
	if got := DetectDates("inscripciones la próxima semana"); len(got) != 1 || got[0] != "próxima semana" {
		t.Errorf("relative date = %q", got)
	}
}
