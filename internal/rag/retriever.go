// Package rag ranks knowledge entries for a question with a weighted fuzzy
// index and serves the ranking from an atomically swapped snapshot.
package rag

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
	"github.com/utsbot/uts-chatbot-go/internal/knowledge"
	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/stringutil"
)

// Loader supplies the full knowledge base for a new snapshot.
type Loader interface {
	LoadAll(ctx context.Context) ([]knowledge.Entry, error)
}

// Recorder receives retrieval and reload measurements. metrics.Metrics
// implements it.
type Recorder interface {
	RecordRetrieval(userType string, results int, duration time.Duration)
	RecordReload(status string, entries int, duration time.Duration)
}

// Query is one retrieval request. UserType must already be validated.
type Query struct {
	Text     string
	UserType knowledge.UserType
	K        int
}

// Chunk is one piece of evidence handed to the composer.
type Chunk struct {
	ID          string             `json:"id"`
	Text        string             `json:"text"`
	Titulo      string             `json:"titulo"`
	Score       float64            `json:"score"`
	Kind        knowledge.Kind     `json:"kind"`
	TipoUsuario knowledge.UserType `json:"tipo_usuario"`
}

// Meta describes a retrieval beyond its chunks.
type Meta struct {
	FechasDetectadas []string `json:"fechasDetectadas"`
	NormalizedQuery  string   `json:"normalizedQuery"`
	// TotalMatches counts visible matches before the top-k cut.
	TotalMatches int `json:"totalMatches"`
}

// Result is the outcome of RetrieveTopK.
type Result struct {
	Chunks []Chunk `json:"chunks"`
	Meta   Meta    `json:"meta"`
}

// Retriever serves retrievals from the current index snapshot. Readers never
// block on reloads; a reload builds a new index and swaps it in one store.
type Retriever struct {
	loader    Loader
	threshold float64
	index     atomic.Pointer[Index]
	loadedAt  atomic.Int64
	group     singleflight.Group
	recorder  Recorder
	logger    *logger.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithThreshold sets the per-field match threshold.
func WithThreshold(threshold float64) Option {
	return func(r *Retriever) { r.threshold = threshold }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Retriever) { r.recorder = rec }
}

// NewRetriever creates a retriever with an empty index. Call Reload before
// serving traffic.
func NewRetriever(loader Loader, log *logger.Logger, opts ...Option) *Retriever {
	r := &Retriever{
		loader:    loader,
		threshold: DefaultThreshold,
		logger:    log.WithModule("rag"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.index.Store(NewIndex(nil, r.threshold))
	return r
}

// Reload rebuilds the index from the loader. Concurrent calls share one
// load. On failure the previous index stays live and the error wraps
// ErrKnowledgeLoad.
func (r *Retriever) Reload(ctx context.Context) (int, error) {
	v, err, _ := r.group.Do("reload", func() (any, error) {
		start := time.Now()
		entries, err := r.loader.LoadAll(ctx)
		if err != nil {
			r.record("error", r.Size(), time.Since(start))
			r.logger.WithError(err).Error("Knowledge reload failed, keeping previous index")
			return 0, fmt.Errorf("%w: %w", domerrors.ErrKnowledgeLoad, err)
		}

		r.index.Store(NewIndex(entries, r.threshold))
		r.loadedAt.Store(time.Now().UnixNano())
		r.record("success", len(entries), time.Since(start))
		r.logger.WithField("entries", len(entries)).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("Knowledge index reloaded")
		return len(entries), nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (r *Retriever) record(status string, entries int, d time.Duration) {
	if r.recorder != nil {
		r.recorder.RecordReload(status, entries, d)
	}
}

// Size returns the number of entries in the live index.
func (r *Retriever) Size() int {
	return r.index.Load().Len()
}

// LoadedAt returns when the live index was last loaded, or the zero time.
func (r *Retriever) LoadedAt() time.Time {
	ns := r.loadedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Ready reports whether at least one reload has succeeded.
func (r *Retriever) Ready() bool {
	return r.loadedAt.Load() != 0
}

// RetrieveTopK returns up to q.K chunks visible to q.UserType, best first.
// The user type filter runs before the cut, so the result holds K usable
// chunks whenever that many match.
func (r *Retriever) RetrieveTopK(ctx context.Context, q Query) (Result, error) {
	start := time.Now()
	normalized := stringutil.Normalize(q.Text)
	res := Result{
		Chunks: []Chunk{},
		Meta: Meta{
			FechasDetectadas: DetectDates(q.Text),
			NormalizedQuery:  normalized,
		},
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if normalized == "" {
		return res, nil
	}

	for _, hit := range r.index.Load().Search(normalized) {
		if !q.UserType.Sees(hit.Entry.TipoUsuario) {
			continue
		}
		res.Meta.TotalMatches++
		if len(res.Chunks) < q.K {
			res.Chunks = append(res.Chunks, chunkFromHit(hit))
		}
	}

	if r.recorder != nil {
		r.recorder.RecordRetrieval(string(q.UserType), len(res.Chunks), time.Since(start))
	}
	return res, nil
}

func chunkFromHit(h Hit) Chunk {
	return Chunk{
		ID:          h.Entry.ID,
		Text:        h.Entry.Text,
		Titulo:      h.Entry.Titulo(),
		Score:       similarity(h.Distance),
		Kind:        h.Entry.Kind,
		TipoUsuario: h.Entry.TipoUsuario,
	}
}
