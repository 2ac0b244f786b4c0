package logger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/utsbot/uts-chatbot-go/internal/ctxutil"
)

const defaultQueueSize = 1024

// contextHandler adds session_id, user_type and request_id from the context
// to every record.
type contextHandler struct {
	next slog.Handler
}

func newContextHandler(next slog.Handler) *contextHandler {
	return &contextHandler{next: next}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if sessionID := ctxutil.GetSessionID(ctx); sessionID != "" {
		r.AddAttrs(slog.String("session_id", sessionID))
	}
	if userType := ctxutil.GetUserType(ctx); userType != "" {
		r.AddAttrs(slog.String("user_type", userType))
	}
	if requestID, ok := ctxutil.GetRequestID(ctx); ok && requestID != "" {
		r.AddAttrs(slog.String("request_id", requestID))
	}
	return h.next.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}

// fanout writes each record to every enabled handler.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}

type queuedRecord struct {
	ctx     context.Context
	record  slog.Record
	handler slog.Handler
}

// logQueue is shared by a queuedHandler and all handlers derived from it.
type logQueue struct {
	mu      sync.RWMutex
	closed  bool
	records chan queuedRecord
	done    chan struct{}
	dropped atomic.Uint64
}

// queuedHandler hands records to a single background goroutine so remote
// shipping never blocks a request. Records are dropped when the queue is full.
type queuedHandler struct {
	queue *logQueue
	next  slog.Handler
}

func newQueuedHandler(next slog.Handler, size int) *queuedHandler {
	if size <= 0 {
		size = defaultQueueSize
	}
	q := &logQueue{
		records: make(chan queuedRecord, size),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(q.done)
		for rec := range q.records {
			_ = rec.handler.Handle(rec.ctx, rec.record)
		}
	}()
	return &queuedHandler{queue: q, next: next}
}

func (h *queuedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *queuedHandler) Handle(ctx context.Context, r slog.Record) error {
	h.queue.mu.RLock()
	defer h.queue.mu.RUnlock()
	if h.queue.closed {
		return nil
	}
	select {
	case h.queue.records <- queuedRecord{ctx: ctxutil.PreserveTracing(ctx), record: r.Clone(), handler: h.next}:
	default:
		h.queue.dropped.Add(1)
	}
	return nil
}

func (h *queuedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &queuedHandler{queue: h.queue, next: h.next.WithAttrs(attrs)}
}

func (h *queuedHandler) WithGroup(name string) slog.Handler {
	return &queuedHandler{queue: h.queue, next: h.next.WithGroup(name)}
}

// Dropped returns how many records were discarded because the queue was full.
func (h *queuedHandler) Dropped() uint64 {
	return h.queue.dropped.Load()
}

// Close stops accepting records and waits for the queue to drain or ctx to end.
func (h *queuedHandler) Close(ctx context.Context) error {
	h.queue.mu.Lock()
	if !h.queue.closed {
		h.queue.closed = true
		close(h.queue.records)
	}
	h.queue.mu.Unlock()
	select {
	case <-h.queue.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
