package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/utsbot/uts-chatbot-go/internal/errors"
	"github.com/utsbot/uts-chatbot-go/internal/intent"
	"github.com/utsbot/uts-chatbot-go/internal/logger"
	"github.com/utsbot/uts-chatbot-go/internal/rag"
	"github.com/utsbot/uts-chatbot-go/internal/storage"
)

type fakeChatRecorder struct {
	mu       sync.Mutex
	branches []string
}

func (f *fakeChatRecorder) RecordChat(branch string, _ bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches = append(f.branches, branch)
}

type failingStore struct {
	historyErr error
	saveErr    error
}

func (f failingStore) GetRecentHistory(context.Context, string, int) ([]Turn, error) {
	return nil, f.historyErr
}

func (f failingStore) SaveConversation(context.Context, ConversationRecord) error {
	return f.saveErr
}

func newTestService(t *testing.T, r Retriever) (*Service, *storage.DB, *fakeChatRecorder) {
	t.Helper()
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewStorageStore(db)
	rec := &fakeChatRecorder{}
	svc := NewService(newComposer(r, nil, true), store, store, 6, rec, logger.NewWithWriter("error", io.Discard))
	return svc, db, rec
}

func TestService_AskValidation(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t, &fakeRetriever{})

	tests := []struct {
		name string
		req  AskRequest
	}{
		{"empty question", AskRequest{Question: "   "}},
		{"question too long", AskRequest{Question: strings.Repeat("a", 1001)}},
		{"unknown user type", AskRequest{Question: "hola", UserType: "rector"}},
		{"session id too long", AskRequest{Question: "hola", SessionID: strings.Repeat("s", 129)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Ask(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, domerrors.IsInvalidInput(err), "expected input error, got %v", err)
		})
	}
}

func TestService_AskDefaults(t *testing.T) {
	t.Parallel()
	r := &fakeRetriever{}
	svc, _, _ := newTestService(t, r)

	resp, err := svc.Ask(context.Background(), AskRequest{Question: "¿Dónde queda la cafetería central?"})
	require.NoError(t, err)
	assert.False(t, resp.WidgetMostrado)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, BranchNoEvidence, resp.Branch)
	assert.True(t, resp.SugerirBusquedaWeb)
	assert.NotNil(t, resp.Fuentes)
	assert.Empty(t, resp.Fuentes)
	require.Len(t, r.queries, 1)
	assert.Equal(t, "todos", string(r.queries[0].UserType))
}

func TestService_AskPersistsAndHonorsWidgetState(t *testing.T) {
	t.Parallel()
	r := &fakeRetriever{chunks: []rag.Chunk{generalChunk("malla-sistemas", "Ingeniería de Sistemas tiene 10 semestres.")}}
	svc, db, rec := newTestService(t, r)
	ctx := context.Background()

	first, err := svc.Ask(ctx, AskRequest{SessionID: "sess-1", Question: "malla curricular", UserType: "estudiante"})
	require.NoError(t, err)
	assert.Equal(t, BranchWidget, first.Branch)
	assert.Equal(t, 1, strings.Count(first.Respuesta, intent.WidgetSentinel))
	assert.True(t, first.WidgetMostrado, "the widget answer itself marks the session")

	second, err := svc.Ask(ctx, AskRequest{SessionID: "sess-1", Question: "malla curricular", UserType: "student"})
	require.NoError(t, err)
	assert.Equal(t, BranchEvidence, second.Branch)
	assert.NotContains(t, second.Respuesta, intent.WidgetSentinel)
	assert.True(t, second.WidgetMostrado, "state is restored from stored history")
	assert.False(t, second.SugerirBusquedaWeb)
	require.Len(t, second.Fuentes, 1)
	assert.Equal(t, "malla-sistemas", second.Fuentes[0].ID)

	count, err := db.CountConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	convs, err := db.GetRecentConversations(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, string(BranchWidget), convs[0].Branch)
	assert.Equal(t, "estudiante", convs[1].TipoUsuario)
	assert.Equal(t, []string{"malla-sistemas"}, convs[1].KnowledgeRefs)

	assert.Equal(t, []string{string(BranchWidget), string(BranchEvidence)}, rec.branches)

	turns, err := svc.History(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, first.Respuesta, turns[0].Respuesta)
}

func TestService_HistoryErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("db locked")
	svc := NewService(newComposer(&fakeRetriever{}, nil, true), failingStore{historyErr: boom}, nil, 6, nil, logger.NewWithWriter("error", io.Discard))

	_, err := svc.Ask(context.Background(), AskRequest{SessionID: "s", Question: "hola"})
	assert.ErrorIs(t, err, boom)

	_, err = svc.History(context.Background(), "s", 5)
	assert.ErrorIs(t, err, boom)

	_, err = svc.History(context.Background(), " ", 5)
	assert.True(t, domerrors.IsInvalidInput(err))
}

func TestService_PersistFailureDoesNotFailAnswer(t *testing.T) {
	t.Parallel()
	store := failingStore{saveErr: errors.New("disk full")}
	svc := NewService(newComposer(&fakeRetriever{}, nil, true), store, store, 6, nil, logger.NewWithWriter("error", io.Discard))

	resp, err := svc.Ask(context.Background(), AskRequest{SessionID: "s", Question: "¿Dónde queda la cafetería central?"})
	require.NoError(t, err)
	assert.Equal(t, NoInformationAnswer, resp.Respuesta)
}

func TestService_LLMFailurePropagates(t *testing.T) {
	t.Parallel()
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := NewStorageStore(db)

	upstream := errors.New("quota exceeded")
	composer := newComposer(&fakeRetriever{chunks: []rag.Chunk{generalChunk("a", "texto")}}, &fakeLLM{err: upstream}, false)
	svc := NewService(composer, store, store, 6, nil, logger.NewWithWriter("error", io.Discard))

	_, err = svc.Ask(context.Background(), AskRequest{SessionID: "s", Question: "¿Cuál es el horario de la biblioteca?"})
	assert.ErrorIs(t, err, upstream)

	count, err := db.CountConversations(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "failed answers must not be persisted")
}
