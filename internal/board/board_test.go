package board

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/caresync/internal/auth"
	"github.com/Lllllllleong/caresync/internal/client"
	"github.com/Lllllllleong/caresync/internal/config"
	"github.com/Lllllllleong/caresync/internal/handlers"
	"github.com/Lllllllleong/caresync/internal/models"
	"github.com/Lllllllleong/caresync/internal/services"
	"github.com/Lllllllleong/caresync/internal/store"
)

const jwtSecret = "board-test-secret-board-test-secret"

var (
	fixedNow      = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

func clock() time.Time { return fixedNow }

func token(t *testing.T) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          "user-1",
		"email":        "sarah@example.com",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"app_metadata": map[string]any{"family_ids": []string{"fam"}},
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return raw
}

// memTasks is an in-memory task repository for the sync endpoint.
type memTasks struct {
	mu    sync.Mutex
	tasks map[string]models.Task
}

func (m *memTasks) ListTasks(_ context.Context, familyID string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, t := range m.tasks {
		if t.FamilyID == familyID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTasks) UpdateTask(_ context.Context, familyID, taskID string, patch models.TaskPatch, now time.Time) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || t.FamilyID != familyID {
		return models.Task{}, store.ErrTaskNotFound
	}
	t = patch.Apply(t, now)
	m.tasks[taskID] = t
	return t, nil
}

func (m *memTasks) get(id string) models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id]
}

// demoServer serves the real handlers with services in demo mode, plus the
// task sync endpoint over repo.
func demoServer(t *testing.T, repo *memTasks) *httptest.Server {
	t.Helper()
	analyzer := services.NewAnalyzerFunction(
		services.AnalyzerConfig{Mode: config.ModeDemo, MaxUploadBytes: 1 << 20},
		services.AnalyzerDeps{Now: clock},
	)
	chat, err := services.NewChatFunction(nil, config.ModeDemo)
	require.NoError(t, err)
	routes := handlers.Routes{
		Analyze: handlers.NewAnalyzeHandler(analyzer, nil, false, 1<<20),
		Chat:    handlers.NewChatHandler(chat, nil),
	}
	if repo != nil {
		verifier := auth.NewVerifier(jwtSecret, "")
		routes.Tasks = handlers.NewTasksHandler(services.NewTaskSyncFunction(repo, clock), verifier)
	}
	srv := httptest.NewServer(handlers.NewRouter(routes, discardLogger))
	t.Cleanup(srv.Close)
	return srv
}

func newBoard(api API, opts ...Option) *Board {
	opts = append([]Option{WithClock(clock), WithLogger(discardLogger)}, opts...)
	return New(NewStore(), api, opts...)
}

func TestBoard_AssignDerivesStatus(t *testing.T) {
	t.Parallel()

	b := newBoard(nil)
	b.LoadDemo()
	ctx := context.Background()

	require.NoError(t, b.Assign(ctx, "task-1", ptr("member-3")))
	task, _ := TaskByID(b.Store().State(), "task-1")
	assert.Equal(t, models.StatusAssigned, task.Status)
	assert.Equal(t, "member-3", *task.AssignedTo)

	require.NoError(t, b.Assign(ctx, "task-1", nil))
	task, _ = TaskByID(b.Store().State(), "task-1")
	assert.Equal(t, models.StatusPending, task.Status)
	assert.Nil(t, task.AssignedTo)

	err := b.Assign(ctx, "task-99", nil)
	require.ErrorIs(t, err, ErrUnknownTask)
	assert.Contains(t, b.Store().State().LastError, "task-99")
}

func TestBoard_SetStatus(t *testing.T) {
	t.Parallel()

	b := newBoard(nil)
	b.LoadDemo()
	ctx := context.Background()

	require.NoError(t, b.SetStatus(ctx, "task-2", models.StatusCompleted))
	task, _ := TaskByID(b.Store().State(), "task-2")
	assert.Equal(t, models.StatusCompleted, task.Status)
	assert.Equal(t, fixedNow, *task.CompletedAt)

	require.NoError(t, b.SetStatus(ctx, "task-2", models.StatusInProgress))
	task, _ = TaskByID(b.Store().State(), "task-2")
	assert.Nil(t, task.CompletedAt)

	assert.Error(t, b.SetStatus(ctx, "task-2", models.Status("archived")))
}

func TestBoard_UploadAddsDocumentAndTasks(t *testing.T) {
	t.Parallel()

	b := newBoard(client.New(demoServer(t, nil).URL))
	b.LoadDemo()

	var mu sync.Mutex
	var uploading []bool
	cancel := b.Store().Subscribe(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		if len(uploading) == 0 || uploading[len(uploading)-1] != st.Uploading {
			uploading = append(uploading, st.Uploading)
		}
	})
	defer cancel()

	require.NoError(t, b.Upload(context.Background(), "discharge.pdf", []byte("%PDF-1.4 demo")))

	st := b.Store().State()
	assert.False(t, st.Uploading)
	assert.True(t, st.ChatOpen)
	require.Len(t, st.Documents, 1)
	assert.Len(t, st.Tasks, 4+3)
	for _, task := range st.Tasks[4:] {
		assert.Equal(t, st.Documents[0].ID, *task.DocumentID)
	}

	require.NotEmpty(t, st.Chat)
	summary := st.Chat[len(st.Chat)-1]
	assert.Equal(t, models.ChatRoleAssistant, summary.Role)
	assert.Contains(t, summary.Content, "demo mode")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, uploading)
}

func TestBoard_UploadFailureIsRecorded(t *testing.T) {
	t.Parallel()

	b := newBoard(client.New(demoServer(t, nil).URL))
	b.LoadDemo()

	err := b.Upload(context.Background(), "photo.png", []byte("\x89PNG\r\n\x1a\n0000"))
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)

	st := b.Store().State()
	assert.False(t, st.Uploading)
	assert.NotEmpty(t, st.LastError)
	assert.Empty(t, st.Documents)
	assert.Len(t, st.Tasks, 4)
}

func TestBoard_UploadWithoutFamily(t *testing.T) {
	t.Parallel()

	b := newBoard(client.New("http://127.0.0.1:1"))
	assert.ErrorIs(t, b.Upload(context.Background(), "a.pdf", []byte("%PDF-")), ErrNoFamily)

	offline := newBoard(nil)
	offline.LoadDemo()
	assert.ErrorIs(t, offline.Upload(context.Background(), "a.pdf", []byte("%PDF-")), ErrOffline)
}

func TestBoard_AskStreamsReply(t *testing.T) {
	t.Parallel()

	b := newBoard(client.New(demoServer(t, nil).URL))
	b.LoadDemo()

	require.NoError(t, b.Ask(context.Background(), "  What is due this week?  "))

	chat := b.Store().State().Chat
	require.Len(t, chat, 2)
	assert.Equal(t, ChatEntry{Role: models.ChatRoleUser, Content: "What is due this week?"}, chat[0])
	assert.Equal(t, models.ChatRoleAssistant, chat[1].Role)
	assert.Contains(t, chat[1].Content, "demo")
	assert.False(t, chat[1].Incomplete)

	assert.ErrorIs(t, b.Ask(context.Background(), "   "), ErrEmptyPrompt)
}

func TestBoard_AskMarksTruncatedReply(t *testing.T) {
	t.Parallel()

	requests := make(chan models.ChatRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.ChatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		requests <- req
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "Take the pill ")
		_ = http.NewResponseController(w).Flush()
		panic(http.ErrAbortHandler)
	}))
	t.Cleanup(srv.Close)

	b := newBoard(client.New(srv.URL))
	b.LoadDemo()

	err := b.Ask(context.Background(), "When do I take it?")
	require.ErrorIs(t, err, client.ErrIncompleteAnswer)

	st := b.Store().State()
	require.Len(t, st.Chat, 2)
	assert.Equal(t, "Take the pill ", st.Chat[1].Content)
	assert.True(t, st.Chat[1].Incomplete)
	assert.NotEmpty(t, st.LastError)

	got := <-requests
	require.Len(t, got.Messages, 1)
	assert.NotNil(t, got.FamilyContext)
}

func TestBoard_RemoteTasks(t *testing.T) {
	t.Parallel()

	repo := &memTasks{tasks: map[string]models.Task{
		"t1": {ID: "t1", FamilyID: "fam", Title: "Call pharmacy", Status: models.StatusPending, Priority: models.PriorityHigh},
		"t2": {ID: "t2", FamilyID: "other", Title: "Not ours", Status: models.StatusPending},
	}}
	srv := demoServer(t, repo)
	b := newBoard(client.New(srv.URL, client.WithToken(token(t))), WithRemoteTasks())
	b.Store().Dispatch(SetCurrentFamily{FamilyID: "fam"})
	ctx := context.Background()

	require.NoError(t, b.Refresh(ctx))
	require.Len(t, b.Store().State().Tasks, 1)

	require.NoError(t, b.Assign(ctx, "t1", ptr("member-1")))
	task, _ := TaskByID(b.Store().State(), "t1")
	assert.Equal(t, models.StatusAssigned, task.Status)
	assert.Equal(t, models.StatusAssigned, repo.get("t1").Status)

	require.NoError(t, b.SetStatus(ctx, "t1", models.StatusCompleted))
	task, _ = TaskByID(b.Store().State(), "t1")
	assert.Equal(t, models.StatusCompleted, task.Status)
	assert.Equal(t, fixedNow, *task.CompletedAt)

	// A task the server no longer knows about.
	b.Store().Dispatch(AddTask{Task: models.Task{ID: "gone", FamilyID: "fam"}})
	err := b.SetStatus(ctx, "gone", models.StatusCompleted)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestBoard_RemoteTasksRequireToken(t *testing.T) {
	t.Parallel()

	srv := demoServer(t, &memTasks{tasks: map[string]models.Task{}})
	b := newBoard(client.New(srv.URL), WithRemoteTasks())
	b.Store().Dispatch(SetCurrentFamily{FamilyID: "fam"})

	err := b.Refresh(context.Background())
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}
