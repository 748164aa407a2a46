package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"testing"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/caresync/internal/auth"
	"github.com/Lllllllleong/caresync/internal/gcp"
	"github.com/Lllllllleong/caresync/internal/models"
	"github.com/Lllllllleong/caresync/internal/services"
)

const jwtSecret = "handlers-test-secret-handlers-test-secret"

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func bearer(t *testing.T, subject string, familyIDs ...string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":          subject,
		"email":        subject + "@example.com",
		"exp":          time.Now().Add(time.Hour).Unix(),
		"app_metadata": map[string]any{"family_ids": familyIDs},
	}).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + raw
}

type fakeAnalyzer struct {
	got  *services.AnalyzeRequest
	resp *models.AnalyzeResponse
	err  error
}

func (f *fakeAnalyzer) Process(_ context.Context, req *services.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	f.got = req
	return f.resp, f.err
}

func multipartBody(t *testing.T, familyID, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if familyID != "" {
		require.NoError(t, mw.WriteField("familyId", familyID))
	}
	if data != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestAnalyzeHandler(t *testing.T) {
	t.Parallel()

	pdf := []byte("%PDF-1.4 test")

	t.Run("passes the upload to the analyzer", func(t *testing.T) {
		t.Parallel()
		fa := &fakeAnalyzer{resp: &models.AnalyzeResponse{Success: true, Outcome: models.OutcomeAnalyzed, Tasks: []models.Task{{ID: "t1"}}}}
		h := NewAnalyzeHandler(fa, nil, false, 1<<20)

		body, ct := multipartBody(t, "family-1", "discharge.pdf", "application/pdf", pdf)
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "family-1", fa.got.FamilyID)
		assert.Equal(t, "discharge.pdf", fa.got.Filename)
		assert.Equal(t, "application/pdf", fa.got.ContentType)
		assert.Equal(t, pdf, fa.got.Data)
		assert.Nil(t, fa.got.UploadedBy)

		var resp models.AnalyzeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, models.OutcomeAnalyzed, resp.Outcome)
		assert.Len(t, resp.Tasks, 1)
	})

	t.Run("maps service errors to status codes", func(t *testing.T) {
		t.Parallel()
		tests := map[services.ErrorKind]int{
			services.KindValidation:  http.StatusBadRequest,
			services.KindExtraction:  http.StatusUnprocessableEntity,
			services.KindUpstream:    http.StatusBadGateway,
			services.KindPersistence: http.StatusInternalServerError,
		}
		for kind, status := range tests {
			fa := &fakeAnalyzer{err: &services.Error{Kind: kind, Message: "shown to user", Err: errors.New("hidden cause")}}
			h := NewAnalyzeHandler(fa, nil, false, 1<<20)
			body, ct := multipartBody(t, "family-1", "x.pdf", "application/pdf", pdf)
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, status, rec.Code, "kind %s", kind)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "shown to user", resp.Error)
			assert.Equal(t, string(kind), resp.Kind)
			assert.NotContains(t, rec.Body.String(), "hidden cause")
		}
	})

	t.Run("missing file reaches the service", func(t *testing.T) {
		t.Parallel()
		fa := &fakeAnalyzer{err: &services.Error{Kind: services.KindValidation, Message: "Missing file or familyId"}}
		h := NewAnalyzeHandler(fa, nil, false, 1<<20)
		body, ct := multipartBody(t, "family-1", "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, fa.got.Data)
	})

	t.Run("oversized upload", func(t *testing.T) {
		t.Parallel()
		fa := &fakeAnalyzer{}
		h := NewAnalyzeHandler(fa, nil, false, 16)
		body, ct := multipartBody(t, "family-1", "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 2<<20))
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Nil(t, fa.got)
	})

	t.Run("persistent mode requires a session", func(t *testing.T) {
		t.Parallel()
		fa := &fakeAnalyzer{resp: &models.AnalyzeResponse{Success: true}}
		h := NewAnalyzeHandler(fa, auth.NewVerifier(jwtSecret, ""), true, 1<<20)

		body, ct := multipartBody(t, "family-1", "x.pdf", "application/pdf", pdf)
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, fa.got)

		body, ct = multipartBody(t, "family-1", "x.pdf", "application/pdf", pdf)
		req = httptest.NewRequest(http.MethodPost, "/api/analyze", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", bearer(t, "user-42", "family-1"))
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, fa.got.UploadedBy)
		assert.Equal(t, "user-42", *fa.got.UploadedBy)
	})

	t.Run("upload into another family is forbidden", func(t *testing.T) {
		t.Parallel()
		for _, requireAuth := range []bool{true, false} {
			fa := &fakeAnalyzer{resp: &models.AnalyzeResponse{Success: true}}
			h := NewAnalyzeHandler(fa, auth.NewVerifier(jwtSecret, ""), requireAuth, 1<<20)

			body, ct := multipartBody(t, "family-1", "x.pdf", "application/pdf", pdf)
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", body)
			req.Header.Set("Content-Type", ct)
			req.Header.Set("Authorization", bearer(t, "stranger", "family-9"))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code, "requireAuth=%v", requireAuth)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, string(services.KindForbidden), resp.Kind)
			assert.Nil(t, fa.got)
		}
	})
}

type scriptedStream struct {
	deltas []string
	err    error
}

func (s *scriptedStream) Next() (string, error) {
	if len(s.deltas) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	d := s.deltas[0]
	s.deltas = s.deltas[1:]
	return d, nil
}

func (s *scriptedStream) Close() error { return nil }

type fakeChat struct {
	stream *scriptedStream
	err    error
	email  string
}

func (f *fakeChat) Process(_ context.Context, req *models.ChatRequest, email string) (gcp.TextStream, error) {
	if err := services.ValidateChat(req); err != nil {
		return nil, err
	}
	f.email = email
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func newChatServer(t *testing.T, chat Chat) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(Routes{
		Analyze: NewAnalyzeHandler(&fakeAnalyzer{}, nil, false, 1<<20),
		Chat:    NewChatHandler(chat, auth.NewVerifier(jwtSecret, "")),
	}, discardLogger))
	t.Cleanup(srv.Close)
	return srv
}

const helloChat = `{"messages":[{"role":"user","content":"hi"}],"familyContext":{"openTasks":2}}`

func TestChatHandler_StreamsDeltas(t *testing.T) {
	t.Parallel()

	stream := &scriptedStream{deltas: []string{"Hello", " world"}}
	fc := &fakeChat{stream: stream}
	srv := newChatServer(t, fc)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/chat", bytes.NewBufferString(helloChat))
	require.NoError(t, err)
	req.Header.Set("Authorization", bearer(t, "sarah"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", string(body))
	assert.Equal(t, "sarah@example.com", fc.email)
}

func TestChatHandler_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid messages", func(t *testing.T) {
		t.Parallel()
		srv := newChatServer(t, &fakeChat{stream: &scriptedStream{}})
		for _, body := range []string{`not json`, `{"messages": "hi"}`, `{"messages": []}`} {
			resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewBufferString(body))
			require.NoError(t, err)
			var e models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
			assert.Equal(t, "Invalid messages format", e.Error)
		}
	})

	t.Run("failure before the first byte is a JSON error", func(t *testing.T) {
		t.Parallel()
		srv := newChatServer(t, &fakeChat{stream: &scriptedStream{err: errors.New("quota")}})
		resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewBufferString(helloChat))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("failure mid-stream truncates the response", func(t *testing.T) {
		t.Parallel()
		srv := newChatServer(t, &fakeChat{stream: &scriptedStream{deltas: []string{"Hello"}, err: errors.New("reset")}})
		resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewBufferString(helloChat))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		assert.Error(t, err)
		assert.Equal(t, "Hello", string(body))
	})

	t.Run("failure mid-stream truncates the wrapped handler", func(t *testing.T) {
		t.Parallel()
		h := Wrap(NewChatHandler(&fakeChat{stream: &scriptedStream{deltas: []string{"Hello"}, err: errors.New("reset")}}, nil), discardLogger)
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)

		resp, err := http.Post(srv.URL, "application/json", bytes.NewBufferString(helloChat))
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		assert.Error(t, err)
		assert.Equal(t, "Hello", string(body))
	})

	t.Run("guest when unauthenticated", func(t *testing.T) {
		t.Parallel()
		fc := &fakeChat{stream: &scriptedStream{deltas: []string{"ok"}}}
		srv := newChatServer(t, fc)
		resp, err := http.Post(srv.URL+"/api/chat", "application/json", bytes.NewBufferString(helloChat))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Empty(t, fc.email)
	})
}

// The deployed CareChat function runs under the Functions Framework, which
// recovers handler panics and would otherwise end the body cleanly.
func TestChatHandler_MidStreamFailureUnderFunctionsFramework(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
	require.NoError(t, ln.Close())

	stream := &scriptedStream{deltas: []string{"Hello"}, err: errors.New("reset")}
	h := Wrap(NewChatHandler(&fakeChat{stream: stream}, nil), discardLogger)
	require.NoError(t, funcframework.RegisterHTTPFunctionContext(context.Background(), "/care-chat", h.ServeHTTP))
	go func() { _ = funcframework.StartHostPort("127.0.0.1", port) }()

	url := "http://127.0.0.1:" + port + "/care-chat"
	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Post(url, "application/json", bytes.NewBufferString(helloChat))
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 5*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.Error(t, err)
	assert.Equal(t, "Hello", string(body))
}

type fakeTaskSync struct {
	tasks map[string]models.Task
}

func (f *fakeTaskSync) List(_ context.Context, familyID string) ([]models.Task, error) {
	var out []models.Task
	for _, t := range f.tasks {
		if t.FamilyID == familyID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTaskSync) Assign(_ context.Context, familyID, taskID string, memberID *string) (models.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok || t.FamilyID != familyID {
		return models.Task{}, &services.Error{Kind: services.KindNotFound, Message: "Task not found"}
	}
	t = models.AssignmentPatch(memberID).Apply(t, time.Now())
	f.tasks[taskID] = t
	return t, nil
}

func (f *fakeTaskSync) SetStatus(_ context.Context, familyID, taskID, status string) (models.Task, error) {
	t, ok := f.tasks[taskID]
	if !ok || t.FamilyID != familyID {
		return models.Task{}, &services.Error{Kind: services.KindNotFound, Message: "Task not found"}
	}
	s, err := models.ParseStatus(status)
	if err != nil {
		return models.Task{}, &services.Error{Kind: services.KindValidation, Message: "Invalid task status"}
	}
	t = models.StatusPatch(s, time.Now()).Apply(t, time.Now())
	f.tasks[taskID] = t
	return t, nil
}

func TestTasksHandler(t *testing.T) {
	t.Parallel()

	ts := &fakeTaskSync{tasks: map[string]models.Task{
		"t1": {ID: "t1", FamilyID: "family-1", Title: "Refill", Status: models.StatusPending},
	}}
	router := NewRouter(Routes{
		Analyze: NewAnalyzeHandler(&fakeAnalyzer{}, nil, false, 1<<20),
		Chat:    NewChatHandler(&fakeChat{}, nil),
		Tasks:   NewTasksHandler(ts, auth.NewVerifier(jwtSecret, "")),
	}, discardLogger)

	do := func(method, path, body string, authed bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		if authed {
			req.Header.Set("Authorization", bearer(t, "user-1", "family-1"))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodGet, "/api/tasks?familyId=family-1", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(http.MethodGet, "/api/tasks?familyId=family-1", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.TaskListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Tasks, 1)

	rec = do(http.MethodPost, "/api/tasks/t1/assign", `{"familyId":"family-1","memberId":"member-2"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var one models.TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, models.StatusAssigned, one.Task.Status)

	rec = do(http.MethodPost, "/api/tasks/t1/assign", `{"familyId":"family-1","memberId":null}`, true)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, models.StatusPending, one.Task.Status)
	assert.Nil(t, one.Task.AssignedTo)

	rec = do(http.MethodPost, "/api/tasks/t1/status", `{"familyId":"family-1","status":"completed"}`, true)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &one))
	assert.Equal(t, models.StatusCompleted, one.Task.Status)
	assert.NotNil(t, one.Task.CompletedAt)

	rec = do(http.MethodPost, "/api/tasks/t9/status", `{"familyId":"family-1","status":"completed"}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(http.MethodPost, "/api/tasks/t1/status", `{"familyId":"family-1","status":"archived"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestTasksHandler_OtherFamilyForbidden(t *testing.T) {
	t.Parallel()

	ts := &fakeTaskSync{tasks: map[string]models.Task{
		"t1": {ID: "t1", FamilyID: "family-1", Title: "Insulin 10u at bedtime", Status: models.StatusPending},
	}}
	r := mux.NewRouter()
	NewTasksHandler(ts, auth.NewVerifier(jwtSecret, "")).Register(r)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"list", http.MethodGet, "/api/tasks?familyId=family-1", ""},
		{"assign", http.MethodPost, "/api/tasks/t1/assign", `{"familyId":"family-1","memberId":"member-2"}`},
		{"status", http.MethodPost, "/api/tasks/t1/status", `{"familyId":"family-1","status":"completed"}`},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
		req.Header.Set("Authorization", bearer(t, "stranger", "family-2"))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code, tt.name)
		assert.NotContains(t, rec.Body.String(), "Insulin", tt.name)
	}
	assert.Equal(t, models.StatusPending, ts.tasks["t1"].Status)
	assert.Nil(t, ts.tasks["t1"].AssignedTo)
}
