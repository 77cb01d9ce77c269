package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/chapternotes/internal/ai/mock"
	"github.com/kiranshivaraju/chapternotes/internal/api"
	"github.com/kiranshivaraju/chapternotes/internal/api/handler"
	mw "github.com/kiranshivaraju/chapternotes/internal/api/middleware"
	"github.com/kiranshivaraju/chapternotes/internal/cache"
	"github.com/kiranshivaraju/chapternotes/internal/journal"
	"github.com/kiranshivaraju/chapternotes/internal/queue"
	"github.com/kiranshivaraju/chapternotes/internal/render"
	"github.com/kiranshivaraju/chapternotes/internal/session"
	"github.com/kiranshivaraju/chapternotes/internal/store"
	"github.com/kiranshivaraju/chapternotes/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrompt = "Make concise study notes."

// ─── mock store ──────────────────────────────────────────────────────────────

type mockStore struct {
	mu       sync.Mutex
	sessions []*models.Session
	jobs     map[string]*models.JobRecord
}

func newMockStore() *mockStore {
	return &mockStore{jobs: make(map[string]*models.JobRecord)}
}

func jobKey(sessionID uuid.UUID, fileKey string) string { return sessionID.String() + "/" + fileKey }

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) CreateSession(_ context.Context, sess *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sess)
	return nil
}

func (s *mockStore) GetSessionsByPrefix(_ context.Context, prefix string) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.TokenPrefix == prefix {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *mockStore) TouchSession(_ context.Context, _ uuid.UUID) error { return nil }

func (s *mockStore) UpsertJob(_ context.Context, job *models.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[jobKey(job.SessionID, job.FileKey)] = &cp
	return nil
}

func (s *mockStore) GetJob(_ context.Context, sessionID uuid.UUID, fileKey string) (*models.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[jobKey(sessionID, fileKey)]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (s *mockStore) ListJobs(_ context.Context, f store.JobFilter) ([]*models.JobRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.JobRecord
	for _, j := range s.jobs {
		if j.SessionID != f.SessionID || (f.Status != "" && j.Status != f.Status) {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.JobRecord) int { return strings.Compare(a.FileName, b.FileName) })
	return out, len(out), nil
}

func (s *mockStore) UpdateJobStatus(_ context.Context, sessionID uuid.UUID, fileKey string, status models.JobStatus, opts ...store.JobUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobKey(sessionID, fileKey)]
	if !ok {
		return store.ErrNotFound
	}
	u := store.ApplyJobUpdateOptions(opts...)
	j.Status = status
	j.Notes = u.Notes
	j.ErrorMessage = u.ErrorMessage
	return nil
}

var _ store.Store = (*mockStore)(nil)

// ─── mock cache ──────────────────────────────────────────────────────────────

type mockCache struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newMockCache() *mockCache {
	return &mockCache{counters: make(map[string]int64)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *mockCache) Ping(_ context.Context) error                                      { return nil }
func (c *mockCache) SetJobStatus(_ context.Context, _ uuid.UUID, _, _ string, _ time.Duration) error {
	return nil
}
func (c *mockCache) GetJobStatus(_ context.Context, _ uuid.UUID, _ string) (string, bool, error) {
	return "", false, nil
}
func (c *mockCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

var _ cache.Cache = (*mockCache)(nil)

// ─── fakes ───────────────────────────────────────────────────────────────────

// textExtractor treats everything after the PDF header line as the text.
type textExtractor struct{}

func (textExtractor) ExtractText(_ context.Context, source []byte) (string, error) {
	_, text, _ := bytes.Cut(source, []byte("\n"))
	return string(text), nil
}

func fakePDF(text string) []byte { return []byte("%PDF-1.4\n" + text) }

// ─── test harness ────────────────────────────────────────────────────────────

type harness struct {
	limit     int
	generator *mock.MockProvider
}

type testServer struct {
	server   *httptest.Server
	store    *mockStore
	sessions *session.Manager
}

func newTestServer(t *testing.T, opts ...func(*harness)) *testServer {
	t.Helper()
	h := &harness{limit: 1000, generator: mock.NewMockProvider()}
	for _, o := range opts {
		o(h)
	}

	ms := newMockStore()
	mc := newMockCache()

	runner := queue.NewRunner(queue.NewScheduler(textExtractor{}, h.generator, 5*time.Second))
	runner.Start(context.Background())
	t.Cleanup(func() { runner.Shutdown(context.Background()) })

	recorder := journal.NewRecorder(ms, mc)
	sessions := session.NewManager(
		session.WithObserver(recorder),
		session.WithNotifier(runner.Notify),
		session.WithDefaultAPIKey("", true),
		session.WithMaxUploadBytes(1<<20),
	)
	renderer, err := render.New(render.DefaultStyle)
	require.NoError(t, err)

	router := api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(ms),
		RateLimit: mw.NewRateLimit(mc, h.limit),

		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
		CreateSessionHandler: handler.NewCreateSessionHandler(ms),
		PromptHandler:        handler.NewPromptHandler(testPrompt),

		UploadHandler:      handler.NewUploadHandler(sessions, 1<<20),
		ListUploadsHandler: handler.NewListUploadsHandler(sessions),
		GenerateHandler:    handler.NewGenerateHandler(sessions, testPrompt),

		ListJobsHandler:  handler.NewListJobsHandler(sessions),
		GetJobHandler:    handler.NewGetJobHandler(sessions, recorder),
		CancelAllHandler: handler.NewCancelAllHandler(sessions),
		CancelJobHandler: handler.NewCancelJobHandler(sessions),
		RequeueHandler:   handler.NewRequeueJobHandler(sessions),

		NotesMarkdownHandler: handler.NewNotesMarkdownHandler(sessions),
		NotesPDFHandler:      handler.NewNotesPDFHandler(sessions, renderer),
		NotesHTMLHandler:     handler.NewNotesHTMLHandler(sessions, renderer),

		ExportMarkdownHandler: handler.NewExportMarkdownHandler(sessions),
		ExportPDFHandler:      handler.NewExportPDFHandler(sessions),
		HistoryHandler:        handler.NewHistoryHandler(ms),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{server: srv, store: ms, sessions: sessions}
}

func withLimit(n int) func(*harness) { return func(h *harness) { h.limit = n } }

func withGenerator(g *mock.MockProvider) func(*harness) {
	return func(h *harness) { h.generator = g }
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.server.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) doJSON(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	return ts.do(t, method, path, token, &buf, "application/json")
}

func (ts *testServer) createSession(t *testing.T) string {
	t.Helper()
	resp := ts.doJSON(t, "POST", "/api/v1/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := parseBody(t, resp)["data"].(map[string]any)
	return data["token"].(string)
}

type upload struct {
	name    string
	content []byte
}

func (ts *testServer) upload(t *testing.T, token string, files ...upload) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mp.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mp.Close())
	return ts.do(t, "POST", "/api/v1/uploads", token, &buf, mp.FormDataContentType())
}

func (ts *testServer) jobs(t *testing.T, token string) []map[string]any {
	t.Helper()
	resp := ts.doJSON(t, "GET", "/api/v1/jobs", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var env struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env.Data
}

func (ts *testServer) waitIdle(t *testing.T, token string) []map[string]any {
	t.Helper()
	var jobs []map[string]any
	require.Eventually(t, func() bool {
		jobs = ts.jobs(t, token)
		for _, j := range jobs {
			s := j["status"].(string)
			if s == "in_queue" || s == "processing" {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return jobs
}

func parseBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func errCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	return parseBody(t, resp)["error"].(map[string]any)["code"].(string)
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONTRACT TESTS
// ═══════════════════════════════════════════════════════════════════════════════

// ─── POST /api/v1/sessions ───────────────────────────────────────────────────

func TestCreateSession_201_TokenAuthenticates(t *testing.T) {
	ts := newTestServer(t)

	token := ts.createSession(t)
	assert.True(t, strings.HasPrefix(token, mw.TokenPrefix))
	require.Len(t, ts.store.sessions, 1)
	assert.NotContains(t, ts.store.sessions[0].TokenHash, token, "raw token is never stored")

	resp := ts.doJSON(t, "GET", "/api/v1/jobs", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPrompt_200_Public(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.doJSON(t, "GET", "/api/v1/prompt", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testPrompt, parseBody(t, resp)["data"].(map[string]any)["prompt"])
}

// ─── full flow ───────────────────────────────────────────────────────────────

func TestFlow_UploadGenerateDownload(t *testing.T) {
	ts := newTestServer(t)
	token := ts.createSession(t)

	resp := ts.upload(t, token,
		upload{"chapter1.pdf", fakePDF("Photosynthesis\nLight reactions.")},
		upload{"chapter2.pdf", fakePDF("Respiration\nGlycolysis.")},
	)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	staged := parseBody(t, resp)["data"].(map[string]any)["staged"].([]any)
	assert.Len(t, staged, 2)

	resp = ts.doJSON(t, "POST", "/api/v1/generate", token, map[string]any{"api_key": "user-key"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	queued := parseBody(t, resp)["data"].(map[string]any)["queued"].([]any)
	require.Len(t, queued, 2)
	first := queued[0].(map[string]any)
	assert.Equal(t, "chapter1.pdf", first["file_name"])
	assert.Equal(t, "In Queue", first["status_label"])

	jobs := ts.waitIdle(t, token)
	require.Len(t, jobs, 2)
	for _, j := range jobs {
		assert.Equal(t, "completed", j["status"])
		assert.Equal(t, true, j["has_notes"])
		assert.Nil(t, j["notes"], "list view omits notes")
	}
	key := jobs[0]["file_key"].(string)

	resp = ts.doJSON(t, "GET", "/api/v1/jobs/"+key, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, parseBody(t, resp)["data"].(map[string]any)["notes"], "# Photosynthesis")

	resp = ts.doJSON(t, "GET", "/api/v1/jobs/"+key+"/notes.md", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename=chapter1_notes.md`, resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(readAll(t, resp), "# Photosynthesis"))

	resp = ts.doJSON(t, "GET", "/api/v1/jobs/"+key+"/notes.pdf", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename=chapter1_notes.pdf`, resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(readAll(t, resp), "%PDF-"))

	resp = ts.doJSON(t, "GET", "/api/v1/jobs/"+key+"/notes.html", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readAll(t, resp), "<h1>Photosynthesis</h1>")

	resp = ts.doJSON(t, "GET", "/api/v1/export/notes.md", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	all := readAll(t, resp)
	assert.True(t, strings.HasPrefix(all, "# chapter1.pdf\n\n# Photosynthesis"))
	assert.Contains(t, all, "\n\n---\n\n# chapter2.pdf\n\n# Respiration")

	resp = ts.doJSON(t, "GET", "/api/v1/export/notes.pdf", token, nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, "UNSUPPORTED_OPERATION", errCode(t, resp))

	// the journal mirrors asynchronously with respect to the poll above
	require.Eventually(t, func() bool {
		resp := ts.doJSON(t, "GET", "/api/v1/history?status=completed", token, nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		body := parseBody(t, resp)
		return len(body["data"].([]any)) == 2 && body["meta"].(map[string]any)["total"] == float64(2)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFlow_DefaultPromptIsUsed(t *testing.T) {
	var prompts []string
	var mu sync.Mutex
	gen := &mock.MockProvider{Name_: "capture", GenerateFunc: func(_ context.Context, req models.NoteRequest) (string, error) {
		mu.Lock()
		prompts = append(prompts, req.Prompt)
		mu.Unlock()
		return "# Notes", nil
	}}
	ts := newTestServer(t, withGenerator(gen))
	token := ts.createSession(t)

	ts.upload(t, token, upload{"a.pdf", fakePDF("A")})
	resp := ts.doJSON(t, "POST", "/api/v1/generate", token, map[string]any{"api_key": "k"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	ts.waitIdle(t, token)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{testPrompt}, prompts)
}

func TestFlow_GenerationFailureIsGeneric(t *testing.T) {
	ts := newTestServer(t, withGenerator(mock.NewFailingProvider(assert.AnError)))
	token := ts.createSession(t)

	ts.upload(t, token, upload{"a.pdf", fakePDF("A")})
	ts.doJSON(t, "POST", "/api/v1/generate", token, map[string]any{"api_key": "k", "prompt": "p"})
	jobs := ts.waitIdle(t, token)

	require.Len(t, jobs, 1)
	assert.Equal(t, "failed", jobs[0]["status"])
	assert.Equal(t, queue.FailedMessage, jobs[0]["error"])
	assert.NotContains(t, jobs[0]["error"], assert.AnError.Error())

	key := jobs[0]["file_key"].(string)
	resp := ts.doJSON(t, "GET", "/api/v1/jobs/"+key+"/notes.md", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "NOTES_UNAVAILABLE", errCode(t, resp))

	resp = ts.doJSON(t, "GET", "/api/v1/export/notes.md", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.doJSON(t, "POST", "/api/v1/jobs/"+key+"/requeue", token, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	jobs = ts.waitIdle(t, token)
	assert.Equal(t, "failed", jobs[0]["status"], "still failing after requeue")
}

func TestFlow_CancelAllDuringProcessing(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	gen := &mock.MockProvider{Name_: "slow", GenerateFunc: func(_ context.Context, _ models.NoteRequest) (string, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return "# Notes", nil
	}}
	ts := newTestServer(t, withGenerator(gen))
	token := ts.createSession(t)

	ts.upload(t, token, upload{"a.pdf", fakePDF("A")}, upload{"b.pdf", fakePDF("B")})
	ts.doJSON(t, "POST", "/api/v1/generate", token, map[string]any{"api_key": "k", "prompt": "p"})
	<-started

	resp := ts.doJSON(t, "POST", "/api/v1/jobs/cancel", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), parseBody(t, resp)["data"].(map[string]any)["cancelled"])
	close(release)

	jobs := ts.waitIdle(t, token)
	for _, j := range jobs {
		assert.Equal(t, "cancelled", j["status"])
		assert.Equal(t, false, j["has_notes"])
	}

	key := jobs[0]["file_key"].(string)
	resp = ts.doJSON(t, "POST", "/api/v1/jobs/"+key+"/requeue", token, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "NOT_REQUEUEABLE", errCode(t, resp))
}

func TestFlow_CancelOneQueuedJob(t *testing.T) {
	release := make(chan struct{})
	gen := &mock.MockProvider{Name_: "slow", GenerateFunc: func(_ context.Context, _ models.NoteRequest) (string, error) {
		<-release
		return "# Notes", nil
	}}
	ts := newTestServer(t, withGenerator(gen))
	token := ts.createSession(t)

	ts.upload(t, token, upload{"a.pdf", fakePDF("A")}, upload{"b.pdf", fakePDF("B")})
	resp := ts.doJSON(t, "POST", "/api/v1/generate", token, map[string]any{"api_key": "k", "prompt": "p"})
	queued := parseBody(t, resp)["data"].(map[string]any)["queued"].([]any)
	second := queued[1].(map[string]any)["file_key"].(string)

	resp = ts.doJSON(t, "POST", "/api/v1/jobs/"+second+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", parseBody(t, resp)["data"].(map[string]any)["status"])
	close(release)

	jobs := ts.waitIdle(t, token)
	assert.Equal(t, "completed", jobs[0]["status"])
	assert.Equal(t, "cancelled", jobs[1]["status"])
}

// ─── validation ──────────────────────────────────────────────────────────────

func TestUpload_415_NotPDF(t *testing.T) {
	ts := newTestServer(t)
	token := ts.createSession(t)

	resp := ts.upload(t, token, upload{"notes.txt", []byte("hello")})
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.Equal(t, "UNSUPPORTED_FILE_TYPE", errCode(t, resp))
}

func TestUpload_413_TooLarge(t *testing.T) {
	ts := newTestServer(t)
	token := ts.createSession(t)

	resp := ts.upload(t, token, upload{"big.pdf", fakePDF(strings.Repeat("x", 2<<20))})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "FILE_TOO_LARGE", errCode(t, resp))
}

func TestUpload_400_NoFiles(t *testing.T) {
	ts := newTestServer(t)
	token := ts.createSession(t)

	resp := ts.upload(t, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "NO_FILES", errCode(t, resp))
}

func TestListUploads_ShowsStaged(t *testing.T) {
	ts := newTestServer(t)
	token := ts.createSession(t)
	ts.upload(t, token, upload{"a.pdf", fakePDF("A")})

	resp := ts.doJSON(t, "GET", "/api/v1/uploads", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	staged := parseBody(t, resp)["data"].(map[string]any)["staged"].([]any)
	require.Len(t, staged, 1)
	assert.Equal(t, "a.pdf", staged[0].(map[string]any)["name"])
}

func TestGenerate_Validation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.createSession(t)

	resp := ts.doJSON(t, "POST", "/api/v1/generate", token, map[string]any{"prompt": "p"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "MISSING_API_KEY", errCode(t, resp))

	resp = ts.doJSON(t, "POST", "/api/v1/generate", token, map[string]any{"api_key": "k", "prompt": "p"})
	assert.Equal(t, "NO_FILES", errCode(t, resp))

	ts.upload(t, token, upload{"a.pdf", fakePDF("A")})
	resp = ts.doJSON(t, "POST", "/api/v1/generate", token, map[string]any{"api_key": "k", "prompt": "  "})
	assert.Equal(t, "MISSING_PROMPT", errCode(t, resp))

	resp = ts.do(t, "POST", "/api/v1/generate", token, strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", errCode(t, resp))
}

func TestJobs_404_Unknown(t *testing.T) {
	ts := newTestServer(t)
	token := ts.createSession(t)

	for _, path := range []string{
		"/api/v1/jobs/nope",
		"/api/v1/jobs/nope/notes.md",
		"/api/v1/jobs/nope/notes.pdf",
		"/api/v1/jobs/nope/notes.html",
	} {
		resp := ts.doJSON(t, "GET", path, token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
	resp := ts.doJSON(t, "POST", "/api/v1/jobs/nope/cancel", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetJob_FallsBackToMirroredRecord(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.doJSON(t, "POST", "/api/v1/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := parseBody(t, resp)["data"].(map[string]any)
	token := data["token"].(string)
	sid := uuid.MustParse(data["session_id"].(string))

	// finished under an earlier server process: mirrored, not in memory
	ctx := context.Background()
	require.NoError(t, ts.store.UpsertJob(ctx, &models.JobRecord{
		ID:        uuid.New(),
		SessionID: sid,
		FileKey:   "0123456789abcdef",
		FileName:  "chapter9.pdf",
		Status:    models.JobStatusInQueue,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, ts.store.UpdateJobStatus(ctx, sid, "0123456789abcdef",
		models.JobStatusCompleted, store.WithNotes("# Chapter 9")))

	resp = ts.doJSON(t, "GET", "/api/v1/jobs/0123456789abcdef", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	job := parseBody(t, resp)["data"].(map[string]any)
	assert.Equal(t, "completed", job["status"])
	assert.Equal(t, "Completed", job["status_label"])
	assert.Equal(t, "chapter9.pdf", job["file_name"])
	assert.Equal(t, "# Chapter 9", job["notes"])
	assert.Equal(t, true, job["archived"])
	assert.Equal(t, false, job["has_notes"])

	assert.Empty(t, ts.jobs(t, token), "the live table is still empty")
	resp = ts.doJSON(t, "GET", "/api/v1/jobs/0123456789abcdef/notes.md", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessions_AreIsolated(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.createSession(t)
	bob := ts.createSession(t)

	ts.upload(t, alice, upload{"a.pdf", fakePDF("A")})
	ts.doJSON(t, "POST", "/api/v1/generate", alice, map[string]any{"api_key": "k", "prompt": "p"})
	jobs := ts.waitIdle(t, alice)
	require.Len(t, jobs, 1)

	assert.Empty(t, ts.jobs(t, bob))
	resp := ts.doJSON(t, "GET", "/api/v1/jobs/"+jobs[0]["file_key"].(string), bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistory_400_BadParams(t *testing.T) {
	ts := newTestServer(t)
	token := ts.createSession(t)

	for _, q := range []string{"?status=done", "?page=0", "?limit=x"} {
		resp := ts.doJSON(t, "GET", "/api/v1/history"+q, token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

// ─── auth & rate limit ───────────────────────────────────────────────────────

func TestAuth_InvalidBearerToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.doJSON(t, "GET", "/api/v1/jobs", "cn_invalid_token_value", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "INVALID_TOKEN", errCode(t, resp))
}

func TestRateLimit_429_Exceeded(t *testing.T) {
	ts := newTestServer(t, withLimit(3))
	token := ts.createSession(t)

	for i := 0; i < 3; i++ {
		resp := ts.doJSON(t, "GET", "/api/v1/jobs", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Remaining"))
	}
	resp := ts.doJSON(t, "GET", "/api/v1/jobs", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errCode(t, resp))
}
