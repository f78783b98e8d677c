package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper_navigator/internal/app"
	"paper_navigator/internal/chat"
	"paper_navigator/internal/config"
	"paper_navigator/internal/index"
	"paper_navigator/internal/logger"
	"paper_navigator/internal/metrics"
	"paper_navigator/internal/testutil"
)

type echoGenerator struct{}

func (echoGenerator) Stream(_ context.Context, _ string, onToken func(string) error) (string, error) {
	for _, tok := range []string{"It ", "uses ", "attention."} {
		if err := onToken(tok); err != nil {
			return "", err
		}
	}
	return "It uses attention.", nil
}

type testEnv struct {
	cfg    *config.Config
	chats  *chat.Store
	server *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	cfg := &config.Config{}
	require.NoError(t, config.Init(cfg))
	cfg.DocumentsPath = filepath.Join(root, "documents")
	cfg.VectorDBPath = filepath.Join(root, "vector_db")
	cfg.MetadataFile = filepath.Join(root, "manifest.json")
	cfg.SkipModelCheck = true

	log := logger.Nop()
	idx, err := index.Open(index.Options{
		Path:       cfg.VectorDBPath,
		Collection: cfg.CollectionName,
		Embed:      testutil.LetterEmbed,
	}, log)
	require.NoError(t, err)

	rec := metrics.New()
	a := app.New(cfg, idx, echoGenerator{}, rec, log)
	require.NoError(t, a.Init(context.Background()))

	chats := chat.NewStore()
	return &testEnv{
		cfg:    cfg,
		chats:  chats,
		server: New(Options{Addr: ":0", MaxUploadMB: 1}, a, chats, rec, log),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createSession(t *testing.T) sessionResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var sess sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess
}

func pdfUpload(t *testing.T, name string, pages ...string) (*bytes.Buffer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	testutil.WritePDF(t, path, pages...)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func TestStatusEmpty(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st app.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.False(t, st.Ready)
	assert.Empty(t, st.Documents)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)
	require.NotEmpty(t, sess.ID)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, chat.EmptyMessage, sess.Messages[0].Content)

	rec := env.do(t, http.MethodDelete, "/api/sessions/"+sess.ID+"/messages", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sessions/"+sess.ID+"/messages", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Empty(t, got.Messages)

	rec = env.do(t, http.MethodGet, "/api/sessions/missing/messages", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryWithoutDocuments(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/query", strings.NewReader(`{"question":"hi"}`), "application/json")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "upload documents")
}

func TestQueryValidation(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/query", strings.NewReader(`{"question":"  "}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/query", strings.NewReader(`not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sessions/nope/query", strings.NewReader(`{"question":"x"}`), "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadAndQuery(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	body, ct := pdfUpload(t, "paper.pdf", "Transformers rely on attention")
	rec := env.do(t, http.MethodPost, "/api/documents", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var up uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	assert.Equal(t, 1, up.Saved)
	assert.Equal(t, chat.UpdateNotice(1), up.Message)

	rec = env.do(t, http.MethodPost, "/api/sessions/"+sess.ID+"/query", strings.NewReader(`{"question":"What do transformers rely on?"}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := rec.Body.String()
	assert.Equal(t, 3, strings.Count(events, "event: token\n"))
	assert.Contains(t, events, `data: {"text":"uses "}`)
	require.Contains(t, events, "event: done\n")
	assert.Contains(t, events, `"source":"paper.pdf"`)
	assert.Contains(t, events, `"text":"It uses attention."`)

	msgs, err := env.chats.Messages(sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, chat.UpdateNotice(1), msgs[1].Content)
	assert.Equal(t, chat.RoleUser, msgs[2].Role)
	assert.Equal(t, "It uses attention.", msgs[3].Content)

	sess2 := env.createSession(t)
	assert.Equal(t, chat.WelcomeMessage, sess2.Messages[0].Content)
}

func TestUploadRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/documents", strings.NewReader("plain"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "malware.exe")
	require.NoError(t, err)
	_, _ = part.Write([]byte("MZ"))
	require.NoError(t, mw.Close())

	rec = env.do(t, http.MethodPost, "/api/documents", &body, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported document format")
}

func TestClearWorkspace(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	body, ct := pdfUpload(t, "paper.pdf", "Some text")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/documents", body, ct).Code)

	rec := env.do(t, http.MethodDelete, "/api/workspace", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, err := os.Stat(filepath.Join(env.cfg.DocumentsPath, "paper.pdf"))
	require.NoError(t, err)

	rec = env.do(t, http.MethodDelete, "/api/workspace?confirm=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = os.Stat(filepath.Join(env.cfg.DocumentsPath, "paper.pdf"))
	assert.True(t, os.IsNotExist(err))
	msgs, err := env.chats.Messages(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	rec = env.do(t, http.MethodGet, "/api/status", nil, "")
	var st app.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.False(t, st.Ready)
	assert.Zero(t, st.Chunks)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/status", nil, "")
	env.createSession(t)

	rec := env.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "paper_navigator_http_request_duration_seconds")
	assert.Contains(t, body, `route="/api/status"`)
	assert.Contains(t, body, `route="/api/sessions"`)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
