package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/metrics"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubGenerator struct {
	calls int
}

func (g *stubGenerator) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls++
	return "stub answer", nil
}

func (g *stubGenerator) ModelName() string { return "stub" }
func (g *stubGenerator) Close() error      { return nil }

type testServer struct {
	handler http.Handler
	gen     *stubGenerator
	store   *vector.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Vector.Type = "memory"
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimensions = 8
	cfg.Storage.DatabasePath = filepath.Join(dir, "conversations.db")
	cfg.Ingest.MaxFiles = 2
	cfg.Ingest.Extensions = []string{".pdf", ".txt"}

	conv, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conv.Close() })
	store, err := vector.NewMemoryStore(8)
	require.NoError(t, err)
	embedder := embedding.NewMockEmbedder(8)
	gen := &stubGenerator{}
	m := metrics.New()

	engine := search.NewEngine(store, embedder, gen, conv, &cfg.Retrieval,
		search.WithMetrics(m), search.WithRandom(func(int) int { return 0 }))
	idx := indexer.NewIndexer(store, embedder, extract.NewExtractor(), &cfg.Retrieval, indexer.WithMetrics(m))
	srv := NewServer(engine, idx, conv, m, cfg, zap.NewNop())
	return &testServer{handler: srv.Handler(), gen: gen, store: store}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, body string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func uploadRequest(t *testing.T, namespace string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("namespace", namespace))
	for name, content := range files {
		fw, err := mw.CreateFormFile("pdf", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
}

func TestUploadQueryAndHistory(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, uploadRequest(t, "hr", map[string]string{
		"handbook.txt": "Employees get twenty vacation days per year.",
		"blank.txt":    "   ",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	up := decode[uploadResponse](t, w)
	assert.Equal(t, "hr", up.Namespace)
	require.Len(t, up.Stored, 1)
	assert.Equal(t, "handbook", up.Stored[0].PDFName)
	require.Len(t, up.Skipped, 1)
	assert.Equal(t, models.ReasonNoText, up.Skipped[0].Reason)

	w = ts.do(t, jsonRequest(http.MethodPost, "/query", `{"question":"How many vacation days?","namespace":"hr"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	q := decode[queryResponse](t, w)
	assert.Equal(t, "stub answer", q.Answer)
	assert.Equal(t, "handbook", q.Source)
	assert.False(t, q.Fallback)

	w = ts.do(t, httptest.NewRequest(http.MethodGet, "/namespaces/history/hr", nil))
	require.Equal(t, http.StatusOK, w.Code)
	h := decode[historyResponse](t, w)
	assert.Equal(t, "hr", h.Namespace)
	require.Len(t, h.History, 2)
	assert.Equal(t, models.SenderUser, h.History[0].Sender)
	assert.Equal(t, models.SenderAssistant, h.History[1].Sender)

	w = ts.do(t, httptest.NewRequest(http.MethodGet, "/namespaces", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"hr"}, decode[[]string](t, w))
}

func TestUpload_rejections(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, uploadRequest(t, "hr", map[string]string{"a.txt": "a", "b.txt": "b", "c.txt": "c"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, uploadRequest(t, "GLOBAL", map[string]string{"a.txt": "a"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, uploadRequest(t, "hr", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "no files")

	w = ts.do(t, uploadRequest(t, "hr", map[string]string{"empty.txt": ""}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, 0, ts.store.Size())

	w = ts.do(t, jsonRequest(http.MethodPost, "/upload", `{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuery_validationAndFallback(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, jsonRequest(http.MethodPost, "/query", `{"question":"","namespace":"hr"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, jsonRequest(http.MethodPost, "/query", `{"question":"hi"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, jsonRequest(http.MethodPost, "/query", `not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, jsonRequest(http.MethodPost, "/query", `{"question":"hi","namespace":"nothing-here"}`))
	require.Equal(t, http.StatusOK, w.Code)
	q := decode[queryResponse](t, w)
	assert.True(t, q.Fallback)
	assert.Equal(t, search.FallbackAnswers()[0], q.Answer)
	assert.Empty(t, q.Source)
	assert.Zero(t, ts.gen.calls)
}

func TestQueryGlobal(t *testing.T) {
	ts := newTestServer(t)
	for _, ns := range []string{"A", "B"} {
		w := ts.do(t, uploadRequest(t, ns, map[string]string{"X.txt": "shared document name in " + ns}))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := ts.do(t, jsonRequest(http.MethodPost, "/query/global", `{"question":"what is in X?"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[globalQueryResponse](t, w)
	assert.Equal(t, "stub answer", resp.Answer)
	assert.ElementsMatch(t, []sourceRef{{Source: "A|X"}, {Source: "B|X"}}, resp.Sources)

	w = ts.do(t, httptest.NewRequest(http.MethodGet, "/chat/global/history", nil))
	require.Equal(t, http.StatusOK, w.Code)
	h := decode[historyResponse](t, w)
	assert.Equal(t, models.GlobalNamespace, h.Namespace)
	assert.Len(t, h.History, 2)

	w = ts.do(t, httptest.NewRequest(http.MethodGet, "/namespaces/history/GLOBAL", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteNamespace(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, uploadRequest(t, "legal", map[string]string{"contract.txt": "term of twelve months"}))
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, httptest.NewRequest(http.MethodDelete, "/namespaces/delete/legal", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["message"], "legal")

	w = ts.do(t, httptest.NewRequest(http.MethodDelete, "/namespaces/delete/legal", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, jsonRequest(http.MethodPost, "/query", `{"question":"term?","namespace":"legal"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[queryResponse](t, w).Fallback)
}

func TestStatusAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, uploadRequest(t, "ops", map[string]string{"runbook.txt": "restart the worker"}))
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, jsonRequest(http.MethodPost, "/query", `{"question":"how?","namespace":"ops"}`))
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, st["namespaces"])
	assert.EqualValues(t, 2, st["conversation_turns"])
	cfg, ok := st["config"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "memory", cfg["vector_store_type"])

	w = ts.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `tanya_answers_total{mode="namespace",outcome="answered"} 1`)
	assert.Contains(t, body, `tanya_ingest_files_total{outcome="stored"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	r := httptest.NewRequest(http.MethodOptions, "/query", nil)
	r.Header.Set("Origin", "http://localhost:4200")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := ts.do(t, r)
	assert.Equal(t, "http://localhost:4200", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(models.ErrValidation))
	assert.Equal(t, http.StatusNotFound, statusFor(models.ErrNamespaceNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(models.ErrIngestFailed))
	assert.Equal(t, http.StatusInternalServerError, statusFor(models.ErrGenerationFailed))
}
