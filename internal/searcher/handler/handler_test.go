package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/knowledge"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/rag"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/config"
)

func newMux(r *rag.Retriever) *http.ServeMux {
	exec := executor.New(r, nil, nil, nil, config.SearchConfig{DefaultLimit: 3, MaxResults: 10, ContextTimeout: time.Second})
	mux := http.NewServeMux()
	New(exec).Register(mux, nil)
	return mux
}

func readyRetriever() *rag.Retriever {
	return rag.New(indexer.NewEngine([]knowledge.Document{
		{ID: "A", Title: "Billing FAQ", Content: "refund policy explained"},
		{ID: "B", Title: "Security Overview", Content: "password reset process"},
		{ID: "C", Title: "refund policy", Content: "how refunds are processed quickly"},
	}))
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSearchEndpoint(t *testing.T) {
	mux := newMux(readyRetriever())

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=refund+policy&limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var res executor.SearchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	require.Len(t, res.Results, 2)
	assert.Equal(t, "C", res.Results[0].ID)
	assert.Equal(t, "A", res.Results[1].ID)
}

func TestSearchBadRequests(t *testing.T) {
	mux := newMux(readyRetriever())
	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?q=%20",
		"/api/v1/search?q=refund&limit=abc",
		"/api/v1/search?q=refund&limit=0",
	} {
		rec := serve(mux, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSearchNotReady(t *testing.T) {
	rec := serve(newMux(rag.New(nil)), httptest.NewRequest(http.MethodGet, "/api/v1/search?q=refund", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestContextEndpointGet(t *testing.T) {
	rec := serve(newMux(readyRetriever()), httptest.NewRequest(http.MethodGet, "/api/v1/context?q=refund+policy", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["isWorking"])
	sources := body["sources"].([]any)
	require.Len(t, sources, 3)
	first := sources[0].(map[string]any)
	assert.Equal(t, "C", first["id"])
	assert.Equal(t, "refund policy", first["fileName"])
	assert.Equal(t, 0.43, first["score"])
	assert.True(t, strings.HasPrefix(body["context"].(string), "refund policy:\nhow refunds"))
}

func TestContextEndpointPost(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/context", strings.NewReader(`{"query":"password","n":1}`))
	rec := serve(newMux(readyRetriever()), req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out rag.Context
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "B", out.Sources[0].ID)

	bad := serve(newMux(readyRetriever()), httptest.NewRequest(http.MethodPost, "/api/v1/context", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestContextDegradedStillOK(t *testing.T) {
	rec := serve(newMux(rag.New(nil)), httptest.NewRequest(http.MethodGet, "/api/v1/context?q=refund", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"context":"","isWorking":false,"sources":[]}`, rec.Body.String())
}

func TestStatusAndCacheDisabled(t *testing.T) {
	mux := newMux(readyRetriever())

	rec := serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, true, st["ready"])
	assert.Equal(t, "tf-idf", st["modelName"])
	assert.Equal(t, float64(3), st["documents"])
	assert.Equal(t, false, st["cacheEnabled"])

	rec = serve(mux, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.JSONEq(t, `{"status":"disabled"}`, rec.Body.String())

	rec = serve(mux, httptest.NewRequest(http.MethodDelete, "/api/v1/cache", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
