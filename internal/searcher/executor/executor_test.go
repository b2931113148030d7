package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/knowledge"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/rag"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/metrics"
)

type recorder struct {
	mu     sync.Mutex
	events []analytics.RetrievalEvent
}

func (r *recorder) Track(e analytics.RetrievalEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return nil, goredis.Nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *mapStore) FlushByPattern(context.Context, string) (int64, error) { return 0, nil }

var searchCfg = config.SearchConfig{DefaultLimit: 3, MaxResults: 5, ContextTimeout: time.Second}

func retriever() *rag.Retriever {
	return rag.New(indexer.NewEngine([]knowledge.Document{
		{ID: "A", Title: "Billing FAQ", Content: "refund policy explained", Category: "billing"},
		{ID: "B", Title: "Security Overview", Content: "password reset process"},
		{ID: "C", Title: "refund policy", Content: "how refunds are processed quickly"},
	}))
}

func TestSearchReturnsRanking(t *testing.T) {
	rec := &recorder{}
	m := metrics.NewNop()
	e := New(retriever(), nil, rec, m, searchCfg)

	res, err := e.Search(context.Background(), "refund policy", 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	assert.Equal(t, "C", res.Results[0].ID)
	assert.Equal(t, "A", res.Results[1].ID)
	assert.Equal(t, "billing", res.Results[1].Category)
	assert.Equal(t, 3, res.TotalDocs)
	assert.Equal(t, indexer.ModelName, res.Model)

	require.Len(t, rec.events, 1)
	assert.Equal(t, analytics.EventSearch, rec.events[0].Type)
	assert.Equal(t, 3, rec.events[0].Requested)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(OutcomeHit)))
}

func TestSearchNotReady(t *testing.T) {
	rec := &recorder{}
	e := New(rag.New(nil), nil, rec, nil, searchCfg)

	_, err := e.Search(context.Background(), "refund", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrEngineNotReady))
	require.Len(t, rec.events, 1)
	assert.True(t, rec.events[0].Degraded)
}

func TestContextScenario(t *testing.T) {
	rec := &recorder{}
	e := New(retriever(), nil, rec, nil, searchCfg)

	out, err := e.Context(context.Background(), "refund policy", 3)
	require.NoError(t, err)
	assert.True(t, out.IsWorking)
	require.Len(t, out.Sources, 3)
	assert.Equal(t, 0.43, out.Sources[0].Score)
	assert.Equal(t, 0.29, out.Sources[1].Score)
	assert.Equal(t, 0.0, out.Sources[2].Score)

	require.Len(t, rec.events, 1)
	assert.Equal(t, analytics.EventContext, rec.events[0].Type)
	assert.False(t, rec.events[0].CacheHit)
	assert.Equal(t, 0.43, rec.events[0].TopScore)
}

func TestContextDegraded(t *testing.T) {
	m := metrics.NewNop()
	e := New(rag.New(nil), nil, nil, m, searchCfg)

	out, err := e.Context(context.Background(), "refund", 3)
	require.NoError(t, err)
	assert.Equal(t, rag.Unavailable(), out)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(OutcomeDegraded)))
}

func TestContextUsesCache(t *testing.T) {
	rec := &recorder{}
	c := cache.New(&mapStore{data: make(map[string][]byte)}, time.Minute, nil)
	e := New(retriever(), c, rec, nil, searchCfg)

	first, err := e.Context(context.Background(), "refund policy", 2)
	require.NoError(t, err)
	second, err := e.Context(context.Background(), "refund policy", 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, rec.events, 2)
	assert.False(t, rec.events[0].CacheHit)
	assert.True(t, rec.events[1].CacheHit)
}

func TestValidation(t *testing.T) {
	e := New(retriever(), nil, nil, nil, searchCfg)

	_, err := e.Search(context.Background(), strings.Repeat("a", MaxQueryLength+1), 3)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = e.Context(context.Background(), "\xff\xfe", 3)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestLimit(t *testing.T) {
	e := New(retriever(), nil, nil, nil, searchCfg)
	assert.Equal(t, 3, e.Limit(0))
	assert.Equal(t, 3, e.Limit(-1))
	assert.Equal(t, 4, e.Limit(4))
	assert.Equal(t, 5, e.Limit(50))
}
