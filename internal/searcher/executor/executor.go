// Package executor runs validated search and context requests against the
// retriever, recording metrics and analytics for each.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/rag"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/metrics"
)

// MaxQueryLength bounds a query in characters.
const MaxQueryLength = 1024

// Query outcomes, as recorded by search_queries_total.
const (
	OutcomeHit        = "hit"
	OutcomeZeroResult = "zero_result"
	OutcomeDegraded   = "degraded"
	OutcomeError      = "error"
)

type Hit struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Category string  `json:"category,omitempty"`
	Score    float64 `json:"score"`
}

type SearchResult struct {
	Query     string `json:"query"`
	Model     string `json:"model"`
	TotalDocs int    `json:"total_docs"`
	Results   []Hit  `json:"results"`
}

// Tracker receives one analytics event per request.
type Tracker interface {
	Track(event analytics.RetrievalEvent)
}

type Executor struct {
	retriever *rag.Retriever
	cache     *cache.ContextCache
	tracker   Tracker
	metrics   *metrics.Metrics
	cfg       config.SearchConfig
	logger    *slog.Logger
}

// New wires an Executor. contextCache, tracker and m may be nil.
func New(r *rag.Retriever, contextCache *cache.ContextCache, tracker Tracker, m *metrics.Metrics, cfg config.SearchConfig) *Executor {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Executor{
		retriever: r,
		cache:     contextCache,
		tracker:   tracker,
		metrics:   m,
		cfg:       cfg,
		logger:    slog.Default().With("component", "query-executor"),
	}
}

// Limit resolves a requested result count against the configured default
// and maximum.
func (e *Executor) Limit(requested int) int {
	if requested <= 0 {
		return e.cfg.DefaultLimit
	}
	if e.cfg.MaxResults > 0 && requested > e.cfg.MaxResults {
		return e.cfg.MaxResults
	}
	return requested
}

func validateQuery(query string) error {
	if !utf8.ValidString(query) {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "query is %d characters, limit is %d", n, MaxQueryLength)
	}
	return nil
}

// Search returns the raw ranking for query.
func (e *Executor) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	if err := validateQuery(query); err != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(OutcomeError).Inc()
		return nil, err
	}
	limit = e.Limit(limit)

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	ranked, err := e.retriever.Search(ctx, query, limit)
	took := time.Since(start)
	e.metrics.SearchLatency.WithLabelValues("search").Observe(took.Seconds())
	if err != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(OutcomeDegraded).Inc()
		e.track(ctx, analytics.RetrievalEvent{Type: analytics.EventSearch, Query: query, Requested: limit, Degraded: true}, took)
		return nil, fmt.Errorf("searching %q: %w", query, err)
	}

	status := e.retriever.EngineStatus()
	result := &SearchResult{
		Query:     query,
		Model:     status.ModelName,
		TotalDocs: status.Documents,
		Results:   make([]Hit, 0, len(ranked)),
	}
	var top float64
	for i, r := range ranked {
		if i == 0 {
			top = r.Score
		}
		result.Results = append(result.Results, Hit{
			ID:       r.Document.ID,
			Title:    r.Document.Title,
			Category: r.Document.Category,
			Score:    r.Score,
		})
	}

	e.observe(len(result.Results), top, true)
	e.track(ctx, analytics.RetrievalEvent{
		Type:      analytics.EventSearch,
		Query:     query,
		Requested: limit,
		Returned:  len(result.Results),
		TopScore:  top,
	}, took)
	log.Info("search completed",
		"query", query,
		"returned", len(result.Results),
		"top_score", top,
		"latency", took,
	)
	return result, nil
}

// Context assembles grounding context for query, consulting the cache
// first. It never fails; a degraded retrieval has IsWorking=false.
func (e *Executor) Context(ctx context.Context, query string, n int) (rag.Context, error) {
	start := time.Now()
	if err := validateQuery(query); err != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(OutcomeError).Inc()
		return rag.Context{}, err
	}
	n = e.Limit(n)

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	fingerprint := e.retriever.EngineStatus().Fingerprint
	out, hit := e.cache.GetOrCompute(ctx, fingerprint, query, n, func() rag.Context {
		return e.retriever.RetrieveContext(ctx, query, n)
	})
	took := time.Since(start)
	e.metrics.SearchLatency.WithLabelValues("context").Observe(took.Seconds())

	var top float64
	if len(out.Sources) > 0 {
		top = out.Sources[0].Score
	}
	e.observe(len(out.Sources), top, out.IsWorking)
	e.track(ctx, analytics.RetrievalEvent{
		Type:      analytics.EventContext,
		Query:     query,
		Requested: n,
		Returned:  len(out.Sources),
		TopScore:  top,
		Degraded:  !out.IsWorking,
		CacheHit:  hit,
	}, took)
	logger.FromContext(ctx).Info("context assembled",
		"query", query,
		"sources", len(out.Sources),
		"working", out.IsWorking,
		"cache_hit", hit,
		"latency", took,
	)
	return out, nil
}

func (e *Executor) Status() indexer.Status {
	return e.retriever.EngineStatus()
}

// Cache returns the context cache, nil when caching is disabled.
func (e *Executor) Cache() *cache.ContextCache {
	return e.cache
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.ContextTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.ContextTimeout)
}

func (e *Executor) observe(returned int, top float64, working bool) {
	switch {
	case !working:
		e.metrics.SearchQueriesTotal.WithLabelValues(OutcomeDegraded).Inc()
		return
	case returned == 0 || top == 0:
		e.metrics.SearchQueriesTotal.WithLabelValues(OutcomeZeroResult).Inc()
	default:
		e.metrics.SearchQueriesTotal.WithLabelValues(OutcomeHit).Inc()
	}
	e.metrics.SearchResultsCount.Observe(float64(returned))
	e.metrics.SearchTopScore.Observe(top)
}

func (e *Executor) track(ctx context.Context, event analytics.RetrievalEvent, took time.Duration) {
	if e.tracker == nil {
		return
	}
	event.LatencyMs = float64(took.Microseconds()) / 1000
	event.RequestID = logger.RequestID(ctx)
	event.Timestamp = time.Now().UTC()
	e.tracker.Track(event)
}
