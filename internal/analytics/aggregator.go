package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/kafka"
)

const (
	maxLatencySamples = 10000
	// maxTrackedQueries bounds each per-query counter map. When a map grows
	// past it, only the most frequent half is kept.
	maxTrackedQueries = 10000
)

type AggregatedStats struct {
	TotalRetrievals   int64        `json:"total_retrievals"`
	Searches          int64        `json:"searches"`
	Contexts          int64        `json:"contexts"`
	Degraded          int64        `json:"degraded"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	AvgTopScore       float64      `json:"avg_top_score"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      float64      `json:"p50_latency_ms"`
	P95LatencyMs      float64      `json:"p95_latency_ms"`
	P99LatencyMs      float64      `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals of retrieval events. Latency percentiles
// are computed over the most recent samples only.
type Aggregator struct {
	mu                sync.RWMutex
	stats             AggregatedStats
	topScoreSum       float64
	scored            int64
	latencies         []float64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]float64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes Kafka messages into the aggregator.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RetrievalEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Record(e RetrievalEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalRetrievals++
	switch e.Type {
	case EventSearch:
		a.stats.Searches++
	case EventContext:
		a.stats.Contexts++
		if e.CacheHit {
			a.stats.CacheHits++
		} else {
			a.stats.CacheMisses++
		}
	}
	if e.Degraded {
		a.stats.Degraded++
	} else {
		a.topScoreSum += e.TopScore
		a.scored++
	}
	if e.ZeroResult() {
		a.stats.ZeroResultCount++
		a.zeroResultQueries = countQuery(a.zeroResultQueries, e.Query)
	}
	a.queryCounts = countQuery(a.queryCounts, e.Query)

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, e.LatencyMs)
	} else {
		a.latencies[a.next] = e.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	if a.scored > 0 {
		stats.AvgTopScore = a.topScoreSum / float64(a.scored)
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)
		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalRetrievals) / elapsed
	}
	return stats
}

func countQuery(counts map[string]int64, query string) map[string]int64 {
	counts[query]++
	if len(counts) <= maxTrackedQueries {
		return counts
	}
	kept := make(map[string]int64, maxTrackedQueries)
	for _, qc := range topN(counts, maxTrackedQueries/2) {
		kept[qc.Query] = qc.Count
	}
	return kept
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, so equal counts list deterministically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
