// Package analytics records what retrieval is asked for and how well it
// answers. Events flow collector -> Kafka -> aggregator; without Kafka the
// collector feeds the aggregator directly.
package analytics

import "time"

type EventType string

const (
	EventSearch  EventType = "search"
	EventContext EventType = "context"
)

// RetrievalEvent describes one search or context request.
type RetrievalEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	Requested   int       `json:"requested"`
	Returned    int       `json:"returned"`
	TopScore    float64   `json:"top_score"`
	Degraded    bool      `json:"degraded"`
	CacheHit    bool      `json:"cache_hit"`
	LatencyMs   float64   `json:"latency_ms"`
	RequestID   string    `json:"request_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ZeroResult reports a working retrieval that found nothing relevant.
func (e RetrievalEvent) ZeroResult() bool {
	return !e.Degraded && (e.Returned == 0 || e.TopScore == 0)
}
