package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/rag"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/metrics"
)

// Collector buffers events and publishes them in batches, either when
// batchSize events are pending or every flushInterval.
type Collector struct {
	publisher     kafka.Publisher
	metrics       *metrics.Metrics
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	maxBuffered   int
	flushInterval time.Duration
	flushCh       chan struct{}
	logger        *slog.Logger
	started       atomic.Bool
	done          chan struct{}
}

func NewCollector(publisher kafka.Publisher, m *metrics.Metrics, batchSize int, flushInterval time.Duration) *Collector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		metrics:       m,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		maxBuffered:   batchSize * 10,
		flushInterval: flushInterval,
		flushCh:       make(chan struct{}, 1),
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start runs the flush loop until ctx is cancelled, then flushes once more.
func (c *Collector) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-c.flushCh:
				c.flush(ctx)
			case <-ctx.Done():
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "batch_size", c.batchSize, "flush_interval", c.flushInterval)
}

// Track queues an event. It never blocks; when the buffer is full the event
// is dropped and counted.
func (c *Collector) Track(event RetrievalEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	c.mu.Lock()
	if len(c.buffer) >= c.maxBuffered {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.AnalyticsEventsDropped.Inc()
		}
		c.logger.Warn("analytics event dropped (buffer full)")
		return
	}
	c.buffer = append(c.buffer, kafka.Event{Key: string(event.Type), Value: event})
	full := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if full {
		select {
		case c.flushCh <- struct{}{}:
		default:
		}
	}
}

// ObserveRetrieval records a context retrieval served by a rag.Retriever.
func (c *Collector) ObserveRetrieval(ctx context.Context, query string, n int, out rag.Context, topScore float64, took time.Duration) {
	c.Track(RetrievalEvent{
		Type:      EventContext,
		Query:     query,
		Requested: n,
		Returned:  len(out.Sources),
		TopScore:  topScore,
		Degraded:  !out.IsWorking,
		LatencyMs: float64(took.Microseconds()) / 1000,
		RequestID: logger.RequestID(ctx),
	})
}

// Close waits for the flush loop started by Start to exit. It returns at once
// when Start was never called.
func (c *Collector) Close() {
	if !c.started.Load() {
		return
	}
	<-c.done
}

// Pending is the number of buffered events.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		if over := len(c.buffer) - c.maxBuffered; over > 0 {
			c.buffer = c.buffer[:c.maxBuffered]
			if c.metrics != nil {
				c.metrics.AnalyticsEventsDropped.Add(float64(over))
			}
			c.logger.Warn("buffer overflow, events dropped", "dropped", over)
		}
		c.mu.Unlock()
		return
	}
	c.logger.Debug("batch flushed", "events", len(batch))
}

type direct struct {
	agg *Aggregator
}

// Direct returns a Publisher that records events straight into agg, for
// deployments without Kafka.
func Direct(agg *Aggregator) kafka.Publisher {
	return direct{agg: agg}
}

func (d direct) PublishBatch(_ context.Context, events []kafka.Event) error {
	for _, e := range events {
		if ev, ok := e.Value.(RetrievalEvent); ok {
			d.agg.Record(ev)
		}
	}
	return nil
}
