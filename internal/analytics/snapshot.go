package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/resilience"
)

const saveTimeout = 5 * time.Second

// SnapshotStore persists periodic AggregatedStats snapshots as JSONB rows.
type SnapshotStore struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

func NewSnapshotStore(db *sql.DB, table string) *SnapshotStore {
	return &SnapshotStore{
		db:     db,
		table:  table,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// SnapshotSchema returns the DDL for a snapshot table.
func SnapshotSchema(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          BIGSERIAL PRIMARY KEY,
	data        JSONB NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, pq.QuoteIdentifier(table))
}

func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, SnapshotSchema(s.table)); err != nil {
		return fmt.Errorf("creating %s: %w", s.table, err)
	}
	return nil
}

func (s *SnapshotStore) Save(ctx context.Context, stats AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	query := fmt.Sprintf("INSERT INTO %s (data, captured_at) VALUES ($1, $2)", pq.QuoteIdentifier(s.table))
	if _, err := s.db.ExecContext(ctx, query, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Info("analytics snapshot saved",
		"total_retrievals", stats.TotalRetrievals,
		"degraded", stats.Degraded,
	)
	return nil
}

// Latest returns nil, nil when no snapshot exists yet.
func (s *SnapshotStore) Latest(ctx context.Context) (*AggregatedStats, error) {
	var data []byte
	query := fmt.Sprintf("SELECT data FROM %s ORDER BY captured_at DESC LIMIT 1", pq.QuoteIdentifier(s.table))
	err := s.db.QueryRowContext(ctx, query).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// StartPeriodicSave snapshots agg every interval until ctx is done, with a
// final save on shutdown.
func (s *SnapshotStore) StartPeriodicSave(ctx context.Context, agg *Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := resilience.WithTimeout(ctx, saveTimeout, "analytics-snapshot", func(ctx context.Context) error {
					return s.Save(ctx, agg.Stats())
				})
				if err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
				if err := s.Save(saveCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				cancel()
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval, "table", s.table)
}
