// Command searcher serves TF-IDF search and RAG grounding context over HTTP.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/knowledge"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/rag"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "knowledge_source", cfg.Knowledge.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("tracing shutdown error", "error", err)
		}
	}()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	var pg *postgres.Client
	if cfg.Knowledge.Source == config.SourcePostgres || cfg.Analytics.SnapshotInterval > 0 {
		pg, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable", "host", cfg.Postgres.Host, "error", err)
		} else {
			defer pg.Close()
		}
	}

	// A corpus failure leaves retrieval degraded rather than stopping the
	// service; /health/ready reports it.
	retriever, err := rag.Bootstrap(ctx, knowledgeSource(cfg, pg))
	if err != nil {
		slog.Error("serving without grounding", "error", err)
	}
	st := retriever.EngineStatus()
	m.IndexDocuments.Set(float64(st.Documents))
	m.IndexVocabulary.Set(float64(st.Vocabulary))
	if st.Ready {
		m.IndexBuildDuration.Observe(st.BuildTook.Seconds())
	}

	aggregator := analytics.NewAggregator()
	var publisher kafka.Publisher = analytics.Direct(aggregator)
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.AnalyticsTopic)
		defer producer.Close()
		publisher = producer

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.AnalyticsTopic, analytics.HandleEvent(aggregator))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
	}
	collector := analytics.NewCollector(publisher, m, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
	collector.Start(ctx)
	defer collector.Close()

	if pg != nil && cfg.Analytics.SnapshotInterval > 0 {
		store := analytics.NewSnapshotStore(pg.DB, cfg.Analytics.SnapshotTable)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("analytics snapshots disabled", "error", err)
		} else {
			store.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		}
	}

	// In-process callers of rag.RetrieveContext are tracked by the observer;
	// HTTP requests are tracked by the executor.
	rag.SetDefault(retriever.WithObserver(collector))

	var redisClient *pkgredis.Client
	var contextCache *cache.ContextCache
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, context caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			contextCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("context cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		st := retriever.EngineStatus()
		if !st.Ready {
			return health.ComponentHealth{Status: health.StatusDown, Message: "knowledge base not loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", st.Documents, st.Vocabulary),
		}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, true))
	}
	if pg != nil {
		checker.Register("postgres", health.PingCheck(pg.Ping, cfg.Knowledge.Source != config.SourcePostgres))
	}

	exec := executor.New(retriever, contextCache, collector, m, cfg.Search)
	h := handler.New(exec)
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	h.Register(mux, middleware.AdminToken(cfg.Server.AdminToken))
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *middleware.Limiter
	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Metrics(m),
		middleware.CORS(cfg.Server.AllowOrigins, 86400),
	}
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, 5*time.Minute)
		defer limiter.Stop()
		mws = append(mws, middleware.RateLimit(limiter, m))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.RequestTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

func knowledgeSource(cfg *config.Config, pg *postgres.Client) knowledge.Source {
	if cfg.Knowledge.Source == config.SourcePostgres {
		if pg == nil {
			return unavailableSource{name: "postgres:" + cfg.Knowledge.Table}
		}
		return knowledge.NewPostgresSource(pg.DB, cfg.Knowledge.Table)
	}
	return knowledge.NewFileSource(cfg.Knowledge.Path)
}

// unavailableSource stands in for a store that could not be reached at
// startup.
type unavailableSource struct {
	name string
}

func (u unavailableSource) Name() string { return u.name }

func (u unavailableSource) Load(context.Context) ([]knowledge.Document, error) {
	return nil, fmt.Errorf("%w: %s has no database connection", apperrors.ErrCorpusUnavailable, u.name)
}
