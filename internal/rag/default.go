package rag

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/knowledge"
)

var defaultRetriever atomic.Pointer[Retriever]

// Default returns the process-wide Retriever installed by SetDefault. Before
// SetDefault is called it returns a Retriever that is not ready.
func Default() *Retriever {
	if r := defaultRetriever.Load(); r != nil {
		return r
	}
	return New(nil)
}

// SetDefault installs r as the process-wide Retriever.
func SetDefault(r *Retriever) {
	defaultRetriever.Store(r)
}

// RetrieveContext calls RetrieveContext on the default Retriever.
func RetrieveContext(ctx context.Context, query string, n int) Context {
	return Default().RetrieveContext(ctx, query, n)
}

// Bootstrap loads the corpus from src and builds a Retriever over it. When
// the corpus cannot be loaded the failure is logged and the returned
// Retriever reports not ready; callers keep serving without grounding.
func Bootstrap(ctx context.Context, src knowledge.Source) (*Retriever, error) {
	engine, err := indexer.Load(ctx, src)
	if err != nil {
		slog.Default().With("component", "rag").Error("knowledge base unavailable, retrieval disabled",
			"source", src.Name(),
			"error", err,
		)
		return New(nil), err
	}
	return New(engine), nil
}
