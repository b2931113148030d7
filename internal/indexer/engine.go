// Package indexer holds the build-once TF-IDF search engine. The index is
// constructed synchronously in NewEngine and only read afterwards, so an
// Engine needs no locking.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/knowledge"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/searcher/ranker"
)

// ModelName identifies the weighting model in status reports.
const ModelName = "tf-idf"

type Engine struct {
	idx       *index.DocumentIndex
	logger    *slog.Logger
	builtAt   time.Time
	buildTook time.Duration
}

// Status reports engine readiness. A nil Engine is not ready.
type Status struct {
	Ready       bool          `json:"ready"`
	ModelName   string        `json:"modelName"`
	Documents   int           `json:"documents"`
	Vocabulary  int           `json:"vocabulary"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	BuiltAt     time.Time     `json:"builtAt,omitzero"`
	BuildTook   time.Duration `json:"buildTookNs,omitempty"`
}

// NewEngine indexes docs. An empty corpus is valid and every search on it
// returns no results.
func NewEngine(docs []knowledge.Document) *Engine {
	logger := slog.Default().With("component", "indexer")
	start := time.Now()
	idx := index.Build(docs)
	e := &Engine{
		idx:       idx,
		logger:    logger,
		builtAt:   time.Now(),
		buildTook: time.Since(start),
	}
	logger.Info("index built",
		"documents", idx.Len(),
		"vocabulary", idx.VocabularySize(),
		"fingerprint", idx.Fingerprint(),
		"duration", e.buildTook,
	)
	return e
}

// Load builds an engine from src. It fails when the corpus cannot be loaded
// or does not validate.
func Load(ctx context.Context, src knowledge.Source) (*Engine, error) {
	docs, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading corpus from %s: %w", src.Name(), err)
	}
	return NewEngine(docs), nil
}

// Search returns the top k documents for query; k <= 0 means
// ranker.DefaultTopK.
func (e *Engine) Search(query string, k int) []ranker.Result {
	if e == nil {
		return nil
	}
	qv := e.idx.Vectorize(query)
	return ranker.Rank(query, qv, e.idx.Documents(), e.idx.Vectors(), k)
}

func (e *Engine) Status() Status {
	if e == nil {
		return Status{Ready: false, ModelName: ModelName}
	}
	return Status{
		Ready:       true,
		ModelName:   ModelName,
		Documents:   e.idx.Len(),
		Vocabulary:  e.idx.VocabularySize(),
		Fingerprint: e.idx.Fingerprint(),
		BuiltAt:     e.builtAt,
		BuildTook:   e.buildTook,
	}
}
