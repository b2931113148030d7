// Package rag assembles grounding context for a text-generation call from
// the top search results. Retrieval never fails loudly: any internal error
// yields an empty context with IsWorking=false so the caller can answer
// without grounding.
package rag

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/logger"
)

const (
	// Separator joins the per-document blocks of a context.
	Separator = "\n\n---\n\n"

	SnippetLength = 150
	Ellipsis      = "..."

	DefaultResults = 3
)

var tracer = otel.Tracer("github.com/Adithya-Monish-Kumar-K/grounding-search/internal/rag")

// Source describes one document that contributed to a context. The json
// names are the wire contract of the chat collaborator.
type Source struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"fileName"`
	Snippet     string  `json:"snippet"`
	Score       float64 `json:"score"`
}

// Context is the result of a retrieval.
type Context struct {
	Context   string   `json:"context"`
	IsWorking bool     `json:"isWorking"`
	Sources   []Source `json:"sources"`
}

// Status reports whether retrieval is available.
type Status struct {
	Ready     bool   `json:"ready"`
	ModelName string `json:"modelName"`
}

// Searcher is the ranking dependency of a Retriever.
type Searcher interface {
	Search(query string, k int) []ranker.Result
	Status() indexer.Status
}

// Observer is notified after every retrieval.
type Observer interface {
	ObserveRetrieval(ctx context.Context, query string, n int, c Context, topScore float64, took time.Duration)
}

type Retriever struct {
	engine   Searcher
	observer Observer
}

// New returns a Retriever over engine. A nil engine yields a Retriever that
// is not ready and reports every retrieval as degraded.
func New(engine *indexer.Engine) *Retriever {
	if engine == nil {
		return newRetriever(nil)
	}
	return newRetriever(engine)
}

func newRetriever(s Searcher) *Retriever {
	return &Retriever{engine: s}
}

// WithObserver returns a copy of r that reports retrievals to o.
func (r *Retriever) WithObserver(o Observer) *Retriever {
	cp := *r
	cp.observer = o
	return &cp
}

// Unavailable returns an empty, non-working context.
func Unavailable() Context {
	return Context{Context: "", IsWorking: false, Sources: []Source{}}
}

// RetrieveContext returns up to n results for query assembled into a single
// context string. n <= 0 means DefaultResults. It never panics, including on
// a nil Retriever or a panicking Observer.
func (r *Retriever) RetrieveContext(ctx context.Context, query string, n int) (out Context) {
	if r == nil {
		return Unavailable()
	}
	start := time.Now()
	ctx, span := tracer.Start(ctx, "rag.RetrieveContext")
	span.SetAttributes(attribute.Int("rag.requested", n))
	var topScore float64
	requested := n

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%w: retrieval panic: %v", apperrors.ErrInternal, p)
			logger.FromContext(ctx).Error("retrieval failed", "component", "rag", "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			out = Unavailable()
		}
		span.SetAttributes(
			attribute.Bool("rag.working", out.IsWorking),
			attribute.Int("rag.sources", len(out.Sources)),
		)
		span.End()
		r.notify(ctx, query, requested, out, topScore, time.Since(start))
	}()

	if err := r.check(ctx); err != nil {
		logger.FromContext(ctx).Warn("retrieval degraded", "component", "rag", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Unavailable()
	}

	if n <= 0 {
		n = DefaultResults
	}
	requested = n
	results := r.engine.Search(query, n)
	if err := ctx.Err(); err != nil {
		return Unavailable()
	}
	if len(results) > 0 {
		topScore = results[0].Score
	}
	return Assemble(results)
}

func (r *Retriever) notify(ctx context.Context, query string, n int, out Context, topScore float64, took time.Duration) {
	if r.observer == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			logger.FromContext(ctx).Error("retrieval observer failed", "component", "rag", "panic", p)
		}
	}()
	r.observer.ObserveRetrieval(ctx, query, n, out, topScore, took)
}

func (r *Retriever) check(ctx context.Context) error {
	if r == nil || r.engine == nil {
		return apperrors.ErrEngineNotReady
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
	}
	return nil
}

// Status reports readiness and the weighting model name.
func (r *Retriever) Status() Status {
	if r == nil || r.engine == nil {
		return Status{Ready: false, ModelName: indexer.ModelName}
	}
	st := r.engine.Status()
	return Status{Ready: st.Ready, ModelName: st.ModelName}
}

// EngineStatus exposes the detailed engine status, or a not-ready status when
// no engine is attached.
func (r *Retriever) EngineStatus() indexer.Status {
	if r == nil || r.engine == nil {
		return indexer.Status{ModelName: indexer.ModelName}
	}
	return r.engine.Status()
}

// Search runs a raw ranked search, returning ErrEngineNotReady when no engine
// is attached.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]ranker.Result, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	_, span := tracer.Start(ctx, "rag.Search")
	defer span.End()
	return r.engine.Search(query, k), nil
}

// Assemble turns ranked results into a working Context. No results yield an
// empty context that is still working.
func Assemble(results []ranker.Result) Context {
	out := Context{IsWorking: true, Sources: make([]Source, 0, len(results))}
	blocks := make([]string, 0, len(results))
	for _, res := range results {
		d := res.Document
		blocks = append(blocks, d.Title+":\n"+d.Content)
		out.Sources = append(out.Sources, Source{
			ID:          d.ID,
			DisplayName: d.Title,
			Snippet:     Snippet(d.Content),
			Score:       RoundScore(res.Score),
		})
	}
	out.Context = strings.Join(blocks, Separator)
	return out
}

// Snippet is the first SnippetLength characters of content followed by
// Ellipsis. The marker is appended even to short content.
func Snippet(content string) string {
	if utf8.RuneCountInString(content) <= SnippetLength {
		return content + Ellipsis
	}
	runes := []rune(content)
	return string(runes[:SnippetLength]) + Ellipsis
}

// RoundScore rounds to two decimal places.
func RoundScore(s float64) float64 {
	return math.Round(s*100) / 100
}
