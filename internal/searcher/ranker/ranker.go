// Package ranker scores documents against a query vector by cosine
// similarity plus substring boosts and returns the top k.
package ranker

import (
	"math"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/knowledge"
)

const (
	// DefaultTopK applies when a caller asks for k <= 0.
	DefaultTopK = 3

	TitleBoost   = 0.2
	KeywordBoost = 0.1
)

type Result struct {
	Document knowledge.Document `json:"document"`
	Score    float64            `json:"score"`
}

// CosineSimilarity over the union of both vectors' terms. Returns 0 when
// either vector has zero length.
func CosineSimilarity(a, b index.Vector) float64 {
	var dot, normA, normB float64
	for term, x := range a {
		dot += x * b[term]
		normA += x * x
	}
	for _, y := range b {
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Boost is the additive bonus for a raw query: TitleBoost when the title
// contains it and KeywordBoost when any keyword does, case-insensitively.
// Containment is literal, so an empty query matches every title.
func Boost(doc knowledge.Document, query string) float64 {
	q := strings.ToLower(query)
	var boost float64
	if strings.Contains(strings.ToLower(doc.Title), q) {
		boost += TitleBoost
	}
	for _, kw := range doc.Keywords {
		if strings.Contains(strings.ToLower(kw), q) {
			boost += KeywordBoost
			break
		}
	}
	return boost
}

// Rank scores every document and returns the best min(k, len(docs)) in
// descending score order. Equal scores keep corpus order. vectors must be
// aligned with docs.
func Rank(query string, queryVec index.Vector, docs []knowledge.Document, vectors []index.Vector, k int) []Result {
	if k <= 0 {
		k = DefaultTopK
	}
	results := make([]Result, len(docs))
	for i, doc := range docs {
		results[i] = Result{
			Document: doc,
			Score:    CosineSimilarity(queryVec, vectors[i]) + Boost(doc, query),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}
