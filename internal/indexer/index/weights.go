package index

import "math"

// Weights is the inverse-document-frequency table of a corpus. It is never
// modified after NewWeights returns.
type Weights struct {
	idf map[string]float64
	n   int
}

// NewWeights computes idf = ln(n/df) for every term in df. A term present in
// every document gets 0.
func NewWeights(df DocFreq, n int) Weights {
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		if count <= 0 || n <= 0 {
			continue
		}
		idf[term] = math.Log(float64(n) / float64(count))
	}
	return Weights{idf: idf, n: n}
}

// IDF returns the weight of term, or 0 for terms outside the corpus.
func (w Weights) IDF(term string) float64 {
	return w.idf[term]
}

// Documents is the corpus size the table was computed from.
func (w Weights) Documents() int {
	return w.n
}
