package index

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/indexer/tokenizer"
)

// Vector is a sparse TF-IDF vector keyed by term.
type Vector map[string]float64

// Vectorize weights each distinct term of text by tf/maxTF*idf. Terms with a
// zero idf stay in the vector with weight 0. Text without terms yields an
// empty vector.
func Vectorize(text string, w Weights) Vector {
	freq := tokenizer.Frequencies(text)
	if len(freq) == 0 {
		return Vector{}
	}
	maxFreq := 0
	for _, f := range freq {
		if f > maxFreq {
			maxFreq = f
		}
	}
	vec := make(Vector, len(freq))
	for term, f := range freq {
		vec[term] = float64(f) / float64(maxFreq) * w.IDF(term)
	}
	return vec
}

// Norm is the Euclidean length of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
