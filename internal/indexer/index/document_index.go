// Package index builds the immutable TF-IDF index over a knowledge corpus:
// vocabulary, document frequencies, idf weights and one vector per document.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/knowledge"
)

// DocumentIndex is built once and is safe for concurrent reads.
type DocumentIndex struct {
	docs        []knowledge.Document
	vectors     []Vector
	byID        map[string]int
	vocab       *Vocabulary
	df          DocFreq
	weights     Weights
	fingerprint string
}

// Build indexes docs in order. Every document keeps its own vector; when ids
// repeat, VectorFor resolves to the last one and a warning is logged.
func Build(docs []knowledge.Document) *DocumentIndex {
	logger := slog.Default().With("component", "index")

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.IndexText()
	}
	vocab, df := BuildVocabulary(texts)
	weights := NewWeights(df, len(docs))

	idx := &DocumentIndex{
		docs:    append([]knowledge.Document(nil), docs...),
		vectors: make([]Vector, len(docs)),
		byID:    make(map[string]int, len(docs)),
		vocab:   vocab,
		df:      df,
		weights: weights,
	}

	h := sha256.New()
	for i, d := range docs {
		idx.vectors[i] = Vectorize(texts[i], weights)
		if prev, dup := idx.byID[d.ID]; dup {
			logger.Warn("duplicate document id, lookups resolve to the later document",
				"doc_id", d.ID,
				"first_position", prev,
				"position", i,
			)
		}
		idx.byID[d.ID] = i
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		h.Write([]byte(texts[i]))
		h.Write([]byte{0})
	}
	idx.fingerprint = hex.EncodeToString(h.Sum(nil))[:16]
	return idx
}

// VectorFor returns the vector of the document with id.
func (x *DocumentIndex) VectorFor(id string) (Vector, bool) {
	i, ok := x.byID[id]
	if !ok {
		return nil, false
	}
	return x.vectors[i], true
}

// Document returns the document with id.
func (x *DocumentIndex) Document(id string) (knowledge.Document, bool) {
	i, ok := x.byID[id]
	if !ok {
		return knowledge.Document{}, false
	}
	return x.docs[i], true
}

// Documents returns the corpus in load order. Callers must not modify it.
func (x *DocumentIndex) Documents() []knowledge.Document {
	return x.docs
}

// Vectors returns document vectors aligned with Documents.
func (x *DocumentIndex) Vectors() []Vector {
	return x.vectors
}

// Vectorize weights text with this corpus's idf table.
func (x *DocumentIndex) Vectorize(text string) Vector {
	return Vectorize(text, x.weights)
}

func (x *DocumentIndex) IDF(term string) float64 {
	return x.weights.IDF(term)
}

func (x *DocumentIndex) DocFreq(term string) int {
	return x.df[term]
}

func (x *DocumentIndex) Len() int {
	return len(x.docs)
}

func (x *DocumentIndex) VocabularySize() int {
	return x.vocab.Len()
}

// Fingerprint identifies the corpus content; it changes whenever any id or
// indexed text changes.
func (x *DocumentIndex) Fingerprint() string {
	return x.fingerprint
}
