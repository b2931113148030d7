package index

import "github.com/Adithya-Monish-Kumar-K/grounding-search/internal/indexer/tokenizer"

// Vocabulary assigns dense ids to terms in the order they are first seen.
type Vocabulary struct {
	ids   map[string]int
	terms []string
}

func NewVocabulary() *Vocabulary {
	return &Vocabulary{ids: make(map[string]int)}
}

// Add returns the id of term, assigning the next id if it is new.
func (v *Vocabulary) Add(term string) int {
	if id, ok := v.ids[term]; ok {
		return id
	}
	id := len(v.terms)
	v.ids[term] = id
	v.terms = append(v.terms, term)
	return id
}

func (v *Vocabulary) ID(term string) (int, bool) {
	id, ok := v.ids[term]
	return id, ok
}

// Term returns the term with the given id.
func (v *Vocabulary) Term(id int) string {
	return v.terms[id]
}

func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// DocFreq maps a term to the number of distinct documents containing it.
type DocFreq map[string]int

// BuildVocabulary tokenizes each text and counts every distinct term once per
// text. Vocabulary ids follow first appearance across texts in order.
func BuildVocabulary(texts []string) (*Vocabulary, DocFreq) {
	vocab := NewVocabulary()
	df := make(DocFreq)
	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, term := range tokenizer.Tokenize(text) {
			if _, dup := seen[term]; dup {
				continue
			}
			seen[term] = struct{}{}
			vocab.Add(term)
			df[term]++
		}
	}
	return vocab, df
}
