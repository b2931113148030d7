// Package tokenizer turns free text into index terms. Text is lower-cased,
// split on every rune that is not an ASCII letter, digit or underscore, and
// tokens of two characters or fewer are dropped. Non-ASCII letters act as
// separators. There is no stemming and no stop-word list.
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// MinTermLength is the shortest token that is kept.
const MinTermLength = 3

// isSeparator reports whether r falls outside [A-Za-z0-9_].
func isSeparator(r rune) bool {
	if r >= utf8.RuneSelf {
		return true
	}
	switch {
	case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9', r == '_':
		return false
	}
	return true
}

// Tokenize returns the terms of text in order of appearance. Empty or
// whitespace-only input yields an empty, non-nil slice.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), isSeparator)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) < MinTermLength {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

// Frequencies counts each term of text.
func Frequencies(text string) map[string]int {
	terms := Tokenize(text)
	freq := make(map[string]int, len(terms))
	for _, t := range terms {
		freq[t]++
	}
	return freq
}
