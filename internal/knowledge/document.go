// Package knowledge defines the documents that make up the searchable corpus
// and the sources they are loaded from.
package knowledge

import "strings"

// Document is one entry of the knowledge base.
type Document struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	Content  string   `json:"content" yaml:"content"`
	Category string   `json:"category,omitempty" yaml:"category,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// IndexText is the text the index tokenizes for this document: content,
// title and keywords joined by single spaces.
func (d Document) IndexText() string {
	var b strings.Builder
	b.Grow(len(d.Content) + len(d.Title) + 16*len(d.Keywords) + 2)
	b.WriteString(d.Content)
	b.WriteByte(' ')
	b.WriteString(d.Title)
	b.WriteByte(' ')
	b.WriteString(strings.Join(d.Keywords, " "))
	return b.String()
}

// Base is the on-disk knowledge base layout.
type Base struct {
	Documents []Document `json:"documents" yaml:"documents"`
}
