package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexText(t *testing.T) {
	d := Document{Title: "Refund Policy", Content: "Refunds within 30 days.", Keywords: []string{"refund", "money back"}}
	assert.Equal(t, "Refunds within 30 days. Refund Policy refund money back", d.IndexText())

	empty := Document{Title: "T", Content: "C"}
	assert.Equal(t, "C T ", empty.IndexText())
}

func TestFileSourceJSON(t *testing.T) {
	path := writeFile(t, "kb.json", `{"documents":[
		{"id":"1","title":"Refund Policy","content":"Refunds within 30 days.","category":"billing","keywords":["refund"]},
		{"id":"2","title":"Shipping","content":"Ships in 2 days."}
	]}`)

	docs, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "billing", docs[0].Category)
	assert.Equal(t, []string{"refund"}, docs[0].Keywords)
	assert.Nil(t, docs[1].Keywords)
}

func TestFileSourceYAML(t *testing.T) {
	path := writeFile(t, "kb.yaml", `
documents:
  - id: a
    title: Passwords
    content: Reset your password from settings.
    keywords: [password, reset]
`)
	docs, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []string{"password", "reset"}, docs[0].Keywords)
}

func TestFileSourceEmptyCorpus(t *testing.T) {
	path := writeFile(t, "kb.json", `{"documents":[]}`)
	docs, err := NewFileSource(path).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestFileSourceFailures(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.json")).Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrCorpusUnavailable)

	_, err = NewFileSource(writeFile(t, "bad.json", `{"documents":[`)).Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrCorpusUnavailable)

	_, err = NewFileSource(writeFile(t, "invalid.json", `{"documents":[{"id":"","title":"x","content":"y"}]}`)).Load(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrInvalidDocument)
}

func TestValidate(t *testing.T) {
	err := Validate([]Document{
		{ID: "1", Title: "ok", Content: "fine"},
		{ID: "2", Title: " ", Content: "no title"},
		{ID: "3", Title: "no content"},
		{Title: "no id", Content: "x"},
		{ID: "5", Title: strings.Repeat("t", maxTitleLength+1), Content: "x"},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 4)
	assert.Contains(t, verr.Fields["documents[1]"], "title")
	assert.Contains(t, verr.Fields["documents[2]"], "content")
	assert.Contains(t, verr.Fields["documents[3]"], "id")
	assert.Contains(t, verr.Fields["documents[4]"], "at most")

	assert.NoError(t, Validate(nil))
}

func TestStaticCopies(t *testing.T) {
	src := Static{{ID: "1", Title: "t", Content: "c"}}
	docs, err := src.Load(context.Background())
	require.NoError(t, err)
	docs[0].Title = "changed"
	assert.Equal(t, "t", src[0].Title)
}

func TestQueriesQuoteTable(t *testing.T) {
	assert.Equal(t, `SELECT id, title, content, category, keywords FROM "kb docs" ORDER BY position, id`, selectQuery("kb docs"))
	assert.Contains(t, insertQuery("knowledge_documents"), `INTO "knowledge_documents"`)
	assert.Contains(t, Schema("knowledge_documents"), "keywords TEXT[]")
}
