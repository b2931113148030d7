package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/knowledge"
	apperrors "github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/errors"
)

func TestDefaultLifecycle(t *testing.T) {
	t.Cleanup(func() { SetDefault(nil) })

	SetDefault(nil)
	assert.False(t, Default().Status().Ready)
	assert.False(t, RetrieveContext(context.Background(), "refund", 2).IsWorking)

	SetDefault(New(indexer.NewEngine(scenarioDocs())))
	assert.True(t, Default().Status().Ready)
	got := RetrieveContext(context.Background(), "refund policy", 2)
	assert.True(t, got.IsWorking)
	assert.Len(t, got.Sources, 2)
}

func TestBootstrapFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"documents":[
		{"id":"1","title":"Refund Policy","content":"Refunds within 30 days.","keywords":["refund","money back"]}
	]}`), 0o644))

	r, err := Bootstrap(context.Background(), knowledge.NewFileSource(path))
	require.NoError(t, err)
	assert.True(t, r.Status().Ready)
	assert.Equal(t, 1, r.EngineStatus().Documents)
}

func TestBootstrapMissingCorpus(t *testing.T) {
	r, err := Bootstrap(context.Background(), knowledge.NewFileSource(filepath.Join(t.TempDir(), "nope.json")))
	assert.ErrorIs(t, err, apperrors.ErrCorpusUnavailable)
	require.NotNil(t, r)
	assert.False(t, r.Status().Ready)
	assert.False(t, r.RetrieveContext(context.Background(), "refund", 3).IsWorking)
}
