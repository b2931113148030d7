package knowledge

import "context"

// Source loads the full corpus. Implementations wrap
// apperrors.ErrCorpusUnavailable when the corpus cannot be read.
type Source interface {
	Load(ctx context.Context) ([]Document, error)
	Name() string
}

// Static serves a fixed in-memory corpus.
type Static []Document

func (s Static) Load(context.Context) ([]Document, error) {
	out := make([]Document, len(s))
	copy(out, s)
	return out, nil
}

func (s Static) Name() string { return "static" }
