package knowledge

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/errors"
)

const maxTitleLength = 1024

// ValidationError holds per-document failure messages keyed by position.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidDocument
}

// Validate checks that every document has an id, a title and content.
func Validate(docs []Document) error {
	errs := make(map[string]string)
	for i, d := range docs {
		key := fmt.Sprintf("documents[%d]", i)
		switch {
		case strings.TrimSpace(d.ID) == "":
			errs[key] = "id is required"
		case strings.TrimSpace(d.Title) == "":
			errs[key] = fmt.Sprintf("title is required (id %q)", d.ID)
		case len(d.Title) > maxTitleLength:
			errs[key] = fmt.Sprintf("title must be at most %d characters (id %q)", maxTitleLength, d.ID)
		case strings.TrimSpace(d.Content) == "":
			errs[key] = fmt.Sprintf("content is required (id %q)", d.ID)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
