package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/errors"
)

// FileSource reads a knowledge base file of the form {"documents": [...]}.
// Files ending in .yaml or .yml are parsed as YAML, everything else as JSON.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Name() string { return "file:" + f.Path }

func (f *FileSource) Load(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", apperrors.ErrCorpusUnavailable, f.Path, err)
	}
	base, err := decode(f.Path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", apperrors.ErrCorpusUnavailable, f.Path, err)
	}
	if err := Validate(base.Documents); err != nil {
		return nil, fmt.Errorf("validating %s: %w", f.Path, err)
	}
	return base.Documents, nil
}

func decode(path string, data []byte) (Base, error) {
	var base Base
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err := yaml.Unmarshal(data, &base)
		return base, err
	default:
		err := json.Unmarshal(data, &base)
		return base, err
	}
}
