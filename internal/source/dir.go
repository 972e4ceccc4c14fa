package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/loomworks/ragbase/internal/domain"
)

// DirLoader reads source items from JSON documents under a directory.
type DirLoader struct {
	root    string
	pattern string
}

// NewDirLoader creates a loader over root. Pattern is a doublestar glob
// relative to root (e.g. "**/*.json"); empty means all JSON files.
func NewDirLoader(root, pattern string) *DirLoader {
	if pattern == "" {
		pattern = "**/*.json"
	}
	return &DirLoader{
		root:    root,
		pattern: pattern,
	}
}

// Load decodes every matching file, sorted by path for deterministic order.
func (l *DirLoader) Load(ctx context.Context) ([]domain.SourceItem, error) {
	matches, err := doublestar.Glob(os.DirFS(l.root), l.pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid source pattern %q: %w", l.pattern, err)
	}
	sort.Strings(matches)

	var items []domain.SourceItem
	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(l.root, filepath.FromSlash(match))
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open source file: %w", err)
		}

		fileItems, err := decodeItems(f, match)
		f.Close()
		if err != nil {
			return nil, err
		}
		items = append(items, fileItems...)
	}

	return items, nil
}
