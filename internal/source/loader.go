// Package source reads candidate items for ingestion from external feeds.
// Loaders return items in a deterministic order: ordering does not affect
// the final store state, but it keeps run logs reproducible.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/loomworks/ragbase/internal/domain"
)

// Loader enumerates source items for one ingestion run.
type Loader interface {
	Load(ctx context.Context) ([]domain.SourceItem, error)
}

// decodeItems reads source items from r. A document starting with '[' is
// decoded as a JSON array; anything else is treated as newline-delimited
// JSON, one item per line.
func decodeItems(r io.Reader, name string) ([]domain.SourceItem, error) {
	br := bufio.NewReader(r)

	first, err := peekNonSpace(br)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	if first == '[' {
		var items []domain.SourceItem
		if err := json.NewDecoder(br).Decode(&items); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", name, err)
		}
		return items, nil
	}

	var items []domain.SourceItem
	dec := json.NewDecoder(br)
	for {
		var item domain.SourceItem
		if err := dec.Decode(&item); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode %s: %w", name, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := br.ReadByte(); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}
