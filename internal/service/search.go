package service

import (
	"context"

	"github.com/loomworks/ragbase/internal/domain"
	"github.com/loomworks/ragbase/internal/telemetry"
)

const defaultSearchLimit = 10

// SearchFilter restricts a vector search to matching entries.
type SearchFilter struct {
	// ContentTypes limits results to entries of the given types. Empty means all.
	ContentTypes []string
	// Metadata, when non-empty, requires containment: every key/value in the
	// predicate must be present in the entry's metadata.
	Metadata domain.Metadata
}

// SearchResult is one entry returned by a similarity search.
type SearchResult struct {
	Entry *domain.KnowledgeEntry
	// Distance is the cosine distance to the query vector; smaller is closer.
	Distance float32
	// Score is 1 / (1 + distance), a descending-is-better convenience.
	Score float32
}

// SearchStore is the storage contract for similarity and metadata lookups.
// Vector search is backed by an approximate-nearest-neighbor index: for k
// large relative to the index list count, results may miss some true
// neighbors. That is an accepted tradeoff, not a bug.
type SearchStore interface {
	SearchByVector(ctx context.Context, query []float32, k int, filter SearchFilter) ([]*SearchResult, error)
	SearchByMetadata(ctx context.Context, predicate domain.Metadata, contentType string, limit int) ([]*domain.KnowledgeEntry, error)
}

// SearchInput describes a semantic query against the knowledge base.
type SearchInput struct {
	Query        string
	ContentTypes []string
	Metadata     domain.Metadata
	Limit        int
	// MinScore drops results scoring below the threshold. Zero disables it.
	MinScore float32
}

// SearchService embeds a query and runs it against the vector store.
type SearchService struct {
	store    SearchStore
	embedder EmbeddingClient
}

func NewSearchService(store SearchStore, embedder EmbeddingClient) *SearchService {
	return &SearchService{
		store:    store,
		embedder: embedder,
	}
}

// Search embeds input.Query and returns the closest entries by cosine distance.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]*SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	queryVec, err := s.embedder.GenerateEmbedding(ctx, input.Query)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewEmbeddingError(err)
	}

	filter := SearchFilter{
		ContentTypes: input.ContentTypes,
		Metadata:     input.Metadata,
	}

	results, err := s.store.SearchByVector(ctx, queryVec, limit, filter)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if input.MinScore <= 0 {
		return results, nil
	}

	filtered := make([]*SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= input.MinScore {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// ListByMetadata returns entries matching an exact metadata predicate, no
// embedding involved.
func (s *SearchService) ListByMetadata(ctx context.Context, predicate domain.Metadata, contentType string, limit int) ([]*domain.KnowledgeEntry, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return s.store.SearchByMetadata(ctx, predicate, contentType, limit)
}
