package service

import (
	"context"
	"errors"
	"testing"

	"github.com/loomworks/ragbase/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSearchStore records the last SearchByVector call and replays scripted
// results.
type memSearchStore struct {
	results   []*SearchResult
	entries   []*domain.KnowledgeEntry
	searchErr error

	lastQuery  []float32
	lastK      int
	lastFilter SearchFilter

	lastPredicate   domain.Metadata
	lastContentType string
	lastLimit       int
}

func (m *memSearchStore) SearchByVector(ctx context.Context, query []float32, k int, filter SearchFilter) ([]*SearchResult, error) {
	m.lastQuery = query
	m.lastK = k
	m.lastFilter = filter
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.results, nil
}

func (m *memSearchStore) SearchByMetadata(ctx context.Context, predicate domain.Metadata, contentType string, limit int) ([]*domain.KnowledgeEntry, error) {
	m.lastPredicate = predicate
	m.lastContentType = contentType
	m.lastLimit = limit
	return m.entries, nil
}

func scoredResult(contentID string, score float32) *SearchResult {
	return &SearchResult{
		Entry: &domain.KnowledgeEntry{ContentID: contentID, ContentType: "doc"},
		Score: score,
	}
}

func TestSearch_EmbedsQueryAndForwardsFilter(t *testing.T) {
	store := &memSearchStore{results: []*SearchResult{scoredResult("1", 0.9)}}
	svc := NewSearchService(store, newStubEmbedder())

	results, err := svc.Search(context.Background(), SearchInput{
		Query:        "vacation policy",
		ContentTypes: []string{"policy"},
		Metadata:     domain.Metadata{"department": "hr"},
		Limit:        5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, embeddingFor("vacation policy"), store.lastQuery)
	assert.Equal(t, 5, store.lastK)
	assert.Equal(t, []string{"policy"}, store.lastFilter.ContentTypes)
	assert.Equal(t, domain.Metadata{"department": "hr"}, store.lastFilter.Metadata)
}

func TestSearch_DefaultLimit(t *testing.T) {
	store := &memSearchStore{}
	svc := NewSearchService(store, newStubEmbedder())

	_, err := svc.Search(context.Background(), SearchInput{Query: "anything"})
	require.NoError(t, err)
	assert.Equal(t, defaultSearchLimit, store.lastK)
}

func TestSearch_MinScoreFiltersResults(t *testing.T) {
	store := &memSearchStore{results: []*SearchResult{
		scoredResult("close", 0.92),
		scoredResult("near", 0.71),
		scoredResult("far", 0.33),
	}}
	svc := NewSearchService(store, newStubEmbedder())

	results, err := svc.Search(context.Background(), SearchInput{Query: "q", MinScore: 0.7})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close", results[0].Entry.ContentID)
	assert.Equal(t, "near", results[1].Entry.ContentID)
}

func TestSearch_EmbeddingFailure(t *testing.T) {
	store := &memSearchStore{}
	embedder := newStubEmbedder()
	embedder.failOn["broken"] = errors.New("api unavailable")
	svc := NewSearchService(store, embedder)

	_, err := svc.Search(context.Background(), SearchInput{Query: "broken"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeEmbedding, domain.ErrorCode(err))
	// The store is never consulted when embedding fails
	assert.Nil(t, store.lastQuery)
}

func TestSearch_StoreFailurePropagates(t *testing.T) {
	store := &memSearchStore{searchErr: domain.NewStorageError("query failed", errors.New("timeout"))}
	svc := NewSearchService(store, newStubEmbedder())

	_, err := svc.Search(context.Background(), SearchInput{Query: "q"})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeStorage, domain.ErrorCode(err))
}

func TestListByMetadata_DefaultLimit(t *testing.T) {
	store := &memSearchStore{entries: []*domain.KnowledgeEntry{{ContentID: "1"}}}
	svc := NewSearchService(store, newStubEmbedder())

	entries, err := svc.ListByMetadata(context.Background(), domain.Metadata{"team": "eng"}, "faq", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.Metadata{"team": "eng"}, store.lastPredicate)
	assert.Equal(t, "faq", store.lastContentType)
	assert.Equal(t, defaultSearchLimit, store.lastLimit)
}
