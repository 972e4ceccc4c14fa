package service

import (
	"context"
	"errors"
	"testing"

	"github.com/loomworks/ragbase/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshOptions_Mode(t *testing.T) {
	tests := []struct {
		name string
		opts RefreshOptions
		want Mode
	}{
		{"no flags", RefreshOptions{}, ModePopulate},
		{"force refresh", RefreshOptions{ForceRefresh: true}, ModeForceRefresh},
		{"clear first", RefreshOptions{ClearFirst: true}, ModeClearFirst},
		{"both flags collapse to clear-first", RefreshOptions{ForceRefresh: true, ClearFirst: true}, ModeClearFirst},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.Mode())
		})
	}
}

func TestRefreshRun_PopulateDefault(t *testing.T) {
	store := newMemStore()
	svc := NewRefreshService(NewIngestionService(store, newStubEmbedder()), store)

	result, err := svc.Run(context.Background(), sampleItems(), RefreshOptions{})
	require.NoError(t, err)

	assert.Equal(t, ModePopulate, result.Mode)
	assert.Equal(t, int64(0), result.Cleared)
	assert.Equal(t, 3, result.Summary.Created)
}

func TestRefreshRun_ClearFirstEmptiesStoreBeforeIngest(t *testing.T) {
	store := newMemStore()
	embedder := newStubEmbedder()
	pipeline := NewIngestionService(store, embedder)
	svc := NewRefreshService(pipeline, store)

	// Seed entries, including one absent from the new source set
	seed := append(sampleItems(), domain.SourceItem{
		ContentID: "stale", ContentType: "policy", Content: "obsolete entry",
	})
	_, err := svc.Run(context.Background(), seed, RefreshOptions{})
	require.NoError(t, err)
	require.Equal(t, 4, store.size())

	result, err := svc.Run(context.Background(), sampleItems(), RefreshOptions{ClearFirst: true})
	require.NoError(t, err)

	assert.Equal(t, ModeClearFirst, result.Mode)
	assert.Equal(t, int64(4), result.Cleared)
	// Every item went down the create path; the stale entry is gone
	assert.Equal(t, 3, result.Summary.Created)
	assert.Equal(t, 0, result.Summary.Updated)
	assert.Equal(t, 0, result.Summary.Skipped)
	assert.Equal(t, 3, store.size())
	assert.Nil(t, store.entry("stale", "policy"))
}

func TestRefreshRun_ClearFirstWithForceRefreshIsEquivalent(t *testing.T) {
	store := newMemStore()
	svc := NewRefreshService(NewIngestionService(store, newStubEmbedder()), store)

	_, err := svc.Run(context.Background(), sampleItems(), RefreshOptions{})
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), sampleItems(), RefreshOptions{ClearFirst: true, ForceRefresh: true})
	require.NoError(t, err)

	assert.Equal(t, ModeClearFirst, result.Mode)
	assert.Equal(t, 3, result.Summary.Created)
	assert.Equal(t, 0, result.Summary.Updated)
}

func TestRefreshRun_ForceRefreshDoesNotDelete(t *testing.T) {
	store := newMemStore()
	svc := NewRefreshService(NewIngestionService(store, newStubEmbedder()), store)

	seed := append(sampleItems(), domain.SourceItem{
		ContentID: "keep", ContentType: "policy", Content: "not in next source set",
	})
	_, err := svc.Run(context.Background(), seed, RefreshOptions{})
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), sampleItems(), RefreshOptions{ForceRefresh: true})
	require.NoError(t, err)

	// Non-destructive: the entry absent from the source set survives
	assert.Equal(t, 3, result.Summary.Updated)
	assert.Equal(t, 4, store.size())
	assert.NotNil(t, store.entry("keep", "policy"))
}

func TestRefreshRun_ClearFailureIsFatal(t *testing.T) {
	store := newMemStore()
	store.clearErr = errors.New("connection lost")
	embedder := newStubEmbedder()
	svc := NewRefreshService(NewIngestionService(store, embedder), store)

	_, err := svc.Run(context.Background(), sampleItems(), RefreshOptions{ClearFirst: true})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeStorage, domain.ErrorCode(err))
	// The run aborts before any item is processed
	assert.Equal(t, 0, embedder.callCount())
}
