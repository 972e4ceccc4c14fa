package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/loomworks/ragbase/internal/api/handlers"
	"github.com/loomworks/ragbase/internal/domain"
	"github.com/loomworks/ragbase/internal/repository"
	"github.com/loomworks/ragbase/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.SearchResult), args.Error(1)
}

func (m *MockSearcher) ListByMetadata(ctx context.Context, predicate domain.Metadata, contentType string, limit int) ([]*domain.KnowledgeEntry, error) {
	args := m.Called(ctx, predicate, contentType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeEntry), args.Error(1)
}

type MockStatsStore struct {
	mock.Mock
}

func (m *MockStatsStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStatsStore) CountByContentType(ctx context.Context) ([]repository.TypeCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.TypeCount), args.Error(1)
}

func setupRouter() (http.Handler, *MockSearcher, *MockStatsStore) {
	searcher := new(MockSearcher)
	stats := new(MockStatsStore)

	cfg := RouterConfig{
		KnowledgeHandler: handlers.NewKnowledgeHandler(searcher, stats),
	}

	return NewRouter(cfg), searcher, stats
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_Search(t *testing.T) {
	router, searcher, _ := setupRouter()

	searcher.On("Search", mock.Anything, mock.MatchedBy(func(input service.SearchInput) bool {
		return input.Query == "expense reports"
	})).Return([]*service.SearchResult{
		{
			Entry: &domain.KnowledgeEntry{
				ID:          "e-1",
				ContentID:   "9",
				ContentType: "policy",
				Content:     "travel expense policy",
				CreatedAt:   time.Now().UTC(),
				UpdatedAt:   time.Now().UTC(),
			},
			Distance: 0.2,
			Score:    0.83,
		},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"expense reports"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	searcher.AssertExpectations(t)
}

func TestRouter_Stats(t *testing.T) {
	router, _, stats := setupRouter()

	stats.On("Count", mock.Anything).Return(int64(3), nil)
	stats.On("CountByContentType", mock.Anything).Return([]repository.TypeCount{
		{ContentType: "policy", Count: 3},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	stats.AssertExpectations(t)
}

func TestRouter_OversizedBody(t *testing.T) {
	router, _, _ := setupRouter()

	body := strings.NewReader(`{"query":"q"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/search", body)
	req.ContentLength = 2 * 1024 * 1024
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
