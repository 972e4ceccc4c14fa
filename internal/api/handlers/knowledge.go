package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/loomworks/ragbase/internal/api"
	"github.com/loomworks/ragbase/internal/domain"
	"github.com/loomworks/ragbase/internal/repository"
	"github.com/loomworks/ragbase/internal/service"
)

type KnowledgeSearcher interface {
	Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error)
	ListByMetadata(ctx context.Context, predicate domain.Metadata, contentType string, limit int) ([]*domain.KnowledgeEntry, error)
}

type StatsStore interface {
	Count(ctx context.Context) (int64, error)
	CountByContentType(ctx context.Context) ([]repository.TypeCount, error)
}

type KnowledgeHandler struct {
	svc   KnowledgeSearcher
	stats StatsStore
}

func NewKnowledgeHandler(svc KnowledgeSearcher, stats StatsStore) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc, stats: stats}
}

type SearchRequest struct {
	Query        string          `json:"query"`
	ContentTypes []string        `json:"content_types,omitempty"`
	Metadata     domain.Metadata `json:"metadata,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	MinScore     float32         `json:"min_score,omitempty"`
}

type EntryResponse struct {
	ID          string          `json:"id"`
	ContentID   string          `json:"content_id"`
	ContentType string          `json:"content_type"`
	Title       string          `json:"title,omitempty"`
	Content     string          `json:"content"`
	Metadata    domain.Metadata `json:"metadata,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

type SearchResultResponse struct {
	Entry    *EntryResponse `json:"entry"`
	Distance float32        `json:"distance"`
	Score    float32        `json:"score"`
}

type SearchResponse struct {
	Results []*SearchResultResponse `json:"results"`
}

type EntryListResponse struct {
	Items []*EntryResponse `json:"items"`
}

type StatsResponse struct {
	Total  int64            `json:"total"`
	ByType map[string]int64 `json:"by_type"`
}

func entryToResponse(e *domain.KnowledgeEntry) *EntryResponse {
	return &EntryResponse{
		ID:          e.ID,
		ContentID:   e.ContentID,
		ContentType: e.ContentType,
		Title:       e.Title,
		Content:     e.Content,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	input := service.SearchInput{
		Query:        req.Query,
		ContentTypes: req.ContentTypes,
		Metadata:     req.Metadata,
		Limit:        req.Limit,
		MinScore:     req.MinScore,
	}

	results, err := h.svc.Search(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchResultResponse, len(results))
	for i, result := range results {
		responses[i] = &SearchResultResponse{
			Entry:    entryToResponse(result.Entry),
			Distance: result.Distance,
			Score:    result.Score,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{Results: responses})
}

func (h *KnowledgeHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	contentType := r.URL.Query().Get("content_type")
	limitStr := r.URL.Query().Get("limit")
	limit := 0
	if limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	predicate := domain.Metadata{}
	if raw := r.URL.Query().Get("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &predicate); err != nil {
			api.Error(w, http.StatusBadRequest, "metadata must be a JSON object")
			return
		}
	}

	entries, err := h.svc.ListByMetadata(r.Context(), predicate, contentType, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		items[i] = entryToResponse(e)
	}

	api.Success(w, http.StatusOK, EntryListResponse{Items: items})
}

func (h *KnowledgeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	total, err := h.stats.Count(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	counts, err := h.stats.CountByContentType(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	byType := make(map[string]int64, len(counts))
	for _, tc := range counts {
		byType[tc.ContentType] = tc.Count
	}

	api.Success(w, http.StatusOK, StatsResponse{Total: total, ByType: byType})
}
