package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/loomworks/ragbase/internal/api"
	"github.com/loomworks/ragbase/internal/api/handlers"
	"github.com/loomworks/ragbase/internal/api/middleware"
)

type RouterConfig struct {
	KnowledgeHandler *handlers.KnowledgeHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 1 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", cfg.KnowledgeHandler.Search)
		r.Get("/entries", cfg.KnowledgeHandler.ListEntries)
		r.Get("/stats", cfg.KnowledgeHandler.Stats)
	})

	return r
}
