package server

import (
	"log/slog"
	"net/http"

	"github.com/cloo-solutions/witsync/internal/api"
	"github.com/cloo-solutions/witsync/internal/api/handlers"
	"github.com/cloo-solutions/witsync/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	SyncHandler *handlers.SyncHandler
	Logger      *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/watermark", cfg.SyncHandler.Watermark)
	r.Post("/sync", cfg.SyncHandler.Trigger)

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", cfg.SyncHandler.ListRuns)
		r.Get("/{id}", cfg.SyncHandler.GetRun)
	})

	return r
}
