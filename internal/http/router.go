package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Meetings   *MeetingHandler
	Activities *ActivityHandler
	// Auth guards every route except the health check.
	Auth   func(http.Handler) http.Handler
	Health func(ctx context.Context) error
	Logger *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	responder := newResponder(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(logger), middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responder.writeJSON(req.Context(), w, http.StatusNotFound, errorResponse{Message: localizedStatusMessage(http.StatusNotFound)})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responder.writeJSON(req.Context(), w, http.StatusMethodNotAllowed, errorResponse{Message: "許可されていないメソッドです。"})
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(req.Context()); err != nil {
				responder.writeError(req.Context(), w, http.StatusServiceUnavailable, err)
				return
			}
		}
		responder.writeJSON(req.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}

		if cfg.Meetings != nil {
			r.Get("/activities/{activityID}/view", cfg.Meetings.View)
			r.Get("/activities/{activityID}/ready", cfg.Meetings.Ready)
			r.Post("/activities/{activityID}/nominate", cfg.Meetings.Nominate)
			r.Get("/activities/{activityID}/meetings", cfg.Meetings.Meetings)
		}

		if cfg.Activities != nil {
			r.Post("/courses/{courseID}/activities", cfg.Activities.Create)
			r.Put("/activities/{activityID}", cfg.Activities.Update)
			r.Delete("/activities/{activityID}", cfg.Activities.Delete)
		}
	})

	return r
}
