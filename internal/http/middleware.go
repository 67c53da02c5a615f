package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/example/teammeeting/internal/application"
	"github.com/example/teammeeting/internal/logging"
)

type requestAuthenticator interface {
	Authenticate(r *http.Request) (application.Principal, error)
}

// RequireAuth rejects requests without a valid credential and stores the
// principal in the request context.
func RequireAuth(authenticator requestAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authenticator.Authenticate(r)
			if err != nil {
				switch {
				case errors.Is(err, errMissingCredentials):
					responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingCredentials)
				case errors.Is(err, application.ErrInvalidToken):
					responder.loggerFor(r.Context()).WarnContext(r.Context(), "credential rejected", "error", err)
					responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
						ErrorCode: "INVALID_TOKEN",
						Message:   errInvalidCredentials.Error(),
					})
				default:
					responder.loggerFor(r.Context()).ErrorContext(r.Context(), "credential verification failed", "error", err)
					responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{Message: "認証処理中にエラーが発生しました。"})
				}
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			ctx = logging.ContextWithLogger(ctx, logging.FromContextOr(ctx, logger).With("principal_id", principal.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request scoped logger carrying the chi request id.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(ww, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", ww.Status(), "duration", time.Since(start))
		})
	}
}
