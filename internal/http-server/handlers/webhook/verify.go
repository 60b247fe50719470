package webhook

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"InboxGate/internal/lib/sl"
)

// Verify answers the subscription handshake by echoing hub.challenge.
func Verify(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		mode := query.Get("hub.mode")
		logger := log.With(
			sl.Module("http.handlers.webhook"),
			slog.String("provider", chi.URLParam(r, "provider")),
			slog.String("mode", mode),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if _, ok := providerHint(r); !ok || !handler.VerifySubscription(mode, query.Get("hub.verify_token")) {
			logger.Warn("webhook verification failed")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		logger.Info("webhook verified")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(query.Get("hub.challenge")))
	}
}
