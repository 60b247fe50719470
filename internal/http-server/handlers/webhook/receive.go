package webhook

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"InboxGate/internal/lib/api/response"
	"InboxGate/internal/lib/signature"
	"InboxGate/internal/lib/sl"
)

const (
	maxBodySize = 1 << 20
	// Ack is the body of every accepted delivery.
	Ack = "EVENT_RECEIVED"
)

// Receive acknowledges every authenticated delivery with 200, whatever happens while
// processing it. Only a failed signature check is rejected.
func Receive(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.webhook"),
			slog.String("provider", chi.URLParam(r, "provider")),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		hint, ok := providerHint(r)
		if !ok {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Unknown provider"))
			return
		}

		// the signature covers the raw bytes, so the body is read before any parsing
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			logger.Error("read webhook body", sl.Err(err))
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if !handler.VerifySignature(body, r.Header.Get(signature.Header)) {
			logger.Warn("webhook signature rejected")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		result, err := handler.HandleWebhook(r.Context(), hint, body)
		if err != nil {
			logger.Error("webhook not processed", sl.Err(err))
		} else {
			logger.With(
				slog.Int("received", result.Received),
				slog.Int("processed", result.Processed),
				slog.Int("duplicates", result.Duplicates),
				slog.Int("skipped", result.Skipped),
				slog.Int("failed", result.Failed),
			).Debug("webhook handled")
		}

		render.Status(r, http.StatusOK)
		render.PlainText(w, r, Ack)
	}
}
