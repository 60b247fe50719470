package refresh

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"InboxGate/internal/lib/api/response"
	"InboxGate/internal/lib/sl"
	"InboxGate/internal/service/refresh"
)

type Core interface {
	RunRefresh(ctx context.Context) (*refresh.Report, error)
}

// Run triggers one token refresh pass and returns its report.
func Run(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.refresh"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		report, err := handler.RunRefresh(r.Context())
		if err != nil {
			logger.Error("refresh run", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		logger.With(
			slog.Int("checked", report.Checked),
			slog.Int("refreshed", report.Refreshed),
			slog.Int("failed", report.Failed),
			slog.Int("expired", report.Expired),
		).Info("refresh run requested")
		render.JSON(w, r, response.Ok(report))
	}
}
