package connection

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"InboxGate/entity"
	"InboxGate/internal/lib/api/response"
	"InboxGate/internal/lib/sl"
)

type Core interface {
	LinkConnection(ctx context.Context, req *entity.LinkRequest) (*entity.ChannelConnection, error)
}

// Link stores an account authorized elsewhere; the token never appears in the response.
func Link(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.connection"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.LinkRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Warn("invalid link request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		conn, err := handler.LinkConnection(r.Context(), &req)
		if err != nil {
			logger.Error("link connection", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to link connection"))
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.Ok(conn))
	}
}
