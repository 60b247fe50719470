package message

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"InboxGate/entity"
	"InboxGate/internal/lib/api/response"
	"InboxGate/internal/lib/sl"
)

func List(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		logger := log.With(
			sl.Module("http.handlers.message"),
			slog.String("conversation_id", id),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var limit int64
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n < 0 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("Invalid limit"))
				return
			}
			limit = n
		}

		messages, err := handler.GetMessages(r.Context(), id, limit)
		if err != nil {
			logger.Error("get messages", sl.Err(err))
			if errors.Is(err, entity.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("Conversation not found"))
				return
			}
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to load messages"))
			return
		}

		render.JSON(w, r, response.Ok(messages))
	}
}
