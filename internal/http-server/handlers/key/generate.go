package key

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"InboxGate/entity"
	"InboxGate/internal/lib/api/cont"
	"InboxGate/internal/lib/api/response"
	"InboxGate/internal/lib/sl"
)

type Core interface {
	GenerateApiKey(ctx context.Context, username string) (string, error)
}

func Generate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.key"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		if user := cont.GetUser(r.Context()); user != nil {
			logger = logger.With(slog.String("issued_by", user.Username))
		}

		var req entity.KeyRequest
		if err := render.Bind(r, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		apiKey, err := handler.GenerateApiKey(r.Context(), req.Username)
		if err != nil {
			logger.Error("generate api key", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to generate key"))
			return
		}

		logger.With(slog.String("username", req.Username)).Info("api key issued")
		render.JSON(w, r, response.Ok(map[string]string{"username": req.Username, "key": apiKey}))
	}
}
