package message

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"InboxGate/entity"
	"InboxGate/internal/lib/sl"
	"InboxGate/internal/service/graph"
)

// Send dispatches an agent reply. A provider rejection is returned with the provider's own message.
func Send(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.message"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.SendRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Warn("invalid send request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, entity.SendResponse{Error: err.Error()})
			return
		}
		logger = logger.With(slog.String("conversation_id", req.ConversationID))

		msg, err := handler.SendMessage(r.Context(), req.ConversationID, req.Message)
		if err != nil {
			logger.Error("send message", sl.Err(err))
			render.Status(r, statusFor(err))
			render.JSON(w, r, entity.SendResponse{Error: err.Error()})
			return
		}

		logger.With(slog.String("message_id", msg.MessageID)).Debug("message sent")
		render.JSON(w, r, entity.SendResponse{Success: true, MessageID: msg.MessageID})
	}
}

func statusFor(err error) int {
	var perr *graph.ProviderError
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrNoCredential):
		return http.StatusUnprocessableEntity
	case errors.As(err, &perr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
