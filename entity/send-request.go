package entity

import (
	"net/http"

	"InboxGate/internal/lib/validate"
)

type SendRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
	Message        string `json:"message" validate:"required,max=4096"`
}

func (s *SendRequest) Bind(_ *http.Request) error {
	return validate.Struct(s)
}

type SendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}
