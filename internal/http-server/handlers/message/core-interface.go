package message

import (
	"context"

	"InboxGate/entity"
)

type Core interface {
	SendMessage(ctx context.Context, conversationID, text string) (*entity.Message, error)
	GetMessages(ctx context.Context, conversationID string, limit int64) ([]entity.Message, error)
}
