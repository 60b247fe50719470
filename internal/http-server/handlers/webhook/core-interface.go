package webhook

import (
	"context"

	"InboxGate/entity"
)

type Core interface {
	VerifySubscription(mode, token string) bool
	VerifySignature(body []byte, header string) bool
	HandleWebhook(ctx context.Context, hint entity.Provider, body []byte) (*entity.WebhookResult, error)
}
