package entity

import (
	"net/http"

	"InboxGate/internal/lib/validate"
)

// MaxLinkedTokenSeconds bounds expires_in to one year; Meta long-lived tokens last 60 days.
const MaxLinkedTokenSeconds = 365 * 24 * 60 * 60

// LinkRequest registers an account whose token was obtained by an external OAuth flow.
type LinkRequest struct {
	WorkspaceID       string `json:"workspace_id" validate:"required"`
	Provider          string `json:"provider" validate:"required,oneof=whatsapp instagram messenger"`
	ProviderChannelID string `json:"provider_channel_id" validate:"required"`
	DisplayName       string `json:"display_name,omitempty"`
	AccessToken       string `json:"access_token" validate:"required"`
	ExpiresIn         int64  `json:"expires_in,omitempty" validate:"gte=0,lte=31536000"`
	WebhookSubscribed bool   `json:"webhook_subscribed,omitempty"`
}

func (l *LinkRequest) Bind(_ *http.Request) error {
	return validate.Struct(l)
}

type KeyRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
}

func (k *KeyRequest) Bind(_ *http.Request) error {
	return validate.Struct(k)
}
