package entity

import "time"

type ConnectionStatus string

const (
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionTokenExpired ConnectionStatus = "token_expired"
)

// ChannelConnection is a workspace's authorized link to one external account on one provider.
type ChannelConnection struct {
	ID                string           `json:"id" bson:"id"`
	WorkspaceID       string           `json:"workspace_id" bson:"workspace_id"`
	Provider          Provider         `json:"provider" bson:"provider"`
	ProviderChannelID string           `json:"provider_channel_id" bson:"provider_channel_id"`
	DisplayName       string           `json:"display_name" bson:"display_name"`
	Status            ConnectionStatus `json:"status" bson:"status"`
	WebhookSubscribed bool             `json:"webhook_subscribed" bson:"webhook_subscribed"`
	LastSyncedAt      *time.Time       `json:"last_synced_at,omitempty" bson:"last_synced_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" bson:"updated_at"`
}

func (c *ChannelConnection) DisplayNameOrID() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.ProviderChannelID
}
