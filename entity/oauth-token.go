package entity

import "time"

type TokenMeta struct {
	RefreshFailures int        `json:"refresh_failures" bson:"refresh_failures"`
	LastError       string     `json:"last_error,omitempty" bson:"last_error,omitempty"`
	LastRefreshed   *time.Time `json:"last_refreshed,omitempty" bson:"last_refreshed,omitempty"`
	// Extra carries provider-specific values such as granted scopes.
	Extra map[string]string `json:"extra,omitempty" bson:"extra,omitempty"`
}

// OAuthToken is owned by exactly one ChannelConnection.
type OAuthToken struct {
	ID                   string    `json:"id" bson:"id"`
	ConnectionID         string    `json:"connection_id" bson:"connection_id"`
	AccessTokenEncrypted string    `json:"-" bson:"access_token_encrypted"`
	ExpiresAt            time.Time `json:"expires_at" bson:"expires_at"`
	TokenType            string    `json:"token_type" bson:"token_type"`
	Meta                 TokenMeta `json:"meta" bson:"meta"`
	UpdatedAt            time.Time `json:"updated_at" bson:"updated_at"`
}

// ExpiringToken pairs a token with its owning connection for the refresh worker.
type ExpiringToken struct {
	Token      OAuthToken
	Connection ChannelConnection
}
