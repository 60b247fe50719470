package entity

import "time"

const (
	AuditTokenRefreshed     = "token_refreshed"
	AuditTokenRefreshFailed = "token_refresh_failed"
	AuditConnectionExpired  = "connection_token_expired"
)

type AuditLog struct {
	ID           string            `json:"id" bson:"id"`
	Action       string            `json:"action" bson:"action"`
	WorkspaceID  string            `json:"workspace_id" bson:"workspace_id"`
	ConnectionID string            `json:"connection_id" bson:"connection_id"`
	Provider     Provider          `json:"provider" bson:"provider"`
	Details      map[string]string `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt    time.Time         `json:"created_at" bson:"created_at"`
}
