package entity

import "time"

const ConversationStatusNew = "new"

type Conversation struct {
	ID            string    `json:"id" bson:"id"`
	WorkspaceID   string    `json:"workspace_id" bson:"workspace_id"`
	Channel       Provider  `json:"channel" bson:"channel"`
	ThreadID      string    `json:"thread_id" bson:"thread_id"`
	CustomerName  string    `json:"customer_name,omitempty" bson:"customer_name,omitempty"`
	CustomerPhone string    `json:"customer_phone,omitempty" bson:"customer_phone,omitempty"`
	Status        string    `json:"status" bson:"status"`
	AIEnabled     bool      `json:"ai_enabled" bson:"ai_enabled"`
	LastMessageAt time.Time `json:"last_message_at" bson:"last_message_at"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// ConversationUpsert describes one inbound touch of a thread.
type ConversationUpsert struct {
	WorkspaceID   string
	Channel       Provider
	ThreadID      string
	CustomerName  string
	CustomerPhone string
	MessageAt     time.Time
}
