package entity

import "time"

type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
)

// Message is append-only; inbound and outbound share the collection.
type Message struct {
	ID             string     `json:"id" bson:"id"`
	ConversationID string     `json:"conversation_id" bson:"conversation_id"`
	MessageID      string     `json:"message_id" bson:"message_id"`
	Content        string     `json:"content" bson:"content"`
	SenderType     SenderType `json:"sender_type" bson:"sender_type"`
	SenderID       string     `json:"sender_id" bson:"sender_id"`
	IsRead         bool       `json:"is_read" bson:"is_read"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
}
