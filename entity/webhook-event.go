package entity

import "time"

// InboundWebhookEvent is the audit row written once per delivered event.
// Only the processed fields change after insertion.
type InboundWebhookEvent struct {
	EventID           string     `json:"event_id" bson:"event_id"`
	Provider          Provider   `json:"provider" bson:"provider"`
	ProviderChannelID string     `json:"provider_channel_id" bson:"provider_channel_id"`
	RawPayload        string     `json:"raw_payload" bson:"raw_payload"`
	Processed         bool       `json:"processed" bson:"processed"`
	ProcessedAt       *time.Time `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	ProcessingError   string     `json:"processing_error,omitempty" bson:"processing_error,omitempty"`
	CreatedAt         time.Time  `json:"created_at" bson:"created_at"`
}

// Settled reports whether a redelivery of this event must be treated as a duplicate.
func (e *InboundWebhookEvent) Settled() bool {
	return e.Processed || e.ProcessingError != ""
}
