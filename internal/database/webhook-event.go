package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"InboxGate/entity"
)

// InsertWebhookEvent stores the event row; entity.ErrDuplicate when event_id is taken.
func (m *MongoDB) InsertWebhookEvent(ctx context.Context, event *entity.InboundWebhookEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if _, err := m.collection(webhookEventsCollection).InsertOne(ctx, event); err != nil {
		return m.insertError(err)
	}
	return nil
}

func (m *MongoDB) GetWebhookEvent(ctx context.Context, eventID string) (*entity.InboundWebhookEvent, error) {
	var event entity.InboundWebhookEvent
	err := m.collection(webhookEventsCollection).FindOne(ctx, bson.D{{Key: "event_id", Value: eventID}}).Decode(&event)
	if err != nil {
		return nil, m.findError(err)
	}
	return &event, nil
}

// FinalizeWebhookEvent sets the processed fields; an empty processingError marks success.
func (m *MongoDB) FinalizeWebhookEvent(ctx context.Context, eventID, processingError string) error {
	now := time.Now()
	set := bson.D{{Key: "processed_at", Value: now}}
	if processingError == "" {
		set = append(set, bson.E{Key: "processed", Value: true}, bson.E{Key: "processing_error", Value: ""})
	} else {
		set = append(set, bson.E{Key: "processing_error", Value: processingError})
	}

	result, err := m.collection(webhookEventsCollection).UpdateOne(ctx,
		bson.D{{Key: "event_id", Value: eventID}},
		bson.D{{Key: "$set", Value: set}},
	)
	if err != nil {
		return fmt.Errorf("mongodb finalize webhook event: %w", err)
	}
	if result.MatchedCount == 0 {
		return entity.ErrNotFound
	}
	return nil
}
