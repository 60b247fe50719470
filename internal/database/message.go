package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"InboxGate/entity"
)

// UpsertConversation finds or creates the thread for (channel, thread_id) inside a workspace.
// A thread already owned by another workspace yields entity.ErrThreadConflict.
func (m *MongoDB) UpsertConversation(ctx context.Context, up *entity.ConversationUpsert) (*entity.Conversation, error) {
	collection := m.collection(conversationsCollection)
	now := time.Now()
	at := up.MessageAt
	if at.IsZero() {
		at = now
	}

	filter := bson.D{
		{Key: "channel", Value: up.Channel},
		{Key: "thread_id", Value: up.ThreadID},
		{Key: "workspace_id", Value: up.WorkspaceID},
	}
	set := bson.D{}
	if up.CustomerName != "" {
		set = append(set, bson.E{Key: "customer_name", Value: up.CustomerName})
	}
	insert := bson.D{
		{Key: "id", Value: uuid.NewString()},
		{Key: "status", Value: entity.ConversationStatusNew},
		{Key: "ai_enabled", Value: false},
		{Key: "created_at", Value: now},
	}
	if up.CustomerPhone != "" {
		insert = append(insert, bson.E{Key: "customer_phone", Value: up.CustomerPhone})
	}
	update := bson.D{
		{Key: "$setOnInsert", Value: insert},
		{Key: "$max", Value: bson.D{{Key: "last_message_at", Value: at}}},
	}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var conv entity.Conversation
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if err == nil {
		return &conv, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("mongodb upsert conversation: %w", err)
	}

	// unique (channel, thread_id) rejected the insert: either a concurrent insert won
	// for the same workspace or the thread belongs to someone else
	err = collection.FindOne(ctx, bson.D{{Key: "channel", Value: up.Channel}, {Key: "thread_id", Value: up.ThreadID}}).Decode(&conv)
	if err != nil {
		return nil, m.findError(err)
	}
	if conv.WorkspaceID != up.WorkspaceID {
		return nil, entity.ErrThreadConflict
	}
	err = collection.FindOneAndUpdate(ctx, filter, update, opts.SetUpsert(false)).Decode(&conv)
	if err != nil {
		return nil, m.findError(err)
	}
	return &conv, nil
}

func (m *MongoDB) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	var conv entity.Conversation
	if err := m.collection(conversationsCollection).FindOne(ctx, bson.D{{Key: "id", Value: id}}).Decode(&conv); err != nil {
		return nil, m.findError(err)
	}
	return &conv, nil
}

func (m *MongoDB) TouchConversation(ctx context.Context, id string, at time.Time) error {
	_, err := m.collection(conversationsCollection).UpdateOne(ctx,
		bson.D{{Key: "id", Value: id}},
		bson.D{{Key: "$max", Value: bson.D{{Key: "last_message_at", Value: at}}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb touch conversation: %w", err)
	}
	return nil
}

// InsertMessage appends a message; entity.ErrDuplicate when message_id already exists.
func (m *MongoDB) InsertMessage(ctx context.Context, msg *entity.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if _, err := m.collection(messagesCollection).InsertOne(ctx, msg); err != nil {
		return m.insertError(err)
	}
	return nil
}

// MarkConversationRead flags the customer messages of a conversation as read.
func (m *MongoDB) MarkConversationRead(ctx context.Context, conversationID string) (int64, error) {
	result, err := m.collection(messagesCollection).UpdateMany(ctx,
		bson.D{
			{Key: "conversation_id", Value: conversationID},
			{Key: "sender_type", Value: entity.SenderCustomer},
			{Key: "is_read", Value: false},
		},
		bson.D{{Key: "$set", Value: bson.D{{Key: "is_read", Value: true}}}},
	)
	if err != nil {
		return 0, fmt.Errorf("mongodb mark read: %w", err)
	}
	return result.ModifiedCount, nil
}

// GetMessages returns a conversation's messages, oldest first.
func (m *MongoDB) GetMessages(ctx context.Context, conversationID string, limit int64) ([]entity.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := m.collection(messagesCollection).Find(ctx, bson.D{{Key: "conversation_id", Value: conversationID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []entity.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("mongodb decode messages: %w", err)
	}
	if messages == nil {
		messages = []entity.Message{}
	}
	return messages, nil
}
