package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"InboxGate/entity"
	"InboxGate/internal/config"
	"InboxGate/internal/lib/sl"
)

const (
	webhookEventsCollection = "webhook-events"
	connectionsCollection   = "channel-connections"
	tokensCollection        = "oauth-tokens"
	integrationsCollection  = "channel-integrations"
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	auditLogsCollection     = "audit-logs"
	apiKeysCollection       = "api-keys"
)

type MongoDB struct {
	client   *mongo.Client
	database string
	log      *slog.Logger
}

func NewMongoClient(conf *config.Config, logger *slog.Logger) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect error: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping error: %w", err)
	}

	return &MongoDB{
		client:   client,
		database: conf.Mongo.Database,
		log:      logger.With(sl.Module("mongodb")),
	}, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) collection(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entity.ErrNotFound
	}
	return fmt.Errorf("mongodb find error: %w", err)
}

func (m *MongoDB) insertError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return entity.ErrDuplicate
	}
	return fmt.Errorf("mongodb insert error: %w", err)
}

// EnsureIndexes creates the unique indexes the idempotency and ownership rules rely on.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		webhookEventsCollection: {
			{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "processed", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		connectionsCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{
				Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "provider", Value: 1}, {Key: "provider_channel_id", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.D{{Key: "status", Value: entity.ConnectionConnected}}),
			},
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "provider_channel_id", Value: 1}, {Key: "status", Value: 1}}},
		},
		tokensCollection: {
			{Keys: bson.D{{Key: "connection_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}},
		},
		integrationsCollection: {
			{Keys: bson.D{{Key: "channel", Value: 1}}, Options: unique},
		},
		conversationsCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "channel", Value: 1}, {Key: "thread_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "workspace_id", Value: 1}, {Key: "last_message_at", Value: -1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "message_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		auditLogsCollection: {
			{Keys: bson.D{{Key: "connection_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		apiKeysCollection: {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: unique},
		},
	}

	for name, models := range indexes {
		if _, err := m.collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongodb create %s indexes: %w", name, err)
		}
	}
	return nil
}

func (m *MongoDB) CheckApiKey(ctx context.Context, key string) (string, error) {
	filter := bson.D{{Key: "key", Value: key}}

	var result struct {
		Username string `bson:"username"`
		Key      string `bson:"key"`
	}
	err := m.collection(apiKeysCollection).FindOne(ctx, filter).Decode(&result)
	if err != nil {
		return "", m.findError(err)
	}
	if result.Username == "" {
		return "", entity.ErrNotFound
	}
	return result.Username, nil
}

func (m *MongoDB) getKeyByUsername(ctx context.Context, username string) (string, error) {
	filter := bson.D{{Key: "username", Value: username}}

	var result struct {
		Key string `bson:"key"`
	}
	err := m.collection(apiKeysCollection).FindOne(ctx, filter).Decode(&result)
	if err != nil {
		return "", m.findError(err)
	}
	return result.Key, nil
}

// GenerateApiKey returns the existing key for username or issues a new one.
func (m *MongoDB) GenerateApiKey(ctx context.Context, username string) (string, error) {
	k, err := m.getKeyByUsername(ctx, username)
	if err != nil && !errors.Is(err, entity.ErrNotFound) {
		return "", fmt.Errorf("failed to get existing API key: %w", err)
	}
	if k != "" {
		return k, nil
	}

	key := uuid.NewString()
	doc := bson.D{
		{Key: "username", Value: username},
		{Key: "key", Value: key},
		{Key: "created_at", Value: time.Now()},
	}
	if _, err = m.collection(apiKeysCollection).InsertOne(ctx, doc); err != nil {
		return "", m.insertError(err)
	}
	return key, nil
}
