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

// FindConnectedByChannel returns the most recently updated connected row for an external account.
func (m *MongoDB) FindConnectedByChannel(ctx context.Context, provider entity.Provider, channelID string) (*entity.ChannelConnection, error) {
	filter := bson.D{
		{Key: "provider", Value: provider},
		{Key: "provider_channel_id", Value: channelID},
		{Key: "status", Value: entity.ConnectionConnected},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	var conn entity.ChannelConnection
	if err := m.collection(connectionsCollection).FindOne(ctx, filter, opts).Decode(&conn); err != nil {
		return nil, m.findError(err)
	}
	return &conn, nil
}

func (m *MongoDB) FindConnectedByWorkspace(ctx context.Context, workspaceID string, provider entity.Provider) (*entity.ChannelConnection, error) {
	filter := bson.D{
		{Key: "workspace_id", Value: workspaceID},
		{Key: "provider", Value: provider},
		{Key: "status", Value: entity.ConnectionConnected},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	var conn entity.ChannelConnection
	if err := m.collection(connectionsCollection).FindOne(ctx, filter, opts).Decode(&conn); err != nil {
		return nil, m.findError(err)
	}
	return &conn, nil
}

func (m *MongoDB) GetTokenByConnection(ctx context.Context, connectionID string) (*entity.OAuthToken, error) {
	var token entity.OAuthToken
	err := m.collection(tokensCollection).FindOne(ctx, bson.D{{Key: "connection_id", Value: connectionID}}).Decode(&token)
	if err != nil {
		return nil, m.findError(err)
	}
	return &token, nil
}

// LinkConnection stores a freshly authorized connection with its encrypted token.
// Any previously connected row for the same workspace, provider and account is disconnected first.
func (m *MongoDB) LinkConnection(ctx context.Context, conn *entity.ChannelConnection, token *entity.OAuthToken) error {
	now := time.Now()
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	conn.Status = entity.ConnectionConnected
	conn.CreatedAt = now
	conn.UpdatedAt = now

	connections := m.collection(connectionsCollection)
	_, err := connections.UpdateMany(ctx,
		bson.D{
			{Key: "workspace_id", Value: conn.WorkspaceID},
			{Key: "provider", Value: conn.Provider},
			{Key: "provider_channel_id", Value: conn.ProviderChannelID},
			{Key: "status", Value: entity.ConnectionConnected},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.ConnectionDisconnected},
			{Key: "updated_at", Value: now},
		}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb disconnect previous connection: %w", err)
	}

	if _, err = connections.InsertOne(ctx, conn); err != nil {
		return m.insertError(err)
	}

	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.ConnectionID = conn.ID
	token.UpdatedAt = now
	_, err = m.collection(tokensCollection).UpdateOne(ctx,
		bson.D{{Key: "connection_id", Value: conn.ID}},
		bson.D{{Key: "$set", Value: token}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongodb save token: %w", err)
	}
	return nil
}

func (m *MongoDB) GetLegacyIntegration(ctx context.Context, channel entity.Provider) (*entity.LegacyChannelIntegration, error) {
	var legacy entity.LegacyChannelIntegration
	err := m.collection(integrationsCollection).FindOne(ctx, bson.D{{Key: "channel", Value: channel}}).Decode(&legacy)
	if err != nil {
		return nil, m.findError(err)
	}
	return &legacy, nil
}

// ListExpiringTokens joins tokens expiring before the cutoff with their connected owners.
func (m *MongoDB) ListExpiringTokens(ctx context.Context, before time.Time) ([]entity.ExpiringToken, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: before}}}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: connectionsCollection},
			{Key: "localField", Value: "connection_id"},
			{Key: "foreignField", Value: "id"},
			{Key: "as", Value: "connection"},
		}}},
		{{Key: "$unwind", Value: "$connection"}},
		{{Key: "$match", Value: bson.D{{Key: "connection.status", Value: entity.ConnectionConnected}}}},
		{{Key: "$sort", Value: bson.D{{Key: "expires_at", Value: 1}}}},
	}

	cursor, err := m.collection(tokensCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodb aggregate expiring tokens: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		entity.OAuthToken `bson:",inline"`
		Connection        entity.ChannelConnection `bson:"connection"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("mongodb decode expiring tokens: %w", err)
	}

	tokens := make([]entity.ExpiringToken, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, entity.ExpiringToken{Token: row.OAuthToken, Connection: row.Connection})
	}
	return tokens, nil
}

func (m *MongoDB) SaveRefreshedToken(ctx context.Context, connectionID, encrypted, tokenType string, expiresAt time.Time) error {
	now := time.Now()
	result, err := m.collection(tokensCollection).UpdateOne(ctx,
		bson.D{{Key: "connection_id", Value: connectionID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "access_token_encrypted", Value: encrypted},
			{Key: "token_type", Value: tokenType},
			{Key: "expires_at", Value: expiresAt},
			{Key: "meta.refresh_failures", Value: 0},
			{Key: "meta.last_error", Value: ""},
			{Key: "meta.last_refreshed", Value: now},
			{Key: "updated_at", Value: now},
		}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb save refreshed token: %w", err)
	}
	if result.MatchedCount == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// RecordRefreshFailure atomically increments the failure counter and returns the new count.
func (m *MongoDB) RecordRefreshFailure(ctx context.Context, connectionID, reason string) (int, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var token entity.OAuthToken
	err := m.collection(tokensCollection).FindOneAndUpdate(ctx,
		bson.D{{Key: "connection_id", Value: connectionID}},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "meta.refresh_failures", Value: 1}}},
			{Key: "$set", Value: bson.D{
				{Key: "meta.last_error", Value: reason},
				{Key: "updated_at", Value: time.Now()},
			}},
		},
		opts,
	).Decode(&token)
	if err != nil {
		return 0, m.findError(err)
	}
	return token.Meta.RefreshFailures, nil
}

func (m *MongoDB) SetConnectionStatus(ctx context.Context, connectionID string, status entity.ConnectionStatus) error {
	result, err := m.collection(connectionsCollection).UpdateOne(ctx,
		bson.D{{Key: "id", Value: connectionID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: status},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb set connection status: %w", err)
	}
	if result.MatchedCount == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (m *MongoDB) TouchConnectionSync(ctx context.Context, connectionID string, at time.Time) error {
	_, err := m.collection(connectionsCollection).UpdateOne(ctx,
		bson.D{{Key: "id", Value: connectionID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "last_synced_at", Value: at},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb touch connection: %w", err)
	}
	return nil
}

func (m *MongoDB) InsertAudit(ctx context.Context, entry *entity.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if _, err := m.collection(auditLogsCollection).InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("mongodb insert audit log: %w", err)
	}
	return nil
}
