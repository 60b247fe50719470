package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"InboxGate/entity"
	"InboxGate/internal/service/refresh"
)

const defaultLinkedTokenLifetime = 60 * 24 * time.Hour

// LinkConnection registers an already authorized account for a workspace and
// stores its token through the vault.
func (c *Core) LinkConnection(ctx context.Context, req *entity.LinkRequest) (*entity.ChannelConnection, error) {
	if c.repo == nil || c.cipher == nil {
		return nil, fmt.Errorf("connection storage is not configured")
	}
	provider, ok := entity.ParseProvider(req.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", req.Provider)
	}

	if req.ExpiresIn < 0 || req.ExpiresIn > entity.MaxLinkedTokenSeconds {
		return nil, fmt.Errorf("expires_in out of range: %d", req.ExpiresIn)
	}

	encrypted, err := c.cipher.Encrypt(req.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt token: %w", err)
	}
	lifetime := defaultLinkedTokenLifetime
	if req.ExpiresIn > 0 {
		lifetime = time.Duration(req.ExpiresIn) * time.Second
	}

	conn := &entity.ChannelConnection{
		WorkspaceID:       req.WorkspaceID,
		Provider:          provider,
		ProviderChannelID: req.ProviderChannelID,
		DisplayName:       req.DisplayName,
		WebhookSubscribed: req.WebhookSubscribed,
	}
	token := &entity.OAuthToken{
		AccessTokenEncrypted: encrypted,
		ExpiresAt:            time.Now().Add(lifetime),
		TokenType:            "bearer",
	}
	if err = c.repo.LinkConnection(ctx, conn, token); err != nil {
		return nil, fmt.Errorf("link connection: %w", err)
	}

	c.log.With(
		slog.String("connection_id", conn.ID),
		slog.String("workspace_id", conn.WorkspaceID),
		slog.String("provider", provider.String()),
		slog.String("channel_id", conn.ProviderChannelID),
	).Info("connection linked")
	return conn, nil
}

func (c *Core) GetMessages(ctx context.Context, conversationID string, limit int64) ([]entity.Message, error) {
	if c.repo == nil {
		return nil, fmt.Errorf("repository is not set")
	}
	if _, err := c.repo.GetConversation(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, err)
	}
	return c.repo.GetMessages(ctx, conversationID, limit)
}

// MarkRead flags a conversation's customer messages as read.
func (c *Core) MarkRead(ctx context.Context, conversationID string) error {
	if c.repo == nil {
		return fmt.Errorf("repository is not set")
	}
	n, err := c.repo.MarkConversationRead(ctx, conversationID)
	if err != nil {
		return err
	}
	c.log.With(
		slog.String("conversation_id", conversationID),
		slog.Int64("count", n),
	).Debug("messages marked read")
	return nil
}

func (c *Core) RunRefresh(ctx context.Context) (*refresh.Report, error) {
	if c.refresher == nil {
		return nil, fmt.Errorf("token refresh is not enabled")
	}
	report, err := c.refresher.RunOnce(ctx)
	if err != nil {
		return nil, err
	}
	return &report, nil
}
