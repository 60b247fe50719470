package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"InboxGate/entity"
	"InboxGate/internal/credential"
	"InboxGate/internal/lib/sl"
)

// SendMessage delivers text to the conversation's external party through the
// workspace's own credential and stores it as an agent message.
// Provider rejections are returned unchanged and nothing is stored.
func (c *Core) SendMessage(ctx context.Context, conversationID, text string) (*entity.Message, error) {
	if c.repo == nil || c.sender == nil || c.outbound == nil {
		return nil, fmt.Errorf("outbound dispatch is not configured")
	}

	conv, err := c.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, err)
	}
	log := c.log.With(
		slog.String("conversation_id", conv.ID),
		slog.String("workspace_id", conv.WorkspaceID),
		slog.String("provider", conv.Channel.String()),
	)

	cred, err := c.outbound.Resolve(ctx, credential.Query{Provider: conv.Channel, WorkspaceID: conv.WorkspaceID})
	if err != nil {
		log.Warn("no outbound credential", sl.Err(err))
		if errors.Is(err, credential.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", entity.ErrNoCredential, conv.Channel)
		}
		return nil, err
	}

	messageID, err := c.sender.SendText(ctx, conv.Channel, cred.AccessToken, cred.ChannelID, conv.ThreadID, text)
	if err != nil {
		log.Warn("provider rejected message", sl.Err(err))
		return nil, err
	}
	if messageID == "" {
		messageID = "out_" + uuid.NewString()
	}

	now := time.Now()
	msg := &entity.Message{
		ConversationID: conv.ID,
		MessageID:      messageID,
		Content:        text,
		SenderType:     entity.SenderAgent,
		SenderID:       cred.ChannelID,
		IsRead:         true,
		CreatedAt:      now,
	}
	// the message is already delivered; storage failures are logged, not reported as a failed send
	if err = c.repo.InsertMessage(ctx, msg); err != nil && !errors.Is(err, entity.ErrDuplicate) {
		log.With(slog.String("message_id", messageID)).Error("store outbound message", sl.Err(err))
	}
	if err = c.repo.TouchConversation(ctx, conv.ID, now); err != nil {
		log.Error("update conversation time", sl.Err(err))
	}
	if c.broadcaster != nil {
		c.broadcaster.BroadcastMessage(msg)
	}

	log.With(slog.String("message_id", messageID)).Info("outbound message sent")
	return msg, nil
}
