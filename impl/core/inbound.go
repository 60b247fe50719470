package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"InboxGate/entity"
	"InboxGate/internal/credential"
	"InboxGate/internal/lib/sl"
	"InboxGate/internal/service/responder"
	"InboxGate/internal/source"
)

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeDuplicate
	outcomeSkipped
	outcomeFailed
)

// HandleWebhook runs every message of a verified delivery through idempotency,
// credential and conversation resolution. hint is empty when the route carries no provider.
func (c *Core) HandleWebhook(ctx context.Context, hint entity.Provider, body []byte) (*entity.WebhookResult, error) {
	if c.repo == nil {
		return nil, fmt.Errorf("repository is not set")
	}
	sources, err := source.Normalize(body, hint)
	if err != nil {
		return nil, err
	}

	result := &entity.WebhookResult{Received: len(sources)}
	for i := range sources {
		switch c.processSource(ctx, &sources[i], string(body)) {
		case outcomeProcessed:
			result.Processed++
		case outcomeDuplicate:
			result.Duplicates++
		case outcomeSkipped:
			result.Skipped++
		case outcomeFailed:
			result.Failed++
		}
	}
	return result, nil
}

func (c *Core) processSource(ctx context.Context, src *source.DetectedSource, raw string) outcome {
	eventID := src.EventID()
	log := c.log.With(
		slog.String("event_id", eventID),
		slog.String("provider", src.Provider.String()),
		slog.String("channel_id", src.ChannelID),
	)

	if src.IsEcho {
		log.Debug("echo message skipped")
		return outcomeSkipped
	}

	fresh, err := c.claimEvent(ctx, src, eventID, raw)
	if err != nil {
		log.Error("store webhook event", sl.Err(err))
		return outcomeFailed
	}
	if !fresh {
		log.Debug("duplicate delivery")
		return outcomeDuplicate
	}

	queries := make([]credential.Query, 0, 2)
	for _, p := range src.Providers() {
		queries = append(queries, credential.Query{Provider: p, ChannelID: src.ChannelID})
	}
	cred, err := c.inbound.ResolveAny(ctx, queries)
	if err != nil {
		log.Warn("no credential for channel", sl.Err(err))
		c.finalize(ctx, log, eventID, err)
		return outcomeFailed
	}
	log = log.With(
		slog.String("workspace_id", cred.WorkspaceID),
		slog.String("credential", cred.Source),
	)

	up := &entity.ConversationUpsert{
		WorkspaceID:  cred.WorkspaceID,
		Channel:      cred.Provider,
		ThreadID:     src.ConversationID,
		CustomerName: src.SenderName,
		MessageAt:    src.Time(),
	}
	if cred.Provider == entity.ProviderWhatsApp {
		up.CustomerPhone = src.SenderID
	}
	conv, err := c.repo.UpsertConversation(ctx, up)
	if err != nil {
		log.Error("resolve conversation", sl.Err(err))
		c.finalize(ctx, log, eventID, err)
		return outcomeFailed
	}

	msg := &entity.Message{
		ConversationID: conv.ID,
		MessageID:      src.StoredMessageID(),
		Content:        src.MessageText,
		SenderType:     entity.SenderCustomer,
		SenderID:       src.SenderID,
		CreatedAt:      src.Time(),
	}
	err = c.repo.InsertMessage(ctx, msg)
	if err != nil && !errors.Is(err, entity.ErrDuplicate) {
		log.Error("store message", sl.Err(err))
		c.finalize(ctx, log, eventID, err)
		return outcomeFailed
	}
	inserted := err == nil
	c.finalize(ctx, log, eventID, nil)

	if !inserted {
		log.With(slog.String("message_id", msg.MessageID)).Debug("message already stored")
		return outcomeDuplicate
	}

	if c.broadcaster != nil {
		c.broadcaster.BroadcastMessage(msg)
	}
	if conv.AIEnabled && c.responder != nil {
		task := responder.Task{
			WorkspaceID:    conv.WorkspaceID,
			ConversationID: conv.ID,
			Provider:       conv.Channel,
			ThreadID:       conv.ThreadID,
			MessageID:      msg.MessageID,
			Text:           msg.Content,
			CreatedAt:      msg.CreatedAt,
		}
		if err = c.responder.Enqueue(task); err != nil {
			log.Warn("auto-responder not triggered", sl.Err(err))
		}
	}

	log.With(
		slog.String("conversation_id", conv.ID),
		slog.String("message_id", msg.MessageID),
	).Info("inbound message stored")
	return outcomeProcessed
}

// claimEvent writes the event row before any other side effect. It reports false for a
// delivery that was already settled, or when a concurrent request inserted the row first.
// An existing row that was never finalized is claimed again, including one still in flight;
// the unique message id then keeps the second pass from storing the message twice.
func (c *Core) claimEvent(ctx context.Context, src *source.DetectedSource, eventID, raw string) (bool, error) {
	existing, err := c.repo.GetWebhookEvent(ctx, eventID)
	switch {
	case err == nil:
		return !existing.Settled(), nil
	case !errors.Is(err, entity.ErrNotFound):
		return false, err
	}

	event := &entity.InboundWebhookEvent{
		EventID:           eventID,
		Provider:          src.Provider,
		ProviderChannelID: src.ChannelID,
		RawPayload:        raw,
		CreatedAt:         time.Now(),
	}
	err = c.repo.InsertWebhookEvent(ctx, event)
	if errors.Is(err, entity.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Core) finalize(ctx context.Context, log *slog.Logger, eventID string, cause error) {
	processingError := ""
	if cause != nil {
		processingError = cause.Error()
	}
	if err := c.repo.FinalizeWebhookEvent(ctx, eventID, processingError); err != nil {
		log.Error("finalize webhook event", sl.Err(err))
	}
}
