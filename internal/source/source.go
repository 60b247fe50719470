// Package source turns Meta webhook bodies into one canonical event shape.
package source

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"InboxGate/entity"
)

// DetectedSource is one inbound message extracted from a delivery.
type DetectedSource struct {
	Provider entity.Provider
	// Candidates is set instead of Provider when the payload shape alone cannot
	// tell Instagram from Messenger; the connection registry decides.
	Candidates     []entity.Provider
	ChannelID      string
	ConversationID string
	SenderID       string
	SenderName     string
	MessageID      string
	MessageText    string
	TimestampMs    int64
	IsEcho         bool
}

// Providers lists the providers this source may belong to, most specific first.
func (s *DetectedSource) Providers() []entity.Provider {
	if s.Provider != "" {
		return []entity.Provider{s.Provider}
	}
	return s.Candidates
}

// EventID is the idempotency key of the delivery that carried this message.
func (s *DetectedSource) EventID() string {
	prefix := s.Provider.String()
	if s.Provider == "" {
		prefix = "meta"
	}
	if s.MessageID != "" {
		return prefix + "_" + s.MessageID
	}
	tag := s.Provider.EventPrefix()
	return fmt.Sprintf("%s_%d_%s", tag, s.TimestampMs, s.SenderID)
}

// StoredMessageID is the message-level dedup key; synthetic when the provider sent none.
func (s *DetectedSource) StoredMessageID() string {
	if s.MessageID != "" {
		return s.MessageID
	}
	return s.EventID()
}

func (s *DetectedSource) Time() time.Time {
	if s.TimestampMs <= 0 {
		return time.Now()
	}
	return time.UnixMilli(s.TimestampMs)
}

type parser func(p *Payload) []DetectedSource

var parsers = map[entity.Provider]parser{
	entity.ProviderWhatsApp:  parseWhatsApp,
	entity.ProviderInstagram: messagingParser(entity.ProviderInstagram),
	entity.ProviderMessenger: messagingParser(entity.ProviderMessenger),
}

// Normalize parses body using the parser selected by hint. With an empty hint the
// provider is detected from the payload. An empty result means nothing to ingest.
func Normalize(body []byte, hint entity.Provider) ([]DetectedSource, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	return NormalizePayload(&payload, hint)
}

func NormalizePayload(payload *Payload, hint entity.Provider) ([]DetectedSource, error) {
	if hint != "" {
		parse, ok := parsers[hint]
		if !ok {
			return nil, fmt.Errorf("unsupported provider: %s", hint)
		}
		return parse(payload), nil
	}

	provider, candidates := Detect(payload)
	if provider != "" {
		return parsers[provider](payload), nil
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sources := parseMessaging(payload, "")
	for i := range sources {
		sources[i].Candidates = candidates
	}
	return sources, nil
}

func parseWhatsApp(p *Payload) []DetectedSource {
	var out []DetectedSource
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			value := change.Value
			for _, msg := range value.Messages {
				senderName := ""
				for _, c := range value.Contacts {
					if c.WaID == msg.From {
						senderName = c.Profile.Name
						break
					}
				}
				out = append(out, DetectedSource{
					Provider:       entity.ProviderWhatsApp,
					ChannelID:      value.Metadata.PhoneNumberID,
					ConversationID: msg.From,
					SenderID:       msg.From,
					SenderName:     senderName,
					MessageID:      msg.ID,
					MessageText:    whatsAppText(msg),
					TimestampMs:    secondsToMillis(msg.Timestamp),
				})
			}
		}
	}
	return out
}

func whatsAppText(msg WhatsAppMessage) string {
	if msg.Text != nil && msg.Text.Body != "" {
		return msg.Text.Body
	}
	for _, media := range []*mediaBody{msg.Image, msg.Video, msg.Document, msg.Audio, msg.Sticker} {
		if media != nil && media.Caption != "" {
			return media.Caption
		}
	}
	if msg.Type == "" {
		return "[message]"
	}
	return "[" + msg.Type + "]"
}

func secondsToMillis(ts string) int64 {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0
	}
	return sec * 1000
}

func messagingParser(provider entity.Provider) parser {
	return func(p *Payload) []DetectedSource {
		return parseMessaging(p, provider)
	}
}

func parseMessaging(p *Payload, provider entity.Provider) []DetectedSource {
	var out []DetectedSource
	for _, entry := range p.Entry {
		for _, item := range entry.Messaging {
			if item.Message == nil {
				continue
			}
			msg := item.Message
			thread := item.Sender.ID
			if msg.IsEcho {
				thread = item.Recipient.ID
			}
			text := msg.Text
			if text == "" && len(msg.Attachments) > 0 {
				text = "[" + msg.Attachments[0].Type + "]"
			}
			out = append(out, DetectedSource{
				Provider:       provider,
				ChannelID:      entry.ID,
				ConversationID: thread,
				SenderID:       item.Sender.ID,
				MessageID:      msg.Mid,
				MessageText:    text,
				TimestampMs:    item.Timestamp,
				IsEcho:         msg.IsEcho,
			})
		}
	}
	return out
}
