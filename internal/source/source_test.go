package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InboxGate/entity"
)

const whatsAppTextFixture = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA-1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550001111", "phone_number_id": "PN-1"},
        "contacts": [{"profile": {"name": "Ada"}, "wa_id": "15551234567"}],
        "messages": [{
          "from": "15551234567",
          "id": "wamid.ABC",
          "timestamp": "1700000000",
          "type": "text",
          "text": {"body": "hello"}
        }]
      }
    }]
  }]
}`

const whatsAppStatusOnly = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "WABA-1", "changes": [{"field": "messages", "value": {
    "messaging_product": "whatsapp",
    "metadata": {"phone_number_id": "PN-1"},
    "statuses": [{"id": "wamid.OUT", "status": "delivered"}]
  }}]}]
}`

const whatsAppImage = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "WABA-1", "changes": [{"field": "messages", "value": {
    "metadata": {"phone_number_id": "PN-1"},
    "messages": [
      {"from": "1", "id": "wamid.1", "timestamp": "1700000001", "type": "image", "image": {"id": "m1", "caption": "look"}},
      {"from": "1", "id": "wamid.2", "timestamp": "1700000002", "type": "audio", "audio": {"id": "m2"}}
    ]
  }}]}]
}`

const instagramText = `{
  "object": "instagram",
  "entry": [{
    "id": "IG-PAGE",
    "time": 1700000000000,
    "messaging": [{
      "sender": {"id": "IGSID-CUSTOMER"},
      "recipient": {"id": "IG-PAGE"},
      "timestamp": 1700000000123,
      "message": {"mid": "mid.1", "text": "hi there"}
    }]
  }]
}`

const messengerEcho = `{
  "object": "page",
  "entry": [{
    "id": "PAGE-1",
    "messaging": [{
      "sender": {"id": "PAGE-1"},
      "recipient": {"id": "PSID-CUSTOMER"},
      "timestamp": 1700000000999,
      "message": {"mid": "mid.echo", "text": "sent from inbox", "is_echo": true}
    }]
  }]
}`

const messagingNoObject = `{
  "entry": [{
    "id": "17841400000000000",
    "messaging": [{
      "sender": {"id": "S"},
      "recipient": {"id": "R"},
      "timestamp": 1700000000000,
      "message": {"mid": "mid.2", "attachments": [{"type": "image"}]}
    }]
  }]
}`

const messengerReadReceipt = `{
  "object": "page",
  "entry": [{"id": "PAGE-1", "messaging": [{"sender": {"id": "P"}, "recipient": {"id": "PAGE-1"}, "timestamp": 1, "read": {"watermark": 1}}]}]
}`

func TestNormalizeWhatsAppText(t *testing.T) {
	sources, err := Normalize([]byte(whatsAppTextFixture), entity.ProviderWhatsApp)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	s := sources[0]
	assert.Equal(t, entity.ProviderWhatsApp, s.Provider)
	assert.Equal(t, "PN-1", s.ChannelID)
	assert.Equal(t, "15551234567", s.ConversationID)
	assert.Equal(t, "15551234567", s.SenderID)
	assert.Equal(t, "Ada", s.SenderName)
	assert.Equal(t, "wamid.ABC", s.MessageID)
	assert.Equal(t, "hello", s.MessageText)
	assert.Equal(t, int64(1700000000000), s.TimestampMs)
	assert.False(t, s.IsEcho)
	assert.Equal(t, "whatsapp_wamid.ABC", s.EventID())
}

func TestNormalizeWhatsAppStatusOnlyYieldsNothing(t *testing.T) {
	sources, err := Normalize([]byte(whatsAppStatusOnly), entity.ProviderWhatsApp)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestNormalizeWhatsAppMediaFallbacks(t *testing.T) {
	sources, err := Normalize([]byte(whatsAppImage), entity.ProviderWhatsApp)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "look", sources[0].MessageText)
	assert.Equal(t, "[audio]", sources[1].MessageText)
}

func TestNormalizeInstagram(t *testing.T) {
	sources, err := Normalize([]byte(instagramText), entity.ProviderInstagram)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	s := sources[0]
	assert.Equal(t, entity.ProviderInstagram, s.Provider)
	assert.Equal(t, "IG-PAGE", s.ChannelID)
	assert.Equal(t, "IGSID-CUSTOMER", s.ConversationID)
	assert.Equal(t, "mid.1", s.MessageID)
	assert.Equal(t, int64(1700000000123), s.TimestampMs)
	assert.False(t, s.IsEcho)
}

func TestNormalizeEchoUsesRecipientAsThread(t *testing.T) {
	sources, err := Normalize([]byte(messengerEcho), entity.ProviderMessenger)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.True(t, sources[0].IsEcho)
	assert.Equal(t, "PSID-CUSTOMER", sources[0].ConversationID)
	assert.Equal(t, "PAGE-1", sources[0].SenderID)
}

func TestNormalizeSkipsNonMessageItems(t *testing.T) {
	sources, err := Normalize([]byte(messengerReadReceipt), entity.ProviderMessenger)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestNormalizeDetectsFromObject(t *testing.T) {
	tests := []struct {
		body     string
		provider entity.Provider
	}{
		{body: whatsAppTextFixture, provider: entity.ProviderWhatsApp},
		{body: instagramText, provider: entity.ProviderInstagram},
		{body: messengerEcho, provider: entity.ProviderMessenger},
	}
	for _, tt := range tests {
		sources, err := Normalize([]byte(tt.body), "")
		require.NoError(t, err)
		require.Len(t, sources, 1)
		assert.Equal(t, tt.provider, sources[0].Provider)
		assert.Equal(t, []entity.Provider{tt.provider}, sources[0].Providers())
	}
}

func TestNormalizeAmbiguousMessagingKeepsCandidates(t *testing.T) {
	sources, err := Normalize([]byte(messagingNoObject), "")
	require.NoError(t, err)
	require.Len(t, sources, 1)

	s := sources[0]
	assert.Empty(t, s.Provider)
	assert.Equal(t, []entity.Provider{entity.ProviderInstagram, entity.ProviderMessenger}, s.Providers())
	assert.Equal(t, "[image]", s.MessageText)
	assert.Equal(t, "meta_mid.2", s.EventID())
}

func TestDetectIgnoresIDLength(t *testing.T) {
	short := &Payload{Entry: []Entry{{ID: "123", Messaging: []Messaging{{}}}}}
	long := &Payload{Entry: []Entry{{ID: "17841400000000000", Messaging: []Messaging{{}}}}}

	p1, c1 := Detect(short)
	p2, c2 := Detect(long)
	assert.Empty(t, p1)
	assert.Empty(t, p2)
	assert.Equal(t, c1, c2)
}

func TestDetectWhatsAppShapeWithoutObject(t *testing.T) {
	p := &Payload{Entry: []Entry{{Changes: []Change{{Field: "messages", Value: ChangeValue{MessagingProduct: "whatsapp"}}}}}}
	provider, candidates := Detect(p)
	assert.Equal(t, entity.ProviderWhatsApp, provider)
	assert.Nil(t, candidates)
}

func TestNormalizeRejectsMalformedJSON(t *testing.T) {
	_, err := Normalize([]byte(`{"entry":`), entity.ProviderWhatsApp)
	assert.Error(t, err)
}

func TestNormalizeUnknownHint(t *testing.T) {
	_, err := Normalize([]byte(`{}`), entity.Provider("telegram"))
	assert.Error(t, err)
}

func TestSyntheticEventID(t *testing.T) {
	s := DetectedSource{Provider: entity.ProviderInstagram, SenderID: "S1", TimestampMs: 42}
	assert.Equal(t, "ig_42_S1", s.EventID())
	assert.Equal(t, "ig_42_S1", s.StoredMessageID())
}
