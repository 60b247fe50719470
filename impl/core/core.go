package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"InboxGate/entity"
	"InboxGate/internal/credential"
	"InboxGate/internal/lib/sl"
	"InboxGate/internal/service/refresh"
	"InboxGate/internal/service/responder"
)

type Repository interface {
	CheckApiKey(ctx context.Context, key string) (string, error)
	GenerateApiKey(ctx context.Context, username string) (string, error)

	InsertWebhookEvent(ctx context.Context, event *entity.InboundWebhookEvent) error
	GetWebhookEvent(ctx context.Context, eventID string) (*entity.InboundWebhookEvent, error)
	FinalizeWebhookEvent(ctx context.Context, eventID, processingError string) error

	UpsertConversation(ctx context.Context, up *entity.ConversationUpsert) (*entity.Conversation, error)
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error

	InsertMessage(ctx context.Context, msg *entity.Message) error
	GetMessages(ctx context.Context, conversationID string, limit int64) ([]entity.Message, error)
	MarkConversationRead(ctx context.Context, conversationID string) (int64, error)

	LinkConnection(ctx context.Context, conn *entity.ChannelConnection, token *entity.OAuthToken) error
}

type CredentialResolver interface {
	Resolve(ctx context.Context, q credential.Query) (*credential.Credential, error)
	ResolveAny(ctx context.Context, queries []credential.Query) (*credential.Credential, error)
}

type SignatureVerifier interface {
	Enabled() bool
	Verify(body []byte, header string) bool
}

type Cipher interface {
	Encrypt(plain string) (string, error)
}

type MessageSender interface {
	SendText(ctx context.Context, provider entity.Provider, token, channelID, recipient, text string) (string, error)
}

type Responder interface {
	Enqueue(task responder.Task) error
}

type Broadcaster interface {
	BroadcastMessage(msg *entity.Message)
}

type RefreshRunner interface {
	RunOnce(ctx context.Context) (refresh.Report, error)
}

type Core struct {
	repo        Repository
	inbound     CredentialResolver
	outbound    CredentialResolver
	verifier    SignatureVerifier
	cipher      Cipher
	sender      MessageSender
	responder   Responder
	broadcaster Broadcaster
	refresher   RefreshRunner
	verifyToken string
	authKey     string
	keys        map[string]string
	keysMu      sync.RWMutex
	log         *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		log:  log.With(sl.Module("core")),
		keys: make(map[string]string),
	}
}

func (c *Core) SetRepository(repo Repository) {
	c.repo = repo
}

func (c *Core) SetAuthKey(key string) {
	c.authKey = key
}

func (c *Core) SetVerifyToken(token string) {
	c.verifyToken = token
}

// SetResolvers installs the inbound chain (keyed by channel) and the outbound chain (keyed by workspace).
func (c *Core) SetResolvers(inbound, outbound CredentialResolver) {
	c.inbound = inbound
	c.outbound = outbound
}

func (c *Core) SetSignatureVerifier(verifier SignatureVerifier) {
	c.verifier = verifier
}

func (c *Core) SetCipher(cipher Cipher) {
	c.cipher = cipher
}

func (c *Core) SetMessageSender(sender MessageSender) {
	c.sender = sender
}

func (c *Core) SetResponder(r Responder) {
	c.responder = r
}

func (c *Core) SetBroadcaster(b Broadcaster) {
	c.broadcaster = b
}

func (c *Core) SetRefreshRunner(r RefreshRunner) {
	c.refresher = r
}
