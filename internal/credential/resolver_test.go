package credential

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"InboxGate/entity"
	"InboxGate/internal/lib/vault"
)

type fakeRepo struct {
	connections []entity.ChannelConnection
	tokens      map[string]entity.OAuthToken
	legacy      map[entity.Provider]entity.LegacyChannelIntegration
	err         error
}

func (f *fakeRepo) FindConnectedByChannel(_ context.Context, provider entity.Provider, channelID string) (*entity.ChannelConnection, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.connections {
		if c.Provider == provider && c.ProviderChannelID == channelID && c.Status == entity.ConnectionConnected {
			conn := c
			return &conn, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (f *fakeRepo) FindConnectedByWorkspace(_ context.Context, workspaceID string, provider entity.Provider) (*entity.ChannelConnection, error) {
	for _, c := range f.connections {
		if c.Provider == provider && c.WorkspaceID == workspaceID && c.Status == entity.ConnectionConnected {
			conn := c
			return &conn, nil
		}
	}
	return nil, entity.ErrNotFound
}

func (f *fakeRepo) GetTokenByConnection(_ context.Context, connectionID string) (*entity.OAuthToken, error) {
	t, ok := f.tokens[connectionID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &t, nil
}

func (f *fakeRepo) GetLegacyIntegration(_ context.Context, channel entity.Provider) (*entity.LegacyChannelIntegration, error) {
	l, ok := f.legacy[channel]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &l, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("v", 32))))
	require.NoError(t, err)
	return v
}

func newResolver(repo *fakeRepo, v *vault.Vault) *Resolver {
	log := discardLogger()
	return NewResolver(log,
		NewConnectionStrategy(log, repo, v),
		NewLegacyStrategy(log, repo, "ws-legacy"),
	)
}

func TestResolvePrefersConnection(t *testing.T) {
	v := newVault(t)
	blob, err := v.Encrypt("modern-token")
	require.NoError(t, err)

	repo := &fakeRepo{
		connections: []entity.ChannelConnection{{ID: "c1", WorkspaceID: "ws-1", Provider: entity.ProviderWhatsApp, ProviderChannelID: "PN-1", Status: entity.ConnectionConnected}},
		tokens:      map[string]entity.OAuthToken{"c1": {ConnectionID: "c1", AccessTokenEncrypted: blob}},
		legacy: map[entity.Provider]entity.LegacyChannelIntegration{
			entity.ProviderWhatsApp: {Channel: entity.ProviderWhatsApp, IsConnected: true, Config: map[string]string{"access_token": "legacy-token"}},
		},
	}

	cred, err := newResolver(repo, v).Resolve(context.Background(), Query{Provider: entity.ProviderWhatsApp, ChannelID: "PN-1"})
	require.NoError(t, err)
	assert.Equal(t, "modern-token", cred.AccessToken)
	assert.Equal(t, "ws-1", cred.WorkspaceID)
	assert.Equal(t, "PN-1", cred.ChannelID)
	assert.Equal(t, SourceConnection, cred.Source)
}

func TestResolveFallsBackWhenTokenUndecryptable(t *testing.T) {
	v := newVault(t)
	repo := &fakeRepo{
		connections: []entity.ChannelConnection{{ID: "c1", WorkspaceID: "ws-1", Provider: entity.ProviderMessenger, ProviderChannelID: "PAGE-1", Status: entity.ConnectionConnected}},
		tokens:      map[string]entity.OAuthToken{"c1": {ConnectionID: "c1", AccessTokenEncrypted: "corrupted"}},
		legacy: map[entity.Provider]entity.LegacyChannelIntegration{
			entity.ProviderMessenger: {Channel: entity.ProviderMessenger, IsConnected: true, AccountID: "PAGE-1", Config: map[string]string{"page_access_token": "legacy-page-token"}},
		},
	}

	cred, err := newResolver(repo, v).Resolve(context.Background(), Query{Provider: entity.ProviderMessenger, ChannelID: "PAGE-1"})
	require.NoError(t, err)
	assert.Equal(t, "legacy-page-token", cred.AccessToken)
	assert.Equal(t, SourceLegacy, cred.Source)
	assert.Equal(t, "ws-legacy", cred.WorkspaceID)
}

func TestResolveSkipsDisconnectedLegacy(t *testing.T) {
	repo := &fakeRepo{
		legacy: map[entity.Provider]entity.LegacyChannelIntegration{
			entity.ProviderInstagram: {Channel: entity.ProviderInstagram, IsConnected: false, Config: map[string]string{"access_token": "x"}},
		},
	}
	_, err := newResolver(repo, newVault(t)).Resolve(context.Background(), Query{Provider: entity.ProviderInstagram, ChannelID: "IG"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveNotFound(t *testing.T) {
	_, err := newResolver(&fakeRepo{}, newVault(t)).Resolve(context.Background(), Query{Provider: entity.ProviderWhatsApp, ChannelID: "PN-404"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveSurfacesStoreErrors(t *testing.T) {
	repo := &fakeRepo{
		err: errors.New("mongo: connection reset"),
		legacy: map[entity.Provider]entity.LegacyChannelIntegration{
			entity.ProviderWhatsApp: {Channel: entity.ProviderWhatsApp, IsConnected: true, Config: map[string]string{"access_token": "legacy-token"}},
		},
	}
	cred, err := newResolver(repo, newVault(t)).Resolve(context.Background(), Query{Provider: entity.ProviderWhatsApp, ChannelID: "PN-tenantB"})
	require.Error(t, err)
	assert.Nil(t, cred)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestResolveAnyStopsOnStoreError(t *testing.T) {
	repo := &fakeRepo{
		err: errors.New("mongo: timeout"),
		legacy: map[entity.Provider]entity.LegacyChannelIntegration{
			entity.ProviderInstagram: {Channel: entity.ProviderInstagram, IsConnected: true, Config: map[string]string{"access_token": "ig-legacy"}},
			entity.ProviderMessenger: {Channel: entity.ProviderMessenger, IsConnected: true, Config: map[string]string{"access_token": "fb-legacy"}},
		},
	}
	cred, err := newResolver(repo, newVault(t)).ResolveAny(context.Background(), []Query{
		{Provider: entity.ProviderInstagram, ChannelID: "178414"},
		{Provider: entity.ProviderMessenger, ChannelID: "178414"},
	})
	require.Error(t, err)
	assert.Nil(t, cred)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestResolveAnyIsStrategyMajor(t *testing.T) {
	v := newVault(t)
	blob, err := v.Encrypt("messenger-token")
	require.NoError(t, err)
	repo := &fakeRepo{
		connections: []entity.ChannelConnection{{ID: "c2", WorkspaceID: "ws-2", Provider: entity.ProviderMessenger, ProviderChannelID: "PAGE-9", Status: entity.ConnectionConnected}},
		tokens:      map[string]entity.OAuthToken{"c2": {ConnectionID: "c2", AccessTokenEncrypted: blob}},
		legacy: map[entity.Provider]entity.LegacyChannelIntegration{
			entity.ProviderInstagram: {Channel: entity.ProviderInstagram, IsConnected: true, Config: map[string]string{"access_token": "ig-legacy"}},
		},
	}

	cred, err := newResolver(repo, v).ResolveAny(context.Background(), []Query{
		{Provider: entity.ProviderInstagram, ChannelID: "PAGE-9"},
		{Provider: entity.ProviderMessenger, ChannelID: "PAGE-9"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ProviderMessenger, cred.Provider)
	assert.Equal(t, "messenger-token", cred.AccessToken)
}

func TestWorkspaceScopedLookup(t *testing.T) {
	v := newVault(t)
	blob, err := v.Encrypt("ws-token")
	require.NoError(t, err)
	repo := &fakeRepo{
		connections: []entity.ChannelConnection{{ID: "c3", WorkspaceID: "ws-3", Provider: entity.ProviderWhatsApp, ProviderChannelID: "PN-3", Status: entity.ConnectionConnected}},
		tokens:      map[string]entity.OAuthToken{"c3": {ConnectionID: "c3", AccessTokenEncrypted: blob}},
		legacy: map[entity.Provider]entity.LegacyChannelIntegration{
			entity.ProviderWhatsApp: {Channel: entity.ProviderWhatsApp, IsConnected: true, Config: map[string]string{"access_token": "legacy", "phone_number_id": "PN-L"}},
		},
	}
	resolver := newResolver(repo, v)

	cred, err := resolver.Resolve(context.Background(), Query{Provider: entity.ProviderWhatsApp, WorkspaceID: "ws-3"})
	require.NoError(t, err)
	assert.Equal(t, "PN-3", cred.ChannelID)

	_, err = resolver.Resolve(context.Background(), Query{Provider: entity.ProviderWhatsApp, WorkspaceID: "ws-other"})
	assert.ErrorIs(t, err, ErrNotFound)

	cred, err = resolver.Resolve(context.Background(), Query{Provider: entity.ProviderWhatsApp, WorkspaceID: "ws-legacy"})
	require.NoError(t, err)
	assert.Equal(t, SourceLegacy, cred.Source)
	assert.Equal(t, "PN-L", cred.ChannelID)
}
