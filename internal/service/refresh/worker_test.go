package refresh

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"InboxGate/entity"
	"InboxGate/internal/config"
	"InboxGate/internal/lib/vault"
)

type memRepo struct {
	mu     sync.Mutex
	tokens map[string]*entity.OAuthToken
	conns  map[string]*entity.ChannelConnection
	audit  []entity.AuditLog
}

func newMemRepo() *memRepo {
	return &memRepo{
		tokens: map[string]*entity.OAuthToken{},
		conns:  map[string]*entity.ChannelConnection{},
	}
}

func (m *memRepo) add(conn entity.ChannelConnection, token entity.OAuthToken) {
	m.conns[conn.ID] = &conn
	token.ConnectionID = conn.ID
	m.tokens[conn.ID] = &token
}

func (m *memRepo) ListExpiringTokens(_ context.Context, before time.Time) ([]entity.ExpiringToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.ExpiringToken
	for id, tok := range m.tokens {
		conn := m.conns[id]
		if conn.Status != entity.ConnectionConnected || tok.ExpiresAt.After(before) {
			continue
		}
		out = append(out, entity.ExpiringToken{Token: *tok, Connection: *conn})
	}
	return out, nil
}

func (m *memRepo) SaveRefreshedToken(ctx context.Context, connectionID, encrypted, tokenType string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tok := m.tokens[connectionID]
	tok.AccessTokenEncrypted = encrypted
	tok.TokenType = tokenType
	tok.ExpiresAt = expiresAt
	tok.Meta.RefreshFailures = 0
	tok.Meta.LastError = ""
	return nil
}

func (m *memRepo) RecordRefreshFailure(ctx context.Context, connectionID, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tok := m.tokens[connectionID]
	tok.Meta.RefreshFailures++
	tok.Meta.LastError = reason
	return tok.Meta.RefreshFailures, nil
}

func (m *memRepo) SetConnectionStatus(ctx context.Context, connectionID string, status entity.ConnectionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.conns[connectionID].Status = status
	return nil
}

func (m *memRepo) TouchConnectionSync(ctx context.Context, connectionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.conns[connectionID].LastSyncedAt = &at
	return nil
}

func (m *memRepo) InsertAudit(ctx context.Context, entry *entity.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.audit = append(m.audit, *entry)
	return nil
}

func (m *memRepo) actions() []string {
	var out []string
	for _, a := range m.audit {
		out = append(out, a.Action)
	}
	return out
}

type fakeExchanger struct {
	calls  map[string]int
	failOn map[string]error
}

func (f *fakeExchanger) ExchangeToken(_ context.Context, _ entity.Provider, token string) (*oauth2.Token, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[token]++
	if err, ok := f.failOn[token]; ok {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token + "-renewed", TokenType: "bearer", Expiry: time.Now().Add(60 * 24 * time.Hour)}, nil
}

// hangingExchanger never answers before the caller gives up.
type hangingExchanger struct {
	calls int
}

func (h *hangingExchanger) ExchangeToken(ctx context.Context, _ entity.Provider, _ string) (*oauth2.Token, error) {
	h.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingNotifier struct {
	messages []string
}

func (r *recordingNotifier) SendMessage(msg string) {
	r.messages = append(r.messages, msg)
}

type recordingBroadcaster struct {
	expired []string
}

func (r *recordingBroadcaster) BroadcastConnectionExpired(conn *entity.ChannelConnection) {
	r.expired = append(r.expired, conn.ID)
}

func testVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("r", 32))))
	require.NoError(t, err)
	return v
}

func newTestWorker(repo Repository, ex Exchanger, v Cipher) *Worker {
	conf := &config.Config{}
	conf.Refresh.Horizon = 7 * 24 * time.Hour
	conf.Refresh.MaxFailures = 3
	conf.Refresh.Timeout = time.Second
	return NewWorker(conf, slog.New(slog.NewTextHandler(io.Discard, nil)), repo, ex, v)
}

func connected(id string) entity.ChannelConnection {
	return entity.ChannelConnection{
		ID:                id,
		WorkspaceID:       "ws-" + id,
		Provider:          entity.ProviderMessenger,
		ProviderChannelID: "PAGE-" + id,
		Status:            entity.ConnectionConnected,
	}
}

func TestRunOnceRefreshesExpiringToken(t *testing.T) {
	v := testVault(t)
	blob, err := v.Encrypt("tok-a")
	require.NoError(t, err)

	repo := newMemRepo()
	repo.add(connected("a"), entity.OAuthToken{AccessTokenEncrypted: blob, ExpiresAt: time.Now().Add(48 * time.Hour), Meta: entity.TokenMeta{RefreshFailures: 2}})
	repo.add(connected("far"), entity.OAuthToken{AccessTokenEncrypted: blob, ExpiresAt: time.Now().Add(30 * 24 * time.Hour)})

	ex := &fakeExchanger{}
	report, err := newTestWorker(repo, ex, v).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 1, Refreshed: 1}, report)

	tok := repo.tokens["a"]
	plain, err := v.Decrypt(tok.AccessTokenEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "tok-a-renewed", plain)
	assert.Equal(t, 0, tok.Meta.RefreshFailures)
	assert.True(t, tok.ExpiresAt.After(time.Now().Add(59*24*time.Hour)))
	assert.NotNil(t, repo.conns["a"].LastSyncedAt)
	assert.Equal(t, []string{entity.AuditTokenRefreshed}, repo.actions())
}

func TestFailureThreshold(t *testing.T) {
	v := testVault(t)
	blob, err := v.Encrypt("tok-bad")
	require.NoError(t, err)

	repo := newMemRepo()
	repo.add(connected("b"), entity.OAuthToken{AccessTokenEncrypted: blob, ExpiresAt: time.Now().Add(time.Hour)})
	ex := &fakeExchanger{failOn: map[string]error{"tok-bad": errors.New("Error validating access token")}}
	notifier := &recordingNotifier{}
	broadcaster := &recordingBroadcaster{}
	worker := newTestWorker(repo, ex, v)
	worker.SetNotifier(notifier)
	worker.SetBroadcaster(broadcaster)

	for i := 0; i < 2; i++ {
		report, err := worker.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Report{Checked: 1, Failed: 1}, report)
		assert.Equal(t, entity.ConnectionConnected, repo.conns["b"].Status)
	}

	report, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 1, Failed: 1, Expired: 1}, report)
	assert.Equal(t, entity.ConnectionTokenExpired, repo.conns["b"].Status)
	assert.Contains(t, repo.actions(), entity.AuditConnectionExpired)
	assert.Len(t, notifier.messages, 1)
	assert.Equal(t, []string{"b"}, broadcaster.expired)

	report, err = worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.Equal(t, 3, ex.calls["tok-bad"])
}

func TestExchangeTimeoutCountsAsFailure(t *testing.T) {
	v := testVault(t)
	blob, err := v.Encrypt("tok-slow")
	require.NoError(t, err)

	repo := newMemRepo()
	repo.add(connected("slow"), entity.OAuthToken{AccessTokenEncrypted: blob, ExpiresAt: time.Now().Add(time.Hour)})
	ex := &hangingExchanger{}
	broadcaster := &recordingBroadcaster{}
	worker := newTestWorker(repo, ex, v)
	worker.timeout = 50 * time.Millisecond
	worker.SetBroadcaster(broadcaster)

	for i := 1; i <= 2; i++ {
		report, err := worker.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Report{Checked: 1, Failed: 1}, report)
		assert.Equal(t, i, repo.tokens["slow"].Meta.RefreshFailures)
		assert.Contains(t, repo.tokens["slow"].Meta.LastError, "timed out")
	}

	report, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 1, Failed: 1, Expired: 1}, report)
	assert.Equal(t, 3, repo.tokens["slow"].Meta.RefreshFailures)
	assert.Equal(t, entity.ConnectionTokenExpired, repo.conns["slow"].Status)
	assert.Equal(t, []string{"slow"}, broadcaster.expired)
	assert.Equal(t, []string{
		entity.AuditTokenRefreshFailed,
		entity.AuditTokenRefreshFailed,
		entity.AuditTokenRefreshFailed,
		entity.AuditConnectionExpired,
	}, repo.actions())
	assert.Equal(t, 3, ex.calls)
}

func TestDecryptFailureCountsAndBatchContinues(t *testing.T) {
	v := testVault(t)
	good, err := v.Encrypt("tok-good")
	require.NoError(t, err)

	repo := newMemRepo()
	repo.add(connected("broken"), entity.OAuthToken{AccessTokenEncrypted: "not-a-ciphertext", ExpiresAt: time.Now().Add(time.Hour)})
	repo.add(connected("ok"), entity.OAuthToken{AccessTokenEncrypted: good, ExpiresAt: time.Now().Add(time.Hour)})

	ex := &fakeExchanger{}
	report, err := newTestWorker(repo, ex, v).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 2, Refreshed: 1, Failed: 1}, report)
	assert.Equal(t, 1, repo.tokens["broken"].Meta.RefreshFailures)
	assert.Equal(t, entity.ConnectionConnected, repo.conns["broken"].Status)
	assert.Equal(t, 1, ex.calls["tok-good"])
	assert.Len(t, ex.calls, 1)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	conf := &config.Config{}
	conf.Refresh.Schedule = "not a schedule"
	worker := NewWorker(conf, slog.New(slog.NewTextHandler(io.Discard, nil)), newMemRepo(), &fakeExchanger{}, testVault(t))
	assert.Error(t, worker.Start())
	worker.Stop()
}
