package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/oauth2"

	"InboxGate/entity"
	"InboxGate/internal/config"
	"InboxGate/internal/lib/sl"
	"InboxGate/internal/lib/vault"
)

const (
	defaultHorizon     = 7 * 24 * time.Hour
	defaultMaxFailures = 3
	defaultTimeout     = 30 * time.Second

	// store writes outlive the exchange deadline so a timed out exchange is still counted
	storeTimeout = 10 * time.Second
)

type Repository interface {
	ListExpiringTokens(ctx context.Context, before time.Time) ([]entity.ExpiringToken, error)
	SaveRefreshedToken(ctx context.Context, connectionID, encrypted, tokenType string, expiresAt time.Time) error
	// RecordRefreshFailure increments the failure counter and returns the new value.
	RecordRefreshFailure(ctx context.Context, connectionID, reason string) (int, error)
	SetConnectionStatus(ctx context.Context, connectionID string, status entity.ConnectionStatus) error
	TouchConnectionSync(ctx context.Context, connectionID string, at time.Time) error
	InsertAudit(ctx context.Context, entry *entity.AuditLog) error
}

type Exchanger interface {
	ExchangeToken(ctx context.Context, provider entity.Provider, token string) (*oauth2.Token, error)
}

type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(blob string) (string, error)
}

type Notifier interface {
	SendMessage(msg string)
}

type Broadcaster interface {
	BroadcastConnectionExpired(conn *entity.ChannelConnection)
}

type Report struct {
	Checked   int `json:"checked"`
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
	Expired   int `json:"expired"`
}

type Worker struct {
	repo        Repository
	exchanger   Exchanger
	cipher      Cipher
	notifier    Notifier
	broadcaster Broadcaster
	horizon     time.Duration
	maxFailures int
	timeout     time.Duration
	schedule    string
	cron        *cron.Cron
	log         *slog.Logger
}

func NewWorker(conf *config.Config, log *slog.Logger, repo Repository, exchanger Exchanger, cipher Cipher) *Worker {
	w := &Worker{
		repo:        repo,
		exchanger:   exchanger,
		cipher:      cipher,
		horizon:     conf.Refresh.Horizon,
		maxFailures: conf.Refresh.MaxFailures,
		timeout:     conf.Refresh.Timeout,
		schedule:    conf.Refresh.Schedule,
		log:         log.With(sl.Module("refresh.worker")),
	}
	if w.horizon <= 0 {
		w.horizon = defaultHorizon
	}
	if w.maxFailures <= 0 {
		w.maxFailures = defaultMaxFailures
	}
	if w.timeout <= 0 {
		w.timeout = defaultTimeout
	}
	return w
}

func (w *Worker) SetNotifier(notifier Notifier) {
	w.notifier = notifier
}

func (w *Worker) SetBroadcaster(broadcaster Broadcaster) {
	w.broadcaster = broadcaster
}

// Start schedules RunOnce on the configured cron spec.
func (w *Worker) Start() error {
	if w.schedule == "" {
		return fmt.Errorf("refresh schedule is empty")
	}
	w.cron = cron.New()
	_, err := w.cron.AddFunc(w.schedule, func() {
		report, err := w.RunOnce(context.Background())
		if err != nil {
			w.log.Error("refresh run failed", sl.Err(err))
			return
		}
		w.log.With(
			slog.Int("checked", report.Checked),
			slog.Int("refreshed", report.Refreshed),
			slog.Int("failed", report.Failed),
			slog.Int("expired", report.Expired),
		).Info("refresh run complete")
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", w.schedule, err)
	}
	w.cron.Start()
	w.log.With(slog.String("schedule", w.schedule)).Info("refresh worker started")
	return nil
}

func (w *Worker) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
}

// RunOnce refreshes every connected token expiring within the horizon.
// Each token is its own unit of work; one failure never stops the batch.
func (w *Worker) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	tokens, err := w.repo.ListExpiringTokens(ctx, time.Now().Add(w.horizon))
	if err != nil {
		return report, fmt.Errorf("list expiring tokens: %w", err)
	}

	for i := range tokens {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		item := &tokens[i]
		if item.Connection.Status != entity.ConnectionConnected {
			continue
		}
		report.Checked++

		expired, err := w.refreshOne(ctx, item)
		switch {
		case err == nil:
			report.Refreshed++
		case expired:
			report.Failed++
			report.Expired++
		default:
			report.Failed++
		}
	}
	return report, nil
}

func (w *Worker) refreshOne(ctx context.Context, item *entity.ExpiringToken) (bool, error) {
	conn := &item.Connection
	log := w.log.With(
		slog.String("connection_id", conn.ID),
		slog.String("workspace_id", conn.WorkspaceID),
		slog.String("provider", conn.Provider.String()),
	)

	current, err := w.cipher.Decrypt(item.Token.AccessTokenEncrypted)
	if err != nil {
		if !errors.Is(err, vault.ErrDecryptFailed) {
			err = fmt.Errorf("%w: %v", vault.ErrDecryptFailed, err)
		}
		log.Warn("stored token unusable", sl.Err(err))
		return w.fail(ctx, log, conn, err)
	}

	renewed, err := w.exchange(ctx, conn.Provider, current)
	if err != nil {
		log.Warn("token exchange failed", sl.Err(err))
		return w.fail(ctx, log, conn, err)
	}

	encrypted, err := w.cipher.Encrypt(renewed.AccessToken)
	if err != nil {
		return w.fail(ctx, log, conn, fmt.Errorf("encrypt renewed token: %w", err))
	}
	tokenType := renewed.TokenType
	if tokenType == "" {
		tokenType = item.Token.TokenType
	}

	storeCtx, cancel := storeContext(ctx)
	defer cancel()
	if err = w.repo.SaveRefreshedToken(storeCtx, conn.ID, encrypted, tokenType, renewed.Expiry); err != nil {
		log.Error("save refreshed token", sl.Err(err))
		return false, err
	}
	if err = w.repo.TouchConnectionSync(storeCtx, conn.ID, time.Now()); err != nil {
		log.Warn("update connection sync time", sl.Err(err))
	}
	w.audit(storeCtx, log, conn, entity.AuditTokenRefreshed, map[string]string{
		"expires_at": renewed.Expiry.UTC().Format(time.RFC3339),
	})
	log.With(slog.Time("expires_at", renewed.Expiry)).Info("token refreshed")
	return false, nil
}

// exchange bounds the provider call alone; a timeout is reported like any provider error.
func (w *Worker) exchange(ctx context.Context, provider entity.Provider, token string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	renewed, err := w.exchanger.ExchangeToken(ctx, provider, token)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("token exchange timed out after %s: %w", w.timeout, err)
		}
		return nil, err
	}
	return renewed, nil
}

func storeContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), storeTimeout)
}

// fail records one failed attempt and demotes the connection once the threshold is reached.
func (w *Worker) fail(parent context.Context, log *slog.Logger, conn *entity.ChannelConnection, cause error) (bool, error) {
	ctx, cancel := storeContext(parent)
	defer cancel()

	failures, err := w.repo.RecordRefreshFailure(ctx, conn.ID, cause.Error())
	if err != nil {
		log.Error("record refresh failure", sl.Err(err))
		return false, cause
	}
	w.audit(ctx, log, conn, entity.AuditTokenRefreshFailed, map[string]string{
		"error":    cause.Error(),
		"failures": fmt.Sprintf("%d", failures),
	})
	if failures < w.maxFailures {
		return false, cause
	}

	if err = w.repo.SetConnectionStatus(ctx, conn.ID, entity.ConnectionTokenExpired); err != nil {
		log.Error("demote connection", sl.Err(err))
		return false, cause
	}
	conn.Status = entity.ConnectionTokenExpired
	w.audit(ctx, log, conn, entity.AuditConnectionExpired, map[string]string{
		"error":    cause.Error(),
		"failures": fmt.Sprintf("%d", failures),
	})
	log.With(slog.Int("failures", failures)).Error("connection token expired", sl.Err(cause))

	if w.notifier != nil {
		w.notifier.SendMessage(fmt.Sprintf("%s connection %s (workspace %s) needs re-authentication: %s",
			conn.Provider, conn.DisplayNameOrID(), conn.WorkspaceID, cause.Error()))
	}
	if w.broadcaster != nil {
		w.broadcaster.BroadcastConnectionExpired(conn)
	}
	return true, cause
}

func (w *Worker) audit(ctx context.Context, log *slog.Logger, conn *entity.ChannelConnection, action string, details map[string]string) {
	entry := &entity.AuditLog{
		Action:       action,
		WorkspaceID:  conn.WorkspaceID,
		ConnectionID: conn.ID,
		Provider:     conn.Provider,
		Details:      details,
		CreatedAt:    time.Now(),
	}
	if err := w.repo.InsertAudit(ctx, entry); err != nil {
		log.With(slog.String("action", action)).Warn("audit write failed", sl.Err(err))
	}
}
