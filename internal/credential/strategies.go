package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"InboxGate/entity"
	"InboxGate/internal/lib/sl"
	"InboxGate/internal/lib/vault"
)

type ConnectionRepository interface {
	FindConnectedByChannel(ctx context.Context, provider entity.Provider, channelID string) (*entity.ChannelConnection, error)
	FindConnectedByWorkspace(ctx context.Context, workspaceID string, provider entity.Provider) (*entity.ChannelConnection, error)
	GetTokenByConnection(ctx context.Context, connectionID string) (*entity.OAuthToken, error)
}

type LegacyRepository interface {
	GetLegacyIntegration(ctx context.Context, channel entity.Provider) (*entity.LegacyChannelIntegration, error)
}

type Decrypter interface {
	Decrypt(blob string) (string, error)
}

// ConnectionStrategy reads the per-tenant connection registry.
type ConnectionStrategy struct {
	repo  ConnectionRepository
	vault Decrypter
	log   *slog.Logger
}

func NewConnectionStrategy(log *slog.Logger, repo ConnectionRepository, vault Decrypter) *ConnectionStrategy {
	return &ConnectionStrategy{
		repo:  repo,
		vault: vault,
		log:   log.With(sl.Module("credential.connection")),
	}
}

func (s *ConnectionStrategy) Name() string {
	return SourceConnection
}

func (s *ConnectionStrategy) Resolve(ctx context.Context, q Query) (*Credential, error) {
	var conn *entity.ChannelConnection
	var err error
	if q.WorkspaceID != "" {
		conn, err = s.repo.FindConnectedByWorkspace(ctx, q.WorkspaceID, q.Provider)
	} else {
		conn, err = s.repo.FindConnectedByChannel(ctx, q.Provider, q.ChannelID)
	}
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find connection: %w", err)
	}

	token, err := s.repo.GetTokenByConnection(ctx, conn.ID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, fmt.Errorf("%w: connection %s has no token", ErrNotFound, conn.ID)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	plain, err := s.vault.Decrypt(token.AccessTokenEncrypted)
	if err != nil {
		if errors.Is(err, vault.ErrDecryptFailed) {
			s.log.With(
				slog.String("connection_id", conn.ID),
				slog.String("provider", conn.Provider.String()),
			).Warn("connection token unusable", sl.Err(err))
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, err
	}

	return &Credential{
		WorkspaceID:  conn.WorkspaceID,
		Provider:     conn.Provider,
		ChannelID:    conn.ProviderChannelID,
		AccessToken:  plain,
		ConnectionID: conn.ID,
		Source:       SourceConnection,
	}, nil
}

// LegacyStrategy reads the single pre-multi-tenant row for a provider.
// The row is not keyed by channel or workspace, so with several legacy-era tenants on
// one provider it can hand out another tenant's token.
type LegacyStrategy struct {
	repo             LegacyRepository
	defaultWorkspace string
	log              *slog.Logger
}

func NewLegacyStrategy(log *slog.Logger, repo LegacyRepository, defaultWorkspace string) *LegacyStrategy {
	return &LegacyStrategy{
		repo:             repo,
		defaultWorkspace: defaultWorkspace,
		log:              log.With(sl.Module("credential.legacy")),
	}
}

func (s *LegacyStrategy) Name() string {
	return SourceLegacy
}

func (s *LegacyStrategy) Resolve(ctx context.Context, q Query) (*Credential, error) {
	legacy, err := s.repo.GetLegacyIntegration(ctx, q.Provider)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find legacy integration: %w", err)
	}
	if !legacy.IsConnected {
		return nil, fmt.Errorf("%w: legacy %s integration disconnected", ErrNotFound, q.Provider)
	}
	token := legacy.AccessToken()
	if token == "" {
		return nil, fmt.Errorf("%w: legacy %s integration has no token", ErrNotFound, q.Provider)
	}

	workspace := legacy.Config[entity.LegacyKeyWorkspaceID]
	if workspace == "" {
		workspace = s.defaultWorkspace
	}
	if q.WorkspaceID != "" && workspace != q.WorkspaceID {
		return nil, fmt.Errorf("%w: legacy %s integration belongs to another workspace", ErrNotFound, q.Provider)
	}
	if workspace == "" {
		return nil, fmt.Errorf("%w: legacy %s integration has no workspace", ErrNotFound, q.Provider)
	}

	channelID := legacy.ChannelID()
	if q.ChannelID != "" && channelID != "" && channelID != q.ChannelID {
		s.log.With(
			slog.String("provider", q.Provider.String()),
			slog.String("channel_id", q.ChannelID),
			slog.String("legacy_channel_id", channelID),
		).Warn("legacy credential used for a different channel")
	}
	if channelID == "" {
		channelID = q.ChannelID
	}

	return &Credential{
		WorkspaceID: workspace,
		Provider:    q.Provider,
		ChannelID:   channelID,
		AccessToken: token,
		Source:      SourceLegacy,
	}, nil
}
