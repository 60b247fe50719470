// Package credential finds a usable access token for a provider channel.
//
// Resolution runs an ordered list of strategies. Each strategy tries once and
// returns ErrNotFound to let the next one run; an unusable credential (for example
// a token that no longer decrypts) is reported the same way.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"InboxGate/entity"
	"InboxGate/internal/lib/sl"
)

var ErrNotFound = errors.New("credential not found")

const (
	SourceConnection = "connection"
	SourceLegacy     = "legacy"
)

// Query selects a credential. WorkspaceID scopes the lookup to one tenant when set;
// ChannelID identifies the external account when the tenant is not yet known.
type Query struct {
	Provider    entity.Provider
	ChannelID   string
	WorkspaceID string
}

type Credential struct {
	WorkspaceID  string
	Provider     entity.Provider
	ChannelID    string
	AccessToken  string
	ConnectionID string
	Source       string
}

type Strategy interface {
	Name() string
	Resolve(ctx context.Context, q Query) (*Credential, error)
}

type Resolver struct {
	strategies []Strategy
	log        *slog.Logger
}

func NewResolver(log *slog.Logger, strategies ...Strategy) *Resolver {
	return &Resolver{
		strategies: strategies,
		log:        log.With(sl.Module("credential.resolver")),
	}
}

func (r *Resolver) Resolve(ctx context.Context, q Query) (*Credential, error) {
	return r.ResolveAny(ctx, []Query{q})
}

// ResolveAny walks strategies in order and, inside each strategy, the queries in order.
// A modern connection for any candidate therefore beats a legacy row for the first one.
// Any error other than ErrNotFound stops the walk: the legacy row is not scoped to a
// channel and must never answer for a registry that could not be read.
func (r *Resolver) ResolveAny(ctx context.Context, queries []Query) (*Credential, error) {
	for _, strategy := range r.strategies {
		for _, q := range queries {
			cred, err := strategy.Resolve(ctx, q)
			if err == nil {
				return cred, nil
			}
			logger := r.log.With(
				slog.String("strategy", strategy.Name()),
				slog.String("provider", q.Provider.String()),
				slog.String("channel_id", q.ChannelID),
				slog.String("workspace_id", q.WorkspaceID),
			)
			if errors.Is(err, ErrNotFound) {
				logger.Debug("no credential", sl.Err(err))
				continue
			}
			logger.Error("credential lookup failed", sl.Err(err))
			return nil, fmt.Errorf("resolve credential: %w", err)
		}
	}
	return nil, ErrNotFound
}
