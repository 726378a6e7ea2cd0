// AngelaMos | 2026
// resolver.go

package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/identity"
)

// Resolver turns a raw session token into the session and its user.
// Expired sessions and sessions of banned users are deleted on sight.
// Sessions with less than maxAge-updateAge left are extended to a full
// maxAge.
type Resolver struct {
	adapter   *identity.Adapter
	maxAge    time.Duration
	updateAge time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewResolver(
	adapter *identity.Adapter,
	maxAge, updateAge time.Duration,
	logger *slog.Logger,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		adapter:   adapter,
		maxAge:    maxAge,
		updateAge: updateAge,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *Resolver) MaxAge() time.Duration {
	return r.maxAge
}

// Resolve returns nil for empty, unknown and expired tokens, and for
// sessions whose user has since been banned.
func (r *Resolver) Resolve(ctx context.Context, token string) (*identity.SessionAndUser, error) {
	found, err := r.adapter.GetSessionAndUser(ctx, token)
	if err != nil || found == nil {
		return nil, err
	}

	now := r.now()

	if found.Session.IsExpired(now) {
		r.discard(ctx, token, found, "expired")
		return nil, nil
	}

	if found.User.IsBanned() {
		r.discard(ctx, token, found, "banned")
		return nil, nil
	}

	if found.Session.Expires.Sub(now) < r.maxAge-r.updateAge {
		updated, err := r.adapter.UpdateSession(ctx, identity.SessionUpdate{
			Token:   token,
			Expires: now.Add(r.maxAge),
		})
		switch {
		case errors.Is(err, core.ErrNotFound):
			return nil, nil
		case err != nil:
			r.logger.Warn("failed to extend session",
				"session_id", found.Session.ID,
				"error", err,
			)
		default:
			found.Session.Expires = updated.Expires
		}
	}

	return found, nil
}

func (r *Resolver) discard(
	ctx context.Context,
	token string,
	found *identity.SessionAndUser,
	reason string,
) {
	if err := r.adapter.DeleteSession(ctx, token); err != nil {
		r.logger.Warn("failed to delete session",
			"session_id", found.Session.ID,
			"reason", reason,
			"error", err,
		)
	}
}
