// AngelaMos | 2026
// revoker.go

package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/identity"
)

// Revoker ends other people's sessions on behalf of a dashboard user.
type Revoker struct {
	store  identity.Store
	logger *slog.Logger
}

func NewRevoker(store identity.Store, logger *slog.Logger) *Revoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Revoker{store: store, logger: logger}
}

func authorize(caller *identity.SessionAndUser) error {
	if caller == nil || !caller.User.CanViewDashboard() {
		return fmt.Errorf("revoke sessions: %w", core.ErrUnauthorized)
	}
	return nil
}

func (r *Revoker) DeleteAllSessions(
	ctx context.Context,
	caller *identity.SessionAndUser,
) (int64, error) {
	if err := authorize(caller); err != nil {
		return 0, err
	}

	count, err := r.store.DeleteAllSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions: %w", err)
	}

	r.logger.Info("all sessions revoked",
		"actor_id", caller.User.ID,
		"count", count,
	)

	return count, nil
}

// DeleteSession refuses the caller's own session. Unknown ids succeed.
func (r *Revoker) DeleteSession(
	ctx context.Context,
	caller *identity.SessionAndUser,
	sessionID string,
) error {
	if err := authorize(caller); err != nil {
		return err
	}

	if sessionID == caller.Session.ID {
		return fmt.Errorf("revoke session: %w", core.ErrSelfRevocation)
	}

	count, err := r.store.DeleteSessionByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	if count > 0 {
		r.logger.Info("session revoked",
			"actor_id", caller.User.ID,
			"session_id", sessionID,
		)
	}

	return nil
}

// DeleteUserSessions ends every session of one user, used when an admin
// bans or demotes someone.
func (r *Revoker) DeleteUserSessions(
	ctx context.Context,
	caller *identity.SessionAndUser,
	userID string,
) (int64, error) {
	if err := authorize(caller); err != nil {
		return 0, err
	}

	if userID == caller.User.ID {
		return 0, fmt.Errorf("revoke user sessions: %w", core.ErrSelfRevocation)
	}

	count, err := r.store.DeleteSessionsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}

	return count, nil
}
