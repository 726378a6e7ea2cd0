// AngelaMos | 2026
// policy.go

package signin

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/identity"
	"github.com/BfdCampos/workplay/internal/provider"
)

var ErrBanned = fmt.Errorf("sign-in rejected: %w", core.ErrUnauthorized)

// Attempt is one completed external authentication. Account is nil for
// credentials sign-in. Evaluate replaces User with its post-policy state.
type Attempt struct {
	User     *identity.User
	Account  *identity.Account
	Provider string
	Profile  *provider.Profile
}

func (a *Attempt) provider() string {
	if a.Account != nil {
		return a.Account.Provider
	}
	return a.Provider
}

// Policy decides whether a sign-in may proceed. Only a ban rejects;
// promotion and profile sync problems are logged and sign-in continues.
type Policy struct {
	adapter  *identity.Adapter
	promoter *Promoter
	syncers  map[string]ProfileSyncer
	logger   *slog.Logger
}

func NewPolicy(
	adapter *identity.Adapter,
	promoter *Promoter,
	logger *slog.Logger,
	syncers ...ProfileSyncer,
) *Policy {
	if logger == nil {
		logger = slog.Default()
	}

	bySource := make(map[string]ProfileSyncer, len(syncers))
	for _, s := range syncers {
		bySource[s.Provider()] = s
	}

	return &Policy{
		adapter:  adapter,
		promoter: promoter,
		syncers:  bySource,
		logger:   logger,
	}
}

func (p *Policy) Evaluate(ctx context.Context, attempt *Attempt) (err error) {
	ctx, span := core.StartSpan(ctx, "signin.Evaluate",
		attribute.String("signin.provider", attempt.provider()))
	defer func() { core.EndSpan(span, err) }()

	if attempt.User == nil {
		return fmt.Errorf("evaluate sign-in: no user: %w", core.ErrInvalidInput)
	}

	if attempt.User.IsBanned() {
		p.logger.Info("sign-in rejected for banned user",
			"user_id", attempt.User.ID,
			"provider", attempt.provider(),
		)
		return ErrBanned
	}

	if attempt.User.IsGuest() && attempt.Account != nil {
		promoted, err := p.promoter.Promote(ctx, attempt.User.ID, attempt.Account)
		if err != nil {
			p.logger.Warn("guest promotion failed",
				"user_id", attempt.User.ID,
				"provider", attempt.provider(),
				"error", err,
			)
		} else {
			attempt.User = promoted
		}
	}

	if syncer, ok := p.syncers[attempt.provider()]; ok {
		if err := p.syncProfile(ctx, syncer, attempt); err != nil {
			p.logger.Warn("failed to update user information",
				"user_id", attempt.User.ID,
				"provider", attempt.provider(),
				"error", err,
			)
		}
	}

	return nil
}

func (p *Policy) syncProfile(
	ctx context.Context,
	syncer ProfileSyncer,
	attempt *Attempt,
) error {
	patch, err := syncer.Patch(ctx, attempt)
	if err != nil {
		return err
	}
	if isEmptyPatch(patch) {
		return nil
	}

	updated, err := p.adapter.UpdateUser(ctx, *patch)
	if err != nil {
		return fmt.Errorf("apply profile: %w", err)
	}

	attempt.User = updated
	return nil
}
