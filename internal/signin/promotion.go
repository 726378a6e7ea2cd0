// AngelaMos | 2026
// promotion.go

package signin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/identity"
)

const PromotionActor = "system:promotion"

// Promoter lifts a guest to the default role once an external account
// vouches for them. Running it on a non-guest does nothing.
type Promoter struct {
	store       identity.Store
	defaultRole string
	logger      *slog.Logger
}

func NewPromoter(store identity.Store, defaultRole string, logger *slog.Logger) *Promoter {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultRole == "" {
		defaultRole = identity.RoleUser
	}
	return &Promoter{store: store, defaultRole: defaultRole, logger: logger}
}

func (p *Promoter) Promote(
	ctx context.Context,
	guestID string,
	account *identity.Account,
) (_ *identity.User, err error) {
	ctx, span := core.StartSpan(ctx, "signin.Promote")
	defer func() { core.EndSpan(span, err) }()

	var promoted *identity.User

	err = p.store.InTx(ctx, func(tx identity.Store) error {
		user, err := tx.GetUser(ctx, guestID)
		if err != nil {
			return fmt.Errorf("promote guest: %w", err)
		}

		if !user.IsGuest() {
			promoted = user
			return nil
		}

		if account != nil {
			if err := p.absorbDuplicate(ctx, tx, user, account); err != nil {
				return err
			}
		}

		updated, err := tx.SetUserRole(ctx, user.ID, p.defaultRole, PromotionActor)
		if err != nil {
			return fmt.Errorf("promote guest: %w", err)
		}

		promoted = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	return promoted, nil
}

// absorbDuplicate handles an account already owned by another user: that
// user's rows move onto the guest and the emptied record is deleted.
func (p *Promoter) absorbDuplicate(
	ctx context.Context,
	tx identity.Store,
	guest *identity.User,
	account *identity.Account,
) error {
	linked, err := tx.GetAccount(ctx, account.Provider, account.ProviderAccountID)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("promote guest: %w", err)
	}

	if linked.UserID == guest.ID {
		return nil
	}

	duplicate, err := tx.GetUser(ctx, linked.UserID)
	if err != nil {
		return fmt.Errorf("promote guest: %w", err)
	}

	if duplicate.IsBanned() {
		return fmt.Errorf("promote guest: account owner is banned: %w", core.ErrForbidden)
	}

	if err := tx.ReassignUserData(ctx, duplicate.ID, guest.ID); err != nil {
		return fmt.Errorf("promote guest: %w", err)
	}

	if err := tx.DeleteUser(ctx, duplicate.ID); err != nil {
		return fmt.Errorf("promote guest: remove duplicate: %w", err)
	}

	if guest.Email == nil && duplicate.Email != nil {
		if _, err := tx.UpdateUser(ctx, identity.UserPatch{
			ID:    guest.ID,
			Email: duplicate.Email,
		}); err != nil {
			return fmt.Errorf("promote guest: carry email: %w", err)
		}
	}

	p.logger.Info("merged duplicate identity into guest",
		"guest_id", guest.ID,
		"duplicate_id", duplicate.ID,
		"provider", account.Provider,
	)

	return nil
}
