// AngelaMos | 2026
// adapter.go

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/BfdCampos/workplay/internal/core"
)

// EventEmitter receives account-link events. Implementations must return
// without waiting on delivery.
type EventEmitter interface {
	EmitAccountLinked(ctx context.Context, event AccountLinkedEvent)
}

type Stats struct {
	UsersByRole    []RoleCount `json:"users_by_role"`
	ActiveSessions int         `json:"active_sessions"`
}

// Adapter is the identity contract used by sign-in, session resolution and
// the admin API. Lookup misses come back as (nil, nil); raw tokens are
// hashed here and never reach the Store.
type Adapter struct {
	store       Store
	events      EventEmitter
	defaultRole string
	logger      *slog.Logger
	now         func() time.Time
}

func NewAdapter(
	store Store,
	events EventEmitter,
	defaultRole string,
	logger *slog.Logger,
) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultRole == "" {
		defaultRole = RoleUser
	}
	return &Adapter{
		store:       store,
		events:      events,
		defaultRole: defaultRole,
		logger:      logger,
		now:         time.Now,
	}
}

func (a *Adapter) DefaultRole() string {
	return a.defaultRole
}

func (a *Adapter) CreateUser(ctx context.Context, in NewUser) (_ *User, err error) {
	ctx, span := core.StartSpan(ctx, "identity.CreateUser")
	defer func() { core.EndSpan(span, err) }()

	roleID := in.RoleID
	if roleID == "" {
		roleID = a.defaultRole
	}

	user := &User{
		Name:          in.Name,
		Email:         NormalizeEmail(in.Email),
		EmailVerified: in.EmailVerified,
		Image:         in.Image,
		RoleID:        roleID,
	}

	if err := a.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	return user, nil
}

func (a *Adapter) GetUser(ctx context.Context, id string) (_ *User, err error) {
	ctx, span := core.StartSpan(ctx, "identity.GetUser")
	defer func() { core.EndSpan(span, err) }()

	return typedMiss(a.store.GetUser(ctx, id))
}

func (a *Adapter) GetUserByEmail(ctx context.Context, email string) (_ *User, err error) {
	ctx, span := core.StartSpan(ctx, "identity.GetUserByEmail")
	defer func() { core.EndSpan(span, err) }()

	normalized := NormalizeEmail(email)
	if normalized == nil {
		return nil, nil
	}
	return typedMiss(a.store.GetUserByEmail(ctx, *normalized))
}

func (a *Adapter) GetUserByAccount(
	ctx context.Context,
	provider, providerAccountID string,
) (_ *User, err error) {
	ctx, span := core.StartSpan(ctx, "identity.GetUserByAccount",
		attribute.String("account.provider", provider))
	defer func() { core.EndSpan(span, err) }()

	return typedMiss(a.store.GetUserByAccount(ctx, provider, providerAccountID))
}

// UpdateUser applies a partial patch. An unknown id is an error here, not a
// typed miss.
func (a *Adapter) UpdateUser(ctx context.Context, patch UserPatch) (_ *User, err error) {
	ctx, span := core.StartSpan(ctx, "identity.UpdateUser",
		attribute.String("user.id", patch.ID))
	defer func() { core.EndSpan(span, err) }()

	if patch.Email != nil {
		patch.Email = NormalizeEmail(*patch.Email)
	}

	return a.store.UpdateUser(ctx, patch)
}

// DeleteUser removes the user's sessions and accounts before the user row,
// all in one transaction.
func (a *Adapter) DeleteUser(ctx context.Context, id string) (err error) {
	ctx, span := core.StartSpan(ctx, "identity.DeleteUser",
		attribute.String("user.id", id))
	defer func() { core.EndSpan(span, err) }()

	return a.store.InTx(ctx, func(tx Store) error {
		if _, err := tx.GetUser(ctx, id); err != nil {
			return err
		}
		if _, err := tx.DeleteSessionsByUser(ctx, id); err != nil {
			return err
		}
		if _, err := tx.DeleteAccountsByUser(ctx, id); err != nil {
			return err
		}
		return tx.DeleteUser(ctx, id)
	})
}

func (a *Adapter) LinkAccount(ctx context.Context, account *Account) (_ *Account, err error) {
	ctx, span := core.StartSpan(ctx, "identity.LinkAccount",
		attribute.String("account.provider", account.Provider),
		attribute.String("user.id", account.UserID))
	defer func() { core.EndSpan(span, err) }()

	if err := a.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	if account.Provider == ProviderSlack {
		a.emitAccountLinked(ctx, account)
	}

	return account, nil
}

func (a *Adapter) emitAccountLinked(ctx context.Context, account *Account) {
	if a.events == nil {
		return
	}

	event := AccountLinkedEvent{
		Provider:          account.Provider,
		ProviderAccountID: account.ProviderAccountID,
		UserID:            account.UserID,
	}

	user, err := a.store.GetUser(ctx, account.UserID)
	if err != nil {
		a.logger.Warn("account linked event without profile",
			"user_id", account.UserID,
			"error", err,
		)
	} else {
		event.Name = user.Name
		event.Image = user.Image
	}

	a.events.EmitAccountLinked(ctx, event)
}

func (a *Adapter) UnlinkAccount(
	ctx context.Context,
	provider, providerAccountID string,
) (err error) {
	ctx, span := core.StartSpan(ctx, "identity.UnlinkAccount",
		attribute.String("account.provider", provider))
	defer func() { core.EndSpan(span, err) }()

	return a.store.DeleteAccount(ctx, provider, providerAccountID)
}

func (a *Adapter) GetSessionAndUser(
	ctx context.Context,
	token string,
) (_ *SessionAndUser, err error) {
	ctx, span := core.StartSpan(ctx, "identity.GetSessionAndUser")
	defer func() { core.EndSpan(span, err) }()

	if token == "" {
		return nil, nil
	}
	return typedMiss(a.store.GetSessionAndUser(ctx, core.HashToken(token)))
}

// CreateSession generates the token when in.Token is empty. The returned
// Session is the only place the raw token is exposed.
func (a *Adapter) CreateSession(ctx context.Context, in NewSession) (_ *Session, err error) {
	ctx, span := core.StartSpan(ctx, "identity.CreateSession",
		attribute.String("user.id", in.UserID))
	defer func() { core.EndSpan(span, err) }()

	token := in.Token
	if token == "" {
		token, err = core.GenerateSessionToken()
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}

	session := &Session{
		Token:     token,
		TokenHash: core.HashToken(token),
		UserID:    in.UserID,
		Expires:   in.Expires,
	}

	if err := a.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

func (a *Adapter) UpdateSession(ctx context.Context, in SessionUpdate) (_ *Session, err error) {
	ctx, span := core.StartSpan(ctx, "identity.UpdateSession")
	defer func() { core.EndSpan(span, err) }()

	session, err := a.store.UpdateSession(ctx, core.HashToken(in.Token), in.Expires)
	if err != nil {
		return nil, err
	}

	session.Token = in.Token
	return session, nil
}

// DeleteSession succeeds for tokens that are unknown or already gone.
func (a *Adapter) DeleteSession(ctx context.Context, token string) (err error) {
	ctx, span := core.StartSpan(ctx, "identity.DeleteSession")
	defer func() { core.EndSpan(span, err) }()

	if token == "" {
		return nil
	}

	_, err = a.store.DeleteSessionByToken(ctx, core.HashToken(token))
	return err
}

func (a *Adapter) CreateVerificationToken(
	ctx context.Context,
	in NewVerificationToken,
) (_ *VerificationToken, err error) {
	ctx, span := core.StartSpan(ctx, "identity.CreateVerificationToken")
	defer func() { core.EndSpan(span, err) }()

	token := in.Token
	if token == "" {
		token, err = core.GenerateSecureToken(32)
		if err != nil {
			return nil, fmt.Errorf("create verification token: %w", err)
		}
	}

	vt := &VerificationToken{
		Identifier: in.Identifier,
		Token:      token,
		TokenHash:  core.HashToken(token),
		Expires:    in.Expires,
	}

	if err := a.store.CreateVerificationToken(ctx, vt); err != nil {
		return nil, err
	}

	return vt, nil
}

// UseVerificationToken consumes the token at most once. A replay returns
// (nil, nil). Expired tokens are still consumed and returned; callers check
// Expires.
func (a *Adapter) UseVerificationToken(
	ctx context.Context,
	identifier, token string,
) (_ *VerificationToken, err error) {
	ctx, span := core.StartSpan(ctx, "identity.UseVerificationToken")
	defer func() { core.EndSpan(span, err) }()

	vt, err := typedMiss(
		a.store.ConsumeVerificationToken(ctx, identifier, core.HashToken(token)),
	)
	if err != nil || vt == nil {
		return nil, err
	}

	vt.Token = token
	return vt, nil
}

func (a *Adapter) ListRoles(ctx context.Context) (_ []Role, err error) {
	ctx, span := core.StartSpan(ctx, "identity.ListRoles")
	defer func() { core.EndSpan(span, err) }()

	return a.store.ListRoles(ctx)
}

// SetUserRole records actor in the role audit trail.
func (a *Adapter) SetUserRole(
	ctx context.Context,
	actor, userID, roleID string,
) (_ *User, err error) {
	ctx, span := core.StartSpan(ctx, "identity.SetUserRole",
		attribute.String("user.id", userID),
		attribute.String("role.id", roleID))
	defer func() { core.EndSpan(span, err) }()

	return a.store.SetUserRole(ctx, userID, roleID, actor)
}

func (a *Adapter) ListRoleChanges(ctx context.Context, userID string) (_ []RoleChange, err error) {
	ctx, span := core.StartSpan(ctx, "identity.ListRoleChanges")
	defer func() { core.EndSpan(span, err) }()

	return a.store.ListRoleChanges(ctx, userID)
}

func (a *Adapter) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) (_ []User, _ int, err error) {
	ctx, span := core.StartSpan(ctx, "identity.ListUsers")
	defer func() { core.EndSpan(span, err) }()

	return a.store.ListUsers(ctx, params)
}

func (a *Adapter) ListSessions(ctx context.Context, userID string) (_ []Session, err error) {
	ctx, span := core.StartSpan(ctx, "identity.ListSessions")
	defer func() { core.EndSpan(span, err) }()

	return a.store.ListSessionsByUser(ctx, userID)
}

func (a *Adapter) ListAccounts(ctx context.Context, userID string) (_ []Account, err error) {
	ctx, span := core.StartSpan(ctx, "identity.ListAccounts")
	defer func() { core.EndSpan(span, err) }()

	return a.store.ListAccountsByUser(ctx, userID)
}

func (a *Adapter) Stats(ctx context.Context) (_ *Stats, err error) {
	ctx, span := core.StartSpan(ctx, "identity.Stats")
	defer func() { core.EndSpan(span, err) }()

	byRole, err := a.store.CountUsersByRole(ctx)
	if err != nil {
		return nil, err
	}

	active, err := a.store.CountActiveSessions(ctx, a.now())
	if err != nil {
		return nil, err
	}

	return &Stats{UsersByRole: byRole, ActiveSessions: active}, nil
}

func typedMiss[T any](v *T, err error) (*T, error) {
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}
