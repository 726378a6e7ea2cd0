// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/identity"
	"github.com/BfdCampos/workplay/internal/provider"
	"github.com/BfdCampos/workplay/internal/signin"
)

var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", core.ErrUnauthorized)

type SignInResult struct {
	Session *identity.Session
	User    *identity.User
}

type Service struct {
	adapter *identity.Adapter
	policy  *signin.Policy
	maxAge  time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(
	adapter *identity.Adapter,
	policy *signin.Policy,
	maxAge time.Duration,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		adapter: adapter,
		policy:  policy,
		maxAge:  maxAge,
		logger:  logger,
		now:     time.Now,
	}
}

// SignIn completes an external sign-in: find or create the user, link the
// account, run the sign-in policy and open a session.
func (s *Service) SignIn(
	ctx context.Context,
	providerID string,
	profile *provider.Profile,
	token *oauth2.Token,
) (_ *SignInResult, err error) {
	ctx, span := core.StartSpan(ctx, "auth.SignIn",
		attribute.String("signin.provider", providerID))
	defer func() { core.EndSpan(span, err) }()

	if profile == nil || profile.ID == "" {
		return nil, fmt.Errorf("sign in: empty profile: %w", core.ErrInvalidInput)
	}

	user, account, err := s.resolveAccount(ctx, providerID, profile, token)
	if err != nil {
		return nil, err
	}

	return s.complete(ctx, &signin.Attempt{
		User:     user,
		Account:  account,
		Provider: providerID,
		Profile:  profile,
	})
}

// LinkGuest completes an external sign-in started from a guest's session.
// An unlinked account attaches to the guest. An account owned by another
// user is merged into the guest by the promotion step, unless that owner is
// banned, in which case the owner's ban decides the attempt.
func (s *Service) LinkGuest(
	ctx context.Context,
	guest *identity.User,
	providerID string,
	profile *provider.Profile,
	token *oauth2.Token,
) (_ *SignInResult, err error) {
	ctx, span := core.StartSpan(ctx, "auth.LinkGuest",
		attribute.String("signin.provider", providerID),
		attribute.String("user.id", guest.ID))
	defer func() { core.EndSpan(span, err) }()

	if profile == nil || profile.ID == "" {
		return nil, fmt.Errorf("link guest: empty profile: %w", core.ErrInvalidInput)
	}

	owner, err := s.adapter.GetUserByAccount(ctx, providerID, profile.ID)
	if err != nil {
		return nil, err
	}

	var account *identity.Account
	switch {
	case owner == nil:
		account, err = s.adapter.LinkAccount(ctx, newAccount(guest.ID, providerID, profile.ID, token))
		if errors.Is(err, core.ErrConflict) {
			return s.SignIn(ctx, providerID, profile, token)
		}
		if err != nil {
			return nil, fmt.Errorf("link guest: %w", err)
		}
	case owner.IsBanned():
		return s.complete(ctx, &signin.Attempt{
			User:     owner,
			Provider: providerID,
			Profile:  profile,
		})
	default:
		account, err = s.findAccount(ctx, owner.ID, providerID, profile.ID)
		if err != nil {
			return nil, err
		}
	}

	return s.complete(ctx, &signin.Attempt{
		User:     guest,
		Account:  account,
		Provider: providerID,
		Profile:  profile,
	})
}

// SignInWithCredentials signs in by user id. It is only routed outside
// production.
func (s *Service) SignInWithCredentials(
	ctx context.Context,
	userID string,
) (_ *SignInResult, err error) {
	ctx, span := core.StartSpan(ctx, "auth.SignInWithCredentials")
	defer func() { core.EndSpan(span, err) }()

	user, err := s.adapter.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	return s.complete(ctx, &signin.Attempt{
		User:     user,
		Provider: identity.ProviderCredentials,
	})
}

func (s *Service) complete(ctx context.Context, attempt *signin.Attempt) (*SignInResult, error) {
	if err := s.policy.Evaluate(ctx, attempt); err != nil {
		return nil, err
	}

	session, err := s.adapter.CreateSession(ctx, identity.NewSession{
		UserID:  attempt.User.ID,
		Expires: s.now().Add(s.maxAge),
	})
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	s.logger.Info("user signed in",
		"user_id", attempt.User.ID,
		"provider", attempt.Provider,
		"role", attempt.User.RoleID,
	)

	return &SignInResult{Session: session, User: attempt.User}, nil
}

func (s *Service) resolveAccount(
	ctx context.Context,
	providerID string,
	profile *provider.Profile,
	token *oauth2.Token,
) (*identity.User, *identity.Account, error) {
	user, err := s.adapter.GetUserByAccount(ctx, providerID, profile.ID)
	if err != nil {
		return nil, nil, err
	}
	if user != nil {
		account, err := s.findAccount(ctx, user.ID, providerID, profile.ID)
		return user, account, err
	}

	user, created, err := s.findOrCreateUser(ctx, profile)
	if err != nil {
		return nil, nil, err
	}

	account, err := s.adapter.LinkAccount(ctx, newAccount(user.ID, providerID, profile.ID, token))
	if err == nil {
		return user, account, nil
	}
	if !errors.Is(err, core.ErrConflict) {
		return nil, nil, fmt.Errorf("link account: %w", err)
	}

	// A concurrent sign-in linked the same account first.
	if created {
		if delErr := s.adapter.DeleteUser(ctx, user.ID); delErr != nil {
			s.logger.Warn("failed to remove orphaned user",
				"user_id", user.ID,
				"error", delErr,
			)
		}
	}

	winner, err := s.adapter.GetUserByAccount(ctx, providerID, profile.ID)
	if err != nil {
		return nil, nil, err
	}
	if winner == nil {
		return nil, nil, fmt.Errorf("link account: lost account after conflict: %w", core.ErrConflict)
	}

	account, err = s.findAccount(ctx, winner.ID, providerID, profile.ID)
	return winner, account, err
}

// findOrCreateUser links by email only when the provider vouches for it.
func (s *Service) findOrCreateUser(
	ctx context.Context,
	profile *provider.Profile,
) (*identity.User, bool, error) {
	if profile.Email != "" && profile.EmailVerified {
		existing, err := s.adapter.GetUserByEmail(ctx, profile.Email)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	in := identity.NewUser{
		Name:  profile.Name,
		Email: profile.Email,
		Image: profile.Image,
	}
	if profile.EmailVerified {
		verified := s.now()
		in.EmailVerified = &verified
	}

	user, err := s.adapter.CreateUser(ctx, in)
	if errors.Is(err, core.ErrConflict) && in.Email != "" {
		in.Email = ""
		in.EmailVerified = nil
		user, err = s.adapter.CreateUser(ctx, in)
	}
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}

	return user, true, nil
}

func (s *Service) findAccount(
	ctx context.Context,
	userID, providerID, providerAccountID string,
) (*identity.Account, error) {
	accounts, err := s.adapter.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].Provider == providerID && accounts[i].ProviderAccountID == providerAccountID {
			return &accounts[i], nil
		}
	}
	return nil, fmt.Errorf("find account: %w", core.ErrNotFound)
}

func newAccount(userID, providerID, providerAccountID string, token *oauth2.Token) *identity.Account {
	account := &identity.Account{
		UserID:            userID,
		Type:              provider.TypeOAuth,
		Provider:          providerID,
		ProviderAccountID: providerAccountID,
	}
	if token == nil {
		return account
	}

	account.AccessToken = optional(token.AccessToken)
	account.RefreshToken = optional(token.RefreshToken)
	account.TokenType = optional(token.TokenType)
	if !token.Expiry.IsZero() {
		expires := token.Expiry.Unix()
		account.ExpiresAt = &expires
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		account.IDToken = optional(idToken)
	}
	if scope, ok := token.Extra("scope").(string); ok {
		account.Scope = optional(scope)
	}
	return account
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	return s.adapter.DeleteSession(ctx, token)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params identity.ListUsersParams,
) ([]identity.User, int, error) {
	return s.adapter.ListUsers(ctx, params)
}
