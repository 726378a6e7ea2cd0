// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/identity"
	"github.com/BfdCampos/workplay/internal/provider"
	"github.com/BfdCampos/workplay/internal/signin"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []identity.AccountLinkedEvent
}

func (e *recordingEmitter) EmitAccountLinked(_ context.Context, event identity.AccountLinkedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events)
}

type staticSlackProfiles struct {
	profile *provider.SlackProfile
}

func (s staticSlackProfiles) UserProfile(context.Context, string) (*provider.SlackProfile, error) {
	return s.profile, nil
}

// racingStore links the account to winnerID just before the caller's link
// lands, the way a concurrent callback would.
type racingStore struct {
	*identity.MemoryStore
	winnerID string
	raced    bool
}

func (s *racingStore) CreateAccount(ctx context.Context, account *identity.Account) error {
	if !s.raced {
		s.raced = true
		winner := *account
		winner.UserID = s.winnerID
		if err := s.MemoryStore.CreateAccount(ctx, &winner); err != nil {
			return err
		}
		return fmt.Errorf("create account: %w", core.ErrConflict)
	}
	return s.MemoryStore.CreateAccount(ctx, account)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceFixture struct {
	store   identity.Store
	adapter *identity.Adapter
	events  *recordingEmitter
	service *Service
}

func newServiceFixture(t *testing.T, store identity.Store) *serviceFixture {
	t.Helper()
	if store == nil {
		store = identity.NewMemoryStore()
	}

	events := &recordingEmitter{}
	adapter := identity.NewAdapter(store, events, identity.RoleUser, quietLogger())
	promoter := signin.NewPromoter(store, identity.RoleUser, quietLogger())
	slack := staticSlackProfiles{profile: &provider.SlackProfile{
		DisplayName: "ali",
		Image512:    "https://avatars.slack-edge.com/ali_512.png",
	}}
	policy := signin.NewPolicy(adapter, promoter, quietLogger(), signin.DefaultSyncers(slack)...)

	return &serviceFixture{
		store:   store,
		adapter: adapter,
		events:  events,
		service: NewService(adapter, policy, time.Hour, quietLogger()),
	}
}

func TestSignInCreatesUserAndSession(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	result, err := f.service.SignIn(ctx, identity.ProviderGoogle, &provider.Profile{
		ID:            "g-100",
		Name:          "Grace Hopper",
		Email:         "Grace@Example.com",
		EmailVerified: true,
	}, &oauth2.Token{AccessToken: "at", TokenType: "Bearer"})
	require.NoError(t, err)

	require.NotNil(t, result.User)
	require.NotNil(t, result.Session)
	assert.Equal(t, identity.RoleUser, result.User.RoleID)
	require.NotNil(t, result.User.Email)
	assert.Equal(t, "grace@example.com", *result.User.Email)
	assert.NotNil(t, result.User.EmailVerified)
	assert.NotEmpty(t, result.Session.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), result.Session.Expires, time.Minute)

	accounts, err := f.adapter.ListAccounts(ctx, result.User.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.NotNil(t, accounts[0].AccessToken)
	assert.Equal(t, "at", *accounts[0].AccessToken)
	assert.Equal(t, 0, f.events.count(), "only slack links notify")
}

func TestSignInReturningUserOpensNewSession(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()
	profile := &provider.Profile{ID: "gh-7", Name: "octo", Login: "octo"}

	first, err := f.service.SignIn(ctx, identity.ProviderGitHub, profile, nil)
	require.NoError(t, err)

	second, err := f.service.SignIn(ctx, identity.ProviderGitHub, profile, nil)
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.NotEqual(t, first.Session.Token, second.Session.Token)

	sessions, err := f.adapter.ListSessions(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestSignInSlackPromotesGuestByVerifiedEmail(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	guest, err := f.adapter.CreateUser(ctx, identity.NewUser{
		Name:   "Guest 4821",
		Email:  "ali@example.com",
		RoleID: identity.RoleGuest,
	})
	require.NoError(t, err)

	result, err := f.service.SignIn(ctx, identity.ProviderSlack, &provider.Profile{
		ID:            "U123",
		Email:         "ali@example.com",
		EmailVerified: true,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, guest.ID, result.User.ID)
	assert.Equal(t, identity.RoleUser, result.User.RoleID)
	assert.Equal(t, "ali", result.User.Name)
	assert.Equal(t, "https://avatars.slack-edge.com/ali_512.png", result.User.Image)
	assert.Equal(t, 1, f.events.count())

	changes, err := f.adapter.ListRoleChanges(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, signin.PromotionActor, changes[0].Actor)
}

func TestSignInUnverifiedEmailDoesNotLink(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	existing, err := f.adapter.CreateUser(ctx, identity.NewUser{
		Name:  "Owner",
		Email: "shared@example.com",
	})
	require.NoError(t, err)

	result, err := f.service.SignIn(ctx, identity.ProviderGitHub, &provider.Profile{
		ID:    "gh-9",
		Name:  "Stranger",
		Email: "shared@example.com",
	}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, existing.ID, result.User.ID)
	assert.Nil(t, result.User.Email)
	assert.Nil(t, result.User.EmailVerified)
}

func TestSignInRejectsBannedUser(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	banned, err := f.adapter.CreateUser(ctx, identity.NewUser{Name: "Mallory", RoleID: identity.RoleBanned})
	require.NoError(t, err)
	_, err = f.adapter.LinkAccount(ctx, &identity.Account{
		UserID:            banned.ID,
		Type:              provider.TypeOAuth,
		Provider:          identity.ProviderGoogle,
		ProviderAccountID: "g-banned",
	})
	require.NoError(t, err)

	result, err := f.service.SignIn(ctx, identity.ProviderGoogle, &provider.Profile{ID: "g-banned"}, nil)

	assert.Nil(t, result)
	assert.True(t, errors.Is(err, core.ErrUnauthorized))

	sessions, err := f.adapter.ListSessions(ctx, banned.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSignInConcurrentLinkResolvesToWinner(t *testing.T) {
	memory := identity.NewMemoryStore()
	seed := identity.NewAdapter(memory, nil, identity.RoleUser, quietLogger())
	winner, err := seed.CreateUser(context.Background(), identity.NewUser{Name: "Winner"})
	require.NoError(t, err)

	store := &racingStore{MemoryStore: memory, winnerID: winner.ID}
	f := newServiceFixture(t, store)
	ctx := context.Background()

	result, err := f.service.SignIn(ctx, identity.ProviderGoogle, &provider.Profile{
		ID:   "g-race",
		Name: "Loser",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, winner.ID, result.User.ID)

	_, total, err := f.adapter.ListUsers(ctx, identity.ListUsersParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "orphaned user is removed")
}

func TestLinkGuestAttachesUnlinkedAccount(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	guest, err := f.adapter.CreateUser(ctx, identity.NewUser{Name: "Player 7", RoleID: identity.RoleGuest})
	require.NoError(t, err)

	result, err := f.service.LinkGuest(ctx, guest, identity.ProviderGitHub, &provider.Profile{
		ID:    "gh-77",
		Login: "player7",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, guest.ID, result.User.ID)
	assert.Equal(t, identity.RoleUser, result.User.RoleID)

	owner, err := f.adapter.GetUserByAccount(ctx, identity.ProviderGitHub, "gh-77")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, guest.ID, owner.ID)
}

func TestLinkGuestMergesExistingOwner(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	guest, err := f.adapter.CreateUser(ctx, identity.NewUser{Name: "Player 8", RoleID: identity.RoleGuest})
	require.NoError(t, err)

	first, err := f.service.SignIn(ctx, identity.ProviderGitHub, &provider.Profile{
		ID:    "gh-88",
		Name:  "Octo",
		Email: "octo@example.com",
	}, nil)
	require.NoError(t, err)
	require.NotEqual(t, guest.ID, first.User.ID)

	result, err := f.service.LinkGuest(ctx, guest, identity.ProviderGitHub, &provider.Profile{
		ID:   "gh-88",
		Name: "Octo",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, guest.ID, result.User.ID)
	assert.Equal(t, identity.RoleUser, result.User.RoleID)

	owner, err := f.adapter.GetUserByAccount(ctx, identity.ProviderGitHub, "gh-88")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, guest.ID, owner.ID)

	gone, err := f.adapter.GetUser(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	sessions, err := f.adapter.ListSessions(ctx, guest.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2, "the duplicate's session moves with it")
}

func TestLinkGuestBannedOwnerIsRejected(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	guest, err := f.adapter.CreateUser(ctx, identity.NewUser{Name: "Player 9", RoleID: identity.RoleGuest})
	require.NoError(t, err)
	banned, err := f.adapter.CreateUser(ctx, identity.NewUser{Name: "Mallory", RoleID: identity.RoleBanned})
	require.NoError(t, err)
	_, err = f.adapter.LinkAccount(ctx, &identity.Account{
		UserID:            banned.ID,
		Type:              provider.TypeOAuth,
		Provider:          identity.ProviderGitHub,
		ProviderAccountID: "gh-banned",
	})
	require.NoError(t, err)

	result, err := f.service.LinkGuest(ctx, guest, identity.ProviderGitHub, &provider.Profile{ID: "gh-banned"}, nil)

	assert.Nil(t, result)
	assert.True(t, errors.Is(err, core.ErrUnauthorized))

	stored, err := f.adapter.GetUser(ctx, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleGuest, stored.RoleID)
}

func TestSignInRequiresProfile(t *testing.T) {
	f := newServiceFixture(t, nil)

	_, err := f.service.SignIn(context.Background(), identity.ProviderGoogle, &provider.Profile{}, nil)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	_, err = f.service.SignIn(context.Background(), identity.ProviderGoogle, nil, nil)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestSignInWithCredentials(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	admin, err := f.adapter.CreateUser(ctx, identity.NewUser{Name: "Admin", RoleID: identity.RoleAdmin})
	require.NoError(t, err)

	result, err := f.service.SignInWithCredentials(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, result.User.ID)
	assert.NotEmpty(t, result.Session.Token)

	_, err = f.service.SignInWithCredentials(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	assert.True(t, errors.Is(err, core.ErrUnauthorized))
}

func TestSignOutIsIdempotent(t *testing.T) {
	f := newServiceFixture(t, nil)
	ctx := context.Background()

	result, err := f.service.SignIn(ctx, identity.ProviderGitHub, &provider.Profile{ID: "gh-1", Name: "octo"}, nil)
	require.NoError(t, err)

	require.NoError(t, f.service.SignOut(ctx, result.Session.Token))
	require.NoError(t, f.service.SignOut(ctx, result.Session.Token))
	require.NoError(t, f.service.SignOut(ctx, ""))

	sessions, err := f.adapter.ListSessions(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestNewAccountCopiesTokenFields(t *testing.T) {
	expiry := time.Unix(1_900_000_000, 0)
	token := (&oauth2.Token{
		AccessToken:  "at",
		RefreshToken: "rt",
		TokenType:    "Bearer",
		Expiry:       expiry,
	}).WithExtra(map[string]any{"id_token": "idt", "scope": "openid email"})

	account := newAccount("u-1", identity.ProviderSlack, "U1", token)

	assert.Equal(t, "u-1", account.UserID)
	assert.Equal(t, provider.TypeOAuth, account.Type)
	require.NotNil(t, account.RefreshToken)
	assert.Equal(t, "rt", *account.RefreshToken)
	require.NotNil(t, account.ExpiresAt)
	assert.Equal(t, expiry.Unix(), *account.ExpiresAt)
	require.NotNil(t, account.IDToken)
	assert.Equal(t, "idt", *account.IDToken)
	require.NotNil(t, account.Scope)
	assert.Equal(t, "openid email", *account.Scope)

	bare := newAccount("u-1", identity.ProviderGitHub, "1", nil)
	assert.Nil(t, bare.AccessToken)
	assert.Nil(t, bare.ExpiresAt)
}
