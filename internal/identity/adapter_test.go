// AngelaMos | 2026
// adapter_test.go

package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BfdCampos/workplay/internal/core"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []AccountLinkedEvent
}

func (r *recordingEmitter) EmitAccountLinked(_ context.Context, event AccountLinkedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) Events() []AccountLinkedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AccountLinkedEvent(nil), r.events...)
}

func newTestAdapter(t *testing.T) (*Adapter, *MemoryStore, *recordingEmitter) {
	t.Helper()
	store := NewMemoryStore()
	emitter := &recordingEmitter{}
	return NewAdapter(store, emitter, RoleUser, nil), store, emitter
}

func mustCreateUser(t *testing.T, a *Adapter, in NewUser) *User {
	t.Helper()
	user, err := a.CreateUser(context.Background(), in)
	require.NoError(t, err)
	return user
}

func TestCreateUserAppliesDefaultRoleAndNormalizesEmail(t *testing.T) {
	a, _, _ := newTestAdapter(t)

	user := mustCreateUser(t, a, NewUser{Name: "Alice", Email: "  Alice@Example.COM "})

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, RoleUser, user.RoleID)
	assert.Equal(t, "alice@example.com", user.EmailAddress())

	found, err := a.GetUserByEmail(context.Background(), "ALICE@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
}

func TestCreateUserEmailConflict(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	mustCreateUser(t, a, NewUser{Name: "Alice", Email: "alice@example.com"})

	_, err := a.CreateUser(context.Background(), NewUser{Name: "Other", Email: "ALICE@example.com"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConflict))
}

func TestCreateUserWithoutEmailNeverConflicts(t *testing.T) {
	a, _, _ := newTestAdapter(t)

	mustCreateUser(t, a, NewUser{Name: "Guest One", RoleID: RoleGuest})
	mustCreateUser(t, a, NewUser{Name: "Guest Two", RoleID: RoleGuest})
}

func TestLookupMissesAreTyped(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	ctx := context.Background()

	user, err := a.GetUser(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, user)

	user, err = a.GetUserByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, user)

	user, err = a.GetUserByAccount(ctx, ProviderGoogle, "nope")
	assert.NoError(t, err)
	assert.Nil(t, user)

	su, err := a.GetSessionAndUser(ctx, "unknown-token")
	assert.NoError(t, err)
	assert.Nil(t, su)
}

func TestUpdateUserUnknownIDIsNotFound(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	name := "ghost"

	_, err := a.UpdateUser(context.Background(), UserPatch{ID: "missing", Name: &name})

	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestUpdateUserPartialPatch(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	user := mustCreateUser(t, a, NewUser{Name: "Alice", Email: "alice@example.com", Image: "a.png"})
	name := "Alice B"

	updated, err := a.UpdateUser(context.Background(), UserPatch{ID: user.ID, Name: &name})

	require.NoError(t, err)
	assert.Equal(t, "Alice B", updated.Name)
	assert.Equal(t, "a.png", updated.Image)
	assert.Equal(t, "alice@example.com", updated.EmailAddress())
}

func TestConcurrentLinkCreatesExactlyOneAccount(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	user := mustCreateUser(t, a, NewUser{Name: "Alice"})

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.LinkAccount(context.Background(), &Account{
				UserID:            user.ID,
				Type:              "oauth",
				Provider:          ProviderGoogle,
				ProviderAccountID: "g-1",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, core.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	accounts, err := a.ListAccounts(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestLinkSlackAccountEmitsOnce(t *testing.T) {
	a, _, emitter := newTestAdapter(t)
	user := mustCreateUser(t, a, NewUser{Name: "Gus", Image: "gus.png", RoleID: RoleGuest})

	_, err := a.LinkAccount(context.Background(), &Account{
		UserID:            user.ID,
		Type:              "oauth",
		Provider:          ProviderSlack,
		ProviderAccountID: "U123",
	})
	require.NoError(t, err)

	events := emitter.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "U123", events[0].ProviderAccountID)
	assert.Equal(t, "Gus", events[0].Name)
	assert.Equal(t, "gus.png", events[0].Image)
}

func TestLinkNonSlackAccountDoesNotEmit(t *testing.T) {
	a, _, emitter := newTestAdapter(t)
	user := mustCreateUser(t, a, NewUser{Name: "Alice"})

	_, err := a.LinkAccount(context.Background(), &Account{
		UserID:            user.ID,
		Type:              "oauth",
		Provider:          ProviderGoogle,
		ProviderAccountID: "g-1",
	})
	require.NoError(t, err)

	assert.Empty(t, emitter.Events())
}

func TestFailedLinkDoesNotEmit(t *testing.T) {
	a, _, emitter := newTestAdapter(t)
	user := mustCreateUser(t, a, NewUser{Name: "Alice"})
	account := Account{UserID: user.ID, Type: "oauth", Provider: ProviderSlack, ProviderAccountID: "U1"}

	first := account
	_, err := a.LinkAccount(context.Background(), &first)
	require.NoError(t, err)
	second := account
	_, err = a.LinkAccount(context.Background(), &second)
	require.True(t, errors.Is(err, core.ErrConflict))

	assert.Len(t, emitter.Events(), 1)
}

func TestUnlinkAccount(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	ctx := context.Background()
	user := mustCreateUser(t, a, NewUser{Name: "Alice"})
	_, err := a.LinkAccount(ctx, &Account{UserID: user.ID, Type: "oauth", Provider: ProviderGitHub, ProviderAccountID: "42"})
	require.NoError(t, err)

	require.NoError(t, a.UnlinkAccount(ctx, ProviderGitHub, "42"))

	err = a.UnlinkAccount(ctx, ProviderGitHub, "42")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestSessionLifecycle(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	ctx := context.Background()
	user := mustCreateUser(t, a, NewUser{Name: "Alice"})
	expires := time.Now().Add(time.Hour).UTC()

	session, err := a.CreateSession(ctx, NewSession{UserID: user.ID, Expires: expires})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, core.HashToken(session.Token), session.TokenHash)

	su, err := a.GetSessionAndUser(ctx, session.Token)
	require.NoError(t, err)
	require.NotNil(t, su)
	assert.Equal(t, user.ID, su.User.ID)
	assert.Equal(t, session.ID, su.Session.ID)

	later := expires.Add(time.Hour)
	updated, err := a.UpdateSession(ctx, SessionUpdate{Token: session.Token, Expires: later})
	require.NoError(t, err)
	assert.True(t, updated.Expires.Equal(later))

	require.NoError(t, a.DeleteSession(ctx, session.Token))
	su, err = a.GetSessionAndUser(ctx, session.Token)
	require.NoError(t, err)
	assert.Nil(t, su)
}

func TestDeleteSessionUnknownTokenIsNoop(t *testing.T) {
	a, _, _ := newTestAdapter(t)

	assert.NoError(t, a.DeleteSession(context.Background(), "never-issued"))
	assert.NoError(t, a.DeleteSession(context.Background(), ""))
}

func TestDeleteUserCascades(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	ctx := context.Background()
	user := mustCreateUser(t, a, NewUser{Name: "Alice", Email: "alice@example.com"})
	_, err := a.LinkAccount(ctx, &Account{UserID: user.ID, Type: "oauth", Provider: ProviderGoogle, ProviderAccountID: "g-1"})
	require.NoError(t, err)
	session, err := a.CreateSession(ctx, NewSession{UserID: user.ID, Expires: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	require.NoError(t, a.DeleteUser(ctx, user.ID))

	got, err := a.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = a.GetUserByAccount(ctx, ProviderGoogle, "g-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	su, err := a.GetSessionAndUser(ctx, session.Token)
	require.NoError(t, err)
	assert.Nil(t, su)

	// the email is free again
	mustCreateUser(t, a, NewUser{Name: "Alice again", Email: "alice@example.com"})
}

func TestDeleteUserUnknownIsNotFound(t *testing.T) {
	a, _, _ := newTestAdapter(t)

	err := a.DeleteUser(context.Background(), "missing")

	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestUseVerificationTokenExactlyOnce(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	ctx := context.Background()
	_, err := a.CreateVerificationToken(ctx, NewVerificationToken{
		Identifier: "alice@x.com",
		Token:      "tok-1",
		Expires:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	first, err := a.UseVerificationToken(ctx, "alice@x.com", "tok-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "tok-1", first.Token)

	second, err := a.UseVerificationToken(ctx, "alice@x.com", "tok-1")
	assert.NoError(t, err)
	assert.Nil(t, second)
}

func TestUseVerificationTokenConcurrentConsumers(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	ctx := context.Background()
	_, err := a.CreateVerificationToken(ctx, NewVerificationToken{
		Identifier: "bob@x.com",
		Token:      "tok-2",
		Expires:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		hits     int
		failures int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vt, err := a.UseVerificationToken(ctx, "bob@x.com", "tok-2")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
			}
			if vt != nil {
				hits++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, hits)
	assert.Zero(t, failures)
}

func TestUseVerificationTokenReturnsExpiredToken(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	ctx := context.Background()
	_, err := a.CreateVerificationToken(ctx, NewVerificationToken{
		Identifier: "carol@x.com",
		Token:      "stale",
		Expires:    time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	vt, err := a.UseVerificationToken(ctx, "carol@x.com", "stale")
	require.NoError(t, err)
	require.NotNil(t, vt)
	assert.True(t, vt.IsExpired(time.Now()))

	vt, err = a.UseVerificationToken(ctx, "carol@x.com", "stale")
	require.NoError(t, err)
	assert.Nil(t, vt)
}

func TestSetUserRoleIsAudited(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	ctx := context.Background()
	user := mustCreateUser(t, a, NewUser{Name: "Alice"})

	updated, err := a.SetUserRole(ctx, "admin-1", user.ID, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, updated.RoleID)
	assert.True(t, updated.CanViewDashboard())

	_, err = a.SetUserRole(ctx, "admin-1", user.ID, RoleAdmin)
	require.NoError(t, err)

	changes, err := a.ListRoleChanges(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, RoleUser, changes[0].FromRole)
	assert.Equal(t, RoleAdmin, changes[0].ToRole)
	assert.Equal(t, "admin-1", changes[0].Actor)
}

func TestSetUserRoleUnknownRole(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	user := mustCreateUser(t, a, NewUser{Name: "Alice"})

	_, err := a.SetUserRole(context.Background(), "admin-1", user.ID, "superuser")

	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestStats(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	ctx := context.Background()
	alice := mustCreateUser(t, a, NewUser{Name: "Alice"})
	mustCreateUser(t, a, NewUser{Name: "Gus", RoleID: RoleGuest})
	_, err := a.CreateSession(ctx, NewSession{UserID: alice.ID, Expires: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	_, err = a.CreateSession(ctx, NewSession{UserID: alice.ID, Expires: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	stats, err := a.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.ElementsMatch(t, []RoleCount{
		{RoleID: RoleGuest, Count: 1},
		{RoleID: RoleUser, Count: 1},
	}, stats.UsersByRole)
}
