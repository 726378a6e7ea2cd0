// AngelaMos | 2026
// store.go

package identity

import (
	"context"
	"time"
)

// Store is the persistence port behind the adapter. Lookups that miss return
// core.ErrNotFound and unique violations return core.ErrConflict. Tokens are
// always passed in hashed form.
type Store interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, patch UserPatch) (*User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, params ListUsersParams) ([]User, int, error)
	CountUsersByRole(ctx context.Context) ([]RoleCount, error)

	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(
		ctx context.Context,
		provider, providerAccountID string,
	) (*Account, error)
	GetUserByAccount(
		ctx context.Context,
		provider, providerAccountID string,
	) (*User, error)
	DeleteAccount(ctx context.Context, provider, providerAccountID string) error
	DeleteAccountsByUser(ctx context.Context, userID string) (int64, error)
	ListAccountsByUser(ctx context.Context, userID string) ([]Account, error)

	CreateSession(ctx context.Context, session *Session) error
	GetSessionAndUser(ctx context.Context, tokenHash string) (*SessionAndUser, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(
		ctx context.Context,
		tokenHash string,
		expires time.Time,
	) (*Session, error)
	DeleteSessionByToken(ctx context.Context, tokenHash string) (int64, error)
	DeleteSessionByID(ctx context.Context, id string) (int64, error)
	DeleteSessionsByUser(ctx context.Context, userID string) (int64, error)
	DeleteAllSessions(ctx context.Context) (int64, error)
	ListSessionsByUser(ctx context.Context, userID string) ([]Session, error)
	CountActiveSessions(ctx context.Context, now time.Time) (int, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	CreateVerificationToken(ctx context.Context, token *VerificationToken) error
	ConsumeVerificationToken(
		ctx context.Context,
		identifier, tokenHash string,
	) (*VerificationToken, error)
	DeleteExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error)

	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id string) (*Role, error)
	SetUserRole(ctx context.Context, userID, roleID, actor string) (*User, error)
	ListRoleChanges(ctx context.Context, userID string) ([]RoleChange, error)

	// ReassignUserData moves every row owned by from onto to. The from user
	// itself is left in place for the caller to delete.
	ReassignUserData(ctx context.Context, from, to string) error

	// InTx runs fn against a Store bound to one transaction. Nested calls
	// join the outer transaction.
	InTx(ctx context.Context, fn func(Store) error) error
}
