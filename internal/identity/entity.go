// AngelaMos | 2026
// entity.go

package identity

import (
	"fmt"
	"strings"
	"time"
)

const (
	RoleBanned = "banned"
	RoleGuest  = "guest"
	RoleUser   = "user"
	RoleAdmin  = "admin"
)

const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
	ProviderGitHub      = "github"
	ProviderSlack       = "slack"
)

type User struct {
	ID            string     `db:"id"`
	Name          string     `db:"name"`
	Email         *string    `db:"email"`
	EmailVerified *time.Time `db:"email_verified"`
	Image         string     `db:"image"`
	RoleID        string     `db:"role_id"`
	Dashboard     bool       `db:"dashboard"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func (u *User) IsBanned() bool {
	return u.RoleID == RoleBanned
}

func (u *User) IsGuest() bool {
	return u.RoleID == RoleGuest
}

// CanViewDashboard reports whether the user's role grants access to the
// admin surface.
func (u *User) CanViewDashboard() bool {
	return u.Dashboard
}

func (u *User) EmailAddress() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

type Account struct {
	ID                string    `db:"id"`
	UserID            string    `db:"user_id"`
	Type              string    `db:"type"`
	Provider          string    `db:"provider"`
	ProviderAccountID string    `db:"provider_account_id"`
	RefreshToken      *string   `db:"refresh_token"`
	AccessToken       *string   `db:"access_token"`
	ExpiresAt         *int64    `db:"expires_at"`
	TokenType         *string   `db:"token_type"`
	Scope             *string   `db:"scope"`
	IDToken           *string   `db:"id_token"`
	SessionState      *string   `db:"session_state"`
	CreatedAt         time.Time `db:"created_at"`
}

// Session.Token holds the raw token only on the value returned by
// CreateSession. Storage never sees it.
type Session struct {
	ID        string    `db:"id"`
	Token     string    `db:"-"`
	TokenHash string    `db:"session_token_hash"`
	UserID    string    `db:"user_id"`
	Expires   time.Time `db:"expires"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.Expires)
}

type SessionAndUser struct {
	Session Session
	User    User
}

type VerificationToken struct {
	Identifier string    `db:"identifier"`
	Token      string    `db:"-"`
	TokenHash  string    `db:"token_hash"`
	Expires    time.Time `db:"expires"`
}

func (t *VerificationToken) IsExpired(now time.Time) bool {
	return !now.Before(t.Expires)
}

type Role struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Dashboard bool   `db:"dashboard"`
}

type RoleChange struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	FromRole  string    `db:"from_role"`
	ToRole    string    `db:"to_role"`
	Actor     string    `db:"actor"`
	CreatedAt time.Time `db:"created_at"`
}

// ReassignTarget names an ownership column outside the identity tables that
// follows a user when a duplicate identity is merged away.
type ReassignTarget struct {
	Table  string
	Column string
}

func ParseReassignTargets(entries []string) ([]ReassignTarget, error) {
	targets := make([]ReassignTarget, 0, len(entries))
	for _, entry := range entries {
		table, column, ok := strings.Cut(entry, ".")
		if !ok || table == "" || column == "" || strings.Contains(column, ".") {
			return nil, fmt.Errorf("reassign target %q: must be table.column", entry)
		}
		targets = append(targets, ReassignTarget{Table: table, Column: column})
	}
	return targets, nil
}

// DefaultRoles is the seed set shared by the migrations and the memory
// store.
func DefaultRoles() []Role {
	return []Role{
		{ID: RoleBanned, Name: "Banned"},
		{ID: RoleGuest, Name: "Guest"},
		{ID: RoleUser, Name: "User"},
		{ID: RoleAdmin, Name: "Admin", Dashboard: true},
	}
}

// NormalizeEmail lower-cases and trims an address. Empty input maps to nil
// so that unset emails never collide on the unique index.
func NormalizeEmail(email string) *string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	return &email
}
