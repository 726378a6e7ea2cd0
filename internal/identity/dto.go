// AngelaMos | 2026
// dto.go

package identity

import (
	"time"
)

type NewUser struct {
	Name          string
	Email         string
	EmailVerified *time.Time
	Image         string
	RoleID        string
}

// UserPatch is a partial update: nil fields are left untouched.
type UserPatch struct {
	ID            string
	Name          *string
	Email         *string
	EmailVerified *time.Time
	Image         *string
}

type NewSession struct {
	UserID  string
	Token   string
	Expires time.Time
}

type SessionUpdate struct {
	Token   string
	Expires time.Time
}

type NewVerificationToken struct {
	Identifier string
	Token      string
	Expires    time.Time
}

type RoleCount struct {
	RoleID string `db:"role_id"`
	Count  int    `db:"count"`
}

type ListUsersParams struct {
	Page     int
	PageSize int
	Search   string
	Role     string
}

func (p *ListUsersParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
}

func (p *ListUsersParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// AccountLinkedEvent is published after a new slack account is stored.
type AccountLinkedEvent struct {
	Provider          string
	ProviderAccountID string
	UserID            string
	Name              string
	Image             string
}
