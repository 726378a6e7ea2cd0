// AngelaMos | 2026
// dto.go

package user

import (
	"time"

	"github.com/BfdCampos/workplay/internal/identity"
)

type UpdateUserRequest struct {
	Name  *string `json:"name,omitempty"  validate:"omitempty,min=1,max=100"`
	Image *string `json:"image,omitempty" validate:"omitempty,url,max=2048"`
}

type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,min=1,max=64"`
}

type UserResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         *string    `json:"email"`
	EmailVerified *time.Time `json:"emailVerified"`
	Image         string     `json:"image"`
	Role          string     `json:"roleId"`
	Dashboard     bool       `json:"dashboard"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type SessionResponse struct {
	ID        string    `json:"id"`
	Expires   time.Time `json:"expires"`
	CreatedAt time.Time `json:"createdAt"`
	Current   bool      `json:"current"`
}

type AccountResponse struct {
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"providerAccountId"`
	Type              string    `json:"type"`
	CreatedAt         time.Time `json:"createdAt"`
}

type RoleChangeResponse struct {
	FromRole  string    `json:"fromRole"`
	ToRole    string    `json:"toRole"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserDetailResponse struct {
	User        UserResponse         `json:"user"`
	Sessions    []SessionResponse    `json:"sessions"`
	Accounts    []AccountResponse    `json:"accounts"`
	RoleChanges []RoleChangeResponse `json:"roleChanges"`
}

// UserDetail is everything the dashboard shows for one user.
type UserDetail struct {
	User        *identity.User
	Sessions    []identity.Session
	Accounts    []identity.Account
	RoleChanges []identity.RoleChange
}

func ToUserResponse(u *identity.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Image:         u.Image,
		Role:          u.RoleID,
		Dashboard:     u.Dashboard,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func ToUserResponseList(users []identity.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, ToUserResponse(&users[i]))
	}
	return responses
}

// ToUserDetailResponse marks currentSessionID so the dashboard can hide the
// revoke button on the viewer's own session.
func ToUserDetailResponse(d *UserDetail, currentSessionID string) UserDetailResponse {
	resp := UserDetailResponse{
		User:        ToUserResponse(d.User),
		Sessions:    make([]SessionResponse, 0, len(d.Sessions)),
		Accounts:    make([]AccountResponse, 0, len(d.Accounts)),
		RoleChanges: make([]RoleChangeResponse, 0, len(d.RoleChanges)),
	}
	for _, s := range d.Sessions {
		resp.Sessions = append(resp.Sessions, SessionResponse{
			ID:        s.ID,
			Expires:   s.Expires,
			CreatedAt: s.CreatedAt,
			Current:   s.ID == currentSessionID,
		})
	}
	for _, a := range d.Accounts {
		resp.Accounts = append(resp.Accounts, AccountResponse{
			Provider:          a.Provider,
			ProviderAccountID: a.ProviderAccountID,
			Type:              a.Type,
			CreatedAt:         a.CreatedAt,
		})
	}
	for _, c := range d.RoleChanges {
		resp.RoleChanges = append(resp.RoleChanges, RoleChangeResponse{
			FromRole:  c.FromRole,
			ToRole:    c.ToRole,
			Actor:     c.Actor,
			CreatedAt: c.CreatedAt,
		})
	}
	return resp
}
