// AngelaMos | 2026
// dto.go

package auth

import (
	"time"

	"github.com/BfdCampos/workplay/internal/identity"
	"github.com/BfdCampos/workplay/internal/provider"
	"github.com/BfdCampos/workplay/internal/user"
)

type ProviderResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	SignInURL string `json:"signinUrl"`
}

type CredentialsRequest struct {
	UserID      string `json:"userId"      validate:"required,min=1,max=64"`
	CallbackURL string `json:"callbackUrl" validate:"omitempty,max=2048"`
}

type SessionResponse struct {
	User    user.UserResponse `json:"user"`
	Expires time.Time         `json:"expires"`
}

type SignInResponse struct {
	User        user.UserResponse `json:"user"`
	Expires     time.Time         `json:"expires"`
	CallbackURL string            `json:"callbackUrl"`
}

func ToProviderResponse(d provider.Descriptor) ProviderResponse {
	return ProviderResponse{
		ID:        d.ID,
		Name:      d.Name,
		Type:      d.Type,
		SignInURL: signInPath + d.ID,
	}
}

func ToSessionResponse(s *identity.Session, u *identity.User) SessionResponse {
	return SessionResponse{
		User:    user.ToUserResponse(u),
		Expires: s.Expires,
	}
}

type DevSessionResponse struct {
	Token   string            `json:"token"`
	User    user.UserResponse `json:"user"`
	Expires time.Time         `json:"expires"`
}
