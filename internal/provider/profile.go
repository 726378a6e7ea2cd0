// AngelaMos | 2026
// profile.go

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/oauth2"
)

// Profile is the normalized identity every source returns.
type Profile struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	EmailVerified bool           `json:"email_verified"`
	Image         string         `json:"image"`
	Login         string         `json:"login,omitempty"`
	Raw           map[string]any `json:"-"`
}

type Result struct {
	Profile Profile
	Token   *oauth2.Token
}

// Source is an external identity provider reached over an authorization
// code flow with PKCE. The same verifier is passed to both calls.
type Source interface {
	AuthCodeURL(state, verifier string) string
	Authenticate(ctx context.Context, code, verifier string) (*Result, error)
}

type ProfileMapper func(raw map[string]any) Profile

func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func boolField(raw map[string]any, key string) bool {
	v, _ := raw[key].(bool)
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func mapGoogleProfile(raw map[string]any) Profile {
	return Profile{
		ID:            stringField(raw, "sub"),
		Name:          stringField(raw, "name"),
		Email:         stringField(raw, "email"),
		EmailVerified: boolField(raw, "email_verified"),
		Image:         stringField(raw, "picture"),
		Raw:           raw,
	}
}

func mapGitHubProfile(raw map[string]any) Profile {
	return Profile{
		ID:    stringField(raw, "id"),
		Name:  stringField(raw, "name"),
		Email: stringField(raw, "email"),
		Image: stringField(raw, "avatar_url"),
		Login: stringField(raw, "login"),
		Raw:   raw,
	}
}

func mapSlackProfile(raw map[string]any) Profile {
	return Profile{
		ID:            firstNonEmpty(stringField(raw, "https://slack.com/user_id"), stringField(raw, "sub")),
		Name:          stringField(raw, "name"),
		Email:         stringField(raw, "email"),
		EmailVerified: boolField(raw, "email_verified"),
		Image:         stringField(raw, "picture"),
		Raw:           raw,
	}
}
