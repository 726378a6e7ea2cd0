// AngelaMos | 2026
// oauth_test.go

package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/BfdCampos/workplay/internal/core"
)

const testVerifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

func newTestOAuthServer(t *testing.T, userInfo string, userInfoStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" || r.Form.Get("code_verifier") != testVerifier {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(userInfoStatus)
		_, _ = w.Write([]byte(userInfo))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSource(srv *httptest.Server, mapper ProfileMapper) *OAuthSource {
	return NewOAuthSource(OAuthConfig{
		ID: "github",
		Config: &oauth2.Config{
			ClientID:     "cid",
			ClientSecret: "csecret",
			Endpoint: oauth2.Endpoint{
				AuthURL:   srv.URL + "/authorize",
				TokenURL:  srv.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		UserInfoURL: srv.URL + "/userinfo",
		Map:         mapper,
		HTTPClient:  srv.Client(),
	})
}

func TestAuthenticateMapsGitHubProfile(t *testing.T) {
	srv := newTestOAuthServer(t,
		`{"id":583231,"login":"octocat","name":"","email":"octo@example.com","avatar_url":"https://avatars/1"}`,
		http.StatusOK)
	source := newTestSource(srv, mapGitHubProfile)

	result, err := source.Authenticate(context.Background(), "good-code", testVerifier)

	require.NoError(t, err)
	assert.Equal(t, "583231", result.Profile.ID)
	assert.Equal(t, "octocat", result.Profile.Login)
	assert.Equal(t, "octo@example.com", result.Profile.Email)
	assert.Equal(t, "https://avatars/1", result.Profile.Image)
	assert.Equal(t, "at-1", result.Token.AccessToken)
}

func TestAuthenticateBadCodeIsUpstreamError(t *testing.T) {
	srv := newTestOAuthServer(t, `{}`, http.StatusOK)
	source := newTestSource(srv, mapGitHubProfile)

	_, err := source.Authenticate(context.Background(), "bad-code", testVerifier)

	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUpstream))
}

func TestAuthenticateUserInfoFailure(t *testing.T) {
	srv := newTestOAuthServer(t, `{}`, http.StatusInternalServerError)
	source := newTestSource(srv, mapGitHubProfile)

	_, err := source.Authenticate(context.Background(), "good-code", testVerifier)

	assert.True(t, errors.Is(err, core.ErrUpstream))
}

func TestAuthenticateMissingSubject(t *testing.T) {
	srv := newTestOAuthServer(t, `{"name":"nobody"}`, http.StatusOK)
	source := newTestSource(srv, mapGoogleProfile)

	_, err := source.Authenticate(context.Background(), "good-code", testVerifier)

	assert.True(t, errors.Is(err, core.ErrUpstream))
}

func TestAuthenticateWrongVerifierIsRejected(t *testing.T) {
	srv := newTestOAuthServer(t, `{"id":1}`, http.StatusOK)
	source := newTestSource(srv, mapGitHubProfile)

	_, err := source.Authenticate(context.Background(), "good-code", "some-other-verifier")

	assert.True(t, errors.Is(err, core.ErrUpstream))
}

func TestProfileMappers(t *testing.T) {
	tests := []struct {
		name   string
		mapper ProfileMapper
		raw    map[string]any
		want   Profile
	}{
		{
			name:   "google",
			mapper: mapGoogleProfile,
			raw: map[string]any{
				"sub": "g-1", "name": "Alice", "email": "alice@example.com",
				"email_verified": true, "picture": "https://img/a",
			},
			want: Profile{
				ID: "g-1", Name: "Alice", Email: "alice@example.com",
				EmailVerified: true, Image: "https://img/a",
			},
		},
		{
			name:   "slack prefers workspace user id",
			mapper: mapSlackProfile,
			raw: map[string]any{
				"sub": "U999", "https://slack.com/user_id": "U123", "name": "Gus",
			},
			want: Profile{ID: "U123", Name: "Gus"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.mapper(tt.raw)
			got.Raw = nil
			assert.Equal(t, tt.want, got)
		})
	}
}
