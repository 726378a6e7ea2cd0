// AngelaMos | 2026
// oauth.go

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/BfdCampos/workplay/internal/core"
)

const maxUserInfoBytes = 1 << 20

type OAuthConfig struct {
	ID          string
	Config      *oauth2.Config
	UserInfoURL string
	Map         ProfileMapper
	AuthParams  []oauth2.AuthCodeOption
	HTTPClient  *http.Client
}

// OAuthSource serves plain OAuth2 providers. It exchanges the code and
// reads the provider's user endpoint with the resulting access token.
type OAuthSource struct {
	id          string
	config      *oauth2.Config
	userInfoURL string
	mapProfile  ProfileMapper
	authParams  []oauth2.AuthCodeOption
	httpClient  *http.Client
}

func NewOAuthSource(cfg OAuthConfig) *OAuthSource {
	return &OAuthSource{
		id:          cfg.ID,
		config:      cfg.Config,
		userInfoURL: cfg.UserInfoURL,
		mapProfile:  cfg.Map,
		authParams:  cfg.AuthParams,
		httpClient:  cfg.HTTPClient,
	}
}

func (s *OAuthSource) AuthCodeURL(state, verifier string) string {
	return authCodeURL(s.config, state, verifier, s.authParams)
}

func (s *OAuthSource) Authenticate(ctx context.Context, code, verifier string) (*Result, error) {
	ctx = withHTTPClient(ctx, s.httpClient)

	token, err := exchange(ctx, s.id, s.config, code, verifier)
	if err != nil {
		return nil, err
	}

	raw, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	profile := s.mapProfile(raw)
	if profile.ID == "" {
		return nil, fmt.Errorf("%s userinfo missing subject: %w", s.id, core.ErrUpstream)
	}

	return &Result{Profile: profile, Token: token}, nil
}

func (s *OAuthSource) fetchUserInfo(
	ctx context.Context,
	token *oauth2.Token,
) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s userinfo request: %w", s.id, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s userinfo: %w: %w", s.id, core.ErrUpstream, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"%s userinfo status %d: %w",
			s.id,
			resp.StatusCode,
			core.ErrUpstream,
		)
	}

	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxUserInfoBytes))
	decoder.UseNumber()

	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%s userinfo decode: %w: %w", s.id, core.ErrUpstream, err)
	}

	return raw, nil
}

func authCodeURL(
	config *oauth2.Config,
	state, verifier string,
	params []oauth2.AuthCodeOption,
) string {
	opts := make([]oauth2.AuthCodeOption, 0, len(params)+1)
	opts = append(opts, params...)
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return config.AuthCodeURL(state, opts...)
}

func exchange(
	ctx context.Context,
	id string,
	config *oauth2.Config,
	code, verifier string,
) (*oauth2.Token, error) {
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := config.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s token exchange: %w: %w", id, core.ErrUpstream, err)
	}
	return token, nil
}

func withHTTPClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}
