// AngelaMos | 2026
// oidc.go

package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/BfdCampos/workplay/internal/core"
)

// OIDCEndpoints is the subset of a provider's discovery document the source
// needs. It is configured statically so startup never waits on the provider.
type OIDCEndpoints struct {
	Issuer      string
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	JWKSURL     string
}

type OIDCConfig struct {
	ID           string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoints    OIDCEndpoints
	Map          ProfileMapper
	AuthParams   []oauth2.AuthCodeOption
	HTTPClient   *http.Client
}

// OIDCSource signs users in with OpenID Connect. The profile comes from the
// verified ID token returned by the code exchange.
type OIDCSource struct {
	id         string
	config     *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	mapProfile ProfileMapper
	authParams []oauth2.AuthCodeOption
	httpClient *http.Client
}

func NewOIDCSource(cfg OIDCConfig) *OIDCSource {
	keyCtx := context.Background()
	if cfg.HTTPClient != nil {
		keyCtx = oidc.ClientContext(keyCtx, cfg.HTTPClient)
	}

	providerCfg := &oidc.ProviderConfig{
		IssuerURL:   cfg.Endpoints.Issuer,
		AuthURL:     cfg.Endpoints.AuthURL,
		TokenURL:    cfg.Endpoints.TokenURL,
		UserInfoURL: cfg.Endpoints.UserInfoURL,
		JWKSURL:     cfg.Endpoints.JWKSURL,
		Algorithms:  []string{oidc.RS256},
	}
	oidcProvider := providerCfg.NewProvider(keyCtx)

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	return &OIDCSource{
		id: cfg.ID,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       scopes,
		},
		verifier:   oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		mapProfile: cfg.Map,
		authParams: cfg.AuthParams,
		httpClient: cfg.HTTPClient,
	}
}

func (s *OIDCSource) AuthCodeURL(state, verifier string) string {
	return authCodeURL(s.config, state, verifier, s.authParams)
}

func (s *OIDCSource) Authenticate(ctx context.Context, code, verifier string) (*Result, error) {
	ctx = withHTTPClient(ctx, s.httpClient)

	token, err := exchange(ctx, s.id, s.config, code, verifier)
	if err != nil {
		return nil, err
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%s did not return an id_token: %w", s.id, core.ErrUpstream)
	}

	idToken, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%s id_token verification: %w: %w", s.id, core.ErrUpstream, err)
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s id_token claims: %w: %w", s.id, core.ErrUpstream, err)
	}

	profile := s.mapProfile(claims)
	if profile.ID == "" {
		return nil, fmt.Errorf("%s id_token missing subject: %w", s.id, core.ErrUpstream)
	}

	return &Result{Profile: profile, Token: token}, nil
}
