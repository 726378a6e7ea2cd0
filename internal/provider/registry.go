// AngelaMos | 2026
// registry.go

package provider

import (
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/BfdCampos/workplay/internal/identity"
)

const (
	TypeOAuth       = "oauth"
	TypeCredentials = "credentials"

	callbackPath = "/v1/auth/callback/"
)

var (
	googleEndpoints = OIDCEndpoints{
		Issuer:      "https://accounts.google.com",
		AuthURL:     google.Endpoint.AuthURL,
		TokenURL:    google.Endpoint.TokenURL,
		UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		JWKSURL:     "https://www.googleapis.com/oauth2/v3/certs",
	}

	slackEndpoints = OIDCEndpoints{
		Issuer:      "https://slack.com",
		AuthURL:     "https://slack.com/openid/connect/authorize",
		TokenURL:    "https://slack.com/api/openid.connect.token",
		UserInfoURL: "https://slack.com/api/openid.connect.userInfo",
		JWKSURL:     "https://slack.com/openid/connect/keys",
	}
)

type Descriptor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Source Source `json:"-"`
}

type Options struct {
	Production bool
	BaseURL    string
	HTTPClient *http.Client
}

// Registry is the static provider list built once at startup.
type Registry struct {
	order        []string
	descriptors  map[string]Descriptor
	slackProfile SlackProfileSource
}

func NewRegistry(e Env, opts Options) *Registry {
	r := &Registry{descriptors: make(map[string]Descriptor)}
	baseURL := strings.TrimRight(opts.BaseURL, "/")

	if !opts.Production {
		r.add(Descriptor{
			ID:   identity.ProviderCredentials,
			Name: "Admin Sign in",
			Type: TypeCredentials,
		})
	}

	if e.GoogleClientID != "" && e.GoogleClientSecret != "" {
		r.add(Descriptor{
			ID:   identity.ProviderGoogle,
			Name: "Google",
			Type: TypeOAuth,
			Source: NewOIDCSource(OIDCConfig{
				ID:           identity.ProviderGoogle,
				ClientID:     e.GoogleClientID,
				ClientSecret: e.GoogleClientSecret,
				RedirectURL:  baseURL + callbackPath + identity.ProviderGoogle,
				Endpoints:    googleEndpoints,
				Map:          mapGoogleProfile,
				AuthParams: []oauth2.AuthCodeOption{
					oauth2.AccessTypeOnline,
					oauth2.SetAuthURLParam("prompt", "select_account"),
				},
				HTTPClient: opts.HTTPClient,
			}),
		})
	}

	if e.SlackClientID != "" && e.SlackClientSecret != "" {
		r.add(Descriptor{
			ID:   identity.ProviderSlack,
			Name: "Slack",
			Type: TypeOAuth,
			Source: NewOIDCSource(OIDCConfig{
				ID:           identity.ProviderSlack,
				ClientID:     e.SlackClientID,
				ClientSecret: e.SlackClientSecret,
				RedirectURL:  baseURL + callbackPath + identity.ProviderSlack,
				Endpoints:    slackEndpoints,
				Map:          mapSlackProfile,
				HTTPClient:   opts.HTTPClient,
			}),
		})
	}

	if e.GitHubClientID != "" && e.GitHubClientSecret != "" {
		r.add(Descriptor{
			ID:   identity.ProviderGitHub,
			Name: "GitHub",
			Type: TypeOAuth,
			Source: NewOAuthSource(OAuthConfig{
				ID: identity.ProviderGitHub,
				Config: &oauth2.Config{
					ClientID:     e.GitHubClientID,
					ClientSecret: e.GitHubClientSecret,
					RedirectURL:  baseURL + callbackPath + identity.ProviderGitHub,
					Endpoint:     github.Endpoint,
					Scopes:       []string{"read:user", "user:email"},
				},
				UserInfoURL: "https://api.github.com/user",
				Map:         mapGitHubProfile,
				HTTPClient:  opts.HTTPClient,
			}),
		})
	}

	if e.SlackBotToken != "" {
		r.slackProfile = NewSlackClient(e.SlackBotToken, e.SlackAPIURL, opts.HTTPClient)
	}

	return r
}

func (r *Registry) add(d Descriptor) {
	r.order = append(r.order, d.ID)
	r.descriptors[d.ID] = d
}

// Register adds or replaces a descriptor.
func (r *Registry) Register(d Descriptor) {
	if _, exists := r.descriptors[d.ID]; !exists {
		r.order = append(r.order, d.ID)
	}
	r.descriptors[d.ID] = d
}

func (r *Registry) Get(id string) (Descriptor, bool) {
	d, ok := r.descriptors[id]
	return d, ok
}

func (r *Registry) CredentialsEnabled() bool {
	_, ok := r.descriptors[identity.ProviderCredentials]
	return ok
}

// List returns the public sign-in options, google first, without the
// credentials provider.
func (r *Registry) List() []Descriptor {
	list := make([]Descriptor, 0, len(r.order))
	if d, ok := r.descriptors[identity.ProviderGoogle]; ok {
		list = append(list, d)
	}
	for _, id := range r.order {
		if id == identity.ProviderGoogle || id == identity.ProviderCredentials {
			continue
		}
		list = append(list, r.descriptors[id])
	}
	return list
}

// SlackProfiles is nil when no bot token is configured.
func (r *Registry) SlackProfiles() SlackProfileSource {
	return r.slackProfile
}

func (r *Registry) SetSlackProfiles(source SlackProfileSource) {
	r.slackProfile = source
}
