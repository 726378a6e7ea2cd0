// AngelaMos | 2026
// profile.go

package signin

import (
	"context"
	"fmt"
	"strings"

	"github.com/BfdCampos/workplay/internal/identity"
	"github.com/BfdCampos/workplay/internal/provider"
)

// ProfileSyncer derives a user patch from what a provider reports at sign
// in. A nil patch means nothing to change.
type ProfileSyncer interface {
	Provider() string
	Patch(ctx context.Context, attempt *Attempt) (*identity.UserPatch, error)
}

// DefaultSyncers returns the google and github syncers, plus slack when a
// profile source is available.
func DefaultSyncers(slack provider.SlackProfileSource) []ProfileSyncer {
	syncers := []ProfileSyncer{GoogleSyncer{}, GitHubSyncer{}}
	if slack != nil {
		syncers = append(syncers, SlackSyncer{Profiles: slack})
	}
	return syncers
}

type GoogleSyncer struct{}

func (GoogleSyncer) Provider() string { return identity.ProviderGoogle }

func (GoogleSyncer) Patch(_ context.Context, a *Attempt) (*identity.UserPatch, error) {
	if a.Profile == nil {
		return nil, nil
	}

	email := firstNonEmpty(a.Profile.Email, a.User.EmailAddress())
	patch := &identity.UserPatch{ID: a.User.ID}
	setIfPresent(&patch.Name, firstNonEmpty(a.Profile.Name, emailLocalPart(email)))
	setIfPresent(&patch.Image, a.Profile.Image)
	setIfPresent(&patch.Email, a.Profile.Email)
	return patch, nil
}

type GitHubSyncer struct{}

func (GitHubSyncer) Provider() string { return identity.ProviderGitHub }

func (GitHubSyncer) Patch(_ context.Context, a *Attempt) (*identity.UserPatch, error) {
	if a.Profile == nil {
		return nil, nil
	}

	email := firstNonEmpty(a.Profile.Email, a.User.EmailAddress())
	patch := &identity.UserPatch{ID: a.User.ID}
	setIfPresent(&patch.Name, firstNonEmpty(a.Profile.Name, a.Profile.Login, emailLocalPart(email)))
	setIfPresent(&patch.Image, a.Profile.Image)
	setIfPresent(&patch.Email, a.Profile.Email)
	return patch, nil
}

// SlackSyncer reads the workspace profile rather than the OIDC claims, so
// names follow the member's Slack display name.
type SlackSyncer struct {
	Profiles provider.SlackProfileSource
}

func (SlackSyncer) Provider() string { return identity.ProviderSlack }

func (s SlackSyncer) Patch(ctx context.Context, a *Attempt) (*identity.UserPatch, error) {
	if a.Account == nil {
		return nil, nil
	}

	profile, err := s.Profiles.UserProfile(ctx, a.Account.ProviderAccountID)
	if err != nil {
		return nil, fmt.Errorf("slack profile: %w", err)
	}

	patch := &identity.UserPatch{ID: a.User.ID}
	setIfPresent(&patch.Name, firstNonEmpty(profile.DisplayName, profile.RealName))
	setIfPresent(&patch.Image, profile.Image512)
	return patch, nil
}

func setIfPresent(field **string, value string) {
	if value != "" {
		*field = &value
	}
}

func isEmptyPatch(p *identity.UserPatch) bool {
	return p == nil ||
		(p.Name == nil && p.Email == nil && p.Image == nil && p.EmailVerified == nil)
}

func emailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
