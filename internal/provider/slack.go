// AngelaMos | 2026
// slack.go

package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"github.com/BfdCampos/workplay/internal/core"
)

type SlackProfile struct {
	DisplayName string
	RealName    string
	Image512    string
}

// SlackProfileSource looks up a workspace member's profile by Slack user id.
type SlackProfileSource interface {
	UserProfile(ctx context.Context, slackUserID string) (*SlackProfile, error)
}

// SlackClient reads member profiles through the Web API users.info method
// with a bot token.
type SlackClient struct {
	api *slack.Client
}

func NewSlackClient(token, baseURL string, httpClient *http.Client) *SlackClient {
	opts := []slack.Option{}
	if baseURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	if httpClient != nil {
		opts = append(opts, slack.OptionHTTPClient(httpClient))
	}
	return &SlackClient{api: slack.New(token, opts...)}
}

func (c *SlackClient) UserProfile(
	ctx context.Context,
	slackUserID string,
) (*SlackProfile, error) {
	user, err := c.api.GetUserInfoContext(ctx, slackUserID)
	if err != nil {
		return nil, fmt.Errorf("slack users.info: %w: %w", core.ErrUpstream, err)
	}

	return &SlackProfile{
		DisplayName: user.Profile.DisplayName,
		RealName:    user.Profile.RealName,
		Image512:    user.Profile.Image512,
	}, nil
}
