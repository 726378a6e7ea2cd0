// AngelaMos | 2026
// env.go

package provider

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds provider credentials. A provider is enabled only when both its
// client id and secret are set.
type Env struct {
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	SlackClientID      string `env:"SLACK_CLIENT_ID"`
	SlackClientSecret  string `env:"SLACK_CLIENT_SECRET"`
	SlackBotToken      string `env:"SLACK_BOT_TOKEN"`
	SlackAPIURL        string `env:"SLACK_API_URL"        envDefault:"https://slack.com/api"`
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
}

func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse provider env: %w", err)
	}
	return e, nil
}
