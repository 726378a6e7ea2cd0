// AngelaMos | 2026
// sink.go

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/slack-go/slack"

	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/identity"
)

// Sink delivers one newcomer notification. Each call is a single attempt.
type Sink interface {
	Notify(ctx context.Context, event identity.AccountLinkedEvent) error
}

type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(_ context.Context, event identity.AccountLinkedEvent) error {
	s.logger.Info("newcomer joined",
		"provider", event.Provider,
		"provider_account_id", event.ProviderAccountID,
		"user_id", event.UserID,
		"name", event.Name,
	)
	return nil
}

// SlackWebhookSink posts to a Slack incoming webhook.
type SlackWebhookSink struct {
	url        string
	httpClient *http.Client
}

func NewSlackWebhookSink(url string, httpClient *http.Client) *SlackWebhookSink {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SlackWebhookSink{url: url, httpClient: httpClient}
}

func newcomerMessage(event identity.AccountLinkedEvent) *slack.WebhookMessage {
	name := event.Name
	if name == "" {
		name = "Someone new"
	}
	text := fmt.Sprintf("%s (<@%s>) just joined workplay. Say hi!", name, event.ProviderAccountID)

	var accessory *slack.Accessory
	if event.Image != "" {
		accessory = slack.NewAccessory(slack.NewImageBlockElement(event.Image, name))
	}
	section := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, text, false, false),
		nil,
		accessory,
	)

	return &slack.WebhookMessage{
		Text:   text,
		Blocks: &slack.Blocks{BlockSet: []slack.Block{section}},
	}
}

func (s *SlackWebhookSink) Notify(ctx context.Context, event identity.AccountLinkedEvent) error {
	err := slack.PostWebhookCustomHTTPContext(ctx, s.url, s.httpClient, newcomerMessage(event))
	if err != nil {
		return fmt.Errorf("newcomer webhook: %w: %w", core.ErrUpstream, err)
	}
	return nil
}

// NewSink picks the webhook sink when a URL is configured and falls back to
// logging otherwise.
func NewSink(webhookURL string, httpClient *http.Client, logger *slog.Logger) Sink {
	if webhookURL == "" {
		return NewLogSink(logger)
	}
	return NewSlackWebhookSink(webhookURL, httpClient)
}
