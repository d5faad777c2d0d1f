package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"
)

const slackTimeout = 10 * time.Second

// SlackNotifier posts events to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a notifier for webhookURL. A nil client gets a default with a timeout.
func NewSlackNotifier(webhookURL string, client *http.Client) *SlackNotifier {
	if client == nil {
		client = &http.Client{Timeout: slackTimeout}
	}
	return &SlackNotifier{webhookURL: webhookURL, client: client}
}

// message renders the event as webhook text.
func message(event Event) *slack.WebhookMessage {
	text := fmt.Sprintf("*%s*\n%s", event.Subject(), event.Body())
	if event.JobID != "" {
		text += fmt.Sprintf("\njob: `%s`", event.JobID)
	}
	return &slack.WebhookMessage{Text: text}
}

func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	if err := slack.PostWebhookCustomHTTPContext(ctx, n.webhookURL, n.client, message(event)); err != nil {
		return fmt.Errorf("failed to post to slack webhook: %w", err)
	}
	return nil
}
