package monitor

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts alerts to an incoming Slack webhook.
type SlackNotifier struct {
	webhookURL string
}

// NewSlackNotifier constructs a SlackNotifier for the given incoming
// webhook URL.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL}
}

// Name implements Notifier.
func (n *SlackNotifier) Name() string { return "slack" }

// Notify implements Notifier.
func (n *SlackNotifier) Notify(_ context.Context, alert Alert) error {
	color := "warning"

	switch alert.Severity {
	case SeverityInfo:
		color = "#439FE0"
	case SeverityCritical, SeverityEmergency:
		color = "danger"
	}

	msg := &slack.WebhookMessage{
		Attachments: []slack.Attachment{
			{
				Color:  color,
				Title:  fmt.Sprintf("[%s] %s", alert.Severity, alert.RuleName),
				Text:   alert.Message,
				Footer: alert.EndpointID,
			},
		},
	}

	return slack.PostWebhook(n.webhookURL, msg)
}
