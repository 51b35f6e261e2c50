package monitor

import (
	"context"
	"fmt"

	"github.com/PagerDuty/go-pagerduty"
)

// PagerDutyNotifier sends alerts as PagerDuty Events API v2 triggers.
type PagerDutyNotifier struct {
	routingKey string
}

// NewPagerDutyNotifier constructs a PagerDutyNotifier for the given
// Events API v2 integration/routing key.
func NewPagerDutyNotifier(routingKey string) *PagerDutyNotifier {
	return &PagerDutyNotifier{routingKey: routingKey}
}

// Name implements Notifier.
func (n *PagerDutyNotifier) Name() string { return "pagerduty" }

// Notify implements Notifier.
func (n *PagerDutyNotifier) Notify(ctx context.Context, alert Alert) error {
	severity := "warning"

	switch alert.Severity {
	case SeverityInfo:
		severity = "info"
	case SeverityCritical, SeverityEmergency:
		severity = "critical"
	}

	event := pagerduty.V2Event{
		RoutingKey: n.routingKey,
		Action:     "trigger",
		Payload: &pagerduty.V2Payload{
			Summary:   fmt.Sprintf("[%s] %s: %s", alert.EndpointID, alert.RuleName, alert.Message),
			Source:    alert.EndpointID,
			Severity:  severity,
			Timestamp: alert.FiredAt.Format("2006-01-02T15:04:05Z07:00"),
		},
	}

	_, err := pagerduty.ManageEventWithContext(ctx, event)

	return err
}
