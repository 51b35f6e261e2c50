package monitor

import (
	"context"
	"fmt"

	"github.com/hyp3rd/dbplane/internal/logger"
)

// Notifier delivers a fired Alert to one destination.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts through the structured logger. Always safe
// to register; every other channel is best-effort on top of it.
type LogNotifier struct {
	logger logger.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(log logger.Logger) *LogNotifier { return &LogNotifier{logger: log} }

// Name implements Notifier.
func (n *LogNotifier) Name() string { return "log" }

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, alert Alert) error {
	n.logger.WithFields(
		logger.Field{Key: "rule", Value: alert.RuleName},
		logger.Field{Key: "endpoint_id", Value: alert.EndpointID},
		logger.Field{Key: "severity", Value: string(alert.Severity)},
	).Warn(fmt.Sprintf("alert: %s", alert.Message))

	return nil
}
