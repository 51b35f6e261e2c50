package monitor

import (
	"context"
	"fmt"
	"net/smtp"
)

// EmailNotifier sends alerts over SMTP. As with WebhookNotifier, no
// example repo in the pack brings in a richer mail client, and net/smtp
// covers a plain-text alert body adequately, so this stays on the
// standard library.
type EmailNotifier struct {
	addr string
	from string
	to   []string
	auth smtp.Auth
}

// NewEmailNotifier constructs an EmailNotifier. auth may be nil for
// unauthenticated relays.
func NewEmailNotifier(addr, from string, to []string, auth smtp.Auth) *EmailNotifier {
	return &EmailNotifier{addr: addr, from: from, to: to, auth: auth}
}

// Name implements Notifier.
func (n *EmailNotifier) Name() string { return "email" }

// Notify implements Notifier.
func (n *EmailNotifier) Notify(_ context.Context, alert Alert) error {
	subject := fmt.Sprintf("[%s] %s on %s", alert.Severity, alert.RuleName, alert.EndpointID)
	body := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", n.to[0], subject, alert.Message)

	return smtp.SendMail(n.addr, n.auth, n.from, n.to, []byte(body))
}
