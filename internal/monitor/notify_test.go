package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNotifierNames(t *testing.T) {
	tests := []struct {
		notifier Notifier
		want     string
	}{
		{NewSlackNotifier("https://hooks.example.test/x"), "slack"},
		{NewPagerDutyNotifier("routing-key"), "pagerduty"},
		{NewWebhookNotifier("https://example.test/webhook"), "webhook"},
		{NewEmailNotifier("smtp.example.test:25", "alerts@example.test", []string{"oncall@example.test"}, nil), "email"},
	}

	for _, tt := range tests {
		if got := tt.notifier.Name(); got != tt.want {
			t.Errorf("Name() = %s, want %s", got, tt.want)
		}
	}
}

func TestWebhookNotifierPostsJSONPayload(t *testing.T) {
	var received Alert

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %s", r.Header.Get("Content-Type"))
		}

		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding webhook body: %v", err)
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)

	alert := Alert{RuleName: "high_error_rate", EndpointID: "ep0", Severity: SeverityCritical, Message: "boom", FiredAt: time.Now()}

	if err := n.Notify(context.Background(), alert); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if received.RuleName != alert.RuleName || received.EndpointID != alert.EndpointID {
		t.Fatalf("unexpected payload received: %+v", received)
	}
}

func TestWebhookNotifierSurfacesNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)

	if err := n.Notify(context.Background(), Alert{RuleName: "r", EndpointID: "ep0"}); err == nil {
		t.Fatal("expected an error on a non-2xx response")
	}
}
