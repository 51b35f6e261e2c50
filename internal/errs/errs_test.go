package errs

import (
	"errors"
	"testing"
)

func TestNewAndError(t *testing.T) {
	e := New(Timeout, "acquire took too long")

	if e.Kind != Timeout {
		t.Fatalf("expected kind %v, got %v", Timeout, e.Kind)
	}

	if e.Error() != "timeout: acquire took too long" {
		t.Fatalf("unexpected message: %s", e.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	e := Wrap(ConnectionInvalid, cause, "dialing endpoint")

	if !errors.Is(e, cause) {
		t.Fatal("expected wrapped error to unwrap to cause")
	}

	if e.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
}

func TestWithAttempted(t *testing.T) {
	e := New(EndpointUnavailable, "no replica").WithAttempted([]string{"ep-1", "ep-2"})

	if len(e.Attempted) != 2 || e.Attempted[0] != "ep-1" {
		t.Fatalf("unexpected attempted list: %v", e.Attempted)
	}
}

func TestIs(t *testing.T) {
	err := New(NoShardKey, "missing key")

	if !Is(err, NoShardKey) {
		t.Fatal("expected Is to match the same kind")
	}

	if Is(err, Timeout) {
		t.Fatal("expected Is not to match a different kind")
	}

	if Is(errors.New("plain error"), Timeout) {
		t.Fatal("expected Is to return false for a non-*Error")
	}
}
