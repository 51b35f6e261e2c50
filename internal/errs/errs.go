// Package errs defines the data-plane error kinds and wraps them with
// github.com/hyp3rd/ewrap rather than introducing a parallel exception
// hierarchy.
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyp3rd/ewrap/pkg/ewrap"
)

// Kind identifies the category of a surfaced data-plane error.
type Kind string

const (
	// Timeout covers pool acquire timeouts and external call timeouts.
	Timeout Kind = "timeout"
	// EndpointUnavailable covers no healthy endpoint, or primary down
	// with failover disabled.
	EndpointUnavailable Kind = "endpoint_unavailable"
	// NoShardKey covers cross-shard disabled with the shard key absent.
	NoShardKey Kind = "no_shard_key"
	// RoutingInconsistent covers topology changing mid-request.
	RoutingInconsistent Kind = "routing_inconsistent"
	// ConnectionInvalid is surfaced only after retry exhaustion.
	ConnectionInvalid Kind = "connection_invalid"
	// CacheRefused covers an entry too large, or a serialization failure.
	CacheRefused Kind = "cache_refused"
	// MigrationFailed is persisted with the error text.
	MigrationFailed Kind = "migration_failed"
	// ConfigInvalid is startup-only.
	ConfigInvalid Kind = "config_invalid"
)

// Error is the structured, user-visible error surfaced by the data plane.
// It always carries a stable Kind, a human Message and, when relevant, the
// endpoints that were attempted before giving up, so callers have enough
// context to retry idempotent operations safely.
type Error struct {
	Kind      Kind
	Message   string
	Attempted []string
	cause     error
}

// New returns a new Error of the given kind wrapping msg.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, cause: ewrap.New(msg)}
}

// Wrap wraps cause with the given kind and message.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, cause: ewrap.Wrap(cause, msg)}
}

// WithAttempted records the endpoint ids a caller tried before surfacing
// the error and returns the same Error for chaining.
func (e *Error) WithAttempted(endpointIDs []string) *Error {
	e.Attempted = endpointIDs
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Attempted) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}

	return fmt.Sprintf("%s: %s (attempted: %s)", e.Kind, e.Message, strings.Join(e.Attempted, ", "))
}

// Unwrap exposes the underlying ewrap-wrapped cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether err carries the given Kind, looking through any
// wrapping chain.
func Is(err error, kind Kind) bool {
	var de *Error
	if !errors.As(err, &de) {
		return false
	}

	return de.Kind == kind
}
