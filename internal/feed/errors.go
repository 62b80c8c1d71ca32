package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a feed that was disposed.
	ErrClosed = errors.New("feed closed")
	// ErrFetchInFlight is returned when an older page is already being fetched.
	ErrFetchInFlight = errors.New("older page fetch already in flight")
	// ErrHistoryExhausted is returned when the server reported no older pages.
	ErrHistoryExhausted = errors.New("no older history")
)

// TransientFetchError is a network or server failure. The caller decides
// whether to retry; the feed never retries on its own.
type TransientFetchError struct {
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("history fetch failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("history fetch failed: %v", e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// AuthError means the session or membership is no longer valid for the
// conversation. It is surfaced as an access-denied state and never retried.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("access denied (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("access denied (status %d): %s", e.StatusCode, e.Message)
}

// MalformedEventError is a live event missing required fields.
type MalformedEventError struct {
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed live event: %s: %v", e.Reason, e.Err)
	}
	return "malformed live event: " + e.Reason
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// DuplicateInsertError reports a created event for a message already cached.
// It is handled silently.
type DuplicateInsertError struct {
	MessageID int64
}

func (e *DuplicateInsertError) Error() string {
	return fmt.Sprintf("message %d already cached", e.MessageID)
}

// IsAuthError reports whether err carries an *AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsTransient reports whether err carries a *TransientFetchError.
func IsTransient(err error) bool {
	var transient *TransientFetchError
	return errors.As(err, &transient)
}
