package completion

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind sentinels. Match with errors.Is; use errors.As with *Error for the
// status and body.
var (
	ErrConfiguration = errors.New("completion: missing configuration")
	ErrAuth          = errors.New("completion: authentication or billing rejected")
	ErrRateLimited   = errors.New("completion: rate limited")
	ErrBadRequest    = errors.New("completion: malformed request")
	ErrUpstream      = errors.New("completion: upstream failure")
)

// Error is returned by Client.Complete for every failure.
type Error struct {
	Kind    error
	Status  int    // HTTP status, 0 when no response was received
	Message string // provider message, or a local description
	Body    string // raw response body, for diagnostics
	Err     error  // underlying transport or decode error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// kindForStatus classifies a non-2xx response.
func kindForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusPaymentRequired:
		return ErrAuth
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrBadRequest
	}
	return ErrUpstream
}

// KindOf returns the sentinel for err, or nil if err did not come from this
// package.
func KindOf(err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return nil
}
