package office

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKey is returned for keys outside the remote store contract.
	ErrUnknownKey = errors.New("unknown key")
	// ErrDenied is returned when the biometric service did not recognize the face.
	ErrDenied = errors.New("face not recognized")
)

// NetworkError is a failed publish or subscription on the remote store.
type NetworkError struct {
	// Op is "publish" or "subscribe".
	Op  string
	Key Key
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TransportError is an unreachable biometric service or a non-2xx answer from it.
type TransportError struct {
	// Op is the service operation, e.g. "authenticate".
	Op string
	// StatusCode is zero when no response was received.
	StatusCode int
	// Body is the (truncated) response text for non-2xx answers.
	Body string
	Err  error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError rejects input before any request is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
