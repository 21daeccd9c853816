package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Backend is an opaque text-generation model: prompt in, text out or fail
type Backend interface {
	Name() string
	Respond(ctx context.Context, prompt string) (string, error)
}

var (
	ErrTimeout         = errors.New("backend timeout")
	ErrRateLimited     = errors.New("backend rate limited")
	ErrUnavailable     = errors.New("backend unavailable")
	ErrInvalidResponse = errors.New("backend invalid response")
)

// Error is a classified backend failure. errors.Is matches the kind
// sentinel as well as the underlying cause.
type Error struct {
	Backend string
	Kind    error
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Backend, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Classify wraps err in an *Error, inferring the kind where it can
func Classify(name string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	kind := ErrUnavailable
	var netErr net.Error
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrRateLimited), errors.Is(err, ErrInvalidResponse):
		kind = KindOf(err)
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = ErrTimeout
	}
	return &Error{Backend: name, Kind: kind, Err: err}
}

// KindOf returns the sentinel kind err matches, ErrUnavailable otherwise
func KindOf(err error) error {
	for _, kind := range []error{ErrTimeout, ErrRateLimited, ErrInvalidResponse} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUnavailable
}

// StatusKind maps an HTTP status code to a failure kind, nil for 2xx
func StatusKind(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ErrTimeout
	case code >= 500:
		return ErrUnavailable
	default:
		return ErrInvalidResponse
	}
}
