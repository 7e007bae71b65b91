package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/skylane-tw/tdx-air-gateway/pkg/airport"
	"github.com/skylane-tw/tdx-air-gateway/pkg/auth"
	"github.com/skylane-tw/tdx-air-gateway/pkg/client"
)

// Kind classifies a gateway failure for the outward envelope.
type Kind string

const (
	// KindInvalidInput is a bad airport code, limit or date. Never reaches upstream.
	KindInvalidInput Kind = "InvalidInput"

	// KindRateLimited means admission was denied for the endpoint key.
	KindRateLimited Kind = "RateLimited"

	// KindAuthFailure means the token exchange failed.
	KindAuthFailure Kind = "AuthFailure"

	// KindUpstreamError is a non-2xx or transport failure from the TDX API.
	KindUpstreamError Kind = "UpstreamError"

	// KindInvalidUpstreamShape is a 2xx whose payload breaks the resource contract.
	KindInvalidUpstreamShape Kind = "InvalidUpstreamShape"

	// KindCanceled means the caller's context ended before the result arrived.
	KindCanceled Kind = "Canceled"

	// KindInternal covers anything else.
	KindInternal Kind = "Internal"
)

// Error is the only error type the gateway returns.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// RetryAfter is set for KindRateLimited: time until the window reopens.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the component error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindInternal if err is not a gateway error.
func KindOf(err error) Kind {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindInternal
}

func invalidInputf(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// translate maps a component error onto a gateway Error, keeping the cause.
func translate(err error) *Error {
	if err == nil {
		return nil
	}

	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}

	var codeErr *airport.InvalidCodeError
	var authErr *auth.Error
	var upErr *client.UpstreamError
	var shapeErr *client.ShapeError

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindCanceled, Message: err.Error(), Err: err}
	case errors.As(err, &codeErr):
		return &Error{Kind: KindInvalidInput, Message: codeErr.Error(), Err: err}
	case errors.As(err, &authErr):
		return &Error{Kind: KindAuthFailure, Message: authErr.Error(), Err: err}
	case errors.As(err, &upErr):
		return &Error{Kind: KindUpstreamError, Message: upErr.Error(), Err: err}
	case errors.As(err, &shapeErr):
		return &Error{Kind: KindInvalidUpstreamShape, Message: shapeErr.Error(), Err: err}
	default:
		return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
	}
}
