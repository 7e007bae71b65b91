package client

import (
	"fmt"
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses from TDX's own quota.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"
)

// UpstreamError is returned when the upstream call did not produce a 2xx
// response. StatusCode is 0 for transport failures.
type UpstreamError struct {
	StatusCode int
	ErrorClass ErrorClass
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("TDX %s error (status %d): %v", e.ErrorClass, e.StatusCode, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("TDX %s error (status %d): %s", e.ErrorClass, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("TDX %s error (status %d)", e.ErrorClass, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ShapeError is returned when a 2xx body does not satisfy the shape the
// resource promises.
type ShapeError struct {
	Path   string
	Shape  Shape
	Reason string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("unexpected TDX payload for %s: want %s, %s", e.Path, e.Shape, e.Reason)
}

// classifyStatus categorizes a non-2xx status for metrics and diagnostics.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == 429:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		// 1xx/3xx are not followed to a 2xx; report them as server-side oddities.
		return ErrorClassServer
	}
}
