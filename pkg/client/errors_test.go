package client

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		expected   ErrorClass
	}{
		{name: "bad request", statusCode: 400, expected: ErrorClassClient},
		{name: "forbidden", statusCode: 403, expected: ErrorClassClient},
		{name: "too many requests", statusCode: 429, expected: ErrorClassRateLimit},
		{name: "internal error", statusCode: 500, expected: ErrorClassServer},
		{name: "unavailable", statusCode: 503, expected: ErrorClassServer},
		{name: "redirect not followed", statusCode: 304, expected: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStatus(tt.statusCode); got != tt.expected {
				t.Errorf("classifyStatus(%d) = %s, want %s", tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestUpstreamError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *UpstreamError
		expected string
	}{
		{
			name:     "with body",
			err:      &UpstreamError{StatusCode: 404, ErrorClass: ErrorClassClient, Body: "not found"},
			expected: "TDX client error (status 404): not found",
		},
		{
			name:     "without body",
			err:      &UpstreamError{StatusCode: 500, ErrorClass: ErrorClassServer},
			expected: "TDX server error (status 500)",
		},
		{
			name:     "wrapped transport error",
			err:      &UpstreamError{ErrorClass: ErrorClassNetwork, Err: io.ErrUnexpectedEOF},
			expected: "TDX network error (status 0): unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestUpstreamError_Unwrap(t *testing.T) {
	err := &UpstreamError{ErrorClass: ErrorClassNetwork, Err: io.ErrUnexpectedEOF}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("errors.Is should find the wrapped error")
	}
}

func TestShapeError_Error(t *testing.T) {
	err := &ShapeError{Path: "/v2/Air/METAR/Airport/TPE", Shape: ShapeNonEmptySequence, Reason: "got an empty array"}

	msg := err.Error()
	for _, want := range []string{"/v2/Air/METAR/Airport/TPE", "non-empty array", "got an empty array"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
