package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, server
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name:        "default config",
			config:      DefaultConfig(),
			expectError: false,
		},
		{
			name:        "empty base url",
			config:      Config{},
			expectError: true,
		},
		{
			name:        "non-http base url",
			config:      Config{BaseURL: "ftp://example.com"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config, zerolog.Nop())
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestClient_Get_SendsBearerAndReturnsBody(t *testing.T) {
	var gotAuth, gotPath, gotRawQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotRawQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"FlightNumber":"BR189"}]`)
	})

	body, err := c.Get(context.Background(), Request{
		Resource: "departure",
		Path:     "/v2/Air/FIDS/Airport/Departure/TPE?$format=JSON&$top=30",
		Token:    "abc",
		Shape:    ShapeSequence,
	})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if string(body) != `[{"FlightNumber":"BR189"}]` {
		t.Errorf("body = %s", body)
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/v2/Air/FIDS/Airport/Departure/TPE" {
		t.Errorf("path = %q", gotPath)
	}
	if gotRawQuery != "$format=JSON&$top=30" {
		t.Errorf("query = %q", gotRawQuery)
	}
}

func TestClient_Get_NonSuccessStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantClass ErrorClass
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, wantClass: ErrorClassClient},
		{name: "not found", status: http.StatusNotFound, wantClass: ErrorClassClient},
		{name: "quota", status: http.StatusTooManyRequests, wantClass: ErrorClassRateLimit},
		{name: "server error", status: http.StatusInternalServerError, wantClass: ErrorClassServer},
		{name: "bad gateway", status: http.StatusBadGateway, wantClass: ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message":"nope"}`)
			})

			_, err := c.Get(context.Background(), Request{Resource: "weather", Path: "/x", Token: "t", Shape: ShapeSequence})

			var upstreamErr *UpstreamError
			if !errors.As(err, &upstreamErr) {
				t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
			}
			if upstreamErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", upstreamErr.StatusCode, tt.status)
			}
			if upstreamErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %s, want %s", upstreamErr.ErrorClass, tt.wantClass)
			}
			if upstreamErr.Body != `{"message":"nope"}` {
				t.Errorf("Body = %q", upstreamErr.Body)
			}
		})
	}
}

func TestClient_Get_ErrorBodyTruncated(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, strings.Repeat("x", 10*maxErrorBody))
	})

	_, err := c.Get(context.Background(), Request{Path: "/x", Shape: ShapeSequence})

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if len(upstreamErr.Body) != maxErrorBody {
		t.Errorf("len(Body) = %d, want %d", len(upstreamErr.Body), maxErrorBody)
	}
}

func TestClient_Get_ShapeCheck(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		shape   Shape
		wantErr bool
	}{
		{name: "array for sequence", body: `[{"a":1}]`, shape: ShapeSequence, wantErr: false},
		{name: "empty array for sequence", body: `[]`, shape: ShapeSequence, wantErr: false},
		{name: "object for sequence", body: `{"a":1}`, shape: ShapeSequence, wantErr: true},
		{name: "null for sequence", body: `null`, shape: ShapeSequence, wantErr: true},
		{name: "empty array for non-empty", body: `[]`, shape: ShapeNonEmptySequence, wantErr: true},
		{name: "array for non-empty", body: ` [1] `, shape: ShapeNonEmptySequence, wantErr: false},
		{name: "invalid json", body: `[{"a":`, shape: ShapeSequence, wantErr: true},
		{name: "object for any", body: `{"a":1}`, shape: ShapeAny, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			})

			_, err := c.Get(context.Background(), Request{Path: "/x", Shape: tt.shape})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Get() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var shapeErr *ShapeError
				if !errors.As(err, &shapeErr) {
					t.Errorf("expected *ShapeError, got %T", err)
				}
			}
		})
	}
}

func TestClient_Get_NetworkError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://127.0.0.1:1"
	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Get(context.Background(), Request{Path: "/x", Shape: ShapeSequence})

	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
	}
	if upstreamErr.ErrorClass != ErrorClassNetwork {
		t.Errorf("ErrorClass = %s, want network", upstreamErr.ErrorClass)
	}
}

func TestClient_Get_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		fmt.Fprint(w, `[]`)
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, Request{Path: "/x", Shape: ShapeSequence})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestClient_Get_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[`+strings.Repeat(`1,`, 100)+`1]`)
	}))
	defer server.Close()

	c, err := New(Config{BaseURL: server.URL, MaxBodyBytes: 16}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Get(context.Background(), Request{Path: "/x", Shape: ShapeSequence})
	var shapeErr *ShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected *ShapeError for oversized body, got %v", err)
	}
}
