// Package client provides the authenticated HTTP client for the TDX Air API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the TDX basic API root.
const DefaultBaseURL = "https://tdx.transportdata.tw/api/basic"

// maxErrorBody bounds how much of a non-2xx body is kept for diagnostics.
const maxErrorBody = 2048

// Prometheus metrics for upstream calls.
var (
	tdxRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdx_upstream_requests_total",
		Help: "Total TDX API requests by resource and status",
	}, []string{"resource", "status"})

	tdxRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tdx_upstream_request_duration_seconds",
		Help:    "TDX API request duration in seconds by resource",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"resource"})

	tdxErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tdx_upstream_errors_total",
		Help: "Total TDX API errors by class",
	}, []string{"class"})
)

// Shape is the structural contract a resource's 2xx body must satisfy.
type Shape int

const (
	// ShapeAny accepts any JSON value.
	ShapeAny Shape = iota

	// ShapeSequence requires a JSON array, possibly empty.
	ShapeSequence

	// ShapeNonEmptySequence requires a JSON array with at least one element.
	ShapeNonEmptySequence
)

// String returns the shape name used in error messages.
func (s Shape) String() string {
	switch s {
	case ShapeSequence:
		return "array"
	case ShapeNonEmptySequence:
		return "non-empty array"
	default:
		return "any JSON value"
	}
}

// Request describes one upstream call.
type Request struct {
	// Resource labels metrics and logs (e.g. "departure").
	Resource string

	// Path is the request URI relative to the base URL, query included.
	Path string

	// Token is the bearer credential.
	Token string

	Shape Shape
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is prepended to every request path.
	BaseURL string

	// UserAgent is sent on every request.
	UserAgent string

	// Timeout applies to the default HTTP client.
	Timeout time.Duration

	// MaxBodyBytes bounds how much of a 2xx body is read.
	MaxBodyBytes int64

	// HTTPClient overrides the default client (for testing).
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		UserAgent:    "tdx-air-gateway/1.0",
		Timeout:      30 * time.Second,
		MaxBodyBytes: 16 << 20,
	}
}

// Client issues single, unretried GET requests against the TDX API.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new TDX client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("base url must be http(s) (got %q)", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 16 << 20
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Get performs the request and returns the raw JSON body once it has passed
// the shape check.
func (c *Client) Get(ctx context.Context, r Request) (json.RawMessage, error) {
	startTime := time.Now()
	defer func() {
		tdxRequestDuration.WithLabelValues(r.Resource).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+r.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.Token)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("resource", r.Resource).
		Str("path", r.Path).
		Msg("Executing TDX request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Cancellation is the caller's doing, not an upstream failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		tdxErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		tdxRequestsTotal.WithLabelValues(r.Resource, "network_error").Inc()
		c.logger.Error().Err(err).Str("path", r.Path).Msg("TDX request failed")
		return nil, &UpstreamError{ErrorClass: ErrorClassNetwork, Err: err}
	}
	defer resp.Body.Close()

	tdxRequestsTotal.WithLabelValues(r.Resource, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		class := classifyStatus(resp.StatusCode)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		tdxErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Error().
			Str("path", r.Path).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("TDX request error")

		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		tdxErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &UpstreamError{StatusCode: resp.StatusCode, ErrorClass: ErrorClassNetwork, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > c.config.MaxBodyBytes {
		return nil, &ShapeError{Path: r.Path, Shape: r.Shape, Reason: fmt.Sprintf("body exceeds %d bytes", c.config.MaxBodyBytes)}
	}

	if err := CheckShape(body, r.Shape); err != nil {
		shapeErr := &ShapeError{Path: r.Path, Shape: r.Shape, Reason: err.Error()}
		c.logger.Error().Str("path", r.Path).Str("reason", shapeErr.Reason).Msg("TDX payload failed shape check")
		return nil, shapeErr
	}

	return json.RawMessage(body), nil
}

var errNotArray = errors.New("got a non-array value")

// CheckShape validates body against shape.
func CheckShape(body []byte, shape Shape) error {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return errors.New("body is not valid JSON")
	}
	if shape == ShapeAny {
		return nil
	}

	if len(trimmed) == 0 || trimmed[0] != '[' {
		return errNotArray
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return fmt.Errorf("decode array: %w", err)
	}
	if shape == ShapeNonEmptySequence && len(items) == 0 {
		return errors.New("got an empty array")
	}
	return nil
}
