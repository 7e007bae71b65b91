// Package auth manages the gateway's single OAuth2 client-credentials token
// for the TDX API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// DefaultTokenURL is the TDX OpenID Connect token endpoint.
const DefaultTokenURL = "https://tdx.transportdata.tw/auth/realms/TDXConnect/protocol/openid-connect/token"

var tokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tdx_token_refreshes_total",
	Help: "Client-credentials exchanges by result",
}, []string{"result"})

// AccessToken is a bearer token and the instant it stops being usable.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token may be handed out at now.
func (t *AccessToken) ValidAt(now time.Time) bool {
	return t != nil && t.Value != "" && t.ExpiresAt.After(now)
}

// Error is returned when the token exchange fails. StatusCode is 0 for
// transport failures.
type Error struct {
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange failed (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Config holds the token manager configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string

	// HTTPClient performs the exchange (default: 30s timeout client).
	HTTPClient *http.Client

	// Now is the clock used for expiry checks (default time.Now).
	Now func() time.Time
}

// Manager owns one access token and refreshes it when it has expired.
// Concurrent callers that find the token expired share one exchange.
type Manager struct {
	credentials clientcredentials.Config
	httpClient  *http.Client
	now         func() time.Time
	logger      zerolog.Logger

	mu    sync.Mutex
	token *AccessToken

	refresh singleflight.Group
}

// NewManager creates a token manager.
func NewManager(cfg Config, logger zerolog.Logger) (*Manager, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{
		credentials: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: cfg.HTTPClient,
		now:        cfg.Now,
		logger:     logger,
	}, nil
}

// Token returns a bearer token that has not yet expired, exchanging the
// client credentials for a new one when needed. A failed exchange leaves the
// held token untouched.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	held := m.token
	m.mu.Unlock()

	if held.ValidAt(m.now()) {
		return held.Value, nil
	}

	ch := m.refresh.DoChan("token", func() (any, error) {
		return m.exchange(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*AccessToken).Value, nil
	}
}

// Invalidate drops the held token so that the next Token call refreshes.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
}

// Current returns a copy of the held token, if any.
func (m *Manager) Current() (AccessToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return AccessToken{}, false
	}
	return *m.token, true
}

// exchange performs the client-credentials grant outside the lock and then
// writes the result back.
func (m *Manager) exchange(ctx context.Context) (*AccessToken, error) {
	// A caller that lost the race to a finished refresh finds a valid token.
	m.mu.Lock()
	if m.token.ValidAt(m.now()) {
		tok := m.token
		m.mu.Unlock()
		return tok, nil
	}
	m.mu.Unlock()

	issuedAt := m.now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)

	raw, err := m.credentials.Token(ctx)
	if err != nil {
		tokenRefreshesTotal.WithLabelValues("failure").Inc()
		authErr := toError(err)
		m.logger.Error().
			Err(err).
			Int("status", authErr.StatusCode).
			Msg("Token exchange failed")
		return nil, authErr
	}

	tok := &AccessToken{
		Value:     raw.AccessToken,
		ExpiresAt: expiryOf(raw, issuedAt),
	}

	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()

	tokenRefreshesTotal.WithLabelValues("success").Inc()
	m.logger.Info().
		Time("expires_at", tok.ExpiresAt).
		Msg("Access token refreshed")

	return tok, nil
}

// expiryOf computes issue time + lifetime. Tokens without a lifetime expire
// immediately, so they are used for the current request only.
func expiryOf(tok *oauth2.Token, issuedAt time.Time) time.Time {
	if tok.ExpiresIn > 0 {
		return issuedAt.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	if !tok.Expiry.IsZero() {
		return issuedAt.Add(time.Until(tok.Expiry))
	}
	return issuedAt
}

func toError(err error) *Error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return &Error{
			StatusCode: retrieveErr.Response.StatusCode,
			Body:       string(retrieveErr.Body),
			Err:        err,
		}
	}
	return &Error{Err: err}
}
