// Package gateway is the request pipeline in front of the TDX aviation API.
//
// Every resource call runs the same steps: validate the input, serve a fresh
// cached payload if one exists, pass the per-endpoint admission gate, obtain
// a bearer token, call the upstream API once, store the result and return
// it. Each shared structure (token slot, cache, window marks) guards itself;
// no lock is held across the two network calls.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/skylane-tw/tdx-air-gateway/pkg/airport"
	"github.com/skylane-tw/tdx-air-gateway/pkg/cache"
	"github.com/skylane-tw/tdx-air-gateway/pkg/client"
	"github.com/skylane-tw/tdx-air-gateway/pkg/ratelimit"
)

// TokenSource supplies bearer tokens. *auth.Manager implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Upstream performs a single upstream GET. *client.Client implements it.
type Upstream interface {
	Get(ctx context.Context, r client.Request) (json.RawMessage, error)
}

// Config wires the gateway's collaborators.
type Config struct {
	Cache    *cache.Cache
	Limiter  ratelimit.Limiter
	Tokens   TokenSource
	Upstream Upstream

	// RateWindow is reported by RateLimitStatus (default ratelimit.DefaultWindow).
	RateWindow time.Duration

	// Now is the clock used for result timestamps (default time.Now).
	Now func() time.Time
}

// Gateway orchestrates validation, caching, admission and upstream calls.
type Gateway struct {
	cache      *cache.Cache
	limiter    ratelimit.Limiter
	tokens     TokenSource
	upstream   Upstream
	rateWindow time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// New creates a gateway. Cache, Limiter, Tokens and Upstream are required.
func New(cfg Config, logger zerolog.Logger) (*Gateway, error) {
	switch {
	case cfg.Cache == nil:
		return nil, errors.New("gateway: cache is required")
	case cfg.Limiter == nil:
		return nil, errors.New("gateway: limiter is required")
	case cfg.Tokens == nil:
		return nil, errors.New("gateway: token source is required")
	case cfg.Upstream == nil:
		return nil, errors.New("gateway: upstream client is required")
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = ratelimit.DefaultWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Gateway{
		cache:      cfg.Cache,
		limiter:    cfg.Limiter,
		tokens:     cfg.Tokens,
		upstream:   cfg.Upstream,
		rateWindow: cfg.RateWindow,
		now:        cfg.Now,
		logger:     logger,
	}, nil
}

// Departures returns the departures board of code ordered by scheduled time,
// at most limit rows.
func (g *Gateway) Departures(ctx context.Context, code string, limit int) (*Result, error) {
	return g.fetch(ctx, &Request{Resource: ResourceDeparture, Airport: airport.Normalize(code), Limit: limit})
}

// Arrivals returns the arrivals board of code ordered by scheduled time,
// at most limit rows.
func (g *Gateway) Arrivals(ctx context.Context, code string, limit int) (*Result, error) {
	return g.fetch(ctx, &Request{Resource: ResourceArrival, Airport: airport.Normalize(code), Limit: limit})
}

// Realtime fetches arrivals and departures concurrently. Either half failing
// fails the whole call.
func (g *Gateway) Realtime(ctx context.Context, code string, limit int) (*RealtimeResult, error) {
	code = airport.Normalize(code)
	req := &Request{Resource: ResourceRealtime, Airport: code, Limit: limit}
	if err := req.Validate(); err != nil {
		g.observe(req.Resource, g.now(), err)
		return nil, err
	}

	var res RealtimeResult
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		r, err := g.Arrivals(egCtx, code, limit)
		res.Arrivals = r
		return err
	})
	eg.Go(func() error {
		r, err := g.Departures(egCtx, code, limit)
		res.Departures = r
		return err
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &res, nil
}

// Weather returns the latest METAR observations of code. An empty
// observation list is an upstream shape failure.
func (g *Gateway) Weather(ctx context.Context, code string) (*Result, error) {
	return g.fetch(ctx, &Request{Resource: ResourceWeather, Airport: airport.Normalize(code), Limit: DefaultLimit})
}

// Schedule returns the scheduled departures of code whose validity overlaps
// [startDate, endDate]. Both dates are optional YYYY-MM-DD strings.
func (g *Gateway) Schedule(ctx context.Context, code, startDate, endDate string) (*Result, error) {
	return g.fetch(ctx, &Request{
		Resource:  ResourceSchedule,
		Airport:   airport.Normalize(code),
		Limit:     DefaultLimit,
		StartDate: startDate,
		EndDate:   endDate,
	})
}

// Airlines returns the airline directory.
func (g *Gateway) Airlines(ctx context.Context) (*Result, error) {
	return g.fetch(ctx, &Request{Resource: ResourceAirlines, Limit: DefaultLimit})
}

// CacheStatus reports every cached entry with its age and freshness.
func (g *Gateway) CacheStatus() map[string]cache.EntryStatus {
	return g.cache.Status()
}

// ClearCache removes the entry for key, or every entry when key is empty.
// It reports whether anything was removed.
func (g *Gateway) ClearCache(key string) bool {
	if key == "" {
		removed := g.cache.Len() > 0
		g.cache.ClearAll()
		g.logger.Info().Msg("Cache cleared")
		return removed
	}

	removed := g.cache.Clear(key)
	g.logger.Info().Str("key", key).Bool("removed", removed).Msg("Cache entry cleared")
	return removed
}

// WindowStatus is the introspection view of one endpoint's admission window.
type WindowStatus struct {
	LastCallAt time.Time     `json:"lastCallAt"`
	RetryAfter time.Duration `json:"retryAfter"`
	Open       bool          `json:"open"`
}

// RateLimitStatus reports the admission windows the limiter knows about, or
// nil when the limiter cannot list them.
func (g *Gateway) RateLimitStatus() map[string]WindowStatus {
	lister, ok := g.limiter.(ratelimit.MarkLister)
	if !ok {
		return nil
	}

	now := g.now()
	marks := lister.Marks()
	status := make(map[string]WindowStatus, len(marks))
	for key, mark := range marks {
		status[key] = WindowStatus{
			LastCallAt: mark.LastCallAt,
			RetryAfter: mark.RetryAfter(now, g.rateWindow),
			Open:       mark.IsOpen(now, g.rateWindow),
		}
	}
	return status
}

// fetch runs the pipeline for a single resource.
func (g *Gateway) fetch(ctx context.Context, req *Request) (*Result, error) {
	start := g.now()

	if err := req.Validate(); err != nil {
		g.observe(req.Resource, start, err)
		return nil, err
	}

	key, shape := req.key()
	id := key.String()
	logger := g.logger.With().
		Str("resource", string(req.Resource)).
		Str("key", id).
		Logger()

	if payload, ok := g.cache.Get(id); ok {
		logger.Debug().Msg("Cache hit")
		g.observe(req.Resource, start, nil, outcomeHit)
		return &Result{Key: id, Data: payload, Cached: true, FetchedAt: start}, nil
	}

	if !g.limiter.TryAcquire(ctx, id) {
		retry := g.retryAfter(ctx, id)
		logger.Warn().Dur("retry_after", retry).Msg("Rate limited")
		err := &Error{
			Kind:       KindRateLimited,
			Message:    fmt.Sprintf("%s was called less than %s ago", id, g.rateWindow),
			RetryAfter: retry,
		}
		g.observe(req.Resource, start, err)
		return nil, err
	}

	token, err := g.tokens.Token(ctx)
	if err != nil {
		gwErr := translate(err)
		if gwErr.Kind != KindCanceled {
			gwErr = &Error{Kind: KindAuthFailure, Message: gwErr.Message, Err: err}
		}
		logger.Error().Err(err).Str("kind", string(gwErr.Kind)).Msg("Token unavailable")
		g.observe(req.Resource, start, gwErr)
		return nil, gwErr
	}

	payload, err := g.upstream.Get(ctx, client.Request{
		Resource: string(req.Resource),
		Path:     key.RequestURI(),
		Token:    token,
		Shape:    shape,
	})
	if err != nil {
		gwErr := translate(err)
		logger.Error().Err(err).Str("kind", string(gwErr.Kind)).Msg("Upstream call failed")
		g.observe(req.Resource, start, gwErr)
		return nil, gwErr
	}

	// A result that arrives after the caller gave up is not cached.
	if err := ctx.Err(); err != nil {
		gwErr := translate(err)
		g.observe(req.Resource, start, gwErr)
		return nil, gwErr
	}

	g.cache.Put(id, payload)
	fetchedAt := g.now()
	logger.Debug().Dur("duration", fetchedAt.Sub(start)).Msg("Fetched from upstream")
	g.observe(req.Resource, start, nil, outcomeFetched)

	return &Result{Key: id, Data: payload, FetchedAt: fetchedAt}, nil
}

func (g *Gateway) retryAfter(ctx context.Context, key string) time.Duration {
	if advisor, ok := g.limiter.(ratelimit.RetryAdvisor); ok {
		if d := advisor.RetryAfter(ctx, key); d > 0 {
			return d
		}
	}
	return g.rateWindow
}

func (g *Gateway) observe(resource Resource, start time.Time, err error, outcome ...string) {
	label := string(KindOf(err))
	if err == nil && len(outcome) > 0 {
		label = outcome[0]
	}
	gatewayRequestsTotal.WithLabelValues(string(resource), label).Inc()
	gatewayRequestDuration.WithLabelValues(string(resource)).Observe(g.now().Sub(start).Seconds())
}
