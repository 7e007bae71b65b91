package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/skylane-tw/tdx-air-gateway/pkg/airport"
	"github.com/skylane-tw/tdx-air-gateway/pkg/gateway"
)

type handlers struct {
	svc    Service
	ready  Pinger
	now    func() time.Time
	logger zerolog.Logger
}

func (h *handlers) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) readiness(c echo.Context) error {
	if h.ready == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.ready.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("Readiness check failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// parseLimit reads ?limit=, defaulting to gateway.DefaultLimit. Range checks
// are left to the gateway.
func parseLimit(c echo.Context) (int, error) {
	raw := strings.TrimSpace(c.QueryParam("limit"))
	if raw == "" {
		return gateway.DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &gateway.Error{
			Kind:    gateway.KindInvalidInput,
			Message: fmt.Sprintf("limit must be a positive integer, got %q", raw),
		}
	}
	return limit, nil
}

func (h *handlers) board(c echo.Context, fetch func(ctx context.Context, code string, limit int) (*gateway.Result, error)) error {
	code := c.Param("airport")
	params := map[string]any{"airport": code}

	limit, err := parseLimit(c)
	if err != nil {
		return failure(c, err, h.now(), params)
	}
	params["limit"] = limit

	res, err := fetch(c.Request().Context(), code, limit)
	if err != nil {
		return failure(c, err, h.now(), params)
	}
	return success(c, res.Data, res.FetchedAt, params)
}

func (h *handlers) departures(c echo.Context) error {
	return h.board(c, h.svc.Departures)
}

func (h *handlers) arrivals(c echo.Context) error {
	return h.board(c, h.svc.Arrivals)
}

func (h *handlers) realtime(c echo.Context) error {
	code := c.Param("airport")
	params := map[string]any{"airport": code}

	limit, err := parseLimit(c)
	if err != nil {
		return failure(c, err, h.now(), params)
	}
	params["limit"] = limit

	res, err := h.svc.Realtime(c.Request().Context(), code, limit)
	if err != nil {
		return failure(c, err, h.now(), params)
	}

	updatedAt := res.Arrivals.FetchedAt
	if res.Departures.FetchedAt.After(updatedAt) {
		updatedAt = res.Departures.FetchedAt
	}
	return success(c, res, updatedAt, params)
}

func (h *handlers) weather(c echo.Context) error {
	code := c.Param("airport")
	params := map[string]any{"airport": code}

	res, err := h.svc.Weather(c.Request().Context(), code)
	if err != nil {
		return failure(c, err, h.now(), params)
	}
	return success(c, res.Data, res.FetchedAt, params)
}

func (h *handlers) schedule(c echo.Context) error {
	code := c.Param("airport")
	start := c.QueryParam("startDate")
	end := c.QueryParam("endDate")
	params := map[string]any{"airport": code, "startDate": start, "endDate": end}

	res, err := h.svc.Schedule(c.Request().Context(), code, start, end)
	if err != nil {
		return failure(c, err, h.now(), params)
	}
	return success(c, res.Data, res.FetchedAt, params)
}

// airlines ignores the airport segment of /api/airlines/:airport; the
// directory is not airport-scoped.
func (h *handlers) airlines(c echo.Context) error {
	res, err := h.svc.Airlines(c.Request().Context())
	if err != nil {
		return failure(c, err, h.now(), nil)
	}
	return success(c, res.Data, res.FetchedAt, nil)
}

func (h *handlers) airports(c echo.Context) error {
	return success(c, airport.Airports, h.now(), nil)
}

type cacheEntryView struct {
	AgeSeconds float64   `json:"ageSeconds"`
	StoredAt   time.Time `json:"storedAt"`
	Present    bool      `json:"present"`
}

type windowView struct {
	LastCallAt        time.Time `json:"lastCallAt"`
	RetryAfterSeconds float64   `json:"retryAfterSeconds"`
	Open              bool      `json:"open"`
}

func (h *handlers) cacheStatus(c echo.Context) error {
	entries := make(map[string]cacheEntryView)
	for key, st := range h.svc.CacheStatus() {
		entries[key] = cacheEntryView{
			AgeSeconds: st.Age.Seconds(),
			StoredAt:   st.StoredAt,
			Present:    st.Present,
		}
	}

	windows := make(map[string]windowView)
	for key, st := range h.svc.RateLimitStatus() {
		windows[key] = windowView{
			LastCallAt:        st.LastCallAt,
			RetryAfterSeconds: st.RetryAfter.Seconds(),
			Open:              st.Open,
		}
	}

	return success(c, map[string]any{
		"entries":    entries,
		"rateLimits": windows,
	}, h.now(), nil)
}

func (h *handlers) clearCache(c echo.Context) error {
	key := c.QueryParam("key")
	removed := h.svc.ClearCache(key)

	cleared := key
	if key == "" {
		cleared = "all"
	}
	return success(c, map[string]any{
		"cleared": cleared,
		"removed": removed,
	}, h.now(), map[string]any{"key": key})
}
