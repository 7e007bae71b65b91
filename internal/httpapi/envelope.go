package httpapi

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skylane-tw/tdx-air-gateway/pkg/gateway"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Envelope is the JSON body of every /api response.
type Envelope struct {
	Status    string         `json:"status"`
	Data      any            `json:"data,omitempty"`
	Error     *ErrorBody     `json:"error,omitempty"`
	UpdatedAt string         `json:"updatedAt"`
	Params    map[string]any `json:"params"`
}

// ErrorBody carries the gateway error kind and a readable message.
type ErrorBody struct {
	Kind    gateway.Kind `json:"kind"`
	Message string       `json:"message"`
}

func success(c echo.Context, data any, updatedAt time.Time, params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	return c.JSON(http.StatusOK, Envelope{
		Status:    statusSuccess,
		Data:      data,
		UpdatedAt: updatedAt.UTC().Format(time.RFC3339),
		Params:    params,
	})
}

func failure(c echo.Context, err error, now time.Time, params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}

	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		gwErr = &gateway.Error{Kind: gateway.KindInternal, Message: err.Error(), Err: err}
	}

	if gwErr.Kind == gateway.KindRateLimited && gwErr.RetryAfter > 0 {
		seconds := int(math.Ceil(gwErr.RetryAfter.Seconds()))
		c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	return c.JSON(StatusFor(gwErr.Kind), Envelope{
		Status:    statusError,
		Error:     &ErrorBody{Kind: gwErr.Kind, Message: gwErr.Message},
		UpdatedAt: now.UTC().Format(time.RFC3339),
		Params:    params,
	})
}

// StatusFor maps a gateway error kind to an HTTP status code.
func StatusFor(kind gateway.Kind) int {
	switch kind {
	case gateway.KindInvalidInput:
		return http.StatusBadRequest
	case gateway.KindRateLimited:
		return http.StatusTooManyRequests
	case gateway.KindAuthFailure, gateway.KindUpstreamError, gateway.KindInvalidUpstreamShape:
		return http.StatusBadGateway
	case gateway.KindCanceled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
