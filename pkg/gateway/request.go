package gateway

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skylane-tw/tdx-air-gateway/pkg/airport"
	"github.com/skylane-tw/tdx-air-gateway/pkg/cache"
	"github.com/skylane-tw/tdx-air-gateway/pkg/client"
)

// DefaultLimit is the $top used when a caller passes no limit.
const DefaultLimit = 30

const dateLayout = "2006-01-02"

// Resource is a logical upstream resource kind.
type Resource string

const (
	ResourceDeparture Resource = "departure"
	ResourceArrival   Resource = "arrival"
	ResourceRealtime  Resource = "realtime"
	ResourceWeather   Resource = "weather"
	ResourceSchedule  Resource = "schedule"
	ResourceAirlines  Resource = "airlines"
)

// scoped reports whether r needs an airport code.
func (r Resource) scoped() bool {
	return r != ResourceAirlines
}

// Request is one logical call into the gateway. It lives for a single call.
type Request struct {
	Resource  Resource
	Airport   string
	Limit     int    `validate:"gt=0"`
	StartDate string `validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `validate:"omitempty,datetime=2006-01-02"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the airport code, limit and date range. It touches no
// shared state.
func (r *Request) Validate() error {
	if r.Resource.scoped() {
		if err := airport.Validate(r.Airport); err != nil {
			return translate(err)
		}
	}

	if err := validate.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return invalidInputf("%s", describe(fieldErrs[0]))
		}
		return invalidInputf("invalid request: %v", err)
	}

	if r.StartDate != "" && r.EndDate != "" {
		start, _ := time.Parse(dateLayout, r.StartDate)
		end, _ := time.Parse(dateLayout, r.EndDate)
		if start.After(end) {
			return invalidInputf("startDate %s is after endDate %s", r.StartDate, r.EndDate)
		}
	}

	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Field() {
	case "Limit":
		return fmt.Sprintf("limit must be a positive integer, got %v", fe.Value())
	case "StartDate":
		return fmt.Sprintf("startDate %q is not YYYY-MM-DD", fe.Value())
	case "EndDate":
		return fmt.Sprintf("endDate %q is not YYYY-MM-DD", fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// key builds the cache and rate-limit key for r. The upstream request URI is
// rendered from the same key, so the two cannot drift apart.
func (r *Request) key() (cache.Key, client.Shape) {
	q := url.Values{}
	q.Set("$format", "JSON")

	switch r.Resource {
	case ResourceDeparture:
		q.Set("$orderby", "ScheduleDepartureTime")
		q.Set("$top", strconv.Itoa(r.Limit))
		return cache.Key{
			Resource:    string(r.Resource),
			Endpoint:    "/v2/Air/FIDS/Airport/Departure/" + r.Airport,
			QueryParams: q,
		}, client.ShapeSequence

	case ResourceArrival:
		q.Set("$orderby", "ScheduleArrivalTime")
		q.Set("$top", strconv.Itoa(r.Limit))
		return cache.Key{
			Resource:    string(r.Resource),
			Endpoint:    "/v2/Air/FIDS/Airport/Arrival/" + r.Airport,
			QueryParams: q,
		}, client.ShapeSequence

	case ResourceWeather:
		return cache.Key{
			Resource:    string(r.Resource),
			Endpoint:    "/v2/Air/METAR/Airport/" + r.Airport,
			QueryParams: q,
		}, client.ShapeNonEmptySequence

	case ResourceSchedule:
		var clauses []string
		if r.StartDate != "" {
			clauses = append(clauses, fmt.Sprintf("ScheduleEndDate ge '%s'", r.StartDate))
		}
		if r.EndDate != "" {
			clauses = append(clauses, fmt.Sprintf("ScheduleStartDate le '%s'", r.EndDate))
		}
		if len(clauses) > 0 {
			q.Set("$filter", strings.Join(clauses, " and "))
		}
		return cache.Key{
			Resource:    string(r.Resource),
			Endpoint:    "/v2/Air/Schedule/Departure/Airport/" + r.Airport,
			QueryParams: q,
		}, client.ShapeSequence

	case ResourceAirlines:
		return cache.Key{
			Resource:    string(r.Resource),
			Endpoint:    "/v2/Air/Airline",
			QueryParams: q,
		}, client.ShapeSequence
	}

	return cache.Key{Resource: string(r.Resource)}, client.ShapeAny
}
