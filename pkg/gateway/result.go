package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/skylane-tw/tdx-air-gateway/pkg/client"
)

// Result is the payload of one resource call. Data is the upstream body
// exactly as received.
type Result struct {
	// Key is the endpoint signature used for caching and rate limiting.
	Key string

	Data json.RawMessage

	// Cached is true when Data came from the response cache.
	Cached bool

	// FetchedAt is when the upstream call completed, or the lookup time for
	// cache hits.
	FetchedAt time.Time
}

// RealtimeResult is the arrivals and departures board of one airport.
type RealtimeResult struct {
	Arrivals   *Result
	Departures *Result
}

// MarshalJSON renders the composite as {"arrivals": [...], "departures": [...]}.
func (r *RealtimeResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Arrivals   json.RawMessage `json:"arrivals"`
		Departures json.RawMessage `json:"departures"`
	}{r.Arrivals.Data, r.Departures.Data})
}

// Decode unmarshals a result's array payload into typed records. Missing
// fields decode to zero values.
func Decode[T any](r *Result) ([]T, error) {
	var records []T
	if err := json.Unmarshal(r.Data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.Key, err)
	}
	return records, nil
}

// Flights decodes a departures or arrivals result.
func (r *Result) Flights() ([]client.FlightRecord, error) {
	return Decode[client.FlightRecord](r)
}

// Metars decodes a weather result.
func (r *Result) Metars() ([]client.MetarRecord, error) {
	return Decode[client.MetarRecord](r)
}

// Schedules decodes a schedule result.
func (r *Result) Schedules() ([]client.ScheduleRecord, error) {
	return Decode[client.ScheduleRecord](r)
}

// Airlines decodes an airlines result.
func (r *Result) Airlines() ([]client.AirlineRecord, error) {
	return Decode[client.AirlineRecord](r)
}
