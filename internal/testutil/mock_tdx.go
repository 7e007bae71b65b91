// Package testutil provides a fake TDX server for tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

const (
	// TokenPath is where the fake serves the client-credentials endpoint.
	TokenPath = "/auth/token"

	// APIPrefix is the fake API root; use APIBaseURL() as the client base URL.
	APIPrefix = "/api/basic"

	// ClientID and ClientSecret are the credentials the fake accepts.
	ClientID     = "test-client"
	ClientSecret = "test-secret"
)

// MockResponse defines the behavior for a mock API endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockTDX is a configurable fake of the TDX auth and API endpoints.
type MockTDX struct {
	server *httptest.Server

	mu          sync.RWMutex
	responses   map[string]MockResponse
	tokenStatus int
	expiresIn   int

	tokenCount   int
	apiCount     int
	pathCounts   map[string]int
	lastAuth     string
	lastRawQuery map[string]string
	issued       int
}

// NewMockTDX starts a fake TDX server. Tokens live for an hour by default.
func NewMockTDX() *MockTDX {
	m := &MockTDX{
		responses:    make(map[string]MockResponse),
		tokenStatus:  http.StatusOK,
		expiresIn:    3600,
		pathCounts:   make(map[string]int),
		lastRawQuery: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(TokenPath, m.handleToken)
	mux.HandleFunc(APIPrefix+"/", m.handleAPI)
	m.server = httptest.NewServer(mux)

	return m
}

// URL returns the server root URL.
func (m *MockTDX) URL() string {
	return m.server.URL
}

// TokenURL returns the client-credentials endpoint URL.
func (m *MockTDX) TokenURL() string {
	return m.server.URL + TokenPath
}

// APIBaseURL returns the URL to use as the API client base.
func (m *MockTDX) APIBaseURL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockTDX) Close() {
	m.server.Close()
}

// SetResponse configures the response for an API path (without APIPrefix,
// without query), e.g. "/v2/Air/FIDS/Airport/Departure/TPE".
func (m *MockTDX) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = resp
}

// SetJSON configures a 200 response with body for path.
func (m *MockTDX) SetJSON(path, body string) {
	m.SetResponse(path, MockResponse{StatusCode: http.StatusOK, Body: body})
}

// SetTokenStatus makes the token endpoint answer with status.
func (m *MockTDX) SetTokenStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenStatus = status
}

// SetTokenLifetime sets expires_in for subsequently issued tokens.
func (m *MockTDX) SetTokenLifetime(seconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiresIn = seconds
}

// TokenCount returns the number of token exchanges attempted.
func (m *MockTDX) TokenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokenCount
}

// APICount returns the number of API requests received.
func (m *MockTDX) APICount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.apiCount
}

// PathCount returns the number of requests received for path.
func (m *MockTDX) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// LastQuery returns the raw query string last received for path.
func (m *MockTDX) LastQuery(path string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRawQuery[path]
}

// LastAuthorization returns the Authorization header of the last API request.
func (m *MockTDX) LastAuthorization() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAuth
}

func (m *MockTDX) handleToken(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.tokenCount++
	status := m.tokenStatus
	expiresIn := m.expiresIn
	m.mu.Unlock()

	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"unsupported_grant_type"}`)
		return
	}
	if r.PostForm.Get("client_id") != ClientID || r.PostForm.Get("client_secret") != ClientSecret {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client"}`)
		return
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
		fmt.Fprint(w, `{"error":"temporarily_unavailable"}`)
		return
	}

	m.mu.Lock()
	m.issued++
	n := m.issued
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token":"mock-token-%d","token_type":"Bearer","expires_in":%d}`, n, expiresIn)
}

func (m *MockTDX) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, APIPrefix)

	m.mu.Lock()
	m.apiCount++
	m.pathCounts[path]++
	m.lastAuth = r.Header.Get("Authorization")
	m.lastRawQuery[path] = r.URL.RawQuery
	resp, ok := m.responses[path]
	m.mu.Unlock()

	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer mock-token-") {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"missing bearer token"}`)
		return
	}

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"no such resource"}`)
		return
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		fmt.Fprint(w, resp.Body)
	}
}

// Sample payloads in TDX field naming.
const (
	DepartureTPE = `[{"FlightDate":"2024-01-01","FlightNumber":"BR189","AirlineID":"BR","DepartureAirportID":"TPE","ArrivalAirportID":"HND","ScheduleDepartureTime":"2024-01-01T08:20","DepartureRemark":"已飛 DEPARTED","Terminal":"2","Gate":"D5","UpdateTime":"2024-01-01T08:30:00+08:00"},{"FlightDate":"2024-01-01","FlightNumber":"CI100","AirlineID":"CI","DepartureAirportID":"TPE","ArrivalAirportID":"NRT","ScheduleDepartureTime":"2024-01-01T08:45","Terminal":"1"}]`

	ArrivalTPE = `[{"FlightDate":"2024-01-01","FlightNumber":"JL809","AirlineID":"JL","DepartureAirportID":"NRT","ArrivalAirportID":"TPE","ScheduleArrivalTime":"2024-01-01T09:10","ArrivalRemark":"抵達 ARRIVED","Terminal":"2"}]`

	MetarTPE = `[{"AirportID":"TPE","StationID":"RCTP","MetarText":"RCTP 010030Z 05012KT 9999 FEW020 22/17 Q1018 NOSIG","ObservationTime":"2024-01-01T08:30:00+08:00","Temperature":22,"DewPoint":17}]`

	ScheduleTPE = `[{"AirlineID":"BR","FlightNumber":"BR189","ScheduleStartDate":"2023-10-29","ScheduleEndDate":"2024-03-30","DepartureAirportID":"TPE","DepartureTime":"08:20","ArrivalAirportID":"HND","ArrivalTime":"12:20","Monday":true,"Tuesday":true}]`

	Airlines = `[{"AirlineID":"BR","AirlineName":{"Zh_tw":"長榮航空","En":"EVA Airways"},"AirlineIATA":"BR","AirlineICAO":"EVA","AirlineNationality":"TW"},{"AirlineID":"CI","AirlineName":{"Zh_tw":"中華航空","En":"China Airlines"},"AirlineIATA":"CI","AirlineICAO":"CAL"}]`
)
