package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key identifies one logical upstream query. Two different queries never
// share a Key string because every query parameter takes part in it.
type Key struct {
	// Resource is the logical resource kind (e.g. "departure").
	Resource string

	// Endpoint is the upstream path (e.g. "/v2/Air/FIDS/Airport/Departure/TPE").
	Endpoint string

	// QueryParams are the OData query options ($top, $orderby, $filter, $format).
	QueryParams url.Values
}

// String generates a deterministic key string.
// Format: tdx:resource:endpoint:param1=val1:param2=val2
//
// Example:
//
//	tdx:departure:v2/Air/FIDS/Airport/Departure/TPE:$format=JSON:$orderby=ScheduleDepartureTime:$top=30
func (k Key) String() string {
	parts := []string{"tdx"}

	if k.Resource != "" {
		parts = append(parts, k.Resource)
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	for _, name := range sortedNames(k.QueryParams) {
		parts = append(parts, name+"="+k.QueryParams.Get(name))
	}

	return strings.Join(parts, ":")
}

// RequestURI renders the endpoint and query for the upstream request.
// url.Values.Encode would escape the leading '$' of OData options and turn
// spaces into '+', so values are escaped individually with %20 for spaces.
func (k Key) RequestURI() string {
	names := sortedNames(k.QueryParams)
	if len(names) == 0 {
		return k.Endpoint
	}

	var b strings.Builder
	b.WriteString(k.Endpoint)
	for i, name := range names {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.ReplaceAll(url.QueryEscape(k.QueryParams.Get(name)), "+", "%20"))
	}
	return b.String()
}

func sortedNames(values url.Values) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
