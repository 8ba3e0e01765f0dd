package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InstrumentRoundTripper wraps next so every API round trip is counted and
// timed. A nil receiver returns next unchanged.
func (m *Metrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	if m == nil {
		return next
	}
	if next == nil {
		next = http.DefaultTransport
	}

	instrumented := promhttp.RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		endpoint := Endpoint(req.URL.Path)

		resp, err := next.RoundTrip(req)
		if err != nil {
			m.RecordClientRequest(endpoint, req.Method, "error", time.Since(start).Seconds())
			m.RecordError("transport", endpoint, req.Method)
			return nil, err
		}

		m.RecordClientRequest(endpoint, req.Method, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
		if resp.StatusCode == http.StatusBadRequest {
			m.RecordValidationFailure(endpoint)
		}
		return resp, nil
	})

	return promhttp.InstrumentRoundTripperInFlight(m.ClientRequestsInFlight, instrumented)
}

// Endpoint collapses identifiers in path so label cardinality stays bounded,
// e.g. /api/tasks/{id}/collector_auth_tokens.
func Endpoint(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		// task ids are opaque base64 rather than UUIDs
		if _, err := uuid.Parse(segment); err == nil || (i > 0 && segments[i-1] == "tasks") {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
