package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apierrors "github.com/divviup/divviup-console/internal/errors"
	"github.com/divviup/divviup-console/internal/logging"
)

// apiTransport is the bootstrapped state every API call needs.
type apiTransport struct {
	base *url.URL
	http *http.Client
}

// headerTransport stamps the API headers onto every outgoing request.
type headerTransport struct {
	next      http.RoundTripper
	userAgent string
	token     string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Accept", MediaType)
	req.Header.Set("Content-Type", MediaType)
	req.Header.Set("User-Agent", t.userAgent)
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	if id := logging.GetCorrelationID(req.Context()); id != "" {
		req.Header.Set(logging.CorrelationIDHeader, id)
	}
	return t.next.RoundTrip(req)
}

// newHTTPClient derives the client used for both discovery and API calls:
// the caller's client copied, with the cookie jar, instrumentation and
// redirects disabled.
func (c *Client) newHTTPClient(headers bool) *http.Client {
	var hc http.Client
	if c.httpClient != nil {
		hc = *c.httpClient
	}
	hc.Jar = c.jar
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	next = c.metrics.InstrumentRoundTripper(next)
	if headers {
		next = &headerTransport{next: next, userAgent: c.userAgent, token: c.token}
	}
	hc.Transport = next
	return &hc
}

// bootstrap resolves the API base URL and builds the API HTTP client.
func (c *Client) bootstrap(ctx context.Context) (*apiTransport, error) {
	base := c.baseURL
	if base == nil {
		discovered, err := c.discover(ctx)
		if err != nil {
			if c.metrics != nil {
				c.metrics.RecordDiscovery("error")
			}
			return nil, err
		}
		if c.metrics != nil {
			c.metrics.RecordDiscovery("success")
		}
		base = discovered
	}

	c.logger.DebugWithContext(ctx, "api client ready", "base_url", base.String())
	return &apiTransport{base: base, http: c.newHTTPClient(true)}, nil
}

// discover fetches GET /api_url on the origin's host, a JSON string
// holding the absolute API base URL. Any path on the origin is ignored.
func (c *Client) discover(ctx context.Context) (*url.URL, error) {
	wrap := func(err error) error {
		return &apierrors.ErrDiscovery{Origin: c.origin.String(), Err: err}
	}

	endpoint := c.origin.ResolveReference(&url.URL{Path: "/api_url"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, wrap(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.newHTTPClient(false).Do(req)
	if err != nil {
		return nil, wrap(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBodySize))
	if err != nil {
		return nil, wrap(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, wrap(&apierrors.StatusError{
			Method: http.MethodGet,
			URL:    endpoint.String(),
			Status: resp.StatusCode,
			Body:   string(body),
		})
	}

	var raw string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, wrap(fmt.Errorf("expected a json string: %w", err))
	}
	base, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, wrap(err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, wrap(fmt.Errorf("%q is not an absolute url", raw))
	}
	return base, nil
}
