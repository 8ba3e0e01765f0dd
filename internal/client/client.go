// Package client is a typed client for the Divvi Up API.
//
// The API base URL is discovered lazily from the console origin's /api_url
// document the first time any operation runs. Discovery and the current
// user are fetched at most once per Client no matter how many goroutines
// ask for them concurrently.
package client

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/divviup/divviup-console/internal/logging"
	"github.com/divviup/divviup-console/internal/metrics"
	"github.com/divviup/divviup-console/internal/models"
)

// MediaType is sent as both Content-Type and Accept on every API request.
const MediaType = "application/vnd.divviup+json;version=0.1"

// DefaultUserAgent identifies the client when no WithUserAgent is given.
const DefaultUserAgent = "divviup-console"

// MaxResponseBodySize is the maximum size of response body to read (1MB)
const MaxResponseBodySize = 1 << 20

// Client talks to the Divvi Up API on behalf of one session.
type Client struct {
	origin     *url.URL
	baseURL    *url.URL
	httpClient *http.Client
	jar        http.CookieJar
	token      string
	userAgent  string
	timeout    time.Duration
	logger     *logging.Logger
	metrics    *metrics.Metrics

	api  lazy[*apiTransport]
	user lazy[*models.User]
}

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client requests are built on. The client is
// copied, never mutated.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBaseURL fixes the API base URL and skips /api_url discovery.
func WithBaseURL(base *url.URL) Option {
	return func(c *Client) {
		c.baseURL = base
	}
}

// WithToken authenticates every API request with an API token instead of
// the session cookie.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithTimeout bounds every request, including discovery.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger used for request traces.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics instruments every round trip.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithCookieJar sets the jar holding the session cookie.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.jar = jar
	}
}

// New creates a client for the console served at origin. origin may be
// empty when WithBaseURL is given.
func New(origin string, opts ...Option) (*Client, error) {
	c := &Client{
		userAgent: DefaultUserAgent,
		logger:    logging.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if origin != "" {
		parsed, err := url.Parse(origin)
		if err != nil {
			return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("invalid origin %q: must be an absolute url", origin)
		}
		c.origin = parsed
	}
	if c.origin == nil && c.baseURL == nil {
		return nil, fmt.Errorf("either an origin or a base url is required")
	}

	if c.jar == nil {
		if c.httpClient != nil && c.httpClient.Jar != nil {
			c.jar = c.httpClient.Jar
		} else {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create cookie jar: %w", err)
			}
			c.jar = jar
		}
	}

	c.api.init = c.bootstrap
	c.user.init = c.fetchCurrentUser

	return c, nil
}
