package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divviup/divviup-console/internal/apimock"
	apierrors "github.com/divviup/divviup-console/internal/errors"
	"github.com/divviup/divviup-console/internal/logging"
	"github.com/divviup/divviup-console/internal/metrics"
	"github.com/divviup/divviup-console/internal/models"
)

var testUser = models.User{Email: "ops@example.com", Name: "Ops", Sub: "auth0|1"}

func newTestClient(t *testing.T, srv *apimock.Server, opts ...Option) *Client {
	t.Helper()
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestNewValidatesOrigin(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	_, err = New("/relative")
	assert.Error(t, err)

	base, _ := url.Parse("https://api.example/")
	c, err := New("", WithBaseURL(base))
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestRequestHeaders(t *testing.T) {
	srv := apimock.New(apimock.WithUser(testUser))
	defer srv.Close()

	c := newTestClient(t, srv, WithUserAgent("divviup-test"))
	ctx := logging.WithCorrelationID(context.Background(), "corr-123")

	user, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, testUser.Email, user.Email)

	var apiRequest *apimock.RecordedRequest
	for _, r := range srv.Requests() {
		if r.Path == "/api/users/me" {
			r := r
			apiRequest = &r
		}
	}
	require.NotNil(t, apiRequest)
	assert.Equal(t, MediaType, apiRequest.Headers.Get("Accept"))
	assert.Equal(t, MediaType, apiRequest.Headers.Get("Content-Type"))
	assert.Equal(t, "divviup-test", apiRequest.Headers.Get("User-Agent"))
	assert.Equal(t, "corr-123", apiRequest.Headers.Get(logging.CorrelationIDHeader))
	assert.Empty(t, apiRequest.Headers.Get("Authorization"))
}

func TestConcurrentCallersShareBootstrap(t *testing.T) {
	srv := apimock.New(apimock.WithUser(testUser), apimock.WithLatency(50*time.Millisecond))
	defer srv.Close()

	c := newTestClient(t, srv)

	const callers = 20
	var wg sync.WaitGroup
	users := make([]*models.User, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := c.CurrentUser(context.Background())
			assert.NoError(t, err)
			users[i] = user
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, srv.Hits(http.MethodGet, "/api_url"))
	assert.Equal(t, 1, srv.Hits(http.MethodGet, "/api/users/me"))
	for _, u := range users {
		assert.Same(t, users[0], u)
	}
	assert.True(t, c.IsLoggedIn())

	c.ForgetCurrentUser()
	assert.False(t, c.IsLoggedIn())
	_, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Hits(http.MethodGet, "/api/users/me"))
	assert.Equal(t, 1, srv.Hits(http.MethodGet, "/api_url"))
}

func TestCurrentUserForbidden(t *testing.T) {
	srv := apimock.New()
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.CurrentUser(ctx)
	require.Error(t, err)
	assert.True(t, apierrors.IsForbidden(err))
	assert.True(t, errors.Is(err, apierrors.ErrForbidden))
	assert.False(t, c.IsLoggedIn())

	login, err := c.LoginURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/login", login)
	logout, err := c.LogoutURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/logout", logout)

	srv.SetUser(&testUser)
	user, err := c.CurrentUser(ctx)
	require.NoError(t, err, "a 403 is not memoized")
	assert.Equal(t, testUser.Sub, user.Sub)
}

func TestDiscoveryFailureIsRetried(t *testing.T) {
	srv := apimock.New(apimock.WithUser(testUser))
	defer srv.Close()

	srv.Stub(http.MethodGet, "/api_url", http.StatusServiceUnavailable, nil)
	c := newTestClient(t, srv)

	_, err := c.Accounts(context.Background())
	var discovery *apierrors.ErrDiscovery
	require.True(t, errors.As(err, &discovery), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, apierrors.StatusCode(err))

	srv.ClearStubs()
	accounts, err := c.Accounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Equal(t, 2, srv.Hits(http.MethodGet, "/api_url"))
}

func TestDiscoveryRejectsNonURL(t *testing.T) {
	srv := apimock.New(apimock.WithUser(testUser), apimock.WithAPIURL("not a url"))
	defer srv.Close()

	_, err := newTestClient(t, srv).Accounts(context.Background())
	var discovery *apierrors.ErrDiscovery
	assert.True(t, errors.As(err, &discovery))
}

func TestDiscoveryIgnoresOriginPath(t *testing.T) {
	srv := apimock.New(apimock.WithUser(testUser))
	defer srv.Close()

	c, err := New(srv.URL + "/console/tasks?tab=1")
	require.NoError(t, err)

	_, err = c.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits(http.MethodGet, "/api_url"))
	assert.Zero(t, srv.Hits(http.MethodGet, "/console/tasks/api_url"))
}

func TestWaiterCancellationDoesNotAbortBootstrap(t *testing.T) {
	srv := apimock.New(apimock.WithUser(testUser), apimock.WithLatency(100*time.Millisecond))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.BaseURL(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	base, err := c.BaseURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/", base)
	assert.Equal(t, 1, srv.Hits(http.MethodGet, "/api_url"))
}

func TestTokenAuthSkipsDiscovery(t *testing.T) {
	srv := apimock.New(apimock.WithToken("secret"))
	defer srv.Close()

	base, _ := url.Parse(srv.URL)
	c, err := New("", WithBaseURL(base), WithToken("secret"))
	require.NoError(t, err)

	_, err = c.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, srv.Hits(http.MethodGet, "/api_url"))

	reqs := srv.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "Bearer secret", reqs[len(reqs)-1].Headers.Get("Authorization"))
}

func TestUnexpectedStatuses(t *testing.T) {
	srv := apimock.New(apimock.WithUser(testUser))
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	srv.Stub(http.MethodGet, "/api/accounts", http.StatusInternalServerError, map[string]string{"error": "db down"})
	_, err := c.Accounts(ctx)
	var status *apierrors.StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusInternalServerError, status.Status)
	assert.Contains(t, status.Body, "db down")

	srv.Stub(http.MethodPost, "/api/accounts", http.StatusOK, models.Account{Name: "Acme"})
	_, err = c.CreateAccount(ctx, models.NewAccount{Name: "Acme"})
	assert.Equal(t, http.StatusOK, apierrors.StatusCode(err), "a 2xx outside the expected set is an error")

	srv.Stub(http.MethodGet, "/api/accounts", http.StatusBadRequest, map[string]any{})
	_, err = c.Accounts(ctx)
	assert.Equal(t, http.StatusBadRequest, apierrors.StatusCode(err), "reads never produce validation results")

	srv.ClearStubs()
	_, err = c.Task(ctx, "missing")
	assert.True(t, apierrors.IsNotFound(err))

	srv.Stub(http.MethodGet, "/api/accounts", http.StatusOK, "not a list")
	_, err = c.Accounts(ctx)
	var decode *apierrors.ErrDecode
	assert.True(t, errors.As(err, &decode))
}

func TestNoRedirects(t *testing.T) {
	srv := apimock.New(apimock.WithUser(testUser))
	defer srv.Close()
	c := newTestClient(t, srv)

	srv.Stub(http.MethodGet, "/api/users/me", http.StatusFound, nil)
	_, err := c.CurrentUser(context.Background())
	assert.Equal(t, http.StatusFound, apierrors.StatusCode(err))
}

func TestMetricsAndLogging(t *testing.T) {
	srv := apimock.New(apimock.WithUser(testUser))
	defer srv.Close()

	var buf bytes.Buffer
	logger := logging.NewLogger(logging.WithOutput(&buf), logging.WithLevel(logging.LevelDebug))
	m := metrics.NewMetrics("clienttest")
	c := newTestClient(t, srv, WithLogger(logger), WithMetrics(m))

	_, err := c.Accounts(context.Background())
	require.NoError(t, err)
	_, err = c.CreateAccount(context.Background(), models.NewAccount{})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"message":"api request"`)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["clienttest_client_requests_total"])
	assert.True(t, names["clienttest_client_discoveries_total"])
	assert.True(t, names["clienttest_validation_failures_total"])
}
