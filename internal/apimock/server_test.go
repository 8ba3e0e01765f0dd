package apimock

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divviup/divviup-console/internal/models"
)

func get(t *testing.T, srv *Server, path string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPIURLDocument(t *testing.T) {
	srv := New()
	defer srv.Close()

	resp := get(t, srv, "/api_url", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var apiURL string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiURL))
	assert.Equal(t, srv.URL+"/", apiURL)
}

func TestMediaTypeRequired(t *testing.T) {
	srv := New(WithUser(models.User{Email: "a@example.com"}))
	defer srv.Close()

	resp := get(t, srv, "/api/users/me", http.Header{"Accept": {"application/json"}})
	assert.Equal(t, http.StatusNotAcceptable, resp.StatusCode)

	resp = get(t, srv, "/api/users/me", http.Header{"Accept": {MediaType}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestActorRequired(t *testing.T) {
	srv := New(WithToken("secret"))
	defer srv.Close()

	resp := get(t, srv, "/api/accounts", http.Header{"Accept": {MediaType}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = get(t, srv, "/api/accounts", http.Header{
		"Accept":        {MediaType},
		"Authorization": {"Bearer secret"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv, "/api/admin/queue", http.Header{
		"Accept":        {MediaType},
		"Authorization": {"Bearer secret"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode, "api tokens act as admins")
}

func TestStubAndRecording(t *testing.T) {
	srv := New()
	defer srv.Close()

	srv.Stub(http.MethodGet, "/api_url", http.StatusTeapot, map[string]string{"error": "nope"})
	resp := get(t, srv, "/api_url", http.Header{"X-Test": {"1"}})
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "nope"))

	srv.ClearStubs()
	resp = get(t, srv, "/api_url?x=1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 2, srv.Hits(http.MethodGet, "/api_url"))
	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "1", reqs[0].Headers.Get("X-Test"))
	assert.Equal(t, "x=1", reqs[1].Query)
}

func TestJobSeeding(t *testing.T) {
	srv := New()
	defer srv.Close()

	job := srv.AddJob("SendInvitationEmail", models.JobFailed, "boom")
	assert.Equal(t, "SendInvitationEmail", job.Type())
	assert.Equal(t, "ClientOther: boom", job.Error())

	srv.SetJobStatus(job.ID, models.JobSuccess)
	srv.mu.Lock()
	status := srv.jobs[job.ID].Status
	srv.mu.Unlock()
	assert.Equal(t, models.JobSuccess, status)
}
