// Package apimock is an in-memory fake of the Divvi Up API for tests. One
// server plays both the console origin (serving /api_url) and the API.
package apimock

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/models"
)

// MediaType is the content type the fake requires on API requests.
const MediaType = "application/vnd.divviup+json;version=0.1"

// StubResponse replaces the handler of one route.
type StubResponse struct {
	StatusCode int
	Body       interface{}
}

// RecordedRequest is one request seen by the fake.
type RecordedRequest struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Time    time.Time
}

// Server is the fake API.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	user         *models.User
	tokens       map[string]bool
	latency      time.Duration
	apiURL       string
	stubs        map[string]StubResponse
	requests     []RecordedRequest
	accounts     map[uuid.UUID]*models.Account
	memberships  map[uuid.UUID]*models.Membership
	tasks        map[string]*models.Task
	aggregators  map[uuid.UUID]*models.Aggregator
	bearerTokens map[uuid.UUID]string
	apiTokens    map[uuid.UUID]*models.ApiToken
	credentials  map[uuid.UUID]*models.CollectorCredential
	jobs         map[uuid.UUID]*models.QueueJob
	authTokens   map[string]models.CollectorAuthToken
	now          func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithUser starts the fake with a logged-in user.
func WithUser(user models.User) Option {
	return func(s *Server) {
		s.user = &user
	}
}

// WithToken accepts token as an API bearer token.
func WithToken(token string) Option {
	return func(s *Server) {
		s.tokens[token] = true
	}
}

// WithLatency delays every response, so concurrent callers overlap.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

// WithAPIURL overrides the document served at /api_url.
func WithAPIURL(raw string) Option {
	return func(s *Server) {
		s.apiURL = raw
	}
}

// New starts a fake API. Close it when done.
func New(opts ...Option) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		tokens:       make(map[string]bool),
		stubs:        make(map[string]StubResponse),
		accounts:     make(map[uuid.UUID]*models.Account),
		memberships:  make(map[uuid.UUID]*models.Membership),
		tasks:        make(map[string]*models.Task),
		aggregators:  make(map[uuid.UUID]*models.Aggregator),
		bearerTokens: make(map[uuid.UUID]string),
		apiTokens:    make(map[uuid.UUID]*models.ApiToken),
		credentials:  make(map[uuid.UUID]*models.CollectorCredential),
		jobs:         make(map[uuid.UUID]*models.QueueJob),
		authTokens:   make(map[string]models.CollectorAuthToken),
		now:          func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewServer(s.routes())
	return s
}

// SetUser replaces the session user; nil logs out.
func (s *Server) SetUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// Stub forces the response of method+path, e.g. ("PATCH", "/api/tasks/x").
func (s *Server) Stub(method, path string, status int, body interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubs[method+" "+path] = StubResponse{StatusCode: status, Body: body}
}

// ClearStubs removes every stub.
func (s *Server) ClearStubs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubs = make(map[string]StubResponse)
}

// Requests returns every recorded request.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Hits counts requests to method+path.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// AddAccount seeds an account.
func (s *Server) AddAccount(name string) models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.createAccount(name)
}

// AddAggregator seeds an aggregator. A nil accountID makes it shared.
func (s *Server) AddAggregator(accountID *uuid.UUID, name string, role models.Role) models.Aggregator {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	agg := &models.Aggregator{
		ID:           uuid.New(),
		AccountID:    accountID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Role:         role,
		Name:         name,
		DapURL:       "https://dap.example/" + strings.ToLower(name) + "/",
		APIURL:       "https://api.example/" + strings.ToLower(name) + "/",
		IsFirstParty: accountID == nil,
		Vdafs:        []string{"Prio3Count", "Prio3Sum", "Prio3Histogram"},
		QueryTypes:   []string{"TimeInterval", "FixedSize"},
		Features:     models.Features{models.FeatureTokenHash},
		Protocol:     models.ProtocolDAP09,
	}
	s.aggregators[agg.ID] = agg
	return *agg
}

// AddJob seeds a queue job.
func (s *Server) AddJob(jobType string, status models.JobStatus, errorMessage string) models.QueueJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	job := &models.QueueJob{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		Status:    status,
		Job:       []byte(`{"version":"V1","type":"` + jobType + `"}`),
	}
	if errorMessage != "" {
		job.ErrorMessage = []byte(`{"ClientOther":"` + errorMessage + `"}`)
		job.FailureCount = 1
	}
	s.jobs[job.ID] = job
	return *job
}

// SetJobStatus changes a seeded job's status.
func (s *Server) SetJobStatus(id uuid.UUID, status models.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = status
		job.UpdatedAt = s.now()
	}
}

func (s *Server) createAccount(name string) *models.Account {
	now := s.now()
	account := &models.Account{ID: uuid.New(), Name: name, CreatedAt: now, UpdatedAt: now}
	s.accounts[account.ID] = account
	return account
}
