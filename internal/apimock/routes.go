package apimock

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/divviup/divviup-console/internal/hpke"
	"github.com/divviup/divviup-console/internal/models"
	"github.com/divviup/divviup-console/internal/validation"
)

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.record, s.delay, s.stubbed)

	r.GET("/api_url", s.handleAPIURL)
	r.GET("/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/logout", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api", s.requireMediaType, s.requireActor)
	api.GET("/users/me", s.handleCurrentUser)

	api.GET("/accounts", s.handleListAccounts)
	api.POST("/accounts", s.handleCreateAccount)
	api.GET("/accounts/:id", s.handleShowAccount)
	api.PATCH("/accounts/:id", s.handleUpdateAccount)

	api.GET("/accounts/:id/memberships", s.handleListMemberships)
	api.POST("/accounts/:id/memberships", s.handleCreateMembership)
	api.DELETE("/memberships/:id", s.handleDeleteMembership)

	api.GET("/accounts/:id/tasks", s.handleListTasks)
	api.POST("/accounts/:id/tasks", s.handleCreateTask)
	api.GET("/tasks/:id", s.handleShowTask)
	api.PATCH("/tasks/:id", s.handleUpdateTask)
	api.DELETE("/tasks/:id", s.handleDeleteTask)
	api.GET("/tasks/:id/collector_auth_tokens", s.handleCollectorAuthTokens)

	api.GET("/accounts/:id/aggregators", s.handleListAccountAggregators)
	api.POST("/accounts/:id/aggregators", s.handleCreateAggregator)
	api.GET("/aggregators", s.handleListSharedAggregators)
	api.POST("/aggregators", s.requireAdmin, s.handleCreateSharedAggregator)
	api.GET("/aggregators/:id", s.handleShowAggregator)
	api.PATCH("/aggregators/:id", s.handleUpdateAggregator)
	api.DELETE("/aggregators/:id", s.handleDeleteAggregator)

	api.GET("/accounts/:id/api_tokens", s.handleListApiTokens)
	api.POST("/accounts/:id/api_tokens", s.handleCreateApiToken)
	api.PATCH("/api_tokens/:id", s.handleUpdateApiToken)
	api.DELETE("/api_tokens/:id", s.handleDeleteApiToken)

	api.GET("/accounts/:id/collector_credentials", s.handleListCredentials)
	api.POST("/accounts/:id/collector_credentials", s.handleCreateCredential)
	api.GET("/collector_credentials/:id", s.handleShowCredential)
	api.PATCH("/collector_credentials/:id", s.handleUpdateCredential)
	api.DELETE("/collector_credentials/:id", s.handleDeleteCredential)

	admin := api.Group("/admin", s.requireAdmin)
	admin.GET("/queue", s.handleListJobs)
	admin.GET("/queue/:id", s.handleShowJob)
	admin.DELETE("/queue/:id", s.handleDeleteJob)

	return r
}

// middleware

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method:  c.Request.Method,
		Path:    c.Request.URL.Path,
		Query:   c.Request.URL.RawQuery,
		Headers: c.Request.Header.Clone(),
		Time:    time.Now(),
	})
	s.mu.Unlock()
	c.Next()
}

func (s *Server) delay(c *gin.Context) {
	s.mu.Lock()
	latency := s.latency
	s.mu.Unlock()
	if latency > 0 {
		time.Sleep(latency)
	}
	c.Next()
}

func (s *Server) stubbed(c *gin.Context) {
	s.mu.Lock()
	stub, ok := s.stubs[c.Request.Method+" "+c.Request.URL.Path]
	s.mu.Unlock()
	if !ok {
		c.Next()
		return
	}
	if stub.Body == nil {
		c.AbortWithStatus(stub.StatusCode)
		return
	}
	c.AbortWithStatusJSON(stub.StatusCode, stub.Body)
}

func (s *Server) requireMediaType(c *gin.Context) {
	if c.GetHeader("Accept") != MediaType {
		c.AbortWithStatusJSON(http.StatusNotAcceptable, gin.H{"error": "unsupported accept header"})
		return
	}
	if c.Request.ContentLength > 0 && c.GetHeader("Content-Type") != MediaType {
		c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported content type"})
		return
	}
	c.Next()
}

func (s *Server) requireActor(c *gin.Context) {
	token, bearer := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	s.mu.Lock()
	tokenOK := bearer && s.tokenKnown(token)
	loggedIn := s.user != nil
	s.mu.Unlock()

	switch {
	case tokenOK:
		c.Set("token", true)
	case !loggedIn:
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.Next()
}

func (s *Server) requireAdmin(c *gin.Context) {
	s.mu.Lock()
	admin := c.GetBool("token") || (s.user != nil && s.user.Admin)
	s.mu.Unlock()
	if !admin {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.Next()
}

func (s *Server) tokenKnown(token string) bool {
	if s.tokens[token] {
		return true
	}
	for _, t := range s.apiTokens {
		if t.DeletedAt == nil && t.TokenHash == hashToken(token) {
			return true
		}
	}
	return false
}

// helpers

func invalid(c *gin.Context, errs validation.Node) bool {
	if errs.Empty() {
		return false
	}
	c.JSON(http.StatusBadRequest, errs)
	return true
}

func bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		errs := validation.Node{}
		errs.Add("body", validation.NewViolation("json").WithMessage(err.Error()))
		c.JSON(http.StatusBadRequest, errs)
		return false
	}
	return true
}

func idParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) account(c *gin.Context) (*models.Account, bool) {
	id, ok := idParam(c)
	if !ok {
		return nil, false
	}
	account, ok := s.accounts[id]
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return nil, false
	}
	return account, true
}

func randomToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// origin

func (s *Server) handleAPIURL(c *gin.Context) {
	s.mu.Lock()
	apiURL := s.apiURL
	s.mu.Unlock()
	if apiURL == "" {
		apiURL = s.URL + "/"
	}
	c.JSON(http.StatusOK, apiURL)
}

// users and accounts

func (s *Server) handleCurrentUser(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.JSON(http.StatusOK, s.user)
}

func (s *Server) handleListAccounts(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateAccount(c *gin.Context) {
	var body models.NewAccount
	if !bind(c, &body) || invalid(c, body.Validate()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusAccepted, s.createAccount(body.Name))
}

func (s *Server) handleShowAccount(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account, ok := s.account(c); ok {
		c.JSON(http.StatusOK, account)
	}
}

func (s *Server) handleUpdateAccount(c *gin.Context) {
	var body models.UpdateAccount
	if !bind(c, &body) || invalid(c, body.Validate()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.account(c)
	if !ok {
		return
	}
	if body.Name != nil {
		account.Name = *body.Name
	}
	if body.IntendsToUseSharedAggregators != nil {
		v := *body.IntendsToUseSharedAggregators
		account.IntendsToUseSharedAggregators = &v
	}
	account.UpdatedAt = s.now()
	c.JSON(http.StatusAccepted, account)
}

// memberships

func (s *Server) handleListMemberships(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.account(c)
	if !ok {
		return
	}
	out := []models.Membership{}
	for _, m := range s.memberships {
		if m.AccountID == account.ID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserEmail < out[j].UserEmail })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateMembership(c *gin.Context) {
	var body models.NewMembership
	if !bind(c, &body) || invalid(c, body.Validate()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.account(c)
	if !ok {
		return
	}
	m := &models.Membership{ID: uuid.New(), AccountID: account.ID, UserEmail: body.UserEmail, CreatedAt: s.now()}
	s.memberships[m.ID] = m
	c.JSON(http.StatusCreated, m)
}

func (s *Server) handleDeleteMembership(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, ok := s.memberships[id]; !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	delete(s.memberships, id)
	c.Status(http.StatusNoContent)
}

// tasks

func (s *Server) handleListTasks(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.account(c)
	if !ok {
		return
	}
	out := []models.Task{}
	for _, t := range s.tasks {
		if t.AccountID == account.ID && t.DeletedAt == nil {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var body models.NewTask
	if !bind(c, &body) || invalid(c, body.Validate()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.account(c)
	if !ok {
		return
	}

	errs := validation.Node{}
	if _, ok := s.aggregators[body.LeaderAggregatorID]; !ok {
		errs.Add("leader_aggregator_id", validation.NewViolation("required"))
	}
	if _, ok := s.aggregators[body.HelperAggregatorID]; !ok {
		errs.Add("helper_aggregator_id", validation.NewViolation("required"))
	}
	if _, ok := s.credentials[body.CollectorCredentialID]; !ok {
		errs.Add("collector_credential_id", validation.NewViolation("required"))
	}
	if invalid(c, errs) {
		return
	}

	now := s.now()
	task := &models.Task{
		ID:                         randomToken()[:43],
		AccountID:                  account.ID,
		Name:                       body.Name,
		Vdaf:                       *body.Vdaf,
		MinBatchSize:               body.MinBatchSize,
		MaxBatchSize:               body.MaxBatchSize,
		BatchTimeWindowSizeSeconds: body.BatchTimeWindowSizeSeconds,
		TimePrecisionSeconds:       body.TimePrecisionSeconds,
		CreatedAt:                  now,
		UpdatedAt:                  now,
		LeaderAggregatorID:         body.LeaderAggregatorID,
		HelperAggregatorID:         body.HelperAggregatorID,
		CollectorCredentialID:      body.CollectorCredentialID,
	}
	s.tasks[task.ID] = task
	s.authTokens[task.ID] = models.CollectorAuthToken{Type: "Bearer", Token: randomToken()}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) task(c *gin.Context) (*models.Task, bool) {
	task, ok := s.tasks[c.Param("id")]
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return nil, false
	}
	return task, true
}

func (s *Server) handleShowTask(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.task(c); ok {
		c.JSON(http.StatusOK, task)
	}
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var body models.UpdateTask
	if !bind(c, &body) || invalid(c, body.Validate()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.task(c)
	if !ok {
		return
	}
	if body.Name != nil {
		task.Name = *body.Name
	}
	if body.Expiration != nil {
		task.Expiration = body.Expiration.At
	}
	task.UpdatedAt = s.now()
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.task(c)
	if !ok {
		return
	}
	if task.DeletedAt == nil {
		now := s.now()
		if task.Expiration == nil || task.Expiration.After(now) {
			task.Expiration = &now
		}
		task.DeletedAt = &now
		task.UpdatedAt = now
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCollectorAuthTokens(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.task(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, []models.CollectorAuthToken{s.authTokens[task.ID]})
}

// aggregators

func (s *Server) listAggregators(include func(*models.Aggregator) bool) []models.Aggregator {
	out := []models.Aggregator{}
	for _, a := range s.aggregators {
		if a.DeletedAt == nil && include(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Server) handleListAccountAggregators(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.account(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.listAggregators(func(a *models.Aggregator) bool {
		return a.AccountID == nil || *a.AccountID == account.ID
	}))
}

func (s *Server) handleListSharedAggregators(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.listAggregators(func(a *models.Aggregator) bool { return a.AccountID == nil }))
}

func (s *Server) storeAggregator(accountID *uuid.UUID, name, apiURL, bearerToken string, firstParty bool) *models.Aggregator {
	now := s.now()
	agg := &models.Aggregator{
		ID:           uuid.New(),
		AccountID:    accountID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Role:         models.RoleEither,
		Name:         name,
		DapURL:       strings.TrimSuffix(apiURL, "/") + "/dap/",
		APIURL:       apiURL,
		IsFirstParty: firstParty,
		Vdafs:        []string{"Prio3Count", "Prio3Sum", "Prio3Histogram"},
		QueryTypes:   []string{"TimeInterval", "FixedSize"},
		Features:     models.Features{models.FeatureTokenHash},
		Protocol:     models.ProtocolDAP09,
	}
	s.aggregators[agg.ID] = agg
	s.bearerTokens[agg.ID] = bearerToken
	return agg
}

func (s *Server) handleCreateAggregator(c *gin.Context) {
	var body models.NewAggregator
	if !bind(c, &body) || invalid(c, body.Validate()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.account(c)
	if !ok {
		return
	}
	accountID := account.ID
	c.JSON(http.StatusCreated, s.storeAggregator(&accountID, body.Name, body.APIURL, body.BearerToken, false))
}

func (s *Server) handleCreateSharedAggregator(c *gin.Context) {
	var body models.NewSharedAggregator
	if !bind(c, &body) || invalid(c, body.Validate()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusCreated, s.storeAggregator(nil, body.Name, body.APIURL, body.BearerToken, body.IsFirstParty))
}

func (s *Server) aggregator(c *gin.Context) (*models.Aggregator, bool) {
	id, ok := idParam(c)
	if !ok {
		return nil, false
	}
	agg, ok := s.aggregators[id]
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return nil, false
	}
	return agg, true
}

func (s *Server) handleShowAggregator(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if agg, ok := s.aggregator(c); ok {
		c.JSON(http.StatusOK, agg)
	}
}

func (s *Server) handleUpdateAggregator(c *gin.Context) {
	var body models.UpdateAggregator
	if !bind(c, &body) || invalid(c, body.Validate()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.aggregator(c)
	if !ok {
		return
	}
	if body.Name != nil {
		agg.Name = *body.Name
	}
	if body.BearerToken != nil {
		s.bearerTokens[agg.ID] = *body.BearerToken
	}
	agg.UpdatedAt = s.now()
	c.JSON(http.StatusOK, agg)
}

func (s *Server) handleDeleteAggregator(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.aggregator(c)
	if !ok {
		return
	}
	if agg.DeletedAt == nil {
		now := s.now()
		agg.DeletedAt = &now
	}
	c.Status(http.StatusNoContent)
}

// api tokens

func (s *Server) handleListApiTokens(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.account(c)
	if !ok {
		return
	}
	out := []models.ApiToken{}
	for _, t := range s.apiTokens {
		if t.AccountID == account.ID && t.DeletedAt == nil {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateApiToken(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.account(c)
	if !ok {
		return
	}
	now := s.now()
	secret := randomToken()
	token := &models.ApiToken{
		ID:        uuid.New(),
		AccountID: account.ID,
		TokenHash: hashToken(secret),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.apiTokens[token.ID] = token

	created := *token
	created.Token = &secret
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateApiToken(c *gin.Context) {
	var body models.UpdateApiToken
	if !bind(c, &body) || invalid(c, body.Validate()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := idParam(c)
	if !ok {
		return
	}
	token, ok := s.apiTokens[id]
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	name := body.Name
	token.Name = &name
	token.UpdatedAt = s.now()
	c.JSON(http.StatusOK, token)
}

func (s *Server) handleDeleteApiToken(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := idParam(c)
	if !ok {
		return
	}
	token, ok := s.apiTokens[id]
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	now := s.now()
	token.DeletedAt = &now
	c.Status(http.StatusNoContent)
}

// collector credentials

func (s *Server) handleListCredentials(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.account(c)
	if !ok {
		return
	}
	out := []models.CollectorCredential{}
	for _, cred := range s.credentials {
		if cred.AccountID == account.ID && cred.DeletedAt == nil {
			out = append(out, *cred)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateCredential(c *gin.Context) {
	var body models.NewCollectorCredential
	if !bind(c, &body) || invalid(c, body.Validate()) {
		return
	}

	raw, _ := base64.StdEncoding.DecodeString(body.HpkeConfig)
	config, err := hpke.Decode(raw)
	if err != nil {
		errs := validation.Node{}
		errs.Add("hpke_config", validation.NewViolation("hpke_config").WithMessage(err.Error()))
		invalid(c, errs)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.account(c)
	if !ok {
		return
	}
	now := s.now()
	secret := randomToken()
	hash := hashToken(secret)
	cred := &models.CollectorCredential{
		ID:         uuid.New(),
		AccountID:  account.ID,
		HpkeConfig: config,
		Name:       body.Name,
		CreatedAt:  now,
		UpdatedAt:  now,
		TokenHash:  &hash,
	}
	s.credentials[cred.ID] = cred

	created := *cred
	created.Token = &secret
	c.JSON(http.StatusCreated, created)
}

func (s *Server) credential(c *gin.Context) (*models.CollectorCredential, bool) {
	id, ok := idParam(c)
	if !ok {
		return nil, false
	}
	cred, ok := s.credentials[id]
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return nil, false
	}
	return cred, true
}

func (s *Server) handleShowCredential(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cred, ok := s.credential(c); ok {
		c.JSON(http.StatusOK, cred)
	}
}

func (s *Server) handleUpdateCredential(c *gin.Context) {
	var body models.UpdateCollectorCredential
	if !bind(c, &body) || invalid(c, body.Validate()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credential(c)
	if !ok {
		return
	}
	name := body.Name
	cred.Name = &name
	cred.UpdatedAt = s.now()
	c.JSON(http.StatusOK, cred)
}

func (s *Server) handleDeleteCredential(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credential(c)
	if !ok {
		return
	}
	now := s.now()
	cred.DeletedAt = &now
	c.Status(http.StatusNoContent)
}

// admin queue

func (s *Server) handleListJobs(c *gin.Context) {
	var filter *models.JobStatus
	if raw := c.Query("status"); raw != "" {
		if status, err := models.ParseJobStatus(raw); err == nil {
			filter = &status
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.QueueJob{}
	for _, job := range s.jobs {
		if filter == nil || job.Status == *filter {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleShowJob(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := idParam(c)
	if !ok {
		return
	}
	job, ok := s.jobs[id]
	if !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, ok := s.jobs[id]; !ok {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	delete(s.jobs, id)
	c.Status(http.StatusNoContent)
}
