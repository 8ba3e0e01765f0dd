package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divviup/divviup-console/internal/apimock"
	apierrors "github.com/divviup/divviup-console/internal/errors"
	"github.com/divviup/divviup-console/internal/hpke"
	"github.com/divviup/divviup-console/internal/models"
)

func setup(t *testing.T, opts ...apimock.Option) (*apimock.Server, *Client) {
	t.Helper()
	srv := apimock.New(append([]apimock.Option{apimock.WithUser(testUser)}, opts...)...)
	t.Cleanup(srv.Close)
	return srv, newTestClient(t, srv)
}

func TestAccounts(t *testing.T) {
	_, c := setup(t)
	ctx := context.Background()

	result, err := c.CreateAccount(ctx, models.NewAccount{Name: "Acme"})
	require.NoError(t, err)
	account, ok := result.Value()
	require.True(t, ok)
	assert.Equal(t, "Acme", account.Name)

	result, err = c.CreateAccount(ctx, models.NewAccount{Name: ""})
	require.NoError(t, err, "validation failures are not errors")
	require.True(t, result.Failed())
	msg, _ := result.FormErrors().Get("name")
	assert.Equal(t, "is required", msg)
	_, err = result.Unwrap()
	var failed *apierrors.ValidationFailed
	assert.True(t, errors.As(err, &failed))

	first, err := c.Account(ctx, account.ID)
	require.NoError(t, err)
	second, err := c.Account(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	renamed, err := c.RenameAccount(ctx, account.ID, "Acme Corp")
	require.NoError(t, err)
	updated, err := renamed.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", updated.Name)

	yes := true
	result, err = c.UpdateAccount(ctx, account.ID, models.UpdateAccount{IntendsToUseSharedAggregators: &yes})
	require.NoError(t, err)
	updated, err = result.Unwrap()
	require.NoError(t, err)
	require.NotNil(t, updated.IntendsToUseSharedAggregators)
	assert.True(t, *updated.IntendsToUseSharedAggregators)
	assert.Equal(t, "Acme Corp", updated.Name)

	accounts, err := c.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	_, err = c.Account(ctx, uuid.New())
	assert.True(t, apierrors.IsNotFound(err))
}

func TestMemberships(t *testing.T) {
	srv, c := setup(t)
	ctx := context.Background()
	account := srv.AddAccount("Acme")

	result, err := c.CreateMembership(ctx, account.ID, models.NewMembership{UserEmail: "not-an-email"})
	require.NoError(t, err)
	msg, _ := result.FormErrors().Get("user_email")
	assert.Equal(t, "must be a valid email", msg)

	result, err = c.CreateMembership(ctx, account.ID, models.NewMembership{UserEmail: "dev@example.com"})
	require.NoError(t, err)
	membership, err := result.Unwrap()
	require.NoError(t, err)

	memberships, err := c.Memberships(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 1)
	assert.Equal(t, "dev@example.com", memberships[0].UserEmail)

	require.NoError(t, c.DeleteMembership(ctx, membership.ID))
	memberships, err = c.Memberships(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, memberships)

	assert.True(t, apierrors.IsNotFound(c.DeleteMembership(ctx, membership.ID)))
}

func TestAggregators(t *testing.T) {
	srv, c := setup(t)
	ctx := context.Background()
	account := srv.AddAccount("Acme")
	shared := srv.AddAggregator(nil, "Divvi Up", models.RoleLeader)

	result, err := c.CreateAggregator(ctx, account.ID, models.NewAggregator{
		Name: "own", APIURL: "http://insecure.example/", BearerToken: "tok",
	})
	require.NoError(t, err)
	msg, _ := result.FormErrors().Get("api_url")
	assert.Equal(t, "must be a well-formed https:// url", msg)

	result, err = c.CreateAggregator(ctx, account.ID, models.NewAggregator{
		Name: "own", APIURL: "https://own.example/", BearerToken: "tok",
	})
	require.NoError(t, err)
	own, err := result.Unwrap()
	require.NoError(t, err)
	assert.False(t, own.IsShared())
	assert.True(t, own.SupportsRole(models.RoleHelper))

	list, err := c.Aggregators(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	sharedList, err := c.SharedAggregators(ctx)
	require.NoError(t, err)
	require.Len(t, sharedList, 1)
	assert.Equal(t, shared.ID, sharedList[0].ID)
	assert.True(t, sharedList[0].IsShared())
	assert.True(t, sharedList[0].Features.Has(models.FeatureTokenHash))

	renamed, err := c.RenameAggregator(ctx, own.ID, "mine")
	require.NoError(t, err)
	agg, ok := renamed.Value()
	require.True(t, ok)
	assert.Equal(t, "mine", agg.Name)

	_, err = c.RotateAggregatorBearerToken(ctx, own.ID, "rotated")
	require.NoError(t, err)

	require.NoError(t, c.DeleteAggregator(ctx, own.ID))
	deleted, err := c.Aggregator(ctx, own.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())

	_, err = c.CreateSharedAggregator(ctx, models.NewSharedAggregator{
		Name: "shared", APIURL: "https://shared.example/", BearerToken: "tok",
	})
	assert.True(t, apierrors.IsForbidden(err), "shared aggregator creation is admin only")
}

func TestDuplicateViolationsCollapse(t *testing.T) {
	srv, c := setup(t)
	ctx := context.Background()
	account := srv.AddAccount("Acme")
	agg := srv.AddAggregator(&account.ID, "own", models.RoleEither)

	srv.Stub(http.MethodPatch, "/api/aggregators/"+agg.ID.String(), http.StatusBadRequest, map[string]any{
		"name": []map[string]any{
			{"code": "required", "message": nil, "params": map[string]any{}},
			{"code": "required", "message": nil, "params": map[string]any{}},
		},
	})

	result, err := c.RenameAggregator(ctx, agg.ID, "")
	require.NoError(t, err)
	errs, ok := result.Errors()
	require.True(t, ok)
	assert.Equal(t, 2, errs.Len())
	msg, _ := result.FormErrors().Get("name")
	assert.Equal(t, "is required", msg)
}

func TestCollectorCredentialsAndTasks(t *testing.T) {
	srv, c := setup(t)
	ctx := context.Background()
	account := srv.AddAccount("Acme")
	leader := srv.AddAggregator(nil, "leader", models.RoleLeader)
	helper := srv.AddAggregator(&account.ID, "helper", models.RoleHelper)

	result, err := c.CreateCollectorCredential(ctx, account.ID, models.NewCollectorCredential{HpkeConfig: "%%%"})
	require.NoError(t, err)
	msg, _ := result.FormErrors().Get("hpke_config")
	assert.Equal(t, "must be base64", msg)

	kp, err := hpke.GenerateKeyPair(nil)
	require.NoError(t, err)
	form, err := kp.UploadForm()
	require.NoError(t, err)

	name := "primary"
	result, err = c.CreateCollectorCredential(ctx, account.ID, models.NewCollectorCredential{Name: &name, HpkeConfig: form})
	require.NoError(t, err)
	cred, err := result.Unwrap()
	require.NoError(t, err)
	require.NotNil(t, cred.Token, "the token is returned once on creation")
	assert.Equal(t, kp.Config, cred.HpkeConfig)
	assert.Equal(t, "primary", cred.DisplayName())

	stored, err := c.CollectorCredential(ctx, cred.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Token)

	taskResult, err := c.CreateTask(ctx, account.ID, models.NewTask{Name: "bad"})
	require.NoError(t, err)
	form2 := taskResult.FormErrors()
	assert.Contains(t, form2, "vdaf")
	assert.Contains(t, form2, "min_batch_size")

	vdaf := models.CountVdaf()
	taskResult, err = c.CreateTask(ctx, account.ID, models.NewTask{
		Name:                  "clicks",
		LeaderAggregatorID:    leader.ID,
		HelperAggregatorID:    helper.ID,
		Vdaf:                  &vdaf,
		MinBatchSize:          100,
		TimePrecisionSeconds:  3600,
		CollectorCredentialID: cred.ID,
	})
	require.NoError(t, err)
	task, err := taskResult.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, models.QueryTypeTimeInterval, task.QueryType())
	assert.Equal(t, models.VdafCount, task.Vdaf.Type)

	tasks, err := c.Tasks(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	tokens, err := c.CollectorAuthTokens(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "Bearer "+tokens[0].Token, tokens[0].Header())

	past := time.Now().Add(-time.Hour)
	updated, err := c.SetTaskExpiration(ctx, task.ID, &past)
	require.NoError(t, err)
	disabled, err := updated.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, models.ExpirationDisabled, disabled.ExpirationState(time.Now()))

	updated, err = c.SetTaskExpiration(ctx, task.ID, nil)
	require.NoError(t, err)
	enabled, err := updated.Unwrap()
	require.NoError(t, err)
	assert.Nil(t, enabled.Expiration)
	assert.Equal(t, models.ExpirationEnabled, enabled.ExpirationState(time.Now()))

	renamed, err := c.RenameTask(ctx, task.ID, "views")
	require.NoError(t, err)
	got, err := renamed.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, "views", got.Name)

	require.NoError(t, c.DeleteTask(ctx, task.ID, true))
	reqs := srv.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, http.MethodDelete, last.Method)
	assert.Equal(t, "force=true", last.Query)

	deleted, err := c.Task(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())

	credResult, err := c.UpdateCollectorCredential(ctx, cred.ID, models.UpdateCollectorCredential{Name: "renamed"})
	require.NoError(t, err)
	renamedCred, err := credResult.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, "renamed", renamedCred.DisplayName())

	require.NoError(t, c.DeleteCollectorCredential(ctx, cred.ID))
	creds, err := c.CollectorCredentials(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestApiTokens(t *testing.T) {
	srv, c := setup(t)
	ctx := context.Background()
	account := srv.AddAccount("Acme")

	result, err := c.CreateApiToken(ctx, account.ID)
	require.NoError(t, err)
	token, err := result.Unwrap()
	require.NoError(t, err)
	require.NotNil(t, token.Token)

	// the new token authenticates on its own
	base, err := c.BaseURL(ctx)
	require.NoError(t, err)
	srv.SetUser(nil)
	tokenClient, err := New(srv.URL, WithToken(*token.Token))
	require.NoError(t, err)
	accounts, err := tokenClient.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	srv.SetUser(&testUser)
	assert.Equal(t, srv.URL+"/", base)

	updated, err := c.UpdateApiToken(ctx, token.ID, models.UpdateApiToken{Name: "ci"})
	require.NoError(t, err)
	named, err := updated.Unwrap()
	require.NoError(t, err)
	require.NotNil(t, named.Name)
	assert.Equal(t, "ci", *named.Name)

	tokens, err := c.ApiTokens(ctx, account.ID)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	require.NoError(t, c.DeleteApiToken(ctx, token.ID))
	tokens, err = c.ApiTokens(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestQueue(t *testing.T) {
	srv, c := setup(t)
	ctx := context.Background()

	_, err := c.QueueJobs(ctx, models.QueueQuery{})
	assert.True(t, apierrors.IsForbidden(err), "the queue is admin only")

	admin := testUser
	admin.Admin = true
	srv.SetUser(&admin)

	pending := srv.AddJob("SendInvitationEmail", models.JobPending, "")
	failed := srv.AddJob("CreateUser", models.JobFailed, "smtp unreachable")

	jobs, err := c.QueueJobs(ctx, models.QueueQuery{})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	status := models.JobFailed
	jobs, err = c.QueueJobs(ctx, models.QueueQuery{Status: &status})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, failed.ID, jobs[0].ID)
	assert.Equal(t, "CreateUser", jobs[0].Type())
	assert.Equal(t, "V1", jobs[0].Version())
	assert.Equal(t, "ClientOther: smtp unreachable", jobs[0].Error())

	reqs := srv.Requests()
	assert.Equal(t, "status=failed", reqs[len(reqs)-1].Query)

	job, err := c.QueueJob(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, job.Status)
	assert.Empty(t, job.Error())

	require.NoError(t, c.DeleteQueueJob(ctx, pending.ID))
	_, err = c.QueueJob(ctx, pending.ID)
	assert.True(t, apierrors.IsNotFound(err))
}

func TestDeleteRejectsBadRequest(t *testing.T) {
	srv, c := setup(t)
	id := uuid.New()
	srv.Stub(http.MethodDelete, "/api/aggregators/"+id.String(), http.StatusBadRequest, map[string]any{})

	err := c.DeleteAggregator(context.Background(), id)
	assert.Equal(t, http.StatusBadRequest, apierrors.StatusCode(err))
}

func TestTaskIDsMustBePathSegments(t *testing.T) {
	srv, c := setup(t)
	ctx := context.Background()

	_, err := c.Accounts(ctx)
	require.NoError(t, err)
	before := len(srv.Requests())

	for _, id := range []string{"", ".", ".."} {
		_, err := c.Task(ctx, id)
		assert.ErrorContains(t, err, "invalid task id", "Task(%q)", id)

		_, err = c.RenameTask(ctx, id, "x")
		assert.Error(t, err)

		assert.Error(t, c.DeleteTask(ctx, id, false))

		_, err = c.CollectorAuthTokens(ctx, id)
		assert.Error(t, err)
	}
	assert.Len(t, srv.Requests(), before, "nothing is sent for an invalid id")
}
