package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divviup/divviup-console/internal/apimock"
	"github.com/divviup/divviup-console/internal/hpke"
	"github.com/divviup/divviup-console/internal/logging"
	"github.com/divviup/divviup-console/internal/models"
	"github.com/divviup/divviup-console/internal/store"
)

const testToken = "test-token"

type cliResult struct {
	code   int
	stdout string
	stderr string
}

type harness struct {
	t    *testing.T
	srv  *apimock.Server
	keys *store.MemoryStore
}

func newHarness(t *testing.T, opts ...apimock.Option) *harness {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, name := range []string{"DIVVIUP_CONFIG_PATH", "DIVVIUP_TOKEN", "DIVVIUP_API_URL", "DIVVIUP_ACCOUNT_ID", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID"} {
		t.Setenv(name, "")
	}

	srv := apimock.New(append([]apimock.Option{apimock.WithToken(testToken)}, opts...)...)
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv, keys: store.NewMemoryStore()}
}

// run executes one command line against the fake API with the test token.
func (h *harness) run(args ...string) cliResult {
	h.t.Helper()
	return h.runAs(testToken, args...)
}

func (h *harness) runAs(token string, args ...string) cliResult {
	h.t.Helper()

	a := newApp()
	a.newKeystore = func(string) (store.Store, error) { return h.keys, nil }
	defer a.close()

	var stdout, stderr bytes.Buffer
	cmd := a.rootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--url", h.srv.URL + "/", "--token", token}, args...))

	code := exitCode(&stderr, cmd.ExecuteContext(context.Background()))
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func decode[T any](t *testing.T, res cliResult) T {
	t.Helper()
	require.Equal(t, 0, res.code, "stderr: %s", res.stderr)
	var v T
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &v), "stdout: %s", res.stdout)
	return v
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	info := decode[VersionInfo](t, h.run("version"))
	assert.Equal(t, Version, info.Version)

	res := h.run("-o", "text", "version")
	assert.True(t, strings.HasPrefix(res.stdout, "divviup "+Version))
}

func TestAccountCreate(t *testing.T) {
	h := newHarness(t)

	account := decode[models.Account](t, h.run("account", "create", "Acme"))
	assert.Equal(t, "Acme", account.Name)

	res := h.run("-o", "yaml", "account", "list")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "name: Acme")
}

func TestAccountCreateValidationFailure(t *testing.T) {
	h := newHarness(t)

	res := h.run("account", "create", " ")
	assert.Equal(t, 1, res.code)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "Validation failed:")
	assert.Contains(t, res.stderr, "  name: is required")
}

func TestInvocationCorrelationID(t *testing.T) {
	h := newHarness(t)
	h.srv.AddAccount("Acme")

	require.Equal(t, 0, h.run("account", "get").code)
	first := h.srv.Requests()
	require.GreaterOrEqual(t, len(first), 2, "account lookup then fetch")
	id := first[0].Headers.Get(logging.CorrelationIDHeader)
	assert.NotEmpty(t, id)
	for _, r := range first {
		assert.Equal(t, id, r.Headers.Get(logging.CorrelationIDHeader), r.Path)
	}

	require.Equal(t, 0, h.run("account", "list").code)
	second := h.srv.Requests()[len(first):]
	require.NotEmpty(t, second)
	assert.NotEqual(t, id, second[0].Headers.Get(logging.CorrelationIDHeader), "each invocation gets its own id")
}

func TestAccountDetermination(t *testing.T) {
	h := newHarness(t)

	res := h.run("membership", "list")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "0 accounts visible")

	only := h.srv.AddAccount("Only")
	account := decode[models.Account](t, h.run("account", "get"))
	assert.Equal(t, only.ID, account.ID)

	other := h.srv.AddAccount("Other")
	res = h.run("account", "get")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "2 accounts visible")

	account = decode[models.Account](t, h.run("--account-id", other.ID.String(), "account", "get"))
	assert.Equal(t, other.ID, account.ID)

	require.Equal(t, 0, h.run("account", "use", other.ID.String()).code)
	account = decode[models.Account](t, h.run("account", "get"))
	assert.Equal(t, other.ID, account.ID, "the remembered account is used")
}

func TestAccountUseRequiresVisibleAccount(t *testing.T) {
	h := newHarness(t)

	res := h.run("account", "use", "d1b7c3a4-5e6f-4a8b-9c0d-1e2f3a4b5c6d")
	assert.Equal(t, 1, res.code)
	_, ok := h.keys.Settings().Get(store.SettingDefaultAccountID)
	assert.False(t, ok)

	res = h.run("account", "use", "not-a-uuid")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "is not a uuid")
}

func TestForbiddenHint(t *testing.T) {
	h := newHarness(t)

	res := h.runAs("wrong-token", "account", "list")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Check the API token")
}

func TestCredentialGenerate(t *testing.T) {
	h := newHarness(t)
	account := h.srv.AddAccount("Acme")

	generated := decode[GeneratedCredential](t, h.run("collector-credential", "generate", "--name", "main", "--config-id", "7"))
	assert.True(t, generated.Stored)
	assert.Equal(t, "main", generated.Credential.DisplayName())
	assert.Equal(t, uint8(7), generated.Credential.HpkeConfig.ID)
	assert.NotNil(t, generated.Credential.Token)

	key, err := h.keys.GetKey(generated.Credential.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, key.AccountID)
	assert.Equal(t, generated.PrivateKey, key.PrivateKey)

	private, err := base64.RawURLEncoding.DecodeString(key.PrivateKey)
	require.NoError(t, err)
	assert.True(t, hpke.PublicKeyMatches(generated.Credential.HpkeConfig, private))

	res := h.run("-o", "text", "collector-credential", "keys")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, generated.Credential.ID.String())
	assert.Contains(t, res.stdout, "main")

	require.Equal(t, 0, h.run("collector-credential", "delete", generated.Credential.ID.String()).code)
	_, err = h.keys.GetKey(generated.Credential.ID)
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
}

func TestCredentialGenerateRejectsConfigID(t *testing.T) {
	h := newHarness(t)
	h.srv.AddAccount("Acme")

	res := h.run("collector-credential", "generate", "--config-id", "256")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "between 0 and 255")
}

func TestReadCredential(t *testing.T) {
	pair, err := hpke.GenerateKeyPair(nil)
	require.NoError(t, err)
	raw, err := hpke.Encode(pair.Config)
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(raw)

	dir := t.TempDir()
	binary := filepath.Join(dir, "collector.bin")
	require.NoError(t, os.WriteFile(binary, raw, 0o600))
	text := filepath.Join(dir, "collector.txt")
	require.NoError(t, os.WriteFile(text, []byte(encoded+"\n"), 0o600))

	cred, err := readCredential(binary, "", "")
	require.NoError(t, err)
	assert.Equal(t, encoded, cred.HpkeConfig)
	require.NotNil(t, cred.Name)
	assert.Equal(t, "collector", *cred.Name)

	cred, err = readCredential(text, "", "named")
	require.NoError(t, err)
	assert.Equal(t, encoded, cred.HpkeConfig)
	assert.Equal(t, "named", *cred.Name)

	cred, err = readCredential("", encoded, "")
	require.NoError(t, err)
	assert.Equal(t, encoded, cred.HpkeConfig)
	assert.Nil(t, cred.Name)

	_, err = readCredential("", "!!!", "")
	assert.Error(t, err)
	_, err = readCredential("", base64.StdEncoding.EncodeToString([]byte{1, 2}), "")
	assert.Error(t, err)
}

func TestTaskLifecycle(t *testing.T) {
	h := newHarness(t)
	account := h.srv.AddAccount("Acme")
	leader := h.srv.AddAggregator(&account.ID, "leader", models.RoleLeader)
	helper := h.srv.AddAggregator(nil, "helper", models.RoleHelper)
	generated := decode[GeneratedCredential](t, h.run("collector-credential", "generate"))

	definition := strings.Join([]string{
		"name: page views",
		`leader_aggregator_id: "` + leader.ID.String() + `"`,
		`helper_aggregator_id: "` + helper.ID.String() + `"`,
		`collector_credential_id: "` + generated.Credential.ID.String() + `"`,
		"vdaf:",
		"  type: histogram",
		"  buckets: [10, 100, 1000]",
		"min_batch_size: 100",
		"time_precision_seconds: 3600",
	}, "\n")
	file := filepath.Join(t.TempDir(), "task.yaml")
	require.NoError(t, os.WriteFile(file, []byte(definition), 0o600))

	task := decode[models.Task](t, h.run("task", "create", "--file", file))
	assert.Equal(t, "page views", task.Name)
	assert.Equal(t, models.VdafHistogram, task.Vdaf.Type)
	require.NotNil(t, task.Vdaf.Buckets)
	assert.Equal(t, []uint64{10, 100, 1000}, task.Vdaf.Buckets.Numeric)

	renamed := decode[models.Task](t, h.run("task", "rename", task.ID, "visits"))
	assert.Equal(t, "visits", renamed.Name)

	expired := decode[models.Task](t, h.run("task", "expiration", "set", task.ID, "2030-01-02T03:04:05Z"))
	require.NotNil(t, expired.Expiration)
	assert.Equal(t, 2030, expired.Expiration.Year())

	cleared := decode[models.Task](t, h.run("task", "expiration", "clear", task.ID))
	assert.Nil(t, cleared.Expiration)

	res := h.run("task", "expiration", "set", task.ID, "tomorrow")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "RFC 3339")

	res = h.run("-o", "text", "task", "collector-auth-tokens", task.ID)
	require.Equal(t, 0, res.code, res.stderr)
	assert.True(t, strings.HasPrefix(res.stdout, "Bearer "))

	require.Equal(t, 0, h.run("task", "delete", task.ID).code)
	deleted := decode[models.Task](t, h.run("task", "get", task.ID))
	assert.True(t, deleted.IsDeleted())
}

func TestTaskCreateValidationFailure(t *testing.T) {
	h := newHarness(t)
	h.srv.AddAccount("Acme")

	file := filepath.Join(t.TempDir(), "task.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"name": "", "min_batch_size": 1}`), 0o600))

	res := h.run("task", "create", "-f", file)
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "Validation failed:")
	assert.Contains(t, res.stderr, "name: is required")
	assert.Contains(t, res.stderr, "min_batch_size: must be greater than 100")
}

func TestReadNewTaskRejectsUnknownFields(t *testing.T) {
	_, err := readNewTask(strings.NewReader(`{"name": "x", "colour": "blue"}`), "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestAggregatorCommands(t *testing.T) {
	h := newHarness(t)
	account := h.srv.AddAccount("Acme")
	agg := h.srv.AddAggregator(&account.ID, "leader", models.RoleLeader)
	h.srv.AddAggregator(nil, "shared", models.RoleHelper)

	visible := decode[[]models.Aggregator](t, h.run("aggregator", "list"))
	assert.Len(t, visible, 2, "an account sees its own and the shared aggregators")

	shared := decode[[]models.Aggregator](t, h.run("aggregator", "list", "--shared"))
	require.Len(t, shared, 1)
	assert.True(t, shared[0].IsShared())

	renamed := decode[models.Aggregator](t, h.run("aggregator", "rename", agg.ID.String(), "primary"))
	assert.Equal(t, "primary", renamed.Name)

	created := decode[models.Aggregator](t, h.run("aggregator", "create",
		"--name", "helper", "--api-url", "https://agg.example/", "--bearer-token", "secret"))
	assert.Equal(t, "https://agg.example/", created.APIURL, "--api-url names the aggregator, not the Divvi Up API")
	require.NotNil(t, created.AccountID)
	assert.Equal(t, account.ID, *created.AccountID)

	res := h.run("aggregator", "create", "--name", "x", "--api-url", "not a url")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "api_url:")

	require.Equal(t, 0, h.run("aggregator", "delete", agg.ID.String()).code)
}

func TestApiTokenCommands(t *testing.T) {
	h := newHarness(t)
	h.srv.AddAccount("Acme")

	res := h.run("-o", "text", "api-token", "create")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "cannot be shown again")

	tokens := decode[[]models.ApiToken](t, h.run("api-token", "list"))
	require.Len(t, tokens, 1)
	assert.Nil(t, tokens[0].Token, "secrets are only returned on creation")

	renamed := decode[models.ApiToken](t, h.run("api-token", "rename", tokens[0].ID.String(), "ci"))
	require.NotNil(t, renamed.Name)
	assert.Equal(t, "ci", *renamed.Name)

	require.Equal(t, 0, h.run("api-token", "delete", tokens[0].ID.String()).code)
}

func TestQueueCommands(t *testing.T) {
	h := newHarness(t)
	h.srv.AddJob("SendInvitationEmail", models.JobSuccess, "")
	failed := h.srv.AddJob("CreateUser", models.JobFailed, "smtp unreachable")

	jobs := decode[[]models.QueueJob](t, h.run("queue", "list", "--status", "failed"))
	require.Len(t, jobs, 1)
	assert.Equal(t, failed.ID, jobs[0].ID)

	res := h.run("-o", "text", "queue", "get", failed.ID.String())
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "CreateUser")
	assert.Contains(t, res.stdout, "smtp unreachable")

	res = h.run("queue", "list", "--status", "stuck")
	assert.Equal(t, 1, res.code)

	require.Equal(t, 0, h.run("queue", "delete", failed.ID.String()).code)
	jobs = decode[[]models.QueueJob](t, h.run("queue", "list"))
	assert.Len(t, jobs, 1)
}

func TestQueueWatchRequiresTelegram(t *testing.T) {
	h := newHarness(t)

	res := h.run("queue", "watch")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "notify.telegram.bot_token")
}

func TestCheck(t *testing.T) {
	h := newHarness(t)
	h.srv.AddAccount("Acme")

	results := decode[[]CheckResult](t, h.run("check"))
	require.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, checkOK, r.Status, "%s: %s", r.Name, r.Message)
	}

	res := h.runAs("wrong-token", "check")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stdout, checkFail)
	assert.Contains(t, res.stderr, "1 of 4 checks failed")
}

func TestExitCode(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 0, exitCode(&buf, nil))
	assert.Empty(t, buf.String())
}
