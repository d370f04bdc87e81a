package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorengranfeldt/mre/internal/api"
	"github.com/sorengranfeldt/mre/internal/audit"
	"github.com/sorengranfeldt/mre/internal/config"
	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/host/memory"
	"github.com/sorengranfeldt/mre/internal/logging"
	"github.com/sorengranfeldt/mre/internal/service"
	"github.com/sorengranfeldt/mre/internal/tasks"
)

const rulesDocument = `
rules:
  - name: ad-users
    enabled: true
    action: Provision
    subject_type: person
    target_system: AD
    target_object_type: user
    conditions:
      - present: accountName
    initial_flows:
      - kind: constant
        target: "[DN]"
        constant: "CN=#mv:accountName#,OU=Users,DC=corp,DC=example"
`

func newTestClient(t *testing.T, initialized bool) *Client {
	t.Helper()
	svc := service.NewProvisioningService("", service.WithAuditor(audit.NewInMemoryAuditor()))
	if initialized {
		cfg, err := config.Parse([]byte(rulesDocument), nil)
		require.NoError(t, err)
		require.NoError(t, svc.Apply(context.Background(), cfg))
	}

	m := tasks.NewManager()
	m.Register(context.Background(), "check-rules", 0, func(context.Context, logging.InternalLogger) error {
		return nil
	})

	srv := httptest.NewServer(api.NewServer(svc, m).Routes())
	t.Cleanup(srv.Close)

	cli, err := New(srv.URL + "/")
	require.NoError(t, err)
	return cli
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("localhost:8080")
	assert.Error(t, err)
}

func TestClient_About(t *testing.T) {
	cli := newTestClient(t, true)
	about, correlation, err := cli.About(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, correlation)
	assert.Equal(t, "MRE", about.Service)
	assert.True(t, about.Status.Initialized)
}

func TestClient_RulesAndExplain(t *testing.T) {
	cli := newTestClient(t, true)
	ctx := context.Background()

	rules, _, err := cli.Rules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, core.ActionProvision, rules[0].Action)

	fixture := &memory.Fixture{
		Subject: memory.SubjectFixture{
			ObjectType: "person",
			Attributes: map[string]any{"accountName": "jdoe"},
		},
		TargetSystems: []memory.TargetSystemFixture{{Name: "AD"}},
	}
	out, _, err := cli.Explain(ctx, fixture)
	require.NoError(t, err)
	require.Len(t, out.Changes, 1)
	assert.Equal(t, "CN=jdoe,OU=Users,DC=corp,DC=example", out.Changes[0].Name)

	entries, _, err := cli.ListAudits(ctx, ListAuditsOpts{Limit: 5, Rule: "ad-users"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].DryRun)
}

func TestClient_APIError(t *testing.T) {
	cli := newTestClient(t, false)

	_, correlation, err := cli.Rules(context.Background())
	require.Error(t, err)

	var apiErr APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, correlation, apiErr.CorrelationID)
	assert.True(t, apiErr.NotInitialized())
	assert.True(t, IsNotInitialized(err))
}

func TestClient_PlainErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Correlation-ID", "proxy-1")
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	cli, err := New(srv.URL)
	require.NoError(t, err)

	_, correlation, err := cli.Rules(context.Background())
	assert.Equal(t, "proxy-1", correlation)

	var apiErr APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
	assert.Equal(t, "proxy-1", apiErr.CorrelationID)
	assert.False(t, IsNotInitialized(err))
}

func TestClient_Tasks(t *testing.T) {
	cli := newTestClient(t, true)
	ctx := context.Background()

	list, _, err := cli.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "check-rules", list[0].Name)

	_, err = cli.TriggerTask(ctx, "check-rules")
	assert.NoError(t, err)

	_, err = cli.TriggerTask(ctx, "nope")
	var apiErr APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}
