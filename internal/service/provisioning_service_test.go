package service

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorengranfeldt/mre/internal/audit"
	"github.com/sorengranfeldt/mre/internal/config"
	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/host/memory"
	"github.com/sorengranfeldt/mre/internal/logging"
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
    helpers:
      - { name: password, kind: random_secret, length: 12 }
    initial_flows:
      - kind: constant
        target: "[DN]"
        constant: "CN=#mv:accountName#,OU=Users,DC=corp,DC=example"
      - kind: constant
        target: initialPassword
        constant: "#helper:password#"
  - name: broken-flow
    enabled: true
    action: Provision
    subject_type: contractor
    target_system: AD
    target_object_type: user
    initial_flows:
      - kind: copy
        source: accountName
        target: employeeID
`

const fixtureDocument = `
subject:
  object_type: person
  attributes:
    accountName: jdoe
target_systems:
  - name: AD
`

var serviceTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*ProvisioningService, *audit.InMemoryAuditor) {
	t.Helper()
	auditor := audit.NewInMemoryAuditor()
	svc := NewProvisioningService("", WithAuditor(auditor), WithClock(func() time.Time { return serviceTime }))

	cfg, err := config.Parse([]byte(rulesDocument), nil)
	require.NoError(t, err)
	require.NoError(t, svc.Apply(context.Background(), cfg))
	return svc, auditor
}

func TestProvisioningService_NotInitialized(t *testing.T) {
	svc := NewProvisioningService("")
	subject := memory.NewSubject("person", uuid.Nil)

	_, err := svc.ProcessSubject(context.Background(), subject)
	assert.True(t, errors.Is(err, core.ErrNotInitialized))

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)

	_, err = svc.Rules()
	assert.True(t, errors.Is(err, core.ErrNotInitialized))
}

func TestProvisioningService_ProcessSubject(t *testing.T) {
	svc, auditor := newService(t)

	subject := memory.NewSubject("person", uuid.Nil)
	subject.Set("accountName", core.Str("jdoe"))
	subject.AddTargetSystem("AD", nil)

	ctx := context.WithValue(context.Background(), "correlation_id", "test-correlation")
	res, err := svc.ProcessSubject(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, "test-correlation", res.CorrelationID)
	require.Len(t, res.Actions, 1)

	changes := subject.Journal().Changes()
	require.Len(t, changes, 1)
	require.Len(t, changes[0].Attributes["initialPassword"], 1)
	assert.Len(t, changes[0].Attributes["initialPassword"][0], 12)

	entries, err := auditor.Find(core.AuditFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "provision", entries[0].Action)
	assert.Equal(t, "test-correlation", entries[0].ID)
	assert.False(t, entries[0].DryRun)
	assert.Equal(t, serviceTime, entries[0].Time)
}

func TestProvisioningService_ProcessSubjectFailure(t *testing.T) {
	svc, auditor := newService(t)

	subject := memory.NewSubject("contractor", uuid.Nil)
	subject.Set("accountName", core.Str("jdoe"))
	subject.AddTargetSystem("AD", map[string]core.AttrType{"employeeID": core.TypeInteger})

	res, err := svc.ProcessSubject(context.Background(), subject)
	require.Error(t, err)
	require.NotNil(t, res, "partial result is returned with the error")
	assert.NotEmpty(t, res.CorrelationID)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnprocessableEntity, httpErr.StatusCode)

	var convErr core.ConversionError
	assert.True(t, errors.As(err, &convErr))

	entries, err := auditor.Find(core.AuditFilter{Action: audit.ActionFailed}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "broken-flow", entries[0].Rule)
}

func TestProvisioningService_ShouldDelete(t *testing.T) {
	svc, _ := newService(t)
	del, err := svc.ShouldDelete(context.Background(), nil, nil)
	assert.False(t, del)
	assert.True(t, errors.Is(err, core.ErrNotSupported))
}

func TestProvisioningService_Terminate(t *testing.T) {
	svc, _ := newService(t)
	require.NoError(t, svc.Terminate(context.Background()))

	_, err := svc.ProcessSubject(context.Background(), memory.NewSubject("person", uuid.Nil))
	assert.True(t, errors.Is(err, core.ErrNotInitialized))
	assert.False(t, svc.Status().Initialized)
}

func TestProvisioningService_Simulate(t *testing.T) {
	svc, auditor := newService(t)

	fixture, err := memory.ParseFixture([]byte(fixtureDocument))
	require.NoError(t, err)

	out, err := svc.Simulate(context.Background(), fixture)
	require.NoError(t, err)
	assert.Empty(t, out.Error)
	require.Len(t, out.Changes, 1)
	assert.Equal(t, "CN=jdoe,OU=Users,DC=corp,DC=example", out.Changes[0].Name)
	assert.NotEmpty(t, out.Logs)

	entries, err := auditor.Find(core.AuditFilter{}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].DryRun)

	// a second run starts from the same fixture
	again, err := svc.Simulate(context.Background(), fixture)
	require.NoError(t, err)
	assert.Len(t, again.Changes, 1)
}

func TestProvisioningService_Initialize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	doc := rulesDocument + "settings:\n  audit:\n    type: memory\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	svc := NewProvisioningService(path)
	require.NoError(t, svc.Initialize(context.Background()))

	rules, err := svc.Rules()
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	st := svc.Status()
	assert.True(t, st.Initialized)
	assert.Equal(t, 2, st.RuleCount)

	_, err = svc.FindAudit(core.AuditFilter{}, 10)
	assert.NoError(t, err)

	require.NoError(t, svc.Terminate(context.Background()))
	_, err = svc.FindAudit(core.AuditFilter{}, 10)
	assert.True(t, errors.Is(err, core.ErrNotSupported))
}

func TestProvisioningService_InitializeMissingRules(t *testing.T) {
	svc := NewProvisioningService(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, svc.Initialize(context.Background()))
}

func TestProvisioningService_CheckRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rulesDocument), 0o600))

	svc := NewProvisioningService(path, WithAuditor(audit.NewInMemoryAuditor()))
	require.NoError(t, svc.Initialize(context.Background()))

	rec := logging.NewRecorder()
	require.NoError(t, svc.CheckRules(context.Background(), rec))
	assert.Empty(t, rec.Messages("warn"))

	changed := strings.Replace(rulesDocument, "name: broken-flow", "name: contractor-flow", 1)
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o600))
	rec = logging.NewRecorder()
	require.NoError(t, svc.CheckRules(context.Background(), rec))
	assert.Len(t, rec.Messages("warn"), 1)

	require.NoError(t, os.WriteFile(path, []byte("rules: ["), 0o600))
	assert.Error(t, svc.CheckRules(context.Background(), nil))

	// the active rules are untouched
	rules, err := svc.Rules()
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "broken-flow", rules[1].Name)
}
