package audit

import "github.com/sorengranfeldt/mre/internal/core"

var _ core.Auditor = (*NoopAuditor)(nil)

// NoopAuditor discards provisioning audit entries. It is used when the
// settings name no audit type. It cannot be queried.
type NoopAuditor struct{}

func NewNoopAuditor() *NoopAuditor {
	return &NoopAuditor{}
}

func (*NoopAuditor) Log(core.AuditEntry) error { return nil }

func (*NoopAuditor) Close() error { return nil }
