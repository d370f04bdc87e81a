package audit

import (
	"sync"

	"github.com/sorengranfeldt/mre/internal/core"
)

var (
	_ core.Auditor      = (*InMemoryAuditor)(nil)
	_ core.AuditQuerier = (*InMemoryAuditor)(nil)
)

// InMemoryAuditor is an auditor that stores audit entries in memory.
type InMemoryAuditor struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func NewInMemoryAuditor() *InMemoryAuditor {
	return &InMemoryAuditor{
		entries: make([]core.AuditEntry, 0),
	}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = append(i.entries, entry)
	return nil
}

// Find returns the newest limit entries matching filter, oldest first.
func (i *InMemoryAuditor) Find(filter core.AuditFilter, limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	return filterEntries(i.entries, filter, limit), nil
}

func (i *InMemoryAuditor) Close() error {
	return nil // nothing to close :)
}
