package audit

import (
	"fmt"
	"time"

	"github.com/sorengranfeldt/mre/internal/config"
	"github.com/sorengranfeldt/mre/internal/core"
)

// ActionFailed is the audit action of a pass that was aborted by an error.
const ActionFailed = "pass.failed"

// New creates the auditor selected in the settings.
func New(s config.AuditSettings) (core.Auditor, error) {
	switch s.Type {
	case "", "noop":
		return NewNoopAuditor(), nil
	case "memory":
		return NewInMemoryAuditor(), nil
	case "file":
		return NewFileAuditor(s.Path)
	default:
		return nil, fmt.Errorf("unknown audit type '%s'", s.Type)
	}
}

// EntriesFromResult turns the actions of a pass into audit entries. A non-nil
// passErr adds a trailing pass.failed entry.
func EntriesFromResult(res *core.DispatchResult, passErr error, dryRun bool, now time.Time) []core.AuditEntry {
	if res == nil {
		return nil
	}
	entries := make([]core.AuditEntry, 0, len(res.Actions)+1)
	for _, a := range res.Actions {
		entries = append(entries, core.AuditEntry{
			ID:           res.CorrelationID,
			Time:         now,
			Action:       string(a.Kind),
			SubjectID:    res.SubjectID,
			SubjectType:  res.SubjectType,
			Rule:         a.Rule,
			TargetSystem: a.TargetSystem,
			OldName:      a.OldName,
			NewName:      a.NewName,
			DryRun:       dryRun,
		})
	}
	if passErr != nil {
		entry := core.AuditEntry{
			ID:          res.CorrelationID,
			Time:        now,
			Action:      ActionFailed,
			SubjectID:   res.SubjectID,
			SubjectType: res.SubjectType,
			DryRun:      dryRun,
			Error:       passErr.Error(),
		}
		for _, r := range res.Rules {
			if r.Outcome == core.OutcomeFailed {
				entry.Rule = r.Rule
				entry.TargetSystem = r.TargetSystem
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

func filterEntries(entries []core.AuditEntry, filter core.AuditFilter, limit int) []core.AuditEntry {
	var matches []core.AuditEntry
	for _, entry := range entries {
		if filter.SubjectID != "" && entry.SubjectID != filter.SubjectID {
			continue
		}
		if filter.Rule != "" && entry.Rule != filter.Rule {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		matches = append(matches, entry)
	}

	if limit > 0 && len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}
	return matches
}
