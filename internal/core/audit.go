package core

import "time"

type AuditEntry struct {
	// ID is the correlation id of the processing pass
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "provision", "rename", "pass.failed")
	Action string `json:"action"`

	SubjectID    string `json:"subject_id"`
	SubjectType  string `json:"subject_type"`
	Rule         string `json:"rule,omitempty"`
	TargetSystem string `json:"target_system,omitempty"`

	OldName string `json:"old_name,omitempty"`
	NewName string `json:"new_name,omitempty"`

	DryRun bool   `json:"dry_run,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

// AuditFilter narrows audit queries; empty fields match everything.
type AuditFilter struct {
	SubjectID string
	Rule      string
	Action    string
}

// AuditQuerier is implemented by auditors that can be read back.
type AuditQuerier interface {
	Find(filter AuditFilter, limit int) ([]AuditEntry, error)
}
