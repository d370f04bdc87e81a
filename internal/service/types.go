package service

import (
	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/host/memory"
	"github.com/sorengranfeldt/mre/internal/logging"
)

// SimulationResult is the outcome of a dry run against an in-memory host.
type SimulationResult struct {
	Result *core.DispatchResult `json:"result"`

	// Changes the host received, in order.
	Changes []memory.Change `json:"changes"`

	// Logs is everything the engine reported during the pass.
	Logs []logging.Entry `json:"logs"`

	// Error is set if the pass was aborted.
	Error string `json:"error,omitempty"`
}

// Status describes the loaded rules.
type Status struct {
	Initialized     bool     `json:"initialized"`
	RulesPath       string   `json:"rules_path"`
	Files           []string `json:"files,omitempty"`
	RuleCount       int      `json:"rule_count"`
	ExternalCount   int      `json:"external_count"`
	DisableAllRules bool     `json:"disable_all_rules"`
	AuditType       string   `json:"audit_type"`
}
