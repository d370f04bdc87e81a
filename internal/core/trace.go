package core

// ConditionResult is one node of an evaluated condition tree.
type ConditionResult struct {
	Matched bool `yaml:"matched" json:"matched"`

	// For leaves
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"` // e.g. "department match /^IT/"
	Reason     string `yaml:"reason,omitempty" json:"reason,omitempty"`

	// For branching
	Label    string            `yaml:"label,omitempty" json:"label,omitempty"` // e.g. "AND"
	Children []ConditionResult `yaml:"children,omitempty" json:"children,omitempty"`
}

// RuleOutcome summarizes what happened to a rule during one pass.
type RuleOutcome string

const (
	OutcomeActed    RuleOutcome = "acted"
	OutcomeNotMet   RuleOutcome = "not_met"
	OutcomeSkipped  RuleOutcome = "skipped"
	OutcomeNoBranch RuleOutcome = "no_branch"
	OutcomeFailed   RuleOutcome = "failed"
)

// RuleTrace captures why a rule acted or not.
type RuleTrace struct {
	Rule         string            `yaml:"rule" json:"rule"`
	Action       RuleAction        `yaml:"action" json:"action"`
	TargetSystem string            `yaml:"target_system" json:"target_system"`
	Outcome      RuleOutcome       `yaml:"outcome" json:"outcome"`
	Reason       string            `yaml:"reason,omitempty" json:"reason,omitempty"`
	Conditions   []ConditionResult `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// ActionKind is the kind of change applied to a target system.
type ActionKind string

const (
	ActionKindProvision      ActionKind = "provision"
	ActionKindRename         ActionKind = "rename"
	ActionKindReprovision    ActionKind = "reprovision"
	ActionKindDeprovision    ActionKind = "deprovision"
	ActionKindDeprovisionAll ActionKind = "deprovision_all"
	ActionKindExternal       ActionKind = "external"
)

// ActionRecord is one change the dispatch applied.
type ActionRecord struct {
	Kind         ActionKind `yaml:"kind" json:"kind"`
	Rule         string     `yaml:"rule" json:"rule"`
	TargetSystem string     `yaml:"target_system" json:"target_system"`
	OldName      string     `yaml:"old_name,omitempty" json:"old_name,omitempty"`
	NewName      string     `yaml:"new_name,omitempty" json:"new_name,omitempty"`
}

// DispatchResult is the outcome of processing one subject.
type DispatchResult struct {
	CorrelationID string         `yaml:"correlation_id" json:"correlation_id"`
	SubjectID     string         `yaml:"subject_id" json:"subject_id"`
	SubjectType   string         `yaml:"subject_type" json:"subject_type"`
	Rules         []RuleTrace    `yaml:"rules" json:"rules"`
	Actions       []ActionRecord `yaml:"actions" json:"actions"`

	// Stopped is set when a DeprovisionAll ended the pass early.
	Stopped bool `yaml:"stopped" json:"stopped"`
}
