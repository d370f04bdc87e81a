package core

import (
	"fmt"
	"strings"
)

// RuleAction is what a rule does to its target system.
type RuleAction string

const (
	ActionProvision      RuleAction = "Provision"
	ActionDeprovision    RuleAction = "Deprovision"
	ActionDeprovisionAll RuleAction = "DeprovisionAll"
	ActionRename         RuleAction = "Rename"
	ActionExternal       RuleAction = "External"
)

func (a RuleAction) IsValid() bool {
	switch a {
	case ActionProvision, ActionDeprovision, ActionDeprovisionAll, ActionRename, ActionExternal:
		return true
	default:
		return false
	}
}

// NormalizeAction maps the deprecated lowercase action keywords onto their
// canonical form. deprecated is true if a lowercase keyword was used.
func NormalizeAction(a RuleAction) (normalized RuleAction, deprecated bool) {
	switch a {
	case "provision":
		return ActionProvision, true
	case "deprovision":
		return ActionDeprovision, true
	case "deprovisionall":
		return ActionDeprovisionAll, true
	case "rename":
		return ActionRename, true
	}
	return a, false
}

// RenamePolicy describes how an existing connector is renamed.
type RenamePolicy struct {
	// NewName is a constant template (#mv:, #helper:, #param:EscapedCN#).
	NewName   string `yaml:"new_name" json:"new_name"`
	EscapedCN string `yaml:"escaped_cn,omitempty" json:"escaped_cn,omitempty"`

	// StrictCompare compares old and new names as plain strings instead of parsed names.
	StrictCompare bool `yaml:"strict_compare,omitempty" json:"strict_compare,omitempty"`

	Conditions *Conditions `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// Reprovision deprovisions and recreates existing connectors whose conditions are met.
type Reprovision struct {
	Enabled    bool        `yaml:"enabled" json:"enabled"`
	Conditions *Conditions `yaml:"conditions,omitempty" json:"conditions,omitempty"`
}

// AdditionalClasses are extra object classes passed on connector creation,
// either literal or read from a (multivalued) subject attribute.
type AdditionalClasses struct {
	Values    []string `yaml:"values,omitempty" json:"values,omitempty"`
	Attribute string   `yaml:"attribute,omitempty" json:"attribute,omitempty"`
}

func (a *AdditionalClasses) UnmarshalYAML(unmarshal func(any) error) error {
	var list []string
	if err := unmarshal(&list); err == nil {
		*a = AdditionalClasses{Values: list}
		return nil
	}
	type plain AdditionalClasses
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	*a = AdditionalClasses(p)
	return nil
}

func (a *AdditionalClasses) IsEmpty() bool {
	return a == nil || (len(a.Values) == 0 && a.Attribute == "")
}

// Rule is one provisioning directive.
type Rule struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	RuleID      string `yaml:"rule_id,omitempty" json:"rule_id,omitempty"`

	// Enabled defaults to false; disabled rules are dropped on load.
	Enabled bool `yaml:"enabled" json:"enabled"`

	Action RuleAction `yaml:"action" json:"action"`

	SubjectType      string `yaml:"subject_type" json:"subject_type"`
	TargetSystem     string `yaml:"target_system" json:"target_system"`
	TargetObjectType string `yaml:"target_object_type,omitempty" json:"target_object_type,omitempty"`

	// Conditions == nil is always met.
	Conditions *Conditions `yaml:"conditions,omitempty" json:"conditions,omitempty"`

	// InitialFlows run in order when a connector is created.
	InitialFlows []Flow `yaml:"initial_flows,omitempty" json:"initial_flows,omitempty"`

	ConditionalRename *RenamePolicy      `yaml:"conditional_rename,omitempty" json:"conditional_rename,omitempty"`
	Reprovision       *Reprovision       `yaml:"reprovision,omitempty" json:"reprovision,omitempty"`
	Helpers           []HelperValue      `yaml:"helpers,omitempty" json:"helpers,omitempty"`
	AdditionalClasses *AdditionalClasses `yaml:"additional_object_classes,omitempty" json:"additional_object_classes,omitempty"`

	// External is the reference id of the handler an External rule delegates to.
	External string `yaml:"external,omitempty" json:"external,omitempty"`
}

// ReprovisionEnabled reports whether existing connectors may be recreated.
func (r *Rule) ReprovisionEnabled() bool {
	return r.Reprovision != nil && r.Reprovision.Enabled
}

// ExternalRef declares an external handler available to External rules.
type ExternalRef struct {
	ReferenceID string         `yaml:"reference_id" json:"reference_id"`
	Type        string         `yaml:"type" json:"type"`
	Config      map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// RuleSet holds the enabled rules indexed by subject type.
// It is never mutated after NewRuleSet returns and is safe for concurrent reads.
type RuleSet struct {
	rules  []Rule
	byType map[string][]*Rule
}

// NewRuleSet indexes rules by lowercased subject type, keeping declaration order.
func NewRuleSet(rules []Rule) *RuleSet {
	rs := &RuleSet{
		rules:  rules,
		byType: make(map[string][]*Rule),
	}
	for i := range rs.rules {
		key := strings.ToLower(rs.rules[i].SubjectType)
		rs.byType[key] = append(rs.byType[key], &rs.rules[i])
	}
	return rs
}

// ForSubjectType returns the rules for a subject type in declaration order.
func (rs *RuleSet) ForSubjectType(subjectType string) []*Rule {
	if rs == nil {
		return nil
	}
	return rs.byType[strings.ToLower(subjectType)]
}

// Rules returns all rules in declaration order.
func (rs *RuleSet) Rules() []Rule {
	if rs == nil {
		return nil
	}
	return rs.rules
}

func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Find returns the rule with the given name.
func (rs *RuleSet) Find(name string) (*Rule, error) {
	for i := range rs.Rules() {
		if rs.rules[i].Name == name {
			return &rs.rules[i], nil
		}
	}
	return nil, fmt.Errorf("rule '%s' not found", name)
}
