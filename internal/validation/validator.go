package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/engine"
	"github.com/sorengranfeldt/mre/internal/logging"
)

// ValidateRules checks the loaded rules, drops disabled ones and pre-compiles
// patterns and expressions. Deprecated spellings are normalized and reported
// to sink as warnings.
func ValidateRules(rules []core.Rule, knownExternals map[string]struct{}, sink logging.InternalLogger) ([]core.Rule, error) {
	sink = logging.OrNop(sink)
	seenNames := make(map[string]struct{})
	var validRules []core.Rule

	for i, rule := range rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("rule #%d missing name", i)
		}
		if _, exists := seenNames[rule.Name]; exists {
			return nil, fmt.Errorf("rule name '%s' is not unique", rule.Name)
		}
		seenNames[rule.Name] = struct{}{}

		if !rule.Enabled {
			sink.Info("rule '%s' is disabled and will not be loaded", rule.Name)
			continue
		}

		if action, deprecated := core.NormalizeAction(rule.Action); deprecated {
			sink.Warn("rule '%s': action '%s' is deprecated, use '%s'", rule.Name, rule.Action, action)
			rule.Action = action
		}
		if !rule.Action.IsValid() {
			return nil, fmt.Errorf("rule '%s' has unknown action '%s'", rule.Name, rule.Action)
		}

		if rule.SubjectType == "" {
			return nil, fmt.Errorf("rule '%s' missing subject_type", rule.Name)
		}

		switch rule.Action {
		case core.ActionExternal:
			if rule.External == "" {
				return nil, fmt.Errorf("rule '%s' missing external", rule.Name)
			}
			if _, known := knownExternals[rule.External]; !known {
				return nil, fmt.Errorf("rule '%s' references unknown external '%s'", rule.Name, rule.External)
			}
		default:
			if rule.TargetSystem == "" {
				return nil, fmt.Errorf("rule '%s' missing target_system", rule.Name)
			}
		}

		if rule.Action == core.ActionRename && rule.ConditionalRename == nil {
			return nil, fmt.Errorf("rule '%s' has action Rename but no conditional_rename", rule.Name)
		}
		if rule.ConditionalRename != nil && rule.ConditionalRename.NewName == "" {
			return nil, fmt.Errorf("rule '%s' missing conditional_rename.new_name", rule.Name)
		}
		if rule.Action == core.ActionProvision && rule.TargetObjectType == "" {
			return nil, fmt.Errorf("rule '%s' missing target_object_type", rule.Name)
		}

		// condition trees and flows are copied so normalized kinds and compiled
		// patterns do not leak into the caller's rules
		rule.Conditions = rule.Conditions.Clone()
		trees := map[string]*core.Conditions{"conditions": rule.Conditions}
		if rule.ConditionalRename != nil {
			rename := *rule.ConditionalRename
			rename.Conditions = rename.Conditions.Clone()
			rule.ConditionalRename = &rename
			trees["conditional_rename.conditions"] = rename.Conditions
		}
		if rule.Reprovision != nil {
			reprovision := *rule.Reprovision
			reprovision.Conditions = reprovision.Conditions.Clone()
			rule.Reprovision = &reprovision
			trees["reprovision.conditions"] = reprovision.Conditions
		}
		for field, tree := range trees {
			if err := prepareConditions(tree, rule.Name, sink); err != nil {
				return nil, fmt.Errorf("validating %s for rule '%s': %w", field, rule.Name, err)
			}
		}

		helperNames := make(map[string]struct{}, len(rule.Helpers))
		for j := range rule.Helpers {
			h := &rule.Helpers[j]
			if err := h.Validate(); err != nil {
				return nil, fmt.Errorf("validating helper #%d for rule '%s': %w", j, rule.Name, err)
			}
			key := strings.ToLower(h.Name)
			if _, dup := helperNames[key]; dup {
				return nil, fmt.Errorf("rule '%s' declares helper '%s' more than once", rule.Name, h.Name)
			}
			helperNames[key] = struct{}{}
		}

		flows := make([]core.Flow, len(rule.InitialFlows))
		copy(flows, rule.InitialFlows)
		for j := range flows {
			if err := prepareFlow(&flows[j]); err != nil {
				return nil, fmt.Errorf("validating initial flow #%d for rule '%s': %w", j, rule.Name, err)
			}
		}
		rule.InitialFlows = flows

		validRules = append(validRules, rule)
	}

	return validRules, nil
}

// prepareConditions validates a condition tree, replaces obsolete kinds and
// compiles patterns and expressions. The tree is modified in place.
func prepareConditions(conds *core.Conditions, rule string, sink logging.InternalLogger) error {
	if conds == nil {
		return nil
	}
	if err := conds.Validate(); err != nil {
		return err
	}
	return prepareItems(conds.Items, rule, sink)
}

func prepareItems(items []core.Condition, rule string, sink logging.InternalLogger) error {
	for i := range items {
		c := &items[i]
		if replacement, obsolete := c.Kind.IsObsolete(); obsolete {
			sink.Warn("rule '%s': condition kind '%s' is obsolete, use '%s'", rule, c.Kind, replacement)
			c.Kind = replacement
		}

		switch c.Kind {
		case core.KindMatch, core.KindNotMatch:
			re, err := engine.CompilePattern(c.Pattern)
			if err != nil {
				return err
			}
			c.Compiled = re

		case core.KindExpr:
			program, err := expr.Compile(c.Expr, expr.Env(engine.ExprEnv(nil, nil)), expr.AsBool())
			if err != nil {
				return fmt.Errorf("compiling expr '%s': %w", c.Expr, err)
			}
			c.CompiledExpr = program

		case core.KindSub:
			if err := prepareItems(c.Items, rule, sink); err != nil {
				return err
			}
		}
	}
	return nil
}

func prepareFlow(f *core.Flow) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if len(f.Sources) == 0 {
		return nil
	}
	sources := make([]core.SourceExpression, len(f.Sources))
	copy(sources, f.Sources)
	for i := range sources {
		src := &sources[i]
		if src.Kind != core.SourceRegexReplace {
			continue
		}
		re, err := regexp.Compile(src.Pattern)
		if err != nil {
			return fmt.Errorf("source #%d: invalid pattern /%s/: %w", i, src.Pattern, err)
		}
		src.Compiled = re
	}
	f.Sources = sources
	return nil
}

// KnownExternals indexes the declared externals by reference id.
func KnownExternals(refs []core.ExternalRef) (map[string]struct{}, error) {
	known := make(map[string]struct{}, len(refs))
	for i, ref := range refs {
		if ref.ReferenceID == "" {
			return nil, fmt.Errorf("external at index %d has empty reference_id", i)
		}
		if ref.Type == "" {
			return nil, fmt.Errorf("external '%s' missing type", ref.ReferenceID)
		}
		if _, dup := known[ref.ReferenceID]; dup {
			return nil, fmt.Errorf("external reference_id '%s' is not unique", ref.ReferenceID)
		}
		known[ref.ReferenceID] = struct{}{}
	}
	return known, nil
}
