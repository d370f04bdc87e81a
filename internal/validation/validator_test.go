package validation

import (
	"strings"
	"testing"

	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/logging"
)

func validRule(name string) core.Rule {
	return core.Rule{
		Name:             name,
		Enabled:          true,
		Action:           core.ActionProvision,
		SubjectType:      "person",
		TargetSystem:     "AD",
		TargetObjectType: "user",
	}
}

func TestValidateRules(t *testing.T) {
	externals := map[string]struct{}{"hr": {}}

	tests := []struct {
		name    string
		rules   []core.Rule
		wantErr string
		wantLen int
	}{
		{
			name:    "valid rule",
			rules:   []core.Rule{validRule("a")},
			wantLen: 1,
		},
		{
			name:    "missing name",
			rules:   []core.Rule{validRule("")},
			wantErr: "missing name",
		},
		{
			name:    "duplicate name",
			rules:   []core.Rule{validRule("a"), validRule("a")},
			wantErr: "not unique",
		},
		{
			name: "disabled rule is dropped",
			rules: []core.Rule{validRule("a"), func() core.Rule {
				r := validRule("b")
				r.Enabled = false
				r.Action = "bogus"
				return r
			}()},
			wantLen: 1,
		},
		{
			name: "unknown action",
			rules: []core.Rule{func() core.Rule {
				r := validRule("a")
				r.Action = "Delete"
				return r
			}()},
			wantErr: "unknown action",
		},
		{
			name: "missing target system",
			rules: []core.Rule{func() core.Rule {
				r := validRule("a")
				r.TargetSystem = ""
				return r
			}()},
			wantErr: "missing target_system",
		},
		{
			name: "rename without policy",
			rules: []core.Rule{func() core.Rule {
				r := validRule("a")
				r.Action = core.ActionRename
				return r
			}()},
			wantErr: "no conditional_rename",
		},
		{
			name: "external",
			rules: []core.Rule{{
				Name: "x", Enabled: true, Action: core.ActionExternal, SubjectType: "person", External: "hr",
			}},
			wantLen: 1,
		},
		{
			name: "unknown external",
			rules: []core.Rule{{
				Name: "x", Enabled: true, Action: core.ActionExternal, SubjectType: "person", External: "payroll",
			}},
			wantErr: "unknown external",
		},
		{
			name: "invalid pattern",
			rules: []core.Rule{func() core.Rule {
				r := validRule("a")
				r.Conditions = &core.Conditions{Items: []core.Condition{
					{Kind: core.KindMatch, Attribute: "department", Pattern: "("},
				}}
				return r
			}()},
			wantErr: "invalid pattern",
		},
		{
			name: "invalid expr",
			rules: []core.Rule{func() core.Rule {
				r := validRule("a")
				r.Conditions = &core.Conditions{Items: []core.Condition{
					{Kind: core.KindExpr, Expr: "subject.x +"},
				}}
				return r
			}()},
			wantErr: "compiling expr",
		},
		{
			name: "invalid flow",
			rules: []core.Rule{func() core.Rule {
				r := validRule("a")
				r.InitialFlows = []core.Flow{{Kind: core.FlowMultivaluedConstant, Target: core.DNTarget, Constants: []string{"x"}}}
				return r
			}()},
			wantErr: "initial flow #0",
		},
		{
			name: "duplicate helper",
			rules: []core.Rule{func() core.Rule {
				r := validRule("a")
				r.Helpers = []core.HelperValue{
					{Name: "pwd", Kind: core.HelperRandomSecret},
					{Name: "PWD", Kind: core.HelperRandomSecret},
				}
				return r
			}()},
			wantErr: "more than once",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateRules(tt.rules, externals, nil)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantLen {
				t.Errorf("got %d rules, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestValidateRules_NormalizesDeprecatedSpellings(t *testing.T) {
	r := validRule("a")
	r.Action = "provision"
	r.Conditions = &core.Conditions{Items: []core.Condition{
		{Kind: core.KindAttributeIsPresent, Attribute: "accountName"},
		{Kind: core.KindSub, Operator: core.OpOr, Items: []core.Condition{
			{Kind: core.KindMatch, Attribute: "department", Pattern: "^it$"},
			{Kind: core.KindExpr, Expr: `object_type == "person"`},
		}},
	}}

	rec := logging.NewRecorder()
	got, err := ValidateRules([]core.Rule{r}, nil, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rule := got[0]
	if rule.Action != core.ActionProvision {
		t.Errorf("action = %q, want %q", rule.Action, core.ActionProvision)
	}
	items := rule.Conditions.Items
	if items[0].Kind != core.KindPresent {
		t.Errorf("kind = %q, want %q", items[0].Kind, core.KindPresent)
	}
	sub := items[1].Items
	if sub[0].Compiled == nil || !sub[0].Compiled.MatchString("IT") {
		t.Error("pattern was not compiled case-insensitively")
	}
	if sub[1].CompiledExpr == nil {
		t.Error("expression was not compiled")
	}
	if n := len(rec.Messages("warn")); n != 2 {
		t.Errorf("got %d warnings, want 2", n)
	}
}

func TestValidateRules_LeavesCallerConditionsUntouched(t *testing.T) {
	r := validRule("a")
	r.Conditions = &core.Conditions{Items: []core.Condition{
		{Kind: core.KindAttributeIsPresent, Attribute: "accountName"},
		{Kind: core.KindSub, Operator: core.OpAnd, Items: []core.Condition{
			{Kind: core.KindMatch, Attribute: "department", Pattern: "^it$"},
		}},
	}}
	r.ConditionalRename = &core.RenamePolicy{
		NewName: "CN=#mv:accountName#",
		Conditions: &core.Conditions{Items: []core.Condition{
			{Kind: core.KindExpr, Expr: `object_type == "person"`},
		}},
	}
	in := []core.Rule{r}

	got, err := ValidateRules(in, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Conditions.Items[0].Kind != core.KindPresent {
		t.Errorf("obsolete kind was not replaced in the result")
	}
	if got[0].Conditions.Items[1].Items[0].Compiled == nil {
		t.Error("nested pattern was not compiled in the result")
	}

	if k := in[0].Conditions.Items[0].Kind; k != core.KindAttributeIsPresent {
		t.Errorf("caller's condition kind changed to %q", k)
	}
	if in[0].Conditions.Items[1].Items[0].Compiled != nil {
		t.Error("caller's nested condition was compiled")
	}
	if in[0].ConditionalRename.Conditions.Items[0].CompiledExpr != nil {
		t.Error("caller's rename condition was compiled")
	}
	if got[0].ConditionalRename.Conditions.Items[0].CompiledExpr == nil {
		t.Error("rename expression was not compiled in the result")
	}
}

func TestValidateRules_CompilesRegexReplace(t *testing.T) {
	r := validRule("a")
	r.InitialFlows = []core.Flow{{
		Kind:   core.FlowConcatenate,
		Target: "cn",
		Sources: []core.SourceExpression{
			{Kind: core.SourceRegexReplace, Attribute: "sn", Pattern: `\s+`, Replacement: ""},
		},
	}}

	got, err := ValidateRules([]core.Rule{r}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].InitialFlows[0].Sources[0].Compiled == nil {
		t.Error("regex_replace pattern was not compiled")
	}
	if r.InitialFlows[0].Sources[0].Compiled != nil {
		t.Error("caller's flows were modified")
	}
}

func TestKnownExternals(t *testing.T) {
	known, err := KnownExternals([]core.ExternalRef{{ReferenceID: "hr", Type: "stub"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := known["hr"]; !ok {
		t.Error("hr should be known")
	}

	if _, err := KnownExternals([]core.ExternalRef{{ReferenceID: "hr", Type: "stub"}, {ReferenceID: "hr", Type: "stub"}}); err == nil {
		t.Error("expected duplicate error")
	}
	if _, err := KnownExternals([]core.ExternalRef{{ReferenceID: "hr"}}); err == nil {
		t.Error("expected missing type error")
	}
}
