package core

import (
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"
)

func TestCondition_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Condition
	}{
		{
			name: "Explicit Syntax",
			input: `kind: match
attribute: department
pattern: ^IT`,
			want: Condition{Kind: KindMatch, Attribute: "department", Pattern: "^IT"},
		},
		{
			name:  "Explicit Kind Is Lowercased",
			input: `{ kind: IS_TRUE, attribute: active }`,
			want:  Condition{Kind: KindIsTrue, Attribute: "active"},
		},
		{
			name:  "Shorthand Attribute",
			input: `present: mail`,
			want:  Condition{Kind: KindPresent, Attribute: "mail"},
		},
		{
			name:  "Shorthand Target System",
			input: `not_connected: AD`,
			want:  Condition{Kind: KindNotConnected, TargetSystem: "AD"},
		},
		{
			name:  "Shorthand Expression",
			input: `expr: 'subject.department == "IT"'`,
			want:  Condition{Kind: KindExpr, Expr: `subject.department == "IT"`},
		},
		{
			name:  "Shorthand Map",
			input: `bit_set: { attribute: flags, mask: 2 }`,
			want:  Condition{Kind: KindBitSet, Attribute: "flags", Mask: 2},
		},
		{
			name:  "Bit Position",
			input: `bit_not_set: { attribute: userAccountControl, bit_position: 1 }`,
			want:  Condition{Kind: KindBitNotSet, Attribute: "userAccountControl", BitPosition: intPtr(1)},
		},
		{
			name:  "Case Sensitive Contains",
			input: `contains: { attribute: groups, value: Staff, case_sensitive: true }`,
			want:  Condition{Kind: KindContains, Attribute: "groups", Value: "Staff", CaseSensitive: true},
		},
		{
			name: "Nested Logic (Any)",
			input: `
any:
  - present: mail
  - match: { attribute: department, pattern: "^HR" }
`,
			want: Condition{
				Kind:     KindSub,
				Operator: OpOr,
				Items: []Condition{
					{Kind: KindPresent, Attribute: "mail"},
					{Kind: KindMatch, Attribute: "department", Pattern: "^HR"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Condition
			if err := yaml.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("UnmarshalYAML() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("UnmarshalYAML() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCondition_UnmarshalYAML_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Unknown Kind", `frobnicate: mail`},
		{"Two Shorthand Keys", `{ present: mail, absent: phone }`},
		{"Unsupported Value", `present: [a, b]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Condition
			if err := yaml.Unmarshal([]byte(tt.input), &got); err == nil {
				t.Errorf("expected error, got %+v", got)
			}
		})
	}
}

func TestConditions_UnmarshalYAML(t *testing.T) {
	t.Run("List Is Implicit And", func(t *testing.T) {
		var got Conditions
		input := `
- present: mail
- is_true: active
`
		if err := yaml.Unmarshal([]byte(input), &got); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := Conditions{
			Operator: OpAnd,
			Items: []Condition{
				{Kind: KindPresent, Attribute: "mail"},
				{Kind: KindIsTrue, Attribute: "active"},
			},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Explicit Operator", func(t *testing.T) {
		var got Conditions
		input := `
operator: Or
items:
  - absent: mail
`
		if err := yaml.Unmarshal([]byte(input), &got); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Operator != OpOr {
			t.Errorf("expected operator or, got %q", got.Operator)
		}
		if len(got.Items) != 1 || got.Items[0].Kind != KindAbsent {
			t.Errorf("unexpected items: %+v", got.Items)
		}
	})
}

func TestCondition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cond    Condition
		wantErr bool
	}{
		{"present ok", Condition{Kind: KindPresent, Attribute: "mail"}, false},
		{"present missing attribute", Condition{Kind: KindPresent}, true},
		{"match missing pattern", Condition{Kind: KindMatch, Attribute: "x"}, true},
		{"bit set zero mask", Condition{Kind: KindBitSet, Attribute: "flags"}, true},
		{"bit set position zero", Condition{Kind: KindBitSet, Attribute: "flags", BitPosition: intPtr(0)}, false},
		{"bit set position out of range", Condition{Kind: KindBitSet, Attribute: "flags", BitPosition: intPtr(63)}, true},
		{"equal needs connector attribute", Condition{Kind: KindEqual, Attribute: "cn"}, true},
		{"dn equal with sentinel", Condition{Kind: KindDNEqual, Attribute: "dn", ConnectorAttribute: "[DN]"}, false},
		{"between needs both bounds", Condition{Kind: KindBetween, StartAttribute: "start"}, true},
		{"connected needs target", Condition{Kind: KindConnected}, true},
		{"contains needs value", Condition{Kind: KindContains, Attribute: "groups"}, true},
		{"unknown kind", Condition{Kind: "nope"}, true},
		{
			"nested invalid",
			Condition{Kind: KindSub, Operator: OpAnd, Items: []Condition{{Kind: KindAbsent}}},
			true,
		},
		{"empty sub is fine", Condition{Kind: KindSub}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cond.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConditionKind_IsObsolete(t *testing.T) {
	if k, ok := KindAttributeIsPresent.IsObsolete(); !ok || k != KindPresent {
		t.Errorf("attribute_is_present should map to present, got %s/%v", k, ok)
	}
	if k, ok := KindAttributeIsNotPresent.IsObsolete(); !ok || k != KindAbsent {
		t.Errorf("attribute_is_not_present should map to absent, got %s/%v", k, ok)
	}
	if _, ok := KindPresent.IsObsolete(); ok {
		t.Error("present is not obsolete")
	}
}

func TestCondition_BitMask(t *testing.T) {
	if got := (&Condition{BitPosition: intPtr(3)}).BitMask(); got != 8 {
		t.Errorf("BitMask() = %d, want 8", got)
	}
	if got := (&Condition{Mask: 6, BitPosition: intPtr(0)}).BitMask(); got != 6 {
		t.Errorf("BitMask() = %d, want the explicit mask 6", got)
	}
}

func intPtr(i int) *int { return &i }
