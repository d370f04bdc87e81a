package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/host/memory"
)

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newPerson() *memory.Subject {
	s := memory.NewSubject("person", uuid.Nil)
	s.Set("accountName", core.Str("jdoe"))
	s.Set("department", core.Str("IT Operations"))
	s.Set("active", core.Str("True"))
	s.Set("userAccountControl", core.Int(514))
	s.Set("employeeType", core.Str("Staff"), core.Str("Contractor"))
	s.Set("hireDate", core.Str("2020-01-01"))
	s.Set("leaveDate", core.Str("2030-01-01"))
	s.Set("badDate", core.Str("someday"))
	return s
}

func TestEvaluateCondition(t *testing.T) {
	tests := []struct {
		name      string
		condition core.Condition
		want      bool
	}{
		// --- Presence ---
		{name: "present", condition: core.Condition{Kind: core.KindPresent, Attribute: "accountName"}, want: true},
		{name: "present - missing", condition: core.Condition{Kind: core.KindPresent, Attribute: "mail"}, want: false},
		{name: "absent", condition: core.Condition{Kind: core.KindAbsent, Attribute: "mail"}, want: true},
		{name: "obsolete attribute_is_present", condition: core.Condition{Kind: core.KindAttributeIsPresent, Attribute: "accountName"}, want: true},
		{name: "obsolete attribute_is_not_present", condition: core.Condition{Kind: core.KindAttributeIsNotPresent, Attribute: "accountName"}, want: false},

		// --- Patterns ---
		{name: "match ignores case", condition: core.Condition{Kind: core.KindMatch, Attribute: "department", Pattern: "^it "}, want: true},
		{name: "match - no match", condition: core.Condition{Kind: core.KindMatch, Attribute: "department", Pattern: "^HR"}, want: false},
		{name: "match - absent", condition: core.Condition{Kind: core.KindMatch, Attribute: "mail", Pattern: ".*"}, want: false},
		{name: "not_match", condition: core.Condition{Kind: core.KindNotMatch, Attribute: "department", Pattern: "^HR"}, want: true},
		{name: "not_match - absent passes", condition: core.Condition{Kind: core.KindNotMatch, Attribute: "mail", Pattern: ".*"}, want: true},

		// --- Booleans ---
		{name: "is_true", condition: core.Condition{Kind: core.KindIsTrue, Attribute: "active"}, want: true},
		{name: "is_false", condition: core.Condition{Kind: core.KindIsFalse, Attribute: "active"}, want: false},
		{name: "is_true - absent", condition: core.Condition{Kind: core.KindIsTrue, Attribute: "locked"}, want: false},
		{name: "not_true - absent passes", condition: core.Condition{Kind: core.KindNotTrue, Attribute: "locked"}, want: true},
		{name: "not_true - true", condition: core.Condition{Kind: core.KindNotTrue, Attribute: "active"}, want: false},

		// --- Bits ---
		{name: "bit_set", condition: core.Condition{Kind: core.KindBitSet, Attribute: "userAccountControl", Mask: 2}, want: true},
		{name: "bit_set - not set", condition: core.Condition{Kind: core.KindBitSet, Attribute: "userAccountControl", Mask: 1}, want: false},
		{name: "bit_not_set", condition: core.Condition{Kind: core.KindBitNotSet, Attribute: "userAccountControl", Mask: 1}, want: true},
		{name: "bit_not_set - set", condition: core.Condition{Kind: core.KindBitNotSet, Attribute: "userAccountControl", Mask: 2}, want: false},
		{name: "bit_set - position", condition: core.Condition{Kind: core.KindBitSet, Attribute: "userAccountControl", BitPosition: intPtr(1)}, want: true},
		{name: "bit_not_set - position", condition: core.Condition{Kind: core.KindBitNotSet, Attribute: "userAccountControl", BitPosition: intPtr(0)}, want: true},
		{name: "bit_not_set - absent", condition: core.Condition{Kind: core.KindBitNotSet, Attribute: "flags", Mask: 2}, want: false},

		// --- Dates ---
		{name: "after", condition: core.Condition{Kind: core.KindAfter, Attribute: "hireDate"}, want: true},
		{name: "before", condition: core.Condition{Kind: core.KindBefore, Attribute: "hireDate"}, want: false},
		{name: "after - unparsable", condition: core.Condition{Kind: core.KindAfter, Attribute: "badDate"}, want: false},
		{name: "between", condition: core.Condition{Kind: core.KindBetween, StartAttribute: "hireDate", EndAttribute: "leaveDate"}, want: true},
		{name: "between - reversed", condition: core.Condition{Kind: core.KindBetween, StartAttribute: "leaveDate", EndAttribute: "hireDate"}, want: false},

		// --- Multivalued ---
		{name: "contains", condition: core.Condition{Kind: core.KindContains, Attribute: "employeeType", Value: "Staff"}, want: true},
		{name: "contains - case differs", condition: core.Condition{Kind: core.KindContains, Attribute: "employeeType", Value: "staff"}, want: true},
		{name: "contains - case sensitive", condition: core.Condition{Kind: core.KindContains, Attribute: "employeeType", Value: "staff", CaseSensitive: true}, want: false},
		{name: "not_contains - case differs", condition: core.Condition{Kind: core.KindNotContains, Attribute: "employeeType", Value: "CONTRACTOR"}, want: false},
		{name: "not_contains - case sensitive", condition: core.Condition{Kind: core.KindNotContains, Attribute: "employeeType", Value: "CONTRACTOR", CaseSensitive: true}, want: true},
		{name: "contains - absent", condition: core.Condition{Kind: core.KindContains, Attribute: "groups", Value: "x"}, want: false},
		{name: "not_contains - absent", condition: core.Condition{Kind: core.KindNotContains, Attribute: "groups", Value: "x"}, want: true},

		// --- Connections ---
		{name: "connected - none", condition: core.Condition{Kind: core.KindConnected, TargetSystem: "AD"}, want: false},
		{name: "not_connected - none", condition: core.Condition{Kind: core.KindNotConnected, TargetSystem: "ad"}, want: true},

		// --- Expressions ---
		{name: "expr", condition: core.Condition{Kind: core.KindExpr, Expr: `subject.accountName == "jdoe" && object_type == "person"`}, want: true},
		{name: "expr - list", condition: core.Condition{Kind: core.KindExpr, Expr: `"Staff" in subject.employeeType`}, want: true},
		{name: "expr - false", condition: core.Condition{Kind: core.KindExpr, Expr: `subject.userAccountControl > 1000`}, want: false},
	}

	eval := &Evaluator{Now: fixedNow}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newPerson()
			s.AddTargetSystem("AD", nil)
			conds := &core.Conditions{Items: []core.Condition{tt.condition}}
			got, err := eval.Met(conds, s, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Met() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_EmptyGroupIsMet(t *testing.T) {
	eval := &Evaluator{Now: fixedNow}
	s := newPerson()

	for name, conds := range map[string]*core.Conditions{
		"nil":       nil,
		"empty and": {Operator: core.OpAnd},
		"empty or":  {Operator: core.OpOr},
		"default":   {},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := eval.Met(conds, s, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got {
				t.Error("empty condition group should be met")
			}
		})
	}
}

func TestEvaluate_ShortCircuit(t *testing.T) {
	eval := &Evaluator{Now: fixedNow}
	s := newPerson()

	// the second child would fail with an unknown target system if evaluated
	unreachable := core.Condition{Kind: core.KindConnected, TargetSystem: "nowhere"}

	and := &core.Conditions{Operator: core.OpAnd, Items: []core.Condition{
		{Kind: core.KindPresent, Attribute: "mail"},
		unreachable,
	}}
	res, err := eval.Evaluate(and, s, nil)
	if err != nil {
		t.Fatalf("AND: unexpected error: %v", err)
	}
	if res.Matched || len(res.Children) != 1 {
		t.Errorf("AND: matched=%v children=%d, want false/1", res.Matched, len(res.Children))
	}

	or := &core.Conditions{Operator: core.OpOr, Items: []core.Condition{
		{Kind: core.KindPresent, Attribute: "accountName"},
		unreachable,
	}}
	res, err = eval.Evaluate(or, s, nil)
	if err != nil {
		t.Fatalf("OR: unexpected error: %v", err)
	}
	if !res.Matched || len(res.Children) != 1 {
		t.Errorf("OR: matched=%v children=%d, want true/1", res.Matched, len(res.Children))
	}
}

func TestEvaluate_NestedGroups(t *testing.T) {
	eval := &Evaluator{Now: fixedNow}
	s := newPerson()

	conds := &core.Conditions{Operator: core.OpAnd, Items: []core.Condition{
		{Kind: core.KindPresent, Attribute: "accountName"},
		{Kind: core.KindSub, Operator: core.OpOr, Description: "department", Items: []core.Condition{
			{Kind: core.KindMatch, Attribute: "department", Pattern: "^HR"},
			{Kind: core.KindMatch, Attribute: "department", Pattern: "^IT"},
		}},
	}}

	res, err := eval.Evaluate(conds, s, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Matched {
		t.Fatal("expected nested conditions to be met")
	}
	if len(res.Children) != 2 || len(res.Children[1].Children) != 2 {
		t.Fatalf("unexpected trace shape: %+v", res)
	}
	if res.Children[1].Label != "OR (department)" {
		t.Errorf("label = %q", res.Children[1].Label)
	}

	var flat []core.ConditionResult
	FlattenConditionResult(&flat, res, 0)
	if len(flat) != 5 {
		t.Errorf("flattened %d lines, want 5", len(flat))
	}
}

func TestEvaluate_ErrorFailsTree(t *testing.T) {
	eval := &Evaluator{Now: fixedNow}
	s := newPerson()

	conds := &core.Conditions{Items: []core.Condition{
		{Kind: core.KindConnected, TargetSystem: "nowhere"},
	}}
	res, err := eval.Evaluate(conds, s, nil)
	if err == nil {
		t.Fatal("expected error for unknown target system")
	}
	if res.Matched {
		t.Error("tree must not be met when evaluation fails")
	}
}

func TestEvaluate_ConnectorComparisons(t *testing.T) {
	eval := &Evaluator{Now: fixedNow}
	s := newPerson()
	s.Set("mail", core.Str("jdoe@corp.example"))
	s.Set("distinguishedName", core.Str("cn=JDOE,ou=users,dc=corp,dc=example"))

	ts := s.AddTargetSystem("AD", nil)
	conn, err := ts.AddExisting("user", "CN=jdoe,OU=Users,DC=corp,DC=example", map[string][]core.Value{
		"mail": {core.Str("jdoe@corp.example")},
		"cn":   {core.Str("John")},
	})
	if err != nil {
		t.Fatalf("adding connector: %v", err)
	}

	tests := []struct {
		name      string
		condition core.Condition
		want      bool
	}{
		{name: "equal", condition: core.Condition{Kind: core.KindEqual, Attribute: "mail", ConnectorAttribute: "mail"}, want: true},
		{name: "equal - both absent", condition: core.Condition{Kind: core.KindEqual, Attribute: "phone", ConnectorAttribute: "phone"}, want: true},
		{name: "equal - one absent", condition: core.Condition{Kind: core.KindEqual, Attribute: "phone", ConnectorAttribute: "cn"}, want: false},
		{name: "not_equal", condition: core.Condition{Kind: core.KindNotEqual, Attribute: "accountName", ConnectorAttribute: "cn"}, want: true},
		{name: "dn_equal - connector name", condition: core.Condition{Kind: core.KindDNEqual, Attribute: "distinguishedName", ConnectorAttribute: core.DNSentinel}, want: true},
		{name: "dn_not_equal - connector name", condition: core.Condition{Kind: core.KindDNNotEqual, Attribute: "distinguishedName", ConnectorAttribute: core.DNSentinel}, want: false},
		{name: "dn_equal - both absent", condition: core.Condition{Kind: core.KindDNEqual, Attribute: "manager", ConnectorAttribute: "manager"}, want: true},
		{name: "connected", condition: core.Condition{Kind: core.KindConnected, TargetSystem: "AD"}, want: true},
		{name: "expr on connector", condition: core.Condition{Kind: core.KindExpr, Expr: `connector.cn == "John"`}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conds := &core.Conditions{Items: []core.Condition{tt.condition}}
			got, err := eval.Met(conds, s, conn)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Met() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("equal without connector", func(t *testing.T) {
		conds := &core.Conditions{Items: []core.Condition{
			{Kind: core.KindEqual, Attribute: "mail", ConnectorAttribute: "mail"},
		}}
		got, err := eval.Met(conds, s, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got {
			t.Error("equal without a connector must not be met")
		}
	})
}

func intPtr(i int) *int { return &i }
