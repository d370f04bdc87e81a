package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr/vm"
	"github.com/goccy/go-yaml"
)

// Operator combines the children of a condition group.
type Operator string

const (
	OpAnd Operator = "and"
	OpOr  Operator = "or"
)

func (op Operator) IsValid() bool {
	switch op {
	case OpAnd, OpOr, "":
		return true
	default:
		return false
	}
}

// Normalized returns the operator in lowercase; an empty operator means AND.
func (op Operator) Normalized() Operator {
	if op == "" {
		return OpAnd
	}
	return Operator(strings.ToLower(string(op)))
}

func (op *Operator) UnmarshalText(b []byte) error {
	*op = Operator(strings.ToLower(strings.TrimSpace(string(b))))
	if !op.IsValid() {
		return fmt.Errorf("invalid condition operator '%s', must be 'and' or 'or'", string(b))
	}
	return nil
}

// ConditionKind discriminates the Condition tagged union.
type ConditionKind string

const (
	KindPresent      ConditionKind = "present"
	KindAbsent       ConditionKind = "absent"
	KindMatch        ConditionKind = "match"
	KindNotMatch     ConditionKind = "not_match"
	KindIsTrue       ConditionKind = "is_true"
	KindIsFalse      ConditionKind = "is_false"
	KindNotTrue      ConditionKind = "not_true"
	KindBitSet       ConditionKind = "bit_set"
	KindBitNotSet    ConditionKind = "bit_not_set"
	KindEqual        ConditionKind = "equal"
	KindNotEqual     ConditionKind = "not_equal"
	KindDNEqual      ConditionKind = "dn_equal"
	KindDNNotEqual   ConditionKind = "dn_not_equal"
	KindAfter        ConditionKind = "after"
	KindBefore       ConditionKind = "before"
	KindBetween      ConditionKind = "between"
	KindConnected    ConditionKind = "connected"
	KindNotConnected ConditionKind = "not_connected"
	KindContains     ConditionKind = "contains"
	KindNotContains  ConditionKind = "not_contains"
	KindExpr         ConditionKind = "expr"
	KindSub          ConditionKind = "sub"

	// obsolete spellings, normalized during validation
	KindAttributeIsPresent    ConditionKind = "attribute_is_present"
	KindAttributeIsNotPresent ConditionKind = "attribute_is_not_present"
)

var conditionKinds = map[ConditionKind]struct{}{
	KindPresent: {}, KindAbsent: {}, KindMatch: {}, KindNotMatch: {},
	KindIsTrue: {}, KindIsFalse: {}, KindNotTrue: {}, KindBitSet: {}, KindBitNotSet: {},
	KindEqual: {}, KindNotEqual: {}, KindDNEqual: {}, KindDNNotEqual: {},
	KindAfter: {}, KindBefore: {}, KindBetween: {},
	KindConnected: {}, KindNotConnected: {}, KindContains: {}, KindNotContains: {},
	KindExpr: {}, KindSub: {},
	KindAttributeIsPresent: {}, KindAttributeIsNotPresent: {},
}

func (k ConditionKind) IsValid() bool {
	_, ok := conditionKinds[k]
	return ok
}

// IsObsolete reports whether the kind is a deprecated alias and returns its replacement.
func (k ConditionKind) IsObsolete() (ConditionKind, bool) {
	switch k {
	case KindAttributeIsPresent:
		return KindPresent, true
	case KindAttributeIsNotPresent:
		return KindAbsent, true
	}
	return k, false
}

// DNSentinel refers to the connector's own name instead of an attribute.
const DNSentinel = "[DN]"

// IsDNSentinel reports whether s is the [DN] sentinel (case-insensitive).
func IsDNSentinel(s string) bool {
	return strings.EqualFold(s, DNSentinel)
}

// Conditions is the root of a condition tree.
// A nil *Conditions, or one without items, is always met.
type Conditions struct {
	Operator Operator    `yaml:"operator,omitempty" json:"operator,omitempty"`
	Items    []Condition `yaml:"items,omitempty" json:"items,omitempty"`
}

func (c *Conditions) UnmarshalYAML(unmarshal func(any) error) error {
	// a bare list is shorthand for an AND over its items
	var list []Condition
	if err := unmarshal(&list); err == nil {
		*c = Conditions{Operator: OpAnd, Items: list}
		return nil
	}
	type plain Conditions
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	*c = Conditions(p)
	return nil
}

// Clone returns a deep copy of the tree, nested items included.
func (c *Conditions) Clone() *Conditions {
	if c == nil {
		return nil
	}
	return &Conditions{Operator: c.Operator, Items: cloneItems(c.Items)}
}

func cloneItems(items []Condition) []Condition {
	if items == nil {
		return nil
	}
	out := make([]Condition, len(items))
	copy(out, items)
	for i := range out {
		out[i].Items = cloneItems(out[i].Items)
		if out[i].BitPosition != nil {
			pos := *out[i].BitPosition
			out[i].BitPosition = &pos
		}
	}
	return out
}

func (c *Conditions) Validate() error {
	if c == nil {
		return nil
	}
	if !c.Operator.IsValid() {
		return fmt.Errorf("invalid operator '%s'", c.Operator)
	}
	for i := range c.Items {
		if err := c.Items[i].Validate(); err != nil {
			return fmt.Errorf("condition #%d: %w", i, err)
		}
	}
	return nil
}

// Condition is one node of a condition tree. Kind selects which of the
// remaining fields are meaningful.
type Condition struct {
	Kind        ConditionKind `yaml:"kind" json:"kind"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`

	// Attribute is the subject attribute most predicates inspect.
	Attribute string `yaml:"attribute,omitempty" json:"attribute,omitempty"`

	// ConnectorAttribute is compared against Attribute by the equality kinds.
	// The [DN] sentinel selects the connector's own name.
	ConnectorAttribute string `yaml:"connector_attribute,omitempty" json:"connector_attribute,omitempty"`

	// Pattern is a case-insensitive regular expression (match, not_match).
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`

	// Mask holds the bits tested by bit_set and bit_not_set. BitPosition
	// selects a single bit instead and is used when Mask is zero.
	Mask        int64 `yaml:"mask,omitempty" json:"mask,omitempty"`
	BitPosition *int  `yaml:"bit_position,omitempty" json:"bit_position,omitempty"`

	// StartAttribute and EndAttribute bound the between kind.
	StartAttribute string `yaml:"start_attribute,omitempty" json:"start_attribute,omitempty"`
	EndAttribute   string `yaml:"end_attribute,omitempty" json:"end_attribute,omitempty"`

	// TargetSystem is checked by connected and not_connected.
	TargetSystem string `yaml:"target_system,omitempty" json:"target_system,omitempty"`

	// Value is looked up by contains and not_contains.
	// Values are compared case-insensitively unless CaseSensitive is set.
	Value         string `yaml:"value,omitempty" json:"value,omitempty"`
	CaseSensitive bool   `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`

	// Expr is an expr-lang boolean expression.
	Expr string `yaml:"expr,omitempty" json:"expr,omitempty"`

	// Operator and Items make up a sub condition.
	Operator Operator    `yaml:"operator,omitempty" json:"operator,omitempty"`
	Items    []Condition `yaml:"items,omitempty" json:"items,omitempty"`

	// Compiled holds the pre-compiled form of Pattern.
	Compiled *regexp.Regexp `yaml:"-" json:"-"`

	// CompiledExpr holds the pre-compiled form of Expr.
	CompiledExpr *vm.Program `yaml:"-" json:"-"`
}

func (c *Condition) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]any
	if err := unmarshal(&raw); err != nil {
		return err
	}

	if _, explicit := raw["kind"]; explicit {
		type plain Condition // prevents recursion
		var p plain
		if err := unmarshal(&p); err != nil {
			return err
		}
		*c = Condition(p)
		c.Kind = ConditionKind(strings.ToLower(string(c.Kind)))
		return nil
	}

	// shorthands:
	//   { present: department }                       -> kind present, attribute department
	//   { connected: AD }                             -> kind connected, target_system AD
	//   { match: { attribute: x, pattern: "^a" } }    -> kind match with the given fields
	//   { any: [ ... ] } / { all: [ ... ] }           -> sub condition
	if len(raw) != 1 {
		return fmt.Errorf("condition needs a 'kind' or exactly one shorthand key, got %d keys", len(raw))
	}
	for key, val := range raw {
		lkey := strings.ToLower(key)

		if lkey == "all" || lkey == "any" {
			items, err := remarshal[[]Condition](val)
			if err != nil {
				return fmt.Errorf("decoding '%s' items: %w", key, err)
			}
			*c = Condition{Kind: KindSub, Operator: OpAnd, Items: items}
			if lkey == "any" {
				c.Operator = OpOr
			}
			return nil
		}

		kind := ConditionKind(lkey)
		if !kind.IsValid() {
			return fmt.Errorf("unknown condition kind '%s'", key)
		}

		switch v := val.(type) {
		case string:
			*c = Condition{Kind: kind}
			switch kind {
			case KindConnected, KindNotConnected:
				c.TargetSystem = v
			case KindExpr:
				c.Expr = v
			default:
				c.Attribute = v
			}
			return nil
		case map[string]any:
			v["kind"] = string(kind)
			decoded, err := remarshal[Condition](v)
			if err != nil {
				return fmt.Errorf("decoding '%s' condition: %w", key, err)
			}
			*c = decoded
			return nil
		default:
			return fmt.Errorf("unsupported value for condition '%s': %T", key, val)
		}
	}
	return nil
}

// remarshal decodes an already unmarshalled YAML fragment into T,
// running T's own UnmarshalYAML on the way.
func remarshal[T any](v any) (T, error) {
	var out T
	b, err := yaml.Marshal(v)
	if err != nil {
		return out, err
	}
	err = yaml.Unmarshal(b, &out)
	return out, err
}

// Validate checks that the fields the kind needs are set.
func (c *Condition) Validate() error {
	if c == nil {
		return nil
	}
	if !c.Kind.IsValid() {
		return fmt.Errorf("unknown condition kind '%s'", c.Kind)
	}

	require := func(field, value string) error {
		if value == "" {
			return fmt.Errorf("condition '%s' requires '%s'", c.Kind, field)
		}
		return nil
	}

	switch c.Kind {
	case KindPresent, KindAbsent, KindIsTrue, KindIsFalse, KindNotTrue,
		KindAfter, KindBefore, KindAttributeIsPresent, KindAttributeIsNotPresent:
		return require("attribute", c.Attribute)

	case KindMatch, KindNotMatch:
		if err := require("attribute", c.Attribute); err != nil {
			return err
		}
		return require("pattern", c.Pattern)

	case KindBitSet, KindBitNotSet:
		if err := require("attribute", c.Attribute); err != nil {
			return err
		}
		if c.Mask == 0 && c.BitPosition == nil {
			return fmt.Errorf("condition '%s' requires a non-zero 'mask' or a 'bit_position'", c.Kind)
		}
		if c.Mask == 0 && (*c.BitPosition < 0 || *c.BitPosition > 62) {
			return fmt.Errorf("condition '%s': bit_position %d is out of range 0-62", c.Kind, *c.BitPosition)
		}
		return nil

	case KindEqual, KindNotEqual, KindDNEqual, KindDNNotEqual:
		if err := require("attribute", c.Attribute); err != nil {
			return err
		}
		return require("connector_attribute", c.ConnectorAttribute)

	case KindBetween:
		if err := require("start_attribute", c.StartAttribute); err != nil {
			return err
		}
		return require("end_attribute", c.EndAttribute)

	case KindConnected, KindNotConnected:
		return require("target_system", c.TargetSystem)

	case KindContains, KindNotContains:
		if err := require("attribute", c.Attribute); err != nil {
			return err
		}
		return require("value", c.Value)

	case KindExpr:
		return require("expr", c.Expr)

	case KindSub:
		if !c.Operator.IsValid() {
			return fmt.Errorf("invalid operator '%s' in sub condition", c.Operator)
		}
		for i := range c.Items {
			if err := c.Items[i].Validate(); err != nil {
				return fmt.Errorf("sub condition item #%d: %w", i, err)
			}
		}
		return nil
	}

	return nil
}

// BitMask returns the bits tested by bit_set and bit_not_set.
func (c *Condition) BitMask() int64 {
	if c.Mask == 0 && c.BitPosition != nil {
		return 1 << *c.BitPosition
	}
	return c.Mask
}

// Label returns a short human readable form used in traces.
func (c *Condition) Label() string {
	switch c.Kind {
	case KindMatch, KindNotMatch:
		return fmt.Sprintf("%s %s /%s/", c.Attribute, c.Kind, c.Pattern)
	case KindBitSet, KindBitNotSet:
		return fmt.Sprintf("%s %s 0x%x", c.Attribute, c.Kind, c.BitMask())
	case KindEqual, KindNotEqual, KindDNEqual, KindDNNotEqual:
		return fmt.Sprintf("%s %s connector.%s", c.Attribute, c.Kind, c.ConnectorAttribute)
	case KindBetween:
		return fmt.Sprintf("now between %s and %s", c.StartAttribute, c.EndAttribute)
	case KindConnected, KindNotConnected:
		return fmt.Sprintf("%s %s", c.Kind, c.TargetSystem)
	case KindContains, KindNotContains:
		return fmt.Sprintf("%s %s '%s'", c.Attribute, c.Kind, c.Value)
	case KindExpr:
		return c.Expr
	case KindSub:
		return strings.ToUpper(string(c.Operator.Normalized()))
	default:
		return fmt.Sprintf("%s %s", c.Attribute, c.Kind)
	}
}
