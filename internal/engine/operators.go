package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/sorengranfeldt/mre/internal/core"
)

// dateLayouts are tried in order when an attribute is compared as a date.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse '%s' as a date", s)
}

// evaluateLeaf returns whether the predicate holds and, if not, why.
func (e *Evaluator) evaluateLeaf(c *core.Condition, subject core.Subject, connector core.Connector) (bool, string, error) {
	kind := c.Kind
	if replacement, obsolete := kind.IsObsolete(); obsolete {
		kind = replacement
	}

	switch kind {
	case core.KindPresent:
		if _, ok := subject.Attribute(c.Attribute); !ok {
			return false, fmt.Sprintf("attribute '%s' is not present", c.Attribute), nil
		}
		return true, "", nil

	case core.KindAbsent:
		if _, ok := subject.Attribute(c.Attribute); ok {
			return false, fmt.Sprintf("attribute '%s' is present", c.Attribute), nil
		}
		return true, "", nil

	case core.KindMatch, core.KindNotMatch:
		return e.evaluateMatch(c, kind, subject)

	case core.KindIsTrue, core.KindIsFalse, core.KindNotTrue:
		return e.evaluateBoolean(c, kind, subject)

	case core.KindBitSet, core.KindBitNotSet:
		return e.evaluateBits(c, kind, subject)

	case core.KindEqual:
		return e.evaluateEqual(c, subject, connector)

	case core.KindNotEqual:
		eq, reason, err := e.evaluateEqual(c, subject, connector)
		if err != nil || reason == errNoConnector {
			return false, reason, err
		}
		if eq {
			return false, "values are equal", nil
		}
		return true, "", nil

	case core.KindDNEqual:
		return e.evaluateDNEqual(c, subject, connector)

	case core.KindDNNotEqual:
		eq, reason, err := e.evaluateDNEqual(c, subject, connector)
		if err != nil || reason == errNoConnector {
			return false, reason, err
		}
		if eq {
			return false, "names are equal", nil
		}
		return true, "", nil

	case core.KindAfter, core.KindBefore:
		return e.evaluateDate(c, kind, subject)

	case core.KindBetween:
		return e.evaluateBetween(c, subject)

	case core.KindConnected, core.KindNotConnected:
		ts, err := subject.Connections(c.TargetSystem)
		if err != nil {
			return false, "", err
		}
		n := ts.ConnectorCount()
		if kind == core.KindConnected && n == 0 {
			return false, fmt.Sprintf("not connected to '%s'", c.TargetSystem), nil
		}
		if kind == core.KindNotConnected && n > 0 {
			return false, fmt.Sprintf("connected to '%s' (%d connectors)", c.TargetSystem, n), nil
		}
		return true, "", nil

	case core.KindContains, core.KindNotContains:
		found, reason := contains(c, subject)
		if kind == core.KindNotContains {
			if found {
				return false, fmt.Sprintf("'%s' contains '%s'", c.Attribute, c.Value), nil
			}
			return true, "", nil
		}
		return found, reason, nil

	case core.KindExpr:
		return e.evaluateExpr(c, subject, connector)
	}

	return false, "", fmt.Errorf("unknown condition kind '%s'", c.Kind)
}

const errNoConnector = "no connector to compare with"

func (e *Evaluator) evaluateMatch(c *core.Condition, kind core.ConditionKind, subject core.Subject) (bool, string, error) {
	v, ok := subject.Attribute(c.Attribute)
	if !ok {
		if kind == core.KindNotMatch {
			return true, "", nil
		}
		return false, fmt.Sprintf("attribute '%s' is not present", c.Attribute), nil
	}

	re := c.Compiled
	if re == nil {
		var err error
		re, err = CompilePattern(c.Pattern)
		if err != nil {
			return false, "", err
		}
	}

	matched := re.MatchString(v.Text())
	switch {
	case kind == core.KindMatch && !matched:
		return false, fmt.Sprintf("'%s' does not match /%s/", v.Text(), c.Pattern), nil
	case kind == core.KindNotMatch && matched:
		return false, fmt.Sprintf("'%s' matches /%s/", v.Text(), c.Pattern), nil
	}
	return true, "", nil
}

// CompilePattern compiles a case-insensitive condition pattern.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern /%s/: %w", pattern, err)
	}
	return re, nil
}

// boolValue reads an attribute as boolean. Strings are parsed leniently.
func boolValue(v core.Value) (bool, error) {
	switch v.Type {
	case core.TypeBoolean:
		return v.Bool, nil
	case core.TypeInteger:
		return v.Int != 0, nil
	default:
		return strconv.ParseBool(strings.TrimSpace(v.Text()))
	}
}

func (e *Evaluator) evaluateBoolean(c *core.Condition, kind core.ConditionKind, subject core.Subject) (bool, string, error) {
	v, ok := subject.Attribute(c.Attribute)
	if !ok {
		if kind == core.KindNotTrue {
			return true, "", nil
		}
		return false, fmt.Sprintf("attribute '%s' is not present", c.Attribute), nil
	}
	b, err := boolValue(v)
	if err != nil {
		e.log().Warn("unable-to-read-'%s'-as-boolean: %s", c.Attribute, v.Text())
		if kind == core.KindNotTrue {
			return true, "", nil
		}
		return false, fmt.Sprintf("'%s' is not a boolean", v.Text()), nil
	}

	switch kind {
	case core.KindIsTrue:
		if !b {
			return false, "boolean value is false", nil
		}
	case core.KindIsFalse:
		if b {
			return false, "boolean value is true", nil
		}
	case core.KindNotTrue:
		if b {
			return false, "boolean value is true", nil
		}
	}
	return true, "", nil
}

func (e *Evaluator) evaluateBits(c *core.Condition, kind core.ConditionKind, subject core.Subject) (bool, string, error) {
	v, ok := subject.Attribute(c.Attribute)
	if !ok {
		return false, fmt.Sprintf("attribute '%s' is not present", c.Attribute), nil
	}
	n := v.Int
	if v.Type != core.TypeInteger {
		parsed, err := strconv.ParseInt(strings.TrimSpace(v.Text()), 10, 64)
		if err != nil {
			e.log().Warn("unable-to-read-'%s'-as-integer: %s", c.Attribute, v.Text())
			return false, fmt.Sprintf("'%s' is not an integer", v.Text()), nil
		}
		n = parsed
	}

	mask := c.BitMask()
	if kind == core.KindBitSet && n&mask != mask {
		return false, fmt.Sprintf("bits 0x%x in attribute '%s' are not set", mask, c.Attribute), nil
	}
	if kind == core.KindBitNotSet && n&mask != 0 {
		return false, fmt.Sprintf("bits 0x%x in attribute '%s' are set", n&mask, c.Attribute), nil
	}
	return true, "", nil
}

// evaluateEqual compares texts; two absent values are equal.
func (e *Evaluator) evaluateEqual(c *core.Condition, subject core.Subject, connector core.Connector) (bool, string, error) {
	if connector == nil {
		return false, errNoConnector, nil
	}
	sv, sok := subject.Attribute(c.Attribute)
	var cv core.Value
	var cok bool
	if core.IsDNSentinel(c.ConnectorAttribute) {
		if name := connector.Name(); name != nil {
			cv, cok = core.Str(name.String()), true
		}
	} else {
		cv, cok = connector.Attribute(c.ConnectorAttribute)
	}

	switch {
	case !sok && !cok:
		return true, "", nil
	case sok != cok:
		return false, "value is only present on one side", nil
	case sv.Text() != cv.Text():
		return false, fmt.Sprintf("'%s' is not equal to '%s'", sv.Text(), cv.Text()), nil
	}
	return true, "", nil
}

// evaluateDNEqual compares the values as names of the connector's target system.
func (e *Evaluator) evaluateDNEqual(c *core.Condition, subject core.Subject, connector core.Connector) (bool, string, error) {
	if connector == nil {
		return false, errNoConnector, nil
	}
	ts := connector.TargetSystem()
	sv, sok := subject.Attribute(c.Attribute)

	var other core.Name
	if core.IsDNSentinel(c.ConnectorAttribute) {
		other = connector.Name()
		if !sok {
			return false, fmt.Sprintf("attribute '%s' is not present", c.Attribute), nil
		}
	} else {
		cv, cok := connector.Attribute(c.ConnectorAttribute)
		if !sok && !cok {
			return true, "", nil
		}
		if sok != cok {
			return false, "value is only present on one side", nil
		}
		name, err := ts.BuildName(cv.Text())
		if err != nil {
			return false, "", err
		}
		other = name
	}

	if sv.Type != core.TypeString && sv.Type != core.TypeReference {
		e.log().Error("can only compare string values as names, '%s' is %s", c.Attribute, sv.Type)
	}
	mine, err := ts.BuildName(sv.Text())
	if err != nil {
		return false, "", err
	}
	if other == nil || !mine.Equal(other) {
		return false, fmt.Sprintf("'%s' is not the same name as '%v'", mine, other), nil
	}
	return true, "", nil
}

func (e *Evaluator) readDate(subject core.Subject, attribute string) (time.Time, string, bool) {
	v, ok := subject.Attribute(attribute)
	if !ok {
		return time.Time{}, fmt.Sprintf("attribute '%s' is not present", attribute), false
	}
	t, err := parseDate(v.Text())
	if err != nil {
		e.log().Warn("unable-to-parse-value-to-datetime %s", v.Text())
		return time.Time{}, err.Error(), false
	}
	return t, "", true
}

func (e *Evaluator) evaluateDate(c *core.Condition, kind core.ConditionKind, subject core.Subject) (bool, string, error) {
	t, reason, ok := e.readDate(subject, c.Attribute)
	if !ok {
		return false, reason, nil
	}
	now := e.now()
	e.log().Debug("compare-dates now: %s, value: %s", now.Format(time.RFC3339), t.Format(time.RFC3339))
	if kind == core.KindAfter && !now.After(t) {
		return false, fmt.Sprintf("now is not after %s", t.Format(time.RFC3339)), nil
	}
	if kind == core.KindBefore && !now.Before(t) {
		return false, fmt.Sprintf("now is not before %s", t.Format(time.RFC3339)), nil
	}
	return true, "", nil
}

func (e *Evaluator) evaluateBetween(c *core.Condition, subject core.Subject) (bool, string, error) {
	start, reason, ok := e.readDate(subject, c.StartAttribute)
	if !ok {
		return false, reason, nil
	}
	end, reason, ok := e.readDate(subject, c.EndAttribute)
	if !ok {
		return false, reason, nil
	}
	now := e.now()
	if !now.After(start) || !now.Before(end) {
		return false, fmt.Sprintf("now is not between %s and %s", start.Format(time.RFC3339), end.Format(time.RFC3339)), nil
	}
	return true, "", nil
}

func contains(c *core.Condition, subject core.Subject) (bool, string) {
	vals := subject.Values(c.Attribute)
	if len(vals) == 0 {
		return false, fmt.Sprintf("attribute '%s' has no values", c.Attribute)
	}
	for _, v := range vals {
		if v.Text() == c.Value || (!c.CaseSensitive && strings.EqualFold(v.Text(), c.Value)) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("'%s' does not contain '%s'", c.Attribute, c.Value)
}

func (e *Evaluator) evaluateExpr(c *core.Condition, subject core.Subject, connector core.Connector) (bool, string, error) {
	program := c.CompiledExpr
	if program == nil {
		var err error
		program, err = expr.Compile(c.Expr, expr.AsBool())
		if err != nil {
			return false, "", fmt.Errorf("compiling expression: %w", err)
		}
	}
	out, err := expr.Run(program, ExprEnv(subject, connector))
	if err != nil {
		e.log().Warn("error evaluating expression '%s': %v", c.Expr, err)
		return false, fmt.Sprintf("error evaluating expression: %v", err), nil
	}
	if b, ok := out.(bool); !ok || !b {
		return false, "expression evaluated to false", nil
	}
	return true, "", nil
}

// ExprEnv is the environment expressions run in: subject and connector
// attributes (single values as scalars, multiple as lists), object_type and id.
func ExprEnv(subject core.Subject, connector core.Connector) map[string]any {
	env := map[string]any{
		"subject":     map[string]any{},
		"connector":   map[string]any{},
		"object_type": "",
		"id":          "",
	}
	if subject != nil {
		env["subject"] = attributeMap(subject.AttributeNames(), subject.Values)
		env["object_type"] = subject.ObjectType()
		env["id"] = subject.UniqueID().String()
	}
	if connector != nil {
		values := func(name string) []core.Value {
			if v, ok := connector.Attribute(name); ok {
				return []core.Value{v}
			}
			return nil
		}
		cm := attributeMap(connector.AttributeNames(), values)
		if name := connector.Name(); name != nil {
			cm["dn"] = name.String()
		}
		env["connector"] = cm
	}
	return env
}

func attributeMap(names []string, values func(string) []core.Value) map[string]any {
	m := make(map[string]any, len(names))
	for _, name := range names {
		vals := values(name)
		switch len(vals) {
		case 0:
		case 1:
			m[name] = vals[0].Native()
		default:
			list := make([]any, len(vals))
			for i, v := range vals {
				list[i] = v.Native()
			}
			m[name] = list
		}
	}
	return m
}
