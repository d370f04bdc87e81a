package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/logging"
)

// Evaluator evaluates condition trees against a subject and, optionally, one
// of its connectors. It holds no per-call state and is safe for concurrent use
// as long as Log is.
type Evaluator struct {
	Log logging.InternalLogger
	Now func() time.Time
}

func NewEvaluator(log logging.InternalLogger) *Evaluator {
	return &Evaluator{Log: logging.OrNop(log), Now: time.Now}
}

func (e *Evaluator) log() logging.InternalLogger {
	return logging.OrNop(e.Log)
}

func (e *Evaluator) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Met reports whether conds hold. A nil tree is always met.
func (e *Evaluator) Met(conds *core.Conditions, subject core.Subject, connector core.Connector) (bool, error) {
	res, err := e.Evaluate(conds, subject, connector)
	return res.Matched, err
}

// Evaluate evaluates conds and returns the evaluation trace. Children that
// were skipped by short-circuiting do not appear in the trace.
func (e *Evaluator) Evaluate(conds *core.Conditions, subject core.Subject, connector core.Connector) (core.ConditionResult, error) {
	if conds == nil {
		return core.ConditionResult{Matched: true, Label: "(empty)"}, nil
	}
	return e.evaluateGroup(conds.Operator, conds.Items, subject, connector)
}

func (e *Evaluator) evaluateGroup(
	op core.Operator,
	items []core.Condition,
	subject core.Subject,
	connector core.Connector,
) (core.ConditionResult, error) {
	op = op.Normalized()
	res := core.ConditionResult{Label: strings.ToUpper(string(op))}

	// an empty group is met regardless of the operator
	if len(items) == 0 {
		res.Matched = true
		return res, nil
	}

	isAnd := op != core.OpOr
	res.Matched = isAnd
	for i := range items {
		cr, err := e.evaluateCondition(&items[i], subject, connector)
		res.Children = append(res.Children, cr)
		if err != nil {
			res.Matched = false
			return res, err
		}
		if isAnd && !cr.Matched {
			res.Matched = false
			break
		}
		if !isAnd && cr.Matched {
			res.Matched = true
			break
		}
	}
	return res, nil
}

func (e *Evaluator) evaluateCondition(c *core.Condition, subject core.Subject, connector core.Connector) (core.ConditionResult, error) {
	if c.Kind == core.KindSub {
		res, err := e.evaluateGroup(c.Operator, c.Items, subject, connector)
		if c.Description != "" {
			res.Label = fmt.Sprintf("%s (%s)", res.Label, c.Description)
		}
		return res, err
	}

	matched, reason, err := e.evaluateLeaf(c, subject, connector)
	if err != nil {
		return core.ConditionResult{
			Expression: c.Label(),
			Reason:     err.Error(),
		}, err
	}
	if !matched {
		desc := c.Description
		if desc == "" {
			desc = c.Label()
		}
		e.log().Debug("condition failed (reason: %s) %s", reason, desc)
	}
	return core.ConditionResult{
		Matched:    matched,
		Expression: c.Label(),
		Reason:     reason,
	}, nil
}

// FlattenConditionResult turns a result tree into an indented list for display.
func FlattenConditionResult(out *[]core.ConditionResult, cr core.ConditionResult, depth int) {
	indent := strings.Repeat("  ", depth)

	if cr.Expression != "" {
		*out = append(*out, core.ConditionResult{
			Expression: indent + cr.Expression,
			Matched:    cr.Matched,
			Reason:     cr.Reason,
		})
		return
	}

	if cr.Label != "" {
		*out = append(*out, core.ConditionResult{
			Expression: indent + "[" + cr.Label + "]",
			Matched:    cr.Matched,
		})
	}

	for _, child := range cr.Children {
		FlattenConditionResult(out, child, depth+1)
	}
}
