package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/helpers"
	"github.com/sorengranfeldt/mre/internal/logging"
	"github.com/sorengranfeldt/mre/internal/macro"
)

// ExternalResolver looks up external handlers by reference id.
type ExternalResolver interface {
	Get(referenceID string) (core.ExternalHandler, bool)
}

// Engine holds the loaded rule set and dispatches subjects against it.
// An Engine is immutable once built.
type Engine struct {
	rules       *core.RuleSet
	allDisabled bool
	externals   ExternalResolver
	helpers     *helpers.Generator
	now         func() time.Time
	newID       func() uuid.UUID
}

type Option func(*Engine)

func WithExternals(r ExternalResolver) Option {
	return func(e *Engine) { e.externals = r }
}

func WithHelperGenerator(g *helpers.Generator) Option {
	return func(e *Engine) { e.helpers = g }
}

// WithAllRulesDisabled turns every dispatch into a no-op.
func WithAllRulesDisabled(disabled bool) Option {
	return func(e *Engine) { e.allDisabled = disabled }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDSource replaces the generator of identifier flows.
func WithIDSource(newID func() uuid.UUID) Option {
	return func(e *Engine) { e.newID = newID }
}

// New creates a new Engine for the given rules.
func New(rules *core.RuleSet, opts ...Option) *Engine {
	e := &Engine{
		rules:   rules,
		helpers: helpers.NewGenerator(0),
		now:     time.Now,
		newID:   uuid.New,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Rules() *core.RuleSet {
	return e.rules
}

func (e *Engine) AllRulesDisabled() bool {
	return e.allDisabled
}

// Dispatch runs every rule for the subject's type in declaration order.
// The first rule acting on a target system wins; later rules for the same
// system are skipped. An error aborts the pass and is returned together with
// the partial result.
func (e *Engine) Dispatch(subject core.Subject, sink logging.InternalLogger) (*core.DispatchResult, error) {
	sink = logging.OrNop(sink)
	p := &pass{
		engine:  e,
		subject: subject,
		log:     sink,
		eval:    &Evaluator{Log: sink, Now: e.now},
		flows:   &FlowGenerator{Log: sink, NewID: e.newID},
		acted:   make(map[string]struct{}),
		result: &core.DispatchResult{
			SubjectID:   subject.UniqueID().String(),
			SubjectType: subject.ObjectType(),
		},
	}

	if e.allDisabled {
		sink.Info("provisioning is disabled")
		return p.result, nil
	}

	for _, rule := range e.rules.ForSubjectType(subject.ObjectType()) {
		trace := core.RuleTrace{
			Rule:         rule.Name,
			Action:       rule.Action,
			TargetSystem: rule.TargetSystem,
		}
		key := strings.ToLower(rule.TargetSystem)

		if _, done := p.acted[key]; done && key != "" {
			trace.Outcome = core.OutcomeSkipped
			trace.Reason = fmt.Sprintf("target system '%s' was already acted upon in this pass", rule.TargetSystem)
			sink.Debug("skipping rule '%s': %s", rule.Name, trace.Reason)
			p.result.Rules = append(p.result.Rules, trace)
			continue
		}

		sink.Debug("start rule '%s'", rule.Name)
		outcome, err := p.apply(rule, &trace)
		if err != nil {
			trace.Outcome = core.OutcomeFailed
			trace.Reason = err.Error()
			p.result.Rules = append(p.result.Rules, trace)
			sink.Error("rule '%s' failed: %v", rule.Name, err)
			return p.result, err
		}
		if outcome.acted {
			trace.Outcome = core.OutcomeActed
			if key != "" {
				p.acted[key] = struct{}{}
			}
		}
		p.result.Rules = append(p.result.Rules, trace)
		sink.Debug("end rule '%s' (%s)", rule.Name, trace.Outcome)

		if outcome.stop {
			p.result.Stopped = true
			sink.Info("all connectors deprovisioned by rule '%s', no further rules are evaluated", rule.Name)
			break
		}
	}
	return p.result, nil
}

// pass is the state of one Dispatch call.
type pass struct {
	engine  *Engine
	subject core.Subject
	log     logging.InternalLogger
	eval    *Evaluator
	flows   *FlowGenerator
	acted   map[string]struct{}
	result  *core.DispatchResult
}

type outcome struct {
	acted bool
	stop  bool
}

func (p *pass) record(kind core.ActionKind, rule *core.Rule, oldName, newName string) {
	p.result.Actions = append(p.result.Actions, core.ActionRecord{
		Kind:         kind,
		Rule:         rule.Name,
		TargetSystem: rule.TargetSystem,
		OldName:      oldName,
		NewName:      newName,
	})
	p.log.Info("%s in '%s' by rule '%s' %s", kind, rule.TargetSystem, rule.Name, describeNames(oldName, newName))
}

func describeNames(oldName, newName string) string {
	switch {
	case oldName != "" && newName != "":
		return fmt.Sprintf("('%s' -> '%s')", oldName, newName)
	case newName != "":
		return fmt.Sprintf("('%s')", newName)
	case oldName != "":
		return fmt.Sprintf("('%s')", oldName)
	}
	return ""
}

// met evaluates conds and adds the evaluation to the trace.
func (p *pass) met(conds *core.Conditions, connector core.Connector, trace *core.RuleTrace) (bool, error) {
	res, err := p.eval.Evaluate(conds, p.subject, connector)
	trace.Conditions = append(trace.Conditions, res)
	return res.Matched, err
}

func (p *pass) apply(rule *core.Rule, trace *core.RuleTrace) (outcome, error) {
	if rule.Action == core.ActionExternal {
		return p.external(rule, trace)
	}

	ts, err := p.subject.Connections(rule.TargetSystem)
	if err != nil {
		return outcome{}, err
	}
	n := ts.ConnectorCount()
	p.log.Debug("rule '%s': %d connector(s) in '%s'", rule.Name, n, rule.TargetSystem)

	if n == 0 {
		if rule.Action != core.ActionProvision {
			trace.Outcome = core.OutcomeNoBranch
			trace.Reason = "no connectors in target system"
			return outcome{}, nil
		}
		ok, err := p.met(rule.Conditions, nil, trace)
		if err != nil {
			return outcome{}, err
		}
		if !ok {
			trace.Outcome = core.OutcomeNotMet
			return outcome{}, nil
		}
		conn, err := p.create(rule, ts)
		if err != nil {
			return outcome{}, err
		}
		p.record(core.ActionKindProvision, rule, "", nameOf(conn))
		return outcome{acted: true}, nil
	}

	var acted bool
	switch rule.Action {
	case core.ActionRename:
		acted, err = p.renameAll(rule, ts, trace)

	case core.ActionProvision:
		switch {
		case rule.ReprovisionEnabled():
			acted, err = p.reprovisionAll(rule, ts, trace)
		case rule.ConditionalRename != nil:
			acted, err = p.renameAll(rule, ts, trace)
		default:
			trace.Outcome = core.OutcomeNoBranch
			trace.Reason = "already provisioned"
			return outcome{}, nil
		}

	case core.ActionDeprovision:
		acted, err = p.deprovisionAll(rule, ts, trace)

	case core.ActionDeprovisionAll:
		for _, conn := range ts.Connectors() {
			ok, err := p.met(rule.Conditions, conn, trace)
			if err != nil {
				return outcome{}, err
			}
			if !ok {
				continue
			}
			if err := p.subject.DeprovisionAll(); err != nil {
				return outcome{}, err
			}
			p.record(core.ActionKindDeprovisionAll, rule, nameOf(conn), "")
			return outcome{acted: true, stop: true}, nil
		}

	default:
		return outcome{}, core.ConfigurationError{Rule: rule.Name, Reason: fmt.Sprintf("unknown action '%s'", rule.Action)}
	}

	if err != nil {
		return outcome{}, err
	}
	if !acted && trace.Outcome == "" {
		trace.Outcome = core.OutcomeNotMet
	}
	return outcome{acted: acted}, nil
}

func (p *pass) external(rule *core.Rule, trace *core.RuleTrace) (outcome, error) {
	ok, err := p.met(rule.Conditions, nil, trace)
	if err != nil {
		return outcome{}, err
	}
	if !ok {
		trace.Outcome = core.OutcomeNotMet
		return outcome{}, nil
	}
	var handler core.ExternalHandler
	if p.engine.externals != nil {
		handler, ok = p.engine.externals.Get(rule.External)
	}
	if handler == nil || !ok {
		return outcome{}, core.ConfigurationError{
			Rule:   rule.Name,
			Reason: fmt.Sprintf("external '%s' is not loaded", rule.External),
			Err:    core.ErrUnknownExternal,
		}
	}
	if err := handler.Provision(p.subject); err != nil {
		return outcome{}, err
	}
	p.record(core.ActionKindExternal, rule, "", "")
	return outcome{acted: true}, nil
}

// create starts a connector, runs the initial flows with fresh helper values and commits it.
func (p *pass) create(rule *core.Rule, ts core.TargetSystem) (core.Connector, error) {
	classes := p.additionalClasses(rule)
	conn, err := ts.StartNewConnector(rule.TargetObjectType, classes)
	if err != nil {
		return nil, err
	}

	res, err := p.resolver(rule)
	if err != nil {
		return nil, err
	}
	for i := range rule.InitialFlows {
		if err := p.flows.Generate(&rule.InitialFlows[i], ts, conn, rule, res); err != nil {
			return nil, fmt.Errorf("initial flow #%d to '%s': %w", i, rule.InitialFlows[i].Target, err)
		}
	}

	if err := conn.Commit(); err != nil {
		return nil, err
	}
	return conn, nil
}

// resolver builds the macro resolver for one rule invocation with freshly generated helpers.
func (p *pass) resolver(rule *core.Rule) (*macro.Resolver, error) {
	vals, err := p.engine.helpers.Generate(rule.Helpers, p.log)
	if err != nil {
		return nil, core.ConfigurationError{Rule: rule.Name, Reason: "generating helper values", Err: err}
	}
	return &macro.Resolver{
		Rule:    rule.Name,
		Subject: p.subject,
		Helpers: vals,
		Log:     p.log,
	}, nil
}

func (p *pass) additionalClasses(rule *core.Rule) []string {
	ac := rule.AdditionalClasses
	if ac.IsEmpty() {
		return nil
	}
	if ac.Attribute == "" {
		return ac.Values
	}
	vals := p.subject.Values(ac.Attribute)
	if len(vals) == 0 {
		p.log.Warn("additional object classes attribute '%s' is not present", ac.Attribute)
		return nil
	}
	classes := make([]string, 0, len(vals))
	for _, v := range vals {
		classes = append(classes, v.Text())
	}
	return classes
}

func (p *pass) renameAll(rule *core.Rule, ts core.TargetSystem, trace *core.RuleTrace) (bool, error) {
	policy := rule.ConditionalRename
	if policy == nil {
		return false, core.ConfigurationError{Rule: rule.Name, Reason: "rename requires a conditional_rename policy"}
	}

	acted := false
	for _, conn := range ts.Connectors() {
		ok, err := p.met(policy.Conditions, conn, trace)
		if err != nil {
			return acted, err
		}
		if !ok {
			continue
		}

		res, err := p.resolver(rule)
		if err != nil {
			return acted, err
		}
		text, err := res.ResolveConstant(policy.NewName, policy.EscapedCN, ts)
		if err != nil {
			return acted, err
		}
		newName, err := ts.BuildName(text)
		if err != nil {
			return acted, err
		}

		oldName := conn.Name()
		if sameName(oldName, newName, policy.StrictCompare) {
			p.log.Debug("name '%s' is unchanged, no rename", newName)
			continue
		}
		if err := conn.SetName(newName); err != nil {
			return acted, err
		}
		p.record(core.ActionKindRename, rule, nameString(oldName), newName.String())
		acted = true
	}
	return acted, nil
}

func sameName(oldName, newName core.Name, strict bool) bool {
	if oldName == nil || newName == nil {
		return oldName == nil && newName == nil
	}
	if strict {
		return oldName.String() == newName.String()
	}
	return oldName.Equal(newName)
}

func (p *pass) reprovisionAll(rule *core.Rule, ts core.TargetSystem, trace *core.RuleTrace) (bool, error) {
	acted := false
	for _, conn := range ts.Connectors() {
		ok, err := p.met(rule.Reprovision.Conditions, conn, trace)
		if err != nil {
			return acted, err
		}
		if !ok {
			continue
		}
		oldName := nameOf(conn)
		if err := conn.Deprovision(); err != nil {
			return acted, err
		}
		created, err := p.create(rule, ts)
		if err != nil {
			return acted, err
		}
		p.record(core.ActionKindReprovision, rule, oldName, nameOf(created))
		acted = true
	}
	return acted, nil
}

func (p *pass) deprovisionAll(rule *core.Rule, ts core.TargetSystem, trace *core.RuleTrace) (bool, error) {
	acted := false
	for _, conn := range ts.Connectors() {
		ok, err := p.met(rule.Conditions, conn, trace)
		if err != nil {
			return acted, err
		}
		if !ok {
			continue
		}
		if err := conn.Deprovision(); err != nil {
			return acted, err
		}
		p.record(core.ActionKindDeprovision, rule, nameOf(conn), "")
		acted = true
	}
	return acted, nil
}

func nameOf(conn core.Connector) string {
	if conn == nil {
		return ""
	}
	return nameString(conn.Name())
}

func nameString(n core.Name) string {
	if n == nil {
		return ""
	}
	return n.String()
}

// IsConfigurationError reports whether err is caused by a malformed rule.
func IsConfigurationError(err error) bool {
	var cfgErr core.ConfigurationError
	return errors.As(err, &cfgErr)
}
