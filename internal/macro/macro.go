// Package macro expands #helper:Name#, #mv:Attribute# and #param:EscapedCN# placeholders.
package macro

import (
	"fmt"
	"regexp"

	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/helpers"
	"github.com/sorengranfeldt/mre/internal/logging"
)

var (
	helperPattern = regexp.MustCompile(`#helper:(\w+)#`)
	mvPattern     = regexp.MustCompile(`#mv:(\w+)#`)
	paramPattern  = regexp.MustCompile(`(?i)#param:EscapedCN#`)
)

// Resolver expands placeholders for one rule invocation.
type Resolver struct {
	Rule    string
	Subject core.Subject
	Helpers helpers.Values
	Log     logging.InternalLogger
}

// ExpandHelpers replaces every #helper:Name# with the helper's value.
// An unknown helper is a configuration error.
func (r *Resolver) ExpandHelpers(s string) (string, error) {
	log := logging.OrNop(r.Log)
	var missing string
	out := helperPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := helperPattern.FindStringSubmatch(m)[1]
		val, ok := r.Helpers.Lookup(name)
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		log.Debug("expanded helper '%s'", name)
		return val
	})
	if missing != "" {
		return "", core.ConfigurationError{
			Rule:   r.Rule,
			Reason: fmt.Sprintf("helper '%s' is referenced but not declared", missing),
			Err:    core.ErrUnknownHelper,
		}
	}
	return out, nil
}

// ExpandAttributes replaces #param:EscapedCN# with escapedCN and every
// #mv:Attribute# with the subject's attribute text, or blank if absent.
// Substituted values are not expanded again.
func (r *Resolver) ExpandAttributes(s, escapedCN string) string {
	log := logging.OrNop(r.Log)
	s = paramPattern.ReplaceAllLiteralString(s, escapedCN)
	return mvPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := mvPattern.FindStringSubmatch(m)[1]
		var val string
		if r.Subject != nil {
			if v, ok := r.Subject.Attribute(name); ok {
				val = v.Text()
			}
		}
		log.Debug("replaced '%s' with '%s'", name, val)
		return val
	})
}

// Expand runs helper expansion followed by attribute expansion with no escaped component.
func (r *Resolver) Expand(s string) (string, error) {
	s, err := r.ExpandHelpers(s)
	if err != nil {
		return "", err
	}
	return r.ExpandAttributes(s, ""), nil
}

// EscapedComponent expands the escaping template and hands it to the target
// system's name escaping. An empty template yields an empty component.
func (r *Resolver) EscapedComponent(template string, ts core.TargetSystem) (string, error) {
	if template == "" {
		return "", nil
	}
	text, err := r.Expand(template)
	if err != nil {
		return "", err
	}
	name, err := ts.EscapeNameComponent(text)
	if err != nil {
		return "", err
	}
	return name.String(), nil
}

// ResolveConstant expands a constant literal: helpers first, then the escaped
// component is computed from escapedTemplate, then attributes and the
// #param:EscapedCN# placeholder are substituted.
func (r *Resolver) ResolveConstant(literal, escapedTemplate string, ts core.TargetSystem) (string, error) {
	expanded, err := r.ExpandHelpers(literal)
	if err != nil {
		return "", err
	}
	escaped, err := r.EscapedComponent(escapedTemplate, ts)
	if err != nil {
		return "", err
	}
	return r.ExpandAttributes(expanded, escaped), nil
}
