package core

import (
	"fmt"
	"regexp"
	"strings"
)

// FlowKind discriminates the Flow tagged union.
type FlowKind string

const (
	FlowCopy                FlowKind = "copy"
	FlowConstant            FlowKind = "constant"
	FlowMultivaluedConstant FlowKind = "multivalued_constant"
	FlowConcatenate         FlowKind = "concatenate"
	FlowIdentifier          FlowKind = "identifier"
)

func (k FlowKind) IsValid() bool {
	switch k {
	case FlowCopy, FlowConstant, FlowMultivaluedConstant, FlowConcatenate, FlowIdentifier:
		return true
	default:
		return false
	}
}

// DNTarget makes a flow set the connector's name instead of an attribute.
const DNTarget = DNSentinel

// ObjectIDSource makes a copy flow read the subject's unique identifier.
const ObjectIDSource = "[MVObjectID]"

// Flow computes the value of one connector attribute (or its name).
type Flow struct {
	Kind        FlowKind `yaml:"kind" json:"kind"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`

	// Target is the connector attribute written, or [DN].
	Target string `yaml:"target" json:"target"`

	// copy
	Source    string `yaml:"source,omitempty" json:"source,omitempty"`
	Prefix    string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Lowercase bool   `yaml:"lowercase,omitempty" json:"lowercase,omitempty"`
	Uppercase bool   `yaml:"uppercase,omitempty" json:"uppercase,omitempty"`
	Trim      bool   `yaml:"trim,omitempty" json:"trim,omitempty"`
	// Format applies to [MVObjectID] only: D (default), N, B or P.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// constant and multivalued_constant
	Constant  string   `yaml:"constant,omitempty" json:"constant,omitempty"`
	Constants []string `yaml:"constants,omitempty" json:"constants,omitempty"`
	EscapedCN string   `yaml:"escaped_cn,omitempty" json:"escaped_cn,omitempty"`

	// concatenate
	Sources []SourceExpression `yaml:"sources,omitempty" json:"sources,omitempty"`
}

// TargetsDN reports whether the flow names the connector.
func (f *Flow) TargetsDN() bool {
	return IsDNSentinel(f.Target)
}

// SourcesObjectID reports whether a copy flow reads the subject's unique id.
func (f *Flow) SourcesObjectID() bool {
	return strings.EqualFold(f.Source, ObjectIDSource)
}

func (f *Flow) Validate() error {
	if !f.Kind.IsValid() {
		return fmt.Errorf("unknown flow kind '%s'", f.Kind)
	}
	if f.Target == "" {
		return fmt.Errorf("%s flow requires a 'target'", f.Kind)
	}

	switch f.Kind {
	case FlowCopy:
		if f.Source == "" {
			return fmt.Errorf("copy flow to '%s' requires a 'source'", f.Target)
		}
		switch strings.ToUpper(f.Format) {
		case "", "D", "N", "B", "P":
		default:
			return fmt.Errorf("copy flow to '%s': unknown identifier format '%s'", f.Target, f.Format)
		}
	case FlowMultivaluedConstant:
		if f.TargetsDN() {
			return fmt.Errorf("multivalued constant cannot target %s", DNTarget)
		}
		if len(f.Constants) == 0 {
			return fmt.Errorf("multivalued constant flow to '%s' has no constants", f.Target)
		}
	case FlowConcatenate:
		for i := range f.Sources {
			if err := f.Sources[i].Validate(); err != nil {
				return fmt.Errorf("concatenate flow to '%s', source #%d: %w", f.Target, i, err)
			}
		}
	}
	return nil
}

// SourceKind discriminates the SourceExpression tagged union.
type SourceKind string

const (
	SourceAttribute    SourceKind = "attribute"
	SourceConstant     SourceKind = "constant"
	SourceRegexReplace SourceKind = "regex_replace"
)

// SourceExpression is one part of a concatenate flow.
type SourceExpression struct {
	Kind SourceKind `yaml:"kind" json:"kind"`

	Attribute   string `yaml:"attribute,omitempty" json:"attribute,omitempty"`
	Constant    string `yaml:"constant,omitempty" json:"constant,omitempty"`
	Pattern     string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Replacement string `yaml:"replacement,omitempty" json:"replacement,omitempty"`

	Compiled *regexp.Regexp `yaml:"-" json:"-"`
}

// UnmarshalYAML accepts { attribute: givenName } and { constant: "." } next to the explicit form.
func (s *SourceExpression) UnmarshalYAML(unmarshal func(any) error) error {
	var raw map[string]any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	if _, explicit := raw["kind"]; !explicit && len(raw) == 1 {
		for k, v := range raw {
			str, ok := v.(string)
			if !ok {
				break
			}
			switch kind := SourceKind(strings.ToLower(k)); kind {
			case SourceAttribute:
				*s = SourceExpression{Kind: kind, Attribute: str}
				return nil
			case SourceConstant:
				*s = SourceExpression{Kind: kind, Constant: str}
				return nil
			}
		}
	}
	type plain SourceExpression
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	*s = SourceExpression(p)
	if s.Kind == "" && s.Pattern != "" {
		s.Kind = SourceRegexReplace
	}
	return nil
}

func (s *SourceExpression) Validate() error {
	switch s.Kind {
	case SourceAttribute:
		if s.Attribute == "" {
			return fmt.Errorf("attribute source requires 'attribute'")
		}
	case SourceConstant:
	case SourceRegexReplace:
		if s.Attribute == "" || s.Pattern == "" {
			return fmt.Errorf("regex_replace source requires 'attribute' and 'pattern'")
		}
	default:
		return fmt.Errorf("unknown source kind '%s'", s.Kind)
	}
	return nil
}

// HelperKind discriminates the HelperValue tagged union.
type HelperKind string

const (
	HelperConstant     HelperKind = "constant"
	HelperScopedID     HelperKind = "scoped_id"
	HelperRandomSecret HelperKind = "random_secret"
)

// HelperValue declares a named value available as #helper:Name# during one rule invocation.
type HelperValue struct {
	Name  string     `yaml:"name" json:"name"`
	Kind  HelperKind `yaml:"kind" json:"kind"`
	Value string     `yaml:"value,omitempty" json:"value,omitempty"`
	// Length of a random secret; zero means the configured default.
	Length int `yaml:"length,omitempty" json:"length,omitempty"`
}

func (h *HelperValue) Validate() error {
	if h.Name == "" {
		return fmt.Errorf("helper requires a 'name'")
	}
	switch h.Kind {
	case HelperConstant, HelperScopedID:
	case HelperRandomSecret:
		if h.Length < 0 {
			return fmt.Errorf("helper '%s': length must not be negative", h.Name)
		}
	default:
		return fmt.Errorf("helper '%s': unknown kind '%s'", h.Name, h.Kind)
	}
	return nil
}
