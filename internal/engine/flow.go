package engine

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/logging"
	"github.com/sorengranfeldt/mre/internal/macro"
)

// FlowGenerator writes attribute flow results into connectors.
type FlowGenerator struct {
	Log   logging.InternalLogger
	NewID func() uuid.UUID
}

func NewFlowGenerator(log logging.InternalLogger) *FlowGenerator {
	return &FlowGenerator{Log: logging.OrNop(log), NewID: uuid.New}
}

func (g *FlowGenerator) log() logging.InternalLogger {
	return logging.OrNop(g.Log)
}

// Generate applies one flow to conn. res carries the subject and the helper
// values of the current rule invocation.
func (g *FlowGenerator) Generate(f *core.Flow, ts core.TargetSystem, conn core.Connector, rule *core.Rule, res *macro.Resolver) error {
	g.log().Debug("enter-flow %s to '%s'", f.Kind, f.Target)
	switch f.Kind {
	case core.FlowCopy:
		return g.copyAttribute(f, ts, conn, res.Subject)
	case core.FlowConstant:
		return g.constant(f, ts, conn, res)
	case core.FlowMultivaluedConstant:
		return g.multivaluedConstant(f, ts, conn, rule, res)
	case core.FlowConcatenate:
		return g.concatenate(f, ts, conn, res)
	case core.FlowIdentifier:
		return g.identifier(f, ts, conn)
	}
	return core.ConfigurationError{Rule: rule.Name, Reason: "unknown flow kind '" + string(f.Kind) + "'"}
}

func (g *FlowGenerator) targetType(f *core.Flow, conn core.Connector) core.AttrType {
	if f.TargetsDN() {
		return core.TypeString
	}
	return conn.AttributeType(f.Target)
}

func (g *FlowGenerator) write(f *core.Flow, ts core.TargetSystem, conn core.Connector, v core.Value) error {
	if f.TargetsDN() {
		name, err := ts.BuildName(v.Text())
		if err != nil {
			return err
		}
		g.log().Debug("target-value: '%s'", name)
		return conn.SetName(name)
	}
	g.log().Debug("target-value: '%s' = %s", f.Target, v)
	return conn.SetValue(f.Target, v)
}

func (g *FlowGenerator) copyAttribute(f *core.Flow, ts core.TargetSystem, conn core.Connector, subject core.Subject) error {
	to := g.targetType(f, conn)

	if f.SourcesObjectID() {
		id := subject.UniqueID()
		g.log().Debug("flow-source: object id, '%s'", id)
		switch to {
		case core.TypeString:
			return g.write(f, ts, conn, core.Str(formatID(id, f.Format)))
		case core.TypeBinary:
			return g.write(f, ts, conn, core.Bin(id[:]))
		}
		return core.ConversionError{From: core.TypeString, To: to, Value: id.String()}
	}

	v, ok := subject.Attribute(f.Source)
	if !ok {
		g.log().Debug("flow-source '%s' is not present, skipping", f.Source)
		return nil
	}
	g.log().Debug("flow-source-value: '%s'", v.Text())

	out, err := Coerce(v, to, f.TargetsDN(), normalizationOf(f))
	if err != nil {
		return err
	}
	return g.write(f, ts, conn, out)
}

// formatID renders a uuid as D (hyphenated, default), N (digits only),
// B (in braces) or P (in parentheses).
func formatID(id uuid.UUID, format string) string {
	s := id.String()
	switch strings.ToUpper(format) {
	case "N":
		return strings.ReplaceAll(s, "-", "")
	case "B":
		return "{" + s + "}"
	case "P":
		return "(" + s + ")"
	default:
		return s
	}
}

func (g *FlowGenerator) constant(f *core.Flow, ts core.TargetSystem, conn core.Connector, res *macro.Resolver) error {
	text, err := res.ResolveConstant(f.Constant, f.EscapedCN, ts)
	if err != nil {
		return err
	}
	g.log().Debug("flow-constant-'%s'-to-'%s'", text, f.Target)
	out, err := Coerce(core.Str(text), g.targetType(f, conn), f.TargetsDN(), Normalization{})
	if err != nil {
		return err
	}
	return g.write(f, ts, conn, out)
}

func (g *FlowGenerator) multivaluedConstant(f *core.Flow, ts core.TargetSystem, conn core.Connector, rule *core.Rule, res *macro.Resolver) error {
	if f.TargetsDN() {
		return core.ConfigurationError{Rule: rule.Name, Reason: "cannot use a multivalued constant flow on the name of an object"}
	}
	if len(f.Constants) == 0 {
		return core.ConfigurationError{Rule: rule.Name, Reason: "multivalued constant flow to '" + f.Target + "' needs one or more constants"}
	}

	to := g.targetType(f, conn)
	for _, c := range f.Constants {
		text, err := res.ResolveConstant(c, f.EscapedCN, ts)
		if err != nil {
			return err
		}
		out, err := Coerce(core.Str(text), to, false, Normalization{})
		if err != nil {
			return err
		}
		g.log().Debug("flow-mv-constant-'%s'-to-'%s'", text, f.Target)
		if err := conn.AppendValue(f.Target, out); err != nil {
			return err
		}
	}
	return nil
}

func (g *FlowGenerator) concatenate(f *core.Flow, ts core.TargetSystem, conn core.Connector, res *macro.Resolver) error {
	var sb strings.Builder
	for i := range f.Sources {
		src := &f.Sources[i]
		switch src.Kind {
		case core.SourceAttribute:
			v, ok := res.Subject.Attribute(src.Attribute)
			if !ok {
				g.log().Error("attribute '%s' is not present, nothing added to concatenated value", src.Attribute)
				continue
			}
			sb.WriteString(v.Text())

		case core.SourceConstant:
			text, err := res.Expand(src.Constant)
			if err != nil {
				return err
			}
			sb.WriteString(text)

		case core.SourceRegexReplace:
			v, ok := res.Subject.Attribute(src.Attribute)
			if !ok {
				g.log().Error("attribute '%s' is not present, nothing added to concatenated value", src.Attribute)
				continue
			}
			re := src.Compiled
			if re == nil {
				var err error
				if re, err = regexp.Compile(src.Pattern); err != nil {
					return core.ConfigurationError{Rule: res.Rule, Reason: "invalid regex_replace pattern", Err: err}
				}
			}
			sb.WriteString(re.ReplaceAllString(v.Text(), src.Replacement))
		}
	}

	g.log().Debug("concatenated-value: '%s'", sb.String())
	out, err := Coerce(core.Str(sb.String()), g.targetType(f, conn), f.TargetsDN(), Normalization{})
	if err != nil {
		return err
	}
	return g.write(f, ts, conn, out)
}

// identifier writes a fresh uuid: raw bytes to binary targets, text otherwise.
func (g *FlowGenerator) identifier(f *core.Flow, ts core.TargetSystem, conn core.Connector) error {
	newID := g.NewID
	if newID == nil {
		newID = uuid.New
	}
	id := newID()
	g.log().Debug("new-id-'%s'-to-'%s'", id, f.Target)
	if !f.TargetsDN() && conn.AttributeType(f.Target) == core.TypeBinary {
		return g.write(f, ts, conn, core.Bin(id[:]))
	}
	return g.write(f, ts, conn, core.Str(id.String()))
}
