package memory

import (
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"github.com/sorengranfeldt/mre/internal/core"
)

// Fixture describes a subject and its existing connectors.
//
//	subject:
//	  object_type: person
//	  attributes:
//	    accountName: jdoe
//	    employeeType: [staff, contractor]
//	    objectSid: { binary: AQUAAAAAAAUVAAAA }
//	target_systems:
//	  - name: AD
//	    schema: { userAccountControl: integer }
//	    connectors:
//	      - object_type: user
//	        dn: CN=jdoe,OU=Users,DC=corp,DC=example
type Fixture struct {
	Subject       SubjectFixture        `yaml:"subject" json:"subject"`
	TargetSystems []TargetSystemFixture `yaml:"target_systems" json:"target_systems"`
}

type SubjectFixture struct {
	ObjectType string         `yaml:"object_type" json:"object_type"`
	ID         string         `yaml:"id,omitempty" json:"id,omitempty"`
	Attributes map[string]any `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

type TargetSystemFixture struct {
	Name       string                   `yaml:"name" json:"name"`
	Schema     map[string]core.AttrType `yaml:"schema,omitempty" json:"schema,omitempty"`
	Connectors []ConnectorFixture       `yaml:"connectors,omitempty" json:"connectors,omitempty"`
}

type ConnectorFixture struct {
	ObjectType string         `yaml:"object_type" json:"object_type"`
	DN         string         `yaml:"dn" json:"dn"`
	Attributes map[string]any `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// ParseFixture decodes a YAML (or JSON) fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	if f.Subject.ObjectType == "" {
		return nil, fmt.Errorf("fixture subject requires an object_type")
	}
	return &f, nil
}

func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture file: %w", err)
	}
	return ParseFixture(data)
}

// Build creates a fresh subject from the fixture. Every call returns an
// independent copy, so a fixture can back any number of dry runs.
func (f *Fixture) Build() (*Subject, error) {
	var id uuid.UUID
	if f.Subject.ID != "" {
		parsed, err := uuid.Parse(f.Subject.ID)
		if err != nil {
			return nil, fmt.Errorf("subject id: %w", err)
		}
		id = parsed
	}

	s := NewSubject(f.Subject.ObjectType, id)
	attrs, err := decodeAttributes(f.Subject.Attributes)
	if err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}
	for name, vals := range attrs {
		s.Set(name, vals...)
	}

	for _, tsf := range f.TargetSystems {
		if tsf.Name == "" {
			return nil, fmt.Errorf("target system without name")
		}
		ts := s.AddTargetSystem(tsf.Name, tsf.Schema)
		for i, cf := range tsf.Connectors {
			cattrs, err := decodeAttributes(cf.Attributes)
			if err != nil {
				return nil, fmt.Errorf("target system '%s', connector #%d: %w", tsf.Name, i, err)
			}
			if _, err := ts.AddExisting(cf.ObjectType, cf.DN, cattrs); err != nil {
				return nil, fmt.Errorf("target system '%s', connector #%d: %w", tsf.Name, i, err)
			}
		}
	}
	return s, nil
}

func decodeAttributes(raw map[string]any) (map[string][]core.Value, error) {
	out := make(map[string][]core.Value, len(raw))
	for name, v := range raw {
		var vals []core.Value
		if list, ok := v.([]any); ok {
			for _, item := range list {
				val, err := decodeValue(item)
				if err != nil {
					return nil, fmt.Errorf("attribute '%s': %w", name, err)
				}
				vals = append(vals, val)
			}
		} else {
			val, err := decodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("attribute '%s': %w", name, err)
			}
			vals = []core.Value{val}
		}
		if len(vals) > 0 {
			out[name] = vals
		}
	}
	return out, nil
}

// decodeValue maps YAML scalars onto typed values. Binary and reference
// values use the { binary: <base64> } and { reference: <dn> } forms.
func decodeValue(v any) (core.Value, error) {
	switch x := v.(type) {
	case string:
		return core.Str(x), nil
	case bool:
		return core.Bool(x), nil
	case int:
		return core.Int(int64(x)), nil
	case int64:
		return core.Int(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return core.Value{}, fmt.Errorf("integer %d out of range", x)
		}
		return core.Int(int64(x)), nil
	case float64:
		if x != math.Trunc(x) {
			return core.Value{}, fmt.Errorf("non-integer number %v", x)
		}
		return core.Int(int64(x)), nil
	case map[string]any:
		if len(x) != 1 {
			return core.Value{}, fmt.Errorf("typed value needs exactly one key, got %d", len(x))
		}
		for k, inner := range x {
			text := fmt.Sprint(inner)
			switch strings.ToLower(k) {
			case "binary":
				b, err := base64.StdEncoding.DecodeString(text)
				if err != nil {
					return core.Value{}, fmt.Errorf("binary value: %w", err)
				}
				return core.Bin(b), nil
			case "reference":
				return core.Ref(text), nil
			case "string":
				return core.Str(text), nil
			default:
				return decodeValue(inner)
			}
		}
	}
	return core.Value{}, fmt.Errorf("unsupported value %v (%T)", v, v)
}
