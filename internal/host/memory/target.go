package memory

import (
	"errors"
	"fmt"

	"github.com/sorengranfeldt/mre/internal/core"
)

var (
	ErrNoName        = errors.New("connector has no name")
	ErrAlreadyExists = errors.New("object already exists")
	ErrDeprovisioned = errors.New("connector was deprovisioned")
)

var _ core.TargetSystem = (*TargetSystem)(nil)

type TargetSystem struct {
	name       string
	schema     map[string]core.AttrType
	connectors []*Connector
	journal    *Journal
}

func (t *TargetSystem) Name() string {
	return t.name
}

func (t *TargetSystem) ConnectorCount() int {
	return len(t.connectors)
}

func (t *TargetSystem) Connectors() []core.Connector {
	out := make([]core.Connector, len(t.connectors))
	for i, c := range t.connectors {
		out[i] = c
	}
	return out
}

func (t *TargetSystem) connectorSnapshot() []*Connector {
	out := make([]*Connector, len(t.connectors))
	copy(out, t.connectors)
	return out
}

// AddExisting places an already committed connector in the system, e.g. from a fixture.
func (t *TargetSystem) AddExisting(objectType, dn string, attrs map[string][]core.Value) (*Connector, error) {
	name, err := ParseDN(dn)
	if err != nil {
		return nil, err
	}
	if t.find(name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, dn)
	}
	if attrs == nil {
		attrs = make(map[string][]core.Value)
	}
	c := &Connector{
		ts:         t,
		objectType: objectType,
		name:       name,
		attrs:      attrs,
		committed:  true,
	}
	t.connectors = append(t.connectors, c)
	return c, nil
}

func (t *TargetSystem) StartNewConnector(objectType string, extraClasses []string) (core.Connector, error) {
	if objectType == "" {
		return nil, fmt.Errorf("target system '%s': object type is required", t.name)
	}
	return &Connector{
		ts:         t,
		objectType: objectType,
		classes:    extraClasses,
		attrs:      make(map[string][]core.Value),
	}, nil
}

func (t *TargetSystem) BuildName(text string) (core.Name, error) {
	return ParseDN(text)
}

func (t *TargetSystem) EscapeNameComponent(text string) (core.Name, error) {
	return EscapedComponent(text), nil
}

// attributeType is the schema type of an attribute; attributes missing from
// the schema are strings.
func (t *TargetSystem) attributeType(name string) core.AttrType {
	if typ, ok := t.schema[name]; ok {
		return typ
	}
	return core.TypeString
}

func (t *TargetSystem) find(name core.Name) *Connector {
	for _, c := range t.connectors {
		if c.name != nil && c.name.Equal(name) {
			return c
		}
	}
	return nil
}

func (t *TargetSystem) remove(c *Connector) {
	for i, other := range t.connectors {
		if other == c {
			t.connectors = append(t.connectors[:i], t.connectors[i+1:]...)
			return
		}
	}
}

var _ core.Connector = (*Connector)(nil)

type Connector struct {
	ts            *TargetSystem
	objectType    string
	classes       []string
	name          core.Name
	attrs         map[string][]core.Value
	committed     bool
	deprovisioned bool
}

func (c *Connector) TargetSystem() core.TargetSystem {
	return c.ts
}

func (c *Connector) ObjectType() string {
	return c.objectType
}

// Classes returns the additional object classes the connector was created with.
func (c *Connector) Classes() []string {
	return c.classes
}

func (c *Connector) Name() core.Name {
	return c.name
}

func (c *Connector) SetName(name core.Name) error {
	if c.deprovisioned {
		return ErrDeprovisioned
	}
	if name == nil {
		return ErrNoName
	}
	if !c.committed {
		c.name = name
		return nil
	}
	if existing := c.ts.find(name); existing != nil && existing != c {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	old := c.name
	c.name = name
	c.ts.journal.record(Change{
		Kind:         ChangeRename,
		TargetSystem: c.ts.name,
		ObjectType:   c.objectType,
		Name:         name.String(),
		OldName:      old.String(),
	})
	return nil
}

func (c *Connector) AttributeType(name string) core.AttrType {
	return c.ts.attributeType(name)
}

func (c *Connector) Attribute(name string) (core.Value, bool) {
	vals := c.attrs[name]
	if len(vals) == 0 {
		return core.Value{}, false
	}
	return vals[0], true
}

// Values returns every value of an attribute.
func (c *Connector) Values(name string) []core.Value {
	return c.attrs[name]
}

func (c *Connector) AttributeNames() []string {
	return sortedKeys(c.attrs)
}

func (c *Connector) SetValue(name string, value core.Value) error {
	if c.deprovisioned {
		return ErrDeprovisioned
	}
	c.attrs[name] = []core.Value{value}
	return nil
}

func (c *Connector) AppendValue(name string, value core.Value) error {
	if c.deprovisioned {
		return ErrDeprovisioned
	}
	c.attrs[name] = append(c.attrs[name], value)
	return nil
}

func (c *Connector) Deprovision() error {
	if c.deprovisioned {
		return ErrDeprovisioned
	}
	c.deprovisioned = true
	if !c.committed {
		return nil
	}
	c.ts.remove(c)
	c.ts.journal.record(Change{
		Kind:         ChangeDeprovision,
		TargetSystem: c.ts.name,
		ObjectType:   c.objectType,
		Name:         c.name.String(),
	})
	return nil
}

func (c *Connector) Commit() error {
	if c.deprovisioned {
		return ErrDeprovisioned
	}
	if c.committed {
		return nil
	}
	if c.name == nil {
		return fmt.Errorf("target system '%s': %w", c.ts.name, ErrNoName)
	}
	if c.ts.find(c.name) != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, c.name)
	}
	c.committed = true
	c.ts.connectors = append(c.ts.connectors, c)
	c.ts.journal.record(Change{
		Kind:         ChangeAdd,
		TargetSystem: c.ts.name,
		ObjectType:   c.objectType,
		Name:         c.name.String(),
		Classes:      c.classes,
		Attributes:   attributeTexts(c.attrs),
	})
	return nil
}
