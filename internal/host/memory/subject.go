// Package memory is an in-memory host used for simulation and tests.
// Names are LDAP distinguished names.
package memory

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sorengranfeldt/mre/internal/core"
)

var _ core.Subject = (*Subject)(nil)

type Subject struct {
	id         uuid.UUID
	objectType string
	attrs      map[string][]core.Value
	systems    map[string]*TargetSystem
	order      []string
	journal    *Journal
}

// NewSubject creates a subject. A nil id generates a random one.
func NewSubject(objectType string, id uuid.UUID) *Subject {
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Subject{
		id:         id,
		objectType: objectType,
		attrs:      make(map[string][]core.Value),
		systems:    make(map[string]*TargetSystem),
		journal:    &Journal{},
	}
}

// Set replaces the values of an attribute. No values removes it.
func (s *Subject) Set(name string, values ...core.Value) *Subject {
	if len(values) == 0 {
		delete(s.attrs, name)
		return s
	}
	s.attrs[name] = values
	return s
}

// AddTargetSystem connects the subject to a new, empty target system.
func (s *Subject) AddTargetSystem(name string, schema map[string]core.AttrType) *TargetSystem {
	ts := &TargetSystem{
		name:    name,
		schema:  schema,
		journal: s.journal,
	}
	key := strings.ToLower(name)
	if _, exists := s.systems[key]; !exists {
		s.order = append(s.order, key)
	}
	s.systems[key] = ts
	return ts
}

// Journal returns the changes committed through this subject's target systems.
func (s *Subject) Journal() *Journal {
	return s.journal
}

func (s *Subject) ObjectType() string {
	return s.objectType
}

func (s *Subject) UniqueID() uuid.UUID {
	return s.id
}

func (s *Subject) Attribute(name string) (core.Value, bool) {
	vals := s.attrs[name]
	if len(vals) == 0 {
		return core.Value{}, false
	}
	return vals[0], true
}

func (s *Subject) Values(name string) []core.Value {
	return s.attrs[name]
}

func (s *Subject) AttributeNames() []string {
	return sortedKeys(s.attrs)
}

func (s *Subject) Connections(targetSystem string) (core.TargetSystem, error) {
	ts, ok := s.systems[strings.ToLower(targetSystem)]
	if !ok {
		return nil, fmt.Errorf("no target system named '%s'", targetSystem)
	}
	return ts, nil
}

// TargetSystem returns the concrete target system, or nil.
func (s *Subject) TargetSystem(name string) *TargetSystem {
	return s.systems[strings.ToLower(name)]
}

func (s *Subject) DeprovisionAll() error {
	for _, key := range s.order {
		ts := s.systems[key]
		for _, c := range ts.connectorSnapshot() {
			if err := c.Deprovision(); err != nil {
				return err
			}
		}
	}
	return nil
}
