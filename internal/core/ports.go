package core

import "github.com/google/uuid"

// Subject is the canonical identity record a provisioning pass runs against.
// It is owned by the hosting synchronization platform.
type Subject interface {
	// ObjectType is matched (case-insensitively) against Rule.SubjectType.
	ObjectType() string

	// UniqueID is the subject's identifier, flowed by the [MVObjectID] source.
	UniqueID() uuid.UUID

	// Attribute returns the (first) value of the named attribute and whether it is present.
	Attribute(name string) (Value, bool)

	// Values returns all values of a multivalued attribute, or nil if absent.
	Values(name string) []Value

	// AttributeNames lists the attributes that have a value.
	AttributeNames() []string

	// Connections returns the handle for the named target system.
	Connections(targetSystem string) (TargetSystem, error)

	// DeprovisionAll deprovisions every connector of the subject in every target system.
	DeprovisionAll() error
}

// TargetSystem is the subject's connection to one connected system.
type TargetSystem interface {
	// Name returns the identifier of this target system (as used in rules).
	Name() string

	// ConnectorCount returns the number of connectors the subject has in this system.
	ConnectorCount() int

	// Connectors returns the subject's connectors in this system.
	Connectors() []Connector

	// StartNewConnector begins creating a connector; it only exists once committed.
	StartNewConnector(objectType string, extraClasses []string) (Connector, error)

	// BuildName turns text into a name valid for this system.
	BuildName(text string) (Name, error)

	// EscapeNameComponent escapes text for use as a single name component.
	EscapeNameComponent(text string) (Name, error)
}

// Connector is the representation of a subject inside one target system.
type Connector interface {
	TargetSystem() TargetSystem
	ObjectType() string

	Name() Name
	SetName(name Name) error

	// AttributeType returns the schema type of the named attribute,
	// whether or not a value is currently set.
	AttributeType(name string) AttrType
	Attribute(name string) (Value, bool)
	AttributeNames() []string
	SetValue(name string, value Value) error
	AppendValue(name string, value Value) error

	Deprovision() error
	Commit() error
}

// Name is a host-defined object name (e.g. a distinguished name).
type Name interface {
	String() string

	// Equal compares two names with the host's parsed-name semantics.
	Equal(other Name) bool
}

// ExternalHandler takes over a whole rule action.
// Handlers are resolved by reference id; loading them is the host's concern.
type ExternalHandler interface {
	Provision(subject Subject) error
	ShouldDelete(connector Connector, subject Subject) (bool, error)
}
