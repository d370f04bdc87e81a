package core

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// AttrType is the data type of an attribute as declared by the host schema.
type AttrType int

const (
	TypeUndefined AttrType = iota
	TypeString
	TypeInteger
	TypeBinary
	TypeBoolean
	TypeReference
)

func (t AttrType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeBinary:
		return "binary"
	case TypeBoolean:
		return "boolean"
	case TypeReference:
		return "reference"
	default:
		return "undefined"
	}
}

// ParseAttrType parses the textual form produced by AttrType.String.
func ParseAttrType(s string) (AttrType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "":
		return TypeString, nil
	case "integer", "int", "number":
		return TypeInteger, nil
	case "binary", "bytes":
		return TypeBinary, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "reference", "ref":
		return TypeReference, nil
	default:
		return TypeUndefined, fmt.Errorf("unknown attribute type '%s'", s)
	}
}

func (t AttrType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *AttrType) UnmarshalText(b []byte) error {
	parsed, err := ParseAttrType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value is a single typed attribute value.
// Only the field matching Type is meaningful.
type Value struct {
	Type AttrType `json:"type"`
	Str  string   `json:"string,omitempty"`
	Int  int64    `json:"integer,omitempty"`
	Bin  []byte   `json:"binary,omitempty"`
	Bool bool     `json:"boolean,omitempty"`
	Ref  string   `json:"reference,omitempty"`
}

func Str(s string) Value { return Value{Type: TypeString, Str: s} }

func Int(i int64) Value { return Value{Type: TypeInteger, Int: i} }

func Bin(b []byte) Value { return Value{Type: TypeBinary, Bin: b} }

func Bool(b bool) Value { return Value{Type: TypeBoolean, Bool: b} }

func Ref(r string) Value { return Value{Type: TypeReference, Ref: r} }

// Text renders the value as a string the way macro expansion and string
// predicates see it.
func (v Value) Text() string {
	switch v.Type {
	case TypeString:
		return v.Str
	case TypeInteger:
		return strconv.FormatInt(v.Int, 10)
	case TypeBinary:
		return base64.StdEncoding.EncodeToString(v.Bin)
	case TypeBoolean:
		return strconv.FormatBool(v.Bool)
	case TypeReference:
		return v.Ref
	default:
		return ""
	}
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%s)", v.Type, v.Text())
}

// Native returns the value as a plain Go value, used as expression input.
func (v Value) Native() any {
	switch v.Type {
	case TypeString:
		return v.Str
	case TypeInteger:
		return v.Int
	case TypeBinary:
		return v.Bin
	case TypeBoolean:
		return v.Bool
	case TypeReference:
		return v.Ref
	default:
		return nil
	}
}
