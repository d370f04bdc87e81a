package memory

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/sorengranfeldt/mre/internal/core"
)

var _ core.Name = DN{}

// DN is an LDAP distinguished name. Components produced by
// EscapeNameComponent are not parsed and compare as plain text.
type DN struct {
	text   string
	parsed *ldap.DN
}

// ParseDN parses text as an RFC 4514 distinguished name.
func ParseDN(text string) (DN, error) {
	parsed, err := ldap.ParseDN(text)
	if err != nil {
		return DN{}, fmt.Errorf("invalid distinguished name '%s': %w", text, err)
	}
	if len(parsed.RDNs) == 0 {
		return DN{}, fmt.Errorf("empty distinguished name")
	}
	return DN{text: text, parsed: parsed}, nil
}

// EscapedComponent escapes text for use as an RDN value.
func EscapedComponent(text string) DN {
	ava := &ldap.AttributeTypeAndValue{Type: "cn", Value: text}
	return DN{text: strings.TrimPrefix(ava.String(), "cn=")}
}

func (d DN) String() string {
	return d.text
}

// Equal compares parsed names case-insensitively, ignoring insignificant
// whitespace and escaping differences.
func (d DN) Equal(other core.Name) bool {
	o, ok := other.(DN)
	if !ok {
		return other != nil && d.text == other.String()
	}
	if d.parsed != nil && o.parsed != nil {
		return d.parsed.EqualFold(o.parsed)
	}
	return strings.EqualFold(d.text, o.text)
}
