package memory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorengranfeldt/mre/internal/core"
)

func TestDN_Equal(t *testing.T) {
	a, err := ParseDN("CN=John Doe,OU=Users,DC=corp,DC=example")
	require.NoError(t, err)
	b, err := ParseDN("cn=john doe, ou=users, dc=corp, dc=example")
	require.NoError(t, err)
	c, err := ParseDN("CN=Jane Doe,OU=Users,DC=corp,DC=example")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.String(), b.String())
}

func TestParseDN_Invalid(t *testing.T) {
	_, err := ParseDN("not a dn")
	assert.Error(t, err)
}

func TestEscapedComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Doe, John", `Doe\, John`},
		{"a+b", `a\+b`},
		{" lead", `\ lead`},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapedComponent(tt.in).String())
		})
	}
}

func TestConnectorLifecycle(t *testing.T) {
	s := NewSubject("person", uuid.Nil)
	ts := s.AddTargetSystem("AD", map[string]core.AttrType{"uac": core.TypeInteger})

	conn, err := ts.StartNewConnector("user", []string{"extensibleObject"})
	require.NoError(t, err)
	assert.Equal(t, 0, ts.ConnectorCount(), "uncommitted connectors are not counted")

	assert.ErrorIs(t, conn.Commit(), ErrNoName)

	name, err := ts.BuildName("CN=jdoe,OU=Users,DC=corp")
	require.NoError(t, err)
	require.NoError(t, conn.SetName(name))
	require.NoError(t, conn.SetValue("uac", core.Int(512)))
	require.NoError(t, conn.AppendValue("proxyAddresses", core.Str("smtp:a@corp")))
	require.NoError(t, conn.AppendValue("proxyAddresses", core.Str("smtp:b@corp")))
	require.NoError(t, conn.Commit())

	assert.Equal(t, 1, ts.ConnectorCount())
	assert.Equal(t, core.TypeInteger, conn.AttributeType("uac"))
	assert.Equal(t, core.TypeString, conn.AttributeType("unknown"))

	renamed, err := ts.BuildName("CN=john,OU=Users,DC=corp")
	require.NoError(t, err)
	require.NoError(t, conn.SetName(renamed))

	require.NoError(t, conn.Deprovision())
	assert.Equal(t, 0, ts.ConnectorCount())

	changes := s.Journal().Changes()
	require.Len(t, changes, 3)
	assert.Equal(t, ChangeAdd, changes[0].Kind)
	assert.Equal(t, []string{"smtp:a@corp", "smtp:b@corp"}, changes[0].Attributes["proxyAddresses"])
	assert.Equal(t, []string{"extensibleObject"}, changes[0].Classes)
	assert.Equal(t, ChangeRename, changes[1].Kind)
	assert.Equal(t, "CN=jdoe,OU=Users,DC=corp", changes[1].OldName)
	assert.Equal(t, ChangeDeprovision, changes[2].Kind)
}

func TestCommit_Duplicate(t *testing.T) {
	s := NewSubject("person", uuid.Nil)
	ts := s.AddTargetSystem("AD", nil)
	_, err := ts.AddExisting("user", "CN=jdoe,DC=corp", nil)
	require.NoError(t, err)

	conn, err := ts.StartNewConnector("user", nil)
	require.NoError(t, err)
	name, _ := ts.BuildName("cn=JDOE,dc=corp")
	require.NoError(t, conn.SetName(name))
	assert.ErrorIs(t, conn.Commit(), ErrAlreadyExists)
}

func TestDeprovisionAll(t *testing.T) {
	s := NewSubject("person", uuid.Nil)
	ad := s.AddTargetSystem("AD", nil)
	ldap := s.AddTargetSystem("LDAP", nil)
	_, _ = ad.AddExisting("user", "CN=a,DC=corp", nil)
	_, _ = ad.AddExisting("user", "CN=b,DC=corp", nil)
	_, _ = ldap.AddExisting("inetOrgPerson", "uid=a,dc=corp", nil)

	require.NoError(t, s.DeprovisionAll())
	assert.Equal(t, 0, ad.ConnectorCount())
	assert.Equal(t, 0, ldap.ConnectorCount())
	assert.Len(t, s.Journal().Changes(), 3)
}

func TestSubject_Connections(t *testing.T) {
	s := NewSubject("person", uuid.Nil)
	s.AddTargetSystem("AD", nil)

	ts, err := s.Connections("ad")
	require.NoError(t, err)
	assert.Equal(t, "AD", ts.Name())

	_, err = s.Connections("HR")
	assert.Error(t, err)
}

func TestFixture_Build(t *testing.T) {
	input := `
subject:
  object_type: person
  id: 6f1c2a8e-1f7e-4b59-9a1c-0d5a2e3b4c5d
  attributes:
    accountName: jdoe
    employeeID: 42
    active: true
    groups: [staff, it]
    objectSid: { binary: AQID }
    manager: { reference: "CN=boss,DC=corp" }
target_systems:
  - name: AD
    schema:
      userAccountControl: integer
    connectors:
      - object_type: user
        dn: CN=jdoe,OU=Users,DC=corp
        attributes:
          sAMAccountName: jdoe
`
	f, err := ParseFixture([]byte(input))
	require.NoError(t, err)

	s, err := f.Build()
	require.NoError(t, err)

	assert.Equal(t, "6f1c2a8e-1f7e-4b59-9a1c-0d5a2e3b4c5d", s.UniqueID().String())

	v, ok := s.Attribute("accountName")
	require.True(t, ok)
	assert.Equal(t, core.Str("jdoe"), v)

	v, _ = s.Attribute("employeeID")
	assert.Equal(t, core.Int(42), v)

	v, _ = s.Attribute("active")
	assert.Equal(t, core.Bool(true), v)

	v, _ = s.Attribute("objectSid")
	assert.Equal(t, core.Bin([]byte{1, 2, 3}), v)

	v, _ = s.Attribute("manager")
	assert.Equal(t, core.Ref("CN=boss,DC=corp"), v)

	assert.Len(t, s.Values("groups"), 2)

	ad := s.TargetSystem("AD")
	require.NotNil(t, ad)
	assert.Equal(t, 1, ad.ConnectorCount())
	assert.Equal(t, core.TypeInteger, ad.attributeType("userAccountControl"))

	// every build is independent
	s2, err := f.Build()
	require.NoError(t, err)
	require.NoError(t, s2.DeprovisionAll())
	assert.Equal(t, 1, s.TargetSystem("AD").ConnectorCount())
}
