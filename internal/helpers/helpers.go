// Package helpers computes the rule-invocation scoped values referenced as #helper:Name#.
package helpers

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/sorengranfeldt/mre/internal/core"
	"github.com/sorengranfeldt/mre/internal/logging"
)

const DefaultSecretLength = 16

const secretAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789!#%+-=?"

// Values is the set of helper values of one rule invocation.
// Lookups ignore case.
type Values map[string]string

// Lookup returns the value of the named helper.
func (v Values) Lookup(name string) (string, bool) {
	val, ok := v[strings.ToLower(name)]
	return val, ok
}

// Generator builds fresh helper values.
type Generator struct {
	// SecretLength is used for random secrets without an explicit length.
	SecretLength int

	// NewID and Random may be replaced in tests.
	NewID  func() uuid.UUID
	Random func(length int) (string, error)
}

func NewGenerator(secretLength int) *Generator {
	if secretLength <= 0 {
		secretLength = DefaultSecretLength
	}
	return &Generator{
		SecretLength: secretLength,
		NewID:        uuid.New,
		Random:       randomSecret,
	}
}

// Generate computes every declared helper. The result must not outlive the
// create or flow-application call it was generated for.
func (g *Generator) Generate(defs []core.HelperValue, sink logging.InternalLogger) (Values, error) {
	sink = logging.OrNop(sink)
	values := make(Values, len(defs))
	for _, def := range defs {
		var val string
		switch def.Kind {
		case core.HelperConstant:
			val = def.Value
			sink.Debug("helper-value name: %s, value: %s", def.Name, val)
		case core.HelperScopedID:
			val = g.NewID().String()
			sink.Debug("helper-value name: %s, value: %s", def.Name, val)
		case core.HelperRandomSecret:
			length := def.Length
			if length <= 0 {
				length = g.SecretLength
			}
			secret, err := g.Random(length)
			if err != nil {
				return nil, fmt.Errorf("generating helper '%s': %w", def.Name, err)
			}
			val = secret
			sink.Debug("helper-value name: %s, length: %d", def.Name, length)
		default:
			return nil, fmt.Errorf("helper '%s': unknown kind '%s'", def.Name, def.Kind)
		}
		values[strings.ToLower(def.Name)] = val
	}
	return values, nil
}

func randomSecret(length int) (string, error) {
	var sb strings.Builder
	sb.Grow(length)
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(secretAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
