// Package external resolves the handlers External rules delegate to.
package external

import (
	"fmt"

	"github.com/sorengranfeldt/mre/internal/core"
)

// Registry maps reference ids to loaded handlers. It is not modified after
// BuildRegistry returns.
type Registry struct {
	handlers map[string]core.ExternalHandler
	types    map[string]string
}

func BuildRegistry(refs []core.ExternalRef) (*Registry, error) {
	r := &Registry{
		handlers: make(map[string]core.ExternalHandler, len(refs)),
		types:    make(map[string]string, len(refs)),
	}
	for _, ref := range refs {
		var (
			handler core.ExternalHandler
			err     error
		)
		switch ref.Type {
		case "stub":
			handler, err = NewStubHandler(ref)
		default:
			return nil, fmt.Errorf("unknown external type %q for external %q", ref.Type, ref.ReferenceID)
		}
		if err != nil {
			return nil, fmt.Errorf("building %s external %q: %w", ref.Type, ref.ReferenceID, err)
		}
		r.handlers[ref.ReferenceID] = handler
		r.types[ref.ReferenceID] = ref.Type
	}
	return r, nil
}

func (r *Registry) Get(referenceID string) (core.ExternalHandler, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.handlers[referenceID]
	return h, ok
}

// Type returns the declared type of an external, or "".
func (r *Registry) Type(referenceID string) string {
	if r == nil {
		return ""
	}
	return r.types[referenceID]
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.handlers)
}
