package memory

import (
	"sort"

	"github.com/sorengranfeldt/mre/internal/core"
)

type ChangeKind string

const (
	ChangeAdd         ChangeKind = "add"
	ChangeRename      ChangeKind = "rename"
	ChangeDeprovision ChangeKind = "deprovision"
)

// Change is one write the host received.
type Change struct {
	Kind         ChangeKind          `json:"kind" yaml:"kind"`
	TargetSystem string              `json:"target_system" yaml:"target_system"`
	ObjectType   string              `json:"object_type,omitempty" yaml:"object_type,omitempty"`
	Name         string              `json:"name" yaml:"name"`
	OldName      string              `json:"old_name,omitempty" yaml:"old_name,omitempty"`
	Classes      []string            `json:"classes,omitempty" yaml:"classes,omitempty"`
	Attributes   map[string][]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Journal records committed changes in order.
type Journal struct {
	changes []Change
}

func (j *Journal) record(c Change) {
	if j == nil {
		return
	}
	j.changes = append(j.changes, c)
}

func (j *Journal) Changes() []Change {
	if j == nil {
		return nil
	}
	out := make([]Change, len(j.changes))
	copy(out, j.changes)
	return out
}

func attributeTexts(attrs map[string][]core.Value) map[string][]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string][]string, len(attrs))
	for name, vals := range attrs {
		texts := make([]string, len(vals))
		for i, v := range vals {
			texts[i] = v.Text()
		}
		out[name] = texts
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
