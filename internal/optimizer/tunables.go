package optimizer

import (
	"sort"
	"strings"

	"conductor/internal/module"
)

type Kind string

const (
	KindContinuous Kind = "continuous"
	KindDiscrete   Kind = "discrete"
)

// Tunable declares a parameter the optimizer may change.
type Tunable struct {
	Name  string
	Kind  Kind
	Lower float64
	Upper float64
}

func (t Tunable) Bounded() bool {
	return t.Kind == KindContinuous && t.Upper > t.Lower
}

// nameHints mark parameters worth tuning when they are not declared explicitly.
var nameHints = []string{"confidence", "threshold", "multiplier", "weight", "factor"}

func IsTunableName(name string) bool {
	name = strings.ToLower(name)
	for _, h := range nameHints {
		if strings.Contains(name, h) {
			return true
		}
	}
	return false
}

// Tunables is the set of declared parameters, optionally widened to any
// field whose name carries a tuning hint.
type Tunables struct {
	byName         map[string]Tunable
	discoverByName bool
}

func NewTunables(list []Tunable, discoverByName bool) *Tunables {
	t := &Tunables{byName: make(map[string]Tunable, len(list)), discoverByName: discoverByName}
	for _, item := range list {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			continue
		}
		if item.Kind == "" {
			item.Kind = KindDiscrete
		}
		t.byName[item.Name] = item
	}
	return t
}

func (t *Tunables) Lookup(name string) (Tunable, bool) {
	item, ok := t.byName[name]
	return item, ok
}

// Matches reports whether name should be considered for optimization.
func (t *Tunables) Matches(name string) bool {
	if _, ok := t.byName[name]; ok {
		return true
	}
	return t.discoverByName && IsTunableName(name)
}

func (t *Tunables) All() []Tunable {
	out := make([]Tunable, 0, len(t.byName))
	for _, item := range t.byName {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ConfigSchema is the JSON Schema for an operator module-config update.
// Continuous tunables are range-checked; other keys must be scalars.
func (t *Tunables) ConfigSchema() map[string]any {
	nonNegative := map[string]any{"type": "number", "minimum": 0}
	props := map[string]any{
		module.KeyAllocationLimit:     nonNegative,
		module.KeyConfidenceThreshold: map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		module.KeyMaxPositions:        map[string]any{"type": "integer", "minimum": 0},
		module.KeyMaxPositionSize:     nonNegative,
	}
	for _, item := range t.All() {
		if !item.Bounded() {
			continue
		}
		props[item.Name] = map[string]any{"type": "number", "minimum": item.Lower, "maximum": item.Upper}
	}
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"minProperties":        1,
		"properties":           props,
		"additionalProperties": map[string]any{"type": []any{"number", "string", "boolean"}},
	}
}
