package module

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"conductor/internal/logger"
)

// Spec is what a factory needs to construct one module instance.
type Spec struct {
	Name    string
	Symbols []string
	Config  Config
	Deps    Deps
}

// Factory constructs a module of one kind.
type Factory func(spec Spec) (Module, error)

// Factories maps a configured kind to its constructor.
type Factories struct {
	mu     sync.RWMutex
	byKind map[string]Factory
}

func NewFactories() *Factories {
	return &Factories{byKind: make(map[string]Factory)}
}

// Register adds a constructor. A later registration for the same kind replaces the earlier one.
func (f *Factories) Register(kind string, fn Factory) {
	kind = normalizeKind(kind)
	if kind == "" || fn == nil {
		return
	}
	f.mu.Lock()
	f.byKind[kind] = fn
	f.mu.Unlock()
}

func (f *Factories) Get(kind string) (Factory, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fn, ok := f.byKind[normalizeKind(kind)]
	return fn, ok
}

// Build constructs a module of the given kind.
func (f *Factories) Build(kind string, spec Spec) (Module, error) {
	fn, ok := f.Get(kind)
	if !ok {
		return nil, fmt.Errorf("unknown module kind %q", kind)
	}
	m, err := fn(spec)
	if err != nil {
		return nil, fmt.Errorf("build %s module %s: %w", kind, spec.Name, err)
	}
	if m == nil {
		return nil, fmt.Errorf("build %s module %s: factory returned nil", kind, spec.Name)
	}
	return m, nil
}

func (f *Factories) Kinds() []string {
	f.mu.RLock()
	out := make([]string, 0, len(f.byKind))
	for k := range f.byKind {
		out = append(out, k)
	}
	f.mu.RUnlock()
	sort.Strings(out)
	return out
}

// RegisterDefaults installs the kinds shipped with this binary.
func (f *Factories) RegisterDefaults() {
	f.Register(KindIdle, NewIdle)
	logger.Debugf("module: registered %d factories", len(f.Kinds()))
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
