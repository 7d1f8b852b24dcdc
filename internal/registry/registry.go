// Package registry tracks registered modules and their health.
package registry

import (
	"strings"
	"sync"
	"time"

	"conductor/internal/logger"
	"conductor/internal/module"
	"conductor/internal/pkg/text"
	"conductor/internal/types"
)

// maxHealthMessageLen caps each stored warning or error.
const maxHealthMessageLen = 512

type entry struct {
	mod    module.Module
	health types.ModuleHealth
}

// HealthView is one row of HealthSummary.
type HealthView struct {
	Status     types.HealthStatus `json:"status"`
	LastUpdate time.Time          `json:"last_update"`
	ErrorCount int                `json:"error_count"`
	Enabled    bool               `json:"enabled"`
}

// Registry holds modules in registration order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	nowFn   func() time.Time
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		nowFn:   time.Now,
	}
}

// SetClock overrides the time source; used by tests.
func (r *Registry) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	r.mu.Lock()
	r.nowFn = now
	r.mu.Unlock()
}

// Register adds m with healthy status. Re-registering a name replaces the
// module but keeps its original position in the order.
func (r *Registry) Register(m module.Module) {
	if m == nil {
		return
	}
	name := strings.TrimSpace(m.Name())
	if name == "" {
		logger.Warnf("registry: refusing module with empty name")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; !exists {
		r.order = append(r.order, name)
	} else {
		logger.Infof("registry: replacing module %s", name)
	}
	r.entries[name] = &entry{mod: m, health: types.NewModuleHealth(r.nowFn())}
}

func (r *Registry) Get(name string) (module.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.mod, true
}

// ActiveModules returns enabled modules whose health is healthy, in
// registration order.
func (r *Registry) ActiveModules() []module.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]module.Module, 0, len(r.order))
	for _, name := range r.order {
		e := r.entries[name]
		if e.mod.Enabled() && e.health.Runnable() {
			out = append(out, e.mod)
		}
	}
	return out
}

// All returns every module in registration order.
func (r *Registry) All() []module.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]module.Module, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].mod)
	}
	return out
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// UpdateHealth transitions a module's health. Unknown names are ignored.
func (r *Registry) UpdateHealth(name string, status types.HealthStatus, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return
	}
	prev := e.health.Status
	e.health.Apply(status, text.Truncate(message, maxHealthMessageLen), r.nowFn())
	if prev != status {
		logger.Infof("registry: module %s health %s -> %s", name, prev, status)
	}
}

// ResetHealth puts a module back to healthy and clears its history.
func (r *Registry) ResetHealth(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.health = types.NewModuleHealth(r.nowFn())
	return true
}

func (r *Registry) Health(name string) (types.ModuleHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return types.ModuleHealth{}, false
	}
	return e.health.Clone(), true
}

func (r *Registry) HealthSummary() map[string]HealthView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]HealthView, len(r.entries))
	for name, e := range r.entries {
		out[name] = HealthView{
			Status:     e.health.Status,
			LastUpdate: e.health.LastUpdate,
			ErrorCount: e.health.ErrorCount,
			Enabled:    e.mod.Enabled(),
		}
	}
	return out
}
