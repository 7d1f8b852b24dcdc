package app

import (
	"context"
	"reflect"

	"conductor/internal/config"
	"conductor/internal/logger"
	"conductor/internal/pkg/convert"
)

// Reload applies a changed config file to the running app. Only what
// changed between the previous and the next file is pushed, so parameters
// the optimizer moved since startup survive unrelated edits. Settings that
// need a restart (store, HTTP address, orchestrator timing) are only logged.
func (a *App) Reload(ctx context.Context, next *config.Config) {
	if a == nil || next == nil {
		return
	}
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	prev := a.cfg

	if prev.App.LogLevel != next.App.LogLevel {
		logger.SetLevel(next.App.LogLevel)
		logger.Infof("log level -> %s", next.App.LogLevel)
	}
	if prev.Optimization.Enabled != next.Optimization.Enabled {
		if next.Optimization.Enabled {
			a.orch.EnableOptimization()
		} else {
			a.orch.DisableOptimization()
		}
	}
	if prev.Store != next.Store || prev.App.HTTPAddr != next.App.HTTPAddr ||
		!reflect.DeepEqual(prev.Orchestrator, next.Orchestrator) || !reflect.DeepEqual(prev.Safety, next.Safety) {
		logger.Warnf("config reload: store, http, orchestrator and safety changes take effect after restart")
	}

	seen := make(map[string]bool, len(next.Modules))
	for _, mc := range next.Modules {
		seen[mc.Name] = true
		old, known := prev.Module(mc.Name)
		if _, registered := a.orch.Registry().Get(mc.Name); !registered {
			if err := a.addModule(ctx, mc); err != nil {
				logger.Errorf("config reload: add module %s: %v", mc.Name, err)
			}
			continue
		}
		if !known {
			old = mc
		}
		a.reloadModule(ctx, old, mc)
	}
	for _, mc := range prev.Modules {
		if seen[mc.Name] {
			continue
		}
		if err := a.orch.DisableModule(mc.Name); err != nil {
			logger.Warnf("config reload: disable removed module %s: %v", mc.Name, err)
			continue
		}
		logger.Infof("config reload: module %s removed from file, disabled", mc.Name)
	}
	a.cfg = next
}

func (a *App) reloadModule(ctx context.Context, old, next config.ModuleConfig) {
	name := next.Name
	if old.Kind != next.Kind {
		logger.Warnf("config reload: module %s kind change %s -> %s needs a restart", name, old.Kind, next.Kind)
	}
	if changes := configChanges(old, next); len(changes) > 0 {
		if err := a.orch.UpdateModuleConfig(ctx, name, changes); err != nil {
			logger.Errorf("config reload: %v", err)
		}
	}
	m, _ := a.orch.Registry().Get(name)
	if m == nil || m.Enabled() == next.IsEnabled() {
		return
	}
	var err error
	if next.IsEnabled() {
		err = a.orch.EnableModule(name)
	} else {
		err = a.orch.DisableModule(name)
	}
	if err != nil {
		logger.Errorf("config reload: %v", err)
	}
}

// configChanges returns the flattened keys whose value differs between
// two entries. Keys dropped from params map to nil, which deletes them.
func configChanges(old, next config.ModuleConfig) map[string]any {
	before, err := moduleConfig(old)
	if err != nil {
		before, _ = moduleConfig(config.ModuleConfig{Name: old.Name})
	}
	after, err := moduleConfig(next)
	if err != nil {
		logger.Errorf("config reload: %v", err)
		return nil
	}
	b, n := before.Flatten(), after.Flatten()
	out := make(map[string]any)
	for k, v := range n {
		if prev, ok := b[k]; !ok || convert.Key(prev) != convert.Key(v) {
			out[k] = v
		}
	}
	for k := range b {
		if _, ok := n[k]; !ok {
			out[k] = nil
		}
	}
	return out
}
