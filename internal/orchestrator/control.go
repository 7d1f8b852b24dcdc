package orchestrator

import (
	"context"
	"fmt"

	"conductor/internal/logger"
	"conductor/internal/module"
	"conductor/internal/pkg/circuit"
	"conductor/internal/ports"
	"conductor/internal/types"
)

// ModuleStatus is the operator view of one module.
type ModuleStatus struct {
	Name      string             `json:"name"`
	Enabled   bool               `json:"enabled"`
	Active    bool               `json:"active"`
	Health    types.ModuleHealth `json:"health"`
	Config    module.Config      `json:"config"`
	Positions int                `json:"open_positions"`
	Exposure  float64            `json:"exposure"`
}

type Status struct {
	Running              bool                 `json:"running"`
	Cycles               int64                `json:"cycles"`
	LastCycle            *types.CycleResult   `json:"last_cycle,omitempty"`
	Modules              []ModuleStatus       `json:"modules"`
	Safety               circuit.SafetyStatus `json:"safety"`
	OptimizationEnabled  bool                 `json:"optimization_enabled"`
	PersistenceConnected bool                 `json:"persistence_connected"`
}

// RegisterModule adds m to the registry and records its starting
// parameters, which the optimizer reads as the current values.
func (o *Orchestrator) RegisterModule(ctx context.Context, m module.Module) {
	if m == nil {
		return
	}
	o.registry.Register(m)
	flat := m.Config().Flatten()
	o.persist(ctx, "parameters for "+m.Name(), func(ctx context.Context, s ports.Persistence) error {
		return s.SaveModuleParameters(ctx, m.Name(), flat)
	})
}

// ActiveModules lets the optimization engine see what the next cycle will run.
func (o *Orchestrator) ActiveModules() []module.Module {
	return o.registry.ActiveModules()
}

func (o *Orchestrator) lookup(name string) (module.Module, error) {
	m, ok := o.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	return m, nil
}

func (o *Orchestrator) EnableModule(name string) error {
	m, err := o.lookup(name)
	if err != nil {
		return err
	}
	m.SetEnabled(true)
	if h, _ := o.registry.Health(name); h.Status == types.HealthDisabled {
		o.registry.UpdateHealth(name, types.HealthHealthy, "")
	}
	logger.Audit("module_enabled", map[string]any{"module": name})
	return nil
}

func (o *Orchestrator) DisableModule(name string) error {
	m, err := o.lookup(name)
	if err != nil {
		return err
	}
	m.SetEnabled(false)
	o.registry.UpdateHealth(name, types.HealthDisabled, "")
	logger.Audit("module_disabled", map[string]any{"module": name})
	return nil
}

// UpdateModuleConfig applies values atomically and persists the result.
func (o *Orchestrator) UpdateModuleConfig(ctx context.Context, name string, values map[string]any) error {
	m, err := o.lookup(name)
	if err != nil {
		return err
	}
	if err := m.UpdateConfig(values); err != nil {
		return fmt.Errorf("update %s config: %w", name, err)
	}
	flat := m.Config().Flatten()
	o.persist(ctx, "parameters for "+name, func(ctx context.Context, s ports.Persistence) error {
		return s.SaveModuleParameters(ctx, name, flat)
	})
	fields := map[string]any{"module": name}
	for k, v := range values {
		fields[k] = v
	}
	logger.Audit("module_config_updated", fields)
	return nil
}

// ResetModuleHealth returns a module in error back to healthy.
func (o *Orchestrator) ResetModuleHealth(name string) error {
	m, err := o.lookup(name)
	if err != nil {
		return err
	}
	o.registry.ResetHealth(name)
	if !m.Enabled() {
		o.registry.UpdateHealth(name, types.HealthDisabled, "")
	}
	logger.Audit("module_health_reset", map[string]any{"module": name})
	return nil
}

func (o *Orchestrator) GetSafetyStatus() circuit.SafetyStatus {
	return o.breaker.Status()
}

func (o *Orchestrator) TriggerEmergencyStop(reason string) {
	o.breaker.TriggerEmergencyStop(reason)
	logger.Audit("emergency_stop", map[string]any{"reason": reason})
}

func (o *Orchestrator) ResetCircuitBreaker() {
	o.breaker.Reset()
	logger.Audit("circuit_breaker_reset", nil)
}

func (o *Orchestrator) EnableOptimization() {
	if o.optimizer != nil {
		o.optimizer.Enable()
	}
}

func (o *Orchestrator) DisableOptimization() {
	if o.optimizer != nil {
		o.optimizer.Disable()
	}
}

func (o *Orchestrator) LastCycle() (types.CycleResult, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastCycle == nil {
		return types.CycleResult{}, false
	}
	return *o.lastCycle, true
}

func (o *Orchestrator) GetStatus() Status {
	st := Status{
		Running: o.running.Load(),
		Cycles:  o.cycles.Load(),
		Safety:  o.breaker.Status(),
	}
	if last, ok := o.LastCycle(); ok {
		st.LastCycle = &last
	}
	if o.optimizer != nil {
		st.OptimizationEnabled = o.optimizer.Enabled()
	}
	if o.store != nil {
		st.PersistenceConnected = o.store.IsConnected()
	}
	active := make(map[string]bool)
	for _, m := range o.registry.ActiveModules() {
		active[m.Name()] = true
	}
	for _, m := range o.registry.All() {
		h, _ := o.registry.Health(m.Name())
		positions, exposure := m.Exposure()
		st.Modules = append(st.Modules, ModuleStatus{
			Name:      m.Name(),
			Enabled:   m.Enabled(),
			Active:    active[m.Name()],
			Health:    h,
			Config:    m.Config(),
			Positions: positions,
			Exposure:  exposure.InexactFloat64(),
		})
	}
	return st
}
