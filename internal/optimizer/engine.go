package optimizer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"conductor/internal/logger"
	"conductor/internal/module"
	"conductor/internal/types"

	"github.com/google/uuid"
)

// Tuner produces proposals for one module at a time.
type Tuner interface {
	ShouldOptimize(ctx context.Context, moduleName string) bool
	Optimize(ctx context.Context, moduleName string) ([]types.ParameterOptimizationResult, error)
	MarkOptimized(moduleName string)
}

// ModuleSource yields the modules eligible for optimization.
type ModuleSource interface {
	ActiveModules() []module.Module
}

// Recorder persists applied changes.
type Recorder interface {
	SaveModuleParameters(ctx context.Context, moduleName string, params map[string]any) error
	SaveOptimizationResult(ctx context.Context, rec types.OptimizationRecord) error
}

type EngineParams struct {
	Tuner              Tuner
	Source             ModuleSource
	Recorder           Recorder
	MinConfidence      float64
	MaxChangesPerCycle int
	Enabled            bool
	// OnApplied runs after each applied change.
	OnApplied func(rec types.OptimizationRecord)
}

type Engine struct {
	tuner         Tuner
	source        ModuleSource
	recorder      Recorder
	minConfidence float64
	maxChanges    int
	onApplied     func(rec types.OptimizationRecord)

	enabled atomic.Bool
	runMu   sync.Mutex
	nowFn   func() time.Time
}

func NewEngine(p EngineParams) *Engine {
	e := &Engine{
		tuner:         p.Tuner,
		source:        p.Source,
		recorder:      p.Recorder,
		minConfidence: p.MinConfidence,
		maxChanges:    p.MaxChangesPerCycle,
		onApplied:     p.OnApplied,
		nowFn:         time.Now,
	}
	if e.maxChanges <= 0 {
		e.maxChanges = 3
	}
	e.enabled.Store(p.Enabled)
	return e
}

// SetSource attaches the module source after construction, since the
// orchestrator and the engine reference each other.
func (e *Engine) SetSource(src ModuleSource) {
	e.runMu.Lock()
	e.source = src
	e.runMu.Unlock()
}

func (e *Engine) Enable() {
	if !e.enabled.Swap(true) {
		logger.Infof("optimization enabled")
	}
}

func (e *Engine) Disable() {
	if e.enabled.Swap(false) {
		logger.Infof("optimization disabled")
	}
}

func (e *Engine) Enabled() bool { return e.enabled.Load() }

// RunOptimizationCycle gathers proposals for every active module that is
// due, then applies them in order while confidence and the per-run change
// quota allow.
func (e *Engine) RunOptimizationCycle(ctx context.Context) types.OptimizationSummary {
	var summary types.OptimizationSummary
	if !e.Enabled() || e.tuner == nil || e.source == nil {
		return summary
	}
	e.runMu.Lock()
	defer e.runMu.Unlock()

	mods := make(map[string]module.Module)
	var proposals []types.ParameterOptimizationResult
	for _, m := range e.source.ActiveModules() {
		name := m.Name()
		if ctx.Err() != nil {
			break
		}
		if !e.tuner.ShouldOptimize(ctx, name) {
			continue
		}
		mods[name] = m
		summary.ModulesAnalyzed++
		results, err := e.tuner.Optimize(ctx, name)
		e.tuner.MarkOptimized(name)
		if err != nil {
			logger.Warnf("optimization of %s failed: %v", name, err)
			continue
		}
		proposals = append(proposals, results...)
	}
	summary.ParametersOptimized = len(proposals)

	for _, prop := range proposals {
		if summary.OptimizationsApplied >= e.maxChanges {
			logger.Infof("optimization quota reached, dropping %s.%s", prop.ModuleName, prop.Parameter)
			continue
		}
		if prop.Confidence < e.minConfidence {
			logger.Debugf("optimization %s.%s below confidence (%.2f < %.2f)", prop.ModuleName, prop.Parameter, prop.Confidence, e.minConfidence)
			continue
		}
		m, ok := mods[prop.ModuleName]
		if !ok {
			continue
		}
		if !e.apply(ctx, m, prop) {
			continue
		}
		summary.OptimizationsApplied++
		summary.TotalExpectedImprovement += prop.ExpectedImprovement
	}
	if summary.ModulesAnalyzed > 0 {
		logger.Infof("optimization cycle: analyzed=%d proposed=%d applied=%d improvement=%.4f",
			summary.ModulesAnalyzed, summary.ParametersOptimized, summary.OptimizationsApplied, summary.TotalExpectedImprovement)
	}
	return summary
}

func (e *Engine) apply(ctx context.Context, m module.Module, prop types.ParameterOptimizationResult) bool {
	if err := m.UpdateConfig(map[string]any{prop.Parameter: prop.NewValue}); err != nil {
		logger.Warnf("apply %s.%s=%v rejected: %v", prop.ModuleName, prop.Parameter, prop.NewValue, err)
		return false
	}
	rec := types.OptimizationRecord{ID: uuid.NewString(), AppliedAt: e.nowFn(), Result: prop}
	logger.Audit("optimization_applied", map[string]any{
		"id":          rec.ID,
		"module":      prop.ModuleName,
		"parameter":   prop.Parameter,
		"old":         prop.OldValue,
		"new":         prop.NewValue,
		"improvement": prop.ExpectedImprovement,
		"confidence":  prop.Confidence,
		"method":      prop.Method,
		"samples":     prop.SampleCount,
	})
	if e.recorder != nil {
		if err := e.recorder.SaveModuleParameters(ctx, prop.ModuleName, m.Config().Flatten()); err != nil {
			logger.Warnf("persist parameters for %s failed: %v", prop.ModuleName, err)
		}
		if err := e.recorder.SaveOptimizationResult(ctx, rec); err != nil {
			logger.Warnf("persist optimization record %s failed: %v", rec.ID, err)
		}
	}
	if e.onApplied != nil {
		e.onApplied(rec)
	}
	return true
}
