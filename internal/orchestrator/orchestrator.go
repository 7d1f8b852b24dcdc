// Package orchestrator runs trading cycles across registered modules and
// exposes the operator controls around them.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"conductor/internal/logger"
	"conductor/internal/pkg/circuit"
	"conductor/internal/ports"
	"conductor/internal/registry"
	"conductor/internal/types"
)

var (
	ErrUnknownModule        = errors.New("unknown module")
	ErrCircuitBreakerActive = errors.New("safety circuit breaker active")
)

const persistTimeout = 10 * time.Second

type Options struct {
	Parallel       bool
	MaxConcurrency int
	ModuleTimeout  time.Duration
	CycleDelay     time.Duration
	// OptimizeEvery runs the optimization engine after every N-th cycle; 0 disables it.
	OptimizeEvery            int
	LossPerFailedTrade       float64
	LossPerUnprofitableTrade float64
}

func DefaultOptions() Options {
	return Options{
		Parallel:                 true,
		MaxConcurrency:           3,
		ModuleTimeout:            300 * time.Second,
		CycleDelay:               120 * time.Second,
		OptimizeEvery:            10,
		LossPerFailedTrade:       100,
		LossPerUnprofitableTrade: 50,
	}
}

// Optimizer is the optimization engine as the orchestrator sees it.
type Optimizer interface {
	RunOptimizationCycle(ctx context.Context) types.OptimizationSummary
	Enable()
	Disable()
	Enabled() bool
}

type Params struct {
	Registry    *registry.Registry
	Breaker     *circuit.SafetyBreaker
	Persistence ports.Persistence
	Optimizer   Optimizer
	Options     Options
}

type Orchestrator struct {
	registry  *registry.Registry
	breaker   *circuit.SafetyBreaker
	store     ports.Persistence
	optimizer Optimizer
	opts      Options

	// storeGuard stops hammering a persistence layer that keeps failing.
	storeGuard *circuit.CircuitBreaker

	cycles  atomic.Int64
	running atomic.Bool

	mu        sync.RWMutex
	lastCycle *types.CycleResult
	nowFn     func() time.Time
}

func New(p Params) *Orchestrator {
	opts := p.Options
	def := DefaultOptions()
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = def.MaxConcurrency
	}
	if opts.ModuleTimeout <= 0 {
		opts.ModuleTimeout = def.ModuleTimeout
	}
	if opts.CycleDelay < 0 {
		opts.CycleDelay = 0
	}
	reg := p.Registry
	if reg == nil {
		reg = registry.New()
	}
	breaker := p.Breaker
	if breaker == nil {
		breaker = circuit.NewSafetyBreaker(circuit.DefaultSafetyConfig())
	}
	guard := circuit.NewCircuitBreaker("persistence", 3, time.Minute)
	guard.SetStateChangeHandler(func(name string, from, to circuit.State) {
		logger.Warnf("%s guard: %s -> %s", name, from, to)
	})
	return &Orchestrator{
		registry:   reg,
		breaker:    breaker,
		store:      p.Persistence,
		optimizer:  p.Optimizer,
		opts:       opts,
		storeGuard: guard,
		nowFn:      time.Now,
	}
}

// SetClock overrides the time source; used by tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	o.mu.Lock()
	o.nowFn = now
	o.mu.Unlock()
}

func (o *Orchestrator) now() time.Time {
	o.mu.RLock()
	fn := o.nowFn
	o.mu.RUnlock()
	return fn()
}

func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

func (o *Orchestrator) Options() Options { return o.opts }

// persist runs fn against the store with a timeout. Failures are logged
// and never returned.
func (o *Orchestrator) persist(ctx context.Context, what string, fn func(ctx context.Context, s ports.Persistence) error) {
	if o.store == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	err := o.storeGuard.Do(func() error { return fn(pctx, o.store) })
	switch {
	case errors.Is(err, circuit.ErrOpen):
		logger.Debugf("skip persisting %s: store guard open", what)
	case err != nil:
		logger.Warnf("persist %s failed: %v", what, err)
	}
}
