package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"

	"conductor/internal/logger"
	"conductor/internal/scheduler"
	"conductor/internal/types"
)

// Run loops cycles until ctx is done, sleeping CycleDelay minus the cycle's
// duration between them. A panic escaping a cycle is logged and only that
// cycle is lost.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return fmt.Errorf("orchestrator already running")
	}
	defer o.running.Store(false)
	logger.Infof("orchestrator started: parallel=%v concurrency=%d module_timeout=%s cycle_delay=%s optimize_every=%d",
		o.opts.Parallel, o.opts.MaxConcurrency, o.opts.ModuleTimeout, o.opts.CycleDelay, o.opts.OptimizeEvery)
	scheduler.NewCycleScheduler(ctx, "cycle", o.opts.CycleDelay).Start(o.runOnce)
	logger.Infof("orchestrator stopped after %d cycles", o.cycles.Load())
	return nil
}

func (o *Orchestrator) Running() bool { return o.running.Load() }

func (o *Orchestrator) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("cycle aborted by panic: %v\n%s", r, debug.Stack())
		}
	}()
	res := o.RunCycle(ctx)
	if o.optimizer == nil || o.opts.OptimizeEvery <= 0 || res.Number%o.opts.OptimizeEvery != 0 {
		return
	}
	o.RunOptimization(ctx)
}

// RunOptimization runs one optimization pass now.
func (o *Orchestrator) RunOptimization(ctx context.Context) (summary types.OptimizationSummary) {
	if o.optimizer == nil {
		return summary
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("optimization aborted by panic: %v", r)
		}
	}()
	return o.optimizer.RunOptimizationCycle(ctx)
}
