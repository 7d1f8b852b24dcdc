package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"conductor/internal/logger"
	"conductor/internal/module"
	"conductor/internal/ports"
	"conductor/internal/types"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RunCycle executes one trading cycle. It always returns a fully populated
// result; module failures are recorded per module and never fail the cycle.
func (o *Orchestrator) RunCycle(ctx context.Context) (res types.CycleResult) {
	started := o.now()
	res = types.CycleResult{
		ID:        uuid.NewString(),
		Number:    int(o.cycles.Add(1)),
		StartedAt: started,
		Success:   true,
		Modules:   []types.ModuleResult{},
	}
	defer func() {
		res.Duration = o.now().Sub(started)
		o.finishCycle(ctx, res)
	}()

	if ok, reason := o.breaker.Check(); !ok {
		res.Success = false
		res.Error = fmt.Sprintf("%v: %s", ErrCircuitBreakerActive, reason)
		logger.Warnf("cycle %d skipped: %s", res.Number, res.Error)
		return res
	}

	mods := o.registry.ActiveModules()
	if len(mods) == 0 {
		logger.Infof("cycle %d: no active modules", res.Number)
		return res
	}

	results := o.runModules(ctx, mods)
	cancelled := ctx.Err()
	for i := range results {
		r := &results[i]
		if !r.Success && cancelled != nil {
			r.Cancelled = true
		}
		switch {
		case r.Success:
			o.registry.UpdateHealth(r.Module, types.HealthHealthy, "")
		case !r.Cancelled:
			o.registry.UpdateHealth(r.Module, types.HealthError, r.Error)
		}
		res.Summary.Add(*r)
		o.breaker.Record(r.TradesCount, o.estimateLoss(*r))
	}
	res.Modules = results
	if cancelled != nil {
		res.Success = false
		res.Error = fmt.Sprintf("cycle cancelled: %v", cancelled)
		logger.Warnf("cycle %d cancelled before all modules finished", res.Number)
	}
	return res
}

func (o *Orchestrator) finishCycle(ctx context.Context, res types.CycleResult) {
	o.mu.Lock()
	cp := res
	o.lastCycle = &cp
	o.mu.Unlock()

	s := res.Summary
	logger.Infof("cycle %d done in %s: success=%v modules=%d failed=%d opportunities=%d trades=%d passed=%d profitable=%d pnl=%.2f",
		res.Number, res.Duration.Truncate(time.Millisecond), res.Success, s.ModulesRun, s.ModulesFailed,
		s.TotalOpportunities, s.TotalTrades, s.TradesPassed, s.SuccessfulTrades, s.RealizedPnL)
	o.persist(ctx, "cycle "+res.ID, func(ctx context.Context, st ports.Persistence) error {
		return st.SaveCycleResult(ctx, res)
	})
}

// estimateLoss is coarse risk telemetry for the safety breaker, not accounting.
func (o *Orchestrator) estimateLoss(r types.ModuleResult) float64 {
	return float64(r.FailedTrades)*o.opts.LossPerFailedTrade +
		float64(r.UnprofitableTrades)*o.opts.LossPerUnprofitableTrade
}

// runModules returns one result per module, in input order.
func (o *Orchestrator) runModules(ctx context.Context, mods []module.Module) []types.ModuleResult {
	out := make([]types.ModuleResult, len(mods))
	if !o.opts.Parallel || len(mods) == 1 {
		for i, m := range mods {
			out[i] = o.runOrSkip(ctx, m)
		}
		return out
	}
	var g errgroup.Group
	g.SetLimit(o.opts.MaxConcurrency)
	for i, m := range mods {
		g.Go(func() error {
			out[i] = o.runOrSkip(ctx, m)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// runOrSkip does not start a module once the cycle has been cancelled.
func (o *Orchestrator) runOrSkip(ctx context.Context, m module.Module) types.ModuleResult {
	if err := ctx.Err(); err != nil {
		return types.ModuleResult{Module: m.Name(), Error: err.Error(), Cancelled: true}
	}
	return o.runWithTimeout(ctx, m)
}

// runWithTimeout stops waiting after the module timeout. The module itself
// is not cancelled and may finish in the background; its late result is dropped.
func (o *Orchestrator) runWithTimeout(ctx context.Context, m module.Module) types.ModuleResult {
	name := m.Name()
	done := make(chan types.ModuleResult, 1)
	go func() { done <- o.runModule(ctx, m) }()

	timer := time.NewTimer(o.opts.ModuleTimeout)
	defer timer.Stop()
	select {
	case r := <-done:
		return r
	case <-timer.C:
		logger.Errorf("module %s timed out after %s", name, o.opts.ModuleTimeout)
		return types.ModuleResult{
			Module:   name,
			Error:    fmt.Sprintf("timed out after %s", o.opts.ModuleTimeout),
			Duration: o.opts.ModuleTimeout,
		}
	case <-ctx.Done():
		return types.ModuleResult{Module: name, Error: ctx.Err().Error(), Cancelled: true}
	}
}

// runModule is the per-module protocol: analyze, validate, execute, monitor
// exits, persist, count. Any error or panic fails this module only.
func (o *Orchestrator) runModule(ctx context.Context, m module.Module) (res types.ModuleResult) {
	started := o.now()
	res.Module = m.Name()
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("module %s panicked: %v", res.Module, r)
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", r)
		}
		res.Duration = o.now().Sub(started)
	}()

	opps, err := m.AnalyzeOpportunities(ctx)
	if err != nil {
		res.Error = fmt.Sprintf("analyze opportunities: %v", err)
		logger.Warnf("module %s: %s", res.Module, res.Error)
		return res
	}
	res.Opportunities = len(opps)

	v := module.NewValidator(ctx, m)
	valid := make([]types.Opportunity, 0, len(opps))
	for _, opp := range opps {
		if v.ValidateOpportunity(ctx, opp) {
			valid = append(valid, opp)
		}
	}
	res.ValidOpportunities = len(valid)

	var entries []types.TradeResult
	if len(valid) > 0 {
		entries, err = m.ExecuteTrades(ctx, valid)
		if err != nil {
			res.Error = fmt.Sprintf("execute trades: %v", err)
			logger.Warnf("module %s: %s", res.Module, res.Error)
			return res
		}
	}

	exits, err := m.MonitorPositions(ctx)
	if err != nil {
		res.Error = fmt.Sprintf("monitor positions: %v", err)
		logger.Warnf("module %s: %s", res.Module, res.Error)
		return res
	}

	for _, opp := range opps {
		m.SaveOpportunity(ctx, opp)
	}
	all := slices.Concat(entries, exits)
	for _, r := range all {
		m.SaveTradeResult(ctx, r)
	}
	res.Tally(all)
	res.Success = true
	logger.Debugf("module %s: opportunities=%d valid=%d trades=%d passed=%d profitable=%d rejected=%v",
		res.Module, res.Opportunities, res.ValidOpportunities, res.TradesCount, res.TradesPassed, res.SuccessfulTrades, v.Rejections())
	return res
}
