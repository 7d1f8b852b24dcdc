package types

import "time"

// ModuleResult summarises one module's run inside a cycle.
//
// TradesCount, TradesPassed and SuccessfulTrades are distinct denominators:
// all results, results whose order filled, and filled results with positive P&L.
type ModuleResult struct {
	Module             string        `json:"module"`
	Success            bool          `json:"success"`
	Error              string        `json:"error,omitempty"`
	Opportunities      int           `json:"opportunities"`
	ValidOpportunities int           `json:"valid_opportunities"`
	TradesCount        int           `json:"trades_count"`
	TradesPassed       int           `json:"trades_passed"`
	SuccessfulTrades   int           `json:"successful_trades"`
	FailedTrades       int           `json:"failed_trades"`
	UnprofitableTrades int           `json:"unprofitable_trades"`
	RealizedPnL        float64       `json:"realized_pnl"`
	Duration           time.Duration `json:"duration"`
	// Cancelled marks a run cut short by shutdown rather than a module fault.
	Cancelled          bool          `json:"cancelled,omitempty"`
}

// Tally folds trade results into the counters.
func (m *ModuleResult) Tally(results []TradeResult) {
	for _, r := range results {
		m.TradesCount++
		if r.Passed() {
			m.TradesPassed++
		}
		if r.Success() {
			m.SuccessfulTrades++
		}
		if r.Status == TradeStatusFailed {
			m.FailedTrades++
		}
		if r.Unprofitable() {
			m.UnprofitableTrades++
		}
		if r.PnL != nil {
			m.RealizedPnL += *r.PnL
		}
	}
}

// CycleSummary aggregates module results for a cycle.
type CycleSummary struct {
	TotalOpportunities int     `json:"total_opportunities"`
	TotalTrades        int     `json:"total_trades"`
	TradesPassed       int     `json:"trades_passed"`
	SuccessfulTrades   int     `json:"successful_trades"`
	ModulesRun         int     `json:"modules_run"`
	ModulesFailed      int     `json:"modules_failed"`
	RealizedPnL        float64 `json:"realized_pnl"`
}

// Add folds a module result into the summary.
func (s *CycleSummary) Add(m ModuleResult) {
	s.ModulesRun++
	if !m.Success && !m.Cancelled {
		s.ModulesFailed++
	}
	s.TotalOpportunities += m.Opportunities
	s.TotalTrades += m.TradesCount
	s.TradesPassed += m.TradesPassed
	s.SuccessfulTrades += m.SuccessfulTrades
	s.RealizedPnL += m.RealizedPnL
}

// CycleResult is the outcome of one trading cycle. It is always fully populated;
// Error is set only when Success is false.
type CycleResult struct {
	ID        string         `json:"id"`
	Number    int            `json:"number"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Summary   CycleSummary   `json:"summary"`
	Modules   []ModuleResult `json:"modules"`
}

// Module returns the result for the named module.
func (c CycleResult) Module(name string) (ModuleResult, bool) {
	for _, m := range c.Modules {
		if m.Module == name {
			return m, true
		}
	}
	return ModuleResult{}, false
}
