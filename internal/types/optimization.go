package types

import "time"

// OptimizationMethod names how a parameter proposal was produced.
type OptimizationMethod string

const (
	MethodBayesian         OptimizationMethod = "bayesian"
	MethodDiscreteAnalysis OptimizationMethod = "discrete_analysis"
)

// ParameterOptimizationResult is a proposal to change one module parameter.
type ParameterOptimizationResult struct {
	ModuleName          string             `json:"module_name"`
	Parameter           string             `json:"parameter"`
	OldValue            any                `json:"old_value"`
	NewValue            any                `json:"new_value"`
	ExpectedImprovement float64            `json:"expected_improvement"`
	Confidence          float64            `json:"confidence"`
	Method              OptimizationMethod `json:"method"`
	SampleCount         int                `json:"sample_count"`
}

// OptimizationSummary is returned by one pass of the optimization engine.
type OptimizationSummary struct {
	ModulesAnalyzed          int     `json:"modules_analyzed"`
	ParametersOptimized      int     `json:"parameters_optimized"`
	OptimizationsApplied     int     `json:"optimizations_applied"`
	TotalExpectedImprovement float64 `json:"total_expected_improvement"`
}

// OptimizationRecord is the persisted form of an applied proposal.
type OptimizationRecord struct {
	ID        string                      `json:"id"`
	AppliedAt time.Time                   `json:"applied_at"`
	Result    ParameterOptimizationResult `json:"result"`
}

// PerformanceRecord pairs the parameters a module ran with and the outcome of
// a settled trade.
type PerformanceRecord struct {
	Module     string         `json:"module"`
	Symbol     string         `json:"symbol,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	ProfitLoss float64        `json:"profit_loss"`
	Success    bool           `json:"success"`
	Params     map[string]any `json:"params"`
}

// Outcome is the realised P&L, or ±1 from the success flag when P&L is zero,
// so purely binary records still carry a directional signal.
func (r PerformanceRecord) Outcome() float64 {
	if r.ProfitLoss != 0 {
		return r.ProfitLoss
	}
	if r.Success {
		return 1
	}
	return -1
}
