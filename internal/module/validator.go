package module

import (
	"context"

	"conductor/internal/logger"
	"conductor/internal/pkg/symbol"
	"conductor/internal/types"

	"github.com/shopspring/decimal"
)

// Rejection reasons, counted per validator.
const (
	RejectInvalid    = "invalid"
	RejectConfidence = "confidence"
	RejectSymbol     = "symbol"
	RejectRisk       = "risk"
	RejectSize       = "position_size"
	RejectAllocation = "allocation"
	RejectPositions  = "max_positions"
	RejectCustom     = "module"
)

// Validator applies the standard entry gates for one cycle. Accepted
// opportunities reserve a position slot and notional, so a batch cannot
// collectively exceed the module's limits.
type Validator struct {
	mod        Module
	cfg        Config
	symbols    map[string]struct{}
	positions  int
	committed  decimal.Decimal
	allocation decimal.Decimal
	rejections map[string]int
}

// NewValidator snapshots the module's config and exposure. The allocation
// ceiling is the tighter of the module's own limit and the risk checker's.
func NewValidator(ctx context.Context, m Module) *Validator {
	cfg := m.Config()
	positions, exposure := m.Exposure()
	v := &Validator{
		mod:        m,
		cfg:        cfg,
		positions:  positions,
		committed:  exposure,
		allocation: decimal.NewFromFloat(cfg.AllocationLimit),
		rejections: make(map[string]int),
	}
	if rc := m.Risk(); rc != nil {
		if alloc := rc.GetModuleAllocation(ctx, m.Name()); alloc > 0 {
			ra := decimal.NewFromFloat(alloc)
			if v.allocation.IsZero() || ra.LessThan(v.allocation) {
				v.allocation = ra
			}
		}
	}
	if syms := m.SupportedSymbols(); len(syms) > 0 {
		v.symbols = make(map[string]struct{}, len(syms))
		for _, s := range syms {
			v.symbols[symbol.Normalize(s)] = struct{}{}
		}
	}
	return v
}

// ValidateOpportunity reports whether opp passes every gate.
func (v *Validator) ValidateOpportunity(ctx context.Context, opp types.Opportunity) bool {
	name := v.mod.Name()
	if err := opp.Validate(); err != nil {
		return v.reject(RejectInvalid, name, opp, err.Error())
	}
	if opp.Confidence < v.cfg.ConfidenceThreshold {
		return v.reject(RejectConfidence, name, opp, "below threshold")
	}
	if v.symbols != nil {
		if _, ok := v.symbols[symbol.Normalize(opp.Symbol)]; !ok {
			return v.reject(RejectSymbol, name, opp, "unsupported symbol")
		}
	}
	if rc := v.mod.Risk(); rc != nil && !rc.ValidateOpportunity(ctx, name, opp) {
		return v.reject(RejectRisk, name, opp, "risk checker declined")
	}
	notional := decimal.NewFromFloat(opp.Notional())
	if v.cfg.MaxPositionSize > 0 && notional.GreaterThan(decimal.NewFromFloat(v.cfg.MaxPositionSize)) {
		return v.reject(RejectSize, name, opp, "exceeds max position size")
	}
	if v.allocation.IsPositive() && v.committed.Add(notional).GreaterThan(v.allocation) {
		return v.reject(RejectAllocation, name, opp, "exceeds allocation")
	}
	if v.cfg.MaxPositions > 0 && v.positions+1 > v.cfg.MaxPositions {
		return v.reject(RejectPositions, name, opp, "position cap reached")
	}
	if custom, ok := v.mod.(OpportunityValidator); ok && !custom.ValidateOpportunity(ctx, opp) {
		return v.reject(RejectCustom, name, opp, "module check failed")
	}
	v.positions++
	v.committed = v.committed.Add(notional)
	return true
}

// Rejections returns counts by reason.
func (v *Validator) Rejections() map[string]int {
	out := make(map[string]int, len(v.rejections))
	for k, n := range v.rejections {
		out[k] = n
	}
	return out
}

func (v *Validator) reject(reason, module string, opp types.Opportunity, detail string) bool {
	v.rejections[reason]++
	logger.Debugf("module %s: rejected %s %s conf=%.2f (%s: %s)", module, opp.Side, opp.Symbol, opp.Confidence, reason, detail)
	return false
}
