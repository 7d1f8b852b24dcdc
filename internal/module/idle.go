package module

import (
	"context"
	"fmt"
	"strings"

	"conductor/internal/types"
)

const KindIdle = "idle"

// Idle is a module that never finds opportunities. It keeps a slot in the
// registry for a strategy that is provisioned but not yet deployed, and
// still exercises the full cycle protocol.
type Idle struct {
	*Base
	symbols []string
}

func NewIdle(spec Spec) (Module, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, fmt.Errorf("module name is required")
	}
	return &Idle{Base: NewBase(name, spec.Config, spec.Deps), symbols: append([]string(nil), spec.Symbols...)}, nil
}

func (m *Idle) SupportedSymbols() []string {
	return append([]string(nil), m.symbols...)
}

func (m *Idle) AnalyzeOpportunities(context.Context) ([]types.Opportunity, error) {
	return nil, nil
}

func (m *Idle) ExecuteTrades(ctx context.Context, opps []types.Opportunity) ([]types.TradeResult, error) {
	return m.ExecuteAll(ctx, opps), nil
}

func (m *Idle) MonitorPositions(context.Context) ([]types.TradeResult, error) {
	return nil, nil
}
