// Package module defines the unit of decision logic the orchestrator schedules.
//
// Concrete variants implement Strategy and embed *Base, which supplies the
// runtime state the orchestrator manages: enabled flag, live configuration,
// persistence hooks and exposure tracking.
//
// A strategy typically places orders with Base.ExecuteAll and closes them
// with Base.SettleExit, passing the entry's Params through the Exit so the
// settled result is credited to the settings the position was opened under.
package module

import (
	"context"

	"conductor/internal/ports"
	"conductor/internal/types"

	"github.com/shopspring/decimal"
)

// Strategy is the asset-class specific part of a module.
type Strategy interface {
	Name() string
	SupportedSymbols() []string
	AnalyzeOpportunities(ctx context.Context) ([]types.Opportunity, error)
	ExecuteTrades(ctx context.Context, opps []types.Opportunity) ([]types.TradeResult, error)
	MonitorPositions(ctx context.Context) ([]types.TradeResult, error)
}

// Module is everything the orchestrator needs from a registered unit.
type Module interface {
	Strategy

	Enabled() bool
	SetEnabled(enabled bool)
	Config() Config
	UpdateConfig(values map[string]any) error
	Risk() ports.RiskChecker
	// Exposure reports open positions and their notional value.
	Exposure() (positions int, notional decimal.Decimal)
	SaveOpportunity(ctx context.Context, opp types.Opportunity)
	SaveTradeResult(ctx context.Context, res types.TradeResult)
}

// OpportunityValidator is implemented by modules with checks beyond the
// standard confidence/symbol/risk/limit gates.
type OpportunityValidator interface {
	ValidateOpportunity(ctx context.Context, opp types.Opportunity) bool
}
