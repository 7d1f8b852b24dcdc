package types

import "time"

// TradeStatus is the lifecycle state of an order-level outcome.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusExecuted  TradeStatus = "executed"
	TradeStatusFailed    TradeStatus = "failed"
	TradeStatusCancelled TradeStatus = "cancelled"
)

// TradeResult is the outcome of executing or exiting an opportunity.
// PnL stays nil for entries until an exit settles them.
type TradeResult struct {
	Symbol       string         `json:"symbol"`
	Side         Side           `json:"side"`
	Quantity     float64        `json:"quantity"`
	Strategy     string         `json:"strategy,omitempty"`
	Status       TradeStatus    `json:"status"`
	IsExit       bool           `json:"is_exit"`
	OrderID      string         `json:"order_id,omitempty"`
	FillPrice    *float64       `json:"fill_price,omitempty"`
	FillTime     *time.Time     `json:"fill_time,omitempty"`
	PnL          *float64       `json:"pnl,omitempty"`
	PnLPct       *float64       `json:"pnl_pct,omitempty"`
	HoldDuration *time.Duration `json:"hold_duration,omitempty"`
	ExitReason   string         `json:"exit_reason,omitempty"`
	Error        string         `json:"error,omitempty"`
	// Params is the module configuration the position was opened under.
	Params       map[string]any `json:"params,omitempty"`
}

// Passed reports whether the order was placed and filled, regardless of profit.
func (r TradeResult) Passed() bool {
	return r.Status == TradeStatusExecuted
}

// Success reports whether the trade was executed and realised a strictly
// positive P&L. Entries without P&L are never successful.
func (r TradeResult) Success() bool {
	return r.Passed() && r.PnL != nil && *r.PnL > 0
}

// Settled reports whether the result carries realised P&L.
func (r TradeResult) Settled() bool {
	return r.PnL != nil
}

// Unprofitable reports a settled execution with P&L <= 0.
func (r TradeResult) Unprofitable() bool {
	return r.Passed() && r.PnL != nil && *r.PnL <= 0
}

// FailedTrade builds a failed result for an opportunity that could not be executed.
func FailedTrade(opp Opportunity, err error) TradeResult {
	res := TradeResult{
		Symbol:   opp.Symbol,
		Side:     opp.Side,
		Quantity: opp.Quantity,
		Strategy: opp.Strategy,
		Status:   TradeStatusFailed,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// Float returns a pointer to v, for populating optional numeric fields.
func Float(v float64) *float64 {
	return &v
}
