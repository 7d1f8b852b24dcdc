package types

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// Side is the direction of a proposed trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// RiskParams are the per-opportunity risk limits a module attaches to a proposal.
type RiskParams struct {
	StopLossPct     float64 `json:"stop_loss_pct"`
	ProfitTargetPct float64 `json:"profit_target_pct"`
	MaxPositionSize float64 `json:"max_position_size"`
}

// Opportunity is a proposed trade produced by a module's analysis step and
// consumed by the same module's execution step.
type Opportunity struct {
	Symbol     string         `json:"symbol"`
	Side       Side           `json:"side"`
	Quantity   float64        `json:"quantity"`
	Price      float64        `json:"price,omitempty"`
	Confidence float64        `json:"confidence"`
	Strategy   string         `json:"strategy"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Risk       RiskParams     `json:"risk"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate checks the structural invariants of an opportunity.
func (o Opportunity) Validate() error {
	if strings.TrimSpace(o.Symbol) == "" {
		return fmt.Errorf("opportunity symbol is empty")
	}
	if !o.Side.Valid() {
		return fmt.Errorf("opportunity %s: invalid side %q", o.Symbol, o.Side)
	}
	if o.Confidence < 0 || o.Confidence > 1 {
		return fmt.Errorf("opportunity %s: confidence %.4f outside [0,1]", o.Symbol, o.Confidence)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("opportunity %s: quantity must be > 0", o.Symbol)
	}
	return nil
}

// Notional is quantity × price; zero when the module did not quote a price.
func (o Opportunity) Notional() float64 {
	if o.Price <= 0 {
		return 0
	}
	return o.Quantity * o.Price
}

// WithFilledQuantity returns a copy adjusted to a partial fill.
func (o Opportunity) WithFilledQuantity(qty float64) Opportunity {
	out := o
	out.Quantity = qty
	if o.Metadata != nil {
		out.Metadata = maps.Clone(o.Metadata)
	}
	return out
}
