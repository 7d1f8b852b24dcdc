// Package ports declares the collaborators the orchestration core depends on
// but does not implement: persistence, risk checks and order execution.
package ports

import (
	"context"
	"time"

	"conductor/internal/types"
)

// Persistence is the document-store side channel. Callers in the orchestrator
// treat every error as non-fatal.
type Persistence interface {
	SaveOpportunity(ctx context.Context, moduleName string, opp types.Opportunity) error
	// SaveTradeResult stores a result together with the parameters its
	// position was opened under, so settled trades can later feed the optimizer.
	SaveTradeResult(ctx context.Context, moduleName string, res types.TradeResult, params map[string]any) error
	SaveCycleResult(ctx context.Context, cycle types.CycleResult) error
	SaveOptimizationResult(ctx context.Context, rec types.OptimizationRecord) error
	GetRecentPerformanceData(ctx context.Context, moduleName string, daysBack int) ([]types.PerformanceRecord, error)
	GetCurrentModuleParameters(ctx context.Context, moduleName string) (map[string]any, error)
	SaveModuleParameters(ctx context.Context, moduleName string, params map[string]any) error
	IsConnected() bool
}

// RiskChecker approves opportunities and reports per-module capital allocation.
type RiskChecker interface {
	ValidateOpportunity(ctx context.Context, moduleName string, opp types.Opportunity) bool
	GetModuleAllocation(ctx context.Context, moduleName string) float64
}

// OrderSpec is what a module asks the broker to do.
type OrderSpec struct {
	Symbol    string     `json:"symbol"`
	Side      types.Side `json:"side"`
	Quantity  float64    `json:"quantity"`
	OrderType string     `json:"order_type"`
	Limit     float64    `json:"limit_price,omitempty"`
	ClientID  string     `json:"client_order_id,omitempty"`
}

// OrderResponse is the broker's acknowledgement of an order submission.
type OrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OrderStatus is the broker's view of an order after submission.
type OrderStatus struct {
	Success        bool      `json:"success"`
	Status         string    `json:"status"`
	FilledQty      float64   `json:"filled_qty,omitempty"`
	FilledAvgPrice float64   `json:"filled_avg_price,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// Broker order states understood by module.Base.
const (
	OrderStatusNew             = "new"
	OrderStatusPartiallyFilled = "partially_filled"
	OrderStatusFilled          = "filled"
	OrderStatusCanceled        = "canceled"
	OrderStatusRejected        = "rejected"
	OrderStatusExpired         = "expired"
)

// OrderExecutor places orders and reports their status.
type OrderExecutor interface {
	ExecuteOrder(ctx context.Context, spec OrderSpec) (OrderResponse, error)
	GetOrderStatus(ctx context.Context, orderID string) (OrderStatus, error)
}
