package module

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"conductor/internal/logger"
	"conductor/internal/ports"
	"conductor/internal/types"

	"github.com/google/uuid"
)

var ErrNoOrderExecutor = errors.New("no order executor configured")

// ExecuteOpportunity places an order for opp and waits a bounded time for it
// to fill. Every failure becomes a failed TradeResult; nothing is returned
// as an error so one bad opportunity cannot abort the batch.
func (b *Base) ExecuteOpportunity(ctx context.Context, opp types.Opportunity) types.TradeResult {
	orders := b.deps.Orders
	if orders == nil {
		return types.FailedTrade(opp, ErrNoOrderExecutor)
	}
	spec := ports.OrderSpec{
		Symbol:    opp.Symbol,
		Side:      opp.Side,
		Quantity:  opp.Quantity,
		OrderType: "market",
		ClientID:  fmt.Sprintf("%s-%s", b.name, uuid.NewString()[:8]),
	}
	if opp.Price > 0 {
		spec.OrderType = "limit"
		spec.Limit = opp.Price
	}
	resp, err := orders.ExecuteOrder(ctx, spec)
	if err != nil {
		return types.FailedTrade(opp, fmt.Errorf("submit order: %w", err))
	}
	if !resp.Success {
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = "order rejected"
		}
		return types.FailedTrade(opp, errors.New(msg))
	}

	b.mu.RLock()
	interval, attempts := b.pollInterval, b.pollAttempts
	b.mu.RUnlock()

	var last ports.OrderStatus
	for attempt := 0; attempt < attempts; attempt++ {
		st, err := orders.GetOrderStatus(ctx, resp.OrderID)
		if err != nil {
			logger.Warnf("module %s: order %s status poll %d failed: %v", b.name, resp.OrderID, attempt+1, err)
		} else {
			last = st
			switch st.Status {
			case ports.OrderStatusFilled:
				return b.filled(opp, resp.OrderID, st)
			case ports.OrderStatusCanceled, ports.OrderStatusRejected, ports.OrderStatusExpired:
				if st.FilledQty > 0 {
					return b.filled(opp, resp.OrderID, st)
				}
				res := types.FailedTrade(opp, fmt.Errorf("order %s %s", resp.OrderID, st.Status))
				res.OrderID = resp.OrderID
				if st.Status == ports.OrderStatusCanceled {
					res.Status = types.TradeStatusCancelled
				}
				return res
			}
		}
		if attempt == attempts-1 {
			break
		}
		if err := sleepCtx(ctx, interval); err != nil {
			break
		}
	}
	if last.FilledQty > 0 {
		return b.filled(opp, resp.OrderID, last)
	}
	status := last.Status
	if status == "" {
		status = "unknown"
	}
	res := types.FailedTrade(opp, fmt.Errorf("order %s not filled (status=%s)", resp.OrderID, status))
	res.OrderID = resp.OrderID
	return res
}

func (b *Base) filled(opp types.Opportunity, orderID string, st ports.OrderStatus) types.TradeResult {
	entry := opp
	if st.FilledQty > 0 && st.FilledQty < opp.Quantity {
		entry = opp.WithFilledQuantity(st.FilledQty)
	}
	price := st.FilledAvgPrice
	if price <= 0 {
		price = opp.Price
	}
	fillTime := st.UpdatedAt
	if fillTime.IsZero() {
		fillTime = b.now()
	}
	b.TrackEntry(entry.Quantity * price)
	return types.TradeResult{
		Symbol:    entry.Symbol,
		Side:      entry.Side,
		Quantity:  entry.Quantity,
		Strategy:  entry.Strategy,
		Status:    types.TradeStatusExecuted,
		OrderID:   orderID,
		FillPrice: types.Float(price),
		FillTime:  &fillTime,
		Params:    b.Config().Flatten(),
	}
}

// ExecuteAll runs ExecuteOpportunity for each opportunity in order.
func (b *Base) ExecuteAll(ctx context.Context, opps []types.Opportunity) []types.TradeResult {
	out := make([]types.TradeResult, 0, len(opps))
	for _, opp := range opps {
		if ctx.Err() != nil {
			out = append(out, types.FailedTrade(opp, ctx.Err()))
			continue
		}
		out = append(out, b.ExecuteOpportunity(ctx, opp))
	}
	return out
}

// Exit describes a position being closed.
type Exit struct {
	Symbol     string
	Side       types.Side
	Quantity   float64
	EntryPrice float64
	ExitPrice  float64
	OpenedAt   time.Time
	Reason     string
	OrderID    string
	// Params is the entry's parameter snapshot, normally the Params of the
	// TradeResult that opened the position.
	Params     map[string]any
}

// SettleExit builds the settled TradeResult for a closed position and
// releases its exposure.
func (b *Base) SettleExit(exit Exit) types.TradeResult {
	now := b.now()
	pnl := (exit.ExitPrice - exit.EntryPrice) * exit.Quantity
	if exit.Side == types.SideSell {
		pnl = -pnl
	}
	var pct float64
	if exit.EntryPrice > 0 {
		pct = pnl / (exit.EntryPrice * exit.Quantity)
	}
	hold := time.Duration(0)
	if !exit.OpenedAt.IsZero() && now.After(exit.OpenedAt) {
		hold = now.Sub(exit.OpenedAt)
	}
	b.TrackExit(exit.EntryPrice * exit.Quantity)
	return types.TradeResult{
		Symbol:       exit.Symbol,
		Side:         exit.Side,
		Quantity:     exit.Quantity,
		Strategy:     b.name,
		Status:       types.TradeStatusExecuted,
		IsExit:       true,
		OrderID:      exit.OrderID,
		FillPrice:    types.Float(exit.ExitPrice),
		FillTime:     &now,
		PnL:          types.Float(pnl),
		PnLPct:       types.Float(pct),
		HoldDuration: &hold,
		ExitReason:   exit.Reason,
		Params:       exit.Params,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
