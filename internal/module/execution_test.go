package module

import (
	"context"
	"errors"
	"testing"
	"time"

	"conductor/internal/ports"
	"conductor/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestBase(orders ports.OrderExecutor) *Base {
	b := NewBase("alpha", DefaultConfig(), Deps{Orders: orders})
	b.SetFillPolling(0, 3)
	return b
}

func TestExecuteOpportunityFilled(t *testing.T) {
	orders := new(MockOrders)
	orders.On("ExecuteOrder", mock.Anything, mock.MatchedBy(func(s ports.OrderSpec) bool {
		return s.Symbol == "AAPL" && s.OrderType == "limit" && s.Limit == 100
	})).Return(ports.OrderResponse{Success: true, OrderID: "o-1"}, nil)
	orders.On("GetOrderStatus", mock.Anything, "o-1").
		Return(ports.OrderStatus{Success: true, Status: ports.OrderStatusFilled, FilledQty: 2, FilledAvgPrice: 101}, nil)

	b := newTestBase(orders)
	res := b.ExecuteOpportunity(context.Background(), buyOpp("AAPL", 2, 100, 0.9))

	assert.True(t, res.Passed())
	assert.False(t, res.Success())
	assert.Equal(t, "o-1", res.OrderID)
	require.NotNil(t, res.FillPrice)
	assert.Equal(t, 101.0, *res.FillPrice)
	pos, notional := b.Exposure()
	assert.Equal(t, 1, pos)
	assert.Equal(t, "202", notional.String())
	orders.AssertExpectations(t)
}

func TestExecuteOpportunityPartialFillAfterPolling(t *testing.T) {
	orders := new(MockOrders)
	orders.On("ExecuteOrder", mock.Anything, mock.Anything).
		Return(ports.OrderResponse{Success: true, OrderID: "o-2"}, nil)
	orders.On("GetOrderStatus", mock.Anything, "o-2").
		Return(ports.OrderStatus{Success: true, Status: ports.OrderStatusPartiallyFilled, FilledQty: 4, FilledAvgPrice: 10}, nil)

	b := newTestBase(orders)
	res := b.ExecuteOpportunity(context.Background(), buyOpp("MSFT", 10, 10, 0.8))

	assert.True(t, res.Passed())
	assert.Equal(t, 4.0, res.Quantity)
	orders.AssertNumberOfCalls(t, "GetOrderStatus", 3)
}

func TestExecuteOpportunityFailures(t *testing.T) {
	t.Run("submit error", func(t *testing.T) {
		orders := new(MockOrders)
		orders.On("ExecuteOrder", mock.Anything, mock.Anything).
			Return(ports.OrderResponse{}, errors.New("broker down"))
		res := newTestBase(orders).ExecuteOpportunity(context.Background(), buyOpp("AAPL", 1, 1, 0.9))
		assert.Equal(t, types.TradeStatusFailed, res.Status)
		assert.Contains(t, res.Error, "broker down")
	})
	t.Run("rejected", func(t *testing.T) {
		orders := new(MockOrders)
		orders.On("ExecuteOrder", mock.Anything, mock.Anything).
			Return(ports.OrderResponse{Success: false, Error: "insufficient buying power"}, nil)
		res := newTestBase(orders).ExecuteOpportunity(context.Background(), buyOpp("AAPL", 1, 1, 0.9))
		assert.Equal(t, types.TradeStatusFailed, res.Status)
		assert.Equal(t, "insufficient buying power", res.Error)
	})
	t.Run("never fills", func(t *testing.T) {
		orders := new(MockOrders)
		orders.On("ExecuteOrder", mock.Anything, mock.Anything).
			Return(ports.OrderResponse{Success: true, OrderID: "o-3"}, nil)
		orders.On("GetOrderStatus", mock.Anything, "o-3").
			Return(ports.OrderStatus{Success: true, Status: ports.OrderStatusNew}, nil)
		b := newTestBase(orders)
		res := b.ExecuteOpportunity(context.Background(), buyOpp("AAPL", 1, 1, 0.9))
		assert.Equal(t, types.TradeStatusFailed, res.Status)
		assert.Contains(t, res.Error, "status=new")
		pos, _ := b.Exposure()
		assert.Zero(t, pos)
	})
	t.Run("cancelled", func(t *testing.T) {
		orders := new(MockOrders)
		orders.On("ExecuteOrder", mock.Anything, mock.Anything).
			Return(ports.OrderResponse{Success: true, OrderID: "o-4"}, nil)
		orders.On("GetOrderStatus", mock.Anything, "o-4").
			Return(ports.OrderStatus{Success: true, Status: ports.OrderStatusCanceled}, nil)
		res := newTestBase(orders).ExecuteOpportunity(context.Background(), buyOpp("AAPL", 1, 1, 0.9))
		assert.Equal(t, types.TradeStatusCancelled, res.Status)
		assert.False(t, res.Passed())
	})
	t.Run("no executor", func(t *testing.T) {
		res := newTestBase(nil).ExecuteOpportunity(context.Background(), buyOpp("AAPL", 1, 1, 0.9))
		assert.Equal(t, ErrNoOrderExecutor.Error(), res.Error)
	})
}

func TestSettleExitComputesPnL(t *testing.T) {
	b := newTestBase(nil)
	opened := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	b.SetClock(func() time.Time { return opened.Add(90 * time.Minute) })
	b.TrackEntry(500)

	res := b.SettleExit(Exit{Symbol: "AAPL", Side: types.SideBuy, Quantity: 5, EntryPrice: 100, ExitPrice: 110, OpenedAt: opened, Reason: "target"})
	require.NotNil(t, res.PnL)
	assert.Equal(t, 50.0, *res.PnL)
	assert.InDelta(t, 0.1, *res.PnLPct, 1e-9)
	assert.Equal(t, 90*time.Minute, *res.HoldDuration)
	assert.True(t, res.Success())
	assert.True(t, res.IsExit)

	pos, notional := b.Exposure()
	assert.Zero(t, pos)
	assert.True(t, notional.IsZero())

	short := b.SettleExit(Exit{Symbol: "TSLA", Side: types.SideSell, Quantity: 1, EntryPrice: 100, ExitPrice: 110})
	assert.Equal(t, -10.0, *short.PnL)
	assert.True(t, short.Unprofitable())
}
