package module

import (
	"context"

	"conductor/internal/ports"
	"conductor/internal/types"

	"github.com/stretchr/testify/mock"
)

type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) ExecuteOrder(ctx context.Context, spec ports.OrderSpec) (ports.OrderResponse, error) {
	args := m.Called(ctx, spec)
	return args.Get(0).(ports.OrderResponse), args.Error(1)
}

func (m *MockOrders) GetOrderStatus(ctx context.Context, orderID string) (ports.OrderStatus, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(ports.OrderStatus), args.Error(1)
}

type MockRisk struct {
	mock.Mock
}

func (m *MockRisk) ValidateOpportunity(ctx context.Context, moduleName string, opp types.Opportunity) bool {
	args := m.Called(ctx, moduleName, opp)
	return args.Bool(0)
}

func (m *MockRisk) GetModuleAllocation(ctx context.Context, moduleName string) float64 {
	args := m.Called(ctx, moduleName)
	return args.Get(0).(float64)
}

func buyOpp(symbol string, qty, price, conf float64) types.Opportunity {
	return types.Opportunity{
		Symbol:     symbol,
		Side:       types.SideBuy,
		Quantity:   qty,
		Price:      price,
		Confidence: conf,
		Strategy:   "test",
	}
}
