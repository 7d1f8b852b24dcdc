package orchestrator

import (
	"context"
	"sync"

	"conductor/internal/module"
	"conductor/internal/types"

	"github.com/stretchr/testify/mock"
)

type MockModule struct {
	*module.Base
	mock.Mock
	symbols []string
}

func newMockModule(name string, store *memStore, symbols ...string) *MockModule {
	deps := module.Deps{}
	if store != nil {
		deps.Persistence = store
	}
	return &MockModule{Base: module.NewBase(name, module.DefaultConfig(), deps), symbols: symbols}
}

func (m *MockModule) SupportedSymbols() []string { return m.symbols }

func (m *MockModule) AnalyzeOpportunities(ctx context.Context) ([]types.Opportunity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Opportunity), args.Error(1)
}

func (m *MockModule) ExecuteTrades(ctx context.Context, opps []types.Opportunity) ([]types.TradeResult, error) {
	args := m.Called(ctx, opps)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.TradeResult), args.Error(1)
}

func (m *MockModule) MonitorPositions(ctx context.Context) ([]types.TradeResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.TradeResult), args.Error(1)
}

// quiet makes every step return nothing.
func (m *MockModule) quiet() *MockModule {
	m.On("AnalyzeOpportunities", mock.Anything).Return(nil, nil)
	m.On("MonitorPositions", mock.Anything).Return(nil, nil)
	return m
}

type memStore struct {
	mu            sync.Mutex
	opportunities map[string]int
	trades        map[string][]types.TradeResult
	cycles        []types.CycleResult
	params        map[string]map[string]any
	failCycles    bool
	// stallSaves makes opportunity and trade saves wait for their context.
	stallSaves bool
}

func newMemStore() *memStore {
	return &memStore{
		opportunities: make(map[string]int),
		trades:        make(map[string][]types.TradeResult),
		params:        make(map[string]map[string]any),
	}
}

func (s *memStore) stall(ctx context.Context) error {
	s.mu.Lock()
	stall := s.stallSaves
	s.mu.Unlock()
	if !stall {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *memStore) SaveOpportunity(ctx context.Context, name string, _ types.Opportunity) error {
	if err := s.stall(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opportunities[name]++
	return nil
}

func (s *memStore) SaveTradeResult(ctx context.Context, name string, res types.TradeResult, _ map[string]any) error {
	if err := s.stall(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[name] = append(s.trades[name], res)
	return nil
}

func (s *memStore) SaveCycleResult(_ context.Context, c types.CycleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCycles {
		return context.DeadlineExceeded
	}
	s.cycles = append(s.cycles, c)
	return nil
}

func (s *memStore) SaveOptimizationResult(context.Context, types.OptimizationRecord) error {
	return nil
}

func (s *memStore) GetRecentPerformanceData(context.Context, string, int) ([]types.PerformanceRecord, error) {
	return nil, nil
}

func (s *memStore) GetCurrentModuleParameters(_ context.Context, name string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params[name], nil
}

func (s *memStore) SaveModuleParameters(_ context.Context, name string, params map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[name] = params
	return nil
}

func (s *memStore) IsConnected() bool { return true }

type countingOptimizer struct {
	mu      sync.Mutex
	runs    int
	enabled bool
	onRun   func(n int)
}

func (c *countingOptimizer) RunOptimizationCycle(context.Context) types.OptimizationSummary {
	c.mu.Lock()
	c.runs++
	n := c.runs
	c.mu.Unlock()
	if c.onRun != nil {
		c.onRun(n)
	}
	return types.OptimizationSummary{}
}

func (c *countingOptimizer) Enable()       { c.enabled = true }
func (c *countingOptimizer) Disable()      { c.enabled = false }
func (c *countingOptimizer) Enabled() bool { return c.enabled }

func opportunity(symbol string, conf float64) types.Opportunity {
	return types.Opportunity{Symbol: symbol, Side: types.SideBuy, Quantity: 1, Price: 100, Confidence: conf, Strategy: "test"}
}
