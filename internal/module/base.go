package module

import (
	"context"
	"errors"
	"sync"
	"time"

	"conductor/internal/logger"
	"conductor/internal/pkg/circuit"
	"conductor/internal/ports"
	"conductor/internal/types"

	"github.com/shopspring/decimal"
)

// Deps are the collaborators a module is handed at construction.
type Deps struct {
	Persistence ports.Persistence
	Risk        ports.RiskChecker
	Orders      ports.OrderExecutor
}

const (
	defaultFillPollInterval = 2 * time.Second
	defaultFillPollAttempts = 5
	defaultSaveTimeout      = 5 * time.Second
)

// Base carries the runtime state shared by every module. Concrete modules
// embed it and add their Strategy methods.
type Base struct {
	name string
	deps Deps

	mu            sync.RWMutex
	enabled       bool
	cfg           Config
	openPositions int
	exposure      decimal.Decimal

	pollInterval time.Duration
	pollAttempts int
	saveTimeout  time.Duration
	nowFn        func() time.Time

	// saveGuard skips saves while the store keeps failing.
	saveGuard *circuit.CircuitBreaker
}

func NewBase(name string, cfg Config, deps Deps) *Base {
	return &Base{
		name:         name,
		deps:         deps,
		enabled:      true,
		cfg:          cfg.Clone(),
		exposure:     decimal.Zero,
		pollInterval: defaultFillPollInterval,
		pollAttempts: defaultFillPollAttempts,
		saveTimeout:  defaultSaveTimeout,
		nowFn:        time.Now,
		saveGuard:    circuit.NewCircuitBreaker("persistence:"+name, 3, time.Minute),
	}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

func (b *Base) SetEnabled(enabled bool) {
	b.mu.Lock()
	b.enabled = enabled
	b.mu.Unlock()
}

// Config returns a copy of the live configuration.
func (b *Base) Config() Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.Clone()
}

// UpdateConfig merges values into the live configuration. Invalid input
// leaves the configuration untouched.
func (b *Base) UpdateConfig(values map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Merge(values)
}

func (b *Base) Risk() ports.RiskChecker { return b.deps.Risk }

func (b *Base) Orders() ports.OrderExecutor { return b.deps.Orders }

func (b *Base) Exposure() (int, decimal.Decimal) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.openPositions, b.exposure
}

// SetFillPolling tunes how long ExecuteOpportunity waits for a fill.
func (b *Base) SetFillPolling(interval time.Duration, attempts int) {
	if interval < 0 {
		interval = 0
	}
	if attempts <= 0 {
		attempts = 1
	}
	b.mu.Lock()
	b.pollInterval = interval
	b.pollAttempts = attempts
	b.mu.Unlock()
}

// SetClock overrides the time source; used by tests.
func (b *Base) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	b.mu.Lock()
	b.nowFn = now
	b.mu.Unlock()
}

func (b *Base) now() time.Time {
	b.mu.RLock()
	fn := b.nowFn
	b.mu.RUnlock()
	return fn()
}

// SetSaveTimeout bounds each persistence call made by the save hooks.
func (b *Base) SetSaveTimeout(d time.Duration) {
	if d <= 0 {
		d = defaultSaveTimeout
	}
	b.mu.Lock()
	b.saveTimeout = d
	b.mu.Unlock()
}

// save runs fn detached from cancellation and bounded by the save timeout,
// so a stalled store costs the cycle at most that long.
func (b *Base) save(ctx context.Context, what string, fn func(ctx context.Context, p ports.Persistence) error) {
	if b.deps.Persistence == nil {
		return
	}
	b.mu.RLock()
	timeout := b.saveTimeout
	b.mu.RUnlock()
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	err := b.saveGuard.Do(func() error { return fn(sctx, b.deps.Persistence) })
	switch {
	case errors.Is(err, circuit.ErrOpen):
		logger.Debugf("module %s: skip saving %s: store guard open", b.name, what)
	case err != nil:
		logger.Warnf("module %s: save %s failed: %v", b.name, what, err)
	}
}

// SaveOpportunity persists opp. Failures are logged and never propagated.
func (b *Base) SaveOpportunity(ctx context.Context, opp types.Opportunity) {
	b.save(ctx, "opportunity "+opp.Symbol, func(ctx context.Context, p ports.Persistence) error {
		return p.SaveOpportunity(ctx, b.name, opp)
	})
}

// SaveTradeResult persists res with the parameters it was opened under.
// Results without a snapshot fall back to the live configuration.
func (b *Base) SaveTradeResult(ctx context.Context, res types.TradeResult) {
	params := res.Params
	if len(params) == 0 {
		params = b.Config().Flatten()
	}
	b.save(ctx, "trade result "+res.Symbol, func(ctx context.Context, p ports.Persistence) error {
		return p.SaveTradeResult(ctx, b.name, res, params)
	})
}

// TrackEntry records a newly opened position.
func (b *Base) TrackEntry(notional float64) {
	b.mu.Lock()
	b.openPositions++
	b.exposure = b.exposure.Add(decimal.NewFromFloat(notional))
	b.mu.Unlock()
}

// TrackExit releases a closed position. Exposure never goes negative.
func (b *Base) TrackExit(notional float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openPositions > 0 {
		b.openPositions--
	}
	b.exposure = b.exposure.Sub(decimal.NewFromFloat(notional))
	if b.exposure.IsNegative() || b.openPositions == 0 {
		b.exposure = decimal.Zero
	}
}
