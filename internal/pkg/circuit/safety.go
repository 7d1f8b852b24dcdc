package circuit

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"conductor/internal/logger"

	"github.com/shopspring/decimal"
)

// SafetyState is armed while trading is allowed and tripped once a limit
// has been hit. Only Reset re-arms it.
type SafetyState string

const (
	StateArmed   SafetyState = "armed"
	StateTripped SafetyState = "tripped"
)

type SafetyConfig struct {
	MaxTrades   int
	TradeWindow time.Duration
	MaxLoss     float64
	LossWindow  time.Duration
}

func DefaultSafetyConfig() SafetyConfig {
	return SafetyConfig{
		MaxTrades:   8,
		TradeWindow: 5 * time.Minute,
		MaxLoss:     5000,
		LossWindow:  10 * time.Minute,
	}
}

type tradeEvent struct {
	at    time.Time
	count int
}

type lossEvent struct {
	at     time.Time
	amount decimal.Decimal
}

// SafetyStatus is a point-in-time view of the breaker.
type SafetyStatus struct {
	State          SafetyState   `json:"state"`
	Active         bool          `json:"active"`
	EmergencyStop  bool          `json:"emergency_stop"`
	Reason         string        `json:"reason,omitempty"`
	TrippedAt      *time.Time    `json:"tripped_at,omitempty"`
	TradesInWindow int           `json:"trades_in_window"`
	LossInWindow   float64       `json:"loss_in_window"`
	MaxTrades      int           `json:"max_trades"`
	MaxLoss        float64       `json:"max_loss"`
	TradeWindow    time.Duration `json:"trade_window"`
	LossWindow     time.Duration `json:"loss_window"`
}

// SafetyBreaker trips on a burst of trades or losses inside sliding
// windows, or on a manual emergency stop. Windows are pruned on access so
// memory stays proportional to recent activity.
type SafetyBreaker struct {
	cfg     SafetyConfig
	maxLoss decimal.Decimal

	mu        sync.Mutex
	state     SafetyState
	reason    string
	trippedAt time.Time
	emergency bool
	trades    []tradeEvent
	losses    []lossEvent
	nowFn     func() time.Time
	onChange  func(from, to SafetyState, reason string)
}

func NewSafetyBreaker(cfg SafetyConfig) *SafetyBreaker {
	def := DefaultSafetyConfig()
	if cfg.MaxTrades <= 0 {
		cfg.MaxTrades = def.MaxTrades
	}
	if cfg.TradeWindow <= 0 {
		cfg.TradeWindow = def.TradeWindow
	}
	if cfg.MaxLoss <= 0 {
		cfg.MaxLoss = def.MaxLoss
	}
	if cfg.LossWindow <= 0 {
		cfg.LossWindow = def.LossWindow
	}
	return &SafetyBreaker{
		cfg:     cfg,
		maxLoss: decimal.NewFromFloat(cfg.MaxLoss),
		state:   StateArmed,
		nowFn:   time.Now,
	}
}

// SetClock overrides the time source; used by tests.
func (b *SafetyBreaker) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	b.mu.Lock()
	b.nowFn = now
	b.mu.Unlock()
}

// SetStateChangeHandler registers a callback run on every armed/tripped
// transition. It is invoked on its own goroutine.
func (b *SafetyBreaker) SetStateChangeHandler(fn func(from, to SafetyState, reason string)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Check reports whether trading may proceed. When it may not, reason says why.
func (b *SafetyBreaker) Check() (bool, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evaluate(b.nowFn())
	if b.state == StateTripped {
		return false, b.reason
	}
	return true, ""
}

// Record adds a cycle's trade count and estimated loss to the windows.
func (b *SafetyBreaker) Record(trades int, loss float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.nowFn()
	if trades > 0 {
		b.trades = append(b.trades, tradeEvent{at: now, count: trades})
	}
	if loss > 0 {
		b.losses = append(b.losses, lossEvent{at: now, amount: decimal.NewFromFloat(loss)})
	}
	b.evaluate(now)
}

// TriggerEmergencyStop trips the breaker until Reset.
func (b *SafetyBreaker) TriggerEmergencyStop(reason string) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "manual"
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emergency = true
	b.trip(b.nowFn(), "emergency stop: "+reason)
}

// Reset re-arms the breaker and clears both windows and the manual flag.
func (b *SafetyBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.emergency = false
	b.trades = nil
	b.losses = nil
	b.reason = ""
	b.trippedAt = time.Time{}
	b.setState(StateArmed, "reset")
}

func (b *SafetyBreaker) Active() bool {
	ok, _ := b.Check()
	return !ok
}

func (b *SafetyBreaker) Status() SafetyStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.nowFn()
	b.evaluate(now)
	st := SafetyStatus{
		State:          b.state,
		Active:         b.state == StateTripped,
		EmergencyStop:  b.emergency,
		Reason:         b.reason,
		TradesInWindow: b.tradeCount(),
		LossInWindow:   b.lossSum().InexactFloat64(),
		MaxTrades:      b.cfg.MaxTrades,
		MaxLoss:        b.cfg.MaxLoss,
		TradeWindow:    b.cfg.TradeWindow,
		LossWindow:     b.cfg.LossWindow,
	}
	if !b.trippedAt.IsZero() {
		at := b.trippedAt
		st.TrippedAt = &at
	}
	return st
}

func (b *SafetyBreaker) evaluate(now time.Time) {
	b.prune(now)
	if b.state == StateTripped {
		return
	}
	if b.emergency {
		b.trip(now, "emergency stop")
		return
	}
	if n := b.tradeCount(); n >= b.cfg.MaxTrades {
		b.trip(now, fmt.Sprintf("%d trades in %s (max %d)", n, b.cfg.TradeWindow, b.cfg.MaxTrades))
		return
	}
	if loss := b.lossSum(); loss.GreaterThan(b.maxLoss) {
		b.trip(now, fmt.Sprintf("loss %s in %s exceeds %s", loss.StringFixed(2), b.cfg.LossWindow, b.maxLoss.StringFixed(2)))
	}
}

func (b *SafetyBreaker) prune(now time.Time) {
	tradeCut := now.Add(-b.cfg.TradeWindow)
	i := 0
	for i < len(b.trades) && !b.trades[i].at.After(tradeCut) {
		i++
	}
	if i > 0 {
		b.trades = append(b.trades[:0], b.trades[i:]...)
	}
	lossCut := now.Add(-b.cfg.LossWindow)
	j := 0
	for j < len(b.losses) && !b.losses[j].at.After(lossCut) {
		j++
	}
	if j > 0 {
		b.losses = append(b.losses[:0], b.losses[j:]...)
	}
}

func (b *SafetyBreaker) tradeCount() int {
	n := 0
	for _, ev := range b.trades {
		n += ev.count
	}
	return n
}

func (b *SafetyBreaker) lossSum() decimal.Decimal {
	sum := decimal.Zero
	for _, ev := range b.losses {
		sum = sum.Add(ev.amount)
	}
	return sum
}

func (b *SafetyBreaker) trip(now time.Time, reason string) {
	if b.state == StateTripped {
		if b.emergency && !strings.HasPrefix(b.reason, "emergency stop") {
			b.reason = reason
		}
		return
	}
	b.reason = reason
	b.trippedAt = now
	b.setState(StateTripped, reason)
}

func (b *SafetyBreaker) setState(to SafetyState, reason string) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == StateTripped {
		logger.Warnf("safety breaker tripped: %s", reason)
	} else {
		logger.Infof("safety breaker re-armed")
	}
	if b.onChange != nil {
		go b.onChange(from, to, reason)
	}
}
