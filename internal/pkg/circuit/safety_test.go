package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newSafety(t *testing.T) (*SafetyBreaker, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)}
	b := NewSafetyBreaker(DefaultSafetyConfig())
	b.SetClock(clk.now)
	return b, clk
}

func TestSafetyTripsOnTradeBurst(t *testing.T) {
	b, clk := newSafety(t)
	b.Record(5, 0)
	clk.advance(time.Minute)
	ok, _ := b.Check()
	require.True(t, ok)

	b.Record(3, 0)
	ok, reason := b.Check()
	assert.False(t, ok)
	assert.Contains(t, reason, "8 trades")
	assert.Equal(t, StateTripped, b.Status().State)
}

func TestSafetyTradeWindowSlides(t *testing.T) {
	b, clk := newSafety(t)
	b.Record(7, 0)
	clk.advance(6 * time.Minute)
	b.Record(7, 0)
	ok, _ := b.Check()
	assert.True(t, ok)
	assert.Equal(t, 7, b.Status().TradesInWindow)
}

func TestSafetyTripsOnLossAboveLimit(t *testing.T) {
	b, clk := newSafety(t)
	b.Record(0, 3000)
	clk.advance(5 * time.Minute)
	b.Record(0, 2000)
	ok, _ := b.Check()
	assert.True(t, ok, "exactly at the limit does not trip")

	b.Record(0, 0.01)
	ok, reason := b.Check()
	assert.False(t, ok)
	assert.Contains(t, reason, "5000.01")
}

func TestSafetyLossWindowSlides(t *testing.T) {
	b, clk := newSafety(t)
	b.Record(0, 4000)
	clk.advance(11 * time.Minute)
	b.Record(0, 4000)
	ok, _ := b.Check()
	assert.True(t, ok)
	assert.Equal(t, 4000.0, b.Status().LossInWindow)
}

func TestSafetyStaysTrippedUntilReset(t *testing.T) {
	b, clk := newSafety(t)
	b.Record(8, 0)
	clk.advance(time.Hour)
	ok, _ := b.Check()
	assert.False(t, ok, "windows emptied but the breaker is latched")

	b.Reset()
	ok, _ = b.Check()
	assert.True(t, ok)
	st := b.Status()
	assert.Zero(t, st.TradesInWindow)
	assert.Nil(t, st.TrippedAt)
}

func TestSafetyEmergencyStop(t *testing.T) {
	b, _ := newSafety(t)
	changes := make(chan SafetyState, 2)
	b.SetStateChangeHandler(func(_, to SafetyState, _ string) { changes <- to })

	b.TriggerEmergencyStop("operator")
	ok, reason := b.Check()
	assert.False(t, ok)
	assert.Equal(t, "emergency stop: operator", reason)
	assert.True(t, b.Status().EmergencyStop)
	assert.Equal(t, StateTripped, <-changes)

	b.Reset()
	assert.False(t, b.Active())
	assert.False(t, b.Status().EmergencyStop)
	assert.Equal(t, StateArmed, <-changes)
}

func TestSafetyPruneKeepsMemoryBounded(t *testing.T) {
	b, clk := newSafety(t)
	for i := 0; i < 1000; i++ {
		b.Record(0, 1)
		clk.advance(time.Minute)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	assert.LessOrEqual(t, len(b.losses), 10)
}
