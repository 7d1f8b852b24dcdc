package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTradeResultSuccessImpliesPassed(t *testing.T) {
	results := []TradeResult{
		{Status: TradeStatusExecuted},
		{Status: TradeStatusExecuted, PnL: Float(50)},
		{Status: TradeStatusExecuted, PnL: Float(0)},
		{Status: TradeStatusExecuted, PnL: Float(-10)},
		{Status: TradeStatusFailed, PnL: Float(50)},
		{Status: TradeStatusPending},
		{Status: TradeStatusCancelled},
	}
	for _, r := range results {
		if r.Success() {
			assert.True(t, r.Passed(), "%+v", r)
		}
		if r.PnL == nil {
			assert.False(t, r.Success(), "%+v", r)
		}
	}
	assert.True(t, results[1].Success())
	assert.False(t, results[2].Success())
	assert.True(t, results[2].Unprofitable())
	assert.False(t, results[0].Unprofitable(), "entries are neither profitable nor unprofitable")
}

func TestOpportunityValidate(t *testing.T) {
	opp := Opportunity{Symbol: "AAPL", Side: SideBuy, Quantity: 10, Confidence: 0.9}
	assert.NoError(t, opp.Validate())

	opp.Confidence = 1.2
	assert.Error(t, opp.Validate())
	opp.Confidence = -0.1
	assert.Error(t, opp.Validate())

	opp.Confidence = 0.5
	opp.Side = "hold"
	assert.Error(t, opp.Validate())
}

func TestOpportunityWithFilledQuantityCopies(t *testing.T) {
	opp := Opportunity{Symbol: "BTC", Side: SideBuy, Quantity: 2, Price: 100, Metadata: map[string]any{"k": 1}}
	filled := opp.WithFilledQuantity(1.5)
	filled.Metadata["k"] = 2

	assert.Equal(t, 2.0, opp.Quantity)
	assert.Equal(t, 1, opp.Metadata["k"])
	assert.Equal(t, 150.0, filled.Notional())
}

func TestModuleResultTally(t *testing.T) {
	var res ModuleResult
	res.Tally([]TradeResult{
		{Status: TradeStatusExecuted},
		FailedTrade(Opportunity{Symbol: "X"}, errors.New("rejected")),
		{Status: TradeStatusExecuted, IsExit: true, PnL: Float(50)},
		{Status: TradeStatusExecuted, IsExit: true, PnL: Float(-20)},
	})
	assert.Equal(t, 4, res.TradesCount)
	assert.Equal(t, 3, res.TradesPassed)
	assert.Equal(t, 1, res.SuccessfulTrades)
	assert.Equal(t, 1, res.FailedTrades)
	assert.Equal(t, 1, res.UnprofitableTrades)
	assert.InDelta(t, 30, res.RealizedPnL, 1e-9)
	assert.LessOrEqual(t, res.SuccessfulTrades, res.TradesPassed)
	assert.LessOrEqual(t, res.TradesPassed, res.TradesCount)
}

func TestModuleHealthBoundedMessages(t *testing.T) {
	h := NewModuleHealth(fixedNow)
	for i := 0; i < 15; i++ {
		h.Apply(HealthError, "boom", fixedNow)
	}
	assert.Equal(t, 15, h.ErrorCount)
	assert.Len(t, h.RecentErrors, maxHealthMessages)
	assert.False(t, h.Runnable())
}

func TestPerformanceRecordOutcome(t *testing.T) {
	assert.Equal(t, 12.5, PerformanceRecord{ProfitLoss: 12.5}.Outcome())
	assert.Equal(t, 1.0, PerformanceRecord{Success: true}.Outcome())
	assert.Equal(t, -1.0, PerformanceRecord{}.Outcome())
}

var fixedNow = mustTime("2026-10-19T10:00:00Z")
