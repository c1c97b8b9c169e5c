package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/argusquant/argusd/internal/domain/trade"
)

func ptr(v float64) *float64 { return &v }

func TestSellsAlwaysApproved(t *testing.T) {
	g := NewGovernor(DefaultConfig(trade.VariantGlobal))

	// Even a maxed-out book lets risk-reducing orders through.
	pf := Portfolio{
		Equity:     100_000,
		MacroScore: 10,
		Positions: []trade.Position{
			{Open: true, EntryPrice: 100, Quantity: 500, StopLoss: ptr(80)},
		},
	}
	v := g.Review(Order{Action: trade.Sell, Symbol: "AAPL"}, pf)
	assert.True(t, v.Approved)
}

func TestBuyWithoutStopRejected(t *testing.T) {
	g := NewGovernor(DefaultConfig(trade.VariantGlobal))
	pf := Portfolio{Equity: 100_000, MacroScore: 80}

	v := g.Review(Order{Action: trade.Buy, Symbol: "AAPL", EntryPrice: 200, Quantity: 100}, pf)
	assert.False(t, v.Approved)
	// Simulated at the assumed 5% stop: 200*0.05*100/100000*100 = 1R.
	assert.InDelta(t, 1.0, v.DeltaRiskR, 1e-9)
	assert.Contains(t, v.Reason, "without stop-loss")
}

func TestBuyWithinBudgetApproved(t *testing.T) {
	g := NewGovernor(DefaultConfig(trade.VariantGlobal))
	pf := Portfolio{Equity: 100_000, MacroScore: 80}

	// (200-190)*100/100000*100 = 1R against a 6R ceiling.
	v := g.Review(Order{Action: trade.Buy, EntryPrice: 200, Quantity: 100, StopLoss: ptr(190)}, pf)
	assert.True(t, v.Approved)
	assert.InDelta(t, 1.0, v.DeltaRiskR, 1e-9)
	assert.Equal(t, 6.0, v.MaxRiskR)
}

func TestBuyOverBudgetRejected(t *testing.T) {
	g := NewGovernor(DefaultConfig(trade.VariantGlobal))
	pf := Portfolio{
		Equity:     100_000,
		MacroScore: 20, // ceiling 2R
		Positions: []trade.Position{
			{Open: true, EntryPrice: 100, Quantity: 150, StopLoss: ptr(90)}, // 1.5R
		},
	}

	v := g.Review(Order{Action: trade.Buy, EntryPrice: 200, Quantity: 100, StopLoss: ptr(190)}, pf)
	assert.False(t, v.Approved)
	assert.InDelta(t, 1.5, v.CurrentRiskR, 1e-9)
	assert.InDelta(t, 1.0, v.DeltaRiskR, 1e-9)
	assert.Equal(t, 2.0, v.MaxRiskR)
	assert.Contains(t, v.Reason, "budget exceeded")
	// 1.5R + 1R against a 2R ceiling leaves the order 0.5R over.
	assert.Contains(t, v.Reason, "shortfall 0.5R")
}

func TestDynamicCeilingLadder(t *testing.T) {
	global := DefaultConfig(trade.VariantGlobal)
	tests := []struct {
		macro    float64
		expected float64
	}{
		{90, 6.0}, {75, 6.0}, {74.9, 5.0}, {60, 5.0},
		{50, 4.0}, {45, 4.0}, {40, 3.0}, {30, 3.0}, {10, 2.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, global.MaxRiskR(tt.macro), "macro %.1f", tt.macro)
	}

	// BIST runs one notch tighter.
	bist := DefaultConfig(trade.VariantBist)
	assert.Equal(t, 5.0, bist.MaxRiskR(90))
	assert.Equal(t, 2.5, bist.MaxRiskR(35))
}

func TestStoplessPositionsAssumeNotionalRisk(t *testing.T) {
	g := NewGovernor(DefaultConfig(trade.VariantGlobal))
	pf := Portfolio{
		Equity:     100_000,
		MacroScore: 80,
		Positions: []trade.Position{
			// 10% of 50*600 = 3000 -> 3R.
			{Open: true, EntryPrice: 50, Quantity: 600},
			// Closed positions are ignored.
			{Open: false, EntryPrice: 100, Quantity: 1000},
		},
	}

	v := g.Review(Order{Action: trade.Buy, EntryPrice: 200, Quantity: 100, StopLoss: ptr(190)}, pf)
	assert.InDelta(t, 3.0, v.CurrentRiskR, 1e-9)
	assert.True(t, v.Approved) // 3R + 1R <= 6R
}

func TestStopAboveEntryContributesNoRisk(t *testing.T) {
	g := NewGovernor(DefaultConfig(trade.VariantGlobal))
	pf := Portfolio{Equity: 100_000, MacroScore: 80}

	v := g.Review(Order{Action: trade.Buy, EntryPrice: 100, Quantity: 100, StopLoss: ptr(110)}, pf)
	assert.True(t, v.Approved)
	assert.Zero(t, v.DeltaRiskR)
}

func TestNoEquityRejectsBuys(t *testing.T) {
	g := NewGovernor(DefaultConfig(trade.VariantGlobal))
	v := g.Review(Order{Action: trade.Buy, EntryPrice: 100, Quantity: 10, StopLoss: ptr(95)}, Portfolio{})
	assert.False(t, v.Approved)
}
