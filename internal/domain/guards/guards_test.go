package guards

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argusquant/argusd/internal/domain/opinion"
	"github.com/argusquant/argusd/internal/domain/regime"
	"github.com/argusquant/argusd/internal/domain/trade"
)

var t0 = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

func buyInput(now time.Time) Input {
	return Input{
		Symbol:         "AAPL",
		Timeframe:      "15m",
		Action:         trade.Buy,
		Mode:           regime.ModePulse,
		Variant:        trade.VariantGlobal,
		BarClose:       now.Truncate(15 * time.Minute),
		Now:            now,
		ConsensusScore: 72,
		Scores: []opinion.ModuleScore{
			{Module: opinion.ModuleTechnical, Score: 72},
		},
	}
}

func TestHoldSkipsAllRules(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	in := buyInput(t0)
	in.Action = trade.Hold

	ev := e.EvaluateAll(in)
	assert.True(t, ev.Allowed)
	assert.Empty(t, ev.Results)
}

func TestAllRulesReportedIndependently(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	in := buyInput(t0)
	in.LastTrade = &trade.LastTrade{Action: trade.Sell, At: t0.Add(-2 * time.Minute), Manual: true}
	in.ConsensusScore = 60

	// First pass registers the fingerprint; cooldown, re-entry and manual
	// override all fire at once.
	ev := e.EvaluateAll(in)
	require.False(t, ev.Allowed)
	assert.ElementsMatch(t, []string{RuleCooldown, RuleReentry, RuleManualOverride}, ev.BlockedBy)
	assert.Len(t, ev.Results, 5)
	assert.True(t, ev.Results[RuleIdempotency].Passed)
	assert.True(t, ev.Results[RuleMinHold].Passed)

	// Second pass adds the duplicate block on top.
	ev = e.EvaluateAll(in)
	require.False(t, ev.Allowed)
	assert.Contains(t, ev.BlockedBy, RuleIdempotency)
}

func TestIdempotencyBlocksDuplicateBar(t *testing.T) {
	e := NewEvaluator(DefaultConfig())

	in := buyInput(t0)
	assert.True(t, e.EvaluateAll(in).Allowed)

	// Same bar re-evaluated a little later: duplicate.
	in.Now = t0.Add(30 * time.Second)
	ev := e.EvaluateAll(in)
	assert.False(t, ev.Allowed)
	assert.Equal(t, []string{RuleIdempotency}, ev.BlockedBy)

	// After the TTL the fingerprint re-registers.
	in.Now = t0.Add(16 * time.Minute)
	assert.True(t, e.EvaluateAll(in).Allowed)
}

func TestCooldownByModeAndVariant(t *testing.T) {
	tests := []struct {
		name    string
		mode    regime.Mode
		variant trade.MarketVariant
		since   time.Duration
		allowed bool
	}{
		{"pulse inside cooldown", regime.ModePulse, trade.VariantGlobal, 4 * time.Minute, false},
		{"pulse past cooldown", regime.ModePulse, trade.VariantGlobal, 5 * time.Minute, true},
		{"core inside cooldown", regime.ModeCore, trade.VariantGlobal, 30 * time.Minute, false},
		{"core past cooldown", regime.ModeCore, trade.VariantGlobal, 45 * time.Minute, true},
		{"bist overrides mode", regime.ModeCore, trade.VariantBist, 10 * time.Minute, false},
		{"bist past cooldown", regime.ModeCore, trade.VariantBist, 15 * time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvaluator(DefaultConfig())
			in := buyInput(t0)
			in.Mode = tt.mode
			in.Variant = tt.variant
			in.ConsensusScore = 90 // clear of re-entry hysteresis
			in.LastTrade = &trade.LastTrade{Action: trade.Buy, At: t0.Add(-tt.since)}

			ev := e.EvaluateAll(in)
			assert.Equal(t, tt.allowed, ev.Results[RuleCooldown].Passed)
		})
	}
}

func TestCooldownSilencesSellsToo(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	in := buyInput(t0)
	in.Action = trade.Sell
	in.Mode = regime.ModeCore
	in.LastTrade = &trade.LastTrade{Action: trade.Buy, At: t0.Add(-10 * time.Minute)}

	// The cooldown silences both sides of the book, not just buys.
	ev := e.EvaluateAll(in)
	assert.False(t, ev.Results[RuleCooldown].Passed)

	// A hard-stop exit is the only way out during the window.
	in.HardStop = true
	in.BarClose = in.BarClose.Add(15 * time.Minute)
	ev = e.EvaluateAll(in)
	assert.True(t, ev.Results[RuleCooldown].Passed)
}

func TestMinHoldBlocksEarlyCoreSell(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	in := buyInput(t0)
	in.Action = trade.Sell
	in.Mode = regime.ModeCore
	in.Position = &trade.Position{Symbol: "AAPL", Open: true, OpenedAt: t0.Add(-30 * time.Minute)}

	ev := e.EvaluateAll(in)
	assert.False(t, ev.Allowed)
	assert.Equal(t, []string{RuleMinHold}, ev.BlockedBy)

	// Hard stop exits bypass the hold.
	in.HardStop = true
	ev = e.EvaluateAll(in)
	assert.True(t, ev.Results[RuleMinHold].Passed)

	// Pulse mode never applies min-hold.
	in.HardStop = false
	in.Mode = regime.ModePulse
	ev = e.EvaluateAll(in)
	assert.True(t, ev.Results[RuleMinHold].Passed)

	// Past the minimum hold the sell clears.
	in.Mode = regime.ModeCore
	in.Position.OpenedAt = t0.Add(-2 * time.Hour)
	ev = e.EvaluateAll(in)
	assert.True(t, ev.Results[RuleMinHold].Passed)
}

func TestReentryHysteresis(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	in := buyInput(t0)
	in.LastTrade = &trade.LastTrade{Action: trade.Sell, At: t0.Add(-50 * time.Minute)}
	in.ConsensusScore = 70

	ev := e.EvaluateAll(in)
	assert.False(t, ev.Results[RuleReentry].Passed)

	// Stronger conviction clears the bar.
	in.ConsensusScore = 75
	in.Now = in.Now.Add(time.Minute) // avoid the duplicate-fingerprint block
	in.BarClose = in.BarClose.Add(15 * time.Minute)
	ev = e.EvaluateAll(in)
	assert.True(t, ev.Results[RuleReentry].Passed)

	// Outside the window the rule stands down.
	in.ConsensusScore = 70
	in.LastTrade.At = t0.Add(-2 * time.Hour)
	in.BarClose = in.BarClose.Add(15 * time.Minute)
	ev = e.EvaluateAll(in)
	assert.True(t, ev.Results[RuleReentry].Passed)
}

func TestManualOverrideDeference(t *testing.T) {
	e := NewEvaluator(DefaultConfig())
	in := buyInput(t0)
	in.LastTrade = &trade.LastTrade{Action: trade.Sell, At: t0.Add(-6 * time.Hour), Manual: true}
	in.ConsensusScore = 80

	ev := e.EvaluateAll(in)
	assert.False(t, ev.Results[RuleManualOverride].Passed)

	// High conviction overrides the deference.
	in.ConsensusScore = 85
	in.BarClose = in.BarClose.Add(15 * time.Minute)
	ev = e.EvaluateAll(in)
	assert.True(t, ev.Results[RuleManualOverride].Passed)

	// A day later the human signal has aged out.
	in.ConsensusScore = 80
	in.LastTrade.At = t0.Add(-25 * time.Hour)
	in.BarClose = in.BarClose.Add(15 * time.Minute)
	ev = e.EvaluateAll(in)
	assert.True(t, ev.Results[RuleManualOverride].Passed)

	// Automated sells never trigger deference.
	in.LastTrade = &trade.LastTrade{Action: trade.Sell, At: t0.Add(-6 * time.Hour), Manual: false}
	in.BarClose = in.BarClose.Add(15 * time.Minute)
	ev = e.EvaluateAll(in)
	assert.True(t, ev.Results[RuleManualOverride].Passed)
}
