// Package risk enforces the portfolio risk budget. The governor runs last
// and cannot be bypassed: a buy that would push open risk past the dynamic
// ceiling dies here no matter how strong the consensus was.
package risk

import (
	"fmt"

	"github.com/argusquant/argusd/internal/domain/trade"
)

// Config holds the risk budget parameters for one market variant.
type Config struct {
	Variant trade.MarketVariant `yaml:"variant"`

	// AssumedStopDistance prices the rejection message for buys that
	// arrive without a stop, as a fraction of entry price.
	AssumedStopDistance float64 `yaml:"assumed_stop_distance"`

	// NoStopNotionalRisk is the fraction of notional an open position
	// without a stop is assumed to risk.
	NoStopNotionalRisk float64 `yaml:"no_stop_notional_risk"`

	// Ceilings maps macro-score floors to the maximum total open risk in
	// R-units (percent of equity). Checked from the highest floor down.
	Ceilings []Ceiling `yaml:"ceilings"`
}

// Ceiling is one rung of the dynamic risk ladder.
type Ceiling struct {
	MacroAtLeast float64 `yaml:"macro_at_least"`
	MaxRiskR     float64 `yaml:"max_risk_r"`
}

// DefaultConfig returns the risk ladder for a market variant. The BIST
// ladder sits one notch tighter at every rung.
func DefaultConfig(variant trade.MarketVariant) Config {
	cfg := Config{
		Variant:             variant,
		AssumedStopDistance: 0.05,
		NoStopNotionalRisk:  0.10,
	}
	switch variant {
	case trade.VariantBist:
		cfg.Ceilings = []Ceiling{
			{MacroAtLeast: 75, MaxRiskR: 5.0},
			{MacroAtLeast: 60, MaxRiskR: 4.0},
			{MacroAtLeast: 45, MaxRiskR: 3.0},
			{MacroAtLeast: 30, MaxRiskR: 2.5},
			{MacroAtLeast: 0, MaxRiskR: 2.0},
		}
	default:
		cfg.Ceilings = []Ceiling{
			{MacroAtLeast: 75, MaxRiskR: 6.0},
			{MacroAtLeast: 60, MaxRiskR: 5.0},
			{MacroAtLeast: 45, MaxRiskR: 4.0},
			{MacroAtLeast: 30, MaxRiskR: 3.0},
			{MacroAtLeast: 0, MaxRiskR: 2.0},
		}
	}
	return cfg
}

// MaxRiskR returns the risk ceiling for a macro score.
func (c Config) MaxRiskR(macro float64) float64 {
	for _, rung := range c.Ceilings {
		if macro >= rung.MacroAtLeast {
			return rung.MaxRiskR
		}
	}
	return 0
}

// Order is the proposed trade the governor reviews.
type Order struct {
	Action     trade.Action
	Symbol     string
	EntryPrice float64
	Quantity   float64
	StopLoss   *float64
}

// Portfolio is the current account state.
type Portfolio struct {
	Equity     float64
	Positions  []trade.Position
	MacroScore float64
}

// Verdict is the governor's decision with the numbers behind it.
type Verdict struct {
	Approved     bool    `json:"approved"`
	Reason       string  `json:"reason,omitempty"`
	CurrentRiskR float64 `json:"current_risk_r"`
	DeltaRiskR   float64 `json:"delta_risk_r"`
	MaxRiskR     float64 `json:"max_risk_r"`
}

// Governor reviews orders against the risk budget.
type Governor struct {
	cfg Config
}

// NewGovernor builds a governor for the given configuration.
func NewGovernor(cfg Config) *Governor {
	return &Governor{cfg: cfg}
}

// Review decides whether the order fits the budget. Sells reduce risk and
// always pass. Buys need a stop-loss and headroom under the dynamic
// ceiling.
func (g *Governor) Review(order Order, pf Portfolio) Verdict {
	v := Verdict{
		CurrentRiskR: g.currentRiskR(pf),
		MaxRiskR:     g.cfg.MaxRiskR(pf.MacroScore),
	}

	if order.Action != trade.Buy {
		v.Approved = true
		v.Reason = "risk-reducing order"
		return v
	}

	if pf.Equity <= 0 {
		v.Reason = "no equity to risk against"
		return v
	}

	if order.StopLoss == nil {
		// Show what the trade would have cost if it carried a stop at the
		// assumed distance, so the rejection is actionable.
		assumedStop := order.EntryPrice * (1 - g.cfg.AssumedStopDistance)
		v.DeltaRiskR = riskR(order.EntryPrice, assumedStop, order.Quantity, pf.Equity)
		v.Reason = fmt.Sprintf("buy without stop-loss rejected (would add %.2fR at a %.0f%% stop)",
			v.DeltaRiskR, g.cfg.AssumedStopDistance*100)
		return v
	}

	v.DeltaRiskR = riskR(order.EntryPrice, *order.StopLoss, order.Quantity, pf.Equity)
	if v.CurrentRiskR+v.DeltaRiskR > v.MaxRiskR {
		v.Reason = fmt.Sprintf("risk budget exceeded: %.2fR open + %.2fR new > %.1fR ceiling (macro %.0f, shortfall %.1fR)",
			v.CurrentRiskR, v.DeltaRiskR, v.MaxRiskR, pf.MacroScore,
			v.CurrentRiskR+v.DeltaRiskR-v.MaxRiskR)
		return v
	}

	v.Approved = true
	v.Reason = fmt.Sprintf("within budget: %.2fR open + %.2fR new <= %.1fR ceiling",
		v.CurrentRiskR, v.DeltaRiskR, v.MaxRiskR)
	return v
}

// currentRiskR totals the open risk across the portfolio in R-units.
func (g *Governor) currentRiskR(pf Portfolio) float64 {
	if pf.Equity <= 0 {
		return 0
	}

	var total float64
	for _, pos := range pf.Positions {
		if !pos.Open {
			continue
		}
		var riskMoney float64
		if pos.StopLoss != nil {
			perShare := pos.EntryPrice - *pos.StopLoss
			if perShare < 0 {
				perShare = 0
			}
			riskMoney = perShare * pos.Quantity
		} else {
			riskMoney = pos.EntryPrice * pos.Quantity * g.cfg.NoStopNotionalRisk
		}
		total += riskMoney / pf.Equity * 100
	}
	return total
}

// riskR converts a stop distance into R-units (percent of equity).
func riskR(entry, stop, qty, equity float64) float64 {
	perShare := entry - stop
	if perShare < 0 {
		perShare = 0
	}
	return perShare * qty / equity * 100
}
