// Package trade holds the small shared vocabulary of the decision pipeline:
// actions, market variants and position state.
package trade

import "time"

// Action is what the pipeline ultimately recommends for a symbol.
type Action string

const (
	Buy  Action = "buy"
	Sell Action = "sell"
	Hold Action = "hold"
)

// MarketVariant selects the venue-specific threshold tables. The decision
// flow is identical across variants; only the numbers differ.
type MarketVariant string

const (
	VariantGlobal MarketVariant = "global"
	VariantBist   MarketVariant = "bist"
)

// Position is an open holding considered by the hold rules and the risk
// budget.
type Position struct {
	Symbol     string    `json:"symbol"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   float64   `json:"quantity"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	OpenedAt   time.Time `json:"opened_at"`
	Open       bool      `json:"open"`
}

// LastTrade records the most recent execution on a symbol, manual or
// automated. The anti-churn rules key off it.
type LastTrade struct {
	Action   Action    `json:"action"`
	At       time.Time `json:"at"`
	Manual   bool      `json:"manual"`
	HardStop bool      `json:"hard_stop"`
}
