// Package opinion converts raw module scores into directional opinions.
//
// Each analysis module reports a 0-100 score for a symbol. The builder maps
// those scores onto a direction (bullish / bearish / neutral) and a strength
// in [0,1] that already accounts for how trustworthy that class of
// information is and how much authority the module has been granted.
package opinion

import (
	"math"
)

// Module identifies an analysis module by the class of information it
// produces.
type Module string

const (
	ModuleTechnical   Module = "technical"
	ModuleFundamental Module = "fundamental"
	ModuleMacro       Module = "macro"
	ModuleNews        Module = "news"
	ModulePriceAction Module = "priceaction"
	ModuleSector      Module = "sector"
	ModuleFactor      Module = "factor"
	ModuleTiming      Module = "timing"
)

// AllModules is the canonical module order. Deterministic iteration order
// matters: weight blending and redistribution walk this slice.
var AllModules = []Module{
	ModuleTechnical,
	ModuleFundamental,
	ModuleMacro,
	ModuleNews,
	ModulePriceAction,
	ModuleSector,
	ModuleFactor,
	ModuleTiming,
}

// TechnicalFamily reports whether the module reads price structure directly.
// Technical-family objections carry veto power on the buy side.
func (m Module) TechnicalFamily() bool {
	return m == ModuleTechnical || m == ModulePriceAction
}

// Direction is the side of the market an opinion argues for.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// ModuleScore is one module's raw output for a single bar.
type ModuleScore struct {
	Module     Module   `json:"module"`
	Score      float64  `json:"score"`      // 0-100
	Confidence float64  `json:"confidence"` // 0-1, data confidence
	Authority  float64  `json:"authority"`  // operator-granted weight, 1.0 when unset; >1 boosts
	Evidence   []string `json:"evidence,omitempty"`
}

// Valid reports whether the score is usable. Non-finite or out-of-range
// scores are treated as if the module never reported.
func (s ModuleScore) Valid() bool {
	if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) {
		return false
	}
	return s.Score >= 0 && s.Score <= 100
}

// Opinion is a module's processed stance on the current bar.
type Opinion struct {
	Module    Module    `json:"module"`
	Score     float64   `json:"score"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"` // 0-1
	Evidence  []string  `json:"evidence,omitempty"`
}

// Config controls opinion thresholds.
type Config struct {
	// Aggressiveness in [0,1] shifts the buy/sell thresholds symmetrically
	// around the 60/40 defaults. 0.55 keeps the defaults.
	Aggressiveness float64 `yaml:"aggressiveness"`
}

// DefaultConfig returns the neutral-aggressiveness configuration.
func DefaultConfig() Config {
	return Config{Aggressiveness: 0.55}
}

const (
	baseBuyThreshold  = 60.0
	baseSellThreshold = 40.0
	aggressivenessRef = 0.55
	thresholdSpan     = 20.0
)

// BuyThreshold returns the score at or above which a module argues bullish.
func (c Config) BuyThreshold() float64 {
	return baseBuyThreshold - (c.Aggressiveness-aggressivenessRef)*thresholdSpan
}

// SellThreshold returns the score at or below which a module argues bearish.
func (c Config) SellThreshold() float64 {
	return baseSellThreshold + (c.Aggressiveness-aggressivenessRef)*thresholdSpan
}

// informationQuality discounts strength by how reliable each information
// class is. News is noisy; fundamentals are slow but dependable.
var informationQuality = map[Module]float64{
	ModuleFundamental: 1.00,
	ModuleMacro:       0.95,
	ModuleFactor:      0.90,
	ModuleTechnical:   0.85,
	ModuleSector:      0.80,
	ModulePriceAction: 0.75,
	ModuleTiming:      0.60,
	ModuleNews:        0.50,
}

const defaultInformationQuality = 0.70

// InformationQuality returns the reliability discount for a module class.
func InformationQuality(m Module) float64 {
	if q, ok := informationQuality[m]; ok {
		return q
	}
	return defaultInformationQuality
}

// Build converts module scores into opinions. Invalid scores are dropped.
// Input order is preserved; the input slice is never mutated.
func Build(scores []ModuleScore, cfg Config) []Opinion {
	buyAt := cfg.BuyThreshold()
	sellAt := cfg.SellThreshold()

	opinions := make([]Opinion, 0, len(scores))
	for _, s := range scores {
		if !s.Valid() {
			continue
		}

		dir := Neutral
		switch {
		case s.Score >= buyAt:
			dir = Bullish
		case s.Score <= sellAt:
			dir = Bearish
		}

		// An omitted or zero authority means "no adjustment", not "muted":
		// a zero multiplier here would silently strip the technical veto.
		authority := s.Authority
		if authority <= 0 {
			authority = 1.0
		}

		strength := math.Abs(s.Score-50.0) / 50.0
		strength *= InformationQuality(s.Module)
		strength *= authority
		strength = clamp01(strength)

		opinions = append(opinions, Opinion{
			Module:    s.Module,
			Score:     s.Score,
			Direction: dir,
			Strength:  strength,
			Evidence:  s.Evidence,
		})
	}
	return opinions
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
