// Package regime classifies market conditions and selects the module weight
// vector the consensus debate runs with.
package regime

// Regime is the detected market state.
type Regime string

const (
	Trend     Regime = "trend"
	Chop      Regime = "chop"
	RiskOff   Regime = "risk_off"
	NewsShock Regime = "news_shock"
	Neutral   Regime = "neutral"
)

// Mode distinguishes intraday (pulse) from positional (core) evaluation.
// Weight tables, cooldowns and hold rules all key off it.
type Mode string

const (
	ModePulse Mode = "pulse"
	ModeCore  Mode = "core"
)

// Inputs carries the indicator readings the detector classifies on.
// News is optional; NewsAvailable gates the shock check.
type Inputs struct {
	Macro         float64 `json:"macro"`      // 0-100 macro health
	Volatility    float64 `json:"volatility"` // VIX-like level
	News          float64 `json:"news"`       // 0-100 news intensity
	NewsAvailable bool    `json:"news_available"`
	Technical     float64 `json:"technical"` // 0-100 trend score
	Chop          float64 `json:"chop"`      // 0-100 choppiness
}

// Thresholds controls regime classification boundaries.
type Thresholds struct {
	RiskOffMacroBelow float64 `yaml:"risk_off_macro_below"`
	RiskOffVolAbove   float64 `yaml:"risk_off_vol_above"`
	NewsShockAt       float64 `yaml:"news_shock_at"`
	TrendTechnicalAt  float64 `yaml:"trend_technical_at"`
	TrendChopBelow    float64 `yaml:"trend_chop_below"`
	ChopAbove         float64 `yaml:"chop_above"`
}

// DefaultThresholds returns the production classification boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RiskOffMacroBelow: 30,
		RiskOffVolAbove:   25,
		NewsShockAt:       75,
		TrendTechnicalAt:  60,
		TrendChopBelow:    45,
		ChopAbove:         60,
	}
}

// Detect classifies the current bar. The checks run in strict priority
// order; the first match wins. Safety states outrank opportunity states:
// a risk-off macro backdrop is risk-off even if the chart trends.
func Detect(in Inputs, t Thresholds) Regime {
	if in.Macro < t.RiskOffMacroBelow || in.Volatility > t.RiskOffVolAbove {
		return RiskOff
	}
	if in.NewsAvailable && in.News >= t.NewsShockAt {
		return NewsShock
	}
	if in.Technical >= t.TrendTechnicalAt && in.Chop < t.TrendChopBelow {
		return Trend
	}
	if in.Chop > t.ChopAbove ||
		(in.Technical > 40 && in.Technical < t.TrendTechnicalAt) {
		return Chop
	}
	return Neutral
}
