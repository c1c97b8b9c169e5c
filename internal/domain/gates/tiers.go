// Package gates turns a debate result into a sized, tiered resolution.
//
// Conviction bands map the consensus score onto position-size fractions;
// data quality caps how high a tier the gate will hand out; technical-family
// objections can veto buys outright. Every check the gate ran is reported,
// passed or not, so a rejection is always explainable.
package gates

import (
	"fmt"

	"github.com/argusquant/argusd/internal/domain/consensus"
	"github.com/argusquant/argusd/internal/domain/opinion"
	"github.com/argusquant/argusd/internal/domain/trade"
)

// Tier is the conviction band a resolution lands in.
type Tier string

const (
	TierHighConviction Tier = "high_conviction"
	TierStandard       Tier = "standard"
	TierSpeculative    Tier = "speculative"
	TierNone           Tier = "none"
)

// Size returns the position-size fraction a tier grants.
func (t Tier) Size() float64 {
	switch t {
	case TierHighConviction:
		return 1.0
	case TierStandard:
		return 0.5
	case TierSpeculative:
		return 0.25
	default:
		return 0
	}
}

// Config holds the gate thresholds.
type Config struct {
	HighConvictionAt float64 `yaml:"high_conviction_at"`
	StandardAt       float64 `yaml:"standard_at"`
	SpeculativeAt    float64 `yaml:"speculative_at"`

	QualityMinimum        float64 `yaml:"quality_minimum"`
	QualityStandard       float64 `yaml:"quality_standard"`
	QualityHighConviction float64 `yaml:"quality_high_conviction"`

	StrongTechObjection float64 `yaml:"strong_tech_objection"`
	WeakTechObjection   float64 `yaml:"weak_tech_objection"`
	ObjectionSizeCapAt  float64 `yaml:"objection_size_cap_at"`
}

// DefaultConfig returns the production gate thresholds.
func DefaultConfig() Config {
	return Config{
		HighConvictionAt:      85,
		StandardAt:            70,
		SpeculativeAt:         60,
		QualityMinimum:        0.40,
		QualityStandard:       0.50,
		QualityHighConviction: 0.80,
		StrongTechObjection:   0.60,
		WeakTechObjection:     0.40,
		ObjectionSizeCapAt:    0.50,
	}
}

// Check records one gate evaluation with its threshold, in pass/fail form.
type Check struct {
	Name      string  `json:"name"`
	Passed    bool    `json:"passed"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Detail    string  `json:"detail,omitempty"`
}

// Resolution is the gate's verdict on a debate result.
type Resolution struct {
	Action     trade.Action `json:"action"`
	Approved   bool         `json:"approved"`
	Tier       Tier         `json:"tier"`
	Size       float64      `json:"size"`
	Downgraded bool         `json:"downgraded"`
	Vetoed     bool         `json:"vetoed"`
	VetoReason string       `json:"veto_reason,omitempty"`
	Rationale  string       `json:"rationale"`
	Checks     []Check      `json:"checks"`
}

// Resolve applies quality gates, conviction bands and the technical veto to
// a debate result.
func Resolve(res consensus.Result, quality float64, cfg Config) Resolution {
	out := Resolution{Action: trade.Hold, Tier: TierNone}

	if !res.HasClaim() {
		out.Rationale = "no module made a directional claim"
		return out
	}

	claimIsBuy := res.Direction == opinion.Bullish

	// Directional strength: a sell claim is strong when the score is low.
	s := res.Score
	if !claimIsBuy {
		s = 100 - res.Score
	}

	qualityCheck := Check{
		Name:      "quality_floor",
		Passed:    quality >= cfg.QualityMinimum,
		Value:     quality,
		Threshold: cfg.QualityMinimum,
	}
	out.Checks = append(out.Checks, qualityCheck)
	if !qualityCheck.Passed {
		out.Rationale = fmt.Sprintf("rejected: data quality %.0f%% below floor", quality*100)
		return out
	}

	band := bandFor(s, cfg)
	out.Checks = append(out.Checks, Check{
		Name:      "strength_band",
		Passed:    band != TierNone,
		Value:     s,
		Threshold: cfg.SpeculativeAt,
		Detail:    string(band),
	})
	if band == TierNone {
		out.Rationale = fmt.Sprintf("rejected: directional strength %.1f below speculative band", s)
		return out
	}

	capTier := qualityCap(quality, cfg)
	tier := band
	if tierRank(tier) < tierRank(capTier) {
		tier = capTier
		out.Downgraded = true
	}
	out.Checks = append(out.Checks, Check{
		Name:      "quality_cap",
		Passed:    !out.Downgraded,
		Value:     quality,
		Threshold: cfg.QualityHighConviction,
		Detail:    string(capTier),
	})

	out.Tier = tier
	out.Size = tier.Size()

	var sizeNote string
	if claimIsBuy {
		vetoed := false
		vetoed, sizeNote = applyTechnicalObjections(&out, res, cfg)
		if vetoed {
			return out
		}
		out.Action = trade.Buy
	} else {
		out.Action = trade.Sell
	}

	out.Approved = true
	switch {
	case out.Downgraded:
		out.Rationale = fmt.Sprintf("%s approved at %s (downgraded from %s on data quality)", out.Action, tier, band)
	default:
		out.Rationale = fmt.Sprintf("%s approved at %s", out.Action, tier)
	}
	if sizeNote != "" {
		out.Rationale += "; " + sizeNote
	}
	return out
}

// applyTechnicalObjections enforces the buy-side veto and the size
// reductions. Returns whether the buy is vetoed outright, plus a note when
// the size was reduced.
func applyTechnicalObjections(out *Resolution, res consensus.Result, cfg Config) (bool, string) {
	var strongest float64
	var strongestModule opinion.Module
	var weakObjector opinion.Module
	for _, p := range res.Participants {
		if p.Stance != consensus.Object || !p.Opinion.Module.TechnicalFamily() {
			continue
		}
		if p.Opinion.Strength > strongest {
			strongest = p.Opinion.Strength
			strongestModule = p.Opinion.Module
		}
		if p.Opinion.Strength > cfg.WeakTechObjection && p.Opinion.Strength <= cfg.StrongTechObjection {
			weakObjector = p.Opinion.Module
		}
	}

	vetoCheck := Check{
		Name:      "technical_veto",
		Passed:    strongest <= cfg.StrongTechObjection,
		Value:     strongest,
		Threshold: cfg.StrongTechObjection,
	}
	out.Checks = append(out.Checks, vetoCheck)
	if !vetoCheck.Passed {
		out.Action = trade.Hold
		out.Approved = false
		out.Vetoed = true
		out.Size = 0
		out.VetoReason = fmt.Sprintf("technical veto by %s (strength %.2f)", strongestModule, strongest)
		out.Rationale = "buy vetoed: " + out.VetoReason
		return true, ""
	}

	var note string
	if weakObjector != "" {
		out.Size /= 2
		note = fmt.Sprintf("size halved on weak technical objection by %s", weakObjector)
	}

	pressureCheck := Check{
		Name:      "objection_pressure",
		Passed:    res.ObjectionPower < cfg.ObjectionSizeCapAt,
		Value:     res.ObjectionPower,
		Threshold: cfg.ObjectionSizeCapAt,
	}
	out.Checks = append(out.Checks, pressureCheck)
	if !pressureCheck.Passed && out.Size > cfg.ObjectionSizeCapAt {
		out.Size = cfg.ObjectionSizeCapAt
		if note == "" {
			note = "size capped on aggregate objection pressure"
		}
	}

	return false, note
}

func bandFor(s float64, cfg Config) Tier {
	switch {
	case s >= cfg.HighConvictionAt:
		return TierHighConviction
	case s >= cfg.StandardAt:
		return TierStandard
	case s >= cfg.SpeculativeAt:
		return TierSpeculative
	default:
		return TierNone
	}
}

func qualityCap(q float64, cfg Config) Tier {
	switch {
	case q >= cfg.QualityHighConviction:
		return TierHighConviction
	case q >= cfg.QualityStandard:
		return TierStandard
	default:
		return TierSpeculative
	}
}

// tierRank orders tiers from strongest to weakest.
func tierRank(t Tier) int {
	switch t {
	case TierHighConviction:
		return 0
	case TierStandard:
		return 1
	case TierSpeculative:
		return 2
	default:
		return 3
	}
}
