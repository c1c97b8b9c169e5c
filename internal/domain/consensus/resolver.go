// Package consensus runs the single-claimant weighted debate.
//
// The most opinionated module makes the claim; every other module either
// supports it, objects to it, or abstains. Support and objection power are
// weight-scaled strength sums, and the claimant's score is pushed toward or
// away from the extreme accordingly.
package consensus

import (
	"math"

	"github.com/argusquant/argusd/internal/domain/opinion"
	"github.com/argusquant/argusd/internal/domain/regime"
)

// Stance is a module's position relative to the active claim.
type Stance string

const (
	Support Stance = "support"
	Object  Stance = "object"
	Abstain Stance = "abstain"
)

// Config tunes debate arithmetic.
type Config struct {
	// SupportImpact converts support power into score points.
	SupportImpact float64 `yaml:"support_impact"`
	// ObjectionImpact converts objection power into score points.
	ObjectionImpact float64 `yaml:"objection_impact"`
	// TechnicalAuthority scales the debate weight of technical-family
	// modules. 1.0 leaves the regime weights untouched.
	TechnicalAuthority float64 `yaml:"technical_authority"`
}

// DefaultConfig returns production debate tuning.
func DefaultConfig() Config {
	return Config{
		SupportImpact:      20,
		ObjectionImpact:    15,
		TechnicalAuthority: 1.0,
	}
}

// Participant records one module's stance in a resolved debate.
type Participant struct {
	Opinion opinion.Opinion `json:"opinion"`
	Stance  Stance          `json:"stance"`
	Weight  float64         `json:"weight"`
}

// Result is the outcome of a debate.
type Result struct {
	Claimant       *opinion.Opinion  `json:"claimant,omitempty"`
	Direction      opinion.Direction `json:"direction"`
	Participants   []Participant     `json:"participants"`
	SupportPower   float64           `json:"support_power"`
	ObjectionPower float64           `json:"objection_power"`
	Score          float64           `json:"score"` // clamped to [0,100]
}

// HasClaim reports whether any module made a directional claim.
func (r Result) HasClaim() bool {
	return r.Claimant != nil
}

// Resolve runs the debate over the given opinions with the regime weight
// vector. With no non-neutral opinion there is no claim and the zero-score
// result means Hold.
func Resolve(opinions []opinion.Opinion, weights regime.WeightVector, cfg Config) Result {
	claimant := pickClaimant(opinions)
	if claimant == nil {
		return Result{Direction: opinion.Neutral, Score: 50}
	}

	res := Result{
		Claimant:  claimant,
		Direction: claimant.Direction,
	}

	for _, op := range opinions {
		if op.Module == claimant.Module {
			continue
		}

		w := weights[op.Module]
		if op.Module.TechnicalFamily() && cfg.TechnicalAuthority > 0 {
			w *= cfg.TechnicalAuthority
		}

		stance := stanceFor(op.Direction, claimant.Direction)
		res.Participants = append(res.Participants, Participant{
			Opinion: op,
			Stance:  stance,
			Weight:  w,
		})

		switch stance {
		case Support:
			res.SupportPower += op.Strength * w
		case Object:
			res.ObjectionPower += op.Strength * w
		}
	}

	dir := 1.0
	if claimant.Direction == opinion.Bearish {
		dir = -1.0
	}

	score := claimant.Score +
		res.SupportPower*cfg.SupportImpact*dir -
		res.ObjectionPower*cfg.ObjectionImpact*dir
	res.Score = math.Min(100, math.Max(0, score))

	return res
}

// pickClaimant returns the opinion with the greatest conviction, measured
// as distance from the 50 midpoint. Ties keep the earlier opinion, so
// identical inputs always elect the same claimant.
func pickClaimant(opinions []opinion.Opinion) *opinion.Opinion {
	var best *opinion.Opinion
	bestDist := -1.0
	for i := range opinions {
		op := &opinions[i]
		if op.Direction == opinion.Neutral {
			continue
		}
		if dist := math.Abs(op.Score - 50); dist > bestDist {
			best = op
			bestDist = dist
		}
	}
	return best
}

func stanceFor(dir, claim opinion.Direction) Stance {
	if dir == opinion.Neutral {
		return Abstain
	}
	if dir == claim {
		return Support
	}
	return Object
}
