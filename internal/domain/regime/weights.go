package regime

import (
	"fmt"
	"math"

	"github.com/argusquant/argusd/internal/domain/opinion"
)

// WeightVector maps modules to debate weights. A selected vector sums to
// 1.0 within SumTolerance over the modules that reported.
type WeightVector map[opinion.Module]float64

// SumTolerance is the acceptable drift from 1.0 after normalization.
const SumTolerance = 1e-9

// Sum returns the total weight in the vector.
func (w WeightVector) Sum() float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

// Clone returns an independent copy.
func (w WeightVector) Clone() WeightVector {
	out := make(WeightVector, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Validate checks non-negativity and the unit-sum invariant.
func (w WeightVector) Validate() error {
	for m, v := range w {
		if v < 0 {
			return fmt.Errorf("weight for %s is negative: %f", m, v)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight for %s is not finite", m)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > SumTolerance {
		return fmt.Errorf("weights sum to %.12f, want 1.0", sum)
	}
	return nil
}

// baseTables holds the static per-regime weight presets. Each table covers
// all eight modules and sums to 1.0 before redistribution.
var baseTables = map[Regime]map[Mode]WeightVector{
	Neutral: {
		ModeCore: {
			opinion.ModuleFundamental: 0.25, opinion.ModuleTechnical: 0.15,
			opinion.ModuleMacro: 0.20, opinion.ModuleSector: 0.15,
			opinion.ModulePriceAction: 0.05, opinion.ModuleNews: 0.05,
			opinion.ModuleFactor: 0.15, opinion.ModuleTiming: 0.00,
		},
		ModePulse: {
			opinion.ModuleFundamental: 0.05, opinion.ModuleTechnical: 0.25,
			opinion.ModuleMacro: 0.10, opinion.ModuleSector: 0.10,
			opinion.ModulePriceAction: 0.15, opinion.ModuleNews: 0.20,
			opinion.ModuleFactor: 0.05, opinion.ModuleTiming: 0.10,
		},
	},
	Trend: {
		ModeCore: {
			opinion.ModuleFundamental: 0.20, opinion.ModuleTechnical: 0.25,
			opinion.ModuleMacro: 0.10, opinion.ModuleSector: 0.15,
			opinion.ModulePriceAction: 0.20, opinion.ModuleNews: 0.05,
			opinion.ModuleFactor: 0.05, opinion.ModuleTiming: 0.00,
		},
		ModePulse: {
			opinion.ModuleFundamental: 0.00, opinion.ModuleTechnical: 0.35,
			opinion.ModuleMacro: 0.05, opinion.ModuleSector: 0.05,
			opinion.ModulePriceAction: 0.35, opinion.ModuleNews: 0.10,
			opinion.ModuleFactor: 0.00, opinion.ModuleTiming: 0.10,
		},
	},
	Chop: {
		ModeCore: {
			opinion.ModuleFundamental: 0.30, opinion.ModuleTechnical: 0.10,
			opinion.ModuleMacro: 0.20, opinion.ModuleSector: 0.20,
			opinion.ModulePriceAction: 0.05, opinion.ModuleNews: 0.05,
			opinion.ModuleFactor: 0.10, opinion.ModuleTiming: 0.00,
		},
		ModePulse: {
			opinion.ModuleFundamental: 0.10, opinion.ModuleTechnical: 0.10,
			opinion.ModuleMacro: 0.20, opinion.ModuleSector: 0.15,
			opinion.ModulePriceAction: 0.10, opinion.ModuleNews: 0.10,
			opinion.ModuleFactor: 0.10, opinion.ModuleTiming: 0.15,
		},
	},
	RiskOff: {
		ModeCore: {
			opinion.ModuleFundamental: 0.35, opinion.ModuleTechnical: 0.05,
			opinion.ModuleMacro: 0.30, opinion.ModuleSector: 0.15,
			opinion.ModulePriceAction: 0.00, opinion.ModuleNews: 0.00,
			opinion.ModuleFactor: 0.15, opinion.ModuleTiming: 0.00,
		},
		ModePulse: {
			opinion.ModuleFundamental: 0.20, opinion.ModuleTechnical: 0.05,
			opinion.ModuleMacro: 0.40, opinion.ModuleSector: 0.15,
			opinion.ModulePriceAction: 0.05, opinion.ModuleNews: 0.05,
			opinion.ModuleFactor: 0.10, opinion.ModuleTiming: 0.00,
		},
	},
	NewsShock: {
		ModeCore: {
			opinion.ModuleFundamental: 0.20, opinion.ModuleTechnical: 0.10,
			opinion.ModuleMacro: 0.15, opinion.ModuleSector: 0.10,
			opinion.ModulePriceAction: 0.05, opinion.ModuleNews: 0.30,
			opinion.ModuleFactor: 0.10, opinion.ModuleTiming: 0.00,
		},
		ModePulse: {
			opinion.ModuleFundamental: 0.00, opinion.ModuleTechnical: 0.10,
			opinion.ModuleMacro: 0.10, opinion.ModuleSector: 0.05,
			opinion.ModulePriceAction: 0.05, opinion.ModuleNews: 0.50,
			opinion.ModuleFactor: 0.00, opinion.ModuleTiming: 0.10,
		},
	},
}

// BaseWeights returns a copy of the static preset for a regime and mode.
func BaseWeights(r Regime, m Mode) WeightVector {
	table, ok := baseTables[r]
	if !ok {
		table = baseTables[Neutral]
	}
	preset, ok := table[m]
	if !ok {
		preset = table[ModeCore]
	}
	return preset.Clone()
}

// anchors receive the weight of absent modules. Slow, broad information
// classes absorb what the missing module would have said.
var anchors = []opinion.Module{
	opinion.ModuleMacro,
	opinion.ModuleFundamental,
	opinion.ModuleTechnical,
}

// Selector blends static presets with an optional learned override and
// adapts the result to the set of modules that actually reported.
type Selector struct {
	Blend float64 // learned-override blend factor in [0,1]
}

// NewSelector returns a selector with the default 50/50 blend.
func NewSelector() *Selector {
	return &Selector{Blend: 0.5}
}

// Select produces the final weight vector for a bar.
//
// Steps: static preset, optional learned blend, absent-module
// redistribution onto the macro/fundamental/technical anchors, then
// normalization to 1.0 over present modules.
func (s *Selector) Select(r Regime, m Mode, learned WeightVector, present map[opinion.Module]bool) (WeightVector, error) {
	w := BaseWeights(r, m)

	if learned != nil && s.Blend > 0 {
		f := s.Blend
		if f > 1 {
			f = 1
		}
		for _, mod := range opinion.AllModules {
			w[mod] = w[mod]*(1-f) + learned[mod]*f
		}
	}

	redistributeAbsent(w, present)

	sum := w.Sum()
	if sum <= 0 {
		return nil, fmt.Errorf("no reporting module carries weight in regime %s/%s", r, m)
	}
	for mod := range w {
		w[mod] /= sum
	}

	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// redistributeAbsent moves the weight of every absent module onto the
// present anchors, proportionally to their current weights. If no anchor
// with weight is present the freed weight splits equally across present
// anchors, and failing that it is left for normalization to absorb.
func redistributeAbsent(w WeightVector, present map[opinion.Module]bool) {
	var freed float64
	for _, mod := range opinion.AllModules {
		if !present[mod] && w[mod] > 0 {
			freed += w[mod]
			w[mod] = 0
		}
	}
	if freed == 0 {
		return
	}

	var anchorSum float64
	var presentAnchors []opinion.Module
	for _, a := range anchors {
		if present[a] {
			presentAnchors = append(presentAnchors, a)
			anchorSum += w[a]
		}
	}
	if len(presentAnchors) == 0 {
		return
	}

	if anchorSum > 0 {
		for _, a := range presentAnchors {
			w[a] += freed * (w[a] / anchorSum)
		}
		return
	}
	share := freed / float64(len(presentAnchors))
	for _, a := range presentAnchors {
		w[a] += share
	}
}
