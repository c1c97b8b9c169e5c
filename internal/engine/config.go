package engine

import (
	"github.com/argusquant/argusd/internal/domain/consensus"
	"github.com/argusquant/argusd/internal/domain/gates"
	"github.com/argusquant/argusd/internal/domain/guards"
	"github.com/argusquant/argusd/internal/domain/opinion"
	"github.com/argusquant/argusd/internal/domain/regime"
	"github.com/argusquant/argusd/internal/domain/risk"
	"github.com/argusquant/argusd/internal/domain/trade"
)

// Config aggregates every stage's tuning plus the engine-level coverage
// policy.
type Config struct {
	Opinion    opinion.Config    `yaml:"opinion"`
	Thresholds regime.Thresholds `yaml:"regime"`
	Consensus  consensus.Config  `yaml:"consensus"`
	Gates      gates.Config      `yaml:"gates"`
	Guards     guards.Config     `yaml:"guards"`
	Risk       risk.Config       `yaml:"risk"`

	// LearnedBlend mixes the learned weight snapshot into the static
	// regime tables. 0 disables learned weights entirely.
	LearnedBlend float64 `yaml:"learned_blend"`

	// MinCoverage is the fraction of expected modules that must report
	// before the engine will judge at all.
	MinCoverage float64 `yaml:"min_coverage"`

	// ExpectedModules defines the coverage denominator.
	ExpectedModules []opinion.Module `yaml:"expected_modules"`
}

// DefaultConfig returns the full production configuration for a variant.
func DefaultConfig(variant trade.MarketVariant) Config {
	return Config{
		Opinion:      opinion.DefaultConfig(),
		Thresholds:   regime.DefaultThresholds(),
		Consensus:    consensus.DefaultConfig(),
		Gates:        gates.DefaultConfig(),
		Guards:       guards.DefaultConfig(),
		Risk:         risk.DefaultConfig(variant),
		LearnedBlend: 0.5,
		MinCoverage:  0.40,
		ExpectedModules: []opinion.Module{
			opinion.ModuleTechnical,
			opinion.ModuleFundamental,
			opinion.ModuleMacro,
			opinion.ModuleNews,
			opinion.ModulePriceAction,
		},
	}
}
