package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argusquant/argusd/internal/domain/opinion"
)

func allPresent() map[opinion.Module]bool {
	p := make(map[opinion.Module]bool, len(opinion.AllModules))
	for _, m := range opinion.AllModules {
		p[m] = true
	}
	return p
}

func TestBaseTablesSumToOne(t *testing.T) {
	for regime, modes := range baseTables {
		for mode, w := range modes {
			assert.InDelta(t, 1.0, w.Sum(), SumTolerance,
				"preset %s/%s", regime, mode)
		}
	}
}

func TestSelectAllPresentNormalized(t *testing.T) {
	s := NewSelector()
	for _, regime := range []Regime{Trend, Chop, RiskOff, NewsShock, Neutral} {
		for _, mode := range []Mode{ModeCore, ModePulse} {
			w, err := s.Select(regime, mode, nil, allPresent())
			require.NoError(t, err, "%s/%s", regime, mode)
			require.NoError(t, w.Validate())
		}
	}
}

func TestSelectRedistributesAbsentToAnchors(t *testing.T) {
	s := &Selector{Blend: 0}
	present := allPresent()
	present[opinion.ModuleNews] = false

	base := BaseWeights(Neutral, ModePulse)
	w, err := s.Select(Neutral, ModePulse, nil, present)
	require.NoError(t, err)

	assert.Zero(t, w[opinion.ModuleNews])
	require.NoError(t, w.Validate())

	// Anchors absorb the freed weight; bystanders only shift via the final
	// normalization, so anchor share must strictly grow.
	for _, a := range []opinion.Module{opinion.ModuleMacro, opinion.ModuleFundamental, opinion.ModuleTechnical} {
		assert.Greater(t, w[a], base[a], "anchor %s", a)
	}
}

func TestSelectOnlyAnchorsPresent(t *testing.T) {
	s := &Selector{Blend: 0}
	present := map[opinion.Module]bool{
		opinion.ModuleTechnical: true,
		opinion.ModuleMacro:     true,
	}

	w, err := s.Select(Trend, ModePulse, nil, present)
	require.NoError(t, err)
	require.NoError(t, w.Validate())
	assert.Zero(t, w[opinion.ModuleNews])
	assert.Zero(t, w[opinion.ModulePriceAction])
}

func TestSelectNoReportingWeightFails(t *testing.T) {
	s := &Selector{Blend: 0}
	_, err := s.Select(Trend, ModePulse, nil, map[opinion.Module]bool{})
	assert.Error(t, err)
}

func TestSelectBlendsLearnedWeights(t *testing.T) {
	s := &Selector{Blend: 0.5}
	learned := WeightVector{
		opinion.ModuleTechnical: 1.0, // learned says: all-in on technical
	}

	w, err := s.Select(Neutral, ModeCore, learned, allPresent())
	require.NoError(t, err)
	require.NoError(t, w.Validate())

	static := BaseWeights(Neutral, ModeCore)
	assert.Greater(t, w[opinion.ModuleTechnical], static[opinion.ModuleTechnical])
	assert.Less(t, w[opinion.ModuleFundamental], static[opinion.ModuleFundamental])
}

func TestSelectZeroBlendIgnoresLearned(t *testing.T) {
	s := &Selector{Blend: 0}
	learned := WeightVector{opinion.ModuleNews: 1.0}

	w, err := s.Select(Neutral, ModeCore, learned, allPresent())
	require.NoError(t, err)

	static := BaseWeights(Neutral, ModeCore)
	assert.InDelta(t, static[opinion.ModuleNews], w[opinion.ModuleNews], SumTolerance)
}

func TestBaseWeightsUnknownRegimeFallsBackToNeutral(t *testing.T) {
	w := BaseWeights(Regime("unheard_of"), ModeCore)
	assert.InDelta(t, 1.0, w.Sum(), SumTolerance)
	assert.Equal(t, BaseWeights(Neutral, ModeCore), w)
}

func TestValidateCatchesDrift(t *testing.T) {
	w := WeightVector{opinion.ModuleTechnical: 0.5, opinion.ModuleMacro: 0.6}
	assert.Error(t, w.Validate())

	w = WeightVector{opinion.ModuleTechnical: -0.1, opinion.ModuleMacro: 1.1}
	assert.Error(t, w.Validate())
}
