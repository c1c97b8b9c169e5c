// Package guards enforces the anti-churn rules that keep an approved signal
// from firing too often, too soon, or twice.
//
// Every rule is evaluated independently and reports its own verdict. A
// blocked signal therefore carries the complete list of rules that fired,
// not just the first one, so the audit trail shows the whole picture.
package guards

import (
	"fmt"
	"time"

	"github.com/argusquant/argusd/internal/dedupe"
	"github.com/argusquant/argusd/internal/domain/opinion"
	"github.com/argusquant/argusd/internal/domain/regime"
	"github.com/argusquant/argusd/internal/domain/trade"
)

// Rule names, stable identifiers for audit and metrics.
const (
	RuleIdempotency    = "idempotency"
	RuleCooldown       = "cooldown"
	RuleMinHold        = "min_hold"
	RuleReentry        = "reentry_hysteresis"
	RuleManualOverride = "manual_override"
)

// Config holds the anti-churn thresholds. Durations are seconds, the way
// they appear in the config file.
type Config struct {
	CooldownPulseSecs int `yaml:"cooldown_pulse_secs"`
	CooldownCoreSecs  int `yaml:"cooldown_core_secs"`
	CooldownBistSecs  int `yaml:"cooldown_bist_secs"`

	MinHoldSecs int `yaml:"min_hold_secs"`

	ReentryWindowSecs int     `yaml:"reentry_window_secs"`
	ReentryScoreMin   float64 `yaml:"reentry_score_min"`

	ManualOverrideWindowSecs int     `yaml:"manual_override_window_secs"`
	ManualOverrideScoreMin   float64 `yaml:"manual_override_score_min"`

	IdempotencyTTLSecs int `yaml:"idempotency_ttl_secs"`
}

// DefaultConfig returns the production anti-churn thresholds.
func DefaultConfig() Config {
	return Config{
		CooldownPulseSecs:        300,
		CooldownCoreSecs:         2700,
		CooldownBistSecs:         900,
		MinHoldSecs:              3600,
		ReentryWindowSecs:        3600,
		ReentryScoreMin:          75,
		ManualOverrideWindowSecs: 86400,
		ManualOverrideScoreMin:   85,
		IdempotencyTTLSecs:       int(dedupe.DefaultTTL / time.Second),
	}
}

func secs(v int) time.Duration {
	return time.Duration(v) * time.Second
}

func (c Config) minHold() time.Duration              { return secs(c.MinHoldSecs) }
func (c Config) reentryWindow() time.Duration        { return secs(c.ReentryWindowSecs) }
func (c Config) manualOverrideWindow() time.Duration { return secs(c.ManualOverrideWindowSecs) }
func (c Config) idempotencyTTL() time.Duration       { return secs(c.IdempotencyTTLSecs) }

// cooldownFor picks the effective cooldown for a mode and venue.
func (c Config) cooldownFor(mode regime.Mode, variant trade.MarketVariant) time.Duration {
	if variant == trade.VariantBist {
		return secs(c.CooldownBistSecs)
	}
	if mode == regime.ModeCore {
		return secs(c.CooldownCoreSecs)
	}
	return secs(c.CooldownPulseSecs)
}

// Input is everything the guard rules look at for one signal.
type Input struct {
	Symbol         string
	Timeframe      string
	Action         trade.Action
	Mode           regime.Mode
	Variant        trade.MarketVariant
	BarClose       time.Time
	Now            time.Time
	Scores         []opinion.ModuleScore
	ConsensusScore float64
	HardStop       bool
	LastTrade      *trade.LastTrade
	Position       *trade.Position
}

// Result is one rule's verdict.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Evaluation aggregates all rule verdicts for a signal.
type Evaluation struct {
	Allowed   bool              `json:"allowed"`
	BlockedBy []string          `json:"blocked_by,omitempty"`
	Results   map[string]Result `json:"results"`
}

// Evaluator runs the anti-churn rules. It owns the idempotency cache and
// is safe for concurrent use.
type Evaluator struct {
	cfg   Config
	cache *dedupe.Cache
}

// NewEvaluator builds an evaluator with its own idempotency cache.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{
		cfg:   cfg,
		cache: dedupe.NewCache(cfg.idempotencyTTL()),
	}
}

// Sweep expires stale idempotency entries.
func (e *Evaluator) Sweep(now time.Time) int {
	return e.cache.Sweep(now)
}

// EvaluateAll runs every applicable rule and reports them all. Hold
// signals skip the rules entirely; there is nothing to churn.
func (e *Evaluator) EvaluateAll(in Input) Evaluation {
	ev := Evaluation{Allowed: true, Results: make(map[string]Result)}
	if in.Action == trade.Hold {
		return ev
	}

	for _, r := range []Result{
		e.checkIdempotency(in),
		e.checkCooldown(in),
		e.checkMinHold(in),
		e.checkReentry(in),
		e.checkManualOverride(in),
	} {
		ev.Results[r.Name] = r
		if !r.Passed {
			ev.Allowed = false
			ev.BlockedBy = append(ev.BlockedBy, r.Name)
		}
	}
	return ev
}

// checkIdempotency blocks a signal whose fingerprint was already seen
// within the TTL. Check and registration are one atomic operation.
func (e *Evaluator) checkIdempotency(in Input) Result {
	fp := dedupe.Fingerprint(in.Symbol, in.Timeframe, in.Action, in.BarClose, in.Scores)
	if e.cache.CheckAndRegister(fp, in.Now) {
		return Result{
			Name:   RuleIdempotency,
			Reason: fmt.Sprintf("duplicate signal %s within %s", fp[:12], e.cfg.idempotencyTTL()),
		}
	}
	return Result{Name: RuleIdempotency, Passed: true}
}

// checkCooldown silences any signal that follows a trade on the symbol too
// closely, buys and sells alike. Hard-stop exits are the one exception.
func (e *Evaluator) checkCooldown(in Input) Result {
	if in.LastTrade == nil || in.HardStop {
		return Result{Name: RuleCooldown, Passed: true}
	}

	cooldown := e.cfg.cooldownFor(in.Mode, in.Variant)
	elapsed := in.Now.Sub(in.LastTrade.At)
	if elapsed < cooldown {
		return Result{
			Name:   RuleCooldown,
			Reason: fmt.Sprintf("cooldown active, %s of %s elapsed", elapsed.Round(time.Second), cooldown),
		}
	}
	return Result{Name: RuleCooldown, Passed: true}
}

// checkMinHold blocks core-mode sells on positions held under the minimum,
// unless the exit is a hard stop.
func (e *Evaluator) checkMinHold(in Input) Result {
	if in.Action != trade.Sell || in.Mode != regime.ModeCore {
		return Result{Name: RuleMinHold, Passed: true}
	}
	if in.Position == nil || !in.Position.Open || in.HardStop {
		return Result{Name: RuleMinHold, Passed: true}
	}

	held := in.Now.Sub(in.Position.OpenedAt)
	if held < e.cfg.minHold() {
		return Result{
			Name:   RuleMinHold,
			Reason: fmt.Sprintf("position held %s, minimum %s", held.Round(time.Second), e.cfg.minHold()),
		}
	}
	return Result{Name: RuleMinHold, Passed: true}
}

// checkReentry demands a stronger score to buy back a symbol that was just
// sold.
func (e *Evaluator) checkReentry(in Input) Result {
	if in.Action != trade.Buy || in.LastTrade == nil || in.LastTrade.Action != trade.Sell {
		return Result{Name: RuleReentry, Passed: true}
	}
	if in.Now.Sub(in.LastTrade.At) >= e.cfg.reentryWindow() {
		return Result{Name: RuleReentry, Passed: true}
	}
	if in.ConsensusScore >= e.cfg.ReentryScoreMin {
		return Result{Name: RuleReentry, Passed: true}
	}
	return Result{
		Name: RuleReentry,
		Reason: fmt.Sprintf("re-entry within %s of sell needs score >= %.0f, got %.1f",
			e.cfg.reentryWindow(), e.cfg.ReentryScoreMin, in.ConsensusScore),
	}
}

// checkManualOverride defers to a human sell: automated buys stand down
// for a day unless conviction reaches the high-conviction bar.
func (e *Evaluator) checkManualOverride(in Input) Result {
	if in.Action != trade.Buy || in.LastTrade == nil {
		return Result{Name: RuleManualOverride, Passed: true}
	}
	lt := in.LastTrade
	if !lt.Manual || lt.Action != trade.Sell {
		return Result{Name: RuleManualOverride, Passed: true}
	}
	if in.Now.Sub(lt.At) >= e.cfg.manualOverrideWindow() {
		return Result{Name: RuleManualOverride, Passed: true}
	}
	if in.ConsensusScore >= e.cfg.ManualOverrideScoreMin {
		return Result{Name: RuleManualOverride, Passed: true}
	}
	return Result{
		Name: RuleManualOverride,
		Reason: fmt.Sprintf("deferring to manual sell %s ago, score %.1f below %.0f",
			in.Now.Sub(lt.At).Round(time.Minute), in.ConsensusScore, e.cfg.ManualOverrideScoreMin),
	}
}
