// Package engine wires the decision pipeline: opinions, regime and
// weights, the consensus debate, the tiered gate, the anti-churn guards
// and the risk budget, in that order. The compute path is synchronous and
// deterministic; the clock and ID source are injected.
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/argusquant/argusd/internal/domain/consensus"
	"github.com/argusquant/argusd/internal/domain/gates"
	"github.com/argusquant/argusd/internal/domain/guards"
	"github.com/argusquant/argusd/internal/domain/opinion"
	"github.com/argusquant/argusd/internal/domain/regime"
	"github.com/argusquant/argusd/internal/domain/risk"
	"github.com/argusquant/argusd/internal/domain/trade"
	"github.com/argusquant/argusd/internal/metrics"
	"github.com/argusquant/argusd/internal/weights"
)

// AllRegimes enumerates regime labels for the state gauge.
var AllRegimes = []regime.Regime{
	regime.Trend, regime.Chop, regime.RiskOff, regime.NewsShock, regime.Neutral,
}

// Proposed carries the order parameters the risk governor prices.
type Proposed struct {
	EntryPrice float64  `json:"entry_price"`
	Quantity   float64  `json:"quantity"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
}

// Input is one bar's worth of evaluation context.
type Input struct {
	Symbol    string                `json:"symbol"`
	Timeframe string                `json:"timeframe"`
	Mode      regime.Mode           `json:"mode"`
	Variant   trade.MarketVariant   `json:"variant,omitempty"`
	BarClose  time.Time             `json:"bar_close"`
	Scores    []opinion.ModuleScore `json:"scores"`
	Regime    regime.Inputs         `json:"regime"`

	// Freshness in (0,1] discounts data quality; zero means unknown and
	// is treated as fully fresh.
	Freshness float64 `json:"freshness,omitempty"`

	LastTrade *trade.LastTrade `json:"last_trade,omitempty"`
	Position  *trade.Position  `json:"position,omitempty"`
	HardStop  bool             `json:"hard_stop,omitempty"`

	Proposed  Proposed         `json:"proposed"`
	Equity    float64          `json:"equity"`
	Positions []trade.Position `json:"positions,omitempty"`
}

// Engine evaluates signals. Safe for concurrent use: per-call state lives
// on the stack, shared state is the guard cache (internally locked) and
// the learned-weight snapshot (atomic).
type Engine struct {
	cfg      Config
	selector *regime.Selector
	guards   *guards.Evaluator
	governor *risk.Governor
	learned  *weights.Store
	metrics  *metrics.Metrics
	sink     EventSink

	clock func() time.Time
	newID func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDSource injects the trace ID generator.
func WithIDSource(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithLearnedWeights attaches the learned weight snapshot store.
func WithLearnedWeights(store *weights.Store) Option {
	return func(e *Engine) { e.learned = store }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSink attaches the trace sink.
func WithSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// New builds an engine from config.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		selector: &regime.Selector{Blend: cfg.LearnedBlend},
		guards:   guards.NewEvaluator(cfg.Guards),
		governor: risk.NewGovernor(cfg.Risk),
		sink:     NopSink{},
		clock:    time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sweep expires stale idempotency entries; callers run it periodically.
func (e *Engine) Sweep() int {
	return e.guards.Sweep(e.clock())
}

// Evaluate runs the full pipeline on one bar.
func (e *Engine) Evaluate(in Input) (Decision, Trace) {
	now := e.clock()
	if e.metrics != nil {
		// The histogram measures real elapsed time; the injected clock only
		// stamps the trace.
		defer func(start time.Time) {
			e.metrics.EvaluateTime.Observe(time.Since(start).Seconds())
		}(time.Now())
	}

	trace := Trace{
		ID:        e.newID(),
		Timestamp: now,
		Symbol:    in.Symbol,
		Timeframe: in.Timeframe,
		Mode:      in.Mode,
		Freshness: freshness(in.Freshness),
	}

	// Stage 1: opinions. Invalid scores drop out here, so coverage below
	// counts only usable modules.
	trace.Opinions = opinion.Build(in.Scores, e.cfg.Opinion)
	present := make(map[opinion.Module]bool, len(trace.Opinions))
	for _, op := range trace.Opinions {
		present[op.Module] = true
	}

	// Stage 2: regime and weights. Detected even when we later abstain;
	// the regime gauge and trace should reflect the tape regardless.
	trace.Regime = regime.Detect(in.Regime, e.cfg.Thresholds)
	if e.metrics != nil {
		labels := make([]string, len(AllRegimes))
		for i, r := range AllRegimes {
			labels[i] = string(r)
		}
		e.metrics.SetRegime(string(trace.Regime), labels)
	}

	trace.Coverage = e.coverage(present)
	trace.DataQuality = trace.Coverage * trace.Freshness

	if abstainReason := e.abstainReason(present, trace.Coverage); abstainReason != "" {
		return e.finish(&trace, Decision{
			Action:  trade.Hold,
			Tier:    gates.TierNone,
			Outcome: OutcomeAbstained,
			Reason:  abstainReason,
		})
	}

	var learnedVec regime.WeightVector
	if e.learned != nil {
		learnedVec = e.learned.Active().ForMode(in.Mode)
	}
	weightsVec, err := e.selector.Select(trace.Regime, in.Mode, learnedVec, present)
	if err != nil {
		return e.finish(&trace, Decision{
			Action:  trade.Hold,
			Tier:    gates.TierNone,
			Outcome: OutcomeAbstained,
			Reason:  fmt.Sprintf("weight selection failed: %v", err),
		})
	}
	trace.Weights = weightsVec

	// Stage 3: the debate.
	trace.Consensus = consensus.Resolve(trace.Opinions, weightsVec, e.cfg.Consensus)

	// Stage 4: tiers, quality caps, technical veto.
	trace.Gate = gates.Resolve(trace.Consensus, trace.DataQuality, e.cfg.Gates)
	if trace.Gate.Vetoed {
		return e.finish(&trace, Decision{
			Action:  trade.Hold,
			Tier:    gates.TierNone,
			Outcome: OutcomeBlocked,
			Reason:  trace.Gate.Rationale,
		})
	}
	if !trace.Gate.Approved {
		return e.finish(&trace, Decision{
			Action:  trade.Hold,
			Tier:    gates.TierNone,
			Outcome: OutcomeApproved,
			Reason:  trace.Gate.Rationale,
		})
	}

	// Stage 5: anti-churn guards, all evaluated and all recorded.
	trace.Guards = e.guards.EvaluateAll(guards.Input{
		Symbol:         in.Symbol,
		Timeframe:      in.Timeframe,
		Action:         trace.Gate.Action,
		Mode:           in.Mode,
		Variant:        in.Variant,
		BarClose:       in.BarClose,
		Now:            now,
		Scores:         in.Scores,
		ConsensusScore: trace.Consensus.Score,
		HardStop:       in.HardStop,
		LastTrade:      in.LastTrade,
		Position:       in.Position,
	})
	if !trace.Guards.Allowed {
		if e.metrics != nil {
			for _, rule := range trace.Guards.BlockedBy {
				e.metrics.GuardBlocks.WithLabelValues(rule).Inc()
			}
		}
		return e.finish(&trace, Decision{
			Action:  trade.Hold,
			Tier:    trace.Gate.Tier,
			Outcome: OutcomeBlocked,
			Reason:  "anti-churn: " + strings.Join(trace.Guards.BlockedBy, ", "),
		})
	}

	// Stage 6: the risk budget has the last word.
	verdict := e.governor.Review(risk.Order{
		Action:     trace.Gate.Action,
		Symbol:     in.Symbol,
		EntryPrice: in.Proposed.EntryPrice,
		Quantity:   in.Proposed.Quantity,
		StopLoss:   in.Proposed.StopLoss,
	}, risk.Portfolio{
		Equity:     in.Equity,
		Positions:  in.Positions,
		MacroScore: e.macroScore(in),
	})
	trace.Risk = &verdict
	if !verdict.Approved {
		if e.metrics != nil {
			e.metrics.RiskRejects.Inc()
		}
		return e.finish(&trace, Decision{
			Action:  trade.Hold,
			Tier:    trace.Gate.Tier,
			Outcome: OutcomeBlocked,
			Reason:  "risk budget: " + verdict.Reason,
		})
	}

	return e.finish(&trace, Decision{
		Action:  trace.Gate.Action,
		Size:    trace.Gate.Size,
		Tier:    trace.Gate.Tier,
		Outcome: OutcomeApproved,
		Reason:  trace.Gate.Rationale,
	})
}

func (e *Engine) finish(trace *Trace, d Decision) (Decision, Trace) {
	trace.Decision = d
	if e.metrics != nil {
		e.metrics.Decisions.WithLabelValues(string(d.Action), string(d.Tier)).Inc()
	}
	e.sink.Emit(*trace)
	return d, *trace
}

// coverage is the fraction of expected modules with a usable score.
func (e *Engine) coverage(present map[opinion.Module]bool) float64 {
	expected := e.cfg.ExpectedModules
	if len(expected) == 0 {
		return 1.0
	}
	reported := 0
	for _, m := range expected {
		if present[m] {
			reported++
		}
	}
	return float64(reported) / float64(len(expected))
}

func (e *Engine) abstainReason(present map[opinion.Module]bool, coverage float64) string {
	if !present[opinion.ModuleTechnical] {
		return "abstained: technical module did not report"
	}
	if coverage < e.cfg.MinCoverage {
		return fmt.Sprintf("abstained: coverage %.0f%% below %.0f%% minimum",
			coverage*100, e.cfg.MinCoverage*100)
	}
	return ""
}

// macroScore prefers the macro module's own reading, falling back to the
// regime indicator feed.
func (e *Engine) macroScore(in Input) float64 {
	for _, s := range in.Scores {
		if s.Module == opinion.ModuleMacro && s.Valid() {
			return s.Score
		}
	}
	return in.Regime.Macro
}

func freshness(v float64) float64 {
	if v <= 0 || v > 1 {
		return 1.0
	}
	return v
}
