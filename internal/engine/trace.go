package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/argusquant/argusd/internal/domain/consensus"
	"github.com/argusquant/argusd/internal/domain/gates"
	"github.com/argusquant/argusd/internal/domain/guards"
	"github.com/argusquant/argusd/internal/domain/opinion"
	"github.com/argusquant/argusd/internal/domain/regime"
	"github.com/argusquant/argusd/internal/domain/risk"
	"github.com/argusquant/argusd/internal/domain/trade"
)

// Outcome classifies how an evaluation ended.
type Outcome string

const (
	// OutcomeApproved covers every decision the pipeline stands behind,
	// including a plain Hold when no module made an actionable claim.
	OutcomeApproved Outcome = "approved"
	// OutcomeBlocked means a veto, guard or the risk budget stopped a
	// signal that would otherwise have traded.
	OutcomeBlocked Outcome = "blocked"
	// OutcomeAbstained means input coverage was too thin to judge at all.
	OutcomeAbstained Outcome = "abstained"
)

// Decision is the pipeline's final word on a bar.
type Decision struct {
	Action  trade.Action `json:"action"`
	Size    float64      `json:"size"`
	Tier    gates.Tier   `json:"tier"`
	Outcome Outcome      `json:"outcome"`
	Reason  string       `json:"reason"`
}

// Trace is the complete audit record of one evaluation. Every stage writes
// its intermediate result here; nothing about a decision is unexplainable
// after the fact.
type Trace struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Symbol    string      `json:"symbol"`
	Timeframe string      `json:"timeframe"`
	Mode      regime.Mode `json:"mode"`

	Regime      regime.Regime       `json:"regime"`
	Weights     regime.WeightVector `json:"weights,omitempty"`
	Coverage    float64             `json:"coverage"`
	Freshness   float64             `json:"freshness"`
	DataQuality float64             `json:"data_quality"`

	Opinions  []opinion.Opinion `json:"opinions"`
	Consensus consensus.Result  `json:"consensus"`
	Gate      gates.Resolution  `json:"gate"`
	Guards    guards.Evaluation `json:"guards"`
	Risk      *risk.Verdict     `json:"risk,omitempty"`

	Decision Decision `json:"decision"`
}

// EventSink receives completed traces. Implementations must not block the
// evaluation path.
type EventSink interface {
	Emit(Trace)
}

// ZerologSink writes a one-line summary per decision plus the trace ID for
// correlation.
type ZerologSink struct {
	Log zerolog.Logger
}

// Emit logs the trace summary.
func (s ZerologSink) Emit(t Trace) {
	s.Log.Info().
		Str("trace_id", t.ID).
		Str("symbol", t.Symbol).
		Str("regime", string(t.Regime)).
		Str("action", string(t.Decision.Action)).
		Str("tier", string(t.Decision.Tier)).
		Str("outcome", string(t.Decision.Outcome)).
		Float64("size", t.Decision.Size).
		Float64("consensus", t.Consensus.Score).
		Float64("data_quality", t.DataQuality).
		Strs("blocked_by", t.Guards.BlockedBy).
		Msg(t.Decision.Reason)
}

// NopSink discards traces.
type NopSink struct{}

// Emit does nothing.
func (NopSink) Emit(Trace) {}
