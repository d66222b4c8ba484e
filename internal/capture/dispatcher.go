package capture

import (
	"log/slog"
	"time"

	"github.com/varwatch/varwatch/internal/eval"
	"github.com/varwatch/varwatch/internal/metrics"
	"github.com/varwatch/varwatch/internal/registry"
	"github.com/varwatch/varwatch/pkg/types"
)

// Evaluator is the expression-evaluation capability the dispatcher
// requires. The default implementation lives in internal/eval; hosts may
// substitute their own.
type Evaluator interface {
	Evaluate(expression string, scope map[string]any) (any, error)
}

// Sink accepts captured records. Offer must not block; it returns false
// when the record was rejected (intake queue full).
type Sink interface {
	Offer(types.Record) bool
}

// Dispatcher consumes execution events and produces records for the
// matching instrumentation points.
type Dispatcher struct {
	reg  *registry.Registry
	eval Evaluator
	sink Sink
	now  func() time.Time // injectable for deterministic tests
}

// NewDispatcher wires a registry, an evaluator and a record sink.
func NewDispatcher(reg *registry.Registry, ev Evaluator, sink Sink) *Dispatcher {
	return &Dispatcher{reg: reg, eval: ev, sink: sink, now: time.Now}
}

// OnEvent handles one traced execution step.
func (d *Dispatcher) OnEvent(ev types.Event) {
	metrics.EventsSeen.Inc()

	pt, ok := d.reg.Lookup(ev.File, ev.Line)
	if !ok {
		return
	}

	if pt.CondExpr != "" {
		v, err := d.eval.Evaluate(pt.CondExpr, ev.Scope)
		if err != nil {
			// Expected filtering, not an error: a condition that cannot
			// be evaluated at this step simply does not fire.
			metrics.EvalErrors.Inc()
			slog.Debug("capture: condition eval failed",
				"file", ev.File, "line", ev.Line, "expr", pt.CondExpr, "err", err)
			return
		}
		if !eval.Truthy(v) {
			return
		}
	}

	value, err := d.eval.Evaluate(pt.ValueExpr, ev.Scope)
	if err != nil {
		metrics.EvalErrors.Inc()
		slog.Debug("capture: value eval failed",
			"file", ev.File, "line", ev.Line, "expr", pt.ValueExpr, "err", err)
		return
	}
	key, err := d.eval.Evaluate(pt.KeyExpr, ev.Scope)
	if err != nil {
		metrics.EvalErrors.Inc()
		slog.Debug("capture: key eval failed",
			"file", ev.File, "line", ev.Line, "expr", pt.KeyExpr, "err", err)
		return
	}

	metrics.EventsMatched.Inc()

	rec := types.Record{
		File:       pt.File,
		Line:       pt.Line,
		Key:        key,
		Value:      value,
		CapturedAt: d.now(),
	}
	if !d.sink.Offer(rec) {
		metrics.EventsDropped.Inc()
		slog.Debug("capture: intake full, record dropped",
			"file", ev.File, "line", ev.Line)
	}
}
