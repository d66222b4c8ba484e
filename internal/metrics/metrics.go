package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// EventsSeen counts every execution event offered to the dispatcher,
	// including the overwhelming majority that match no point.
	EventsSeen = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "varwatch_events_seen_total",
		Help: "Execution events offered to the capture dispatcher.",
	})

	// EventsMatched counts events that hit an instrumentation point and
	// passed its condition.
	EventsMatched = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "varwatch_events_matched_total",
		Help: "Events that matched an instrumentation point and passed its condition.",
	})

	// EventsDropped counts records lost because the worker intake queue
	// was full. Capture is sacrificed before host-program latency.
	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "varwatch_events_dropped_total",
		Help: "Captured records dropped because the intake queue was full.",
	})

	// EvalErrors counts recoverable expression evaluation failures.
	EvalErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "varwatch_eval_errors_total",
		Help: "Expression evaluation failures (condition, value or key).",
	})

	// ReportsPublished counts reports accepted by the message queue.
	ReportsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "varwatch_reports_published_total",
		Help: "Reports successfully published to the message queue.",
	})

	// ReportsFiled counts reports appended to the fallback file sink.
	ReportsFiled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "varwatch_reports_filed_total",
		Help: "Reports appended to the fallback file sink.",
	})

	// ReportsDiscarded counts reports lost with no sink available.
	ReportsDiscarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "varwatch_reports_discarded_total",
		Help: "Reports dropped because no sink could accept them.",
	})

	// Reconnects counts successful handshakes after a disconnect.
	Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "varwatch_reconnects_total",
		Help: "Successful transport handshakes after a disconnect.",
	})

	// TransportState is the current transport state:
	// 0 disconnected, 1 connected, 2 reconnecting.
	TransportState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "varwatch_transport_state",
		Help: "Transport state: 0 disconnected, 1 connected, 2 reconnecting.",
	})

	// ConfigStale is set to 1 when the config or instrumentation table
	// changed on disk after startup; points are fixed until restart.
	ConfigStale = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "varwatch_config_stale",
		Help: "1 when the on-disk configuration changed after startup.",
	})
)

func init() {
	prometheus.MustRegister(
		EventsSeen, EventsMatched, EventsDropped, EvalErrors,
		ReportsPublished, ReportsFiled, ReportsDiscarded, Reconnects,
		TransportState, ConfigStale,
	)
}
