// Package metrics registers the process-wide Prometheus instruments for
// the varwatch pipeline. Counters cover the capture path (events seen,
// matched, dropped on a full intake queue, evaluation errors) and the
// delivery path (reports published to the queue, appended to the fallback
// file, or discarded). TransportState mirrors the transport manager's
// state machine: 0 disconnected, 1 connected, 2 reconnecting.
package metrics
