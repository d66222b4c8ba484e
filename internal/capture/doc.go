// Package capture turns execution events into records.
//
// Dispatcher.OnEvent runs synchronously on the host program's execution
// path, so the common case — an event that matches no instrumentation
// point — must stay a single map lookup. When a point matches, the
// condition expression gates capture, the value and key expressions are
// evaluated, and the resulting record is handed off to the sink with a
// non-blocking offer. Evaluation failures are recoverable: they are
// counted, logged at debug, and never propagate to the host. No I/O
// happens on this path.
package capture
