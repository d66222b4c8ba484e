// Package types defines the shared value types that flow through the
// varwatch pipeline: the execution Event produced by the host program,
// the Record captured at an instrumentation point, and the size-bounded
// Report shipped to a sink. These are the canonical in-memory and wire
// representations; every internal package exchanges these types rather
// than its own copies.
package types
