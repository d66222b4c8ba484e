package types

import "time"

// Event is one traced execution step of the host program. Scope holds the
// variables visible at that step, keyed by name; nested maps are allowed
// and are addressable from expressions with dot notation.
type Event struct {
	File  string         `json:"file"`
	Line  int            `json:"line"`
	Scope map[string]any `json:"scope"`
}

// Record is one captured observation: the evaluated value and primary key
// of an instrumentation point at a single execution step. Records are
// short-lived — they exist only until absorbed into a Report or
// overwritten in a dedup buffer by a newer Record with the same key.
type Record struct {
	File       string    `json:"file"`
	Line       int       `json:"line"`
	Key        any       `json:"key"`
	Value      any       `json:"value"`
	CapturedAt time.Time `json:"captured_at"`
}

// Report is a size-bounded batch of deduplicated records. Once built it is
// immutable and owned by the delivery path until a sink accepts it.
type Report struct {
	Name    string    `json:"name"`
	Index   uint64    `json:"index"`
	Time    time.Time `json:"time"`
	Records []Record  `json:"records"`
}
