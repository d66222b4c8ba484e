// Package registry loads the instrumentation table and answers the
// per-event question "is this (file, line) instrumented?".
//
// The table is tab-separated with five columns:
//
//	f_name	no	cond_expr	var_expr	primary_key
//
// Blank lines and lines starting with '#' are skipped. Malformed rows
// (wrong column count, non-positive or non-integer line number) fail the
// load. A duplicate (file, line) row replaces the earlier one; Load
// returns a warning per replacement so the caller can surface it.
//
// Lookup is a single map read and is safe for concurrent use: the table
// is immutable once loaded.
package registry
