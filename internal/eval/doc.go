// Package eval implements the expression-evaluation capability behind the
// capture dispatcher, using expr-lang/expr. Expressions are compiled once
// on first use and the compiled programs cached, so the per-event cost is
// a map read plus a VM run against the event scope.
package eval
