package eval

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator compiles and runs expressions against an event scope.
// Programs are compiled without a typed environment so any scope shape is
// accepted; unknown identifiers fail at run time, which the dispatcher
// treats as a recoverable per-event error.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// New creates an Evaluator with an empty program cache.
func New() *Evaluator {
	return &Evaluator{cache: make(map[string]*vm.Program)}
}

// Evaluate runs expression against scope and returns the result.
func (e *Evaluator) Evaluate(expression string, scope map[string]any) (any, error) {
	prog, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	out, err := expr.Run(prog, scope)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", expression, err)
	}
	return out, nil
}

// program returns the cached compiled program for expression, compiling
// and caching it on first use.
func (e *Evaluator) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	prog, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	compiled, err := expr.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}

	e.mu.Lock()
	e.cache[expression] = compiled
	e.mu.Unlock()
	return compiled, nil
}

// Truthy reports whether an evaluated condition result counts as true.
// Booleans use their own value; numbers are true when non-zero, strings
// when non-empty; nil is false; any other non-nil value is true.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int:
		return x != 0
	case int64:
		return x != 0
	case uint64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}
