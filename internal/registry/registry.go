package registry

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Point is one instrumentation point: a (file, line) location and the
// expressions evaluated when execution reaches it. Immutable once loaded.
type Point struct {
	File string
	Line int

	// CondExpr gates capture. Empty means collect unconditionally
	// (a literal "True" in the table is normalized to empty).
	CondExpr string

	// ValueExpr yields the observed value.
	ValueExpr string

	// KeyExpr yields the primary key used for deduplication, commonly a
	// current-time expression.
	KeyExpr string
}

type pointKey struct {
	file string
	line int
}

// Registry is the immutable table of instrumentation points.
type Registry struct {
	points map[pointKey]*Point
}

// Load reads the tab-separated instrumentation table at path. Duplicate
// (file, line) rows are last-one-wins; each replacement is reported in
// the returned warnings.
func Load(path string) (*Registry, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("registry: open table: %w", err)
	}
	defer f.Close()

	points := make(map[pointKey]*Point)
	var warnings []string

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		row := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(row) == "" || strings.HasPrefix(strings.TrimSpace(row), "#") {
			continue
		}

		cols := strings.Split(row, "\t")
		if len(cols) != 5 {
			return nil, nil, fmt.Errorf("registry: row %d: want 5 tab-separated columns, got %d", lineNo, len(cols))
		}

		file := strings.TrimSpace(cols[0])
		if file == "" {
			return nil, nil, fmt.Errorf("registry: row %d: f_name is empty", lineNo)
		}
		no, err := strconv.Atoi(strings.TrimSpace(cols[1]))
		if err != nil {
			return nil, nil, fmt.Errorf("registry: row %d: line number %q is not an integer", lineNo, cols[1])
		}
		if no < 1 {
			return nil, nil, fmt.Errorf("registry: row %d: line number must be >= 1, got %d", lineNo, no)
		}

		cond := strings.TrimSpace(cols[2])
		if cond == "True" {
			// The table format uses a literal True for "always collect".
			cond = ""
		}
		valueExpr := strings.TrimSpace(cols[3])
		keyExpr := strings.TrimSpace(cols[4])
		if valueExpr == "" || keyExpr == "" {
			return nil, nil, fmt.Errorf("registry: row %d: var_expr and primary_key are required", lineNo)
		}

		k := pointKey{file: file, line: no}
		if _, dup := points[k]; dup {
			warnings = append(warnings,
				fmt.Sprintf("registry: row %d replaces earlier point at %s:%d", lineNo, file, no))
		}
		points[k] = &Point{
			File:      file,
			Line:      no,
			CondExpr:  cond,
			ValueExpr: valueExpr,
			KeyExpr:   keyExpr,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("registry: read table: %w", err)
	}

	return &Registry{points: points}, warnings, nil
}

// Lookup returns the point at (file, line), if any. This is the hot path
// run on every traced step.
func (r *Registry) Lookup(file string, line int) (*Point, bool) {
	p, ok := r.points[pointKey{file: file, line: line}]
	return p, ok
}

// Len returns the number of loaded points.
func (r *Registry) Len() int {
	return len(r.points)
}

// Files returns the distinct source files that carry at least one point.
// Hosts use this to skip tracing files with no instrumentation.
func (r *Registry) Files() []string {
	seen := make(map[string]struct{})
	var files []string
	for k := range r.points {
		if _, ok := seen[k.file]; ok {
			continue
		}
		seen[k.file] = struct{}{}
		files = append(files, k.file)
	}
	return files
}
