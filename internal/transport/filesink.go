package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/varwatch/varwatch/pkg/types"
)

// FileSink is the durable fallback: an append-only file holding one
// serialized report per line. Each append opens, writes and closes the
// file so a crash never leaves a dangling handle; at worst the final
// line is truncated, which readers must tolerate.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates a sink appending to path. The file is created on
// first append.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Path returns the sink's file path.
func (s *FileSink) Path() string {
	return s.path
}

// Append writes one serialized report followed by a newline.
func (s *FileSink) Append(body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file sink: open: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(body, '\n')); err != nil {
		return fmt.Errorf("file sink: append: %w", err)
	}
	return nil
}

// ReadReports parses the reports appended to path. A truncated or
// otherwise unparsable final line — the expected residue of a crash
// mid-write — is skipped; corruption anywhere else is an error.
func ReadReports(path string) ([]types.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file sink: open: %w", err)
	}
	defer f.Close()

	var reports []types.Report
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var pendingErr error
	for scanner.Scan() {
		if pendingErr != nil {
			return nil, fmt.Errorf("file sink: corrupt report before final line: %w", pendingErr)
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rep types.Report
		if err := json.Unmarshal(line, &rep); err != nil {
			// Tolerated only if this turns out to be the last line.
			pendingErr = err
			continue
		}
		reports = append(reports, rep)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("file sink: read: %w", err)
	}
	return reports, nil
}
