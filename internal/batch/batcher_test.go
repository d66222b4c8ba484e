package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/varwatch/varwatch/internal/dedup"
	"github.com/varwatch/varwatch/pkg/types"
)

// reportCollector records delivered reports in order.
type reportCollector struct {
	mu      sync.Mutex
	reports []types.Report
}

func (c *reportCollector) deliver(rep types.Report) {
	c.mu.Lock()
	c.reports = append(c.reports, rep)
	c.mu.Unlock()
}

func (c *reportCollector) all() []types.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Report, len(c.reports))
	copy(out, c.reports)
	return out
}

func fill(buf *dedup.Buffer, n int) {
	for i := 0; i < n; i++ {
		buf.Put(types.Record{File: "a.py", Line: 1, Key: fmt.Sprintf("k%d", i), Value: i})
	}
}

func newTestBatcher(buf *dedup.Buffer, limit int, c *reportCollector) *Batcher {
	var idx atomic.Uint64
	return New(buf, limit, time.Hour, "svc", &idx, c.deliver)
}

func TestFlush_SplitsAtLimit(t *testing.T) {
	buf := dedup.New()
	fill(buf, 5)
	c := &reportCollector{}
	b := newTestBatcher(buf, 2, c)

	b.Flush()

	reports := c.all()
	if len(reports) != 3 {
		t.Fatalf("reports: got %d, want 3", len(reports))
	}
	wantSizes := []int{2, 2, 1}
	for i, rep := range reports {
		if len(rep.Records) != wantSizes[i] {
			t.Errorf("report %d: got %d records, want %d", i, len(rep.Records), wantSizes[i])
		}
		if rep.Name != "svc" {
			t.Errorf("report %d: name %q", i, rep.Name)
		}
		if rep.Index != uint64(i) {
			t.Errorf("report %d: index %d", i, rep.Index)
		}
	}
}

func TestFlush_NeverExceedsLimit(t *testing.T) {
	buf := dedup.New()
	fill(buf, 17)
	c := &reportCollector{}
	b := newTestBatcher(buf, 4, c)

	b.Flush()

	total := 0
	for _, rep := range c.all() {
		if len(rep.Records) > 4 {
			t.Errorf("report exceeds limit: %d records", len(rep.Records))
		}
		total += len(rep.Records)
	}
	if total != 17 {
		t.Errorf("records across reports: got %d, want 17", total)
	}
}

func TestFlush_EmptyDrainProducesNothing(t *testing.T) {
	c := &reportCollector{}
	b := newTestBatcher(dedup.New(), 2, c)

	b.Flush()

	if len(c.all()) != 0 {
		t.Errorf("empty drain: got %d reports, want 0", len(c.all()))
	}
}

func TestRun_FlushesOnKick(t *testing.T) {
	buf := dedup.New()
	c := &reportCollector{}
	b := newTestBatcher(buf, 10, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	fill(buf, 3)
	b.Kick()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(c.all()) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("kick did not trigger a flush")
}

func TestRun_FinalFlushOnCancel(t *testing.T) {
	buf := dedup.New()
	c := &reportCollector{}
	b := newTestBatcher(buf, 10, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	fill(buf, 2)
	cancel()
	<-done

	reports := c.all()
	if len(reports) != 1 || len(reports[0].Records) != 2 {
		t.Fatalf("final flush: got %+v, want one report with 2 records", reports)
	}
}
