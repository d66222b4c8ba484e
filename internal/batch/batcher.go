package batch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/varwatch/varwatch/internal/dedup"
	"github.com/varwatch/varwatch/pkg/types"
)

// Batcher periodically drains one worker's dedup buffer into reports.
// The report index counter is shared across batchers so report indexes
// are unique process-wide.
type Batcher struct {
	buf      *dedup.Buffer
	limit    int
	interval time.Duration
	name     string
	index    *atomic.Uint64
	deliver  func(types.Report)
	kick     chan struct{}
	now      func() time.Time
}

// New creates a Batcher draining buf into deliver. limit bounds records
// per report; index is the process-wide report index counter.
func New(buf *dedup.Buffer, limit int, interval time.Duration, name string,
	index *atomic.Uint64, deliver func(types.Report)) *Batcher {
	return &Batcher{
		buf:      buf,
		limit:    limit,
		interval: interval,
		name:     name,
		index:    index,
		deliver:  deliver,
		kick:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Kick requests an early flush. Non-blocking; a flush request already
// pending is enough.
func (b *Batcher) Kick() {
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

// Run flushes on the interval and on Kick until ctx is cancelled, then
// performs one final flush so buffered records reach a sink.
func (b *Batcher) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.Flush()
			return
		case <-ticker.C:
			b.Flush()
		case <-b.kick:
			b.Flush()
		}
	}
}

// Flush drains the buffer and delivers the resulting reports in order.
func (b *Batcher) Flush() {
	records := b.buf.DrainAll()
	if len(records) == 0 {
		return
	}
	for _, chunk := range split(records, b.limit) {
		b.deliver(types.Report{
			Name:    b.name,
			Index:   b.index.Add(1) - 1,
			Time:    b.now(),
			Records: chunk,
		})
	}
}

// split partitions records into chunks of at most limit entries.
func split(records []types.Record, limit int) [][]types.Record {
	if limit <= 0 || len(records) <= limit {
		return [][]types.Record{records}
	}
	chunks := make([][]types.Record, 0, (len(records)+limit-1)/limit)
	for len(records) > limit {
		chunks = append(chunks, records[:limit:limit])
		records = records[limit:]
	}
	return append(chunks, records)
}
