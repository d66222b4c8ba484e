package worker

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/varwatch/varwatch/internal/batch"
	"github.com/varwatch/varwatch/internal/dedup"
	"github.com/varwatch/varwatch/pkg/types"
)

// Options sizes the pool and its batchers.
type Options struct {
	// Num is the number of parallel pipelines.
	Num int

	// QueueSize is the total intake capacity, split across workers.
	QueueSize int

	// Limit bounds records per report and doubles as the high-water
	// mark that triggers an early flush.
	Limit int

	// FlushInterval is the batcher tick.
	FlushInterval time.Duration

	// Name is echoed in every report.
	Name string

	// Grace bounds how long Stop waits for drain and flush.
	Grace time.Duration
}

// Pool runs Num worker pipelines over a partitioned bounded intake.
type Pool struct {
	opts    Options
	workers []*worker
	deliver func(types.Report)
	index   atomic.Uint64

	stopped    atomic.Bool
	consumerWG sync.WaitGroup
	batcherWG  sync.WaitGroup
	batchStop  context.CancelFunc
}

type worker struct {
	in      chan types.Record
	stop    chan struct{}
	buf     *dedup.Buffer
	batcher *batch.Batcher
}

// NewPool creates a Pool delivering reports through deliver, which must
// be safe for concurrent use (one shared transport manager).
func NewPool(opts Options, deliver func(types.Report)) *Pool {
	p := &Pool{opts: opts, deliver: deliver}

	perWorker := opts.QueueSize / opts.Num
	if perWorker < 1 {
		perWorker = 1
	}
	for i := 0; i < opts.Num; i++ {
		buf := dedup.New()
		p.workers = append(p.workers, &worker{
			in:   make(chan types.Record, perWorker),
			stop: make(chan struct{}),
			buf:  buf,
			batcher: batch.New(buf, opts.Limit, opts.FlushInterval,
				opts.Name, &p.index, deliver),
		})
	}
	return p
}

// Start launches the consumer and batcher goroutines.
func (p *Pool) Start(ctx context.Context) {
	batchCtx, cancel := context.WithCancel(ctx)
	p.batchStop = cancel

	for _, w := range p.workers {
		p.consumerWG.Add(1)
		go func(w *worker) {
			defer p.consumerWG.Done()
			w.consume(p.opts.Limit)
		}(w)

		p.batcherWG.Add(1)
		go func(w *worker) {
			defer p.batcherWG.Done()
			w.batcher.Run(batchCtx)
		}(w)
	}
}

// Offer routes rec to its worker's intake partition. Non-blocking: a
// full partition or a stopped pool rejects the record.
func (p *Pool) Offer(rec types.Record) bool {
	if p.stopped.Load() {
		return false
	}
	w := p.workers[p.route(rec)]
	select {
	case w.in <- rec:
		return true
	default:
		return false
	}
}

// route hashes the instrumentation point so all records for one point
// share a dedup buffer.
func (p *Pool) route(rec types.Record) int {
	h := fnv.New32a()
	h.Write([]byte(rec.File))
	h.Write([]byte(strconv.Itoa(rec.Line)))
	return int(h.Sum32() % uint32(len(p.workers)))
}

// Stop drains the intake, flushes all buffers through the delivery path
// and returns. Workers still busy after the grace period are abandoned
// and the remaining in-flight data is discarded with a log line.
func (p *Pool) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	deadline := time.Now().Add(p.opts.Grace)

	for _, w := range p.workers {
		close(w.stop)
	}
	if !waitUntil(&p.consumerWG, deadline) {
		slog.Warn("worker: shutdown grace exceeded draining intake, discarding in-flight records")
	}

	// Cancelling the batcher context triggers one final flush per worker.
	if p.batchStop != nil {
		p.batchStop()
	}
	if !waitUntil(&p.batcherWG, deadline) {
		slog.Warn("worker: shutdown grace exceeded flushing buffers, discarding buffered records")
	}
}

// consume moves records from the intake partition into the dedup buffer,
// kicking the batcher at the high-water mark. On stop it drains whatever
// is still queued before exiting.
func (w *worker) consume(highWater int) {
	for {
		select {
		case rec := <-w.in:
			w.buf.Put(rec)
			if w.buf.Len() >= highWater {
				w.batcher.Kick()
			}
		case <-w.stop:
			for {
				select {
				case rec := <-w.in:
					w.buf.Put(rec)
				default:
					return
				}
			}
		}
	}
}

// waitUntil waits for wg with a deadline; false means the deadline hit.
func waitUntil(wg *sync.WaitGroup, deadline time.Time) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(time.Until(deadline)):
		return false
	}
}
