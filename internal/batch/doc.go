// Package batch drains a dedup buffer into size-bounded reports.
//
// Batcher.Run flushes on a fixed interval; Kick requests an early flush
// when the buffer crosses the high-water mark. Each flush partitions the
// drained records into reports of at most the configured limit and hands
// them to the delivery function in order. An empty drain produces no
// report.
package batch
