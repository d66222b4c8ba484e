// Package worker runs the delivery pipelines.
//
// Pool owns N workers, each with a private dedup buffer and batcher, all
// sharing one transport manager. The bounded intake queue is partitioned
// across the workers and records are routed by instrumentation-point
// hash, so every record for one point lands in the same buffer and
// per-key dedup holds for that point. Offer never blocks: a full
// partition rejects the record and the capture path counts the drop.
//
// Stop drains the intake, flushes every buffer through the transport
// (reaching at least the file sink when disconnected) and waits up to
// the configured grace period before giving up on stragglers.
package worker
