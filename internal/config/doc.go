// Package config loads and validates the varwatch runtime configuration.
//
// The file is YAML with sections mirroring the runtime knobs: mode (task
// selector), log (file + level), points (instrumentation table path),
// output (queue and file-fallback switches), nsq (endpoint, topics,
// report limit, handshake and failure thresholds), process (worker count
// and intake queue size) and shutdown (drain grace period).
//
// A small set of deploy-varying fields can be overridden from the
// environment after the file is parsed: VARWATCH_NSQ_IP,
// VARWATCH_NSQ_PORT and VARWATCH_LOG_LEVEL.
//
// Watch (watch.go) observes the config and points files with fsnotify and
// reports changes to a callback; instrumentation points are immutable once
// loaded, so callers log and mark the process stale rather than reloading.
package config
