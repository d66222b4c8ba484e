// Package dedup keeps the newest record per primary key.
//
// Buffer is a mutex-guarded map keyed by (file, line, key): records for
// the same instrumentation point with an equal primary key overwrite each
// other, last write wins. DrainAll atomically snapshots and clears the
// map, so a record put before a drain appears in exactly one drain —
// never lost, never duplicated.
package dedup
