// Package isr implements incremental static regeneration: a cache of
// rendered pages with staleness metadata, background revalidation with
// bounded retries, tag-based bulk invalidation, and a periodic staleness
// scanner.
//
// The package is built from four cooperating managers:
//
//   - CacheManager: path-keyed entries with staleness and SWR checks,
//     persisted through a pluggable Adapter (memory, filesystem, Badger, S3).
//   - Revalidator: a priority queue plus worker pool that regenerates stale
//     entries by invoking an application-supplied render function, with
//     exponential-backoff retries on failure.
//   - TagManager: a bidirectional tag↔path index for bulk invalidation.
//   - Scheduler: a ticker that scans for stale entries and enqueues them at
//     low priority.
//
// Lifecycle transitions emit typed Events to an optional EventSink; sink
// failures are logged and never affect core operation.
package isr
