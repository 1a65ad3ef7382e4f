// Package scheduler coordinates background derived-content work for one
// content kind at a time: queueing with deduplication, a debounce window
// that coalesces bursts of changes, bounded parallel batch execution,
// exponential-backoff retries for recoverable failures, and session-based
// invalidation so a stop discards every in-flight result.
package scheduler
