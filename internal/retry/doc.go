// Package retry tracks per-item exponential backoff state for the derived
// content schedulers. All pending retries share one timer armed for the
// earliest deadline rather than a timer per item.
package retry
