// Package metrics defines the Prometheus collectors exported by the
// notebook-navigator service.
package metrics
