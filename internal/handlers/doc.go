// Package handlers implements the HTTP API: health and readiness probes,
// processing status, and read access to derived note content.
package handlers
