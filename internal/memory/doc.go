// Package memory provides a memory usage monitor that pauses batch
// processing under pressure and resumes it once usage recovers.
package memory
