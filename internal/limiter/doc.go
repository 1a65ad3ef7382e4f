// Package limiter provides admission gates for expensive sub-operations:
// a FIFO counting semaphore and a weighted-budget variant. These are
// orthogonal to the scheduler's own parallelism cap: a processing call
// holds its scheduler slot for its whole duration and may additionally
// wait on a limiter for one nested expensive step, so the two bounds
// compose.
package limiter
