// Package workers computes worker pool sizes from available CPU.
package workers
