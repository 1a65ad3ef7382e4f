package workers

import (
	"runtime"
	"testing"
)

func TestCountRespectsLimit(t *testing.T) {
	if got := Count(10.0, 4); got > 4 {
		t.Errorf("Count(10.0, 4) = %d, want <= 4", got)
	}
}

func TestCountMinimumOne(t *testing.T) {
	if got := Count(0.0001, 0); got < 1 {
		t.Errorf("Count with tiny multiplier = %d, want >= 1", got)
	}
}

func TestCountOverride(t *testing.T) {
	t.Setenv("PROCESS_WORKERS", "7")
	if got := Count(1.0, 0); got != 7 {
		t.Errorf("Count with override = %d, want 7", got)
	}
	if got := Count(1.0, 3); got != 3 {
		t.Errorf("Count with override and limit = %d, want 3", got)
	}
}

func TestHelpers(t *testing.T) {
	cpus := runtime.GOMAXPROCS(0)
	if got := ForCPU(0); got != cpus {
		t.Errorf("ForCPU(0) = %d, want %d", got, cpus)
	}
	if got := ForIO(0); got != cpus*2 {
		t.Errorf("ForIO(0) = %d, want %d", got, cpus*2)
	}
}
