package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBreakerTripsAfterMaxRestarts(t *testing.T) {
	s := New(nil, Config{MaxRestarts: 3, RestartWindow: time.Minute, BackoffDelay: time.Second})
	for i := 0; i < 2; i++ {
		s.recordRestart()
	}
	if s.breakerTripped() {
		t.Fatal("breaker tripped before reaching maxRestarts")
	}
	s.recordRestart()
	if !s.breakerTripped() {
		t.Fatal("expected breaker to trip at maxRestarts")
	}
}

func TestRecordRestartPrunesOutsideWindow(t *testing.T) {
	s := New(nil, Config{MaxRestarts: 2, RestartWindow: time.Millisecond, BackoffDelay: time.Second})
	s.recordRestart()
	time.Sleep(5 * time.Millisecond)
	s.recordRestart()
	if s.breakerTripped() {
		t.Fatal("expected old restart to be pruned from the window")
	}
}

func TestReadPIDRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	if err := os.WriteFile(path, []byte("4242\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	if got := ReadPID(path); got != 4242 {
		t.Fatalf("expected pid 4242, got %d", got)
	}
}

func TestReadPIDMissingFile(t *testing.T) {
	if got := ReadPID(filepath.Join(t.TempDir(), "missing.pid")); got != 0 {
		t.Fatalf("expected 0 for a missing pid file, got %d", got)
	}
}

func TestIsRunningCurrentProcess(t *testing.T) {
	if !IsRunning(os.Getpid()) {
		t.Fatal("expected current process to be reported as running")
	}
}

func TestIsRunningRejectsNonPositivePID(t *testing.T) {
	if IsRunning(0) || IsRunning(-1) {
		t.Fatal("expected non-positive pids to be reported as not running")
	}
}
