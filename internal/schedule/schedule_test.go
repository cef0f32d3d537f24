package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitForRuns(t *testing.T, runs *atomic.Int64, want int64) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for runs.Load() < want {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d runs, got %d", want, runs.Load())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestInitialDelayThenInterval(t *testing.T) {
	var runs atomic.Int64
	s := New(20*time.Millisecond, 5*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
	})

	s.Start(context.Background())
	defer s.Stop()

	waitForRuns(t, &runs, 2) // initial run plus at least one tick
}

func TestTriggerNow(t *testing.T) {
	var runs atomic.Int64
	s := New(time.Hour, time.Hour, func(ctx context.Context) {
		runs.Add(1)
	})

	s.Start(context.Background())
	defer s.Stop()

	s.TriggerNow()
	waitForRuns(t, &runs, 1)
}

func TestTriggerCoalesces(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int64

	s := New(time.Hour, time.Hour, func(ctx context.Context) {
		runs.Add(1)
		if runs.Load() == 1 {
			close(started)
			<-release
		}
	})
	s.Start(context.Background())
	defer s.Stop()

	s.TriggerNow()
	<-started

	// Pile up triggers while the job is running: they collapse to one.
	for i := 0; i < 5; i++ {
		s.TriggerNow()
	}
	close(release)

	waitForRuns(t, &runs, 2)
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Errorf("runs = %d, want 2 (coalesced)", got)
	}
}

func TestStopHaltsLoop(t *testing.T) {
	var runs atomic.Int64
	s := New(5*time.Millisecond, 0, func(ctx context.Context) {
		runs.Add(1)
	})

	s.Start(context.Background())
	waitForRuns(t, &runs, 1)
	s.Stop()

	at := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != at {
		t.Error("job ran after Stop")
	}

	// Stop twice is safe.
	s.Stop()
}
