package diagram

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolveWorkers(t *testing.T) {
	t.Parallel()

	gomaxprocs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{name: "explicit takes priority", workers: 4, want: 4},
		{name: "explicit=1 for sequential", workers: 1, want: 1},
		{name: "zero uses auto calculation", workers: 0, want: min(max(gomaxprocs/cpuDivisor, MinWorkers), MaxWorkers)},
		{name: "negative uses auto calculation", workers: -3, want: min(max(gomaxprocs/cpuDivisor, MinWorkers), MaxWorkers)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ResolveWorkers(tt.workers); got != tt.want {
				t.Errorf("ResolveWorkers(%d) = %d, want %d", tt.workers, got, tt.want)
			}
		})
	}
}

func TestScheduler_RunsAllTasks(t *testing.T) {
	t.Parallel()

	s := NewScheduler(3)
	defer s.Close()

	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		if !s.Schedule(time.Millisecond, func(context.Context) { ran.Add(1) }) {
			t.Fatal("Schedule() = false on an open scheduler")
		}
	}
	s.Wait()

	if got := ran.Load(); got != 20 {
		t.Errorf("ran %d tasks, want 20", got)
	}
}

func TestScheduler_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	const size = 2
	s := NewScheduler(size)
	defer s.Close()

	var running, peak atomic.Int32
	for i := 0; i < 10; i++ {
		s.Schedule(0, func(context.Context) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
		})
	}
	s.Wait()

	if got := peak.Load(); got > size {
		t.Errorf("peak concurrency = %d, want <= %d", got, size)
	}
}

func TestScheduler_Delay(t *testing.T) {
	t.Parallel()

	s := NewScheduler(1)
	defer s.Close()

	start := time.Now()
	var elapsed time.Duration
	s.Schedule(30*time.Millisecond, func(context.Context) { elapsed = time.Since(start) })
	s.Wait()

	if elapsed < 30*time.Millisecond {
		t.Errorf("task ran after %v, want >= 30ms", elapsed)
	}
}

func TestScheduler_RecoversPanics(t *testing.T) {
	t.Parallel()

	s := NewScheduler(1)
	defer s.Close()

	var after atomic.Bool
	s.Schedule(0, func(context.Context) { panic("boom") })
	s.Schedule(0, func(context.Context) { after.Store(true) })
	s.Wait()

	if !after.Load() {
		t.Error("task after a panicking task did not run")
	}
}

func TestScheduler_Close(t *testing.T) {
	t.Parallel()

	s := NewScheduler(2)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		s.Schedule(10*time.Millisecond, func(context.Context) { ran.Add(1) })
	}
	s.Close()

	if got := ran.Load(); got != 5 {
		t.Errorf("Close() returned with %d of 5 tasks run", got)
	}
	if s.Schedule(0, func(context.Context) {}) {
		t.Error("Schedule() = true after Close")
	}
	s.Close() // idempotent
}

func TestScheduler_WaitWithoutTasks(t *testing.T) {
	t.Parallel()

	s := NewScheduler(0)
	defer s.Close()

	if s.Size() != MinWorkers {
		t.Errorf("Size() = %d, want %d", s.Size(), MinWorkers)
	}

	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait() blocked with no tasks")
	}
}

func TestScheduler_ConcurrentSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(4)
	defer s.Close()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				s.Schedule(0, func(context.Context) { ran.Add(1) })
			}
		}()
	}
	wg.Wait()
	s.Wait()

	if got := ran.Load(); got != 80 {
		t.Errorf("ran %d tasks, want 80", got)
	}
}
