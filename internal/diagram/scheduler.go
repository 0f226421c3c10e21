package diagram

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scheduler sizing constants.
const (
	// MinWorkers ensures at least one render runs at a time.
	MinWorkers = 1

	// MaxWorkers caps concurrent renders; browser-backed engines serialize
	// on one page anyway.
	MaxWorkers = 8

	// cpuDivisor leaves headroom for the browser's own processes.
	cpuDivisor = 2
)

// Task is deferred work run by a Scheduler.
type Task func(ctx context.Context)

// Scheduler runs delayed tasks on a bounded set of workers. Workers are
// started lazily as tasks arrive, up to the configured size. Tasks are not
// cancellable once scheduled.
type Scheduler struct {
	size  int
	queue chan Task
	ctx   context.Context
	log   zerolog.Logger

	mu      sync.Mutex
	idle    *sync.Cond
	started int
	pending int
	closed  bool
	workers sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the logger used for recovered task panics.
func WithSchedulerLogger(log zerolog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.log = log
	}
}

// NewScheduler creates a Scheduler with at most n workers.
func NewScheduler(n int, opts ...SchedulerOption) *Scheduler {
	if n < MinWorkers {
		n = MinWorkers
	}

	s := &Scheduler{
		size:  n,
		queue: make(chan Task),
		ctx:   context.Background(),
		log:   zerolog.Nop(),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule runs fn after delay. It reports false if the scheduler is closed.
func (s *Scheduler) Schedule(delay time.Duration, fn Task) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.pending++
	if s.started < s.size && s.started < s.pending {
		s.started++
		s.workers.Add(1)
		go s.work()
	}
	s.mu.Unlock()

	if delay <= 0 {
		go func() { s.queue <- fn }()
		return true
	}
	time.AfterFunc(delay, func() { s.queue <- fn })
	return true
}

func (s *Scheduler) work() {
	defer s.workers.Done()
	for fn := range s.queue {
		s.run(fn)
	}
}

func (s *Scheduler) run(fn Task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("panic", fmt.Sprint(r)).Msg("diagram task panicked")
		}
		s.mu.Lock()
		s.pending--
		if s.pending == 0 {
			s.idle.Broadcast()
		}
		s.mu.Unlock()
	}()
	fn(s.ctx)
}

// Wait blocks until every scheduled task has finished.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.pending > 0 {
		s.idle.Wait()
	}
}

// Close stops accepting tasks, waits for scheduled ones, and stops the workers.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for s.pending > 0 {
		s.idle.Wait()
	}
	close(s.queue)
	s.mu.Unlock()

	s.workers.Wait()
}

// Size returns the maximum number of workers.
func (s *Scheduler) Size() int {
	return s.size
}

// ResolveWorkers determines the scheduler size.
// Priority: explicit workers > GOMAXPROCS-based calculation.
func ResolveWorkers(workers int) int {
	if workers > 0 {
		return workers
	}

	// GOMAXPROCS reflects container limits once automaxprocs has run.
	n := runtime.GOMAXPROCS(0) / cpuDivisor
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}
