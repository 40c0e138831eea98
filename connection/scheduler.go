package connection

import (
	"sync"
	"time"
)

// Scheduler runs at most one pending task per key. Scheduling a key again
// replaces its pending task.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*task
	nextGen uint64
	stopped bool
	wg      sync.WaitGroup
}

type task struct {
	timer *time.Timer
	gen   uint64
}

func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[string]*task)}
}

// Schedule runs fn once after d unless the key is cancelled or rescheduled first.
// It is a no-op after Stop.
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.cancelLocked(key)

	s.nextGen++
	gen := s.nextGen
	s.wg.Add(1)
	t := &task{gen: gen}
	t.timer = time.AfterFunc(d, func() {
		defer s.wg.Done()

		s.mu.Lock()
		if cur, ok := s.tasks[key]; ok && cur.gen == gen {
			delete(s.tasks, key)
		}
		s.mu.Unlock()

		fn()
	})
	s.tasks[key] = t
}

// Cancel drops the pending task for key and reports whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancelLocked(key)
}

func (s *Scheduler) cancelLocked(key string) bool {
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	delete(s.tasks, key)
	if t.timer.Stop() {
		s.wg.Done()
		return true
	}
	// Already fired; the running task finishes on its own
	return false
}

// Pending reports whether a task is waiting to run for key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.tasks[key]
	return ok
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.tasks)
}

// Stop cancels every pending task and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key := range s.tasks {
		s.cancelLocked(key)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
