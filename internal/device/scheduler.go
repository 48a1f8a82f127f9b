package device

import (
	"sync"
	"time"
)

// Scheduler owns the cancellable delayed tasks of one simulator.
// CancelAll stops every pending timer and waits for in-flight tasks, so
// after it returns no task function is running or will ever run again.
// CancelAll must not be called from inside a task.
type Scheduler struct {
	mu      sync.Mutex
	stopped bool
	seq     int
	timers  map[int]*time.Timer
	wg      sync.WaitGroup
}

// Task is a handle to one scheduled function.
type Task struct {
	s  *Scheduler
	id int
}

// NewScheduler returns a ready scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[int]*time.Timer)}
}

// After runs fn once after d. It returns a handle that can cancel the
// task; scheduling on a stopped scheduler is a no-op.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return &Task{}
	}
	s.seq++
	id := s.seq
	s.timers[id] = time.AfterFunc(d, func() { s.run(id, fn) })
	return &Task{s: s, id: id}
}

func (s *Scheduler) run(id int, fn func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	fn()
}

// CancelAll stops all pending timers and waits for running tasks.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Pending reports how many timers are armed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Cancel stops this task if it has not fired yet.
func (t *Task) Cancel() {
	if t == nil || t.s == nil {
		return
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if timer, ok := t.s.timers[t.id]; ok {
		timer.Stop()
		delete(t.s.timers, t.id)
	}
}
