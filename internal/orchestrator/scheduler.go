package orchestrator

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/r1k0/nuxhash/internal/interfaces"
)

// Job priorities. Among jobs already due the lower number runs first
const (
	PriorityStop         = 0
	PriorityProfitSwitch = 1
	PriorityStatus       = 2
)

type entry struct {
	due      time.Time
	priority int
	seq      uint64
	job      func()
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if !h[i].due.Equal(h[j].due) {
		return h[i].due.Before(h[j].due)
	}
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler is a cooperative timer queue driving a single worker: jobs run
// strictly sequentially on the goroutine that called Run, so state shared
// between jobs needs no locking. Periodic behavior is built by jobs
// re-entering themselves before returning
type Scheduler struct {
	mu    sync.Mutex
	queue entryHeap
	seq   uint64
	wake  chan struct{}
	log   interfaces.ILogger
}

func NewScheduler(log interfaces.ILogger) *Scheduler {
	return &Scheduler{
		wake: make(chan struct{}, 1),
		log:  log,
	}
}

// Enter inserts a job due after the given delay and interrupts the current
// sleep so an earlier due time takes effect immediately
func (s *Scheduler) Enter(delay time.Duration, priority int, job func()) {
	s.mu.Lock()
	s.seq++
	heap.Push(&s.queue, &entry{
		due:      time.Now().Add(delay),
		priority: priority,
		seq:      s.seq,
		job:      job,
	})
	s.mu.Unlock()

	s.Wake()
}

// Wake interrupts the blocking wait inside Run, if any
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// CancelAll empties the pending queue without invoking the jobs
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
}

// Run executes jobs until the queue is empty or ctx is done. The wait for the
// next due time is interruptible via Wake. A panicking job is logged and does
// not terminate the loop
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return nil
		}

		if idx := s.readyIndex(time.Now()); idx >= 0 {
			next := heap.Remove(&s.queue, idx).(*entry)
			s.mu.Unlock()
			s.runJob(next)
			continue
		}

		wait := time.Until(s.queue[0].due)
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// readyIndex returns the queue index of the next due entry, or -1 when
// nothing is due yet. Among due entries priority outranks due time, so a stop
// job stamped nanoseconds after a due status job still runs first; the heap's
// due-time ordering only decides how long to sleep
func (s *Scheduler) readyIndex(now time.Time) int {
	best := -1
	for i, e := range s.queue {
		if e.due.After(now) {
			continue
		}
		if best < 0 || readyBefore(e, s.queue[best]) {
			best = i
		}
	}
	return best
}

func readyBefore(a, b *entry) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if !a.due.Equal(b.due) {
		return a.due.Before(b.due)
	}
	return a.seq < b.seq
}

func (s *Scheduler) runJob(e *entry) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("scheduled job panicked: %v", r)
		}
	}()
	e.job()
}

// Pending returns the number of queued jobs
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
