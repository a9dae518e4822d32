package handlers

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/r1k0/nuxhash/internal/mining"
	"go.uber.org/atomic"
)

// Recorder is the sink for status snapshots and balance results. It keeps the
// latest values plus a bounded snapshot history for the HTTP API. Balance
// deliveries are unordered; the last delivered value wins
type Recorder struct {
	mu       sync.Mutex
	history  *deque.Deque[mining.StatusSnapshot]
	capacity int

	latest     atomic.Value // mining.StatusSnapshot
	hasLatest  *atomic.Bool
	balance    *atomic.Float64
	hasBalance *atomic.Bool
}

func NewRecorder(capacity int) *Recorder {
	return &Recorder{
		history:    deque.New[mining.StatusSnapshot](),
		capacity:   capacity,
		hasLatest:  atomic.NewBool(false),
		balance:    atomic.NewFloat64(0),
		hasBalance: atomic.NewBool(false),
	}
}

func (r *Recorder) OnMiningStatus(snapshot mining.StatusSnapshot) {
	r.latest.Store(snapshot)
	r.hasLatest.Store(true)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.history.Len() == r.capacity {
		r.history.PopFront()
	}
	r.history.PushBack(snapshot)
}

func (r *Recorder) OnBalance(balance float64) {
	r.balance.Store(balance)
	r.hasBalance.Store(true)
}

func (r *Recorder) Latest() (mining.StatusSnapshot, bool) {
	if !r.hasLatest.Load() {
		return mining.StatusSnapshot{}, false
	}
	return r.latest.Load().(mining.StatusSnapshot), true
}

func (r *Recorder) History() []mining.StatusSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]mining.StatusSnapshot, 0, r.history.Len())
	for i := 0; i < r.history.Len(); i++ {
		out = append(out, r.history.At(i))
	}
	return out
}

func (r *Recorder) Balance() (float64, bool) {
	if !r.hasBalance.Load() {
		return 0, false
	}
	return r.balance.Load(), true
}
