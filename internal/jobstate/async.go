package jobstate

import (
	"sync"

	"github.com/kiranshivaraju/subrelay/pkg/models"
)

// AsyncObserver delivers views to a slow observer on its own goroutine.
// Views arriving while the observer is busy are coalesced: only the most
// recent one is delivered next, so the final state is never lost.
type AsyncObserver struct {
	next Observer

	mu      sync.Mutex
	pending *models.JobView
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewAsync starts the delivery goroutine for next.
func NewAsync(next Observer) *AsyncObserver {
	a := &AsyncObserver{
		next: next,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go a.loop()
	return a
}

// Notify queues v for delivery. It never blocks.
func (a *AsyncObserver) Notify(v models.JobView) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.pending = &v
	select {
	case a.wake <- struct{}{}:
	default:
	}
	a.mu.Unlock()
}

// Close delivers any pending view and stops the goroutine.
func (a *AsyncObserver) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.wake)
	a.mu.Unlock()

	<-a.done
}

func (a *AsyncObserver) loop() {
	defer close(a.done)
	for range a.wake {
		for {
			a.mu.Lock()
			v := a.pending
			a.pending = nil
			a.mu.Unlock()
			if v == nil {
				break
			}
			a.next(*v)
		}
	}
}
