package worker

import (
	"sync"
	"time"
)

// Queue is a FIFO bridging any number of producers to a single consumer.
// Put never blocks; Get waits up to a timeout.
type Queue struct {
	mu       sync.Mutex
	items    []Event
	maxDepth int
	dropped  uint64
	// ready holds at most one wakeup token for a waiting consumer.
	ready chan struct{}
}

// NewQueue returns a queue. maxDepth <= 0 means unbounded.
func NewQueue(maxDepth int) *Queue {
	if maxDepth < 0 {
		maxDepth = 0
	}
	return &Queue{maxDepth: maxDepth, ready: make(chan struct{}, 1)}
}

// Put appends ev. When the queue is bounded and full the oldest event is
// discarded and Put reports it.
func (q *Queue) Put(ev Event) (dropped *Event) {
	q.mu.Lock()
	if q.maxDepth > 0 && len(q.items) >= q.maxDepth {
		old := q.items[0]
		q.items[0] = Event{}
		q.items = q.items[1:]
		q.dropped++
		dropped = &old
	}
	q.items = append(q.items, ev)
	// set under the lock so a concurrent pop cannot be overwritten by a stale depth
	queueDepth.Set(float64(len(q.items)))
	q.mu.Unlock()

	if dropped != nil {
		queueDroppedTotal.Inc()
	}
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Get removes and returns the oldest event, waiting up to timeout for one to
// arrive. The boolean is false when the wait timed out.
func (q *Queue) Get(timeout time.Duration) (Event, bool) {
	if ev, ok := q.pop(); ok {
		return ev, true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.ready:
			if ev, ok := q.pop(); ok {
				return ev, true
			}
		case <-timer.C:
			return q.pop()
		}
	}
}

func (q *Queue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Event{}, false
	}
	ev := q.items[0]
	q.items[0] = Event{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	queueDepth.Set(float64(len(q.items)))
	return ev, true
}

// Len reports the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped reports how many events were discarded at capacity.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
