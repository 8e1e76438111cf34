package worker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedReconciler answers Check from a per-key script of responses; the
// last response repeats once the script runs out.
type scriptedReconciler struct {
	mu         sync.Mutex
	script     map[string][]checkResponse
	checks     map[string]int
	reconciled map[string]int
	reconErr   error
}

type checkResponse struct {
	ok  bool
	err error
}

var (
	stillOpen = checkResponse{ok: false}
	resolved  = checkResponse{ok: true}
	notFound  = checkResponse{err: errors.Join(ErrNotFound, errors.New("issue does not exist"))}
	transient = checkResponse{err: errors.New("connection reset")}
)

func newScriptedReconciler() *scriptedReconciler {
	return &scriptedReconciler{
		script:     map[string][]checkResponse{},
		checks:     map[string]int{},
		reconciled: map[string]int{},
	}
}

func (s *scriptedReconciler) on(key string, rs ...checkResponse) *scriptedReconciler {
	s.mu.Lock()
	s.script[key] = rs
	s.mu.Unlock()
	return s
}

func (s *scriptedReconciler) Check(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs := s.script[key]
	i := s.checks[key]
	s.checks[key]++
	if len(rs) == 0 {
		return false, nil
	}
	if i >= len(rs) {
		i = len(rs) - 1
	}
	return rs[i].ok, rs[i].err
}

func (s *scriptedReconciler) Reconcile(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconciled[key]++
	return s.reconErr
}

func (s *scriptedReconciler) checkCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checks[key]
}

func (s *scriptedReconciler) reconcileCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconciled[key]
}

// recordingHandler records every event it sees.
type recordingHandler struct {
	name string
	mu   sync.Mutex
	seen []Event
	err  error
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) Process(_ context.Context, ev Event) error {
	h.mu.Lock()
	h.seen = append(h.seen, ev)
	h.mu.Unlock()
	return h.err
}

func (h *recordingHandler) events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.seen))
	copy(out, h.seen)
	return out
}
