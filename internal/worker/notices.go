package worker

import "sync"

// Notice is a worker lifecycle notification.
// Minimal and stable: name + reconciliation key and optional fields.
type Notice struct {
	Name   string
	Key    string
	Fields map[string]any
}

// Notice names emitted by the registry sweep.
const (
	NoticeScheduled       = "deferred_scheduled"
	NoticeRescheduled     = "deferred_rescheduled"
	NoticeRetry           = "deferred_retry"
	NoticeReconciled      = "deferred_reconciled"
	NoticeReconcileFailed = "deferred_reconcile_failed"
	NoticeNotFound        = "deferred_not_found"
	NoticeExhausted       = "deferred_exhausted"
	NoticeTransient       = "deferred_transient_error"
)

// NoticePublisher receives notices from the worker. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type NoticePublisher interface {
	Publish(Notice)
}

// noopPublisher is the default; it drops notices.
type noopPublisher struct{}

func (noopPublisher) Publish(Notice) {}

// MemoryPublisher stores notices in-memory for tests.
type MemoryPublisher struct {
	mu      sync.Mutex
	notices []Notice
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(n Notice) {
	p.mu.Lock()
	p.notices = append(p.notices, n)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Notices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Notice, len(p.notices))
	copy(out, p.notices)
	return out
}

// Count returns how many notices with the given name were published.
func (p *MemoryPublisher) Count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.notices {
		if e.Name == name {
			n++
		}
	}
	return n
}
