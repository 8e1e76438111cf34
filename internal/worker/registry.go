package worker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Reconciler is the external system consulted by the registry sweep.
type Reconciler interface {
	// Check reports whether the condition tied to key holds. An error
	// wrapping ErrNotFound is terminal; any other error is transient.
	Check(ctx context.Context, key string) (bool, error)
	// Reconcile performs the state transition once the condition holds.
	Reconcile(ctx context.Context, key string) error
}

// Scheduler is the narrow view of the registry handed to handlers.
type Scheduler interface {
	Schedule(key string) bool
}

// Outcome classifies a single deferred check evaluation.
type Outcome string

const (
	OutcomeReconciled      Outcome = "reconciled"
	OutcomeReconcileFailed Outcome = "reconcile_failed"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeExhausted       Outcome = "exhausted"
	OutcomeRetry           Outcome = "retry"
	OutcomeTransient       Outcome = "transient_error"
)

// Terminal reports whether the outcome removed the entry.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeReconciled, OutcomeReconcileFailed, OutcomeNotFound, OutcomeExhausted:
		return true
	}
	return false
}

// SweepResult records what happened to one due entry during a sweep.
type SweepResult struct {
	Key     string
	Outcome Outcome
	Tries   int
	Err     error
}

// Registry holds pending deferred checks. It is owned by the consumer
// goroutine: Schedule and Sweep must only be called from there. Snapshot is
// safe from any goroutine.
type Registry struct {
	entries  []*DeferredCheck
	byKey    map[string]*DeferredCheck
	rec      Reconciler
	interval time.Duration
	maxTries int
	now      func() time.Time
	log      zerolog.Logger
	pub      NoticePublisher

	snap atomic.Pointer[[]DeferredCheck]
}

// NewRegistry builds a registry evaluating checks through rec.
func NewRegistry(cfg Config, rec Reconciler) *Registry {
	cfg = cfg.withDefaults()
	r := &Registry{
		byKey:    make(map[string]*DeferredCheck),
		rec:      rec,
		interval: cfg.RetryInterval,
		maxTries: cfg.MaxTries,
		now:      cfg.Now,
		log:      cfg.Logger,
		pub:      cfg.Publisher,
	}
	r.publish()
	return r
}

// Schedule registers a deferred check for key. A live entry for the same key
// is rescheduled in place with its try counter untouched, so MaxTries is an
// absolute cap per entry: re-triggering delays the next evaluation but never
// grants extra tries. It reports whether a new entry was created.
func (r *Registry) Schedule(key string) bool {
	when := r.now().Add(r.interval)
	if c, ok := r.byKey[key]; ok {
		c.ScheduledAt = when
		r.log.Info().Str("key", key).Int("tries", c.Tries).Msg("deferred check already pending, rescheduling")
		r.pub.Publish(Notice{Name: NoticeRescheduled, Key: key, Fields: map[string]any{"tries": c.Tries}})
		r.publish()
		return false
	}
	c := &DeferredCheck{Key: key, ScheduledAt: when, Tries: 1}
	r.entries = append(r.entries, c)
	r.byKey[key] = c
	r.log.Info().Str("key", key).Time("scheduled_at", when).Msg("deferred check added")
	r.pub.Publish(Notice{Name: NoticeScheduled, Key: key})
	r.publish()
	return true
}

// Len returns the number of live entries.
func (r *Registry) Len() int { return len(r.entries) }

// Get returns a copy of the live entry for key.
func (r *Registry) Get(key string) (DeferredCheck, bool) {
	c, ok := r.byKey[key]
	if !ok {
		return DeferredCheck{}, false
	}
	return *c, true
}

// Snapshot returns a copy of the entries as of the last mutation.
func (r *Registry) Snapshot() []DeferredCheck {
	p := r.snap.Load()
	if p == nil {
		return nil
	}
	out := make([]DeferredCheck, len(*p))
	copy(out, *p)
	return out
}

// Sweep evaluates every due entry once and returns what happened to each.
func (r *Registry) Sweep(ctx context.Context) []SweepResult {
	if len(r.entries) == 0 || r.rec == nil {
		return nil
	}
	current := r.entries
	kept := make([]*DeferredCheck, 0, len(current))
	var results []SweepResult
	for _, c := range current {
		if !c.due(r.now()) {
			kept = append(kept, c)
			continue
		}
		res := r.evaluate(ctx, c)
		results = append(results, res)
		deferredOutcomesTotal.WithLabelValues(string(res.Outcome)).Inc()
		if res.Outcome.Terminal() {
			delete(r.byKey, c.Key)
			continue
		}
		kept = append(kept, c)
	}
	r.entries = kept
	if len(results) > 0 {
		r.publish()
	}
	return results
}

func (r *Registry) evaluate(ctx context.Context, c *DeferredCheck) (res SweepResult) {
	res = SweepResult{Key: c.Key, Tries: c.Tries}
	defer func() {
		if p := recover(); p != nil {
			res.Outcome = OutcomeTransient
			res.Err = handlerPanicError{where: "deferred check " + c.Key, value: p}
			r.log.Error().Err(res.Err).Str("key", c.Key).Msg("deferred check panicked, will retry")
		}
	}()

	r.log.Info().Str("key", c.Key).Int("tries", c.Tries).Msg("evaluating deferred check")
	ok, err := r.rec.Check(ctx, c.Key)
	if err != nil {
		res.Err = err
		if IsNotFound(err) {
			res.Outcome = OutcomeNotFound
			r.log.Warn().Err(err).Str("key", c.Key).Msg("deferred check target not found, removing")
			r.pub.Publish(Notice{Name: NoticeNotFound, Key: c.Key})
			return res
		}
		res.Outcome = OutcomeTransient
		r.log.Error().Err(err).Str("key", c.Key).Msg("deferred check lookup failed, skipping")
		r.pub.Publish(Notice{Name: NoticeTransient, Key: c.Key})
		return res
	}

	if ok {
		if err := r.rec.Reconcile(ctx, c.Key); err != nil {
			res.Outcome = OutcomeReconcileFailed
			res.Err = err
			r.log.Error().Err(err).Str("key", c.Key).Msg("reconcile failed")
			r.pub.Publish(Notice{Name: NoticeReconcileFailed, Key: c.Key})
			return res
		}
		res.Outcome = OutcomeReconciled
		r.log.Info().Str("key", c.Key).Int("tries", c.Tries).Msg("deferred check satisfied")
		r.pub.Publish(Notice{Name: NoticeReconciled, Key: c.Key, Fields: map[string]any{"tries": c.Tries}})
		return res
	}

	if c.exhausted(r.maxTries) {
		res.Outcome = OutcomeExhausted
		r.log.Info().Str("key", c.Key).Int("tries", c.Tries).Msg("deferred check exhausted, removing")
		r.pub.Publish(Notice{Name: NoticeExhausted, Key: c.Key, Fields: map[string]any{"tries": c.Tries}})
		return res
	}

	c.Tries++
	c.ScheduledAt = r.now().Add(r.interval)
	res.Outcome = OutcomeRetry
	res.Tries = c.Tries
	r.log.Info().Str("key", c.Key).Int("tries", c.Tries).Dur("retry_in", r.interval).Msg("condition not met yet, rescheduling")
	r.pub.Publish(Notice{Name: NoticeRetry, Key: c.Key, Fields: map[string]any{"tries": c.Tries}})
	return res
}

func (r *Registry) publish() {
	out := make([]DeferredCheck, len(r.entries))
	for i, c := range r.entries {
		out[i] = *c
	}
	r.snap.Store(&out)
	deferredLive.Set(float64(len(out)))
}
