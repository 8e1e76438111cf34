package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Worker is the single consumer: it alternates between draining the queue
// (bounded wait) and sweeping the deferred retry registry.
type Worker struct {
	cfg      Config
	queue    *Queue
	pipeline *Pipeline
	registry *Registry
	log      zerolog.Logger
	ctx      context.Context

	state     atomic.Int32
	processed atomic.Uint64
	startedAt time.Time

	stopOnce sync.Once
	done     chan struct{}
}

// New constructs the worker and starts its consumer goroutine.
// A nil registry disables deferred checks.
func New(cfg Config, pipeline *Pipeline, registry *Registry) *Worker {
	cfg = cfg.withDefaults()
	if pipeline == nil {
		pipeline = NewPipeline(cfg.Logger)
	}
	if registry == nil {
		registry = NewRegistry(cfg, nil)
	}
	w := &Worker{
		cfg:       cfg,
		queue:     NewQueue(cfg.MaxQueueDepth),
		pipeline:  pipeline,
		registry:  registry,
		log:       cfg.Logger,
		startedAt: cfg.Now(),
		done:      make(chan struct{}),
	}
	w.ctx = w.log.WithContext(context.Background())
	w.state.Store(int32(StateRunning))
	go w.run()
	return w
}

// Enqueue hands an event to the worker. It never blocks.
func (w *Worker) Enqueue(kind string, payload Payload) Event {
	ev := NewEvent(kind, payload)
	w.Put(ev)
	return ev
}

// Put queues a pre-built event.
func (w *Worker) Put(ev Event) {
	if dropped := w.queue.Put(ev); dropped != nil {
		w.log.Warn().Str("event_id", dropped.ID).Str("kind", dropped.Kind).Msg("queue full, dropped oldest event")
	}
	w.log.Info().Str("event_id", ev.ID).Str("kind", ev.Kind).Msg("new event queued")
}

// Stop asks the loop to exit and blocks until it has. The iteration in
// progress completes; events still queued are discarded.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
		w.log.Info().Msg("waiting for worker to finish")
	})
	<-w.done
	w.state.Store(int32(StateStopped))
}

// State returns the current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

// Ready reports whether the worker is accepting and processing events.
func (w *Worker) Ready() bool { return w.State() == StateRunning }

// Stats returns a snapshot for status reporting. Safe from any goroutine.
func (w *Worker) Stats() Stats {
	return Stats{
		State:          w.State(),
		QueueDepth:     w.queue.Len(),
		Processed:      w.processed.Load(),
		Dropped:        w.queue.Dropped(),
		HandlerNames:   w.pipeline.Names(),
		DeferredChecks: w.registry.Snapshot(),
		StartedAt:      w.startedAt,
	}
}

func (w *Worker) run() {
	defer close(w.done)
	w.log.Info().Dur("poll_interval", w.cfg.PollInterval).Msg("started processing loop")
	for w.State() == StateRunning {
		w.guard("iteration", w.iterate)
	}
	w.log.Info().Uint64("processed", w.processed.Load()).Int("dropped_on_stop", w.queue.Len()).Msg("processing loop exited")
}

func (w *Worker) iterate() {
	w.guard("events", w.processNext)
	w.guard("sweep", func() { w.registry.Sweep(w.ctx) })
}

func (w *Worker) processNext() {
	ev, ok := w.queue.Get(w.cfg.PollInterval)
	if !ok {
		return
	}
	w.log.Info().Str("event_id", ev.ID).Str("kind", ev.Kind).Msg("processing event")
	if e := w.log.Debug(); e.Enabled() {
		e.Str("event_id", ev.ID).Interface("payload", ev.Payload).Msg("event content")
	}
	w.pipeline.Dispatch(w.ctx, ev)
	w.processed.Add(1)
	eventsProcessedTotal.WithLabelValues(ev.Kind).Inc()
}

// guard keeps a panic in one phase from terminating the loop.
func (w *Worker) guard(phase string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Err(handlerPanicError{where: phase, value: r}).Msg("failure in processing loop")
		}
	}()
	fn()
}
