// Package worker runs the single background consumer that turns queued
// webhook events into issue-tracker updates. It is structured into small
// files by concern:
//
//   - types.go: Event, Payload, State and the DeferredCheck record.
//   - config.go: Config and package defaults; withDefaults applies them.
//   - errors.go: error types and helpers (IsHandlerPanic, ErrNotFound).
//   - queue.go: the unbounded multi-producer FIFO feeding the consumer.
//   - pipeline.go: ordered handler dispatch with per-handler isolation.
//   - registry.go: deferred retry registry and its sweep state machine.
//   - worker.go: Worker lifecycle (New/Stop) and the consumer loop.
//   - notices.go: lifecycle notices for observers (NoticePublisher).
//   - metrics.go: Prometheus collectors.
//
// Ownership: producers only ever call Worker.Enqueue. The pipeline and the
// registry are touched exclusively by the consumer goroutine, so neither
// carries a lock. Handlers that need to schedule deferred checks receive the
// Registry through the Scheduler interface and call it from Process, which
// always runs on the consumer goroutine.
package worker
