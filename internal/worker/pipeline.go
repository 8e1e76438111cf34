package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Handler processes one event. Handlers filter by event kind themselves and
// must tolerate events they do not care about.
type Handler interface {
	Name() string
	Process(ctx context.Context, ev Event) error
}

type funcHandler struct {
	name string
	fn   func(ctx context.Context, ev Event) error
}

func (h funcHandler) Name() string                                { return h.name }
func (h funcHandler) Process(ctx context.Context, ev Event) error { return h.fn(ctx, ev) }

// HandlerFunc adapts a function to the Handler interface.
func HandlerFunc(name string, fn func(ctx context.Context, ev Event) error) Handler {
	return funcHandler{name: name, fn: fn}
}

// Result is the outcome of one handler invocation.
type Result struct {
	Handler  string
	Err      error
	Duration time.Duration
}

func (r Result) OK() bool { return r.Err == nil }

// Pipeline is an ordered list of handlers. Every handler sees every event;
// a failing handler never prevents the rest from running.
type Pipeline struct {
	handlers []Handler
	log      zerolog.Logger
}

func NewPipeline(log zerolog.Logger, handlers ...Handler) *Pipeline {
	p := &Pipeline{log: log}
	for _, h := range handlers {
		p.Register(h)
	}
	return p
}

// Register appends h. Call before the worker starts.
func (p *Pipeline) Register(h Handler) {
	if h == nil {
		return
	}
	p.handlers = append(p.handlers, h)
}

// Names lists registered handlers in dispatch order.
func (p *Pipeline) Names() []string {
	out := make([]string, 0, len(p.handlers))
	for _, h := range p.handlers {
		out = append(out, h.Name())
	}
	return out
}

// Dispatch runs ev through every handler in registration order and returns
// one Result per handler.
func (p *Pipeline) Dispatch(ctx context.Context, ev Event) []Result {
	results := make([]Result, 0, len(p.handlers))
	for _, h := range p.handlers {
		name := h.Name()
		start := time.Now()
		err := invoke(ctx, h, ev)
		res := Result{Handler: name, Err: err, Duration: time.Since(start)}
		results = append(results, res)

		handlerDuration.WithLabelValues(name).Observe(res.Duration.Seconds())
		if err != nil {
			handlerResultsTotal.WithLabelValues(name, "error").Inc()
			p.log.Error().Err(err).
				Str("handler", name).
				Str("event_id", ev.ID).
				Str("kind", ev.Kind).
				Msg("handler failed")
			continue
		}
		handlerResultsTotal.WithLabelValues(name, "ok").Inc()
		p.log.Debug().Str("handler", name).Str("event_id", ev.ID).Dur("dur", res.Duration).Msg("handler done")
	}
	return results
}

func invoke(ctx context.Context, h Handler, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = handlerPanicError{where: "handler " + h.Name(), value: r}
		}
	}()
	return h.Process(ctx, ev)
}
