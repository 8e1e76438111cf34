package worker

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultPollInterval  = 200 * time.Millisecond
	defaultRetryInterval = 5 * time.Second
	defaultMaxTries      = 10
)

// Config encapsulates all tunables for the worker and its registry.
type Config struct {
	// PollInterval bounds the dequeue wait; it is the scheduling quantum for
	// deferred checks and bounds shutdown latency.
	PollInterval time.Duration
	// RetryInterval is the fixed delay between deferred check evaluations.
	RetryInterval time.Duration
	// MaxTries is the number of evaluations after which a deferred check is
	// abandoned.
	MaxTries int
	// MaxQueueDepth caps the event queue (0 = unbounded). When full the
	// oldest event is dropped; producers never block.
	MaxQueueDepth int

	Logger    zerolog.Logger
	Publisher NoticePublisher
	// Now overrides the clock (tests).
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.MaxTries <= 0 {
		c.MaxTries = defaultMaxTries
	}
	if c.MaxQueueDepth < 0 {
		c.MaxQueueDepth = 0
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
