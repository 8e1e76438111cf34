package worker

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// State represents the lifecycle state of the worker.
type State int32

const (
	StateRunning State = iota
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Payload is the structured document delivered with an event.
type Payload map[string]any

// Str returns the string value at key, or "" when absent or not a string.
func (p Payload) Str(key string) string {
	s, _ := p[key].(string)
	return s
}

// Object returns a deep copy of the nested document at key, or nil. Events
// are shared by every handler in the pipeline, so callers never get a live
// reference into the payload.
func (p Payload) Object(key string) Payload {
	switch v := p[key].(type) {
	case map[string]any:
		return cloneMap(v)
	case Payload:
		return cloneMap(v)
	}
	return nil
}

func cloneMap(m map[string]any) Payload {
	out := make(Payload, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(cloneMap(t))
	case Payload:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	}
	return v
}

// Decode converts the payload into a typed value through its JSON form.
func (p Payload) Decode(v any) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Event is a tagged payload queued for asynchronous processing.
type Event struct {
	ID         string
	Kind       string
	Payload    Payload
	ReceivedAt time.Time
}

// NewEvent stamps an event with a fresh ID and receive time.
func NewEvent(kind string, payload Payload) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}
}

// DeferredCheck is a pending verification that an eventually consistent
// condition for Key has become true.
type DeferredCheck struct {
	Key         string    `json:"key"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Tries       int       `json:"tries"`
}

func (c *DeferredCheck) due(now time.Time) bool { return !now.Before(c.ScheduledAt) }

func (c *DeferredCheck) exhausted(maxTries int) bool { return c.Tries >= maxTries }

// Stats is a point-in-time view of the worker for status reporting.
type Stats struct {
	State          State
	QueueDepth     int
	Processed      uint64
	Dropped        uint64
	HandlerNames   []string
	DeferredChecks []DeferredCheck
	StartedAt      time.Time
}
