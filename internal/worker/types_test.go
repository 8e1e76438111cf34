package worker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayload_ObjectReturnsCopy(t *testing.T) {
	p := Payload{
		"project": map[string]any{
			"id":     7,
			"labels": []any{"a", map[string]any{"name": "b"}},
			"owner":  map[string]any{"username": "alice"},
		},
	}

	obj := p.Object("project")
	require.NotNil(t, obj)
	obj["id"] = 8
	obj["owner"].(map[string]any)["username"] = "mallory"
	obj["labels"].([]any)[1].(map[string]any)["name"] = "z"

	orig := p["project"].(map[string]any)
	assert.Equal(t, 7, orig["id"])
	assert.Equal(t, "alice", orig["owner"].(map[string]any)["username"])
	assert.Equal(t, "b", orig["labels"].([]any)[1].(map[string]any)["name"])

	assert.Nil(t, p.Object("missing"))
	assert.Nil(t, Payload{"project": "not an object"}.Object("project"))
}

// A handler editing its view of a nested document does not leak the change
// to handlers registered after it.
func TestPayload_ObjectIsolatesHandlers(t *testing.T) {
	var seen string
	first := HandlerFunc("first", func(_ context.Context, ev Event) error {
		ev.Payload.Object("user")["username"] = "changed"
		return nil
	})
	second := HandlerFunc("second", func(_ context.Context, ev Event) error {
		seen = ev.Payload.Object("user").Str("username")
		return nil
	})
	NewPipeline(zerolog.Nop(), first, second).Dispatch(context.Background(),
		NewEvent("push", Payload{"user": map[string]any{"username": "alice"}}))
	assert.Equal(t, "alice", seen)
}
