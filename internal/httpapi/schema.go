package httpapi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"webhookd/internal/worker"
)

// envelopeSchema describes the fields of a GitLab hook that the handlers rely
// on. Unknown fields are allowed; GitLab adds new ones regularly.
const envelopeSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "object_kind": {"type": "string"},
    "event_type": {"type": "string"},
    "event_name": {"type": "string"},
    "ref": {"type": "string"},
    "user_name": {"type": "string"},
    "user": {"type": "object"},
    "project": {
      "type": "object",
      "properties": {
        "id": {"type": "integer"},
        "path_with_namespace": {"type": "string"}
      }
    },
    "object_attributes": {"type": "object"},
    "changes": {"type": "object"},
    "commits": {"type": "array", "items": {"type": "object"}}
  }
}`

const envelopeSchemaURL = "https://webhookd.local/schemas/gitlab-envelope.json"

var envelope = mustCompileEnvelope()

func mustCompileEnvelope() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(envelopeSchema))
	if err != nil {
		panic(fmt.Sprintf("envelope schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(envelopeSchemaURL, doc); err != nil {
		panic(fmt.Sprintf("envelope schema: %v", err))
	}
	return c.MustCompile(envelopeSchemaURL)
}

// decodeEnvelope parses and validates a webhook body. Numbers are kept as
// json.Number so large ids survive untouched.
func decodeEnvelope(body []byte) (worker.Payload, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := envelope.Validate(inst); err != nil {
		return nil, fmt.Errorf("unexpected webhook payload: %w", err)
	}
	obj, ok := inst.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("webhook payload must be a JSON object")
	}
	return worker.Payload(obj), nil
}
