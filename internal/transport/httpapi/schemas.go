package httpapi

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Request bodies are schema-checked before decoding so malformed input is
// rejected with a uniform error instead of a partial zero-value struct.

const joinSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["request_id", "name"],
  "properties": {
    "request_id": {"type": "string", "minLength": 1, "maxLength": 128},
    "actor_id": {"type": "string", "maxLength": 64},
    "name": {"type": "string", "minLength": 1, "maxLength": 64},
    "kind": {"enum": ["", "human", "agent", "npc", "object"]}
  },
  "additionalProperties": false
}`

const moveSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["request_id", "to"],
  "properties": {
    "request_id": {"type": "string", "minLength": 1, "maxLength": 128},
    "to": {
      "type": "array",
      "items": {"type": "integer"},
      "minItems": 2,
      "maxItems": 2
    },
    "mode": {"enum": ["", "walk", "direct"]}
  },
  "additionalProperties": false
}`

const interactSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["request_id", "skill", "action"],
  "properties": {
    "request_id": {"type": "string", "minLength": 1, "maxLength": 128},
    "skill": {"type": "string", "minLength": 1, "maxLength": 64},
    "action": {"type": "string", "minLength": 1, "maxLength": 64},
    "target_id": {"type": "string", "maxLength": 64},
    "params": {
      "type": "object",
      "additionalProperties": {"type": "string", "maxLength": 256}
    }
  },
  "additionalProperties": false
}`

const saySchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["request_id", "text"],
  "properties": {
    "request_id": {"type": "string", "minLength": 1, "maxLength": 128},
    "text": {"type": "string", "minLength": 1, "maxLength": 1024}
  },
  "additionalProperties": false
}`

var (
	joinSchema     = mustCompile("join.schema.json", joinSchemaJSON)
	moveSchema     = mustCompile("move.schema.json", moveSchemaJSON)
	interactSchema = mustCompile("interact.schema.json", interactSchemaJSON)
	saySchema      = mustCompile("say.schema.json", saySchemaJSON)
)

func mustCompile(name, src string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, strings.NewReader(src)); err != nil {
		panic(err)
	}
	return c.MustCompile(name)
}
