package stages

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Each stage holds the model to a strict JSON response contract instead
// of prefix-matching free text. The schemas below are compiled once at
// construction and enforced on every reply.

const classificationSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["category", "priority", "decision", "confidence", "reasoning"],
  "properties": {
    "category": {
      "type": "string",
      "enum": ["network", "hardware", "software", "access", "email", "other"]
    },
    "priority": {
      "type": "string",
      "enum": ["critical", "high", "medium", "low"]
    },
    "decision": {
      "type": "string",
      "enum": ["auto_resolve", "agent_resolution", "human_escalation", "information_request"]
    },
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "resolution_path": {"type": "string"},
    "reasoning": {"type": "string"}
  },
  "additionalProperties": false
}`

const planSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["summary", "steps"],
  "properties": {
    "summary": {"type": "string"},
    "requires_approval": {"type": "boolean"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["action", "tool"],
        "properties": {
          "action": {"type": "string"},
          "tool": {"type": "string"},
          "params": {
            "type": "object",
            "additionalProperties": {"type": "string"}
          }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

const approvalSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["approved", "reason"],
  "properties": {
    "approved": {"type": "boolean"},
    "reason": {"type": "string"}
  },
  "additionalProperties": false
}`

// compileSchema compiles an inline schema document.
func compileSchema(name, doc string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()

	parsed, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s schema: %w", name, err)
	}
	url := "https://deskops.io/schemas/" + name + ".json"
	if err := compiler.AddResource(url, parsed); err != nil {
		return nil, fmt.Errorf("add %s schema resource: %w", name, err)
	}

	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return compiled, nil
}

// decodeValidated extracts the JSON document from a model reply,
// validates it against the schema, and unmarshals it into out. Failures
// at any step come back as an UnparseableError for the stage.
func decodeValidated(stage string, schema *jsonschema.Schema, reply string, out any) error {
	raw := extractJSON(reply)
	if raw == "" {
		return &UnparseableError{Stage: stage, Err: fmt.Errorf("no JSON object in reply")}
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return &UnparseableError{Stage: stage, Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		return &UnparseableError{Stage: stage, Err: err}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &UnparseableError{Stage: stage, Err: err}
	}
	return nil
}

// extractJSON returns the outermost JSON object in a reply, tolerating
// surrounding prose and markdown code fences.
func extractJSON(reply string) string {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return ""
	}
	return reply[start : end+1]
}
