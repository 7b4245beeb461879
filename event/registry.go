package event

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// variant is one registry entry: the JSON Schema for a variant's fields, the
// set of field names the schema knows, and a decoder into the typed struct.
type variant struct {
	schema *gojsonschema.Schema
	fields map[string]struct{}
	decode func(data []byte, extra map[string]any) (Event, error)
}

var registry = map[Type]variant{}

// extensible is satisfied by pointers to event structs (via Extensions).
type extensible[T any] interface {
	*T
	setExtra(map[string]any)
}

func (e *Extensions) setExtra(m map[string]any) { e.Extra = m }

// register adds variant T with the given JSON Schema. It panics on a
// malformed schema or a duplicate type since both are programming errors.
func register[T Event, PT extensible[T]](schemaJSON string) {
	var zero T
	typ := zero.Type()
	if _, dup := registry[typ]; dup {
		panic(fmt.Sprintf("event: duplicate registration for %s", typ))
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("event: invalid schema for %s: %v", typ, err))
	}

	var doc struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("event: invalid schema for %s: %v", typ, err))
	}
	fields := make(map[string]struct{}, len(doc.Properties))
	for name := range doc.Properties {
		fields[name] = struct{}{}
	}

	registry[typ] = variant{
		schema: schema,
		fields: fields,
		decode: func(data []byte, extra map[string]any) (Event, error) {
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				return nil, err
			}
			PT(&v).setExtra(extra)
			return v, nil
		},
	}
}

// Types returns every registered event type in lexical order.
func Types() []Type {
	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Registered reports whether t is a known event type.
func Registered(t Type) bool {
	_, ok := registry[t]
	return ok
}

const (
	optString  = `{"type": ["string", "null"]}`
	reqString  = `{"type": "string"}`
	reqInteger = `{"type": "integer"}`

	// opaqueSchema is shared by the metadata variants whose payload is not
	// interpreted by the pipeline.
	opaqueSchema = `{
		"type": "object",
		"required": ["payload"],
		"properties": {
			"payload": {},
			"participant": ` + optString + `
		}
	}`
)

func init() {
	register[AssistantStart](`{
		"type": "object",
		"required": ["assistant_id"],
		"properties": {
			"assistant_id": {"type": "string", "minLength": 1},
			"assistant_turn_id": ` + optString + `,
			"name": ` + optString + `
		}
	}`)
	register[AssistantChunk](`{
		"type": "object",
		"required": ["chunk"],
		"properties": {"chunk": ` + reqString + `}
	}`)
	register[AssistantDone](`{"type": "object", "properties": {}}`)
	register[AssistantMessageID](`{
		"type": "object",
		"required": ["message_id"],
		"properties": {"message_id": {"type": "string", "minLength": 1}}
	}`)

	register[GroupRoundStart](`{
		"type": "object",
		"required": ["round", "max_rounds"],
		"properties": {
			"round": {"type": "integer", "minimum": 1},
			"max_rounds": {"type": "integer", "minimum": 0},
			"supervisor_id": ` + optString + `,
			"supervisor_name": ` + optString + `
		}
	}`)
	register[GroupAction](`{
		"type": "object",
		"required": ["round", "action"],
		"properties": {
			"round": {"type": "integer", "minimum": 0},
			"action": {"type": "string", "minLength": 1},
			"target": ` + optString + `,
			"supervisor_id": ` + optString + `,
			"supervisor_name": ` + optString + `
		}
	}`)
	register[GroupDone](`{
		"type": "object",
		"required": ["mode", "reason", "rounds"],
		"properties": {
			"mode": ` + reqString + `,
			"reason": ` + reqString + `,
			"rounds": {"type": "integer", "minimum": 0}
		}
	}`)

	register[ModelStart](`{
		"type": "object",
		"required": ["model_id", "model_name"],
		"properties": {
			"model_id": {"type": "string", "minLength": 1},
			"model_name": ` + reqString + `
		}
	}`)
	register[ModelChunk](`{
		"type": "object",
		"required": ["model_id", "chunk"],
		"properties": {
			"model_id": {"type": "string", "minLength": 1},
			"chunk": ` + reqString + `
		}
	}`)
	register[ModelDone](`{
		"type": "object",
		"required": ["model_id", "content"],
		"properties": {
			"model_id": {"type": "string", "minLength": 1},
			"content": ` + reqString + `,
			"model_name": ` + optString + `
		}
	}`)
	register[ModelError](`{
		"type": "object",
		"required": ["model_id", "error"],
		"properties": {
			"model_id": {"type": "string", "minLength": 1},
			"error": ` + reqString + `,
			"model_name": ` + optString + `
		}
	}`)
	register[CompareComplete](`{
		"type": "object",
		"required": ["model_results"],
		"properties": {
			"model_results": {
				"type": "object",
				"additionalProperties": {
					"type": "object",
					"required": ["status"],
					"properties": {
						"status": {"enum": ["done", "error"]},
						"content": ` + optString + `,
						"error": ` + optString + `,
						"model_name": ` + optString + `
					}
				}
			}
		}
	}`)

	register[Usage](opaqueSchema)
	register[Sources](opaqueSchema)
	register[ToolCalls](opaqueSchema)
	register[ToolResults](opaqueSchema)
	register[ContextInfo](`{
		"type": "object",
		"required": ["context_budget"],
		"properties": {
			"context_budget": ` + reqInteger + `,
			"participant": ` + optString + `
		}
	}`)
	register[ThinkingDuration](`{
		"type": "object",
		"required": ["duration_ms"],
		"properties": {
			"duration_ms": {"type": "integer", "minimum": 0},
			"participant": ` + optString + `
		}
	}`)
	register[SingleTurnComplete](`{
		"type": "object",
		"required": ["content"],
		"properties": {"content": ` + reqString + `}
	}`)
}
