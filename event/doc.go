// Package event defines the typed orchestration event protocol and its
// canonical wire form.
//
// Every variant is a struct implementing Event. Normalize turns a typed event
// or a loosely typed map into a Payload:
//
//	p, err := event.Normalize(event.ModelChunk{ModelID: "model::gpt-4o", Chunk: "hi"})
//	// p == Payload{"type": "model_chunk", "model_id": "model::gpt-4o", "chunk": "hi"}
//
// Maps are validated against the variant's JSON Schema. A missing or
// unregistered "type" fails with ErrUnknownEventType; a malformed field fails
// with a *SchemaValidationError. Keys a variant does not know are carried in
// Extensions.Extra and passed through unchanged.
package event
