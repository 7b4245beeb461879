package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// Payload is the canonical wire form of an event: absent optionals pruned,
// "type" set, numbers carried as json.Number.
type Payload map[string]any

// Type returns the event discriminant, or "" when it is missing.
func (p Payload) Type() Type {
	s, _ := p["type"].(string)
	return Type(s)
}

// Normalize converts a typed Event or a loosely typed map into its canonical
// Payload. Maps are checked against the registry and the variant's schema
// first; typed events are valid by construction.
//
// Normalizing the same logical event twice yields equal payloads whether it
// arrives typed or as a map.
func Normalize(input any) (Payload, error) {
	switch v := input.(type) {
	case Event:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, fmt.Errorf("event: cannot normalize nil %T", input)
		}
		return canonical(v)
	case Payload:
		return normalizeMap(v)
	case map[string]any:
		return normalizeMap(v)
	default:
		return nil, fmt.Errorf("event: cannot normalize %T", input)
	}
}

// Decode turns a loosely typed map back into its typed Event. Unknown keys
// end up in the event's Extra.
func Decode(m map[string]any) (Event, error) {
	return decodeMap(m)
}

// Marshal normalizes input and encodes the canonical payload as JSON.
func Marshal(input any) ([]byte, error) {
	p, err := Normalize(input)
	if err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

func normalizeMap(m map[string]any) (Payload, error) {
	ev, err := decodeMap(m)
	if err != nil {
		return nil, err
	}
	return canonical(ev)
}

func decodeMap(m map[string]any) (Event, error) {
	raw, ok := m["type"]
	if !ok {
		return nil, fmt.Errorf("%w: missing type", ErrUnknownEventType)
	}
	name, ok := raw.(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %v", ErrUnknownEventType, raw)
	}
	typ := Type(name)
	v, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, name)
	}

	if err := validate(typ, v.schema, m); err != nil {
		return nil, err
	}

	known := make(map[string]any, len(v.fields))
	var extra map[string]any
	for k, val := range m {
		if k == "type" {
			continue
		}
		if _, ok := v.fields[k]; ok {
			known[k] = val
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = val
	}

	data, err := json.Marshal(known)
	if err != nil {
		return nil, &SchemaValidationError{Type: typ, Reason: err.Error()}
	}
	ev, err := v.decode(data, extra)
	if err != nil {
		serr := &SchemaValidationError{Type: typ, Reason: err.Error()}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			serr.Field = typeErr.Field
		}
		return nil, serr
	}
	return ev, nil
}

func validate(typ Type, schema *gojsonschema.Schema, m map[string]any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(m))
	if err != nil {
		return &SchemaValidationError{Type: typ, Reason: err.Error()}
	}
	if result.Valid() {
		return nil
	}

	// gojsonschema reports errors in map iteration order.
	errs := result.Errors()
	sort.SliceStable(errs, func(i, j int) bool { return fieldOf(errs[i]) < fieldOf(errs[j]) })

	return &SchemaValidationError{Type: typ, Field: fieldOf(errs[0]), Reason: errs[0].Description()}
}

// fieldOf names the offending field of a schema error. Missing required
// properties are reported against the root, so the property name is taken
// from the error details.
func fieldOf(re gojsonschema.ResultError) string {
	if re.Type() == "required" {
		if p, ok := re.Details()["property"].(string); ok {
			return p
		}
	}
	if f := re.Field(); f != "(root)" {
		return f
	}
	return ""
}

// canonical renders ev through its JSON field set and merges the extension
// keys the variant does not know.
func canonical(ev Event) (Payload, error) {
	typ := ev.Type()
	v, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, typ)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("event: encode %s: %w", typ, err)
	}
	out := Payload{}
	if err := decodeNumbers(data, &out); err != nil {
		return nil, fmt.Errorf("event: encode %s: %w", typ, err)
	}

	for k, val := range ev.extra() {
		if k == "type" {
			continue
		}
		if _, ok := v.fields[k]; ok {
			continue
		}
		c, err := canonicalValue(val)
		if err != nil {
			return nil, fmt.Errorf("event: encode %s extra %q: %w", typ, k, err)
		}
		out[k] = c
	}
	out["type"] = string(typ)
	return out, nil
}

func canonicalValue(val any) (any, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	var out any
	if err := decodeNumbers(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
