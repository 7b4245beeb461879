package participant

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ModelPrefix marks a raw model reference.
	ModelPrefix = "model::"
	// AssistantPrefix marks an explicit assistant reference. Bare ids without a
	// recognized prefix are assistants as well.
	AssistantPrefix = "assistant::"
)

// ErrInvalidParticipant is returned for malformed participant tokens.
var ErrInvalidParticipant = errors.New("invalid participant")

// Kind distinguishes assistant personas from raw models.
type Kind int

const (
	// Assistant is an agent-configured persona.
	Assistant Kind = iota
	// Model is a raw model without persona configuration.
	Model
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case Assistant:
		return "assistant"
	case Model:
		return "model"
	default:
		return "unknown"
	}
}

// Ref identifies one conversation participant. Refs are comparable values
// and safe to use as map keys.
type Ref struct {
	Kind  Kind
	Value string
}

// NewAssistant returns a Ref for the assistant with the given id.
func NewAssistant(id string) Ref { return Ref{Kind: Assistant, Value: id} }

// NewModel returns a Ref for the model with the given id.
func NewModel(id string) Ref { return Ref{Kind: Model, Value: id} }

// Parse converts a raw token into a Ref.
//
// "model::<id>" yields a Model ref, "assistant::<id>" and bare "<id>" yield an
// Assistant ref. Prefix matching is case-sensitive.
func Parse(raw string) (Ref, error) {
	if strings.TrimSpace(raw) == "" {
		return Ref{}, fmt.Errorf("%w: empty token", ErrInvalidParticipant)
	}

	for _, p := range []struct {
		prefix string
		kind   Kind
	}{
		{ModelPrefix, Model},
		{AssistantPrefix, Assistant},
	} {
		if rest, ok := strings.CutPrefix(raw, p.prefix); ok {
			if strings.TrimSpace(rest) == "" {
				return Ref{}, fmt.Errorf("%w: %q has an empty %s id", ErrInvalidParticipant, raw, p.kind)
			}
			return Ref{Kind: p.kind, Value: rest}, nil
		}
	}

	return Ref{Kind: Assistant, Value: raw}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// static tables.
func MustParse(raw string) Ref {
	ref, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return ref
}

// ParseAll parses every token in raw. The error names the index of the first
// malformed entry.
func ParseAll(raw []string) ([]Ref, error) {
	refs := make([]Ref, 0, len(raw))
	for i, r := range raw {
		ref, err := Parse(r)
		if err != nil {
			return nil, fmt.Errorf("participant %d: %w", i, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Token returns the persisted form of the ref. Assistants are written bare
// unless their id would itself be mistaken for a prefixed token.
func (r Ref) Token() string {
	if r.Kind == Model {
		return ModelPrefix + r.Value
	}
	if strings.HasPrefix(r.Value, ModelPrefix) || strings.HasPrefix(r.Value, AssistantPrefix) {
		return AssistantPrefix + r.Value
	}
	return r.Value
}

// String implements fmt.Stringer.
func (r Ref) String() string { return r.Token() }

// IsZero reports whether r is the zero Ref.
func (r Ref) IsZero() bool { return r.Value == "" }

// MarshalText implements encoding.TextMarshaler.
func (r Ref) MarshalText() ([]byte, error) {
	if r.IsZero() {
		return nil, fmt.Errorf("%w: zero ref", ErrInvalidParticipant)
	}
	return []byte(r.Token()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ref) UnmarshalText(text []byte) error {
	ref, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = ref
	return nil
}
