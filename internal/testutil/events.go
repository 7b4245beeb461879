package testutil

import (
	"github.com/hupe1980/chatmesh/agent"
	"github.com/hupe1980/chatmesh/event"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/participant"
)

// Drain reads ch until it is closed.
func Drain(ch <-chan event.Payload) []event.Payload {
	var out []event.Payload
	for p := range ch {
		out = append(out, p)
	}
	return out
}

// Types returns the type of every payload in order.
func Types(payloads []event.Payload) []event.Type {
	out := make([]event.Type, len(payloads))
	for i, p := range payloads {
		out[i] = p.Type()
	}
	return out
}

// OfType keeps the payloads of the given types, preserving order.
func OfType(payloads []event.Payload, types ...event.Type) []event.Payload {
	want := make(map[event.Type]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []event.Payload
	for _, p := range payloads {
		if want[p.Type()] {
			out = append(out, p)
		}
	}
	return out
}

// Field collects the string value of key from every payload of type typ.
func Field(payloads []event.Payload, typ event.Type, key string) []string {
	var out []string
	for _, p := range OfType(payloads, typ) {
		if s, ok := p[key].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ForModel keeps the model_* payloads of one model token.
func ForModel(payloads []event.Payload, token string) []event.Payload {
	var out []event.Payload
	for _, p := range payloads {
		if p["model_id"] == token {
			out = append(out, p)
		}
	}
	return out
}

// ModelParticipant returns a raw model participant playing s.
func ModelParticipant(id string, s model.Script) *agent.Participant {
	return &agent.Participant{
		Ref:   participant.NewModel(id),
		Name:  id,
		Model: model.NewScriptedModel(id, s),
	}
}

// AssistantParticipant returns an assistant participant playing s.
func AssistantParticipant(id, name string, s model.Script) *agent.Participant {
	return &agent.Participant{
		Ref:         participant.NewAssistant(id),
		Name:        name,
		Model:       model.NewScriptedModel(id+"-model", s),
		Instruction: agent.NewInstructionFromText("You are {{.Name}}."),
	}
}
