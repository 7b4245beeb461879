package agent

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/participant"
)

// ErrUnknownParticipant is returned when a reference names no configured
// assistant or model.
var ErrUnknownParticipant = errors.New("unknown participant")

// DefaultModelInstruction is used for raw model participants.
const DefaultModelInstruction = "You are {{.Name}}, a helpful AI assistant."

// Resolver maps participant references to runnable participants.
type Resolver interface {
	Resolve(ref participant.Ref) (*Participant, error)
}

// Assistant configures an assistant persona.
type Assistant struct {
	ID            string
	Name          string
	Model         string // Id of a registered model
	Instruction   Instruction
	ContextBudget int
}

// ModelEntry configures a raw model.
type ModelEntry struct {
	ID            string
	Model         model.Model
	ContextBudget int
}

// Registry is an in-memory Resolver. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	assistants map[string]Assistant
	models     map[string]ModelEntry
	maxHistory int
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	MaxHistoryMessages int
}

// NewRegistry creates an empty Registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{MaxHistoryMessages: DefaultMaxHistoryMessages}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		assistants: map[string]Assistant{},
		models:     map[string]ModelEntry{},
		maxHistory: opts.MaxHistoryMessages,
	}
}

// RegisterModel adds a raw model.
func (r *Registry) RegisterModel(e ModelEntry) error {
	if e.ID == "" || e.Model == nil {
		return errors.New("model entry needs an id and a model")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[e.ID] = e
	return nil
}

// RegisterAssistant adds an assistant persona. Its model must be registered.
func (r *Registry) RegisterAssistant(a Assistant) error {
	if a.ID == "" {
		return errors.New("assistant needs an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.models[a.Model]; !ok {
		return fmt.Errorf("assistant %s: %w: model %q", a.ID, ErrUnknownParticipant, a.Model)
	}
	r.assistants[a.ID] = a
	return nil
}

// Resolve implements Resolver.
func (r *Registry) Resolve(ref participant.Ref) (*Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch ref.Kind {
	case participant.Model:
		e, ok := r.models[ref.Value]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, ref.Token())
		}
		name := e.Model.Info().Name
		if name == "" {
			name = e.ID
		}
		return &Participant{
			Ref:                ref,
			Name:               name,
			Model:              e.Model,
			Instruction:        NewInstructionFromText(DefaultModelInstruction),
			ContextBudget:      e.ContextBudget,
			MaxHistoryMessages: r.maxHistory,
		}, nil
	default:
		a, ok := r.assistants[ref.Value]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, ref.Token())
		}
		e := r.models[a.Model]
		inst := a.Instruction
		if inst.IsZero() {
			inst = NewInstructionFromText(DefaultModelInstruction)
		}
		budget := a.ContextBudget
		if budget == 0 {
			budget = e.ContextBudget
		}
		return &Participant{
			Ref:                ref,
			Name:               a.Name,
			Model:              e.Model,
			Instruction:        inst,
			ContextBudget:      budget,
			MaxHistoryMessages: r.maxHistory,
		}, nil
	}
}

// ResolveAll resolves refs in order.
func ResolveAll(r Resolver, refs []participant.Ref) ([]*Participant, error) {
	out := make([]*Participant, 0, len(refs))
	for _, ref := range refs {
		p, err := r.Resolve(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Tokens lists every resolvable participant token in lexical order.
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tokens := make([]string, 0, len(r.models)+len(r.assistants))
	for id := range r.models {
		tokens = append(tokens, participant.NewModel(id).Token())
	}
	for id := range r.assistants {
		tokens = append(tokens, participant.NewAssistant(id).Token())
	}
	sort.Strings(tokens)
	return tokens
}
