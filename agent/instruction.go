package agent

import "github.com/hupe1980/chatmesh/internal/util"

// TemplateData is the data instruction templates are rendered with.
type TemplateData struct {
	Name        string   // Display name of the speaking participant
	Participant string   // Participant token
	Others      []string // Display names of the other participants
	Mode        string   // Turn mode (single, group, compare)
	Round       int      // Current group round, 0 outside group mode
	SessionID   string
}

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(TemplateData) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(TemplateData) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(d TemplateData) (string, error) { return f(d) }

// Instruction represents either a static instruction template or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a template string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(TemplateData) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a template string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether no instruction was configured.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text, rendering the template or invoking
// the provider.
func (i Instruction) Resolve(d TemplateData) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(d)
	}
	return util.RenderTemplate(i.text, d)
}
