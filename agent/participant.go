package agent

import (
	"fmt"
	"strings"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/participant"
)

// DefaultMaxHistoryMessages bounds the history sent to a model.
const DefaultMaxHistoryMessages = 20

// Participant is a resolved conversation participant ready to generate.
type Participant struct {
	Ref                participant.Ref
	Name               string
	Model              model.Model
	Instruction        Instruction
	ContextBudget      int // Tokens available to the participant, 0 if unknown
	MaxHistoryMessages int
}

// Token returns the participant token.
func (p *Participant) Token() string { return p.Ref.Token() }

// DisplayName returns Name, falling back to the reference value.
func (p *Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Ref.Value
}

// BuildRequest assembles the streaming model request for p. Messages p wrote
// itself become assistant content; messages of other participants are
// attributed by name and passed as user content.
func (p *Participant) BuildRequest(history []core.Message, data TemplateData) (model.Request, error) {
	data.Name = p.DisplayName()
	data.Participant = p.Token()

	instructions, err := p.Instruction.Resolve(data)
	if err != nil {
		return model.Request{}, fmt.Errorf("instruction for %s: %w", p.Token(), err)
	}

	limit := p.MaxHistoryMessages
	if limit == 0 {
		limit = DefaultMaxHistoryMessages
	}
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	contents := make([]core.Content, 0, len(history))
	for _, m := range history {
		switch {
		case m.Role == core.RoleUser:
			contents = append(contents, core.NewTextContent(core.RoleUser, m.Content))
		case m.Participant == p.Token():
			contents = append(contents, core.NewTextContent(core.RoleAssistant, m.Content))
		default:
			speaker := m.Name
			if speaker == "" {
				speaker = m.Participant
			}
			contents = append(contents, core.NewTextContent(core.RoleUser, fmt.Sprintf("[%s]: %s", speaker, m.Content)))
		}
	}

	return model.Request{
		Instructions: strings.TrimSpace(instructions),
		Contents:     contents,
		Stream:       true,
	}, nil
}
