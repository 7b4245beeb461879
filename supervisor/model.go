package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/internal/util"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/participant"
	"github.com/hupe1980/chatmesh/thinkfilter"
)

// DefaultModelPrompt is the instruction template of a ModelSupervisor.
const DefaultModelPrompt = `You moderate a group conversation between {{len .Participants}} participants.
Participants:
{{range .Participants}}- {{.Token}} ({{.Name}})
{{end}}
Decide who should speak next, or stop once the user's request has been answered.
Reply with a single JSON object and nothing else:
{"action": "continue" | "stop", "next": "<participant token>", "reason": "<short reason>"}`

// ModelOptions configures a ModelSupervisor.
type ModelOptions struct {
	ID     string
	Name   string
	Prompt string // Instruction template, see DefaultModelPrompt
}

// ModelSupervisor asks a model for each decision.
type ModelSupervisor struct {
	llm  model.Model
	opts ModelOptions
}

// NewModelSupervisor creates a supervisor backed by llm.
func NewModelSupervisor(llm model.Model, optFns ...func(o *ModelOptions)) *ModelSupervisor {
	opts := ModelOptions{ID: "model", Name: llm.Info().Name, Prompt: DefaultModelPrompt}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelSupervisor{llm: llm, opts: opts}
}

// Info implements Supervisor.
func (m *ModelSupervisor) Info() Info { return Info{ID: m.opts.ID, Name: m.opts.Name} }

type promptParticipant struct {
	Token string
	Name  string
}

type reply struct {
	Action string `json:"action"`
	Next   string `json:"next"`
	Reason string `json:"reason"`
}

// Next implements Supervisor.
func (m *ModelSupervisor) Next(ctx context.Context, s State) (Decision, error) {
	ps := make([]promptParticipant, 0, len(s.Participants))
	for _, p := range s.Participants {
		name := s.Names[p]
		if name == "" {
			name = p.Value
		}
		ps = append(ps, promptParticipant{Token: p.Token(), Name: name})
	}
	instructions, err := util.RenderTemplate(m.opts.Prompt, map[string]any{"Participants": ps, "Round": s.Round, "MaxRounds": s.MaxRounds})
	if err != nil {
		return Decision{}, fmt.Errorf("supervisor prompt: %w", err)
	}

	var transcript strings.Builder
	fmt.Fprintf(&transcript, "User request: %s\n", s.Prompt)
	for _, r := range s.History {
		fmt.Fprintf(&transcript, "\nRound %d, %s (%s):\n%s\n", r.Round, r.Participant.Token(), r.Name, r.Content)
	}
	fmt.Fprintf(&transcript, "\n%d round(s) completed.", s.Round)

	text, err := m.generate(ctx, model.Request{
		Instructions: instructions,
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, transcript.String())},
	})
	if err != nil {
		return Decision{}, err
	}
	return parseReply(text)
}

func (m *ModelSupervisor) generate(ctx context.Context, req model.Request) (string, error) {
	respCh, errCh := m.llm.Generate(ctx, req)
	var final string
	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !r.Partial {
				final = r.Content.Text()
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", fmt.Errorf("supervisor model: %w", err)
			}
		}
	}
	return final, nil
}

// parseReply extracts the JSON decision from model output, ignoring
// reasoning spans and surrounding prose.
func parseReply(text string) (Decision, error) {
	f := thinkfilter.New()
	visible := f.Feed(text) + f.Flush()

	start, end := strings.Index(visible, "{"), strings.LastIndex(visible, "}")
	if start < 0 || end < start {
		return Decision{}, fmt.Errorf("%w: no JSON object in %q", ErrInvalidDecision, visible)
	}
	var r reply
	if err := json.Unmarshal([]byte(visible[start:end+1]), &r); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}

	switch Action(strings.ToLower(strings.TrimSpace(r.Action))) {
	case ActionStop:
		return Stop(r.Reason), nil
	case ActionContinue:
		next, err := participant.Parse(strings.TrimSpace(r.Next))
		if err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
		}
		return Decision{Action: ActionContinue, Next: next, Reason: r.Reason}, nil
	default:
		return Decision{}, fmt.Errorf("%w: action %q", ErrInvalidDecision, r.Action)
	}
}
