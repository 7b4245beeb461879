package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/chatmesh/core"
)

// Script describes one scripted MockModel generation.
type Script struct {
	Chunks    []string            // Raw partial fragments, emitted in order
	Delay     time.Duration       // Pause before each chunk
	Err       error               // Sent after the chunks instead of a final response
	Hang      bool                // Block after the chunks until ctx is done
	Usage     *TokenUsage         // Attached to the final response
	ToolCalls []core.FunctionCall // Attached to the final response
	Sources   []map[string]any    // Attached to the final response as DataParts
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
type MockModel struct {
	info Info

	mu        sync.Mutex
	script    *Script
	responses map[string]Script
	requests  []Request
}

// NewMockModel constructs a MockModel answering "Mock response to: <prompt>"
// unless a script or canned response matches.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]Script),
	}
}

// NewScriptedModel returns a MockModel that always plays s.
func NewScriptedModel(name string, s Script) *MockModel {
	m := NewMockModel(name, "mock")
	m.SetScript(s)
	return m
}

// AddResponse registers a canned completion for an input prompt. The
// response is streamed word by word.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = Script{Chunks: SplitWords(response)}
}

// SetScript makes every following generation play s.
func (m *MockModel) SetScript(s Script) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = &s
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

func (m *MockModel) pick(req Request) Script {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.script != nil {
		return *m.script
	}
	prompt := LastUserText(req)
	if s, ok := m.responses[prompt]; ok {
		return s
	}
	return Script{Chunks: SplitWords(fmt.Sprintf("Mock response to: %s", prompt))}
}

// Generate implements Model. Without req.Stream only the final response is sent.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)
	script := m.pick(req)

	go func() {
		defer close(respCh)
		defer close(errCh)

		send := func(r Response) bool {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return false
			case respCh <- r:
				return true
			}
		}

		var full strings.Builder
		for _, c := range script.Chunks {
			if script.Delay > 0 {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case <-time.After(script.Delay):
				}
			}
			full.WriteString(c)
			if req.Stream && !send(Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, c)}) {
				return
			}
		}

		if script.Hang {
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		}
		if script.Err != nil {
			errCh <- script.Err
			return
		}

		parts := []core.Part{core.TextPart{Text: full.String()}}
		for _, fc := range script.ToolCalls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
		}
		for _, src := range script.Sources {
			parts = append(parts, core.DataPart{Data: src})
		}
		finish := "stop"
		if len(script.ToolCalls) > 0 {
			finish = "tool_calls"
		}
		send(Response{
			Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
			FinishReason: finish,
			Usage:        script.Usage,
		})
	}()
	return respCh, errCh
}

// SplitWords splits s into chunks that keep each word's trailing space, so
// concatenating the chunks yields s again.
func SplitWords(s string) []string {
	var chunks []string
	for s != "" {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			chunks = append(chunks, s)
			break
		}
		chunks = append(chunks, s[:i+1])
		s = s[i+1:]
	}
	return chunks
}
