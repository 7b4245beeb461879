package event

// Type is the wire discriminant of an event variant.
type Type string

// Assistant turn lifecycle.
const (
	TypeAssistantStart     Type = "assistant_start"
	TypeAssistantChunk     Type = "assistant_chunk"
	TypeAssistantDone      Type = "assistant_done"
	TypeAssistantMessageID Type = "assistant_message_id"
)

// Group-round control.
const (
	TypeGroupRoundStart Type = "group_round_start"
	TypeGroupAction     Type = "group_action"
	TypeGroupDone       Type = "group_done"
)

// Per-model lifecycle.
const (
	TypeModelStart      Type = "model_start"
	TypeModelChunk      Type = "model_chunk"
	TypeModelDone       Type = "model_done"
	TypeModelError      Type = "model_error"
	TypeCompareComplete Type = "compare_complete"
)

// Cross-cutting metadata.
const (
	TypeUsage              Type = "usage"
	TypeSources            Type = "sources"
	TypeContextInfo        Type = "context_info"
	TypeThinkingDuration   Type = "thinking_duration"
	TypeToolCalls          Type = "tool_calls"
	TypeToolResults        Type = "tool_results"
	TypeSingleTurnComplete Type = "single_turn_complete"
)

// Event is one variant of the closed orchestration event union. The set is
// closed by the unexported extra method; every variant lives in this package.
type Event interface {
	Type() Type
	extra() map[string]any
}

// Extensions carries fields unknown to a variant's schema. They are passed
// through normalization unchanged and never override known fields.
type Extensions struct {
	Extra map[string]any `json:"-"`
}

func (e Extensions) extra() map[string]any { return e.Extra }

// Ptr returns a pointer to v. Optional event fields are pointers so that an
// absent value can be told apart from a zero value.
func Ptr[T any](v T) *T { return &v }

// AssistantStart opens an assistant sub-stream.
type AssistantStart struct {
	Extensions
	AssistantID     string  `json:"assistant_id"`
	AssistantTurnID *string `json:"assistant_turn_id,omitempty"`
	Name            *string `json:"name,omitempty"`
}

// AssistantChunk carries filtered assistant text.
type AssistantChunk struct {
	Extensions
	Chunk string `json:"chunk"`
}

// AssistantDone closes an assistant sub-stream.
type AssistantDone struct {
	Extensions
}

// AssistantMessageID reports the persisted id of the assistant message.
type AssistantMessageID struct {
	Extensions
	MessageID string `json:"message_id"`
}

// GroupRoundStart opens a supervisor-directed round. MaxRounds is 0 when the
// turn has no round limit.
type GroupRoundStart struct {
	Extensions
	Round          int     `json:"round"`
	MaxRounds      int     `json:"max_rounds"`
	SupervisorID   *string `json:"supervisor_id,omitempty"`
	SupervisorName *string `json:"supervisor_name,omitempty"`
}

// GroupAction describes the supervisor's decision after a round.
type GroupAction struct {
	Extensions
	Round          int     `json:"round"`
	Action         string  `json:"action"`
	Target         *string `json:"target,omitempty"`
	SupervisorID   *string `json:"supervisor_id,omitempty"`
	SupervisorName *string `json:"supervisor_name,omitempty"`
}

// GroupDone ends a group turn.
type GroupDone struct {
	Extensions
	Mode   string `json:"mode"`
	Reason string `json:"reason"`
	Rounds int    `json:"rounds"`
}

// ModelStart opens a model sub-stream.
type ModelStart struct {
	Extensions
	ModelID   string `json:"model_id"`
	ModelName string `json:"model_name"`
}

// ModelChunk carries filtered model text.
type ModelChunk struct {
	Extensions
	ModelID string `json:"model_id"`
	Chunk   string `json:"chunk"`
}

// ModelDone closes a model sub-stream with its full filtered content.
type ModelDone struct {
	Extensions
	ModelID   string  `json:"model_id"`
	Content   string  `json:"content"`
	ModelName *string `json:"model_name,omitempty"`
}

// ModelError closes a model sub-stream that failed.
type ModelError struct {
	Extensions
	ModelID   string  `json:"model_id"`
	Error     string  `json:"error"`
	ModelName *string `json:"model_name,omitempty"`
}

// Result status values used in ModelResult.
const (
	StatusDone  = "done"
	StatusError = "error"
)

// ModelResult is the terminal state of one model in a comparison.
type ModelResult struct {
	Status    string  `json:"status"`
	Content   *string `json:"content,omitempty"`
	Error     *string `json:"error,omitempty"`
	ModelName *string `json:"model_name,omitempty"`
}

// CompareComplete reports every model's terminal result.
type CompareComplete struct {
	Extensions
	ModelResults map[string]ModelResult `json:"model_results"`
}

// Usage carries opaque token accounting.
type Usage struct {
	Extensions
	Payload     any     `json:"payload"`
	Participant *string `json:"participant,omitempty"`
}

// Sources carries opaque retrieval sources.
type Sources struct {
	Extensions
	Payload     any     `json:"payload"`
	Participant *string `json:"participant,omitempty"`
}

// ToolCalls carries opaque tool invocation requests.
type ToolCalls struct {
	Extensions
	Payload     any     `json:"payload"`
	Participant *string `json:"participant,omitempty"`
}

// ToolResults carries opaque tool results.
type ToolResults struct {
	Extensions
	Payload     any     `json:"payload"`
	Participant *string `json:"participant,omitempty"`
}

// ContextInfo reports the context budget available to a participant.
type ContextInfo struct {
	Extensions
	ContextBudget int     `json:"context_budget"`
	Participant   *string `json:"participant,omitempty"`
}

// ThinkingDuration reports how long a participant spent inside a think span.
type ThinkingDuration struct {
	Extensions
	DurationMS  int64   `json:"duration_ms"`
	Participant *string `json:"participant,omitempty"`
}

// SingleTurnComplete ends a single-participant turn.
type SingleTurnComplete struct {
	Extensions
	Content string `json:"content"`
}

func (AssistantStart) Type() Type     { return TypeAssistantStart }
func (AssistantChunk) Type() Type     { return TypeAssistantChunk }
func (AssistantDone) Type() Type      { return TypeAssistantDone }
func (AssistantMessageID) Type() Type { return TypeAssistantMessageID }
func (GroupRoundStart) Type() Type    { return TypeGroupRoundStart }
func (GroupAction) Type() Type        { return TypeGroupAction }
func (GroupDone) Type() Type          { return TypeGroupDone }
func (ModelStart) Type() Type         { return TypeModelStart }
func (ModelChunk) Type() Type         { return TypeModelChunk }
func (ModelDone) Type() Type          { return TypeModelDone }
func (ModelError) Type() Type         { return TypeModelError }
func (CompareComplete) Type() Type    { return TypeCompareComplete }
func (Usage) Type() Type              { return TypeUsage }
func (Sources) Type() Type            { return TypeSources }
func (ToolCalls) Type() Type          { return TypeToolCalls }
func (ToolResults) Type() Type        { return TypeToolResults }
func (ContextInfo) Type() Type        { return TypeContextInfo }
func (ThinkingDuration) Type() Type   { return TypeThinkingDuration }
func (SingleTurnComplete) Type() Type { return TypeSingleTurnComplete }
