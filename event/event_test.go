package event

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_TypedPrunesAbsentOptionals(t *testing.T) {
	p, err := Normalize(AssistantStart{AssistantID: "writer"})
	require.NoError(t, err)
	assert.Equal(t, Payload{"type": "assistant_start", "assistant_id": "writer"}, p)

	p, err = Normalize(AssistantStart{AssistantID: "writer", Name: Ptr("Writer")})
	require.NoError(t, err)
	assert.Equal(t, "Writer", p["name"])
	assert.NotContains(t, p, "assistant_turn_id")
}

func TestNormalize_ZeroValuesAreNotAbsent(t *testing.T) {
	p, err := Normalize(GroupDone{Mode: "group", Reason: "supervisor_stop", Rounds: 0})
	require.NoError(t, err)
	assert.Equal(t, json.Number("0"), p["rounds"])

	p, err = Normalize(ModelChunk{ModelID: "model::m", Chunk: ""})
	require.NoError(t, err)
	assert.Equal(t, "", p["chunk"])
}

func TestNormalize_Deterministic(t *testing.T) {
	ev := GroupRoundStart{Round: 2, MaxRounds: 5, SupervisorID: Ptr("rr")}
	first, err := Normalize(ev)
	require.NoError(t, err)
	second, err := Normalize(ev)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalize_TypedAndMapAgree(t *testing.T) {
	cases := []struct {
		name  string
		typed Event
		raw   map[string]any
	}{
		{
			name:  "model_done",
			typed: ModelDone{ModelID: "model::a", Content: "hi", ModelName: Ptr("A")},
			raw:   map[string]any{"type": "model_done", "model_id": "model::a", "content": "hi", "model_name": "A"},
		},
		{
			name:  "null optional",
			typed: ModelError{ModelID: "model::a", Error: "boom"},
			raw:   map[string]any{"type": "model_error", "model_id": "model::a", "error": "boom", "model_name": nil},
		},
		{
			name:  "integers",
			typed: ThinkingDuration{DurationMS: 1200},
			raw:   map[string]any{"type": "thinking_duration", "duration_ms": 1200},
		},
		{
			name: "compare results",
			typed: CompareComplete{ModelResults: map[string]ModelResult{
				"model::a": {Status: StatusDone, Content: Ptr("x")},
				"model::b": {Status: StatusError, Error: Ptr("boom")},
			}},
			raw: map[string]any{"type": "compare_complete", "model_results": map[string]any{
				"model::a": map[string]any{"status": "done", "content": "x"},
				"model::b": map[string]any{"status": "error", "error": "boom"},
			}},
		},
		{
			name:  "opaque payload",
			typed: Usage{Payload: map[string]any{"input_tokens": 3}, Participant: Ptr("model::a")},
			raw:   map[string]any{"type": "usage", "payload": map[string]any{"input_tokens": 3}, "participant": "model::a"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fromTyped, err := Normalize(tc.typed)
			require.NoError(t, err)
			fromMap, err := Normalize(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, fromTyped, fromMap)
		})
	}
}

func TestNormalize_UnknownType(t *testing.T) {
	for _, raw := range []map[string]any{
		{"chunk": "x"},
		{"type": ""},
		{"type": 42},
		{"type": "model_telepathy", "model_id": "m"},
	} {
		_, err := Normalize(raw)
		assert.ErrorIs(t, err, ErrUnknownEventType, "%v", raw)
	}
}

func TestNormalize_SchemaErrorNamesField(t *testing.T) {
	cases := []struct {
		raw   map[string]any
		field string
	}{
		{map[string]any{"type": "model_chunk", "model_id": "model::a"}, "chunk"},
		{map[string]any{"type": "model_chunk", "model_id": "model::a", "chunk": 7}, "chunk"},
		{map[string]any{"type": "group_round_start", "round": "one", "max_rounds": 2}, "round"},
		{map[string]any{"type": "context_info", "context_budget": 1.5}, "context_budget"},
		{map[string]any{"type": "assistant_start", "assistant_id": ""}, "assistant_id"},
	}

	for _, tc := range cases {
		_, err := Normalize(tc.raw)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchemaValidation)

		var serr *SchemaValidationError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, tc.field, serr.Field)
		assert.Equal(t, Type(tc.raw["type"].(string)), serr.Type)
	}
}

func TestNormalize_SchemaErrorIsDeterministic(t *testing.T) {
	raw := map[string]any{"type": "model_done"}
	for i := 0; i < 20; i++ {
		_, err := Normalize(raw)
		var serr *SchemaValidationError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, "content", serr.Field)
	}
}

func TestNormalize_ExtrasPassThrough(t *testing.T) {
	p, err := Normalize(map[string]any{"type": "assistant_chunk", "chunk": "hi", "trace_id": "t-1"})
	require.NoError(t, err)
	assert.Equal(t, "t-1", p["trace_id"])

	ev := AssistantChunk{Chunk: "hi"}
	ev.Extra = map[string]any{"trace_id": "t-1", "chunk": "override", "type": "other"}
	p, err = Normalize(ev)
	require.NoError(t, err)
	assert.Equal(t, Payload{"type": "assistant_chunk", "chunk": "hi", "trace_id": "t-1"}, p)
}

func TestNormalize_UnsupportedInput(t *testing.T) {
	_, err := Normalize("model_chunk")
	assert.Error(t, err)
}

func TestNormalize_NilTypedPointer(t *testing.T) {
	var chunk *AssistantChunk
	assert.NotPanics(t, func() {
		_, err := Normalize(chunk)
		assert.ErrorContains(t, err, "nil *event.AssistantChunk")
	})

	var ev Event = (*ModelDone)(nil)
	_, err := Marshal(ev)
	assert.Error(t, err)

	p, err := Normalize(&AssistantChunk{Chunk: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", p["chunk"])
}

func TestDecode(t *testing.T) {
	ev, err := Decode(map[string]any{"type": "group_action", "round": 1, "action": "continue", "target": "critic", "note": "x"})
	require.NoError(t, err)

	action, ok := ev.(GroupAction)
	require.True(t, ok)
	assert.Equal(t, 1, action.Round)
	assert.Equal(t, "continue", action.Action)
	require.NotNil(t, action.Target)
	assert.Equal(t, "critic", *action.Target)
	assert.Equal(t, map[string]any{"note": "x"}, action.Extra)
}

func TestDecode_PayloadRoundTrip(t *testing.T) {
	for _, ev := range []Event{
		AssistantMessageID{MessageID: "m-1"},
		GroupDone{Mode: "group", Reason: "max_rounds", Rounds: 2},
		SingleTurnComplete{Content: "done"},
		ToolCalls{Payload: []any{"lookup"}},
	} {
		p, err := Normalize(ev)
		require.NoError(t, err)
		back, err := Decode(p)
		require.NoError(t, err)
		again, err := Normalize(back)
		require.NoError(t, err)
		assert.Equal(t, p, again)
	}
}

func TestMarshal(t *testing.T) {
	data, err := Marshal(ModelStart{ModelID: "model::a", ModelName: "A"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"model_start","model_id":"model::a","model_name":"A"}`, string(data))
}

func TestRegistryCoversEveryType(t *testing.T) {
	all := []Type{
		TypeAssistantStart, TypeAssistantChunk, TypeAssistantDone, TypeAssistantMessageID,
		TypeGroupRoundStart, TypeGroupAction, TypeGroupDone,
		TypeModelStart, TypeModelChunk, TypeModelDone, TypeModelError, TypeCompareComplete,
		TypeUsage, TypeSources, TypeContextInfo, TypeThinkingDuration,
		TypeToolCalls, TypeToolResults, TypeSingleTurnComplete,
	}
	for _, typ := range all {
		assert.True(t, Registered(typ), typ)
	}
	assert.Len(t, Types(), len(all))
	assert.False(t, Registered("bogus"))
}

func TestPayloadType(t *testing.T) {
	assert.Equal(t, TypeUsage, Payload{"type": "usage"}.Type())
	assert.Equal(t, Type(""), Payload{}.Type())
}
