package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatmesh/event"
)

func TestNormalizeStream(t *testing.T) {
	in := strings.Join([]string{
		`{"type":"model_start","model_id":"model::a","model_name":"A"}`,
		``,
		`{"type":"model_done","model_id":"model::a","content":"hi","model_name":null,"trace":"t1"}`,
		`{"type":"thinking_duration","duration_ms":1200}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, normalizeStream(strings.NewReader(in), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"type":"model_start","model_id":"model::a","model_name":"A"}`, lines[0])
	assert.JSONEq(t, `{"type":"model_done","model_id":"model::a","content":"hi","trace":"t1"}`, lines[1])
	assert.JSONEq(t, `{"type":"thinking_duration","duration_ms":1200}`, lines[2])
}

func TestNormalizeStream_UnknownTypeStops(t *testing.T) {
	in := `{"type":"usage","payload":{}}` + "\n" + `{"type":"model_telepathy"}` + "\n" + `{"type":"usage","payload":{}}`

	var out bytes.Buffer
	err := normalizeStream(strings.NewReader(in), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, event.ErrUnknownEventType)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
}

func TestNormalizeStream_SchemaError(t *testing.T) {
	err := normalizeStream(strings.NewReader(`{"type":"context_info","context_budget":1.5}`), &bytes.Buffer{})
	assert.ErrorIs(t, err, event.ErrSchemaValidation)
}

func TestNormalizeStream_InvalidJSON(t *testing.T) {
	err := normalizeStream(strings.NewReader(`{"type":`), &bytes.Buffer{})
	assert.ErrorContains(t, err, "line 1")
}

func TestNormalizeCommand(t *testing.T) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetIn(strings.NewReader(`{"type":"bogus"}`))
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"normalize"})

	assert.Error(t, root.Execute())
	assert.Empty(t, out.String())
}
