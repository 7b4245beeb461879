package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	data := struct {
		Name   string
		Others []string
	}{Name: "critic", Others: []string{"writer", "editor"}}
	out, err = RenderTemplate(`You are {{upper .Name}} with {{join ", " .Others}}.`, data)
	require.NoError(t, err)
	assert.Equal(t, "You are CRITIC with writer, editor.", out)

	out, err = RenderTemplate(`{{default "anon" .Missing}}`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "anon", out)
}

func TestRenderTemplate_ParseError(t *testing.T) {
	_, err := RenderTemplate("{{ .Name", nil)
	assert.Error(t, err)
}
