package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("rows so far: {{.last_query_row_count}}", map[string]any{
		"last_query_row_count": 12,
	})
	require.NoError(t, err)
	assert.Equal(t, "rows so far: 12", out)
}

func TestRenderTemplatePlainTextPassesThrough(t *testing.T) {
	text := "no markers here, even with {single} braces"
	out, err := RenderTemplate(text, map[string]any{"unused": true})
	require.NoError(t, err)
	assert.Equal(t, text, out)
}

func TestRenderTemplateFuncs(t *testing.T) {
	out, err := RenderTemplate(`{{upper .region}} / {{join ", " .years}}`, map[string]any{
		"region": "europe",
		"years":  []any{2022, 2023},
	})
	require.NoError(t, err)
	assert.Equal(t, "EUROPE / 2022, 2023", out)
}

func TestRenderTemplateBadSyntax(t *testing.T) {
	_, err := RenderTemplate("{{.unclosed", nil)
	require.Error(t, err)
}
