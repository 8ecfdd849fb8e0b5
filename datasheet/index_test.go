package datasheet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `# Contoso Tents

## TrailMaster X4

The TrailMaster X4 is a four person tent with a waterproof rating of 2000mm
and a packed weight of 4.2 kg. Ideal for family camping.

## Alpine Explorer

The Alpine Explorer is a two person mountaineering tent rated for four season
use, with aluminum poles and a 3000mm waterproof rating.

## SkyView 2-Person

The SkyView has a panoramic mesh roof for stargazing and weighs 3.1 kg.
`

func TestLoadTextChunksWithHeadings(t *testing.T) {
	ix := NewIndex()

	n, err := ix.LoadText("tents.md", sampleDoc)
	require.NoError(t, err)
	assert.Equal(t, n, ix.Len())
	assert.GreaterOrEqual(t, n, 3)
}

func TestSearchRanksRelevantChunksFirst(t *testing.T) {
	ix := NewIndex()
	_, err := ix.LoadText("tents.md", sampleDoc)
	require.NoError(t, err)

	results, err := ix.Search("waterproof rating of the Alpine Explorer", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Contains(t, results[0].Content, "Alpine Explorer")
	assert.Equal(t, "tents.md", results[0].Metadata["source"])
	assert.Greater(t, results[0].Score, 0.0)
}

func TestSearchNoMatches(t *testing.T) {
	ix := NewIndex()
	_, err := ix.LoadText("tents.md", sampleDoc)
	require.NoError(t, err)

	results, err := ix.Search("quantum chromodynamics", 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = ix.Search("", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchLimit(t *testing.T) {
	ix := NewIndex()
	_, err := ix.LoadText("tents.md", sampleDoc)
	require.NoError(t, err)

	results, err := ix.Search("tent person", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.md")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))

	ix := NewIndex()
	n, err := ix.LoadFile(path)
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	_, err = ix.LoadFile(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

func TestLoadTextEmptyDocument(t *testing.T) {
	ix := NewIndex()
	_, err := ix.LoadText("empty.md", "   \n\n  ")
	assert.Error(t, err)
}
