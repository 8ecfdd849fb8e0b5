package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contoso/salesagent/core"
	"github.com/contoso/salesagent/datasheet"
	"github.com/contoso/salesagent/salesdata"
)

type memArtifactStore struct {
	data map[string][]byte
}

func (s *memArtifactStore) Save(sessionID, artifactID string, data []byte) error {
	if s.data == nil {
		s.data = map[string][]byte{}
	}
	s.data[sessionID+"/"+artifactID] = data
	return nil
}

func (s *memArtifactStore) Get(sessionID, artifactID string) ([]byte, error) {
	return s.data[sessionID+"/"+artifactID], nil
}

func (s *memArtifactStore) List(sessionID string) ([]string, error) {
	var ids []string
	for k := range s.data {
		ids = append(ids, k)
	}
	return ids, nil
}

func (s *memArtifactStore) Delete(sessionID, artifactID string) error {
	delete(s.data, sessionID+"/"+artifactID)
	return nil
}

func newTestToolContext(t *testing.T, docs core.DocumentStore) (*core.ToolContext, *memArtifactStore) {
	t.Helper()
	artifacts := &memArtifactStore{}
	sess := core.NewSession("sess-1")
	rc := core.NewRunContext(
		context.Background(),
		"sess-1", "run-1",
		core.AgentInfo{Name: "sales-agent", Type: "model"},
		core.NewTextContent("user", "hi"),
		0,
		nil, nil,
		sess, nil, artifacts, docs, nil,
	)
	return core.NewToolContext(rc, "fc-1"), artifacts
}

func TestFunctionToolValidation(t *testing.T) {
	tool := NewFunctionTool("echo", "echoes input",
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			return args["text"], nil
		},
		func(o *FunctionToolOptions) {
			o.Parameters = map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{"type": "string"},
				},
				"required": []string{"text"},
			}
		},
	)

	toolCtx, _ := newTestToolContext(t, nil)

	result, err := tool.Call(toolCtx, map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", result)

	_, err = tool.Call(toolCtx, map[string]any{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "echo", toolErr.Tool)
}

func TestFunctionToolExecutionError(t *testing.T) {
	tool := NewFunctionTool("fail", "always fails",
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			return nil, assert.AnError
		},
	)

	toolCtx, _ := newTestToolContext(t, nil)
	_, err := tool.Call(toolCtx, map[string]any{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

func TestFunctionToolFromStructSchema(t *testing.T) {
	type args struct {
		Query string `json:"query" description:"SQL to run"`
		Limit *int   `json:"limit,omitempty"`
	}

	tool, err := NewFunctionToolFromStruct("q", "runs a query",
		func(toolCtx *core.ToolContext, a args) (any, error) {
			return a.Query, nil
		},
	)
	require.NoError(t, err)

	schema := tool.Parameters()
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	assert.Contains(t, props, "limit")
	assert.Contains(t, schema["required"], "query")
	assert.NotContains(t, schema["required"], "limit")

	toolCtx, _ := newTestToolContext(t, nil)
	result, err := tool.Call(toolCtx, map[string]any{"query": "SELECT 1"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", result)
}

func newToolTestStore(t *testing.T) *salesdata.Store {
	t.Helper()
	path := t.TempDir() + "/sales.db"

	rw, err := salesdata.New(path, func(o *salesdata.Options) {
		o.ReadOnly = false
	})
	require.NoError(t, err)
	require.NoError(t, salesdata.EnsureSchema(context.Background(), rw.DB()))
	require.NoError(t, salesdata.SeedIfEmpty(context.Background(), rw.DB()))
	require.NoError(t, rw.Close())

	store, err := salesdata.New(path, func(o *salesdata.Options) {
		o.MaxRows = 100
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSalesQueryTool(t *testing.T) {
	store := newToolTestStore(t)

	tool, err := NewSalesQueryTool(store)
	require.NoError(t, err)
	assert.Equal(t, SalesQueryToolName, tool.Name())

	toolCtx, _ := newTestToolContext(t, nil)

	result, err := tool.Call(toolCtx, map[string]any{
		"query": "SELECT region, SUM(revenue) AS total FROM sales_data GROUP BY region ORDER BY total DESC",
	})
	require.NoError(t, err)

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"region", "total"}, payload["columns"])
	assert.Equal(t, len(salesdata.Regions), payload["row_count"])

	rowCount, ok := toolCtx.GetState("last_query_row_count")
	require.True(t, ok)
	assert.Equal(t, len(salesdata.Regions), rowCount)
}

func TestSalesQueryToolReturnsSQLErrorAsPayload(t *testing.T) {
	store := newToolTestStore(t)

	tool, err := NewSalesQueryTool(store)
	require.NoError(t, err)

	toolCtx, _ := newTestToolContext(t, nil)

	result, err := tool.Call(toolCtx, map[string]any{
		"query": "SELECT nope FROM sales_data",
	})
	require.NoError(t, err)

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, payload, "error")
}

func TestSalesQueryToolRejectsWrites(t *testing.T) {
	store := newToolTestStore(t)

	tool, err := NewSalesQueryTool(store)
	require.NoError(t, err)

	toolCtx, _ := newTestToolContext(t, nil)

	result, err := tool.Call(toolCtx, map[string]any{
		"query": "DELETE FROM sales_data",
	})
	require.NoError(t, err)

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, payload, "error")
}

func TestSalesQueryToolSavesCSVArtifact(t *testing.T) {
	store := newToolTestStore(t)

	tool, err := NewSalesQueryTool(store, func(o *SalesQueryOptions) {
		o.CSVArtifactThreshold = 1
	})
	require.NoError(t, err)

	toolCtx, artifacts := newTestToolContext(t, nil)

	_, err = tool.Call(toolCtx, map[string]any{
		"query": "SELECT region FROM sales_data GROUP BY region",
	})
	require.NoError(t, err)

	data, err := artifacts.Get("sess-1", "sales-query-fc-1.csv")
	require.NoError(t, err)
	assert.Contains(t, string(data), "region")
}

func TestDatasheetSearchTool(t *testing.T) {
	idx := datasheet.NewIndex()
	_, err := idx.LoadText("tents", `# TrailMaster X4 Tent

A four person tent with a waterproof rainfly and aluminum poles.

# Alpine Explorer Tent

A two person tent built for alpine conditions with a reinforced floor.`)
	require.NoError(t, err)

	tool, err := NewDatasheetSearchTool(idx)
	require.NoError(t, err)
	assert.Equal(t, DatasheetSearchToolName, tool.Name())

	toolCtx, _ := newTestToolContext(t, idx)

	result, err := tool.Call(toolCtx, map[string]any{"query": "waterproof rainfly"})
	require.NoError(t, err)

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	matches, ok := payload["matches"].([]map[string]any)
	require.True(t, ok)
	require.NotEmpty(t, matches)
	assert.Contains(t, matches[0]["content"], "TrailMaster")
}

func TestDatasheetSearchToolNoMatches(t *testing.T) {
	idx := datasheet.NewIndex()
	_, err := idx.LoadText("tents", "# TrailMaster X4 Tent\n\nA four person tent.")
	require.NoError(t, err)

	tool, err := NewDatasheetSearchTool(idx)
	require.NoError(t, err)

	toolCtx, _ := newTestToolContext(t, idx)

	result, err := tool.Call(toolCtx, map[string]any{"query": "zzzz"})
	require.NoError(t, err)

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Empty(t, payload["matches"])
}
