package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contoso/salesagent/core"
	"github.com/contoso/salesagent/model"
	"github.com/contoso/salesagent/session"
	"github.com/contoso/salesagent/tool"
)

// runThrough drives an agent run the way the runner does: every emitted event
// is appended to the session store, state deltas are applied, and a resume
// signal is sent so the agent can continue.
func runThrough(t *testing.T, a *SalesAgent, store core.SessionStore, sessionID, userText string) []core.Event {
	t.Helper()

	userEv := core.NewUserMessageEvent("run-1", userText)
	require.NoError(t, store.AppendEvent(sessionID, userEv))

	sess, err := store.Get(sessionID)
	require.NoError(t, err)

	emit := make(chan core.Event, 64)
	resume := make(chan struct{}, 16)

	rc := core.NewRunContext(
		context.Background(),
		sessionID, "run-1",
		core.AgentInfo{Name: a.Name(), Type: "model"},
		core.NewTextContent("user", userText),
		10,
		emit, resume,
		sess, store, nil, nil, nil,
	)

	var events []core.Event
	done := make(chan error, 1)
	go func() {
		defer close(emit)
		done <- a.Run(rc)
	}()

	for ev := range emit {
		events = append(events, ev)
		if !ev.IsPartial() {
			require.NoError(t, store.AppendEvent(sessionID, ev))
			if len(ev.Actions.StateDelta) > 0 {
				require.NoError(t, store.ApplyDelta(sessionID, ev.Actions.StateDelta))
			}
			resume <- struct{}{}
		}
	}
	require.NoError(t, <-done)

	return events
}

func TestAgentSimpleTurn(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("hello", "Hi, how can I help with sales data?")

	a := New("sales-agent", llm, func(o *Options) {
		o.EnableStreaming = false
		o.Instruction = NewInstructionFromText("You are a sales assistant.")
	})

	store := session.NewInMemoryStore()
	events := runThrough(t, a, store, "s1", "hello")

	require.Len(t, events, 1)
	assert.Equal(t, "Hi, how can I help with sales data?", events[0].Content.Text())
	require.NotNil(t, events[0].TurnComplete)
	assert.True(t, *events[0].TurnComplete)
}

func TestAgentStreamingEmitsPartials(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddResponse("hi", "ok")

	a := New("sales-agent", llm, func(o *Options) {
		o.Instruction = NewInstructionFromText("You are a sales assistant.")
	})

	store := session.NewInMemoryStore()
	events := runThrough(t, a, store, "s1", "hi")

	require.Len(t, events, 3)
	assert.True(t, events[0].IsPartial())
	assert.True(t, events[1].IsPartial())
	assert.False(t, events[2].IsPartial())
	assert.Equal(t, "ok", events[2].Content.Text())
}

// bufferedModel returns its responses pre-buffered on already-closed channels,
// the state a fast adapter leaves behind before the agent starts reading.
type bufferedModel struct {
	responses []model.Response
}

func (m bufferedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, len(m.responses))
	errCh := make(chan error, 1)
	for _, r := range m.responses {
		respCh <- r
	}
	close(errCh)
	close(respCh)
	return respCh, errCh
}

func (m bufferedModel) Info() model.Info {
	return model.Info{Name: "buffered", Provider: "mock", SupportsTools: true}
}

func TestAgentDrainsBufferedResponsesAfterErrChannelCloses(t *testing.T) {
	llm := bufferedModel{responses: []model.Response{
		{Partial: true, Content: core.NewTextContent("assistant", "Total ")},
		{Partial: true, Content: core.NewTextContent("assistant", "revenue")},
		{Partial: false, Content: core.NewTextContent("assistant", "Total revenue is 42."), FinishReason: "stop"},
	}}

	a := New("sales-agent", llm, func(o *Options) {
		o.Instruction = NewInstructionFromText("You are a sales assistant.")
	})

	store := session.NewInMemoryStore()
	events := runThrough(t, a, store, "s1", "total revenue?")

	require.Len(t, events, 3)
	assert.True(t, events[0].IsPartial())
	assert.True(t, events[1].IsPartial())

	last := events[2]
	assert.False(t, last.IsPartial())
	assert.Equal(t, "Total revenue is 42.", last.Content.Text())
	require.NotNil(t, last.TurnComplete)
	assert.True(t, *last.TurnComplete)
}

func TestAgentToolCallLoop(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddToolCall(model.MockToolCall{
		Trigger:   "total revenue?",
		ID:        "call-1",
		Name:      "sum_revenue",
		Arguments: `{}`,
		FollowUp:  "Total revenue is 42.",
	})

	sum := tool.NewFunctionTool("sum_revenue", "sums revenue",
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			toolCtx.SetState("queries_run", 1)
			return "42", nil
		},
	)

	a := New("sales-agent", llm, func(o *Options) {
		o.EnableStreaming = false
		o.Instruction = NewInstructionFromText("You are a sales assistant.")
		o.Tools = []tool.Tool{sum}
	})

	store := session.NewInMemoryStore()
	events := runThrough(t, a, store, "s1", "total revenue?")

	// tool call, tool response, final answer
	require.Len(t, events, 3)
	require.Len(t, events[0].GetFunctionCalls(), 1)
	assert.Equal(t, "sum_revenue", events[0].GetFunctionCalls()[0].Name)

	responses := events[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.Equal(t, "call-1", responses[0].ID)
	assert.Equal(t, 1, events[1].Actions.StateDelta["queries_run"])

	assert.Equal(t, "Total revenue is 42.", events[2].Content.Text())

	sess, err := store.Get("s1")
	require.NoError(t, err)
	v, ok := sess.GetState("queries_run")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestAgentModelCallLimit(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddToolCall(model.MockToolCall{
		Trigger:   "loop",
		ID:        "call-1",
		Name:      "missing_tool",
		Arguments: `{}`,
	})

	a := New("sales-agent", llm, func(o *Options) {
		o.EnableStreaming = false
		o.Instruction = NewInstructionFromText("You are a sales assistant.")
	})

	store := session.NewInMemoryStore()
	require.NoError(t, store.AppendEvent("s1", core.NewUserMessageEvent("run-1", "loop")))
	sess, err := store.Get("s1")
	require.NoError(t, err)

	emit := make(chan core.Event, 64)
	resume := make(chan struct{}, 64)

	rc := core.NewRunContext(
		context.Background(),
		"s1", "run-1",
		core.AgentInfo{Name: a.Name(), Type: "model"},
		core.NewTextContent("user", "loop"),
		2, // cap model calls
		emit, resume,
		sess, store, nil, nil, nil,
	)

	done := make(chan error, 1)
	go func() {
		defer close(emit)
		done <- a.Run(rc)
	}()

	for ev := range emit {
		if !ev.IsPartial() {
			_ = store.AppendEvent("s1", ev)
			resume <- struct{}{}
		}
	}
	err = <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max model calls")
}

func TestAgentToolErrorSurfacesAsResponse(t *testing.T) {
	llm := model.NewMockModel("mock", "mock")
	llm.AddToolCall(model.MockToolCall{
		Trigger:   "break",
		ID:        "call-1",
		Name:      "broken",
		Arguments: `{}`,
		FollowUp:  "Something went wrong with the tool.",
	})

	broken := tool.NewFunctionTool("broken", "always panics",
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			panic("boom")
		},
	)

	a := New("sales-agent", llm, func(o *Options) {
		o.EnableStreaming = false
		o.Instruction = NewInstructionFromText("You are a sales assistant.")
		o.Tools = []tool.Tool{broken}
	})

	store := session.NewInMemoryStore()
	events := runThrough(t, a, store, "s1", "break")

	require.Len(t, events, 3)
	responses := events[1].GetFunctionResponses()
	require.Len(t, responses, 1)
	assert.True(t, strings.Contains(responses[0].Error, "panic"))
}
