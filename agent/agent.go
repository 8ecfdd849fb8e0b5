package agent

import (
	"fmt"

	"github.com/contoso/salesagent/core"
	"github.com/contoso/salesagent/internal/util"
	"github.com/contoso/salesagent/logging"
	"github.com/contoso/salesagent/model"
	"github.com/contoso/salesagent/tool"
)

// Options configures a SalesAgent instance.
//
// Use functional options with New to override defaults.
type Options struct {
	Instruction        Instruction
	EnableStreaming    bool
	MaxHistoryMessages int
	Executor           FunctionExecutor
	Tools              []tool.Tool
	Logger             logging.Logger
}

// SalesAgent drives the conversation loop against a language model: it
// resolves instructions, assembles conversation history, streams model
// output as events and executes any requested tool calls before handing
// control back to the model for the next turn.
type SalesAgent struct {
	name               string
	llm                model.Model
	instruction        Instruction
	tools              map[string]tool.Tool
	enableStreaming    bool
	maxHistoryMessages int
	executor           FunctionExecutor
	logger             logging.Logger
}

// New creates a sales agent with sensible defaults: streaming enabled, a
// 20-message history window and a parallel tool executor that preserves
// call order.
func New(name string, llm model.Model, optFns ...func(o *Options)) *SalesAgent {
	opts := Options{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful assistant.", name)),
		EnableStreaming:    true,
		MaxHistoryMessages: 20,
		Executor: NewParallelFunctionExecutor(FunctionExecutorConfig{
			PreserveOrder:  true,
			LogStartEvents: true,
		}),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &SalesAgent{
		name:               name,
		llm:                llm,
		instruction:        opts.Instruction,
		tools:              make(map[string]tool.Tool),
		enableStreaming:    opts.EnableStreaming,
		maxHistoryMessages: opts.MaxHistoryMessages,
		executor:           opts.Executor,
		logger:             opts.Logger,
	}

	a.RegisterTools(opts.Tools...)

	return a
}

// Name returns the agent's display name.
func (a *SalesAgent) Name() string { return a.name }

// Model returns the underlying language model.
func (a *SalesAgent) Model() model.Model { return a.llm }

// RegisterTool adds a function tool to the agent's capability set.
func (a *SalesAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools to the agent's capability set.
func (a *SalesAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// HasTool checks if a tool is registered with the agent.
func (a *SalesAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// ListTools returns the names of all registered tools.
func (a *SalesAgent) ListTools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	return names
}

// Tools returns a copy of the registered tool registry.
func (a *SalesAgent) Tools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}
	return tools
}

// Run executes the request -> model -> (optional tool loop) cycle until the
// model produces a final response. Events are emitted through the run
// context; the runner persists them and signals resume after each append.
func (a *SalesAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.name, "run", runCtx.RunID)

	for {
		last, err := a.runOnce(runCtx)
		if err != nil {
			errEv := core.NewErrorEvent(runCtx.RunID, err)
			errEv.Author = a.name
			_ = runCtx.EmitEvent(errEv)
			return err
		}
		if last == nil {
			return nil
		}
		// A function response means the model gets another turn.
		if len(last.GetFunctionResponses()) > 0 {
			continue
		}
		if last.IsPartial() {
			runCtx.LogWarn("agent.run.dangling_partial", "agent", a.name)
			return nil
		}
		if last.IsFinalResponse() {
			runCtx.LogDebug("agent.run.complete", "agent", a.name, "model_calls", runCtx.Limiter.Count())
			return nil
		}
	}
}

// runOnce performs one model turn (including any tool executions) and returns
// the last emitted Event. A nil return signals termination.
func (a *SalesAgent) runOnce(runCtx *core.RunContext) (*core.Event, error) {
	// Refresh session snapshot so the request sees the latest conversation
	// (including tool responses appended by the runner).
	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			runCtx.LogWarn("agent.session.refresh.error", "agent", a.name, "error", err.Error())
		}
	}

	if err := runCtx.Limiter.Increment(); err != nil {
		return nil, err
	}

	req, err := a.buildRequest(runCtx)
	if err != nil {
		return nil, err
	}

	respCh, errCh := a.llm.Generate(runCtx.Context, req)

	var lastEvent *core.Event

loop:
	for {
		select {
		case <-runCtx.Context.Done():
			return lastEvent, runCtx.Context.Err()
		case resp, ok := <-respCh:
			if !ok {
				break loop
			}

			ev := core.NewEvent(runCtx.RunID, a.name)
			ev.Content = &resp.Content
			partial := resp.Partial
			ev.Partial = &partial

			if !resp.Partial && len(ev.GetFunctionCalls()) == 0 {
				complete := true
				ev.TurnComplete = &complete
			}

			lastEvent = &ev

			if err := runCtx.EmitEvent(ev); err != nil {
				return lastEvent, err
			}

			// Wait for session persistence (runner sends resume after append).
			if !ev.IsPartial() {
				if err := runCtx.WaitForResume(); err != nil {
					return lastEvent, err
				}
			}

			if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
				a.executor.Execute(runCtx, a.name, a.tools, fnCalls, func(respEv core.Event) error {
					respEv.RunID = runCtx.RunID
					lastEvent = &respEv
					if err := runCtx.EmitEvent(respEv); err != nil {
						return err
					}
					return runCtx.WaitForResume()
				})
			}
		case err, ok := <-errCh:
			if !ok {
				// The adapter closes errCh before respCh; nil it out so the
				// select keeps draining buffered responses instead of
				// spinning on the closed channel.
				errCh = nil
				continue
			}
			if err != nil {
				return lastEvent, err
			}
		}
	}

	return lastEvent, nil
}

// buildRequest assembles the model request: rendered instructions, the capped
// conversation history and the registered tool definitions.
func (a *SalesAgent) buildRequest(runCtx *core.RunContext) (model.Request, error) {
	instructions, err := a.instruction.Resolve(runCtx)
	if err != nil {
		return model.Request{}, fmt.Errorf("resolve instruction: %w", err)
	}

	if runCtx.Session != nil {
		state := runCtx.Session.StateSnapshot()
		if len(state) > 0 {
			instructions, err = util.RenderTemplate(instructions, state)
			if err != nil {
				return model.Request{}, fmt.Errorf("render instruction template: %w", err)
			}
		}
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", a.name, "length", len(instructions))

	var contents []core.Content
	if runCtx.Session != nil {
		events := runCtx.Session.GetConversationHistory()
		if a.maxHistoryMessages > 0 && len(events) > a.maxHistoryMessages {
			events = events[len(events)-a.maxHistoryMessages:]
		}
		for _, ev := range events {
			if ev.Content != nil && len(ev.Content.Parts) > 0 {
				contents = append(contents, *ev.Content)
			}
		}
	}
	if len(contents) == 0 {
		contents = append(contents, runCtx.UserContent)
	}

	req := model.Request{
		Instructions: instructions,
		Contents:     contents,
		Stream:       a.enableStreaming,
	}

	if len(a.tools) > 0 {
		defs := make([]model.ToolDefinition, 0, len(a.tools))
		for _, t := range a.tools {
			defs = append(defs, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
		req.Tools = defs
	}

	return req, nil
}
