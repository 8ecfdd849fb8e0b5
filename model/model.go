// Package model defines the provider-neutral LLM interface plus the shared
// request/response types used by the agent loop. Concrete adapters live in
// the openai and anthropic subpackages.
package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/contoso/salesagent/core"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction describes the concrete function target of a tool call.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"` // JSON string of arguments
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the agent loop.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the agent loop to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockToolCall scripts a function call the MockModel should emit when the
// trigger prompt is seen.
type MockToolCall struct {
	Trigger   string // user text that triggers the call
	ID        string
	Name      string
	Arguments string // JSON string
	// FollowUp is the final text produced after the tool response arrives.
	FollowUp string
}

// MockModel is a lightweight in-memory Model useful for tests. Besides canned
// text completions it can script a single round of tool calling: a trigger
// prompt gets a function call, and once the matching function response shows
// up in the contents the follow-up text is emitted.
type MockModel struct {
	info      Info
	responses map[string]string
	toolCalls map[string]MockToolCall
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
		toolCalls: make(map[string]MockToolCall),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// AddToolCall registers a scripted function call keyed by its trigger prompt.
func (m *MockModel) AddToolCall(tc MockToolCall) { m.toolCalls[tc.Trigger] = tc }

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		inputText := lastUserText(req.Contents)

		if tc, ok := m.toolCalls[inputText]; ok {
			// Without a scripted follow-up the call repeats every turn, which
			// lets tests exercise the model call limit.
			if tc.FollowUp != "" && toolResponseSeen(req.Contents, tc.ID) {
				m.emitText(ctx, req.Stream, tc.FollowUp, respCh, errCh)
				return
			}
			respCh <- Response{
				Partial: false,
				Content: core.Content{
					Role: "assistant",
					Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
						ID:        tc.ID,
						Name:      tc.Name,
						Arguments: tc.Arguments,
					}}},
				},
				FinishReason: "tool_calls",
			}
			return
		}

		full := m.responses[inputText]
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}
		m.emitText(ctx, req.Stream, full, respCh, errCh)
	}()
	return respCh, errCh
}

func (m *MockModel) emitText(ctx context.Context, stream bool, full string, respCh chan<- Response, errCh chan<- error) {
	if stream {
		for _, r := range full {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- Response{
				Partial: true,
				Content: core.Content{
					Role:  "assistant",
					Parts: []core.Part{core.TextPart{Text: string(r)}},
				},
			}:
			}
		}
	}
	respCh <- Response{
		Partial: false,
		Content: core.Content{
			Role:  "assistant",
			Parts: []core.Part{core.TextPart{Text: full}},
		},
		FinishReason: "stop",
	}
}

// lastUserText returns the concatenated text parts of the most recent user content.
func lastUserText(contents []core.Content) string {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role != "user" {
			continue
		}
		var text string
		for _, p := range contents[i].Parts {
			if tp, ok := p.(core.TextPart); ok {
				text += tp.Text
			}
		}
		return text
	}
	return ""
}

// toolResponseSeen reports whether a function response with the given call ID
// already appears in the contents.
func toolResponseSeen(contents []core.Content, id string) bool {
	for _, c := range contents {
		if c.Role != "tool" {
			continue
		}
		for _, p := range c.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok && fr.FunctionResponse.ID == id {
				return true
			}
		}
	}
	return false
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
