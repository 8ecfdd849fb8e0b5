package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/contoso/salesagent/core"
	"github.com/contoso/salesagent/internal/util"
	"github.com/contoso/salesagent/logging"
)

// FunctionTool wraps a Go function as a Tool with automatic schema generation
// and parameter validation.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
	logger      logging.Logger
}

// FunctionToolOptions configures FunctionTool behavior.
type FunctionToolOptions struct {
	// Parameters overrides the generated JSON schema.
	Parameters map[string]any

	// Logger receives structured call lifecycle records.
	Logger logging.Logger
}

// NewFunctionTool creates a tool from a function that takes a ToolContext and
// a map of arguments. The parameters schema must be supplied via options or
// the tool accepts arbitrary arguments.
func NewFunctionTool(name, description string, fn func(toolCtx *core.ToolContext, args map[string]any) (any, error), optFns ...func(o *FunctionToolOptions)) *FunctionTool {
	opts := FunctionToolOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	parameters := opts.Parameters
	if parameters == nil {
		parameters = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		logger:      opts.Logger,
	}
}

// NewFunctionToolFromStruct creates a tool whose parameter schema is derived
// from the struct type T via reflection. JSON tags name the properties and
// `description` tags document them; pointer or omitempty fields are optional.
func NewFunctionToolFromStruct[T any](name, description string, fn func(toolCtx *core.ToolContext, args T) (any, error), optFns ...func(o *FunctionToolOptions)) (*FunctionTool, error) {
	var zero T
	schema, err := util.CreateSchema(zero)
	if err != nil {
		return nil, fmt.Errorf("create schema for %s: %w", name, err)
	}

	wrapped := func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal arguments: %w", err)
		}
		var typed T
		if err := json.Unmarshal(raw, &typed); err != nil {
			return nil, fmt.Errorf("unmarshal arguments: %w", err)
		}
		return fn(toolCtx, typed)
	}

	optFns = append([]func(o *FunctionToolOptions){func(o *FunctionToolOptions) {
		o.Parameters = schema
	}}, optFns...)

	return NewFunctionTool(name, description, wrapped, optFns...), nil
}

// Name returns the tool's unique identifier.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the tool's description for the LLM.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema for the tool's arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates the arguments against the schema and invokes the wrapped
// function. Validation failures and execution errors are returned as
// ToolError values with stable codes so callers can surface them to the model.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	start := time.Now()
	t.logger.Debug("tool.call.start",
		"tool", t.name,
		"fc_id", toolCtx.FunctionCallID(),
	)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		t.logger.Warn("tool.call.validation_error",
			"tool", t.name,
			"fc_id", toolCtx.FunctionCallID(),
			"error", err.Error(),
		)
		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "VALIDATION_ERROR",
		}
	}

	if err := toolCtx.Context().Err(); err != nil {
		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "CANCELLED",
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		t.logger.Error("tool.call.error",
			"tool", t.name,
			"fc_id", toolCtx.FunctionCallID(),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err.Error(),
		)
		if toolErr, ok := err.(*ToolError); ok {
			return nil, toolErr
		}
		if err == context.Canceled || err == context.DeadlineExceeded {
			return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: "CANCELLED"}
		}
		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	t.logger.Debug("tool.call.success",
		"tool", t.name,
		"fc_id", toolCtx.FunctionCallID(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
