// Package agent implements the conversational sales agent: it resolves the
// system instructions, drives the model request/response loop including
// streaming and function calling, and executes registered tools.
package agent
