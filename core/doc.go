// Package core defines the shared domain contracts of the sales agent:
// events and their content parts, conversational sessions, the run and tool
// execution contexts, and the store interfaces (sessions, artifacts,
// document memory) that back them. Higher level packages (agent, runner,
// tool, server) depend on these types; implementation packages provide the
// concrete stores.
package core
