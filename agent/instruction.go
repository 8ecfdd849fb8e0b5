package agent

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/contoso/salesagent/core"
)

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from session state, environment, etc.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction represents either a static instruction string or a dynamic provider.
// This mirrors a union of string | provider in a Go-idiomatic way.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ctx *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx)
	}
	return i.text, nil
}

// Placeholder tokens supported in instruction files.
const (
	SchemaPlaceholder      = "{database_schema_string}"
	CurrentDatePlaceholder = "{current_date}"
)

// RenderPlaceholders substitutes the database schema and current date tokens
// in raw instruction text.
func RenderPlaceholders(raw, schema string, now time.Time) string {
	text := strings.ReplaceAll(raw, SchemaPlaceholder, schema)
	return strings.ReplaceAll(text, CurrentDatePlaceholder, now.Format("2006-01-02"))
}

// SchemaFunc produces the database schema summary injected into the
// instructions on each run.
type SchemaFunc func(rc *core.RunContext) (string, error)

// NewInstructionFromFile creates an Instruction that re-reads the given file
// on each resolve and substitutes the schema and current date placeholders.
// Re-reading keeps prompt iteration cheap while the process is running.
func NewInstructionFromFile(path string, schemaFn SchemaFunc) Instruction {
	return NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read instructions %s: %w", path, err)
		}

		schema := ""
		if schemaFn != nil {
			schema, err = schemaFn(rc)
			if err != nil {
				return "", fmt.Errorf("resolve database schema: %w", err)
			}
		}

		return RenderPlaceholders(string(raw), schema, time.Now()), nil
	})
}
