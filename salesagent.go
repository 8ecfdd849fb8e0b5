// Package salesagent wires the conversational sales analysis agent together:
// a read-only SQLite sales database, a product datasheet index, a language
// model adapter and the tool-calling agent loop. Most applications interact
// with this package by:
//  1. Loading configuration via config.Load()
//  2. Creating an App via New() (optionally overriding stores or the model)
//  3. Asking questions synchronously (Ask) or streaming events (Run)
package salesagent

import (
	"context"
	"fmt"
	"os"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/contoso/salesagent/agent"
	"github.com/contoso/salesagent/artifact"
	"github.com/contoso/salesagent/config"
	"github.com/contoso/salesagent/core"
	"github.com/contoso/salesagent/datasheet"
	"github.com/contoso/salesagent/logging"
	"github.com/contoso/salesagent/model"
	anthropicmodel "github.com/contoso/salesagent/model/anthropic"
	openaimodel "github.com/contoso/salesagent/model/openai"
	"github.com/contoso/salesagent/runner"
	"github.com/contoso/salesagent/salesdata"
	"github.com/contoso/salesagent/session"
	"github.com/contoso/salesagent/tool"
)

// Options allows overriding the services the App builds by default.
type Options struct {
	// SessionStore persists sessions and event history (defaults to in-memory).
	SessionStore core.SessionStore
	// ArtifactStore persists CSV exports (defaults to in-memory).
	ArtifactStore core.ArtifactStore
	// Model overrides the provider selected by configuration. Useful for
	// injecting a scripted model in tests.
	Model model.Model
	// Logger receives structured records (defaults to one built from config).
	Logger logging.Logger
}

// App aggregates the wired services behind a small surface.
type App struct {
	cfg    *config.Config
	logger logging.Logger
	store  *salesdata.Store
	index  *datasheet.Index
	llm    model.Model
	runner *runner.Runner
}

// New builds an App from configuration. The sales database must already exist
// at the configured path (see cmd/seed).
func New(cfg *config.Config, optFns ...func(o *Options)) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(&logging.Config{
			Level:  logging.ParseLevel(cfg.Log.Level),
			Format: cfg.Log.Format,
		})
	}

	store, err := salesdata.New(cfg.Database.Path, func(o *salesdata.Options) {
		o.ReadOnly = true
		o.MaxRows = cfg.Database.MaxRows
		o.Logger = logger
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sales database: %w", err)
	}

	index := datasheet.NewIndex()
	if cfg.Agent.DatasheetPath != "" {
		if _, err := index.LoadFile(cfg.Agent.DatasheetPath); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to index datasheet: %w", err)
		}
	}

	llm := opts.Model
	if llm == nil {
		llm, err = buildModel(&cfg.Model)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	salesTool, err := tool.NewSalesQueryTool(store, func(o *tool.SalesQueryOptions) {
		o.Logger = logger
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build sales query tool: %w", err)
	}

	searchTool, err := tool.NewDatasheetSearchTool(index, func(o *tool.DatasheetSearchOptions) {
		o.Logger = logger
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build datasheet search tool: %w", err)
	}

	if _, err := os.Stat(cfg.Agent.InstructionsPath); err != nil {
		store.Close()
		return nil, fmt.Errorf("instructions file not found: %w", err)
	}

	instruction := agent.NewInstructionFromFile(
		cfg.Agent.InstructionsPath,
		func(rc *core.RunContext) (string, error) {
			return store.SchemaSummary(rc.Context)
		},
	)

	salesAgent := agent.New(cfg.Agent.Name, llm, func(o *agent.Options) {
		o.Instruction = instruction
		o.Tools = []tool.Tool{salesTool, searchTool}
		o.MaxHistoryMessages = cfg.Agent.MaxHistory
		o.Logger = logger
	})

	sessions := opts.SessionStore
	if sessions == nil {
		sessions = session.NewInMemoryStore()
	}
	artifacts := opts.ArtifactStore
	if artifacts == nil {
		artifacts = artifact.NewInMemoryStore()
	}

	run := runner.New(salesAgent, func(o *runner.Options) {
		o.SessionStore = sessions
		o.ArtifactStore = artifacts
		o.DocumentStore = index
		o.MaxModelCalls = cfg.Agent.MaxModelCalls
		o.Logger = logger
	})

	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		index:  index,
		llm:    llm,
		runner: run,
	}, nil
}

func buildModel(cfg *config.ModelConfig) (model.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			o.Model = cfg.DeploymentName
			o.Temperature = cfg.Temperature
			o.TopP = cfg.TopP
			o.MaxCompletionTokens = cfg.MaxCompletionTokens
			o.BaseURL = cfg.ProjectEndpoint
			o.APIKey = cfg.APIKey
		}), nil
	case "anthropic":
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if cfg.DeploymentName != "" {
				o.Model = anthropicsdk.Model(cfg.DeploymentName)
			}
			o.Temperature = cfg.Temperature
			o.TopP = cfg.TopP
			o.MaxTokens = cfg.MaxCompletionTokens
			o.APIKey = cfg.APIKey
		}), nil
	case "mock":
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, fmt.Errorf("unknown model provider: %s", cfg.Provider)
	}
}

// Runner exposes the underlying runner for transports that stream events
// themselves (e.g. the websocket server).
func (a *App) Runner() *runner.Runner { return a.runner }

// Model exposes the configured language model.
func (a *App) Model() model.Model { return a.llm }

// Store exposes the read-only sales database.
func (a *App) Store() *salesdata.Store { return a.store }

// Run starts an asynchronous run for the given session and question. It
// returns the run ID plus channels carrying events and errors; both channels
// are closed when the run completes.
func (a *App) Run(
	ctx context.Context,
	sessionID string,
	question string,
) (string, <-chan core.Event, <-chan error, error) {
	return a.runner.Run(ctx, sessionID, core.NewTextContent("user", question))
}

// Ask is a synchronous helper that drains the async channels, accumulates
// events and returns the run ID.
func (a *App) Ask(
	ctx context.Context,
	sessionID string,
	question string,
) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := a.Run(ctx, sessionID, question)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event
	for {
		select {
		case <-ctx.Done():
			return runID, events, ctx.Err()

		case event, ok := <-eventsCh:
			if !ok {
				select {
				case err := <-errorsCh:
					return runID, events, err
				default:
					return runID, events, nil
				}
			}
			events = append(events, event)

		case err := <-errorsCh:
			if err != nil {
				return runID, events, err
			}
		}
	}
}

// Close releases the underlying database handle.
func (a *App) Close() error { return a.store.Close() }
