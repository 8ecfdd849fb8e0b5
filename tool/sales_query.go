package tool

import (
	"fmt"

	"github.com/contoso/salesagent/core"
	"github.com/contoso/salesagent/logging"
	"github.com/contoso/salesagent/salesdata"
)

// SalesQueryToolName is the function name the model uses to run SQL against
// the sales database.
const SalesQueryToolName = "fetch_sales_data_using_sqlite_query"

// csvArtifactThreshold is the row count above which query results are also
// saved as a CSV artifact on the session.
const csvArtifactThreshold = 20

type salesQueryArgs struct {
	Query string `json:"query" description:"A well-formed SQLite SELECT query that extracts information based on the user's question. Use the provided schema: only reference columns and values that exist in it."`
}

// SalesQueryOptions configures the sales query tool.
type SalesQueryOptions struct {
	// CSVArtifactThreshold sets the row count above which a CSV artifact is
	// written. Zero keeps the default; negative disables artifact export.
	CSVArtifactThreshold int

	Logger logging.Logger
}

// NewSalesQueryTool builds the function tool that executes read-only SQL
// against the sales database. Query errors are returned to the model as a
// JSON error payload rather than failing the call, so the model can correct
// its SQL and retry.
func NewSalesQueryTool(store *salesdata.Store, optFns ...func(o *SalesQueryOptions)) (*FunctionTool, error) {
	opts := SalesQueryOptions{
		CSVArtifactThreshold: csvArtifactThreshold,
		Logger:               logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	description := "This function is used to answer user questions about Contoso sales data by executing SQLite queries against the database."

	return NewFunctionToolFromStruct(SalesQueryToolName, description,
		func(toolCtx *core.ToolContext, args salesQueryArgs) (any, error) {
			ctx := toolCtx.Context()

			result, err := store.ExecuteQuery(ctx, args.Query)
			if err != nil {
				// Surface SQL and guard failures as data so the model can
				// self-correct instead of aborting the run.
				opts.Logger.Warn("sales_query.rejected",
					"fc_id", toolCtx.FunctionCallID(),
					"error", err.Error(),
				)
				return map[string]any{"error": err.Error()}, nil
			}

			toolCtx.SetState("last_query_row_count", result.RowCount)

			if opts.CSVArtifactThreshold >= 0 && result.RowCount > opts.CSVArtifactThreshold {
				name := fmt.Sprintf("sales-query-%s.csv", toolCtx.FunctionCallID())
				if err := toolCtx.SaveArtifact(name, []byte(result.ToCSV())); err != nil {
					opts.Logger.Warn("sales_query.artifact_save_failed",
						"fc_id", toolCtx.FunctionCallID(),
						"error", err.Error(),
					)
				}
			}

			return map[string]any{
				"columns":   result.Columns,
				"rows":      result.Rows,
				"row_count": result.RowCount,
				"truncated": result.Truncated,
			}, nil
		},
		func(o *FunctionToolOptions) { o.Logger = opts.Logger },
	)
}
