package tool

import (
	"github.com/contoso/salesagent/core"
	"github.com/contoso/salesagent/logging"
)

// DatasheetSearchToolName is the function name the model uses to look up
// product information in the Contoso datasheets.
const DatasheetSearchToolName = "search_product_datasheet"

type datasheetSearchArgs struct {
	Query string `json:"query" description:"Keywords describing the product detail to look up, e.g. a product name, feature or specification."`
	Limit *int   `json:"limit,omitempty" description:"Maximum number of passages to return. Defaults to 3."`
}

// DatasheetSearchOptions configures the datasheet search tool.
type DatasheetSearchOptions struct {
	Logger logging.Logger
}

// NewDatasheetSearchTool builds the function tool that retrieves relevant
// passages from the indexed product datasheets.
func NewDatasheetSearchTool(docs core.DocumentStore, optFns ...func(o *DatasheetSearchOptions)) (*FunctionTool, error) {
	opts := DatasheetSearchOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	description := "Searches the Contoso product datasheets for passages matching the query. Use this for questions about product features, materials and specifications rather than sales figures."

	return NewFunctionToolFromStruct(DatasheetSearchToolName, description,
		func(toolCtx *core.ToolContext, args datasheetSearchArgs) (any, error) {
			limit := 3
			if args.Limit != nil && *args.Limit > 0 {
				limit = *args.Limit
			}

			results, err := docs.Search(args.Query, limit)
			if err != nil {
				return nil, err
			}

			opts.Logger.Debug("datasheet_search.done",
				"fc_id", toolCtx.FunctionCallID(),
				"query", args.Query,
				"matches", len(results),
			)

			if len(results) == 0 {
				return map[string]any{
					"matches": []any{},
					"note":    "no matching passages found in the product datasheets",
				}, nil
			}

			matches := make([]map[string]any, 0, len(results))
			for _, r := range results {
				matches = append(matches, map[string]any{
					"id":      r.ID,
					"content": r.Content,
					"score":   r.Score,
				})
			}
			return map[string]any{"matches": matches}, nil
		},
		func(o *FunctionToolOptions) { o.Logger = opts.Logger },
	)
}
