package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quantrel/tradeloop/internal/websearch"
)

// WebSearchName identifies the search tool; the driver uses it to route
// outcomes through the citation tracker.
const WebSearchName = "web_search"

type WebSearchInput struct {
	Query      string `json:"query" jsonschema_description:"The search query to find relevant information on the web."`
	MaxResults int    `json:"max_results,omitempty" jsonschema_description:"Maximum number of search results to return. Default is 5."`
}

var WebSearchInputSchema = GenerateSchema[WebSearchInput]()

// WebSearchTool returns the web_search definition bound to a search client.
// The outcome is always a structured JSON record; search failures surface in
// its summary/error fields rather than as tool errors, so the model can
// adapt rather than retry blindly.
func WebSearchTool(s *websearch.Client) ToolDefinition {
	return ToolDefinition{
		Name:        WebSearchName,
		Description: "Search the web for current information, news, and data to supplement analysis. Returns structured results with sources and citations.",
		InputSchema: WebSearchInputSchema,
		Function: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in WebSearchInput
			if err := json.Unmarshal(input, &in); err != nil {
				return "", err
			}
			if in.Query == "" {
				return "", fmt.Errorf("query is required")
			}
			outcome := s.Search(ctx, in.Query, in.MaxResults)
			b, err := json.Marshal(outcome)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}
