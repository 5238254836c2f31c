package conversation

import (
	"fmt"
	"strings"

	"github.com/quantrel/tradeloop/internal/citations"
)

// resultDigestLimit caps how much of each prior tool result is replayed into
// the system prompt.
const resultDigestLimit = 200

const sequentialInstructions = `
IMPORTANT INSTRUCTIONS FOR SEQUENTIAL TOOL EXECUTION:

1. You can call multiple tools in sequence to gather comprehensive information before making a final decision.

2. After each tool call, analyze the results and determine if you need more information:
   - If you need more data, call additional tools
   - If you have sufficient information, provide your final analysis and recommendation

3. When making tool calls:
   - Be strategic about which tools to use and in what order
   - Build upon previous tool results
   - Gather diverse data points for comprehensive analysis

4. For your final response:
   - Summarize all the information you gathered
   - Provide clear reasoning for your decision
   - Include confidence level in your recommendation
   - No more tool calls should be made in your final response

5. Available information from previous tool calls:
`

// BuildSystemPrompt augments the base system prompt with sequential
// execution instructions and a digest of prior tool results and search
// queries, giving the model working memory of what has been tried.
func BuildSystemPrompt(base string, execs []ToolExecutionRecord, searches []citations.SearchRecord) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n")
	b.WriteString(sequentialInstructions)
	b.WriteString(digest(execs, searches))
	b.WriteString("\nRemember: You have the freedom to call multiple tools sequentially to gather all necessary information before making your final decision.\n")
	return b.String()
}

func digest(execs []ToolExecutionRecord, searches []citations.SearchRecord) string {
	if len(execs) == 0 {
		return "No previous tool results available.\n"
	}
	var b strings.Builder
	b.WriteString("Previous tool results:\n")
	for i, rec := range execs {
		b.WriteString(fmt.Sprintf("%d. %s(%s) -> %s\n",
			i+1, rec.Tool, string(rec.Input), truncate(rec.Result, resultDigestLimit)))
	}
	if len(searches) > 0 {
		b.WriteString(fmt.Sprintf("\nWeb Search History (%d searches):\n", len(searches)))
		for i, s := range searches {
			b.WriteString(fmt.Sprintf("  %d. Query: '%s'\n", i+1, s.Query))
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
