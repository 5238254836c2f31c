package conversation

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/quantrel/tradeloop/internal/citations"
)

// Result is the immutable document produced once per run. It serializes as
// a JSON object for logging or downstream consumption.
type Result struct {
	RunID              string                   `json:"run_id"`
	FinalResponse      string                   `json:"final_response"`
	IterationsUsed     int                      `json:"iterations_used"`
	ToolsExecuted      int                      `json:"tools_executed"`
	ToolSummary        []ToolExecutionRecord    `json:"tool_summary"`
	WebSearchUsed      bool                     `json:"web_search_used"`
	WebSearchCount     int                      `json:"web_search_count"`
	WebSearchHistory   []citations.SearchRecord `json:"web_search_history"`
	Citations          []citations.Citation     `json:"citations"`
	ConversationLength int                      `json:"conversation_length"`
	Success            bool                     `json:"success"`
}

const sectionRule = "=================================================="

// finalText concatenates the text blocks of the terminal assistant turn and,
// when any searches occurred, appends the provenance section: every query in
// chronological order, then every citation in citation-list order.
func finalText(msg *anthropic.Message, searches []citations.SearchRecord, cites []citations.Citation) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if len(searches) == 0 {
		return b.String()
	}

	b.WriteString("\n\n" + sectionRule)
	b.WriteString(fmt.Sprintf("\nWEB SEARCH USED: %d search(es) performed", len(searches)))
	b.WriteString("\n" + sectionRule)

	b.WriteString("\n\nSearch Queries:")
	for i, s := range searches {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, s.Query))
	}

	if len(cites) > 0 {
		b.WriteString("\n\nSources & Citations:")
		for i, c := range cites {
			b.WriteString(fmt.Sprintf("\n%d. %s", i+1, c.Title))
			b.WriteString(fmt.Sprintf("\n   URL: %s", c.URL))
			if c.Snippet != "" {
				b.WriteString(fmt.Sprintf("\n   Summary: %s", c.Snippet))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
