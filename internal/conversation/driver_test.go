package conversation_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/quantrel/tradeloop/internal/citations"
	"github.com/quantrel/tradeloop/internal/config"
	"github.com/quantrel/tradeloop/internal/conversation"
	"github.com/quantrel/tradeloop/tools"
)

// scriptedTransport plays back one canned response per model request and
// captures every request body. Requests past the script fail with a 500 so a
// runaway loop surfaces as a backend error instead of hanging the test.
type scriptedTransport struct {
	mu        sync.Mutex
	responses []scriptedResponse
	requests  [][]byte
}

type scriptedResponse struct {
	status int
	body   string
}

func (s *scriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	b, _ := io.ReadAll(req.Body)
	_ = req.Body.Close()

	s.mu.Lock()
	idx := len(s.requests)
	s.requests = append(s.requests, b)
	s.mu.Unlock()

	r := scriptedResponse{status: 500, body: `{"type":"error","error":{"type":"api_error","message":"script exhausted"}}`}
	if idx < len(s.responses) {
		r = s.responses[idx]
	}
	resp := &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(r.body))),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func (s *scriptedTransport) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func ok(body string) scriptedResponse { return scriptedResponse{status: 200, body: body} }

func fail(msg string) scriptedResponse {
	return scriptedResponse{status: 500, body: fmt.Sprintf(`{"type":"error","error":{"type":"api_error","message":%q}}`, msg)}
}

func textResponse(text string) scriptedResponse {
	return ok(fmt.Sprintf(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-0","stop_reason":"end_turn","content":[{"type":"text","text":%q}]}`, text))
}

func toolUseResponse(blocks ...string) scriptedResponse {
	return ok(fmt.Sprintf(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-0","stop_reason":"tool_use","content":[%s]}`, strings.Join(blocks, ",")))
}

func toolUseBlock(id, name, input string) string {
	return fmt.Sprintf(`{"type":"tool_use","id":%q,"name":%q,"input":%s}`, id, name, input)
}

// Request body shape we care about in assertions.
type reqBody struct {
	System []struct {
		Text string `json:"text"`
	} `json:"system"`
	Tools []struct {
		Name string `json:"name"`
	} `json:"tools"`
	Messages []struct {
		Role    string        `json:"role"`
		Content []contentItem `json:"content"`
	} `json:"messages"`
}

type contentItem struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

func decodeRequest(t *testing.T, body []byte) reqBody {
	t.Helper()
	var rb reqBody
	if err := json.Unmarshal(body, &rb); err != nil {
		t.Fatalf("unmarshal request: %v\nbody=%s", err, body)
	}
	return rb
}

func testConfig(maxIterations int) *config.Config {
	return &config.Config{
		Agent: config.Agent{
			Model:        "claude-sonnet-4-0",
			MaxTokens:    512,
			SystemPrompt: "You are a trading analyst.",
		},
		Conversation: config.Conversation{
			MaxIterations: maxIterations,
			ToolTimeout:   config.Duration(time.Second),
		},
	}
}

func pingTool() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "ping",
		Description: "returns pong",
		InputSchema: tools.GenerateSchema[struct{}](),
		Function: func(_ context.Context, _ json.RawMessage) (string, error) {
			return "pong", nil
		},
	}
}

func newDriver(transport http.RoundTripper, cfg *config.Config, defs ...tools.ToolDefinition) (*conversation.Driver, *citations.Tracker) {
	c := anthropic.NewClient(
		option.WithHTTPClient(&http.Client{Transport: transport}),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	logger := slog.New(slog.DiscardHandler)
	registry := tools.NewRegistry(logger, defs...)
	tracker := citations.NewTracker(logger)
	return conversation.New(&c, registry, tracker, cfg, logger), tracker
}

func TestRun_FirstTurnFinal_SingleRequest(t *testing.T) {
	st := &scriptedTransport{responses: []scriptedResponse{textResponse("All done.")}}
	d, _ := newDriver(st, testConfig(10), pingTool())

	res, err := d.Run(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if st.requestCount() != 1 {
		t.Fatalf("model requests = %d, want 1", st.requestCount())
	}
	if res.IterationsUsed != 1 {
		t.Fatalf("iterations = %d, want 1", res.IterationsUsed)
	}
	if res.FinalResponse != "All done." {
		t.Fatalf("final = %q", res.FinalResponse)
	}
	if res.ConversationLength != 2 {
		t.Fatalf("conversation length = %d, want 2", res.ConversationLength)
	}
	if !res.Success || res.ToolsExecuted != 0 || res.WebSearchUsed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.RunID == "" {
		t.Fatal("run id should be assigned")
	}
}

func TestRun_ForcedFinal_EmptyToolList(t *testing.T) {
	// The model insists on tools for all 3 iterations; the forced-final
	// request is the 4th and must carry no tools.
	st := &scriptedTransport{responses: []scriptedResponse{
		toolUseResponse(toolUseBlock("tu_1", "ping", `{}`)),
		toolUseResponse(toolUseBlock("tu_2", "ping", `{}`)),
		toolUseResponse(toolUseBlock("tu_3", "ping", `{}`)),
		textResponse("Forced answer."),
	}}
	d, _ := newDriver(st, testConfig(3), pingTool())

	res, err := d.Run(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if st.requestCount() != 4 {
		t.Fatalf("model requests = %d, want 4 (3 + forced final)", st.requestCount())
	}
	for i := 0; i < 3; i++ {
		rb := decodeRequest(t, st.requests[i])
		if len(rb.Tools) == 0 {
			t.Errorf("request %d should carry tool specs", i+1)
		}
	}
	finalReq := decodeRequest(t, st.requests[3])
	if len(finalReq.Tools) != 0 {
		t.Fatalf("forced-final request carries %d tools, want 0", len(finalReq.Tools))
	}
	last := finalReq.Messages[len(finalReq.Messages)-1]
	if last.Role != "user" || !strings.Contains(last.Content[0].Text, "Do not make any more tool calls") {
		t.Fatalf("forced-final instruction missing: %+v", last)
	}
	if res.FinalResponse != "Forced answer." {
		t.Fatalf("final = %q", res.FinalResponse)
	}
	if res.IterationsUsed != 3 {
		t.Fatalf("iterations = %d, want 3", res.IterationsUsed)
	}
}

func TestRun_ToolTimeout_FoldsErrorAndContinues(t *testing.T) {
	slow := tools.ToolDefinition{
		Name:        "slow_tool",
		InputSchema: tools.GenerateSchema[struct{}](),
		Function: func(ctx context.Context, _ json.RawMessage) (string, error) {
			select {
			case <-time.After(5 * time.Second):
				return "too late", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}
	cfg := testConfig(10)
	cfg.Conversation.ToolTimeout = config.Duration(20 * time.Millisecond)

	st := &scriptedTransport{responses: []scriptedResponse{
		toolUseResponse(toolUseBlock("tu_1", "slow_tool", `{}`)),
		textResponse("Adapted without that tool."),
	}}
	d, _ := newDriver(st, cfg, slow)

	res, err := d.Run(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("run should continue past a tool timeout: %v", err)
	}
	if st.requestCount() != 2 {
		t.Fatalf("model requests = %d, want 2", st.requestCount())
	}

	rb := decodeRequest(t, st.requests[1])
	last := rb.Messages[len(rb.Messages)-1]
	if last.Role != "user" || last.Content[0].Type != "tool_result" {
		t.Fatalf("expected trailing tool_result turn, got %+v", last)
	}
	if !last.Content[0].IsError {
		t.Fatal("timeout result should be marked is_error")
	}
	folded := string(last.Content[0].Content)
	if !strings.Contains(folded, "slow_tool") || !strings.Contains(folded, "timed out") {
		t.Fatalf("timeout message not folded into conversation: %s", folded)
	}
	if len(res.ToolSummary) != 1 || !strings.Contains(res.ToolSummary[0].Result, "timed out") {
		t.Fatalf("timeout missing from tool summary: %+v", res.ToolSummary)
	}
}

func TestRun_BackendError_SyntheticTurnAndContinue(t *testing.T) {
	st := &scriptedTransport{responses: []scriptedResponse{
		fail("upstream unavailable"),
		textResponse("Recovered."),
	}}
	d, _ := newDriver(st, testConfig(10), pingTool())

	res, err := d.Run(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("backend error mid-run must not abort: %v", err)
	}
	if res.IterationsUsed != 2 {
		t.Fatalf("iterations = %d, want 2 (one wasted on the backend error)", res.IterationsUsed)
	}

	rb := decodeRequest(t, st.requests[1])
	last := rb.Messages[len(rb.Messages)-1]
	if last.Role != "user" {
		t.Fatalf("expected synthetic user turn, got role %q", last.Role)
	}
	if !strings.Contains(last.Content[0].Text, "Error occurred") ||
		!strings.Contains(last.Content[0].Text, "continue with available information") {
		t.Fatalf("synthetic error turn malformed: %q", last.Content[0].Text)
	}
	if res.FinalResponse != "Recovered." {
		t.Fatalf("final = %q", res.FinalResponse)
	}
}

func TestRun_BackendErrorOnForcedFinal_Propagates(t *testing.T) {
	st := &scriptedTransport{responses: []scriptedResponse{
		toolUseResponse(toolUseBlock("tu_1", "ping", `{}`)),
		fail("down for maintenance"),
	}}
	d, _ := newDriver(st, testConfig(1), pingTool())

	if _, err := d.Run(context.Background(), "prompt"); err == nil {
		t.Fatal("backend error on the forced-final request must propagate")
	}
}

func TestRun_SiblingIsolation_AndRecordOrder(t *testing.T) {
	boom := tools.ToolDefinition{
		Name:        "boom",
		InputSchema: tools.GenerateSchema[struct{}](),
		Function: func(_ context.Context, _ json.RawMessage) (string, error) {
			return "", fmt.Errorf("kaput")
		},
	}
	st := &scriptedTransport{responses: []scriptedResponse{
		toolUseResponse(
			toolUseBlock("tu_a", "boom", `{}`),
			toolUseBlock("tu_b", "ping", `{}`),
		),
		textResponse("Final."),
	}}
	d, _ := newDriver(st, testConfig(10), boom, pingTool())

	res, err := d.Run(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	rb := decodeRequest(t, st.requests[1])
	last := rb.Messages[len(rb.Messages)-1]
	if len(last.Content) != 2 {
		t.Fatalf("tool_result count = %d, want 2 (one per tool_use)", len(last.Content))
	}
	if last.Content[0].ToolUseID != "tu_a" || last.Content[1].ToolUseID != "tu_b" {
		t.Fatalf("result order broken: %+v", last.Content)
	}
	if !last.Content[0].IsError {
		t.Fatal("failed call should produce an error tool_result")
	}
	if last.Content[1].IsError {
		t.Fatal("sibling failure must not taint the successful call")
	}

	if res.ToolsExecuted != 2 || len(res.ToolSummary) != 2 {
		t.Fatalf("tool count = %d / %d records, want 2", res.ToolsExecuted, len(res.ToolSummary))
	}
	if res.ToolSummary[0].Tool != "boom" || res.ToolSummary[1].Tool != "ping" {
		t.Fatalf("record order: %+v", res.ToolSummary)
	}
	if res.ToolSummary[0].Iteration != 1 || res.ToolSummary[1].Iteration != 1 {
		t.Fatalf("records should carry the dispatch iteration: %+v", res.ToolSummary)
	}
}

func TestRun_WebSearchProvenanceInFinalText(t *testing.T) {
	search := tools.ToolDefinition{
		Name:        tools.WebSearchName,
		InputSchema: tools.GenerateSchema[struct{ Query string `json:"query"` }](),
		Function: func(_ context.Context, _ json.RawMessage) (string, error) {
			return `{"query":"nvda news","sources":[{"url":"http://a.com","title":"A","snippet":"s"}],"summary":"Found 1","search_performed":true}`, nil
		},
	}
	st := &scriptedTransport{responses: []scriptedResponse{
		toolUseResponse(toolUseBlock("tu_1", tools.WebSearchName, `{"query":"nvda news"}`)),
		textResponse("Buy."),
	}}
	d, tracker := newDriver(st, testConfig(10), search)

	res, err := d.Run(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.WebSearchUsed || res.WebSearchCount != 1 {
		t.Fatalf("search bookkeeping: %+v", res)
	}
	if len(res.Citations) != 1 || res.Citations[0].URL != "http://a.com" || res.Citations[0].Query != "nvda news" {
		t.Fatalf("citations: %+v", res.Citations)
	}
	if len(tracker.Searches()) != 1 {
		t.Fatalf("tracker searches = %d, want 1", len(tracker.Searches()))
	}

	for _, want := range []string{
		"WEB SEARCH USED: 1 search(es) performed",
		"Search Queries:",
		"1. nvda news",
		"Sources & Citations:",
		"URL: http://a.com",
	} {
		if !strings.Contains(res.FinalResponse, want) {
			t.Errorf("final response missing %q", want)
		}
	}

	// The next request's system prompt carries the search history digest.
	rb := decodeRequest(t, st.requests[1])
	if len(rb.System) == 0 || !strings.Contains(rb.System[0].Text, "Web Search History (1 searches)") {
		t.Fatal("system prompt missing search history digest")
	}
}

func TestRun_SystemPromptCarriesToolDigest(t *testing.T) {
	st := &scriptedTransport{responses: []scriptedResponse{
		toolUseResponse(toolUseBlock("tu_1", "ping", `{}`)),
		textResponse("Done."),
	}}
	d, _ := newDriver(st, testConfig(10), pingTool())

	if _, err := d.Run(context.Background(), "prompt"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	first := decodeRequest(t, st.requests[0])
	if len(first.System) == 0 || !strings.Contains(first.System[0].Text, "No previous tool results available.") {
		t.Fatal("first request should state that no tool results exist yet")
	}
	second := decodeRequest(t, st.requests[1])
	if !strings.Contains(second.System[0].Text, "Previous tool results:") ||
		!strings.Contains(second.System[0].Text, "1. ping({}) -> pong") {
		t.Fatalf("tool digest missing from system prompt: %s", second.System[0].Text)
	}
}
