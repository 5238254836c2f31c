package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/quantrel/tradeloop/internal/citations"
	"github.com/quantrel/tradeloop/internal/config"
	"github.com/quantrel/tradeloop/tools"
)

const forceFinalInstruction = "Please provide your final analysis and recommendation based on all the information gathered so far. Do not make any more tool calls."

// Driver runs the iterate-ask-dispatch-fold loop: it asks the model for a
// turn, dispatches any tool calls sequentially, folds the results back into
// the turn history, and repeats until a tool-free turn appears or the
// iteration budget forces finalization.
type Driver struct {
	client   *anthropic.Client
	registry *tools.Registry
	tracker  *citations.Tracker
	logger   *slog.Logger

	model          anthropic.Model
	maxTokens      int64
	temperature    float64
	systemPrompt   string
	maxIterations  int
	toolTimeout    time.Duration
	requestTimeout time.Duration
}

// New builds a driver. The tracker and logger may be nil, in which case a
// fresh tracker and a discarding logger are used.
func New(client *anthropic.Client, registry *tools.Registry, tracker *citations.Tracker, cfg *config.Config, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if tracker == nil {
		tracker = citations.NewTracker(logger)
	}
	temperature := float64(config.DefaultTemperature)
	if cfg.Agent.Temperature != nil {
		temperature = *cfg.Agent.Temperature
	}
	return &Driver{
		client:         client,
		registry:       registry,
		tracker:        tracker,
		logger:         logger,
		model:          anthropic.Model(cfg.Agent.Model),
		maxTokens:      cfg.Agent.MaxTokens,
		temperature:    temperature,
		systemPrompt:   cfg.Agent.SystemPrompt,
		maxIterations:  cfg.Conversation.MaxIterations,
		toolTimeout:    cfg.Conversation.ToolTimeout.Std(),
		requestTimeout: cfg.Conversation.RequestTimeout.Std(),
	}
}

type toolCall struct {
	id    string
	name  string
	input json.RawMessage
}

// Run executes one conversation to completion and assembles the result
// document. It returns an error only when the run cannot begin or the
// forced-final request itself fails; tool failures and mid-run backend
// errors are folded into the conversation and the run continues.
func (d *Driver) Run(ctx context.Context, prompt string) (*Result, error) {
	state := &State{}
	state.appendTurn(anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))

	d.logger.Info("starting conversation", "prompt", truncate(prompt, 100), "max_iterations", d.maxIterations)

	var final *anthropic.Message
	iteration := 0
	for iteration < d.maxIterations {
		iteration++
		d.logger.Info("conversation iteration", "iteration", iteration)

		msg, err := d.requestTurn(ctx, state, d.registry.Specs())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Backend errors waste the iteration but not the run: tell the
			// model what happened and keep going.
			d.logger.Error("model request failed", "iteration", iteration, "error", err)
			state.appendTurn(anthropic.NewUserMessage(anthropic.NewTextBlock(
				fmt.Sprintf("Error occurred: %v. Please continue with available information.", err))))
			continue
		}
		state.appendTurn(msg.ToParam())

		calls := extractToolCalls(msg)
		if len(calls) == 0 {
			d.logger.Info("final response received", "iteration", iteration)
			final = msg
			break
		}
		d.dispatchAll(ctx, state, calls, iteration)
	}

	if final == nil {
		d.logger.Warn("iteration budget exhausted, forcing final response", "max_iterations", d.maxIterations)
		msg, err := d.forceFinal(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("forced finalization: %w", err)
		}
		state.appendTurn(msg.ToParam())
		final = msg
	}

	searches := d.tracker.Searches()
	cites := d.tracker.Citations()
	execs := state.Executions()
	return &Result{
		RunID:              uuid.NewString(),
		FinalResponse:      finalText(final, searches, cites),
		IterationsUsed:     iteration,
		ToolsExecuted:      len(execs),
		ToolSummary:        execs,
		WebSearchUsed:      len(searches) > 0,
		WebSearchCount:     len(searches),
		WebSearchHistory:   searches,
		Citations:          cites,
		ConversationLength: len(state.Turns()),
		Success:            true,
	}, nil
}

// requestTurn issues one model request over the full turn history, with the
// system prompt augmented by the tool-result digest.
func (d *Driver) requestTurn(ctx context.Context, state *State, toolSpecs []anthropic.ToolUnionParam) (*anthropic.Message, error) {
	if d.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.requestTimeout)
		defer cancel()
	}
	params := anthropic.MessageNewParams{
		Model:       d.model,
		MaxTokens:   d.maxTokens,
		Temperature: anthropic.Float(d.temperature),
		System: []anthropic.TextBlockParam{
			{Text: BuildSystemPrompt(d.systemPrompt, state.Executions(), d.tracker.Searches())},
		},
		Messages: state.Turns(),
		Tools:    toolSpecs,
	}
	return d.client.Messages.New(ctx, params)
}

func extractToolCalls(msg *anthropic.Message) []toolCall {
	var calls []toolCall
	for _, block := range msg.Content {
		if tu, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			calls = append(calls, toolCall{
				id:    tu.ID,
				name:  tu.Name,
				input: json.RawMessage(tu.JSON.Input.Raw()),
			})
		}
	}
	return calls
}

// dispatchAll executes every tool call sequentially in block order and
// appends one user turn carrying exactly one tool_result per call. A failed
// call becomes an error tool_result; it never aborts its siblings.
func (d *Driver) dispatchAll(ctx context.Context, state *State, calls []toolCall, iteration int) {
	results := make([]anthropic.ContentBlockParamUnion, 0, len(calls))
	for _, call := range calls {
		d.logger.Info("executing tool", "tool", call.name, "input", string(call.input))

		content, err := d.registry.Execute(ctx, call.name, call.input, d.toolTimeout)
		if err != nil {
			errText := fmt.Sprintf("Error executing tool: %v", err)
			results = append(results, anthropic.NewToolResultBlock(call.id, errText, true))
			state.recordExecution(ToolExecutionRecord{
				Tool: call.name, Input: call.input, Result: errText, Iteration: iteration,
			})
			continue
		}

		if call.name == tools.WebSearchName {
			d.tracker.Track(gjson.GetBytes(call.input, "query").String(), content)
		}

		results = append(results, anthropic.NewToolResultBlock(call.id, content, false))
		state.recordExecution(ToolExecutionRecord{
			Tool: call.name, Input: call.input, Result: content, Iteration: iteration,
		})
	}
	state.appendTurn(anthropic.NewUserMessage(results...))
}

// forceFinal demands an immediate answer and issues one more request with an
// empty tool list so the model cannot emit further tool calls. A backend
// error here propagates to the caller.
func (d *Driver) forceFinal(ctx context.Context, state *State) (*anthropic.Message, error) {
	state.appendTurn(anthropic.NewUserMessage(anthropic.NewTextBlock(forceFinalInstruction)))
	return d.requestTurn(ctx, state, nil)
}
