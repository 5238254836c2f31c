package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// Registry maps tool names to handlers and dispatches calls under an
// advisory per-call timeout.
type Registry struct {
	defs   map[string]ToolDefinition
	names  []string // registration order
	logger *slog.Logger
}

// NewRegistry builds a registry over the given definitions. Later
// registrations win on duplicate names.
func NewRegistry(logger *slog.Logger, defs ...ToolDefinition) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		defs:   make(map[string]ToolDefinition, len(defs)),
		logger: logger,
	}
	for _, d := range defs {
		if _, dup := r.defs[d.Name]; !dup {
			r.names = append(r.names, d.Name)
		}
		r.defs[d.Name] = d
	}
	return r
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Specs returns the model-facing tool specifications.
func (r *Registry) Specs() []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(r.names))
	for _, name := range r.names {
		d := r.defs[name]
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: d.InputSchema,
		}})
	}
	return out
}

// Execute dispatches one tool call and returns its text outcome.
//
// The timeout is advisory, not a cancellation guarantee: the handler runs on
// its own goroutine with a deadline-carrying context, and Execute stops
// waiting once the deadline passes, but a handler that ignores its context
// keeps running and its side effects may still land. Failures are reported
// as *NotFoundError, *TimeoutError, or *ExecutionError; a cancelled parent
// context is returned as-is.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage, timeout time.Duration) (string, error) {
	def, ok := r.defs[name]
	if !ok {
		r.logger.Warn("tool not found", "tool", name)
		return "", &NotFoundError{Name: name, Available: r.Names()}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		content string
		err     error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		content, err := def.Function(callCtx, input)
		done <- outcome{content: content, err: err}
	}()

	select {
	case out := <-done:
		elapsed := time.Since(start)
		if out.err != nil {
			r.logger.Error("tool failed", "tool", name, "elapsed", elapsed, "error", out.err)
			return "", &ExecutionError{Name: name, Err: out.err}
		}
		r.logger.Info("tool completed", "tool", name, "elapsed", elapsed, "output_size", len(out.content))
		return out.content, nil
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return "", err
		}
		r.logger.Error("tool timed out", "tool", name, "timeout", timeout)
		return "", &TimeoutError{Name: name, Timeout: timeout}
	}
}
