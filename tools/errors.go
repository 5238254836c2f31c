package tools

import (
	"fmt"
	"strings"
	"time"
)

// NotFoundError reports a dispatch against an unregistered tool name.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found. Available tools: [%s]",
		e.Name, strings.Join(e.Available, ", "))
}

// TimeoutError reports that a handler did not complete within the per-call
// timeout. The handler's side effects are not guaranteed to have been
// prevented.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("tool %q execution timed out after %s", e.Name, e.Timeout)
}

// ExecutionError reports a handler failure, preserving the cause.
type ExecutionError struct {
	Name string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q execution failed: %v", e.Name, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
