package tools

import (
	"context"
	"encoding/json"
	"time"
)

// RetryResult reports the outcome of a retried dispatch.
type RetryResult struct {
	Content  string
	Attempts int
	Err      error
}

// Success reports whether any attempt completed without error.
func (r RetryResult) Success() bool { return r.Err == nil }

// ExecuteWithRetry dispatches a tool up to maxRetries+1 times with a fixed
// backoff between attempts. Unknown tool names are not retried. The driver
// does not use this by default; callers with transient tool backends can.
func (r *Registry) ExecuteWithRetry(ctx context.Context, name string, input json.RawMessage, timeout time.Duration, maxRetries int, backoff time.Duration) RetryResult {
	res := RetryResult{}
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Info("retrying tool", "tool", name, "attempt", attempt+1)
			select {
			case <-ctx.Done():
				res.Err = ctx.Err()
				return res
			case <-time.After(backoff):
			}
		}
		res.Attempts = attempt + 1
		content, err := r.Execute(ctx, name, input, timeout)
		if err == nil {
			res.Content = content
			res.Err = nil
			return res
		}
		res.Err = err
		if _, notFound := err.(*NotFoundError); notFound {
			return res
		}
		if ctx.Err() != nil {
			return res
		}
	}
	return res
}
