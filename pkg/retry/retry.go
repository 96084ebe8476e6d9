// Package retry wraps command execution with bounded, fixed-delay retries.
// Retry semantics live here, in one place, rather than ad hoc at call sites.
package retry

import (
	"context"
	"time"

	"github.com/kubestrap/kubestrap/pkg/logger"
	"github.com/kubestrap/kubestrap/pkg/runner"
)

// Policy invokes a step up to MaxRetries+1 times with a fixed delay between
// attempts. The delay is deliberately not exponential.
type Policy struct {
	MaxRetries int
	Delay      time.Duration

	log *logger.Logger
}

// NewPolicy returns a Policy. A nil logger falls back to the global one.
func NewPolicy(maxRetries int, delay time.Duration, log *logger.Logger) *Policy {
	if log == nil {
		log = logger.Get()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Policy{MaxRetries: maxRetries, Delay: delay, log: log}
}

// Step executes one attempt. The attempt argument is 1-based.
type Step func(ctx context.Context, attempt int) *runner.StepResult

// Do runs the step until it succeeds or the retry budget is exhausted, and
// returns the last result with total attempts and elapsed time folded in.
//
// A result is not retried when it succeeded, was simulated (dry-run), was
// cancelled, or when the step is flagged non-retryable (e.g. a validation
// failure that repeating cannot fix).
func (p *Policy) Do(ctx context.Context, nonRetryable bool, step Step) *runner.StepResult {
	start := time.Now()
	var last *runner.StepResult

	for attempt := 1; attempt <= p.MaxRetries+1; attempt++ {
		last = step(ctx, attempt)
		last.Attempts = attempt
		last.Duration = time.Since(start)

		if last.Ok() || last.Simulated {
			return last
		}
		if last.Reason == runner.ReasonCancelled {
			return last
		}
		if nonRetryable {
			p.log.Debugf("step failed and is non-retryable, giving up: %s", last.Cmd)
			return last
		}
		if attempt > p.MaxRetries {
			break
		}

		p.log.Warnf("step failed (attempt %d/%d), retrying in %v: %v",
			attempt, p.MaxRetries+1, p.Delay, last.Err())
		if !sleep(ctx, p.Delay) {
			last.Reason = runner.ReasonCancelled
			last.Duration = time.Since(start)
			return last
		}
	}

	last.Duration = time.Since(start)
	return last
}

// sleep waits for d or until the context is done; it reports whether the full
// delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
