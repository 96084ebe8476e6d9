package engine

import "time"

// Default execution parameters.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
	DefaultTimeout    = 300 * time.Second
)

// ExecutionContext is the configuration threaded through a run. It is built
// once per CLI invocation and read-only thereafter.
type ExecutionContext struct {
	// DryRun simulates every step without spawning processes or mutating
	// state.
	DryRun bool
	// SkipValidation bypasses the dependency check entirely. An explicit
	// escape hatch for exploration and testing, never a fallback.
	SkipValidation bool
	// Force resets an already-complete module's record before running it.
	Force bool
	// MaxRetries is the default per-step retry budget.
	MaxRetries int
	// RetryDelay is the fixed interval between attempts.
	RetryDelay time.Duration
	// Timeout is the default per-command time limit.
	Timeout time.Duration
}

// DefaultContext returns the documented defaults: 3 retries, 5s delay, 300s
// command timeout.
func DefaultContext() ExecutionContext {
	return ExecutionContext{
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Timeout:    DefaultTimeout,
	}
}
