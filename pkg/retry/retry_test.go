package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubestrap/kubestrap/pkg/runner"
)

func failing() Step {
	return func(ctx context.Context, attempt int) *runner.StepResult {
		return &runner.StepResult{Cmd: "false", Failed: true, Reason: runner.ReasonExitError, ExitCode: 1}
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	calls := 0
	p := NewPolicy(3, 0, nil)
	res := p.Do(context.Background(), false, func(ctx context.Context, attempt int) *runner.StepResult {
		calls++
		assert.Equal(t, calls, attempt)
		return &runner.StepResult{Failed: true, Reason: runner.ReasonExitError}
	})
	// 1 initial + 3 retries.
	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, res.Attempts)
	assert.True(t, res.Failed)
}

func TestSuccessStopsRetrying(t *testing.T) {
	calls := 0
	p := NewPolicy(5, 0, nil)
	res := p.Do(context.Background(), false, func(ctx context.Context, attempt int) *runner.StepResult {
		calls++
		if calls < 3 {
			return &runner.StepResult{Failed: true, Reason: runner.ReasonExitError}
		}
		return &runner.StepResult{}
	})
	assert.Equal(t, 3, calls)
	assert.True(t, res.Ok())
	assert.Equal(t, 3, res.Attempts)
}

func TestZeroRetriesMeansSingleAttempt(t *testing.T) {
	calls := 0
	p := NewPolicy(0, 0, nil)
	p.Do(context.Background(), false, func(ctx context.Context, attempt int) *runner.StepResult {
		calls++
		return &runner.StepResult{Failed: true, Reason: runner.ReasonExitError}
	})
	assert.Equal(t, 1, calls)
}

func TestNonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	p := NewPolicy(3, 0, nil)
	res := p.Do(context.Background(), true, func(ctx context.Context, attempt int) *runner.StepResult {
		calls++
		return &runner.StepResult{Failed: true, Reason: runner.ReasonExitError}
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, res.Attempts)
}

func TestSimulatedNeverRetries(t *testing.T) {
	calls := 0
	p := NewPolicy(3, time.Hour, nil)
	res := p.Do(context.Background(), false, func(ctx context.Context, attempt int) *runner.StepResult {
		calls++
		return &runner.StepResult{Simulated: true}
	})
	assert.Equal(t, 1, calls)
	assert.True(t, res.Simulated)
}

func TestCancelledResultNotRetried(t *testing.T) {
	calls := 0
	p := NewPolicy(3, 0, nil)
	res := p.Do(context.Background(), false, func(ctx context.Context, attempt int) *runner.StepResult {
		calls++
		return &runner.StepResult{Failed: true, Reason: runner.ReasonCancelled}
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, runner.ReasonCancelled, res.Reason)
}

func TestFixedDelayWallClock(t *testing.T) {
	// max_retries=2, delay=100ms: three attempts, two sleeps, >=200ms total.
	p := NewPolicy(2, 100*time.Millisecond, nil)
	start := time.Now()
	res := p.Do(context.Background(), false, failing())
	elapsed := time.Since(start)
	assert.True(t, res.Failed)
	assert.Equal(t, 3, res.Attempts)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.GreaterOrEqual(t, res.Duration, 200*time.Millisecond)
}

func TestContextCancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPolicy(3, 10*time.Second, nil)
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	res := p.Do(ctx, false, failing())
	require.True(t, res.Failed)
	assert.Equal(t, runner.ReasonCancelled, res.Reason)
	assert.Less(t, time.Since(start), 5*time.Second)
}
