// Package runner executes single external commands for the engine. Each Run
// spawns the command at most once; retries are the retry package's concern.
package runner

import (
	"context"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/kubestrap/kubestrap/pkg/logger"
)

// MaskPlaceholder replaces masked substrings in any surfaced output.
const MaskPlaceholder = "******"

// DefaultOutputLimit bounds captured stdout/stderr per stream.
const DefaultOutputLimit = 256 * 1024

// FailReason classifies why a command failed, so callers can treat timeouts
// and cancellation differently from ordinary non-zero exits.
type FailReason string

const (
	ReasonNone       FailReason = ""
	ReasonExitError  FailReason = "exit-error"
	ReasonTimedOut   FailReason = "timed-out"
	ReasonCancelled  FailReason = "cancelled"
	ReasonStartError FailReason = "start-error"
)

// Command describes one external command invocation. Argv is executed
// directly, without a shell.
type Command struct {
	Argv []string
	Dir  string
	Env  []string
	// Timeout overrides the runner default when positive.
	Timeout time.Duration
	// Hidden suppresses the command line from logs (e.g. token handling).
	Hidden bool
	// Mask lists literal substrings replaced by MaskPlaceholder in any
	// surfaced representation of the output. Raw output stays available to
	// internal consumers such as health analysis.
	Mask []string
}

// Line renders the argv for display, honoring Hidden and Mask. Secrets can
// appear in the argv itself (e.g. --from-literal flags), so the rendered
// line is masked like any other surfaced output.
func (c Command) Line() string {
	if c.Hidden {
		return MaskPlaceholder
	}
	return applyMask(strings.Join(c.Argv, " "), c.Mask)
}

// StepResult is the outcome of a single Run invocation. Stdout/Stderr hold
// the raw captured output; callers surfacing output must go through the
// Masked accessors.
type StepResult struct {
	Cmd       string
	ExitCode  int
	Stdout    string
	Stderr    string
	Truncated bool
	Failed    bool
	Reason    FailReason
	Attempts  int
	Duration  time.Duration
	Simulated bool

	mask []string
}

// Ok reports whether the command succeeded.
func (r *StepResult) Ok() bool { return !r.Failed }

// MaskedStdout returns stdout with masked substrings replaced.
func (r *StepResult) MaskedStdout() string { return applyMask(r.Stdout, r.mask) }

// MaskedStderr returns stderr with masked substrings replaced.
func (r *StepResult) MaskedStderr() string { return applyMask(r.Stderr, r.mask) }

// Err returns a *CommandError describing the failure, or nil on success.
// The error carries masked output only.
func (r *StepResult) Err() error {
	if !r.Failed {
		return nil
	}
	return &CommandError{
		Cmd:      r.Cmd,
		ExitCode: r.ExitCode,
		Stderr:   r.MaskedStderr(),
		Reason:   r.Reason,
	}
}

func applyMask(s string, mask []string) string {
	for _, m := range mask {
		if m == "" {
			continue
		}
		s = strings.ReplaceAll(s, m, MaskPlaceholder)
	}
	return s
}

// Options configures a Runner.
type Options struct {
	// DryRun makes Run return synthetic successes without spawning anything.
	DryRun bool
	// DefaultTimeout applies when a Command has none. Zero means no limit.
	DefaultTimeout time.Duration
	// OutputLimit bounds captured bytes per stream. Zero means
	// DefaultOutputLimit.
	OutputLimit int
}

// Runner executes commands on the local host.
type Runner struct {
	opts Options
	log  *logger.Logger
}

// New returns a Runner. A nil logger falls back to the global one.
func New(opts Options, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Get()
	}
	if opts.OutputLimit <= 0 {
		opts.OutputLimit = DefaultOutputLimit
	}
	return &Runner{opts: opts, log: log}
}

// DryRun reports whether the runner is in dry-run mode.
func (r *Runner) DryRun() bool { return r.opts.DryRun }

// Run executes the command once and returns its result. The child process is
// started in its own process group; on timeout or context cancellation the
// whole group is killed so helpers spawned by the command do not linger.
func (r *Runner) Run(ctx context.Context, cmd Command) *StepResult {
	res := &StepResult{
		Cmd:      cmd.Line(),
		Attempts: 1,
		mask:     cmd.Mask,
	}

	if len(cmd.Argv) == 0 {
		res.Failed = true
		res.Reason = ReasonStartError
		res.ExitCode = -1
		res.Stderr = "empty command"
		return res
	}

	if r.opts.DryRun {
		res.Simulated = true
		res.Stdout = "dry-run: would execute: " + res.Cmd
		r.log.Infof("dry-run: would execute: %s", res.Cmd)
		return res
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.opts.DefaultTimeout
	}
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	// Own process group so cancellation reaps the whole tree.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
	c.WaitDelay = 5 * time.Second

	stdout := newCappedBuffer(r.opts.OutputLimit)
	stderr := newCappedBuffer(r.opts.OutputLimit)
	c.Stdout = stdout
	c.Stderr = stderr

	r.log.Debugf("executing: %s", res.Cmd)
	start := time.Now()
	err := c.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	res.Truncated = stdout.Truncated() || stderr.Truncated()

	if err == nil {
		return res
	}

	res.Failed = true
	res.ExitCode = -1
	switch {
	case ctx.Err() != nil:
		res.Reason = ReasonCancelled
	case runCtx.Err() == context.DeadlineExceeded:
		res.Reason = ReasonTimedOut
	default:
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.Reason = ReasonExitError
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				res.ExitCode = status.ExitStatus()
			}
		} else {
			res.Reason = ReasonStartError
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}
	}
	return res
}
