// Package engine is the module orchestrator: it decides which module may
// run, executes its steps through the retry policy, confirms the effect via
// health checks, and records completion state. Modules run strictly one
// after another; the single target host does not tolerate concurrent
// mutation.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kubestrap/kubestrap/pkg/depgraph"
	"github.com/kubestrap/kubestrap/pkg/health"
	"github.com/kubestrap/kubestrap/pkg/logger"
	"github.com/kubestrap/kubestrap/pkg/module"
	"github.com/kubestrap/kubestrap/pkg/retry"
	"github.com/kubestrap/kubestrap/pkg/runner"
	"github.com/kubestrap/kubestrap/pkg/state"
)

// Engine drives module execution.
type Engine struct {
	reg    *module.Registry
	graph  *depgraph.Graph
	store  state.Store
	run    *runner.Runner
	checks *health.Engine
	ec     ExecutionContext
	log    *logger.Logger

	// OnReport, when set, is invoked after each module finishes during
	// RunSequence. The CLI uses it for progress display.
	OnReport func(*ModuleReport)
}

// New builds an engine for one CLI invocation. Graph construction validates
// the declarations; a cycle or dangling dependency is a configuration error
// surfaced here, before any command runs.
func New(reg *module.Registry, store state.Store, ec ExecutionContext, kubeconfig string, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Get()
	}
	graph, err := depgraph.New(reg.Dependencies())
	if err != nil {
		return nil, errors.Wrap(err, "invalid module declarations")
	}
	run := runner.New(runner.Options{
		DryRun:         ec.DryRun,
		DefaultTimeout: ec.Timeout,
	}, log)
	return &Engine{
		reg:    reg,
		graph:  graph,
		store:  store,
		run:    run,
		checks: health.NewEngine(run, kubeconfig, log),
		ec:     ec,
		log:    log,
	}, nil
}

// Validate exposes the dependency check for the status view.
func (e *Engine) Validate(name string) (bool, []string, error) {
	return e.graph.Validate(name, e.store)
}

// IsComplete exposes the state store for the status view.
func (e *Engine) IsComplete(name string) (bool, error) {
	return e.store.IsComplete(name)
}

// RunModule executes one module end to end and returns its report.
// Operational failures (blocked, step failure, health timeout, cancellation)
// are outcomes in the report, never errors.
func (e *Engine) RunModule(ctx context.Context, name string) *ModuleReport {
	report := newModuleReport(name)
	log := e.log.With("module", name)

	mod, ok := e.reg.Get(name)
	if !ok {
		report.Error = fmt.Sprintf("unknown module %q", name)
		return report.finish(StatusFailed)
	}

	if !e.ec.SkipValidation {
		ok, missing, err := e.graph.Validate(name, e.store)
		if err != nil {
			report.Error = err.Error()
			return report.finish(StatusFailed)
		}
		if !ok {
			log.Warnf("blocked by incomplete dependencies: %v", missing)
			report.Missing = missing
			return report.finish(StatusBlocked)
		}
	}

	done, err := e.store.IsComplete(name)
	if err != nil {
		report.Error = err.Error()
		return report.finish(StatusFailed)
	}
	if done {
		if !e.ec.Force {
			log.Infof("already complete, nothing to do")
			return report.finish(StatusAlreadyComplete)
		}
		log.Infof("forcing re-run, clearing completion record")
		if err := e.store.Reset(name); err != nil {
			report.Error = err.Error()
			return report.finish(StatusFailed)
		}
	}

	log.Infof("starting module (%d steps)", len(mod.Steps))

	if err := e.writeFiles(mod, log); err != nil {
		report.Error = err.Error()
		e.recordFailure(name, "failed", log)
		return report.finish(StatusFailed)
	}

	for i, step := range mod.Steps {
		if res, halted := e.runStep(ctx, mod, i, step, report, log); halted {
			if res.Reason == runner.ReasonCancelled {
				log.Warnf("step %q cancelled", step.Name)
				e.recordFailure(name, "cancelled", log)
				return report.finish(StatusCancelled)
			}
			log.Errorf("step %q failed after %d attempt(s): %v", step.Name, res.Attempts, res.Err())
			e.recordFailure(name, "failed", log)
			return report.finish(StatusFailed)
		}
	}

	if e.ec.DryRun {
		// Nothing real happened, so there is nothing to verify or record.
		report.Simulated = true
		report.Health = health.VerdictHealthy
		log.Successf("dry-run complete")
		return report.finish(StatusHealthy)
	}

	verdict := health.Result{Verdict: health.VerdictHealthy, Detail: "no health check declared"}
	if mod.Health != nil {
		log.Infof("running %s health check against %s", mod.Health.Kind, mod.Health.Target)
		verdict = e.checks.Check(ctx, *mod.Health)
	}
	report.Health = verdict.Verdict
	report.HealthDetail = verdict.Detail

	switch verdict.Verdict {
	case health.VerdictHealthy:
		if err := e.store.MarkComplete(name, string(health.VerdictHealthy)); err != nil {
			report.Error = err.Error()
			return report.finish(StatusFailed)
		}
		log.Successf("module complete and healthy")
		return report.finish(StatusHealthy)
	case health.VerdictDegraded:
		// Degraded still counts as complete for idempotency purposes.
		if err := e.store.MarkComplete(name, string(health.VerdictDegraded)); err != nil {
			report.Error = err.Error()
			return report.finish(StatusFailed)
		}
		log.Warnf("module complete but degraded: %s", verdict.Detail)
		return report.finish(StatusDegraded)
	case health.VerdictTimedOut:
		// Commands succeeded but the effect could not be confirmed; the
		// module stays incomplete so a re-run will try again.
		log.Errorf("health check timed out: %s", verdict.Detail)
		report.Error = "health check timed out"
		e.recordFailure(name, string(health.VerdictTimedOut), log)
		return report.finish(StatusFailed)
	default:
		if verdict.Err != nil && ctx.Err() != nil {
			log.Warnf("health check cancelled")
			e.recordFailure(name, "cancelled", log)
			return report.finish(StatusCancelled)
		}
		if verdict.Err != nil {
			report.Error = verdict.Err.Error()
		}
		e.recordFailure(name, string(health.VerdictUnknown), log)
		return report.finish(StatusFailed)
	}
}

// runStep executes one step through the retry policy. It returns the result
// and whether the module must halt.
func (e *Engine) runStep(ctx context.Context, mod *module.Module, idx int, step module.Step, report *ModuleReport, log *logger.Logger) (*runner.StepResult, bool) {
	stepLog := log.With("step", step.Name)
	policy := retry.NewPolicy(step.Retries(e.ec.MaxRetries), e.ec.RetryDelay, stepLog)

	cmd := runner.Command{
		Argv:    step.Argv,
		Dir:     step.Dir,
		Env:     step.Env,
		Timeout: step.Timeout,
		Hidden:  step.Hidden,
		Mask:    step.Mask,
	}
	res := policy.Do(ctx, step.NonRetryable, func(ctx context.Context, attempt int) *runner.StepResult {
		if attempt > 1 {
			stepLog.Infof("attempt %d", attempt)
		}
		return e.run.Run(ctx, cmd)
	})
	report.Steps = append(report.Steps, res)

	if res.Failed {
		report.FailedStep = idx
		return res, true
	}
	stepLog.Debugf("step ok in %v", res.Duration)
	return res, false
}

// writeFiles materializes the module's declared auxiliary files. Dry-run
// only reports what would be written.
func (e *Engine) writeFiles(mod *module.Module, log *logger.Logger) error {
	for _, f := range mod.Files {
		if e.ec.DryRun {
			log.Infof("dry-run: would write %s (%d bytes)", f.Path, len(f.Content))
			continue
		}
		mode := f.Mode
		if mode == 0 {
			mode = 0o644
		}
		if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
			return errors.Wrapf(err, "creating directory for %s", f.Path)
		}
		if err := os.WriteFile(f.Path, []byte(f.Content), mode); err != nil {
			return errors.Wrapf(err, "writing %s", f.Path)
		}
		log.Debugf("wrote %s", f.Path)
	}
	return nil
}

func (e *Engine) recordFailure(name, healthStatus string, log *logger.Logger) {
	if e.ec.DryRun {
		return
	}
	if err := e.store.MarkFailed(name, healthStatus); err != nil {
		log.Errorf("failed to record attempt: %v", err)
	}
}

// RunSequence runs modules in the given order, continuing only while each
// outcome is healthy, degraded, or already complete. A failed, blocked or
// cancelled module halts the sequence; already-recorded completions make
// resumption safe without redoing earlier modules.
func (e *Engine) RunSequence(ctx context.Context, names []string) *RunReport {
	run := &RunReport{ID: uuid.NewString()}
	run.StartTime = nowFunc()
	e.log.Infof("run %s: %d module(s)", run.ID, len(names))

	for _, name := range names {
		report := e.RunModule(ctx, name)
		run.Reports = append(run.Reports, report)
		if e.OnReport != nil {
			e.OnReport(report)
		}
		if !report.Status.Proceedable() {
			e.log.Errorf("sequence halted at module %q (%s)", name, report.Status)
			run.Halted = true
			break
		}
	}

	run.EndTime = nowFunc()
	return run
}
