// Package health confirms a module's effect after its commands succeed.
// Each check kind is a small probe strategy behind a common polling loop;
// adding a kind never touches the loop itself.
package health

import (
	"context"
	"time"

	"github.com/kubestrap/kubestrap/pkg/logger"
	"github.com/kubestrap/kubestrap/pkg/runner"
)

// Kind selects the probe strategy for a check.
type Kind string

const (
	KindSystemdService Kind = "systemd-service"
	KindListeningPort  Kind = "listening-port"
	KindKubeResource   Kind = "kubernetes-resource-ready"
	KindHelmRelease    Kind = "helm-release-deployed"
)

// Verdict is the tri-state outcome of a health check.
type Verdict string

const (
	VerdictUnknown  Verdict = "unknown"
	VerdictHealthy  Verdict = "healthy"
	VerdictDegraded Verdict = "degraded"
	VerdictTimedOut Verdict = "timed-out"
)

// Default polling parameters, applied when a Spec leaves them zero.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 2 * time.Minute
	DefaultGrace        = 30 * time.Second
)

// Spec describes what "healthy" means for one module.
type Spec struct {
	Kind   Kind   `json:"kind" yaml:"kind"`
	Target string `json:"target" yaml:"target"`
	// Namespace applies to helm releases and kubernetes resources.
	Namespace    string        `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	PollInterval time.Duration `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"`
	MaxWait      time.Duration `json:"maxWait,omitempty" yaml:"maxWait,omitempty"`
	// Grace is how long a partially satisfied condition may sit without
	// progress before the check settles on Degraded.
	Grace time.Duration `json:"grace,omitempty" yaml:"grace,omitempty"`
}

// Observation is a single probe evaluation.
type Observation struct {
	// Satisfied means the condition fully holds.
	Satisfied bool
	// Partial means the condition partially holds (e.g. some expected pods
	// Ready). Only partial observations can settle on Degraded.
	Partial bool
	// Detail is a human-readable snapshot; a change in Detail counts as
	// progress and restarts the degraded grace window.
	Detail string
}

// Probe evaluates the target condition once.
type Probe interface {
	Kind() Kind
	Observe(ctx context.Context) (Observation, error)
}

// Result is the outcome of a full Check.
type Result struct {
	Verdict  Verdict
	Detail   string
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Engine runs health checks. Probes that shell out share the engine's
// command runner; the kubernetes probe talks to the API server directly.
type Engine struct {
	run        *runner.Runner
	kubeconfig string
	log        *logger.Logger

	// newProbe builds the strategy for a spec; tests swap it out.
	newProbe func(Spec) (Probe, error)
}

// NewEngine returns a health check engine.
func NewEngine(run *runner.Runner, kubeconfig string, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Get()
	}
	e := &Engine{run: run, kubeconfig: kubeconfig, log: log}
	e.newProbe = e.buildProbe
	return e
}

func (e *Engine) buildProbe(spec Spec) (Probe, error) {
	switch spec.Kind {
	case KindSystemdService:
		return &systemdProbe{run: e.run, unit: spec.Target}, nil
	case KindListeningPort:
		return newPortProbe(e.run, spec.Target)
	case KindKubeResource:
		return newKubeProbe(e.kubeconfig, spec.Target)
	case KindHelmRelease:
		return &helmProbe{run: e.run, release: spec.Target, namespace: spec.Namespace}, nil
	default:
		return nil, &UnknownKindError{Kind: spec.Kind}
	}
}

// KnownKind reports whether the kind has a registered strategy. The module
// registry uses it to reject malformed declarations at startup.
func KnownKind(k Kind) bool {
	switch k {
	case KindSystemdService, KindListeningPort, KindKubeResource, KindHelmRelease:
		return true
	}
	return false
}

// UnknownKindError marks a health spec whose kind has no strategy.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return "unknown health check kind: " + string(e.Kind)
}

// Check evaluates the condition immediately and, if unsatisfied, polls at
// the spec's interval until it is satisfied (Healthy), stuck partially
// satisfied beyond the grace window (Degraded), or out of time (TimedOut).
// A cancelled context yields VerdictUnknown with the context error.
func (e *Engine) Check(ctx context.Context, spec Spec) Result {
	interval := spec.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxWait := spec.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	grace := spec.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}

	log := e.log.With("probe", string(spec.Kind))
	probe, err := e.newProbe(spec)
	if err != nil {
		return Result{Verdict: VerdictUnknown, Err: err}
	}

	start := time.Now()
	deadline := start.Add(maxWait)
	res := Result{Verdict: VerdictUnknown}

	lastDetail := ""
	lastProgress := start

	observe := func() (Observation, bool) {
		res.Attempts++
		obs, err := probe.Observe(ctx)
		if err != nil {
			// A failing probe command is not a verdict; keep polling until
			// the deadline in case the target is still coming up.
			log.Debugf("probe error (attempt %d): %v", res.Attempts, err)
			return Observation{Detail: err.Error()}, false
		}
		return obs, true
	}

	obs, _ := observe()
	for {
		if obs.Satisfied {
			res.Verdict = VerdictHealthy
			res.Detail = obs.Detail
			res.Elapsed = time.Since(start)
			return res
		}
		if obs.Detail != lastDetail {
			lastDetail = obs.Detail
			lastProgress = time.Now()
		}
		if obs.Partial && time.Since(lastProgress) >= grace {
			res.Verdict = VerdictDegraded
			res.Detail = obs.Detail
			res.Elapsed = time.Since(start)
			return res
		}
		if time.Now().After(deadline) {
			res.Verdict = VerdictTimedOut
			res.Detail = obs.Detail
			res.Elapsed = time.Since(start)
			return res
		}

		log.Debugf("condition not met yet (%s), next poll in %v", obs.Detail, interval)
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			res.Verdict = VerdictUnknown
			res.Err = ctx.Err()
			res.Elapsed = time.Since(start)
			return res
		case <-t.C:
		}
		obs, _ = observe()
	}
}
