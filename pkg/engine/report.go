package engine

import (
	"time"

	"github.com/kubestrap/kubestrap/pkg/health"
	"github.com/kubestrap/kubestrap/pkg/runner"
)

// Status is the final outcome of one module run. The distinctions matter for
// remediation: blocked/already-complete means nothing happened, failed means
// something broke, a health timeout means commands succeeded but the effect
// could not be confirmed.
type Status string

const (
	StatusHealthy         Status = "healthy"
	StatusDegraded        Status = "degraded"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
	StatusAlreadyComplete Status = "already-complete"
	StatusBlocked         Status = "blocked-by-dependency"
)

// Proceedable reports whether a sequence may continue past this status.
func (s Status) Proceedable() bool {
	switch s {
	case StatusHealthy, StatusDegraded, StatusAlreadyComplete:
		return true
	}
	return false
}

// ModuleReport aggregates the outcome of RunModule.
type ModuleReport struct {
	Module string `json:"module"`
	Status Status `json:"status"`
	// Missing lists incomplete dependencies when Status is blocked.
	Missing []string             `json:"missing,omitempty"`
	Steps   []*runner.StepResult `json:"steps,omitempty"`
	// FailedStep is the index of the step whose retries were exhausted, or
	// -1.
	FailedStep   int            `json:"failedStep"`
	Health       health.Verdict `json:"health,omitempty"`
	HealthDetail string         `json:"healthDetail,omitempty"`
	Error        string         `json:"error,omitempty"`
	Simulated    bool           `json:"simulated,omitempty"`
	StartTime    time.Time      `json:"startTime"`
	EndTime      time.Time      `json:"endTime"`
	Duration     time.Duration  `json:"duration"`
}

// RunReport is the aggregate of a RunSequence invocation.
type RunReport struct {
	ID      string          `json:"id"`
	Reports []*ModuleReport `json:"reports"`
	// Halted is set when a module outcome stopped the sequence early.
	Halted    bool      `json:"halted"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

var nowFunc = time.Now

func newModuleReport(name string) *ModuleReport {
	return &ModuleReport{
		Module:     name,
		FailedStep: -1,
		StartTime:  time.Now(),
	}
}

func (r *ModuleReport) finish(status Status) *ModuleReport {
	r.Status = status
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	return r
}
