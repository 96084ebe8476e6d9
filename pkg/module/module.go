// Package module defines the declarative unit of installation work. The
// engine treats a module's steps as opaque commands; what the commands mean
// belongs to the catalog, not here.
package module

import (
	"os"
	"time"

	"github.com/kubestrap/kubestrap/pkg/health"
)

// Step is one command in a module, with optional per-step overrides.
type Step struct {
	// Name identifies the step in logs and reports.
	Name string
	// Argv is executed directly, without a shell.
	Argv []string
	Dir  string
	Env  []string
	// Timeout overrides the context default when positive.
	Timeout time.Duration
	// MaxRetries overrides the context default when non-nil. Zero disables
	// retries for this step.
	MaxRetries *int
	// NonRetryable marks failures that repeating cannot fix, such as
	// validation errors.
	NonRetryable bool
	// Hidden keeps the command line out of logs.
	Hidden bool
	// Mask lists literal substrings to redact from surfaced output.
	Mask []string
}

// File is an auxiliary file the engine writes before a module's steps run
// (skipped in dry-run). Content is produced at declaration time.
type File struct {
	Path    string
	Content string
	Mode    os.FileMode
}

// Module is a named unit of installation work. Declared statically at
// process start and immutable during a run.
type Module struct {
	Name         string
	Description  string
	Dependencies []string
	Files        []File
	Steps        []Step
	// Health declares what "healthy" means after the steps succeed. Nil
	// means command success alone completes the module.
	Health *health.Spec
}

// Retries returns the effective retry budget for a step given the context
// default.
func (s Step) Retries(def int) int {
	if s.MaxRetries != nil {
		return *s.MaxRetries
	}
	return def
}
