package health

import (
	"context"
	"strings"

	"github.com/kubestrap/kubestrap/pkg/runner"
)

// systemdProbe asks systemd for the unit's activation state.
// "active" satisfies the check; "activating" counts as partial.
type systemdProbe struct {
	run  *runner.Runner
	unit string
}

func (p *systemdProbe) Kind() Kind { return KindSystemdService }

func (p *systemdProbe) Observe(ctx context.Context) (Observation, error) {
	res := p.run.Run(ctx, runner.Command{
		Argv: []string{"systemctl", "is-active", p.unit},
	})
	// is-active exits non-zero for anything but "active"; the state name is
	// still printed, so inspect stdout rather than the exit code alone.
	stateName := strings.TrimSpace(res.Stdout)
	if res.Reason == runner.ReasonCancelled {
		return Observation{}, ctx.Err()
	}
	switch stateName {
	case "active":
		return Observation{Satisfied: true, Detail: p.unit + " is active"}, nil
	case "activating", "reloading":
		return Observation{Partial: true, Detail: p.unit + " is " + stateName}, nil
	default:
		if stateName == "" {
			stateName = "unknown"
		}
		return Observation{Detail: p.unit + " is " + stateName}, nil
	}
}
