package health

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/kubestrap/kubestrap/pkg/runner"
)

// helmProbe inspects `helm status -o json` for the release. Status
// "deployed" satisfies the check; the pending states count as partial since
// hooks and charts are still converging.
type helmProbe struct {
	run       *runner.Runner
	release   string
	namespace string
}

func (p *helmProbe) Kind() Kind { return KindHelmRelease }

func (p *helmProbe) Observe(ctx context.Context) (Observation, error) {
	argv := []string{"helm", "status", p.release, "-o", "json"}
	if p.namespace != "" {
		argv = append(argv, "-n", p.namespace)
	}
	res := p.run.Run(ctx, runner.Command{Argv: argv})
	if res.Reason == runner.ReasonCancelled {
		return Observation{}, ctx.Err()
	}
	if res.Failed {
		// Release not found yet (or helm itself unhappy); not a verdict.
		return Observation{Detail: "release " + p.release + " not found"}, nil
	}

	status := gjson.Get(res.Stdout, "info.status").String()
	detail := "release " + p.release + " is " + status
	switch status {
	case "deployed":
		return Observation{Satisfied: true, Detail: detail}, nil
	case "pending-install", "pending-upgrade", "pending-rollback":
		return Observation{Partial: true, Detail: detail}, nil
	default:
		if status == "" {
			detail = "release " + p.release + " has no reported status"
		}
		return Observation{Detail: detail}, nil
	}
}
