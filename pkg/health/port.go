package health

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/kubestrap/kubestrap/pkg/runner"
)

// portProbe checks whether a TCP port is in LISTEN state, via `ss` with a
// `netstat` fallback. Observing LISTEN state is preferred over dialing: a
// dial also succeeds against proxies and says nothing about which daemon
// owns the socket.
type portProbe struct {
	run  *runner.Runner
	port int
}

func newPortProbe(run *runner.Runner, target string) (*portProbe, error) {
	port, err := strconv.Atoi(target)
	if err != nil || port <= 0 || port > 65535 {
		return nil, errors.Errorf("invalid listening-port target %q", target)
	}
	return &portProbe{run: run, port: port}, nil
}

func (p *portProbe) Kind() Kind { return KindListeningPort }

func (p *portProbe) Observe(ctx context.Context) (Observation, error) {
	cmd := fmt.Sprintf("ss -ltn 2>/dev/null | grep -q ':%d ' || netstat -ltn 2>/dev/null | grep -q ':%d '", p.port, p.port)
	res := p.run.Run(ctx, runner.Command{Argv: []string{"sh", "-c", cmd}})
	if res.Reason == runner.ReasonCancelled {
		return Observation{}, ctx.Err()
	}
	if res.Ok() {
		return Observation{Satisfied: true, Detail: fmt.Sprintf("port %d is listening", p.port)}, nil
	}
	return Observation{Detail: fmt.Sprintf("port %d is not listening", p.port)}, nil
}
