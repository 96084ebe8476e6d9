// Package preflight verifies the host before any module runs: required
// binaries at minimum versions, root privileges, a supported distribution.
// Checks are independent, so they run concurrently.
package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/kubestrap/kubestrap/pkg/logger"
	"github.com/kubestrap/kubestrap/pkg/runner"
)

// Minimum supported tool versions.
const (
	MinKubeadmVersion = "1.28.0"
	MinKubectlVersion = "1.28.0"
	MinHelmVersion    = "3.12.0"
)

const checkTimeout = 15 * time.Second

// Result is the outcome of one check.
type Result struct {
	Name   string `json:"name"`
	Ok     bool   `json:"ok"`
	Detail string `json:"detail"`
}

type check struct {
	name string
	fn   func(ctx context.Context) (string, error)
}

// Checker runs the preflight suite.
type Checker struct {
	run *runner.Runner
	log *logger.Logger

	// geteuid is swapped in tests.
	geteuid func() int
	// osRelease is the path probed for the distribution id.
	osRelease string
}

func New(run *runner.Runner, log *logger.Logger) *Checker {
	if log == nil {
		log = logger.Get()
	}
	return &Checker{
		run:       run,
		log:       log,
		geteuid:   os.Geteuid,
		osRelease: "/etc/os-release",
	}
}

// Run executes all checks concurrently and returns their results in
// declaration order, plus whether every check passed.
func (c *Checker) Run(ctx context.Context) ([]Result, bool) {
	checks := []check{
		{"root-privileges", c.checkRoot},
		{"ubuntu-host", c.checkUbuntu},
		{"systemd", c.checkSystemd},
		{"kubeadm-version", func(ctx context.Context) (string, error) {
			return c.checkToolVersion(ctx, MinKubeadmVersion,
				runner.Command{Argv: []string{"kubeadm", "version", "-o", "short"}})
		}},
		{"kubectl-version", c.checkKubectl},
		{"helm-version", c.checkHelm},
	}

	results := make([]Result, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, ck := range checks {
		i, ck := i, ck
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, checkTimeout)
			defer cancel()
			detail, err := ck.fn(cctx)
			if err != nil {
				results[i] = Result{Name: ck.name, Detail: err.Error()}
				return nil
			}
			results[i] = Result{Name: ck.name, Ok: true, Detail: detail}
			return nil
		})
	}
	_ = g.Wait()

	// A failed check is an operational outcome, not a fatal error: the
	// caller renders the results and decides whether to abort.
	ok := true
	for _, r := range results {
		if r.Ok {
			c.log.Successf("preflight %s: %s", r.Name, r.Detail)
		} else {
			ok = false
			c.log.Errorf("preflight %s: %s", r.Name, r.Detail)
		}
	}
	return results, ok
}

func (c *Checker) checkRoot(context.Context) (string, error) {
	if uid := c.geteuid(); uid != 0 {
		return "", fmt.Errorf("must run as root, current uid %d", uid)
	}
	return "running as root", nil
}

func (c *Checker) checkUbuntu(context.Context) (string, error) {
	data, err := os.ReadFile(c.osRelease)
	if err != nil {
		return "", errors.Wrap(err, "reading os-release")
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "ID=") {
			id := strings.Trim(strings.TrimPrefix(line, "ID="), `"`)
			if id != "ubuntu" {
				return "", fmt.Errorf("unsupported distribution %q, need ubuntu", id)
			}
			return "ubuntu detected", nil
		}
	}
	return "", errors.New("no ID field in os-release")
}

func (c *Checker) checkSystemd(ctx context.Context) (string, error) {
	res := c.run.Run(ctx, runner.Command{Argv: []string{"systemctl", "--version"}})
	if !res.Ok() {
		return "", errors.Wrap(res.Err(), "systemd not available")
	}
	return strings.SplitN(strings.TrimSpace(res.Stdout), "\n", 2)[0], nil
}

func (c *Checker) checkKubectl(ctx context.Context) (string, error) {
	res := c.run.Run(ctx, runner.Command{Argv: []string{"kubectl", "version", "--client", "-o", "json"}})
	if !res.Ok() {
		return "", errors.Wrap(res.Err(), "kubectl not available")
	}
	version := gjson.Get(res.Stdout, "clientVersion.gitVersion").String()
	if version == "" {
		return "", errors.New("could not read kubectl client version")
	}
	return checkMinVersion("kubectl", version, MinKubectlVersion)
}

func (c *Checker) checkHelm(ctx context.Context) (string, error) {
	return c.checkToolVersion(ctx, MinHelmVersion,
		runner.Command{Argv: []string{"helm", "version", "--template", "{{.Version}}"}})
}

// checkToolVersion covers tools that print a bare version string.
func (c *Checker) checkToolVersion(ctx context.Context, min string, cmd runner.Command) (string, error) {
	res := c.run.Run(ctx, cmd)
	if !res.Ok() {
		return "", errors.Wrapf(res.Err(), "%s not available", cmd.Argv[0])
	}
	return checkMinVersion(cmd.Argv[0], strings.TrimSpace(res.Stdout), min)
}

func checkMinVersion(tool, have, min string) (string, error) {
	v, err := semver.NewVersion(strings.TrimPrefix(have, "v"))
	if err != nil {
		return "", errors.Wrapf(err, "parsing %s version %q", tool, have)
	}
	constraint, err := semver.NewConstraint(">= " + min)
	if err != nil {
		return "", err
	}
	if !constraint.Check(v) {
		return "", fmt.Errorf("%s %s is older than required %s", tool, have, min)
	}
	return fmt.Sprintf("%s %s (>= %s)", tool, have, min), nil
}
