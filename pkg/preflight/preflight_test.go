package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubestrap/kubestrap/pkg/runner"
)

func stubTool(t *testing.T, dir, name, output string) {
	t.Helper()
	script := "#!/bin/sh\necho '" + output + "'\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755))
}

func writeOSRelease(t *testing.T, id string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "os-release")
	content := "NAME=\"Test\"\nID=" + id + "\nVERSION_ID=\"22.04\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestChecker(t *testing.T, osID string) *Checker {
	t.Helper()
	dir := t.TempDir()
	stubTool(t, dir, "kubeadm", "v1.29.4")
	stubTool(t, dir, "kubectl", `{"clientVersion":{"gitVersion":"v1.29.4"}}`)
	stubTool(t, dir, "helm", "v3.14.0")
	stubTool(t, dir, "systemctl", "systemd 249 (249.11-0ubuntu3)")
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	c := New(runner.New(runner.Options{}, nil), nil)
	c.geteuid = func() int { return 0 }
	c.osRelease = writeOSRelease(t, osID)
	return c
}

func TestRunAllPass(t *testing.T) {
	c := newTestChecker(t, "ubuntu")
	results, ok := c.Run(context.Background())
	assert.True(t, ok)
	require.Len(t, results, 6)
	for _, r := range results {
		assert.True(t, r.Ok, "%s: %s", r.Name, r.Detail)
	}
	assert.Equal(t, "root-privileges", results[0].Name)
}

func TestRunRejectsNonRoot(t *testing.T) {
	c := newTestChecker(t, "ubuntu")
	c.geteuid = func() int { return 1000 }
	// A failing check must not abort the process: Run returns the full
	// result set so the caller can render it.
	results, ok := c.Run(context.Background())
	assert.False(t, ok)
	require.Len(t, results, 6)
	assert.False(t, results[0].Ok)
	assert.Contains(t, results[0].Detail, "must run as root")
}

func TestRunRejectsNonUbuntu(t *testing.T) {
	c := newTestChecker(t, "debian")
	results, ok := c.Run(context.Background())
	assert.False(t, ok)
	assert.False(t, results[1].Ok)
	assert.Contains(t, results[1].Detail, "unsupported distribution")
}

func TestRunRejectsOldTool(t *testing.T) {
	c := newTestChecker(t, "ubuntu")
	dir := t.TempDir()
	stubTool(t, dir, "helm", "v3.5.0")
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	results, ok := c.Run(context.Background())
	assert.False(t, ok)
	var helmResult Result
	for _, r := range results {
		if r.Name == "helm-version" {
			helmResult = r
		}
	}
	assert.False(t, helmResult.Ok)
	assert.Contains(t, helmResult.Detail, "older than required")
}

func TestRunMissingBinary(t *testing.T) {
	c := newTestChecker(t, "ubuntu")
	// Restrict PATH to a dir with the other tools but no kubeadm.
	dir := t.TempDir()
	stubTool(t, dir, "kubectl", `{"clientVersion":{"gitVersion":"v1.29.4"}}`)
	stubTool(t, dir, "helm", "v3.14.0")
	stubTool(t, dir, "systemctl", "systemd 249")
	t.Setenv("PATH", dir+":/usr/bin:/bin")

	results, ok := c.Run(context.Background())
	assert.False(t, ok)
	var kubeadmResult Result
	for _, r := range results {
		if r.Name == "kubeadm-version" {
			kubeadmResult = r
		}
	}
	assert.False(t, kubeadmResult.Ok)
}

func TestCheckMinVersion(t *testing.T) {
	detail, err := checkMinVersion("helm", "v3.14.0", "3.12.0")
	require.NoError(t, err)
	assert.Contains(t, detail, "helm v3.14.0")

	_, err = checkMinVersion("helm", "v3.11.9", "3.12.0")
	require.Error(t, err)

	_, err = checkMinVersion("helm", "not-a-version", "3.12.0")
	require.Error(t, err)
}
