package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubestrap/kubestrap/pkg/depgraph"
	"github.com/kubestrap/kubestrap/pkg/health"
)

func params() Params {
	return Params{
		NodeIP:               "10.0.0.5",
		GrafanaAdminPassword: "hunter2",
		Backup: BackupParams{
			Bucket:    "backups",
			Region:    "us-east-1",
			S3URL:     "https://s3.example.com",
			AccessKey: "AKIAEXAMPLE",
			SecretKey: "s3cr3t",
		},
	}
}

func TestRegistryValidates(t *testing.T) {
	reg, err := Registry(params())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"network", "firewall", "containerd", "kubernetes",
		"calico", "ingress", "secrets", "monitoring", "backup",
	}, reg.Names())

	// Declarations form a valid acyclic graph.
	_, err = depgraph.New(reg.Dependencies())
	require.NoError(t, err)
}

func TestCatalogCoversAllHealthKinds(t *testing.T) {
	mods, err := Modules(params())
	require.NoError(t, err)

	kinds := map[health.Kind]bool{}
	for _, m := range mods {
		if m.Health != nil {
			kinds[m.Health.Kind] = true
		}
	}
	assert.True(t, kinds[health.KindSystemdService])
	assert.True(t, kinds[health.KindListeningPort])
	assert.True(t, kinds[health.KindKubeResource])
	assert.True(t, kinds[health.KindHelmRelease])
}

func TestKubeadmConfigRendered(t *testing.T) {
	mods, err := Modules(params())
	require.NoError(t, err)

	var found bool
	for _, m := range mods {
		if m.Name != "kubernetes" {
			continue
		}
		require.Len(t, m.Files, 1)
		assert.Contains(t, m.Files[0].Content, "advertiseAddress: 10.0.0.5")
		assert.Contains(t, m.Files[0].Content, "podSubnet: 192.168.0.0/16")

		// kubeadm init must not be retried and must not leak the join token.
		init := m.Steps[0]
		assert.Equal(t, "kubeadm-init", init.Name)
		assert.True(t, init.NonRetryable)
		assert.True(t, init.Hidden)
		require.NotNil(t, init.MaxRetries)
		assert.Equal(t, 0, *init.MaxRetries)
		found = true
	}
	assert.True(t, found)
}

func TestBackupCredentialsAreMasked(t *testing.T) {
	mods, err := Modules(params())
	require.NoError(t, err)

	for _, m := range mods {
		if m.Name != "backup" {
			continue
		}
		cred := m.Steps[0]
		assert.True(t, cred.Hidden)
		assert.Contains(t, cred.Mask, "s3cr3t")
		assert.Contains(t, cred.Mask, "AKIAEXAMPLE")
		return
	}
	t.Fatal("backup module missing")
}

func TestParamsDefaults(t *testing.T) {
	var p Params
	p.ApplyDefaults()
	assert.Equal(t, "v1.29.4", p.KubernetesVersion)
	assert.Equal(t, "192.168.0.0/16", p.PodCIDR)
	assert.Equal(t, "/etc/kubestrap/rendered", p.RenderDir)

	p = Params{KubernetesVersion: "v1.30.0"}
	p.ApplyDefaults()
	assert.Equal(t, "v1.30.0", p.KubernetesVersion)
}

func TestValuesFilesUnderRenderDir(t *testing.T) {
	p := params()
	p.RenderDir = "/tmp/rendered"
	mods, err := Modules(p)
	require.NoError(t, err)

	for _, m := range mods {
		if m.Name == "ingress" {
			require.Len(t, m.Files, 1)
			assert.Equal(t, "/tmp/rendered/ingress-nginx-values.yaml", m.Files[0].Path)
		}
	}
}
