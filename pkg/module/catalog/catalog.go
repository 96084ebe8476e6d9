// Package catalog declares the modules kubestrap installs on a single-node
// Ubuntu host. All host knowledge lives here: the exact commands, the files
// they need, and what healthy means afterwards. The engine stays generic.
package catalog

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/kubestrap/kubestrap/pkg/health"
	"github.com/kubestrap/kubestrap/pkg/module"
	"github.com/kubestrap/kubestrap/pkg/templates"
)

const adminKubeconfig = "/etc/kubernetes/admin.conf"

// BackupParams configures the velero object storage target.
type BackupParams struct {
	Bucket    string
	Region    string
	S3URL     string
	AccessKey string
	SecretKey string
}

// Params feeds the module declarations. Zero values fall back to sane
// single-node defaults; see ApplyDefaults.
type Params struct {
	// NodeIP is the address the API server advertises.
	NodeIP            string
	KubernetesVersion string
	PodCIDR           string
	ServiceCIDR       string
	SandboxImage      string

	IngressServiceType   string
	GrafanaAdminPassword string
	PrometheusRetention  string
	Backup               BackupParams

	// RenderDir receives generated helm values files.
	RenderDir string
}

// ApplyDefaults fills unset fields in place.
func (p *Params) ApplyDefaults() {
	if p.KubernetesVersion == "" {
		p.KubernetesVersion = "v1.29.4"
	}
	if p.PodCIDR == "" {
		p.PodCIDR = "192.168.0.0/16"
	}
	if p.ServiceCIDR == "" {
		p.ServiceCIDR = "10.96.0.0/12"
	}
	if p.SandboxImage == "" {
		p.SandboxImage = "registry.k8s.io/pause:3.9"
	}
	if p.IngressServiceType == "" {
		p.IngressServiceType = "ClusterIP"
	}
	if p.PrometheusRetention == "" {
		p.PrometheusRetention = "7d"
	}
	if p.RenderDir == "" {
		p.RenderDir = "/etc/kubestrap/rendered"
	}
}

// Modules returns the full catalog in default install order. Rendering
// happens here, at declaration time, so template problems surface before any
// command runs.
func Modules(p Params) ([]*module.Module, error) {
	p.ApplyDefaults()

	sysctlConf, err := templates.Render("sysctl/k8s.conf.tmpl", map[string]any{
		"InotifyMaxUserInstances": 8192,
		"InotifyMaxUserWatches":   524288,
	})
	if err != nil {
		return nil, err
	}
	containerdConf, err := templates.Render("containerd/config.toml.tmpl", map[string]any{
		"SandboxImage": p.SandboxImage,
	})
	if err != nil {
		return nil, err
	}
	kubeadmConf, err := templates.Render("kubernetes/kubeadm-config.yaml.tmpl", map[string]any{
		"AdvertiseAddress":  p.NodeIP,
		"KubernetesVersion": p.KubernetesVersion,
		"PodCIDR":           p.PodCIDR,
		"ServiceCIDR":       p.ServiceCIDR,
	})
	if err != nil {
		return nil, err
	}
	ingressValues, err := templates.Render("helm/ingress-nginx-values.yaml.tmpl", map[string]any{
		"ServiceType": p.IngressServiceType,
	})
	if err != nil {
		return nil, err
	}
	monitoringValues, err := templates.Render("helm/monitoring-values.yaml.tmpl", map[string]any{
		"GrafanaAdminPassword": p.GrafanaAdminPassword,
		"Retention":            p.PrometheusRetention,
	})
	if err != nil {
		return nil, err
	}
	backupValues, err := templates.Render("helm/velero-values.yaml.tmpl", map[string]any{
		"Bucket": p.Backup.Bucket,
		"Region": p.Backup.Region,
		"S3URL":  p.Backup.S3URL,
	})
	if err != nil {
		return nil, err
	}

	kubeEnv := []string{"KUBECONFIG=" + adminKubeconfig}
	values := func(name string) string { return filepath.Join(p.RenderDir, name) }
	noRetry := 0

	mods := []*module.Module{
		{
			Name:        "network",
			Description: "kernel modules, sysctl and swap settings kubelet requires",
			Files: []module.File{
				{Path: "/etc/modules-load.d/k8s.conf", Content: "overlay\nbr_netfilter\n"},
				{Path: "/etc/sysctl.d/99-kubernetes.conf", Content: sysctlConf},
			},
			Steps: []module.Step{
				{Name: "load-kernel-modules", Argv: []string{"sh", "-c", "modprobe overlay && modprobe br_netfilter"}},
				{Name: "apply-sysctl", Argv: []string{"sysctl", "--system"}},
				{Name: "disable-swap", Argv: []string{"sh", "-c", "swapoff -a && sed -i '/\\sswap\\s/s/^/#/' /etc/fstab"}},
			},
		},
		{
			Name:        "firewall",
			Description: "ufw rules for the kubernetes control plane and NodePort range",
			Steps: []module.Step{
				{Name: "allow-ssh", Argv: []string{"ufw", "allow", "22/tcp"}},
				{Name: "allow-apiserver", Argv: []string{"ufw", "allow", "6443/tcp"}},
				{Name: "allow-kubelet", Argv: []string{"ufw", "allow", "10250/tcp"}},
				{Name: "allow-nodeports", Argv: []string{"ufw", "allow", "30000:32767/tcp"}},
				{Name: "enable", Argv: []string{"ufw", "--force", "enable"}},
			},
			Health: &health.Spec{
				Kind:   health.KindSystemdService,
				Target: "ufw",
			},
		},
		{
			Name:         "containerd",
			Description:  "container runtime with the systemd cgroup driver",
			Dependencies: []string{"network"},
			Files: []module.File{
				{Path: "/etc/containerd/config.toml", Content: containerdConf},
			},
			Steps: []module.Step{
				{Name: "install", Argv: []string{"apt-get", "install", "-y", "containerd"}, Timeout: 10 * time.Minute},
				{Name: "restart", Argv: []string{"systemctl", "restart", "containerd"}},
				{Name: "enable", Argv: []string{"systemctl", "enable", "containerd"}},
			},
			Health: &health.Spec{
				Kind:   health.KindSystemdService,
				Target: "containerd",
			},
		},
		{
			Name:         "kubernetes",
			Description:  "single-node control plane via kubeadm",
			Dependencies: []string{"network", "firewall", "containerd"},
			Files: []module.File{
				{Path: values("kubeadm-config.yaml"), Content: kubeadmConf, Mode: 0o600},
			},
			Steps: []module.Step{
				// Init output includes the bootstrap token; keep it out of logs.
				{Name: "kubeadm-init", Argv: []string{"kubeadm", "init", "--config", values("kubeadm-config.yaml")},
					Timeout: 15 * time.Minute, MaxRetries: &noRetry, NonRetryable: true, Hidden: true},
				{Name: "install-kubeconfig", Argv: []string{"sh", "-c",
					fmt.Sprintf("mkdir -p /root/.kube && cp %s /root/.kube/config", adminKubeconfig)}},
				{Name: "untaint-control-plane", Argv: []string{"kubectl", "taint", "nodes", "--all",
					"node-role.kubernetes.io/control-plane-"}, Env: kubeEnv},
			},
			Health: &health.Spec{
				Kind:    health.KindListeningPort,
				Target:  "6443",
				MaxWait: 5 * time.Minute,
			},
		},
		{
			Name:         "calico",
			Description:  "pod networking via the tigera operator",
			Dependencies: []string{"kubernetes"},
			Steps: []module.Step{
				{Name: "install-operator", Argv: []string{"kubectl", "create", "-f",
					"https://raw.githubusercontent.com/projectcalico/calico/v3.27.3/manifests/tigera-operator.yaml"},
					Env: kubeEnv},
				{Name: "install-custom-resources", Argv: []string{"kubectl", "create", "-f",
					"https://raw.githubusercontent.com/projectcalico/calico/v3.27.3/manifests/custom-resources.yaml"},
					Env: kubeEnv},
			},
			Health: &health.Spec{
				Kind:    health.KindKubeResource,
				Target:  "daemonset/calico-system/calico-node",
				MaxWait: 5 * time.Minute,
			},
		},
		{
			Name:         "ingress",
			Description:  "ingress-nginx on the host network",
			Dependencies: []string{"kubernetes", "calico"},
			Files: []module.File{
				{Path: values("ingress-nginx-values.yaml"), Content: ingressValues},
			},
			Steps: []module.Step{
				{Name: "helm-repo-add", Argv: []string{"helm", "repo", "add", "ingress-nginx",
					"https://kubernetes.github.io/ingress-nginx"}, Env: kubeEnv},
				{Name: "helm-repo-update", Argv: []string{"helm", "repo", "update"}, Env: kubeEnv},
				{Name: "helm-install", Argv: []string{"helm", "upgrade", "--install", "ingress-nginx",
					"ingress-nginx/ingress-nginx", "--namespace", "ingress-nginx", "--create-namespace",
					"-f", values("ingress-nginx-values.yaml"), "--wait=false"},
					Env: kubeEnv, Timeout: 10 * time.Minute},
			},
			Health: &health.Spec{
				Kind:      health.KindHelmRelease,
				Target:    "ingress-nginx",
				Namespace: "ingress-nginx",
				MaxWait:   5 * time.Minute,
			},
		},
		{
			Name:         "secrets",
			Description:  "sealed-secrets controller for encrypting secrets at rest in git",
			Dependencies: []string{"kubernetes", "calico"},
			Steps: []module.Step{
				{Name: "helm-repo-add", Argv: []string{"helm", "repo", "add", "sealed-secrets",
					"https://bitnami-labs.github.io/sealed-secrets"}, Env: kubeEnv},
				{Name: "helm-install", Argv: []string{"helm", "upgrade", "--install", "sealed-secrets",
					"sealed-secrets/sealed-secrets", "--namespace", "kube-system",
					"--wait=false"}, Env: kubeEnv, Timeout: 10 * time.Minute},
			},
			Health: &health.Spec{
				Kind:      health.KindKubeResource,
				Target:    "deployment/kube-system/sealed-secrets",
				Namespace: "kube-system",
			},
		},
		{
			Name:         "monitoring",
			Description:  "kube-prometheus-stack with grafana",
			Dependencies: []string{"kubernetes", "calico"},
			Files: []module.File{
				{Path: values("monitoring-values.yaml"), Content: monitoringValues, Mode: 0o600},
			},
			Steps: []module.Step{
				{Name: "helm-repo-add", Argv: []string{"helm", "repo", "add", "prometheus-community",
					"https://prometheus-community.github.io/helm-charts"}, Env: kubeEnv},
				{Name: "helm-install", Argv: []string{"helm", "upgrade", "--install", "monitoring",
					"prometheus-community/kube-prometheus-stack", "--namespace", "monitoring",
					"--create-namespace", "-f", values("monitoring-values.yaml"), "--wait=false"},
					Env: kubeEnv, Timeout: 15 * time.Minute},
			},
			Health: &health.Spec{
				Kind:      health.KindHelmRelease,
				Target:    "monitoring",
				Namespace: "monitoring",
				MaxWait:   10 * time.Minute,
			},
		},
		{
			Name:         "backup",
			Description:  "velero cluster backups to s3-compatible storage",
			Dependencies: []string{"kubernetes", "calico"},
			Files: []module.File{
				{Path: values("velero-values.yaml"), Content: backupValues, Mode: 0o600},
			},
			Steps: []module.Step{
				{Name: "create-credentials", Argv: []string{"sh", "-c", fmt.Sprintf(
					"kubectl create namespace velero --dry-run=client -o yaml | kubectl apply -f - && "+
						"kubectl -n velero create secret generic velero-credentials "+
						"--from-literal=cloud='[default]\naws_access_key_id=%s\naws_secret_access_key=%s' "+
						"--dry-run=client -o yaml | kubectl apply -f -",
					p.Backup.AccessKey, p.Backup.SecretKey)},
					Env: kubeEnv, Hidden: true, Mask: []string{p.Backup.AccessKey, p.Backup.SecretKey}},
				{Name: "helm-repo-add", Argv: []string{"helm", "repo", "add", "vmware-tanzu",
					"https://vmware-tanzu.github.io/helm-charts"}, Env: kubeEnv},
				{Name: "helm-install", Argv: []string{"helm", "upgrade", "--install", "velero",
					"vmware-tanzu/velero", "--namespace", "velero",
					"-f", values("velero-values.yaml"), "--wait=false"},
					Env: kubeEnv, Timeout: 10 * time.Minute},
			},
			Health: &health.Spec{
				Kind:      health.KindHelmRelease,
				Target:    "velero",
				Namespace: "velero",
			},
		},
	}
	return mods, nil
}

// Registry builds a validated registry from the full catalog.
func Registry(p Params) (*module.Registry, error) {
	mods, err := Modules(p)
	if err != nil {
		return nil, errors.Wrap(err, "building catalog")
	}
	return module.NewRegistry(mods...)
}
