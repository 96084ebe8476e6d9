// Package config loads the kubestrap configuration file. YAML is the
// primary format; TOML is accepted for hosts already managed by TOML-based
// tooling. The format is picked by extension.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/kubestrap/kubestrap/pkg/engine"
	"github.com/kubestrap/kubestrap/pkg/module/catalog"
)

// DefaultPath is probed when no --config flag is given.
const DefaultPath = "/etc/kubestrap/config.yaml"

// Config is the on-disk configuration. Intervals are plain seconds so the
// same file reads identically in YAML and TOML.
type Config struct {
	// StateFile is where module completion records live.
	StateFile string `yaml:"stateFile" toml:"stateFile"`
	// RenderDir receives generated helm values and kubeadm config files.
	RenderDir  string `yaml:"renderDir" toml:"renderDir"`
	Kubeconfig string `yaml:"kubeconfig" toml:"kubeconfig"`

	Execution  Execution  `yaml:"execution" toml:"execution"`
	Log        Log        `yaml:"log" toml:"log"`
	Cluster    Cluster    `yaml:"cluster" toml:"cluster"`
	Ingress    Ingress    `yaml:"ingress" toml:"ingress"`
	Monitoring Monitoring `yaml:"monitoring" toml:"monitoring"`
	Backup     Backup     `yaml:"backup" toml:"backup"`
}

// Execution holds the orchestration defaults, overridable per invocation by
// CLI flags.
type Execution struct {
	MaxRetries            int `yaml:"maxRetries" toml:"maxRetries"`
	RetryDelaySeconds     int `yaml:"retryDelaySeconds" toml:"retryDelaySeconds"`
	CommandTimeoutSeconds int `yaml:"commandTimeoutSeconds" toml:"commandTimeoutSeconds"`
}

type Log struct {
	File    string `yaml:"file" toml:"file"`
	Verbose bool   `yaml:"verbose" toml:"verbose"`
}

type Cluster struct {
	// NodeIP is the address the API server advertises. Required.
	NodeIP            string `yaml:"nodeIP" toml:"nodeIP"`
	KubernetesVersion string `yaml:"kubernetesVersion" toml:"kubernetesVersion"`
	PodCIDR           string `yaml:"podCIDR" toml:"podCIDR"`
	ServiceCIDR       string `yaml:"serviceCIDR" toml:"serviceCIDR"`
	SandboxImage      string `yaml:"sandboxImage" toml:"sandboxImage"`
}

type Ingress struct {
	ServiceType string `yaml:"serviceType" toml:"serviceType"`
}

type Monitoring struct {
	GrafanaAdminPassword string `yaml:"grafanaAdminPassword" toml:"grafanaAdminPassword"`
	Retention            string `yaml:"retention" toml:"retention"`
}

type Backup struct {
	Bucket    string `yaml:"bucket" toml:"bucket"`
	Region    string `yaml:"region" toml:"region"`
	S3URL     string `yaml:"s3Url" toml:"s3Url"`
	AccessKey string `yaml:"accessKey" toml:"accessKey"`
	SecretKey string `yaml:"secretKey" toml:"secretKey"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StateFile: "/var/lib/kubestrap/state.json",
		RenderDir: "/etc/kubestrap/rendered",
		Execution: Execution{
			MaxRetries:            engine.DefaultMaxRetries,
			RetryDelaySeconds:     int(engine.DefaultRetryDelay / time.Second),
			CommandTimeoutSeconds: int(engine.DefaultTimeout / time.Second),
		},
		Log: Log{File: "/var/log/kubestrap/kubestrap.log"},
	}
}

// Load reads and validates a configuration file. Fields left unset keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing yaml config %s", path)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing toml config %s", path)
		}
	default:
		return nil, errors.Errorf("unsupported config extension %q (want .yaml, .yml or .toml)", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// LoadOrDefault loads path when given, otherwise tries DefaultPath and falls
// back to the built-in defaults when no file exists.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return Load(DefaultPath)
	}
	return Default(), nil
}

func (c *Config) Validate() error {
	if c.StateFile == "" {
		return errors.New("stateFile must not be empty")
	}
	if c.Execution.MaxRetries < 0 {
		return errors.New("execution.maxRetries must not be negative")
	}
	if c.Execution.RetryDelaySeconds < 0 {
		return errors.New("execution.retryDelaySeconds must not be negative")
	}
	if c.Execution.CommandTimeoutSeconds <= 0 {
		return errors.New("execution.commandTimeoutSeconds must be positive")
	}
	return nil
}

// ExecutionContext converts the execution section into engine defaults. Flag
// overrides (dry-run, force, skip-validation) are applied by the caller.
func (c *Config) ExecutionContext() engine.ExecutionContext {
	return engine.ExecutionContext{
		MaxRetries: c.Execution.MaxRetries,
		RetryDelay: time.Duration(c.Execution.RetryDelaySeconds) * time.Second,
		Timeout:    time.Duration(c.Execution.CommandTimeoutSeconds) * time.Second,
	}
}

// CatalogParams maps the cluster sections onto catalog inputs.
func (c *Config) CatalogParams() catalog.Params {
	return catalog.Params{
		NodeIP:               c.Cluster.NodeIP,
		KubernetesVersion:    c.Cluster.KubernetesVersion,
		PodCIDR:              c.Cluster.PodCIDR,
		ServiceCIDR:          c.Cluster.ServiceCIDR,
		SandboxImage:         c.Cluster.SandboxImage,
		IngressServiceType:   c.Ingress.ServiceType,
		GrafanaAdminPassword: c.Monitoring.GrafanaAdminPassword,
		PrometheusRetention:  c.Monitoring.Retention,
		Backup: catalog.BackupParams{
			Bucket:    c.Backup.Bucket,
			Region:    c.Backup.Region,
			S3URL:     c.Backup.S3URL,
			AccessKey: c.Backup.AccessKey,
			SecretKey: c.Backup.SecretKey,
		},
		RenderDir: c.RenderDir,
	}
}
