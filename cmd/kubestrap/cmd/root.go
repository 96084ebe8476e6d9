package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kubestrap/kubestrap/pkg/config"
	"github.com/kubestrap/kubestrap/pkg/engine"
	"github.com/kubestrap/kubestrap/pkg/logger"
	"github.com/kubestrap/kubestrap/pkg/module"
	"github.com/kubestrap/kubestrap/pkg/module/catalog"
	"github.com/kubestrap/kubestrap/pkg/state"
)

var (
	cfgFile     string
	verboseFlag bool
	yesFlag     bool

	// cfg is loaded once in the persistent pre-run and read by subcommands.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kubestrap",
	Short: "kubestrap turns a single Ubuntu server into a Kubernetes platform.",
	Long: `kubestrap installs and verifies a single-node Kubernetes platform:
container runtime, control plane, pod networking, ingress, secrets
management, monitoring and backups. Every module is idempotent; re-running
the installer skips what is already done.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadOrDefault(cfgFile)
		if err != nil {
			return err
		}

		opts := logger.DefaultOptions()
		opts.ColorConsole = true
		if verboseFlag || cfg.Log.Verbose {
			opts.ConsoleLevel = logger.DebugLevel
		}
		if cfg.Log.File != "" {
			opts.FileOutput = true
			opts.LogFilePath = cfg.Log.File
		}
		logger.Init(opts)
		return nil
	},
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	defer func() { _ = logger.SyncGlobal() }()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default "+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "Assume yes to all prompts")
}

// newEngine wires the catalog, state store and engine for one invocation.
func newEngine(ec engine.ExecutionContext) (*engine.Engine, *state.FileStore, *module.Registry, error) {
	reg, err := catalog.Registry(cfg.CatalogParams())
	if err != nil {
		return nil, nil, nil, err
	}
	store := state.NewFileStore(cfg.StateFile)
	eng, err := engine.New(reg, store, ec, cfg.Kubeconfig, logger.Get())
	if err != nil {
		return nil, nil, nil, err
	}
	return eng, store, reg, nil
}
