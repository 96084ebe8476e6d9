package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kubestrap/kubestrap/pkg/logger"
)

var resetAll bool

var resetCmd = &cobra.Command{
	Use:   "reset [module...]",
	Short: "Clear completion records so modules run again",
	Long: `Reset removes completion records from the state file. It does not undo
anything on the host; the next install re-runs the affected modules, which
are written to tolerate re-execution.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if resetAll == (len(args) > 0) {
			return errors.New("specify module names or --all, not both")
		}

		_, store, reg, err := newEngine(cfg.ExecutionContext())
		if err != nil {
			return err
		}

		names := args
		if resetAll {
			names = reg.Names()
		}
		for _, name := range names {
			if _, ok := reg.Get(name); !ok {
				return errors.Errorf("unknown module %q", name)
			}
		}

		if !confirm("Clear completion records? The next install will re-run these modules.") {
			return errors.New("aborted")
		}
		for _, name := range names {
			if err := store.Reset(name); err != nil {
				return errors.Wrapf(err, "resetting %s", name)
			}
			logger.Info("cleared record for module %q", name)
		}
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetAll, "all", false, "Reset every module")
	rootCmd.AddCommand(resetCmd)
}
