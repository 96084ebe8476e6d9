package cmd

import (
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/kubestrap/kubestrap/pkg/logger"
	"github.com/kubestrap/kubestrap/pkg/preflight"
	"github.com/kubestrap/kubestrap/pkg/runner"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check the host without installing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		ec := cfg.ExecutionContext()
		checker := preflight.New(runner.New(runner.Options{DefaultTimeout: ec.Timeout}, logger.Get()), logger.Get())
		results, ok := checker.Run(cmd.Context())

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Check", "Result", "Detail"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)
		for _, r := range results {
			result := color.GreenString("pass")
			if !r.Ok {
				result = color.RedString("fail")
			}
			table.Append([]string{r.Name, result, r.Detail})
		}
		table.Render()

		if !ok {
			return errors.New("preflight checks failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(preflightCmd)
}
