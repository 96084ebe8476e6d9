package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kubestrap/kubestrap/pkg/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the completion state of every module",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, store, reg, err := newEngine(cfg.ExecutionContext())
		if err != nil {
			return err
		}

		records := map[string]state.Record{}
		all, err := store.All()
		if err != nil {
			return err
		}
		for _, r := range all {
			records[r.Name] = r
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Module", "State", "Health", "Last Run", "Blocked On"})
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)

		for _, name := range reg.Names() {
			stateCol := color.New(color.Faint).Sprint("pending")
			healthCol, lastRun := "", ""
			if rec, ok := records[name]; ok {
				if rec.Complete {
					stateCol = color.GreenString("complete")
				} else {
					stateCol = color.RedString("incomplete")
				}
				healthCol = rec.Health
				lastRun = rec.Timestamp.Format("2006-01-02 15:04:05")
			}

			ok, missing, err := eng.Validate(name)
			table.Append([]string{name, stateCol, healthCol, lastRun, blockedOnColumn(ok, missing, err)})
		}
		table.Render()
		fmt.Printf("\nState file: %s\n", store.Path())
		return nil
	},
}

// blockedOnColumn renders the Blocked On cell. A validation error (e.g. an
// unreadable state file) is shown rather than passing as "not blocked".
func blockedOnColumn(ok bool, missing []string, err error) string {
	if err != nil {
		return color.RedString("error: %v", err)
	}
	if !ok {
		return strings.Join(missing, ", ")
	}
	return ""
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
