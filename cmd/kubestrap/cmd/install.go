package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kubestrap/kubestrap/pkg/engine"
	"github.com/kubestrap/kubestrap/pkg/logger"
	"github.com/kubestrap/kubestrap/pkg/preflight"
	"github.com/kubestrap/kubestrap/pkg/runner"
)

// timeRound trims durations for display.
const timeRound = 10 * time.Millisecond

var (
	installAll     bool
	dryRunFlag     bool
	forceFlag      bool
	skipValidation bool
	skipPreflight  bool
)

var installCmd = &cobra.Command{
	Use:   "install [module...]",
	Short: "Install one or more platform modules",
	Long: `Install runs the named modules (or every module with --all) in order.
Each module validates its dependencies, executes its steps with retries,
then confirms the result with a health check before being recorded as
complete. Already-complete modules are skipped unless --force is given.`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installAll, "all", false, "Install every module in dependency order")
	installCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Print what would run without executing anything")
	installCmd.Flags().BoolVar(&forceFlag, "force", false, "Re-run modules that are already complete")
	installCmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "Skip the dependency completeness check")
	installCmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip host preflight checks")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	if installAll == (len(args) > 0) {
		return errors.New("specify module names or --all, not both")
	}

	ec := cfg.ExecutionContext()
	ec.DryRun = dryRunFlag
	ec.Force = forceFlag
	ec.SkipValidation = skipValidation

	eng, _, reg, err := newEngine(ec)
	if err != nil {
		return err
	}

	names := args
	if installAll {
		names = reg.Names()
	}
	for _, name := range names {
		if _, ok := reg.Get(name); !ok {
			return errors.Errorf("unknown module %q (known: %s)", name, strings.Join(reg.Names(), ", "))
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println(figure.NewFigure("kubestrap", "", true).String())

	if ec.DryRun {
		logger.Info("dry-run: commands are simulated, nothing is executed or recorded")
	} else {
		if !skipPreflight {
			checker := preflight.New(runner.New(runner.Options{DefaultTimeout: ec.Timeout}, logger.Get()), logger.Get())
			if _, ok := checker.Run(ctx); !ok {
				return errors.New("preflight checks failed; fix the host or re-run with --skip-preflight")
			}
		}
		if !confirm(fmt.Sprintf("Install %s?", strings.Join(names, ", "))) {
			return errors.New("aborted")
		}
	}

	bar := progressbar.NewOptions(len(names),
		progressbar.OptionSetDescription("installing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionShowCount(),
	)
	eng.OnReport = func(r *engine.ModuleReport) {
		bar.Describe(r.Module)
		_ = bar.Add(1)
	}

	run := eng.RunSequence(ctx, names)
	_ = bar.Finish()

	printRunReport(run)
	if run.Halted {
		return errors.New("installation halted; see report above")
	}
	return nil
}

// confirm prompts on stdin unless --yes was given.
func confirm(prompt string) bool {
	if yesFlag {
		return true
	}
	fmt.Printf("%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printRunReport(run *engine.RunReport) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Module", "Status", "Health", "Duration", "Detail"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, r := range run.Reports {
		detail := r.HealthDetail
		if r.Error != "" {
			detail = r.Error
		}
		if r.Status == engine.StatusBlocked {
			detail = "missing: " + strings.Join(r.Missing, ", ")
		}
		table.Append([]string{
			r.Module,
			colorStatus(r.Status),
			string(r.Health),
			r.Duration.Round(timeRound).String(),
			detail,
		})
	}
	fmt.Println()
	table.Render()

	elapsed := run.EndTime.Sub(run.StartTime).Round(timeRound)
	if run.Halted {
		color.Red("\nRun %s halted after %s", run.ID, elapsed)
	} else {
		color.Green("\nRun %s finished in %s", run.ID, elapsed)
	}
}

func colorStatus(s engine.Status) string {
	switch s {
	case engine.StatusHealthy, engine.StatusAlreadyComplete:
		return color.GreenString(string(s))
	case engine.StatusDegraded:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}
