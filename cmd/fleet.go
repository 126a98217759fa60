package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-switch/internal/application"
	"github.com/khanhnv2901/seca-switch/internal/application/fleet"
	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
	"github.com/khanhnv2901/seca-switch/internal/transport"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Audit every configured switch",
	Long: `Audit all configured switches, each over its own session. Sessions are
opened at a bounded rate and at most --concurrency devices are audited at once.`,
	Example: `  seca-switch fleet --concurrency 8 --rate 4 --export json
  seca-switch fleet --device core-1,core-2 --details`,
	RunE: runFleet,
}

func runFleet(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	names, _ := cmd.Flags().GetStringSlice("device")
	ruleIDs, _ := cmd.Flags().GetStringSlice("rules")
	exportValues, _ := cmd.Flags().GetStringSlice("export")
	details, _ := cmd.Flags().GetBool("details")
	showProgress, _ := cmd.Flags().GetBool("progress")

	targets, err := fleetTargets(appCtx, names)
	if err != nil {
		return err
	}
	ruleSet, err := selectRules(ruleIDs)
	if err != nil {
		return err
	}
	formats, err := parseFormats(exportValues)
	if err != nil {
		return err
	}

	services, err := appCtx.services(application.Options{})
	if err != nil {
		return err
	}
	runner := *services.Fleet
	if f := cmd.Flags().Lookup("concurrency"); f != nil && f.Changed {
		runner.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	}
	if f := cmd.Flags().Lookup("rate"); f != nil && f.Changed {
		runner.RateLimit, _ = cmd.Flags().GetFloat64("rate")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var done fleet.DoneFunc
	if showProgress {
		printer := newProgressPrinter(cmd.ErrOrStderr(), len(targets), "fleet")
		printer.Start()
		defer printer.Stop()
		done = func(r fleet.Result) {
			printer.Increment(r.Err == nil && r.Report != nil && !r.Report.HasActionable(), r.Duration)
		}
	}

	results := runner.Run(ctx, services.AuditService, targets, ruleSet, done)

	out := cmd.OutOrStdout()
	printFleetSummary(out, results)

	actionable := &ActionableFindingsError{}
	for _, r := range results {
		if r.Report == nil {
			actionable.Devices++
			continue
		}
		if details {
			fmt.Fprintln(out)
			printReport(out, r.Report, false)
		}
		if err := exportReport(out, services.Exporter, r.Report, formats); err != nil {
			return err
		}
		if r.Err != nil || r.Report.HasActionable() {
			summary := r.Report.Summary()
			actionable.Devices++
			actionable.Failures += summary[audit.SeverityFail]
			actionable.Errors += summary[audit.SeverityError]
		}
	}
	if actionable.Devices > 0 {
		return actionable
	}
	return nil
}

func fleetTargets(appCtx *AppContext, names []string) ([]transport.Target, error) {
	if len(appCtx.Config.Devices) == 0 {
		return nil, fmt.Errorf("%w: no devices configured", sharedErrors.ErrMissingRequired)
	}
	if len(names) == 0 {
		return appCtx.Config.Targets(), nil
	}
	targets := make([]transport.Target, 0, len(names))
	for _, name := range names {
		d, err := appCtx.Config.Device(name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, d.Target(appCtx.Config.Defaults))
	}
	return targets, nil
}

func printFleetSummary(w io.Writer, results []fleet.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tSTATUS\tPASS\tWARN\tFAIL\tUNPARSEABLE\tERROR\tDURATION\tNOTE")
	for _, r := range results {
		if r.Report == nil {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t-\t-\t%v\n", r.Target.Label(), colorError("failed"), r.Err)
			continue
		}
		s := r.Report.Summary()
		note := ""
		if r.Err != nil {
			note = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.1fs\t%s\n",
			r.Report.Device(), formatStatusWithColor(r.Report.Status()),
			s[audit.SeverityPass], s[audit.SeverityWarn], s[audit.SeverityFail],
			s[audit.SeverityUnparseable], s[audit.SeverityError], r.Duration.Seconds(), note)
	}
	tw.Flush()
}

func init() {
	fleetCmd.Flags().StringSlice("device", nil, "comma-separated device names or IPs (default: all configured)")
	fleetCmd.Flags().StringSlice("rules", nil, "comma-separated rule IDs to run (default: full catalog)")
	fleetCmd.Flags().StringSlice("export", nil, "export formats: json, yaml, csv")
	fleetCmd.Flags().Int("concurrency", 0, "maximum devices audited at once (default from config)")
	fleetCmd.Flags().Float64("rate", 0, "new sessions opened per second (default from config)")
	fleetCmd.Flags().Bool("details", false, "print each device report after the summary")
	fleetCmd.Flags().Bool("progress", false, "show a live progress line on stderr")
}
