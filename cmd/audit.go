package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-switch/internal/application"
	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit one configured switch",
	Long: `Connect to one configured switch, run the rule catalog and print the
findings in rule order.

The command exits with status 2 when any rule fails or errors, so it can gate
scripts and pipelines. Connection and login failures exit with status 1.`,
	Example: `  seca-switch audit --device core-1
  seca-switch audit --device 10.0.0.2 --rules telnet,vtp-password --export json,csv`,
	RunE: runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	appCtx := getAppContext(cmd)
	deviceName, _ := cmd.Flags().GetString("device")
	ruleIDs, _ := cmd.Flags().GetStringSlice("rules")
	exportValues, _ := cmd.Flags().GetStringSlice("export")
	showAll, _ := cmd.Flags().GetBool("all")
	showProgress, _ := cmd.Flags().GetBool("progress")

	device, err := appCtx.Config.Device(deviceName)
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

	opts := application.Options{}
	var printer *progressPrinter
	if showProgress {
		printer = newProgressPrinter(cmd.ErrOrStderr(), len(ruleSet), device.Label())
		opts.Progress = func(done, total int, f audit.Finding) {
			printer.Increment(f.Severity.Evaluated() && !f.Severity.Actionable(), f.Duration)
		}
	}
	services, err := appCtx.services(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if printer != nil {
		printer.Start()
	}
	report, auditErr := services.AuditService.Audit(ctx, device.Target(appCtx.Config.Defaults), ruleSet)
	if printer != nil {
		printer.Stop()
	}
	if report == nil {
		return auditErr
	}

	out := cmd.OutOrStdout()
	printReport(out, report, showAll)
	if err := exportReport(out, services.Exporter, report, formats); err != nil {
		return err
	}
	if auditErr != nil {
		return auditErr
	}

	if report.HasActionable() {
		summary := report.Summary()
		return &ActionableFindingsError{Devices: 1, Failures: summary[audit.SeverityFail], Errors: summary[audit.SeverityError]}
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	auditCmd.Flags().StringP("device", "d", "", "device name or IP from the config (optional when only one is configured)")
	auditCmd.Flags().StringSlice("rules", nil, "comma-separated rule IDs to run (default: full catalog)")
	auditCmd.Flags().StringSlice("export", nil, "export formats: json, yaml, csv")
	auditCmd.Flags().Bool("all", false, "print evidence for passing rules as well")
	auditCmd.Flags().Bool("progress", false, "show a live progress line on stderr")
}
