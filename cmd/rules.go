package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-switch/internal/compliance"
	"github.com/khanhnv2901/seca-switch/internal/rules"
	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
)

var rulesCmd = &cobra.Command{
	Use:   "rules [rule-id]",
	Short: "List the rule catalog",
	Long: `List every rule in evaluation order with its family, the severity it
reports on violation and the compliance controls it provides evidence for.
With a rule ID, print the commands the rule sends and how to remediate it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		framework, _ := cmd.Flags().GetString("framework")
		if framework == "" {
			if appCtx := getAppContext(cmd); appCtx != nil && appCtx.Config != nil {
				framework = appCtx.Config.Framework
			}
		}
		if framework == "" {
			framework = compliance.DefaultFramework
		}
		fw := compliance.GetFramework(framework)
		if fw == nil {
			return fmt.Errorf("%w: unknown framework %q", sharedErrors.ErrInvalidInput, framework)
		}
		controls := compliance.ControlsFor(fw.ID)
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			r, ok := rules.Lookup(args[0])
			if !ok {
				return fmt.Errorf("%w: unknown rule %q", sharedErrors.ErrInvalidInput, args[0])
			}
			fmt.Fprintf(out, "%s %s\n", colorInfo("Rule:"), r.ID)
			fmt.Fprintf(out, "%s %s\n", colorInfo("Title:"), r.Title)
			fmt.Fprintf(out, "%s %s\n", colorInfo("Family:"), r.Family)
			fmt.Fprintf(out, "%s %s\n", colorInfo("Severity:"), formatSeverityWithColor(r.Severity))
			fmt.Fprintf(out, "%s %s\n", colorInfo(fw.Name+":"), strings.Join(controls(r.ID), ", "))
			fmt.Fprintf(out, "%s\n", colorInfo("Commands:"))
			for _, c := range r.Commands {
				fmt.Fprintf(out, "  %s\n", c)
			}
			if r.Remediation != "" {
				fmt.Fprintf(out, "%s %s\n", colorInfo("Remediation:"), r.Remediation)
			}
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFAMILY\tSEVERITY\tCONTROLS\tTITLE")
		for _, r := range rules.Catalog() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Family, r.Severity, strings.Join(controls(r.ID), ","), r.Title)
		}
		return tw.Flush()
	},
}

func init() {
	rulesCmd.Flags().String("framework", "", "compliance framework for the controls column (iso27001, jisq27001)")
}
