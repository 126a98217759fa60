package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
	"github.com/khanhnv2901/seca-switch/internal/infrastructure/export"
	"github.com/khanhnv2901/seca-switch/internal/rules"
	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
)

const maxEvidenceLines = 6

// printReport writes the findings of one device. Passing findings are listed
// on one line; with showAll their evidence is printed as well.
func printReport(w io.Writer, report *audit.Report, showAll bool) {
	fmt.Fprintf(w, "%s %s (%s, %s)\n", colorInfo("Device:"), report.Device(), report.Address(), report.Protocol())
	fmt.Fprintf(w, "%s %s  %s %s\n", colorInfo("Report:"), report.ID(), colorInfo("Status:"), formatStatusWithColor(report.Status()))
	if report.Failure() != "" {
		fmt.Fprintf(w, "%s %s\n", colorError("Failure:"), report.Failure())
	}

	findings := report.Findings()
	if len(findings) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RULE\tSEVERITY\tMESSAGE")
		for _, f := range findings {
			msg := f.Message
			if f.Annotation != "" && f.Annotation != f.Message {
				msg += " [" + f.Annotation + "]"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", f.RuleID, formatSeverityWithColor(f.Severity), msg)
		}
		tw.Flush()

		for _, f := range findings {
			if f.Severity == audit.SeverityPass && !showAll {
				continue
			}
			printFindingDetail(w, f)
		}
	}

	fmt.Fprintf(w, "\n%s %s\n", colorInfo("Summary:"), formatSummary(report.Summary()))
}

func printFindingDetail(w io.Writer, f audit.Finding) {
	if len(f.Affected) == 0 && f.Evidence == "" && len(f.Controls) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s %s\n", formatSeverityWithColor(f.Severity), f.Title)
	if len(f.Affected) > 0 {
		fmt.Fprintf(w, "  affected: %s\n", strings.Join(f.Affected, ", "))
	}
	if len(f.Controls) > 0 {
		fmt.Fprintf(w, "  controls: %s\n", strings.Join(f.Controls, ", "))
	}
	if f.Evidence != "" {
		lines := strings.Split(strings.TrimRight(f.Evidence, "\n"), "\n")
		if len(lines) > maxEvidenceLines {
			lines = append(lines[:maxEvidenceLines], fmt.Sprintf("... (%d more lines)", len(lines)-maxEvidenceLines))
		}
		for _, line := range lines {
			fmt.Fprintf(w, "  | %s\n", line)
		}
	}
	if r, ok := rules.Lookup(f.RuleID); ok && r.Remediation != "" && f.Severity.Actionable() {
		fmt.Fprintf(w, "  fix: %s\n", r.Remediation)
	}
}

func formatSummary(s audit.Summary) string {
	parts := make([]string, 0, len(audit.Severities))
	for _, sev := range audit.Severities {
		parts = append(parts, fmt.Sprintf("%s=%d", sev, s[sev]))
	}
	return strings.Join(parts, " ")
}

// selectRules returns the catalog, or the named subset in catalog order.
func selectRules(ids []string) ([]rules.Rule, error) {
	catalog := rules.Catalog()
	if len(ids) == 0 {
		return catalog, nil
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := rules.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: unknown rule %q (see 'seca-switch rules')", sharedErrors.ErrInvalidInput, id)
		}
		want[id] = true
	}
	selected := make([]rules.Rule, 0, len(want))
	for _, r := range catalog {
		if want[r.ID] {
			selected = append(selected, r)
		}
	}
	return selected, nil
}

func parseFormats(values []string) ([]export.Format, error) {
	formats := make([]export.Format, 0, len(values))
	for _, v := range values {
		f, err := export.ParseFormat(v)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// exportReport writes report in every format and prints the resulting paths.
func exportReport(w io.Writer, exporter *export.Exporter, report *audit.Report, formats []export.Format) error {
	for _, format := range formats {
		artifact, err := exporter.Export(report, format)
		if err != nil {
			return fmt.Errorf("export %s: %w", format, err)
		}
		fmt.Fprintf(w, "%s %s (%s %s)\n", colorSuccess("Exported:"), artifact.Path, artifact.Algorithm, artifact.Digest)
	}
	return nil
}
