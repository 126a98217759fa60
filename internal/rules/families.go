package rules

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
	"github.com/khanhnv2901/seca-switch/internal/facts"
)

// headerRows is the line count of a filtered running-config answer that
// matched nothing: the echoed command, a blank line and the prompt. Fewer
// than this many lines means the feature is not configured.
const headerRows = 4

// presence flags a missing configuration line.
func presence(id, title string, sev audit.Severity, command, absent, remediation string) Rule {
	return Rule{
		ID:          id,
		Title:       title,
		Family:      FamilyPresence,
		Severity:    sev,
		Commands:    []string{command},
		HeaderRows:  headerRows,
		Remediation: remediation,
		Check: func(ctx context.Context, d *Device) (Outcome, error) {
			text, err := d.RunConfig(ctx, command)
			if err != nil {
				return Outcome{}, err
			}
			if d.Unmatched(text) {
				return Outcome{Violation: true, Message: absent, Evidence: text}, nil
			}
			return Outcome{
				Message:  title + " is configured",
				Evidence: strings.Join(facts.ConfigLines(text), "\n"),
			}, nil
		},
	}
}

// absence flags a configuration line that should not exist.
func absence(id, title string, sev audit.Severity, command, present, remediation string) Rule {
	return Rule{
		ID:          id,
		Title:       title,
		Family:      FamilyAbsence,
		Severity:    sev,
		Commands:    []string{command},
		HeaderRows:  headerRows,
		Remediation: remediation,
		Check: func(ctx context.Context, d *Device) (Outcome, error) {
			text, err := d.RunConfig(ctx, command)
			if err != nil {
				return Outcome{}, err
			}
			if !d.Unmatched(text) {
				return Outcome{
					Violation: true,
					Message:   present,
					Evidence:  strings.Join(facts.ConfigLines(text), "\n"),
				}, nil
			}
			return Outcome{Message: title + " is not configured"}, nil
		},
	}
}

// toggle flags output containing an explicit disabled token.
func toggle(id, title string, sev audit.Severity, command, token, disabled, remediation string) Rule {
	return Rule{
		ID:          id,
		Title:       title,
		Family:      FamilyToggle,
		Severity:    sev,
		Commands:    []string{command},
		Remediation: remediation,
		Check: func(ctx context.Context, d *Device) (Outcome, error) {
			text, err := d.Run(ctx, command)
			if err != nil {
				return Outcome{}, err
			}
			if strings.Contains(text, token) {
				return Outcome{Violation: true, Message: disabled, Evidence: text}, nil
			}
			return Outcome{Message: title + " is enabled", Evidence: text}, nil
		},
	}
}

// perInterface reads one status field per connected interface and reports
// every interface whose value is outside allowed in a single finding.
// Interfaces in any other state are never queried.
func perInterface(id, title string, sev audit.Severity, command, field string, allowed []string, violated, remediation string) Rule {
	return Rule{
		ID:          id,
		Title:       title,
		Family:      FamilyInterface,
		Severity:    sev,
		Commands:    []string{"show interfaces status", command + " <interface>"},
		Remediation: remediation,
		Check: func(ctx context.Context, d *Device) (Outcome, error) {
			ifaces, err := d.ConnectedInterfaces(ctx)
			if err != nil {
				return Outcome{}, err
			}
			if len(ifaces) == 0 {
				return Outcome{Message: "no connected interfaces"}, nil
			}

			var violators, evidence []string
			for _, iface := range ifaces {
				text, err := d.RunCached(ctx, command+" "+iface.Name)
				if err != nil {
					return Outcome{}, err
				}
				value, ok := facts.Field(text, field)
				if !ok {
					return Outcome{}, mismatch(fmt.Sprintf("%q for %s", field, iface.Name), text)
				}
				if !slices.Contains(allowed, value) {
					violators = append(violators, iface.Name)
					evidence = append(evidence, fmt.Sprintf("%s: %s %s", iface.Name, field, value))
				}
			}
			if len(violators) > 0 {
				return Outcome{
					Violation: true,
					Message:   fmt.Sprintf("%s: %s", violated, strings.Join(violators, ", ")),
					Evidence:  strings.Join(evidence, "\n"),
					Affected:  violators,
				}, nil
			}
			return Outcome{Message: fmt.Sprintf("%s compliant on %d connected interfaces", field, len(ifaces))}, nil
		},
	}
}

// perVLAN inspects a fixed row of a per-VLAN command and stops at the first
// VLAN showing the disabled marker.
func perVLAN(id, title string, sev audit.Severity, format string, row int, marker, violated, remediation string) Rule {
	return Rule{
		ID:          id,
		Title:       title,
		Family:      FamilyVLAN,
		Severity:    sev,
		Commands:    []string{"show vlan brief", fmt.Sprintf(format, "<vlan>", "<vlan>")},
		Remediation: remediation,
		Check: func(ctx context.Context, d *Device) (Outcome, error) {
			vlans, err := d.VLANs(ctx)
			if err != nil {
				return Outcome{}, err
			}
			for _, v := range vlans {
				text, err := d.Run(ctx, fmt.Sprintf(format, fmt.Sprint(v.ID), fmt.Sprint(v.ID)))
				if err != nil {
					return Outcome{}, err
				}
				line, ok := facts.LineAt(text, row)
				if !ok {
					return Outcome{}, mismatch(fmt.Sprintf("status row %d for VLAN %d", row, v.ID), text)
				}
				if strings.Contains(line, marker) {
					name := fmt.Sprintf("VLAN %d", v.ID)
					return Outcome{
						Violation: true,
						Message:   fmt.Sprintf("%s for %s", violated, name),
						Evidence:  line,
						Affected:  []string{name},
					}, nil
				}
			}
			return Outcome{Message: fmt.Sprintf("%s on %d active VLANs", title, len(vlans))}, nil
		},
	}
}

// informational records a value without a verdict.
func informational(id, title string, commands []string, check Check) Rule {
	return Rule{
		ID:       id,
		Title:    title,
		Family:   FamilyInformational,
		Severity: audit.SeverityPass,
		Commands: commands,
		Check:    check,
	}
}
