// Package rules holds the switch compliance rules and the device view they
// evaluate against.
package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
	"github.com/khanhnv2901/seca-switch/internal/pager"
	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
)

// Family groups rules that share one evaluation strategy.
type Family string

const (
	FamilyPresence      Family = "presence"
	FamilyAbsence       Family = "absence"
	FamilyToggle        Family = "toggle"
	FamilyInterface     Family = "per-interface"
	FamilyVLAN          Family = "per-vlan"
	FamilyTable         Family = "table"
	FamilyInformational Family = "informational"
)

// Outcome is what a check observed. A violation is reported with the rule's
// fixed severity; anything else is a pass.
type Outcome struct {
	Violation  bool
	Message    string
	Evidence   string
	Affected   []string
	Annotation string
}

// Check evaluates one rule against a device.
type Check func(ctx context.Context, d *Device) (Outcome, error)

// Rule is one compliance check. Severity is the verdict used when the check
// finds a violation and never changes at runtime.
type Rule struct {
	ID       string
	Title    string
	Family   Family
	Severity audit.Severity
	Commands []string
	// HeaderRows is the line count below which a filtered running-config
	// answer means "not configured". Checks read it through
	// Device.Unmatched; zero means the default of four.
	HeaderRows  int
	Remediation string
	Check       Check
}

// PatternMismatchError reports device text an extractor could not read.
type PatternMismatchError struct {
	Expected string
	Text     string
}

func (e *PatternMismatchError) Error() string {
	return fmt.Sprintf("expected %s in device output", e.Expected)
}

func (e *PatternMismatchError) Unwrap() error {
	return sharedErrors.ErrPatternMismatch
}

func mismatch(expected, text string) error {
	return &PatternMismatchError{Expected: expected, Text: text}
}

// RuleExecutionError wraps any failure a rule could not classify.
type RuleExecutionError struct {
	RuleID string
	Err    error
}

func (e *RuleExecutionError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleExecutionError) Unwrap() []error {
	return []error{sharedErrors.ErrRuleExecution, e.Err}
}

// Evaluate runs the check and turns its result into a finding. Pattern
// mismatches and exhausted pagination become Unparseable findings; any other
// failure is returned as a *RuleExecutionError for the caller to record.
func (r Rule) Evaluate(ctx context.Context, d *Device) (audit.Finding, error) {
	start := time.Now()
	finding := audit.Finding{RuleID: r.ID, Title: r.Title}

	d.headerRows = r.HeaderRows
	out, err := r.Check(ctx, d)
	finding.Duration = time.Since(start)

	var limitErr *pager.PaginationLimitError
	var patternErr *PatternMismatchError
	switch {
	case err == nil:
		finding.Severity = audit.SeverityPass
		if out.Violation {
			finding.Severity = r.Severity
		}
		finding.Message = out.Message
		finding.Evidence = out.Evidence
		finding.Affected = out.Affected
		finding.Annotation = out.Annotation
		return finding, nil
	case errors.As(err, &limitErr):
		finding.Severity = audit.SeverityUnparseable
		finding.Message = limitErr.Error()
		finding.Evidence = limitErr.Partial
		return finding, nil
	case errors.As(err, &patternErr):
		finding.Severity = audit.SeverityUnparseable
		finding.Message = patternErr.Error()
		finding.Evidence = patternErr.Text
		return finding, nil
	default:
		return finding, &RuleExecutionError{RuleID: r.ID, Err: err}
	}
}

// ErrorFinding records a failure that escaped a rule.
func (r Rule) ErrorFinding(err error, elapsed time.Duration) audit.Finding {
	return audit.Finding{
		RuleID:   r.ID,
		Title:    r.Title,
		Severity: audit.SeverityError,
		Message:  err.Error(),
		Duration: elapsed,
	}
}
