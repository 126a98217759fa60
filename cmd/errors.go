package cmd

import "fmt"

// exitActionable is the process status when an audit finished but found
// Fail or Error findings.
const exitActionable = 2

// ActionableFindingsError reports that one or more devices need attention.
// It is returned after the report has been printed.
type ActionableFindingsError struct {
	Devices  int
	Failures int
	Errors   int
}

func (e *ActionableFindingsError) Error() string {
	if e.Devices > 1 {
		return fmt.Sprintf("%d devices need attention: %d failing rules, %d rule errors", e.Devices, e.Failures, e.Errors)
	}
	return fmt.Sprintf("audit found %d failing rules and %d rule errors", e.Failures, e.Errors)
}

// IntegrityError signals that an exported report no longer matches its digest.
type IntegrityError struct {
	Path string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("report %s does not match its recorded digest", e.Path)
}
