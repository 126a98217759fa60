package audit

import "time"

// Severity is the verdict of one rule.
type Severity string

const (
	SeverityPass        Severity = "pass"
	SeverityWarn        Severity = "warn"
	SeverityFail        Severity = "fail"
	SeverityUnparseable Severity = "unparseable"
	SeverityError       Severity = "error"
)

// Severities lists every severity in report order.
var Severities = []Severity{SeverityPass, SeverityWarn, SeverityFail, SeverityUnparseable, SeverityError}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	for _, known := range Severities {
		if s == known {
			return true
		}
	}
	return false
}

// Actionable reports whether the finding requires an operator fix.
func (s Severity) Actionable() bool {
	return s == SeverityFail
}

// Evaluated reports whether the rule produced a verdict at all. Unparseable
// and Error findings mean the device was not evaluated, not that it complies.
func (s Severity) Evaluated() bool {
	return s == SeverityPass || s == SeverityWarn || s == SeverityFail
}

// Finding is one rule's verdict for one run. Affected names the interfaces,
// VLANs or causes the finding is about; Annotation carries the value recorded
// by informational rules.
type Finding struct {
	RuleID     string        `json:"rule_id" yaml:"rule_id"`
	Title      string        `json:"title" yaml:"title"`
	Severity   Severity      `json:"severity" yaml:"severity"`
	Message    string        `json:"message" yaml:"message"`
	Evidence   string        `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Affected   []string      `json:"affected,omitempty" yaml:"affected,omitempty"`
	Annotation string        `json:"annotation,omitempty" yaml:"annotation,omitempty"`
	Controls   []string      `json:"controls,omitempty" yaml:"controls,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
}
