package audit

import (
	"errors"
	"fmt"
	"time"

	sharedErrors "github.com/khanhnv2901/seca-switch/internal/shared/errors"
)

// Report is the ordered set of findings produced by auditing one device.
// It is the aggregate root for a run and becomes immutable once finished.
type Report struct {
	id          string
	device      string
	address     string
	protocol    string
	startedAt   time.Time
	completedAt time.Time
	status      Status
	findings    []Finding
	failure     string
	metadata    Metadata
}

// Status represents the lifecycle of a report.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Metadata describes the run itself. Export digests are kept by the
// exporter, never on the report.
type Metadata struct {
	TotalRules int
}

// Summary counts findings per severity.
type Summary map[Severity]int

// NewReport creates a pending report for a device.
func NewReport(device, address, protocol string) (*Report, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: device address cannot be empty", sharedErrors.ErrMissingRequired)
	}
	if device == "" {
		device = address
	}

	return &Report{
		id:       generateReportID(),
		device:   device,
		address:  address,
		protocol: protocol,
		status:   StatusPending,
		findings: make([]Finding, 0),
	}, nil
}

// Reconstruct creates a report from previously exported data.
func Reconstruct(id, device, address, protocol string, startedAt, completedAt time.Time,
	status Status, findings []Finding, failure string, metadata Metadata) *Report {
	return &Report{
		id:          id,
		device:      device,
		address:     address,
		protocol:    protocol,
		startedAt:   startedAt,
		completedAt: completedAt,
		status:      status,
		findings:    findings,
		failure:     failure,
		metadata:    metadata,
	}
}

// Business methods

// Start marks the report as running.
func (r *Report) Start(totalRules int) error {
	if r.status != StatusPending {
		return errors.New("report can only be started from pending status")
	}
	r.status = StatusRunning
	r.startedAt = time.Now()
	r.metadata.TotalRules = totalRules
	return nil
}

// AddFinding appends the next finding in rule order.
func (r *Report) AddFinding(f Finding) error {
	if r.status == StatusCompleted || r.status == StatusFailed {
		return sharedErrors.ErrReportFinished
	}
	if r.status != StatusRunning {
		return sharedErrors.ErrReportNotRunning
	}
	if f.RuleID == "" {
		return sharedErrors.ErrEmptyRuleID
	}
	if !f.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", sharedErrors.ErrInvalidInput, f.Severity)
	}

	r.findings = append(r.findings, f)
	return nil
}

// Complete marks the report as completed.
func (r *Report) Complete() error {
	if r.status != StatusRunning {
		return errors.New("report can only be completed from running status")
	}
	r.status = StatusCompleted
	r.completedAt = time.Now()
	return nil
}

// Fail marks the report as failed. Only connection and authentication
// failures end a run this way.
func (r *Report) Fail(reason error) error {
	if r.status == StatusCompleted {
		return errors.New("cannot fail a completed report")
	}
	r.status = StatusFailed
	r.completedAt = time.Now()
	if reason != nil {
		r.failure = reason.Error()
	}
	return nil
}

// Summary counts the findings per severity.
func (r *Report) Summary() Summary {
	s := Summary{}
	for _, sev := range Severities {
		s[sev] = 0
	}
	for _, f := range r.findings {
		s[f.Severity]++
	}
	return s
}

// HasActionable reports whether any finding is Fail or Error, or the run
// itself failed.
func (r *Report) HasActionable() bool {
	if r.status == StatusFailed {
		return true
	}
	for _, f := range r.findings {
		if f.Severity == SeverityFail || f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Getters

func (r *Report) ID() string {
	return r.id
}

func (r *Report) Device() string {
	return r.device
}

func (r *Report) Address() string {
	return r.address
}

func (r *Report) Protocol() string {
	return r.protocol
}

func (r *Report) StartedAt() time.Time {
	return r.startedAt
}

func (r *Report) CompletedAt() time.Time {
	return r.completedAt
}

func (r *Report) Status() Status {
	return r.status
}

func (r *Report) Failure() string {
	return r.failure
}

func (r *Report) Findings() []Finding {
	findingsCopy := make([]Finding, len(r.findings))
	copy(findingsCopy, r.findings)
	return findingsCopy
}

func (r *Report) Metadata() Metadata {
	return r.metadata
}

func generateReportID() string {
	return "audit-" + time.Now().Format("20060102-150405.000000")
}
