package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
	"github.com/khanhnv2901/seca-switch/internal/pager"
	"github.com/khanhnv2901/seca-switch/internal/rules"
	consts "github.com/khanhnv2901/seca-switch/internal/shared/constants"
)

// ProgressFunc is called after each rule with its 1-based position.
type ProgressFunc func(done, total int, finding audit.Finding)

// ControlsFunc returns the compliance controls a rule maps to.
type ControlsFunc func(ruleID string) []string

// Options configures an Orchestrator.
type Options struct {
	RuleTimeout time.Duration
	Device      rules.DeviceOptions
	Controls    ControlsFunc
	Progress    ProgressFunc
	Logger      *zap.SugaredLogger
}

// Orchestrator runs an ordered rule set against one device and records a
// finding per rule. A failing rule never stops the rules after it.
type Orchestrator struct {
	ruleTimeout time.Duration
	device      rules.DeviceOptions
	controls    ControlsFunc
	progress    ProgressFunc
	logger      *zap.SugaredLogger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.RuleTimeout <= 0 {
		opts.RuleTimeout = consts.DefaultRuleTimeout
	}
	if opts.Controls == nil {
		opts.Controls = func(string) []string { return nil }
	}
	if opts.Progress == nil {
		opts.Progress = func(int, int, audit.Finding) {}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		ruleTimeout: opts.RuleTimeout,
		device:      opts.Device,
		controls:    opts.Controls,
		progress:    opts.Progress,
		logger:      opts.Logger,
	}
}

// Run evaluates ruleSet in order and completes report. It returns an error
// only when the report itself rejects the run.
func (o *Orchestrator) Run(ctx context.Context, exec pager.Executor, ruleSet []rules.Rule, report *audit.Report) error {
	if err := report.Start(len(ruleSet)); err != nil {
		return fmt.Errorf("failed to start report: %w", err)
	}

	dev := rules.NewDevice(exec, o.device)
	for i, r := range ruleSet {
		finding := o.evaluate(ctx, dev, r)
		finding.Controls = o.controls(r.ID)
		if err := report.AddFinding(finding); err != nil {
			return fmt.Errorf("failed to record %s: %w", r.ID, err)
		}
		o.logger.Debugf("rule=%s severity=%s duration=%s", r.ID, finding.Severity, finding.Duration)
		o.progress(i+1, len(ruleSet), finding)
	}

	if err := report.Complete(); err != nil {
		return fmt.Errorf("failed to complete report: %w", err)
	}
	return nil
}

// evaluate contains every failure of one rule, panics included.
func (o *Orchestrator) evaluate(ctx context.Context, dev *rules.Device, r rules.Rule) (finding audit.Finding) {
	if err := ctx.Err(); err != nil {
		return r.ErrorFinding(fmt.Errorf("audit cancelled: %w", err), 0)
	}

	start := time.Now()
	ruleCtx, cancel := context.WithTimeout(ctx, o.ruleTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			err := &rules.RuleExecutionError{RuleID: r.ID, Err: fmt.Errorf("panic: %v", p)}
			o.logger.Errorf("rule=%s panicked: %v", r.ID, p)
			finding = r.ErrorFinding(err, time.Since(start))
		}
	}()

	var err error
	finding, err = r.Evaluate(ruleCtx, dev)
	if err != nil {
		o.logger.Warnf("rule=%s failed: %v", r.ID, err)
		return r.ErrorFinding(err, time.Since(start))
	}
	return finding
}
