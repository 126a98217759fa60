package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
	"github.com/khanhnv2901/seca-switch/internal/pager"
	"github.com/khanhnv2901/seca-switch/internal/rules"
	consts "github.com/khanhnv2901/seca-switch/internal/shared/constants"
	"github.com/khanhnv2901/seca-switch/internal/transport"
)

// Dialer opens an authenticated session.
type Dialer func(ctx context.Context, target transport.Target, logger *zap.SugaredLogger) (*transport.Session, error)

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Reader pager.Options
	Dial   Dialer
	Logger *zap.SugaredLogger
}

// Service audits one device end to end: connect, probe, run, close.
type Service struct {
	orchestrator *Orchestrator
	reader       pager.Options
	dial         Dialer
	logger       *zap.SugaredLogger
}

// NewService creates an audit service around orchestrator.
func NewService(orchestrator *Orchestrator, opts ServiceOptions) *Service {
	if opts.Dial == nil {
		opts.Dial = transport.Connect
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Reader.Logger == nil {
		opts.Reader.Logger = opts.Logger
	}
	return &Service{
		orchestrator: orchestrator,
		reader:       opts.Reader,
		dial:         opts.Dial,
		logger:       opts.Logger,
	}
}

// Audit runs ruleSet against target. Connection and authentication failures
// return a failed report and a *transport.ConnectionError or
// *transport.AuthenticationError; every other failure is recorded as a
// finding. Cancelling ctx closes the session without waiting for a pending
// read, and the report records the remaining rules as errors.
func (s *Service) Audit(ctx context.Context, target transport.Target, ruleSet []rules.Rule) (*audit.Report, error) {
	report, err := audit.NewReport(target.Label(), target.Address(), string(target.Protocol))
	if err != nil {
		return nil, err
	}

	session, err := s.dial(ctx, target, s.logger)
	if err != nil {
		_ = report.Fail(err)
		s.logger.Warnf("audit aborted device=%s: %v", target.Label(), err)
		return report, err
	}
	defer session.Close()
	stop := context.AfterFunc(ctx, func() { _ = session.Close() })
	defer stop()

	reader := pager.NewReader(session, s.reader)
	if err := probe(ctx, reader, target); err != nil {
		_ = report.Fail(err)
		s.logger.Warnf("audit aborted device=%s: %v", target.Label(), err)
		return report, err
	}

	if err := s.orchestrator.Run(ctx, reader, ruleSet, report); err != nil {
		return report, err
	}

	summary := report.Summary()
	s.logger.Infof("audit complete device=%s pass=%d warn=%d fail=%d unparseable=%d error=%d",
		target.Label(), summary[audit.SeverityPass], summary[audit.SeverityWarn], summary[audit.SeverityFail],
		summary[audit.SeverityUnparseable], summary[audit.SeverityError])

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("audit of %s interrupted: %w", target.Label(), err)
	}
	return report, nil
}

// probe confirms the session reached a command interpreter.
func probe(ctx context.Context, reader *pager.Reader, target transport.Target) error {
	resp, err := reader.Execute(ctx, pager.Request{Command: "show version"})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &transport.AuthenticationError{
			Address: target.Address(),
			Stage:   "probe",
			Reason:  "show version failed",
			Err:     err,
		}
	}
	if len(resp.Lines()) < consts.ProbeMinLines {
		return &transport.AuthenticationError{
			Address: target.Address(),
			Stage:   "probe",
			Reason:  fmt.Sprintf("show version returned %d lines; check the credentials", len(resp.Lines())),
		}
	}
	return nil
}
