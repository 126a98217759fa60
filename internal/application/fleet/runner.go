// Package fleet audits several devices at once, each over its own session.
package fleet

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/seca-switch/internal/domain/audit"
	"github.com/khanhnv2901/seca-switch/internal/rules"
	consts "github.com/khanhnv2901/seca-switch/internal/shared/constants"
	"github.com/khanhnv2901/seca-switch/internal/transport"
)

// Auditor audits a single device. *audit.Service from the application layer
// satisfies it.
type Auditor interface {
	Audit(ctx context.Context, target transport.Target, ruleSet []rules.Rule) (*audit.Report, error)
}

// Result is the outcome for one device. Report is nil only when the report
// could not even be created.
type Result struct {
	Target   transport.Target
	Report   *audit.Report
	Err      error
	Duration time.Duration
}

// DoneFunc is called as each device finishes.
type DoneFunc func(result Result)

// Runner audits targets with bounded concurrency and a global limit on how
// fast new sessions are opened. Sessions share no state.
type Runner struct {
	Concurrency int     // Maximum number of devices audited at once
	RateLimit   float64 // New sessions per second
	Timeout     time.Duration
	Logger      *zap.SugaredLogger
}

// Run audits every target and returns results in target order. A failing
// device never cancels the others.
func (r *Runner) Run(ctx context.Context, auditor Auditor, targets []transport.Target, ruleSet []rules.Rule, done DoneFunc) []Result {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = consts.DefaultFleetConcurrency
	}
	limit := r.RateLimit
	if limit <= 0 {
		limit = consts.DefaultFleetRate
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	limiter := rate.NewLimiter(rate.Limit(limit), max(1, int(limit)))
	results := make([]Result, len(targets))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, target := range targets {
		g.Go(func() error {
			start := time.Now()
			if err := limiter.Wait(ctx); err != nil {
				results[i] = Result{Target: target, Err: err}
				return nil
			}

			auditCtx := ctx
			if r.Timeout > 0 {
				var cancel context.CancelFunc
				auditCtx, cancel = context.WithTimeout(ctx, r.Timeout)
				defer cancel()
			}

			report, err := auditor.Audit(auditCtx, target, ruleSet)
			results[i] = Result{Target: target, Report: report, Err: err, Duration: time.Since(start)}
			if err != nil {
				logger.Warnf("device=%s audit failed: %v", target.Label(), err)
			}
			if done != nil {
				done(results[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
