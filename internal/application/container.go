package application

import (
	"fmt"

	"go.uber.org/zap"

	auditapp "github.com/khanhnv2901/seca-switch/internal/application/audit"
	"github.com/khanhnv2901/seca-switch/internal/application/fleet"
	"github.com/khanhnv2901/seca-switch/internal/compliance"
	"github.com/khanhnv2901/seca-switch/internal/config"
	"github.com/khanhnv2901/seca-switch/internal/infrastructure/export"
)

// Options carries the per-invocation collaborators that are not part of the
// configuration file.
type Options struct {
	ResultsDir string
	Logger     *zap.SugaredLogger
	Progress   auditapp.ProgressFunc
	Dial       auditapp.Dialer
}

// Container holds all application services
// This is a simple dependency injection container
type Container struct {
	Config *config.Config

	// Services
	Orchestrator *auditapp.Orchestrator
	AuditService *auditapp.Service
	Fleet        *fleet.Runner
	Exporter     *export.Exporter
}

// NewContainer creates a new application service container
func NewContainer(cfg *config.Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	framework := cfg.Framework
	if framework == "" {
		framework = compliance.DefaultFramework
	}

	algorithm, err := export.ParseHashAlgorithm(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	exporter, err := export.NewExporter(opts.ResultsDir, algorithm)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	orchestrator := auditapp.NewOrchestrator(auditapp.Options{
		RuleTimeout: cfg.Defaults.RuleTimeout,
		Device:      cfg.DeviceOptions(),
		Controls:    compliance.ControlsFor(framework),
		Progress:    opts.Progress,
		Logger:      logger,
	})
	service := auditapp.NewService(orchestrator, auditapp.ServiceOptions{
		Reader: cfg.ReaderOptions(),
		Dial:   opts.Dial,
		Logger: logger,
	})

	return &Container{
		Config:       cfg,
		Orchestrator: orchestrator,
		AuditService: service,
		Fleet: &fleet.Runner{
			Concurrency: cfg.Fleet.Concurrency,
			RateLimit:   cfg.Fleet.Rate,
			Timeout:     cfg.Fleet.Timeout,
			Logger:      logger,
		},
		Exporter: exporter,
	}, nil
}
