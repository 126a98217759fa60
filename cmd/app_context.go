package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-switch/internal/application"
	"github.com/khanhnv2901/seca-switch/internal/config"
)

// AppContext is the state every subcommand needs once the root command has
// loaded configuration.
type AppContext struct {
	Logger     *zap.SugaredLogger
	ResultsDir string
	Config     *config.Config
	Services   *application.Container
}

type appContextKey struct{}

var globalAppContext *AppContext

func storeAppContext(cmd *cobra.Command, appCtx *AppContext) {
	globalAppContext = appCtx
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appContextKey{}, appCtx))
}

func getAppContext(cmd *cobra.Command) *AppContext {
	if ctx := cmd.Context(); ctx != nil {
		if appCtx, ok := ctx.Value(appContextKey{}).(*AppContext); ok {
			return appCtx
		}
	}
	return globalAppContext
}

// services builds the container for one invocation. Progress is per command,
// so the container is assembled here rather than in the root hook.
func (a *AppContext) services(opts application.Options) (*application.Container, error) {
	if a.Services != nil {
		return a.Services, nil
	}
	if opts.ResultsDir == "" {
		opts.ResultsDir = a.ResultsDir
	}
	if opts.Logger == nil {
		opts.Logger = a.Logger
	}
	return application.NewContainer(a.Config, opts)
}
