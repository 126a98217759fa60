package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-switch/internal/config"
)

var cfgFile string
var debug bool

var rootCmd = &cobra.Command{
	Use:   "seca-switch",
	Short: "Audit the security posture of network switches over telnet or SSH",
	Long: `seca-switch logs into a switch CLI, runs a fixed battery of read-only
show commands and grades the live configuration against a catalog of
compliance rules.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		} else {
			v.AddConfigPath("$HOME")
			v.AddConfigPath(".")
			v.SetConfigName(".seca-switch")
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if cfgFile != "" || !errors.As(err, &notFound) {
				return fmt.Errorf("failed to read config: %w", err)
			}
		}

		cfg, err := config.Load(v)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		resultsDir, err := resolveResultsDir(cfg.ResultsDir)
		if err != nil {
			return err
		}

		l, err := newLogger(debug)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger := l.Sugar()
		logger.Debugf("config=%s results_dir=%s devices=%d", v.ConfigFileUsed(), resultsDir, len(cfg.Devices))

		storeAppContext(cmd, &AppContext{
			Logger:     logger,
			ResultsDir: resultsDir,
			Config:     cfg,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appCtx := getAppContext(cmd); appCtx != nil && appCtx.Logger != nil {
			_ = appCtx.Logger.Sync()
		}
	},
}

// newLogger builds the production logger. Without --debug only warnings
// reach stderr so the report stays readable.
func newLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}

// Execute runs the root command and exits with the status of the run.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var findings *ActionableFindingsError
	if errors.As(err, &findings) {
		fmt.Fprintln(os.Stderr, colorError(err.Error()))
		os.Exit(exitActionable)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.seca-switch.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log session and rule activity to stderr")

	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(fleetCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(versionCmd)
}
