package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/seca-switch/internal/infrastructure/export"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <report-file>",
	Short: "Verify an exported report against its digest file",
	Long: `Recompute the digest of an exported report and compare it with the
companion .sha256 or .sha512 file written at export time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, _ := cmd.Flags().GetString("hash")
		if value == "" {
			if appCtx := getAppContext(cmd); appCtx != nil && appCtx.Config != nil {
				value = appCtx.Config.HashAlgorithm
			}
		}
		algorithm, err := export.ParseHashAlgorithm(value)
		if err != nil {
			return err
		}

		path := args[0]
		ok, err := export.Verify(path, algorithm)
		if err != nil {
			return fmt.Errorf("failed to verify report: %w", err)
		}

		out := cmd.OutOrStdout()
		if !ok {
			fmt.Fprintf(out, "%s Report integrity verification FAILED: %s\n", colorError("✗"), path)
			return &IntegrityError{Path: path}
		}
		fmt.Fprintf(out, "%s Report integrity verified (%s): %s\n", colorSuccess("✓"), algorithm, path)
		return nil
	},
}

func init() {
	verifyCmd.Flags().String("hash", "", "hash algorithm used at export: sha256 or sha512 (default from config)")
}
