// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/consentry/internal/config"
	"github.com/xkilldash9x/consentry/internal/observability"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd is the base command; every subcommand runs after configuration and
// logging are in place.
var rootCmd = &cobra.Command{
	Use:     "consentry",
	Short:   "Consentry detects cookie-consent banners and actuates them per policy.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			// A fallback logger so the failure itself is reportable.
			observability.InitializeLogger(config.LoggerConfig{
				Level: "info", Format: "console", ServiceName: "consentry",
			})
			return err
		}
		cfg = c
		observability.InitializeLogger(c.Log)
		observability.GetLogger().Debug("Starting consentry.", zap.String("version", Version))
		return nil
	},
}

// Execute runs the CLI under the signal-aware context from main.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed.", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./consentry.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newDetectCmd())
	rootCmd.AddCommand(newActCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newVersionCmd())
}
