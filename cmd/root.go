package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"sitepresence/internal/bootstrap/logging"
	"sitepresence/internal/errs"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "sitepresence",
	Short:        "Field attendance capture with photo and location evidence",
	Long:         "Records check-in/check-out events with a photo and an address, keeps supervisor daily marks and reports site attendance.",
	SilenceUsage: true,
}

// Execute runs the root command with a context logger attached.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger := logging.New(rootCmd.ErrOrStderr(), "info", "text")
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "sitepresence"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "Config file path")
}
