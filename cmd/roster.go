package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sitepresence/internal/bootstrap"
	"sitepresence/internal/bootstrap/logging"
	"sitepresence/internal/errs"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage site rosters",
}

var rosterImportCmd = &cobra.Command{
	Use:   "import <roster.toml>",
	Short: "Load a site and its members from a TOML file",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		prune, _ := cmd.Flags().GetBool("prune")

		result, err := svc.Roster.Import(ctx, cmd.Flags().Arg(0), prune)
		if err != nil {
			logging.Error(ctx, "import roster failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "import roster")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "site %s: %d members upserted, %d removed\n",
			result.SiteID, result.Upserted, result.Removed); err != nil {
			return errs.Wrap(err, "write roster output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.AddCommand(rosterImportCmd)
	rosterImportCmd.Flags().Bool("prune", false, "Remove members missing from the file")
}
