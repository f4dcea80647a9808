package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sitepresence/internal/bootstrap"
	"sitepresence/internal/bootstrap/logging"
	"sitepresence/internal/domain/attendance"
	"sitepresence/internal/errs"
	attendanceuc "sitepresence/internal/usecase/attendance"
)

var markCmd = &cobra.Command{
	Use:   "mark",
	Short: "Record a supervisor daily mark (present|absent)",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		subjectID, _ := cmd.Flags().GetString("subject")
		dateValue, _ := cmd.Flags().GetString("date")
		status, _ := cmd.Flags().GetString("status")
		markedBy, _ := cmd.Flags().GetString("by")

		date, err := parseDateFlag(dateValue, svc.Attendance.Location())
		if err != nil {
			return err
		}

		mark, err := svc.Attendance.MarkDaily(ctx, attendanceuc.MarkInput{
			SubjectID: subjectID,
			Date:      date,
			Status:    attendance.Status(status),
			MarkedBy:  markedBy,
		})
		if err != nil {
			logging.Error(ctx, "record daily mark failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "record daily mark")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "marked %s %s on %s (seq=%d)\n", mark.SubjectID, mark.Status, mark.Date, mark.Seq); err != nil {
			return errs.Wrap(err, "write mark output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(markCmd)
	markCmd.Flags().String("subject", "", "Subject id")
	markCmd.Flags().String("date", "", "Day to mark as YYYY-MM-DD (default today)")
	markCmd.Flags().String("status", "", "present or absent")
	markCmd.Flags().String("by", "", "Supervisor id")
	_ = markCmd.MarkFlagRequired("subject")
	_ = markCmd.MarkFlagRequired("status")
}
