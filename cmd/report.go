package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sitepresence/internal/bootstrap"
	"sitepresence/internal/bootstrap/logging"
	"sitepresence/internal/domain/attendance"
	"sitepresence/internal/errs"
	"sitepresence/internal/usecase/dashboard"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a subject's derived status on a day",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		subjectID, _ := cmd.Flags().GetString("subject")
		dateValue, _ := cmd.Flags().GetString("date")
		date, err := parseDateFlag(dateValue, svc.Attendance.Location())
		if err != nil {
			return err
		}

		report, err := svc.Attendance.SubjectStatus(ctx, subjectID, date)
		if err != nil {
			logging.Error(ctx, "derive subject status failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "derive subject status")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s %s\n", report.SubjectID, report.Date, report.Status)
		for _, mark := range report.History {
			fmt.Fprintf(out, "  seq=%d %s by=%s at=%s\n", mark.Seq, mark.Status, valueOrDash(mark.MarkedBy),
				mark.CreatedAt.In(svc.Attendance.Location()).Format(time.RFC3339))
		}
		return nil
	}),
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the attendance summary of a site on a day",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		siteID, _ := cmd.Flags().GetString("site")
		dateValue, _ := cmd.Flags().GetString("date")
		date, err := parseDateFlag(dateValue, svc.Attendance.Location())
		if err != nil {
			return err
		}

		summary, err := svc.Attendance.SiteSummary(ctx, siteID, date)
		if err != nil {
			logging.Error(ctx, "site summary failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "site summary")
		}

		if err := writeSummary(cmd.OutOrStdout(), summary); err != nil {
			return errs.Wrap(err, "write summary output")
		}
		return nil
	}),
}

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Show a subject's month classified by check-in/check-out evidence",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		subjectID, _ := cmd.Flags().GetString("subject")
		monthValue, _ := cmd.Flags().GetString("month")
		year, month, err := parseMonthFlag(monthValue, svc.Attendance.Location())
		if err != nil {
			return err
		}

		days, err := svc.Attendance.SubjectCalendar(ctx, subjectID, year, month)
		if err != nil {
			logging.Error(ctx, "subject calendar failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "subject calendar")
		}

		today := attendance.DateOf(time.Now(), svc.Attendance.Location())
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %04d-%02d  (# full, + check-in only, ! check-out only, . none)\n", subjectID, year, int(month))
		_, err = io.WriteString(out, dashboard.RenderMonth(days, today))
		return err
	}),
}

var dayCmd = &cobra.Command{
	Use:   "day",
	Short: "Show a subject's events and status on one day",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		subjectID, _ := cmd.Flags().GetString("subject")
		dateValue, _ := cmd.Flags().GetString("date")
		loc := svc.Attendance.Location()
		date, err := parseDateFlag(dateValue, loc)
		if err != nil {
			return err
		}

		detail, err := svc.Attendance.DayDetail(ctx, subjectID, date)
		if err != nil {
			logging.Error(ctx, "day detail failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "day detail")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s %s class=%s status=%s\n", subjectID, date, detail.Classification.Class, detail.Status.Status)
		for _, event := range detail.Events {
			address := "-"
			if event.Location != nil {
				address = valueOrDash(event.Location.ResolvedAddress)
			}
			fmt.Fprintf(out, "  %s %s flagged=%t address=%q\n",
				event.CapturedAt.In(loc).Format("15:04:05"), event.Kind, event.LocationFlagged, address)
		}
		return nil
	}),
}

func writeSummary(w io.Writer, summary attendance.Summary) error {
	if _, err := fmt.Fprintf(w, "%s present=%d absent=%d not_marked=%d total=%d attendance=%d%%\n",
		summary.Date, summary.Present, summary.Absent, summary.NotMarked, summary.Total, summary.Percentage); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, subject := range summary.Subjects {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", subject.SubjectID, valueOrDash(subject.Name), subject.Status)
	}
	return tw.Flush()
}

// parseDateFlag reads YYYY-MM-DD; an empty value is today in loc.
func parseDateFlag(value string, loc *time.Location) (attendance.Date, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "today") {
		return attendance.DateOf(time.Now(), loc), nil
	}
	return attendance.ParseDate(value)
}

// parseMonthFlag reads YYYY-MM; an empty value is the current month in loc.
func parseMonthFlag(value string, loc *time.Location) (int, time.Month, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		today := attendance.DateOf(time.Now(), loc)
		return today.Year, today.Month, nil
	}
	parsed, err := time.Parse("2006-01", value)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: month %q must be YYYY-MM", attendance.ErrInvalidDate, value)
	}
	return parsed.Year(), parsed.Month(), nil
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func init() {
	rootCmd.AddCommand(statusCmd, summaryCmd, calendarCmd, dayCmd)

	statusCmd.Flags().String("subject", "", "Subject id")
	statusCmd.Flags().String("date", "", "Day as YYYY-MM-DD (default today)")
	_ = statusCmd.MarkFlagRequired("subject")

	summaryCmd.Flags().String("site", "", "Site id")
	summaryCmd.Flags().String("date", "", "Day as YYYY-MM-DD (default today)")
	_ = summaryCmd.MarkFlagRequired("site")

	calendarCmd.Flags().String("subject", "", "Subject id")
	calendarCmd.Flags().String("month", "", "Month as YYYY-MM (default current month)")
	_ = calendarCmd.MarkFlagRequired("subject")

	dayCmd.Flags().String("subject", "", "Subject id")
	dayCmd.Flags().String("date", "", "Day as YYYY-MM-DD (default today)")
	_ = dayCmd.MarkFlagRequired("subject")
}
