package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sitepresence/internal/bootstrap"
	"sitepresence/internal/bootstrap/logging"
	"sitepresence/internal/domain/attendance"
	"sitepresence/internal/errs"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect and resolve locally kept attendance events",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local events of a subject",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		subjectID, _ := cmd.Flags().GetString("subject")
		stateValues, _ := cmd.Flags().GetStringSlice("state")
		states := make([]attendance.SubmissionState, 0, len(stateValues))
		for _, value := range stateValues {
			states = append(states, attendance.SubmissionState(value))
		}

		events, err := svc.Attendance.ListLocal(ctx, subjectID, states...)
		if err != nil {
			logging.Error(ctx, "list local events failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list local events")
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "EVENT\tSUBJECT\tKIND\tCAPTURED_AT\tSTATE\tATTEMPTS\tFLAGGED\tLAST_ERROR")
		for _, event := range events {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%t\t%s\n",
				event.ID, event.SubjectID, event.Kind,
				event.CapturedAt.In(svc.Attendance.Location()).Format("2006-01-02 15:04:05"),
				event.SubmissionState, event.Attempts, event.LocationFlagged, event.LastError)
		}
		if err := tw.Flush(); err != nil {
			return errs.Wrap(err, "write events output")
		}
		return nil
	}),
}

var eventsRetryCmd = &cobra.Command{
	Use:   "retry <event-id>",
	Short: "Resubmit a pending or failed local event",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		eventID := cmd.Flags().Arg(0)

		event, err := svc.Attendance.Retry(ctx, eventID)
		if err != nil {
			logging.Error(ctx, "retry event failed", slog.String("event_id", eventID), slog.Any("err", errs.Loggable(err)))
			return errs.Wrapf(err, "retry event %s", eventID)
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "event %s %s after %d attempts\n", event.ID, event.SubmissionState, event.Attempts); err != nil {
			return errs.Wrap(err, "write retry output")
		}
		return nil
	}),
}

var eventsDiscardCmd = &cobra.Command{
	Use:   "discard <event-id>",
	Short: "Drop a local event so the subject can record again",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		eventID := cmd.Flags().Arg(0)

		if err := svc.Attendance.Discard(ctx, eventID); err != nil {
			logging.Error(ctx, "discard event failed", slog.String("event_id", eventID), slog.Any("err", errs.Loggable(err)))
			return errs.Wrapf(err, "discard event %s", eventID)
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "discarded event: %s\n", eventID); err != nil {
			return errs.Wrap(err, "write discard output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListCmd, eventsRetryCmd, eventsDiscardCmd)

	eventsListCmd.Flags().String("subject", "", "Only events of this subject")
	eventsListCmd.Flags().StringSlice("state", nil, "Only events in these states (pending|failed|submitted)")
}
