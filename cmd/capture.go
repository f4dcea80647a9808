package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"sitepresence/internal/bootstrap"
	"sitepresence/internal/bootstrap/logging"
	"sitepresence/internal/domain/attendance"
	"sitepresence/internal/errs"
	"sitepresence/internal/infrastructure/device"
	"sitepresence/internal/ports"
	"sitepresence/internal/usecase/capture"
)

func newCaptureCmd(kind attendance.Kind, use string, short string) *cobra.Command {
	var recorder *capture.Recorder
	command := &cobra.Command{
		Use:   use,
		Short: short,
	}
	command.RunE = withApp(func(cmd *cobra.Command, _ *bootstrap.App, _ services) error {
		ctx := logging.WithAttrs(cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("kind", string(kind)),
		)

		subjectID, _ := cmd.Flags().GetString("subject")
		requireLocation, _ := cmd.Flags().GetBool("require-location")
		await, _ := cmd.Flags().GetDuration("await-location")

		result, err := recorder.Record(ctx, capture.RecordInput{
			SubjectID:       subjectID,
			Kind:            kind,
			AwaitLocation:   await,
			RequireLocation: requireLocation,
		})
		if err != nil {
			if errors.Is(err, attendance.ErrSubmissionFailure) && result.Event.ID != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "event %s kept locally as %s; run `events retry %s`\n",
					result.Event.ID, result.Event.SubmissionState, result.Event.ID)
			}
			logging.Error(ctx, "record attendance failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrapf(err, "record %s", kind)
		}

		if err := writeCaptureResult(cmd.OutOrStdout(), result); err != nil {
			return errs.Wrap(err, "write capture output")
		}
		return nil
	},
		bootstrap.CaptureModule,
		fx.Provide(func() (ports.Camera, ports.Locator, error) {
			return captureDevices(command.Flags())
		}),
		fx.Populate(&recorder),
	)

	command.Flags().String("subject", "", "Subject (worker) id")
	command.Flags().String("photo", "", "Image file used as the camera frame")
	command.Flags().Float64("lat", 0, "Latitude of the device")
	command.Flags().Float64("lon", 0, "Longitude of the device")
	command.Flags().Float64("accuracy", 10, "Reported fix accuracy in meters")
	command.Flags().Bool("deny-location", false, "Simulate a refused location permission")
	command.Flags().Bool("require-location", false, "Refuse to record without a location fix")
	command.Flags().Duration("await-location", 0, "How long to wait for the address after the photo (default from config)")
	_ = command.MarkFlagRequired("subject")
	_ = command.MarkFlagRequired("photo")
	return command
}

// captureDevices builds a file camera and a static locator. Without both
// --lat and --lon the locator has no signal.
func captureDevices(flags *pflag.FlagSet) (ports.Camera, ports.Locator, error) {
	photoPath, _ := flags.GetString("photo")
	if strings.TrimSpace(photoPath) == "" {
		return nil, nil, errors.New("--photo is required")
	}

	locator := &device.StaticLocator{}
	locator.Denied, _ = flags.GetBool("deny-location")
	locator.AccuracyMeters, _ = flags.GetFloat64("accuracy")

	latSet, lonSet := flags.Changed("lat"), flags.Changed("lon")
	if latSet != lonSet {
		return nil, nil, errors.New("--lat and --lon must be given together")
	}
	if latSet {
		lat, _ := flags.GetFloat64("lat")
		lon, _ := flags.GetFloat64("lon")
		locator.Latitude = &lat
		locator.Longitude = &lon
	}

	return device.NewFileCamera(photoPath), locator, nil
}

func writeCaptureResult(w io.Writer, result capture.RecordResult) error {
	event := result.Event
	if _, err := fmt.Fprintf(w, "%s %s subject=%s state=%s captured_at=%s\n",
		event.Kind, event.ID, event.SubjectID, event.SubmissionState,
		event.CapturedAt.Format("2006-01-02T15:04:05Z07:00")); err != nil {
		return err
	}

	var notes []string
	switch {
	case event.Location == nil:
		reason := "no fix"
		if result.Snapshot.LocationErr != nil {
			reason = result.Snapshot.LocationErr.Error()
		}
		notes = append(notes, "warning: recorded without location ("+reason+"), event is flagged")
	default:
		if _, err := fmt.Fprintf(w, "location %.6f,%.6f ±%.0fm address=%q\n",
			event.Location.Latitude, event.Location.Longitude, event.Location.AccuracyMeters,
			event.Location.ResolvedAddress); err != nil {
			return err
		}
		if event.Location.Stale {
			notes = append(notes, "warning: location is stale, event is flagged")
		}
		if result.Snapshot.AddressFallback {
			notes = append(notes, "note: address lookup unavailable, coordinates recorded instead")
		}
		if event.Location.ResolvedAddress == "" {
			notes = append(notes, "note: address was still resolving when the event was recorded")
		}
	}
	for _, note := range notes {
		if _, err := fmt.Fprintln(w, note); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(
		newCaptureCmd(attendance.KindCheckIn, "checkin", "Capture a photo and location and record a check-in"),
		newCaptureCmd(attendance.KindCheckOut, "checkout", "Capture a photo and location and record a check-out"),
	)
}
