package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"sitepresence/internal/bootstrap"
	"sitepresence/internal/bootstrap/logging"
	"sitepresence/internal/errs"
	"sitepresence/internal/usecase/dashboard"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the supervisor attendance console",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		siteID, _ := cmd.Flags().GetString("site")
		markedBy, _ := cmd.Flags().GetString("by")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		if strings.TrimSpace(metricsAddr) != "" {
			stop, err := serveMetrics(ctx, app, metricsAddr)
			if err != nil {
				return err
			}
			defer stop()
		}

		model := dashboard.NewDashboardModel(ctx, svc.Attendance, dashboard.Options{
			SiteID:          siteID,
			MarkedBy:        markedBy,
			RefreshInterval: refreshInterval,
			Location:        app.Location,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run attendance console")
		}
		return nil
	}),
}

// serveMetrics exposes the registry on addr until the returned stop is called.
func serveMetrics(ctx context.Context, app *bootstrap.App, addr string) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errs.Wrapf(err, "listen metrics on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logCtx := logging.WithComponent(ctx, "cmd.console")
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warn(logCtx, "metrics server stopped", slog.Any("err", errs.Loggable(err)))
		}
	}()
	logging.Info(logCtx, "serving metrics", slog.String("addr", listener.Addr().String()))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}, nil
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().String("site", "", "Site id")
	consoleCmd.Flags().String("by", "", "Supervisor id recorded on marks")
	consoleCmd.Flags().Duration("refresh-interval", 10*time.Second, "Auto refresh interval")
	consoleCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	_ = consoleCmd.MarkFlagRequired("site")
}
