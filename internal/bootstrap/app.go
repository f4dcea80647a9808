package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"sitepresence/internal/bootstrap/config"
	"sitepresence/internal/bootstrap/logging"
	"sitepresence/internal/errs"
	"sitepresence/internal/infrastructure/persistence/sqlite/model"
)

// App carries what every command needs after bootstrap.
type App struct {
	Config   config.Config
	DB       *gorm.DB
	Location *time.Location
	Registry *prometheus.Registry
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration", slog.String("database_driver", a.Config.Database.Driver))

	if err := a.DB.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}
