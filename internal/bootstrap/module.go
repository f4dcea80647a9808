package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"sitepresence/internal/bootstrap/config"
	"sitepresence/internal/bootstrap/database"
	"sitepresence/internal/bootstrap/logging"
	cacheinfra "sitepresence/internal/infrastructure/cache"
	geocodeinfra "sitepresence/internal/infrastructure/geocode"
	sqliterepo "sitepresence/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "sitepresence/internal/infrastructure/persistence/sqlite/uow"
	"sitepresence/internal/observability/metrics"
	"sitepresence/internal/ports"
	attendanceuc "sitepresence/internal/usecase/attendance"
	"sitepresence/internal/usecase/capture"
	geocodeuc "sitepresence/internal/usecase/geocode"
	"sitepresence/internal/usecase/roster"
)

// Module wires storage, geocoding, metrics and the attendance usecases.
// Capture additionally needs a ports.Camera and a ports.Locator supplied by
// the caller; see CaptureModule.
var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideLocation),
	fx.Provide(provideDatabase),
	fx.Provide(provideRegistry),
	fx.Provide(provideMetrics),
	fx.Provide(provideApp),
	fx.Provide(sqliterepo.NewAttendanceRepository),
	fx.Provide(
		func(repo *sqliterepo.AttendanceRepository) ports.SubmissionGateway { return repo },
		func(repo *sqliterepo.AttendanceRepository) ports.RosterStore { return repo },
		func(repo *sqliterepo.AttendanceRepository) ports.RosterWriter { return repo },
		func(repo *sqliterepo.AttendanceRepository) ports.LocalEventStore { return repo },
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideCache),
	fx.Provide(provideGeocoder),
	fx.Provide(provideResolver),
	fx.Provide(provideAttendanceService),
	fx.Provide(roster.NewService),
)

// CaptureModule adds the capture orchestrator and recorder.
var CaptureModule = fx.Options(
	fx.Provide(provideOrchestrator),
	fx.Provide(provideRecorder),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideLocation(cfg config.Config) (*time.Location, error) {
	return cfg.Location()
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func provideMetrics(registry *prometheus.Registry, cfg config.Config) (*metrics.AttendanceMetrics, error) {
	return metrics.NewAttendanceMetrics(registry, cfg.Metrics.Namespace)
}

func provideApp(cfg config.Config, db *gorm.DB, loc *time.Location, registry *prometheus.Registry) *App {
	return &App{
		Config:   cfg,
		DB:       db,
		Location: loc,
		Registry: registry,
	}
}

// provideCache returns a nil ports.Cache when caching is disabled.
func provideCache(lc fx.Lifecycle, ctx context.Context, cfg config.Config, db *gorm.DB) ports.Cache {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Driver)) {
	case "memory":
		return cacheinfra.NewMemoryCache(10 * time.Minute)
	case "redis":
		client := cacheinfra.NewRedisClient(cfg.Cache.Redis)
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error {
				return client.Close()
			},
		})
		logging.Info(logCtx, "using redis cache", slog.String("addr", cfg.Cache.Redis.Addr))
		return cacheinfra.NewRedisCache(client)
	case "none":
		return nil
	default:
		return cacheinfra.NewSQLiteCache(db)
	}
}

// provideGeocoder returns a nil ports.ReverseGeocoder when geocoding is disabled.
func provideGeocoder(cfg config.Config) ports.ReverseGeocoder {
	if !cfg.Geocode.Enabled {
		return nil
	}
	return geocodeinfra.NewNominatimClient(cfg.Geocode, &http.Client{})
}

// provideResolver registers its OnStop after the database's, so fx stops it
// first and no lookup writes the cache after the database closes.
func provideResolver(lc fx.Lifecycle, cfg config.Config, geocoder ports.ReverseGeocoder, cache ports.Cache, m *metrics.AttendanceMetrics) *geocodeuc.Resolver {
	resolver := geocodeuc.NewResolver(geocoder, cache, geocodeuc.Options{
		CacheTTL: geocodeCacheTTL(cfg),
		Metrics:  m,
	})
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			resolver.Close()
			return nil
		},
	})
	return resolver
}

// geocodeCacheTTL falls back to cache.default_ttl when geocode.cache_ttl is unset.
func geocodeCacheTTL(cfg config.Config) time.Duration {
	if cfg.Geocode.CacheTTL > 0 {
		return cfg.Geocode.CacheTTL
	}
	return cfg.Cache.DefaultTTL
}

type attendanceParams struct {
	fx.In

	Config   config.Config
	Location *time.Location
	Gateway  ports.SubmissionGateway
	Roster   ports.RosterStore
	Local    ports.LocalEventStore
	UoW      ports.UnitOfWork
	Metrics  *metrics.AttendanceMetrics
}

func provideAttendanceService(p attendanceParams) *attendanceuc.Service {
	return attendanceuc.NewService(attendanceuc.ServiceDeps{
		Assembler: attendanceuc.NewAssembler(p.Config.Capture.ClockSkew),
		Gateway:   p.Gateway,
		Roster:    p.Roster,
		Local:     p.Local,
		UoW:       p.UoW,
		Location:  p.Location,
		Metrics:   p.Metrics,
	})
}

type orchestratorParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Camera    ports.Camera
	Locator   ports.Locator
	Resolver  *geocodeuc.Resolver
	Metrics   *metrics.AttendanceMetrics
}

func provideOrchestrator(p orchestratorParams) *capture.Orchestrator {
	orchestrator := capture.NewOrchestrator(p.Camera, p.Locator, p.Resolver, capture.Options{
		LocationTimeout:   p.Config.Capture.LocationTimeout,
		PhotoMaxDimension: p.Config.Capture.PhotoMaxDimension,
		JPEGQuality:       p.Config.Capture.JPEGQuality,
		Metrics:           p.Metrics,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			orchestrator.Close()
			return nil
		},
	})
	return orchestrator
}

func provideRecorder(cfg config.Config, orchestrator *capture.Orchestrator, service *attendanceuc.Service) *capture.Recorder {
	return capture.NewRecorder(orchestrator, service, cfg.Capture.AwaitLocation)
}
