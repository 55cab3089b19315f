package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/snapstudio-crm/internal/analytics"
	"github.com/wolfman30/snapstudio-crm/internal/appointments"
	"github.com/wolfman30/snapstudio-crm/internal/clients"
	appconfig "github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/notify"
	"github.com/wolfman30/snapstudio-crm/internal/observability/metrics"
	"github.com/wolfman30/snapstudio-crm/internal/reminders"
	"github.com/wolfman30/snapstudio-crm/internal/store"
	"github.com/wolfman30/snapstudio-crm/internal/studio"
	"github.com/wolfman30/snapstudio-crm/internal/templates"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

// App is the fully wired set of studio services shared by the API server
// and the reminder workers.
type App struct {
	Studio       appconfig.Studio
	Store        studio.RecordStore
	Appointments *appointments.Manager
	Reminders    *reminders.Scheduler
	Clients      *clients.Service
	// Reporter is nil without a database.
	Reporter *analytics.Reporter
	Metrics  *metrics.StudioMetrics

	pool   *pgxpool.Pool
	sqlDB  *sql.DB
	redis  *redis.Client
	logger *logging.Logger
}

// Build wires every service from cfg. Metrics register on reg.
func Build(ctx context.Context, cfg *appconfig.Config, reg prometheus.Registerer, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	app := &App{logger: logger}

	st := appconfig.DefaultStudio()
	if path := strings.TrimSpace(cfg.StudioConfigFile); path != "" {
		loaded, err := appconfig.LoadStudio(path)
		if err != nil {
			return nil, err
		}
		st = loaded
	}
	app.Studio = st

	pool, sqlDB, err := BuildPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.pool, app.sqlDB = pool, sqlDB
	if pool != nil {
		app.Store = store.NewPostgres(pool)
		app.Reporter = analytics.NewReporter(sqlDB)
	} else {
		logger.Warn("bootstrap: DATABASE_URL not set, records are kept in memory")
		app.Store = store.NewMemory()
	}

	app.redis = BuildRedisClient(ctx, cfg, logger, true)
	locker := BuildLocker(nil, logger)
	if app.redis != nil {
		locker = BuildLocker(app.redis, logger)
	}

	var awsCfg *aws.Config
	if cfg.EmailProvider == "ses" || strings.TrimSpace(cfg.ExportBucket) != "" {
		loaded, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		awsCfg = &loaded
	}

	google := GoogleOptions(ctx, cfg, logger)
	sender, provider, reason := BuildEmailSender(ctx, cfg, EmailDeps{AWS: awsCfg, Google: google}, logger)
	if reason != "" {
		logger.Warn("bootstrap: email provider fallback", "provider", provider, "reason", reason)
	} else {
		logger.Info("bootstrap: email provider selected", "provider", provider)
	}

	library, err := templates.NewLibrary(cfg.TemplateDir, st.Location())
	if err != nil {
		app.Close()
		return nil, err
	}
	notifier := notify.NewService(sender, library, st.Business, logger)

	app.Metrics = metrics.NewStudioMetrics(reg)
	app.Reminders = reminders.New(reminders.Deps{
		Store:          app.Store,
		Notifier:       notifier,
		Locker:         locker,
		Metrics:        app.Metrics,
		Studio:         st,
		GatewayTimeout: cfg.GatewayTimeout,
		Logger:         logger,
	})
	app.Appointments = appointments.NewManager(appointments.Deps{
		Store:          app.Store,
		Calendar:       BuildCalendar(ctx, cfg, st, google, logger),
		Notifier:       notifier,
		Reminders:      app.Reminders,
		Locker:         locker,
		Metrics:        app.Metrics,
		Studio:         st,
		GatewayTimeout: cfg.GatewayTimeout,
		Logger:         logger,
	})

	var archiver clients.Archiver
	if bucket := strings.TrimSpace(cfg.ExportBucket); bucket != "" && awsCfg != nil {
		client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
			o.UsePathStyle = cfg.AWSEndpointOverride != ""
		})
		archiver = clients.NewS3Archiver(client, bucket)
	}
	app.Clients = clients.NewService(app.Store, locker, archiver, logger)
	return app, nil
}

// Health pings the backing services that are configured.
func (a *App) Health(ctx context.Context) error {
	if a.pool != nil {
		if err := a.pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases database and Redis connections.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("bootstrap: close redis", "error", err)
		}
	}
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
