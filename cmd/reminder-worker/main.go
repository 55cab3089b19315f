package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/wolfman30/snapstudio-crm/internal/app/bootstrap"
	appconfig "github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/reminders"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

type sweeper interface {
	Sweep(ctx context.Context, now time.Time) (reminders.SweepResult, error)
}

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if *once {
		if _, err := runSweep(ctx, app.Reminders, cfg.GatewayTimeout, logger); err != nil {
			os.Exit(1)
		}
		return
	}

	c, err := schedule(ctx, cfg.ReminderSweepSchedule, app.Reminders, cfg.GatewayTimeout, logger)
	if err != nil {
		logger.Error("invalid sweep schedule", "schedule", cfg.ReminderSweepSchedule, "error", err)
		os.Exit(1)
	}
	c.Start()
	logger.Info("reminder worker started", "schedule", cfg.ReminderSweepSchedule)

	<-ctx.Done()
	logger.Info("reminder worker stopping")
	<-c.Stop().Done()
}

// schedule registers the sweep on a cron that skips a tick while the
// previous sweep is still running.
func schedule(ctx context.Context, spec string, s sweeper, gatewayTimeout time.Duration, logger *logging.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		_, _ = runSweep(ctx, s, gatewayTimeout, logger)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func runSweep(ctx context.Context, s sweeper, gatewayTimeout time.Duration, logger *logging.Logger) (reminders.SweepResult, error) {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	sweepCtx, cancel := context.WithTimeout(ctx, 30*gatewayTimeout)
	defer cancel()

	res, err := s.Sweep(sweepCtx, time.Now().UTC())
	switch {
	case errors.Is(err, reminders.ErrSweepInProgress):
		logger.Info("reminder sweep skipped, another worker holds the lock")
		return res, nil
	case err != nil:
		logger.Error("reminder sweep failed", "error", err)
		return res, err
	}
	logger.Info("reminder sweep complete", "due", res.Due, "sent", res.Sent, "failed", res.Failed)
	return res, nil
}
