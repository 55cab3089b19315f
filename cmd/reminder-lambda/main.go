package main

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/snapstudio-crm/internal/app/bootstrap"
	appconfig "github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/reminders"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

type sweeper interface {
	Sweep(ctx context.Context, now time.Time) (reminders.SweepResult, error)
}

func main() {
	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	app, err := bootstrap.Build(context.Background(), cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		panic(err)
	}
	lambda.Start(newHandler(app.Reminders, logger))
}

// newHandler runs one sweep per scheduled EventBridge invocation. The
// event's time stands in for now, capped at the wall clock.
func newHandler(s sweeper, logger *logging.Logger) func(context.Context, events.CloudWatchEvent) (reminders.SweepResult, error) {
	return func(ctx context.Context, evt events.CloudWatchEvent) (reminders.SweepResult, error) {
		now := time.Now().UTC()
		if !evt.Time.IsZero() && evt.Time.Before(now) {
			now = evt.Time.UTC()
		}

		res, err := s.Sweep(ctx, now)
		if errors.Is(err, reminders.ErrSweepInProgress) {
			logger.Info("reminder sweep skipped, another invocation holds the lock", "event_id", evt.ID)
			return res, nil
		}
		if err != nil {
			logger.Error("reminder sweep failed", "event_id", evt.ID, "error", err)
			return res, err
		}
		logger.Info("reminder sweep complete", "event_id", evt.ID, "due", res.Due, "sent", res.Sent, "failed", res.Failed)
		return res, nil
	}
}
