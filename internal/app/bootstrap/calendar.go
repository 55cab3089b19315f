package bootstrap

import (
	"context"
	"strings"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/snapstudio-crm/internal/calendar"
	appconfig "github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/googleauth"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

// GoogleOptions returns authorized client options when Google credentials
// are configured, or nil.
func GoogleOptions(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) []option.ClientOption {
	if cfg == nil || strings.TrimSpace(cfg.GoogleCredentialsFile) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	opts, err := googleauth.ClientOptions(ctx, cfg.GoogleCredentialsFile, cfg.GoogleTokenFile)
	if err != nil {
		logger.Warn("bootstrap: google credentials unusable", "error", err)
		return nil
	}
	return opts
}

// BuildCalendar returns the Google Calendar gateway when enabled and
// authorized, and the logging stub otherwise.
func BuildCalendar(ctx context.Context, cfg *appconfig.Config, st appconfig.Studio, google []option.ClientOption, logger *logging.Logger) calendar.Gateway {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || !cfg.CalendarEnabled {
		return calendar.NewStub(logger)
	}
	if len(google) == 0 {
		logger.Warn("bootstrap: calendar enabled but google credentials missing; using stub")
		return calendar.NewStub(logger)
	}
	svc, err := gcal.NewService(ctx, google...)
	if err != nil {
		logger.Warn("bootstrap: calendar service unavailable; using stub", "error", err)
		return calendar.NewStub(logger)
	}
	logger.Info("bootstrap: google calendar enabled", "calendar_id", st.CalendarID)
	return calendar.NewGoogle(svc, st, logger)
}
