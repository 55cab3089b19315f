package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/snapstudio-crm/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/snapstudio-crm/internal/http/middleware"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	Appointments    *handlers.AppointmentsHandler
	Clients         *handlers.ClientsHandler
	Operations      *handlers.OperationsHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler

	// HealthCheck reports whether backing services are reachable (optional).
	HealthCheck func(ctx context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", health(cfg.HealthCheck))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		api.Use(middleware.Timeout(30 * time.Second))

		if cfg.Appointments != nil {
			api.Route("/appointments", cfg.Appointments.Routes)
		}
		if cfg.Clients != nil {
			api.Route("/clients", cfg.Clients.Routes)
		}
		if cfg.Operations != nil {
			api.Post("/reminders/sweep", cfg.Operations.Sweep)
			api.Get("/analytics", cfg.Operations.Analytics)
		}
	})
	return r
}

func health(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
