package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/snapstudio-crm/internal/api/router"
	"github.com/wolfman30/snapstudio-crm/internal/app/bootstrap"
	appconfig "github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/snapstudio-crm/internal/http/middleware"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

func main() {
	issueToken := flag.String("issue-token", "", "print an admin bearer token for `subject` and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of a token printed by -issue-token")
	flag.Parse()

	// Load configuration
	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	if *issueToken != "" {
		token, err := httpmiddleware.IssueAdminToken(cfg.AdminJWTSecret, *issueToken, "admin", *tokenTTL, time.Now())
		if err != nil {
			fmt.Fprintln(os.Stderr, "issue token:", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}
	if cfg.AdminJWTSecret == "" {
		logger.Error("ADMIN_JWT_SECRET is required")
		os.Exit(1)
	}

	logger.Info("starting snapstudio-crm API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	metricsHandler, reg := setupMetrics()
	app, err := bootstrap.Build(context.Background(), cfg, reg, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      buildRouter(app, cfg.AdminJWTSecret, metricsHandler, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return
	}
	logger.Info("server exited")
}

func setupMetrics() (http.Handler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), reg
}

func buildRouter(app *bootstrap.App, secret string, metricsHandler http.Handler, logger *logging.Logger) http.Handler {
	appointmentsHandler := handlers.NewAppointmentsHandler(app.Appointments, logger)

	var reporter handlers.Reporter
	if app.Reporter != nil {
		reporter = app.Reporter
	}

	return router.New(&router.Config{
		Logger:          logger,
		Appointments:    appointmentsHandler,
		Clients:         handlers.NewClientsHandler(app.Clients, appointmentsHandler.ForClient, logger),
		Operations:      handlers.NewOperationsHandler(app.Reminders, reporter, logger),
		AdminAuthSecret: secret,
		MetricsHandler:  metricsHandler,
		HealthCheck:     app.Health,
	})
}
