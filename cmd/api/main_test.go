package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/snapstudio-crm/internal/app/bootstrap"
	appconfig "github.com/wolfman30/snapstudio-crm/internal/config"
	httpmiddleware "github.com/wolfman30/snapstudio-crm/internal/http/middleware"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

func TestSetupMetricsExposesStudioMetrics(t *testing.T) {
	handler, reg := setupMetrics()
	require.NotNil(t, handler)

	app, err := bootstrap.Build(context.Background(), &appconfig.Config{}, reg, logging.New("error"))
	require.NoError(t, err)
	t.Cleanup(app.Close)
	app.Metrics.ObserveReminder("sent")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "snapstudio_reminders_dispatched_total"))
	assert.True(t, strings.Contains(rr.Body.String(), "go_goroutines"))
}

func TestBuildRouterServesAPI(t *testing.T) {
	handler, reg := setupMetrics()
	logger := logging.New("error")
	app, err := bootstrap.Build(context.Background(), &appconfig.Config{}, reg, logger)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	r := buildRouter(app, "secret", handler, logger)
	token, err := httpmiddleware.IssueAdminToken("secret", "owner", "admin", time.Hour, time.Now())
	require.NoError(t, err)

	body := `{"client":{"name":"Ada","email":"ada@example.com"},"start_time":"` +
		time.Now().Add(72*time.Hour).UTC().Format(time.RFC3339) + `","session_type":"portrait","session_fee":150}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
