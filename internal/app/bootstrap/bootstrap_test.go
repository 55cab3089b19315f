package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/locks"
	"github.com/wolfman30/snapstudio-crm/internal/notify"
	"github.com/wolfman30/snapstudio-crm/internal/store"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

func TestBuildRedisClient(t *testing.T) {
	logger := logging.New("error")
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logger, true))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger, true))
}

func TestBuildLocker(t *testing.T) {
	_, local := BuildLocker(nil, nil).(*locks.Local)
	assert.True(t, local)

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, false)
	t.Cleanup(func() { _ = client.Close() })
	_, shared := BuildLocker(client, nil).(*locks.Redis)
	assert.True(t, shared)
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.New("error")
	awsCfg := aws.Config{Region: "us-east-1"}

	cases := []struct {
		name     string
		cfg      *appconfig.Config
		deps     EmailDeps
		provider string
		fallback bool
	}{
		{name: "nil config", cfg: nil, provider: "stub", fallback: true},
		{name: "default", cfg: &appconfig.Config{}, provider: "stub"},
		{name: "sendgrid without key", cfg: &appconfig.Config{EmailProvider: "sendgrid"}, provider: "stub", fallback: true},
		{name: "sendgrid", cfg: &appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.key"}, provider: "sendgrid"},
		{name: "ses without aws", cfg: &appconfig.Config{EmailProvider: "ses"}, provider: "stub", fallback: true},
		{name: "ses", cfg: &appconfig.Config{EmailProvider: "ses"}, deps: EmailDeps{AWS: &awsCfg}, provider: "ses"},
		{name: "gmail without credentials", cfg: &appconfig.Config{EmailProvider: "gmail"}, provider: "stub", fallback: true},
		{name: "unknown", cfg: &appconfig.Config{EmailProvider: "pigeon"}, provider: "stub", fallback: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender, provider, reason := BuildEmailSender(context.Background(), tc.cfg, tc.deps, logger)
			require.NotNil(t, sender)
			assert.Equal(t, tc.provider, provider)
			assert.Equal(t, tc.fallback, reason != "", reason)
			if provider == "stub" {
				_, ok := sender.(*notify.StubEmailSender)
				assert.True(t, ok)
			}
		})
	}
}

func TestBuildWithoutBackingServices(t *testing.T) {
	app, err := Build(context.Background(), &appconfig.Config{}, prometheus.NewRegistry(), logging.New("error"))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	_, inMemory := app.Store.(*store.Memory)
	assert.True(t, inMemory)
	assert.Nil(t, app.Reporter)
	assert.NotNil(t, app.Appointments)
	assert.NotNil(t, app.Reminders)
	assert.NotNil(t, app.Clients)
	assert.NoError(t, app.Health(context.Background()))
}

func TestBuildRequiresConfig(t *testing.T) {
	_, err := Build(context.Background(), nil, prometheus.NewRegistry(), nil)
	assert.Error(t, err)
}

func TestBuildRejectsMissingStudioFile(t *testing.T) {
	_, err := Build(context.Background(), &appconfig.Config{StudioConfigFile: "/nonexistent/studio.yaml"}, prometheus.NewRegistry(), nil)
	assert.Error(t, err)
}
