package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("EMAIL_PROVIDER", "")
	t.Setenv("GATEWAY_TIMEOUT", "")
	t.Setenv("REMINDER_SWEEP_SCHEDULE", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.EmailProvider != "stub" {
		t.Fatalf("expected stub email provider by default, got %s", cfg.EmailProvider)
	}
	if cfg.GatewayTimeout != 10*time.Second {
		t.Fatalf("expected 10s gateway timeout, got %s", cfg.GatewayTimeout)
	}
	if cfg.ReminderSweepSchedule != "*/5 * * * *" {
		t.Fatalf("unexpected sweep schedule %q", cfg.ReminderSweepSchedule)
	}
	if cfg.CalendarEnabled {
		t.Fatal("expected calendar mirroring disabled by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("EMAIL_PROVIDER", "SendGrid")
	t.Setenv("CALENDAR_ENABLED", "true")
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("LOCK_TTL", "not-a-duration")
	t.Setenv("GOOGLE_CREDENTIALS_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/secrets/google.json")
	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://user@host/db", cfg.DatabaseURL)
	assert.Equal(t, "sendgrid", cfg.EmailProvider)
	assert.True(t, cfg.CalendarEnabled)
	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 30*time.Second, cfg.LockTTL, "invalid durations fall back to the default")
	assert.Equal(t, "/secrets/google.json", cfg.GoogleCredentialsFile)
}

const studioYAML = `
business:
  name: Little Moments Photography
  email: hello@littlemoments.example
  phone: "555-0100"
  address: 12 Harbour Street
calendar:
  target_calendar_id: studio@group.calendar.google.com
  timezone: America/New_York
appointments:
  default_duration: 90
  reminder_schedule:
    - weeks: 2
    - days: 3
    - 12
session_types:
  - name: Newborn
    duration: 180
    price: 450
  - name: Headshot
    duration: 30
    price: 120
`

func TestParseStudio(t *testing.T) {
	s, err := ParseStudio([]byte(studioYAML))
	require.NoError(t, err)

	assert.Equal(t, "Little Moments Photography", s.Business.Name)
	assert.Equal(t, "studio@group.calendar.google.com", s.CalendarID)
	assert.Equal(t, 90, s.DefaultDuration)
	assert.Equal(t, []studio.OffsetSpec{studio.Weeks(2), studio.Days(3), studio.Hours(12)}, s.Schedule())
	assert.Equal(t, "America/New_York", s.Location().String())

	st, ok := s.SessionType("newborn")
	require.True(t, ok)
	assert.Equal(t, 180, st.Duration)
	assert.Len(t, s.SessionTypes(), 2)
}

func TestScheduleIsACopy(t *testing.T) {
	s := DefaultStudio()
	sched := s.Schedule()
	sched[0] = studio.Hours(1)
	assert.Equal(t, studio.Weeks(2), s.Schedule()[0])
}

func TestParseStudioValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"missing business name", "business: {email: a@b.c}\nappointments: {reminder_schedule: [{days: 1}]}", "business.name"},
		{"missing business email", "business: {name: X}\nappointments: {reminder_schedule: [{days: 1}]}", "business.email"},
		{"missing schedule", "business: {name: X, email: a@b.c}", "reminder_schedule is required"},
		{"bad schedule entry", "business: {name: X, email: a@b.c}\nappointments: {reminder_schedule: [{fortnights: 1}]}", "reminder_schedule[0]"},
		{"bad timezone", "business: {name: X, email: a@b.c}\ncalendar: {timezone: Mars/Olympus}\nappointments: {reminder_schedule: [{days: 1}]}", "timezone"},
		{"bad yaml", "business: [", "invalid studio yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStudio([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadStudio(t *testing.T) {
	s, err := LoadStudio("")
	require.NoError(t, err)
	assert.Equal(t, 60, s.DefaultDuration)
	assert.Len(t, s.Schedule(), 4)

	path := filepath.Join(t.TempDir(), "studio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(studioYAML), 0o600))
	s, err = LoadStudio(path)
	require.NoError(t, err)
	assert.Equal(t, 90, s.DefaultDuration)

	_, err = LoadStudio(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNewStudio(t *testing.T) {
	s := NewStudio(Business{Name: "X"}, 0, []studio.OffsetSpec{studio.Days(1)})
	assert.Equal(t, 60, s.DefaultDuration)
	assert.Equal(t, []studio.OffsetSpec{studio.Days(1)}, s.Schedule())
	assert.Equal(t, time.UTC, s.Location())
}
