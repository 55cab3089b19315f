package templates

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

func sampleContext() Context {
	start := time.Date(2025, 7, 4, 14, 30, 0, 0, time.UTC)
	return Context{
		Appointment: studio.Appointment{
			ClientName:  "Ada Lovelace",
			SessionType: "newborn",
			StartTime:   start,
			Duration:    90,
			TotalAmount: 350,
		},
		Business: config.Business{Name: "Little Moments", Phone: "555-0100", Address: "12 Harbour Street"},
	}
}

func TestLibraryRendersConfirmation(t *testing.T) {
	lib, err := NewLibrary("", time.UTC)
	require.NoError(t, err)

	out, err := lib.Render(Confirmation, sampleContext())
	require.NoError(t, err)
	assert.Contains(t, out, "Dear Ada Lovelace,")
	assert.Contains(t, out, "Date: July 4, 2025")
	assert.Contains(t, out, "Time: 02:30 PM")
	assert.Contains(t, out, "Duration: 1 hour 30 minutes")
	assert.Contains(t, out, "Location: 12 Harbour Street")
	assert.Contains(t, out, "Total: $350.00")
	assert.Contains(t, out, "Phone: 555-0100")
	assert.NotContains(t, out, "Website:")
}

func TestLibraryUsesLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	lib, err := NewLibrary("", ny)
	require.NoError(t, err)

	out, err := lib.Render("reminder_1day", sampleContext())
	require.NoError(t, err)
	assert.Contains(t, out, "Time: 10:30 AM")
	assert.Contains(t, out, "tomorrow")
}

func TestLibraryFallbacks(t *testing.T) {
	lib, err := NewLibrary("", nil)
	require.NoError(t, err)

	assert.Equal(t, "reminder_3days", lib.Resolve("reminder_3days"))
	assert.Equal(t, Reminder, lib.Resolve("reminder_12hours"))
	assert.Equal(t, Message, lib.Resolve("thank_you"))
	assert.Equal(t, Message, lib.Resolve(""))

	ctx := sampleContext()
	ctx.TimeUntil = "2 weeks"
	out, err := lib.Render("reminder_3weeks", ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "newborn session is in 2 weeks.")

	ctx.TimeUntil = "today"
	out, err = lib.Render("reminder_6hours", ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "newborn session is today.")
}

func TestLibraryCancellationReason(t *testing.T) {
	lib, err := NewLibrary("", nil)
	require.NoError(t, err)

	ctx := sampleContext()
	out, err := lib.Render(Cancellation, ctx)
	require.NoError(t, err)
	assert.NotContains(t, out, "Reason:")

	ctx.Reason = "client request"
	out, err = lib.Render(Cancellation, ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "Reason: client request")
}

func TestLibraryOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "confirmation.tmpl"),
		[]byte(`Booked: {{.Appointment.SessionType}} on {{date .Appointment.StartTime}}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reminder_12hours.tmpl"),
		[]byte(`Half a day to go, {{.Appointment.ClientName}}`), 0o600))

	lib, err := NewLibrary(dir, nil)
	require.NoError(t, err)

	out, err := lib.Render(Confirmation, sampleContext())
	require.NoError(t, err)
	assert.Equal(t, "Booked: newborn on July 4, 2025\n", out)

	out, err = lib.Render("reminder_12hours", sampleContext())
	require.NoError(t, err)
	assert.Equal(t, "Half a day to go, Ada Lovelace\n", out)
}

func TestLibraryStrictFields(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "message.tmpl"), []byte(`{{.Appointment.Nope}}`), 0o600))
	lib, err := NewLibrary(dir, nil)
	require.NoError(t, err)
	_, err = lib.Render(Message, sampleContext())
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "message.tmpl"), []byte(`{{if}}`), 0o600))
	_, err = NewLibrary(dir, nil)
	require.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{45, "45 minutes"},
		{60, "1 hour"},
		{90, "1 hour 30 minutes"},
		{120, "2 hours"},
		{150, "2 hours 30 minutes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.minutes), "minutes=%d", tt.minutes)
	}
}
