// Package calendar mirrors appointments to an external calendar.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/studio"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

// Gateway creates, updates and cancels calendar events for appointments.
type Gateway interface {
	CreateEvent(ctx context.Context, appt studio.Appointment) (string, error)
	UpdateEvent(ctx context.Context, eventID string, appt studio.Appointment) error
	CancelEvent(ctx context.Context, eventID string) error
}

var sessionColors = map[string]string{
	"portrait":   "1",
	"family":     "2",
	"wedding":    "3",
	"engagement": "4",
	"maternity":  "5",
	"newborn":    "6",
	"senior":     "7",
	"headshot":   "8",
	"event":      "9",
	"photoshoot": "10",
}

// ColorID maps a session type to a Google Calendar colour id.
func ColorID(sessionType string) string {
	if id, ok := sessionColors[strings.ToLower(strings.TrimSpace(sessionType))]; ok {
		return id
	}
	return "1"
}

// Google mirrors appointments into a Google Calendar.
type Google struct {
	events     *gcal.EventsService
	calendarID string
	timezone   string
	address    string
	logger     *logging.Logger
}

// NewGoogle creates a gateway writing to the studio's target calendar.
func NewGoogle(svc *gcal.Service, st config.Studio, logger *logging.Logger) *Google {
	if logger == nil {
		logger = logging.Default()
	}
	calendarID := st.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Google{
		events:     svc.Events,
		calendarID: calendarID,
		timezone:   st.Location().String(),
		address:    st.Business.Address,
		logger:     logger,
	}
}

func (g *Google) CreateEvent(ctx context.Context, appt studio.Appointment) (string, error) {
	created, err := g.events.Insert(g.calendarID, g.event(appt)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	g.logger.Info("calendar: event created", "event_id", created.Id, "appointment_id", appt.ID)
	return created.Id, nil
}

func (g *Google) UpdateEvent(ctx context.Context, eventID string, appt studio.Appointment) error {
	if _, err := g.events.Update(g.calendarID, eventID, g.event(appt)).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: update event %s: %w", eventID, err)
	}
	g.logger.Info("calendar: event updated", "event_id", eventID, "appointment_id", appt.ID)
	return nil
}

func (g *Google) CancelEvent(ctx context.Context, eventID string) error {
	if _, err := g.events.Patch(g.calendarID, eventID, &gcal.Event{Status: "cancelled"}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("calendar: cancel event %s: %w", eventID, err)
	}
	g.logger.Info("calendar: event cancelled", "event_id", eventID)
	return nil
}

func (g *Google) event(appt studio.Appointment) *gcal.Event {
	location := appt.Location
	if location == "" {
		location = g.address
	}
	ev := &gcal.Event{
		Summary:     fmt.Sprintf("%s - %s", appt.SessionType, appt.ClientName),
		Description: Description(appt),
		Location:    location,
		Start:       &gcal.EventDateTime{DateTime: appt.StartTime.Format(time.RFC3339), TimeZone: g.timezone},
		End:         &gcal.EventDateTime{DateTime: appt.EndTime.Format(time.RFC3339), TimeZone: g.timezone},
		ColorId:     ColorID(appt.SessionType),
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{
				"appointment_id": appt.ID.String(),
				"session_type":   appt.SessionType,
				"client_name":    appt.ClientName,
			},
		},
	}
	if appt.ClientEmail != "" {
		ev.Attendees = []*gcal.EventAttendee{{Email: appt.ClientEmail, DisplayName: appt.ClientName}}
	}
	return ev
}

// Description is the event body shown in the calendar.
func Description(appt studio.Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session Type: %s\n", appt.SessionType)
	fmt.Fprintf(&b, "Client: %s\n", appt.ClientName)
	fmt.Fprintf(&b, "Duration: %d minutes\n", appt.Duration)
	if appt.Milestone != "" {
		fmt.Fprintf(&b, "Milestone: %s\n", appt.Milestone)
	}
	if appt.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", appt.Notes)
	}
	return strings.TrimSpace(b.String())
}

// Stub stands in for a real calendar when mirroring is disabled.
type Stub struct {
	logger *logging.Logger
}

func NewStub(logger *logging.Logger) *Stub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Stub{logger: logger}
}

func (s *Stub) CreateEvent(_ context.Context, appt studio.Appointment) (string, error) {
	id := "stub-" + uuid.NewString()
	s.logger.Info("calendar: stub: would create event", "appointment_id", appt.ID, "event_id", id)
	return id, nil
}

func (s *Stub) UpdateEvent(_ context.Context, eventID string, appt studio.Appointment) error {
	s.logger.Info("calendar: stub: would update event", "appointment_id", appt.ID, "event_id", eventID)
	return nil
}

func (s *Stub) CancelEvent(_ context.Context, eventID string) error {
	s.logger.Info("calendar: stub: would cancel event", "event_id", eventID)
	return nil
}

var (
	_ Gateway = (*Google)(nil)
	_ Gateway = (*Stub)(nil)
)
