// Package appointments books, edits, cancels and deletes studio
// appointments, keeping the calendar, reminders and client metrics in step.
package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/snapstudio-crm/internal/calendar"
	"github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/locks"
	"github.com/wolfman30/snapstudio-crm/internal/observability/metrics"
	"github.com/wolfman30/snapstudio-crm/internal/reminders"
	"github.com/wolfman30/snapstudio-crm/internal/studio"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

const defaultUpcomingDays = 30

var tracer = otel.Tracer("snapstudio/appointments")

// Deps wires a Manager. Calendar, Notifier, Locker and Metrics are optional;
// without a Locker an in-process one is used.
type Deps struct {
	Store          studio.RecordStore
	Calendar       calendar.Gateway
	Notifier       reminders.Notifier
	Reminders      *reminders.Scheduler
	Locker         locks.Locker
	Metrics        *metrics.StudioMetrics
	Studio         config.Studio
	GatewayTimeout time.Duration
	Clock          func() time.Time
	Logger         *logging.Logger
}

// Manager owns the appointment lifecycle.
type Manager struct {
	store     studio.RecordStore
	calendar  calendar.Gateway
	notifier  reminders.Notifier
	reminders *reminders.Scheduler
	locker    locks.Locker
	metrics   *metrics.StudioMetrics
	studio    config.Studio
	timeout   time.Duration
	now       func() time.Time
	logger    *logging.Logger
}

// NewManager builds a Manager from deps.
func NewManager(deps Deps) *Manager {
	m := &Manager{
		store:     deps.Store,
		calendar:  deps.Calendar,
		notifier:  deps.Notifier,
		reminders: deps.Reminders,
		locker:    deps.Locker,
		metrics:   deps.Metrics,
		studio:    deps.Studio,
		timeout:   deps.GatewayTimeout,
		now:       deps.Clock,
		logger:    deps.Logger,
	}
	if m.logger == nil {
		m.logger = logging.Default()
	}
	if m.locker == nil {
		m.locker = locks.NewLocal()
	}
	if m.timeout <= 0 {
		m.timeout = 10 * time.Second
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	if m.reminders == nil {
		m.reminders = reminders.New(reminders.Deps{
			Store:          deps.Store,
			Notifier:       deps.Notifier,
			Metrics:        deps.Metrics,
			Studio:         deps.Studio,
			GatewayTimeout: m.timeout,
			Logger:         m.logger,
		})
	}
	return m
}

// Get loads one appointment.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*studio.Appointment, error) {
	return m.store.GetAppointment(ctx, id)
}

// Upcoming lists confirmed appointments starting within the next days days,
// soonest first. days <= 0 means 30.
func (m *Manager) Upcoming(ctx context.Context, days int) ([]studio.Appointment, error) {
	if days <= 0 {
		days = defaultUpcomingDays
	}
	from := m.now()
	to := from.AddDate(0, 0, days)
	out, err := m.store.ListAppointments(ctx, studio.AppointmentQuery{From: &from, To: &to, Status: studio.StatusConfirmed})
	if err != nil {
		return nil, fmt.Errorf("appointments: upcoming: %w", err)
	}
	return out, nil
}

// ForClient lists every appointment of a client by start time.
func (m *Manager) ForClient(ctx context.Context, clientID uuid.UUID) ([]studio.Appointment, error) {
	out, err := m.store.ListAppointments(ctx, studio.AppointmentQuery{ClientID: &clientID})
	if err != nil {
		return nil, fmt.Errorf("appointments: for client: %w", err)
	}
	return out, nil
}

// Reminders lists an appointment's reminders.
func (m *Manager) Reminders(ctx context.Context, id uuid.UUID) ([]studio.Reminder, error) {
	if _, err := m.store.GetAppointment(ctx, id); err != nil {
		return nil, err
	}
	return m.store.ListReminders(ctx, id)
}

// lock serializes mutations of one entity.
func (m *Manager) lock(ctx context.Context, key string) (func(), error) {
	release, err := m.locker.Acquire(ctx, key, 0)
	if err != nil {
		return nil, fmt.Errorf("appointments: lock %s: %w", key, err)
	}
	return release, nil
}

// gateway runs one best-effort external call under the gateway timeout. The
// error is logged and counted; callers decide what a failure means.
func (m *Manager) gateway(ctx context.Context, name string, call func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	err := call(ctx)
	m.metrics.ObserveGateway(name, err)
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		m.logger.Warn("appointments: gateway call failed", "gateway", name, "error", err)
	}
	return err
}

func (m *Manager) createEvent(ctx context.Context, appt studio.Appointment) string {
	if m.calendar == nil {
		return ""
	}
	var eventID string
	_ = m.gateway(ctx, "calendar.create", func(ctx context.Context) error {
		id, err := m.calendar.CreateEvent(ctx, appt)
		eventID = id
		return err
	})
	return eventID
}

func (m *Manager) cancelEvent(ctx context.Context, eventID string) {
	if m.calendar == nil || eventID == "" {
		return
	}
	_ = m.gateway(ctx, "calendar.cancel", func(ctx context.Context) error {
		return m.calendar.CancelEvent(ctx, eventID)
	})
}

func (m *Manager) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "appointments."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
