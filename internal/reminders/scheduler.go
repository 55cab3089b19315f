// Package reminders materializes appointment reminders and dispatches the
// ones that have come due.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/locks"
	"github.com/wolfman30/snapstudio-crm/internal/notify"
	"github.com/wolfman30/snapstudio-crm/internal/observability/metrics"
	"github.com/wolfman30/snapstudio-crm/internal/studio"
	"github.com/wolfman30/snapstudio-crm/internal/templates"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

const (
	orphanReason = "appointment not found"

	// sweepLockMargin keeps the sweep lock alive past the sweep deadline
	// long enough for the last outcome to be recorded.
	sweepLockMargin = time.Minute
	recordTimeout   = 5 * time.Second
)

var tracer = otel.Tracer("snapstudio/reminders")

// ErrSweepInProgress is returned by Sweep when another worker holds the sweep lock.
var ErrSweepInProgress = errors.New("reminders: sweep already running")

// Notifier sends a templated notification and returns the provider message id.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) (string, error)
}

// Due is a pending reminder joined with its appointment.
type Due struct {
	Reminder    studio.Reminder
	Appointment studio.Appointment
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Due       int `json:"due"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Orphaned  int `json:"orphaned"`
}

// Deps configures a Scheduler. Locker and Metrics are optional.
// SweepTimeout bounds one sweep and defaults to 30 gateway timeouts.
type Deps struct {
	Store          studio.RecordStore
	Notifier       Notifier
	Locker         locks.Locker
	Metrics        *metrics.StudioMetrics
	Studio         config.Studio
	GatewayTimeout time.Duration
	SweepTimeout   time.Duration
	Logger         *logging.Logger
}

// Scheduler owns the reminder schedule of every appointment.
type Scheduler struct {
	store    studio.RecordStore
	notifier Notifier
	locker   locks.Locker
	metrics  *metrics.StudioMetrics
	schedule []studio.OffsetSpec
	timeout  time.Duration
	sweepFor time.Duration
	logger   *logging.Logger
}

// New builds a Scheduler from deps.
func New(deps Deps) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := deps.GatewayTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sweepFor := deps.SweepTimeout
	if sweepFor <= 0 {
		sweepFor = 30 * timeout
	}
	return &Scheduler{
		store:    deps.Store,
		notifier: deps.Notifier,
		locker:   deps.Locker,
		metrics:  deps.Metrics,
		schedule: deps.Studio.Schedule(),
		timeout:  timeout,
		sweepFor: sweepFor,
		logger:   logger,
	}
}

// Materialize derives the pending reminders for appt, one per configured
// offset whose fire time is strictly after now. Nothing is persisted.
func (s *Scheduler) Materialize(appt studio.Appointment, now time.Time) []studio.Reminder {
	out := make([]studio.Reminder, 0, len(s.schedule))
	for _, offset := range s.schedule {
		at := appt.StartTime.Add(-offset.Duration())
		if !at.After(now) {
			continue
		}
		out = append(out, studio.Reminder{
			ID:            uuid.New(),
			AppointmentID: appt.ID,
			ReminderType:  offset.Label(),
			ScheduledTime: at,
			Status:        studio.ReminderPending,
			CreatedAt:     now,
		})
	}
	return out
}

// DueReminders returns pending reminders scheduled at or before now with
// their appointments. Reminders whose appointment is gone are marked failed
// and left out.
func (s *Scheduler) DueReminders(ctx context.Context, now time.Time) ([]Due, error) {
	due, _, err := s.dueReminders(ctx, now)
	return due, err
}

func (s *Scheduler) dueReminders(ctx context.Context, now time.Time) ([]Due, int, error) {
	pending, err := s.store.PendingDue(ctx, now)
	if err != nil {
		return nil, 0, fmt.Errorf("reminders: load due: %w", err)
	}

	out := make([]Due, 0, len(pending))
	orphaned := 0
	for _, r := range pending {
		appt, err := s.store.GetAppointment(ctx, r.AppointmentID)
		switch {
		case err == nil:
			out = append(out, Due{Reminder: r, Appointment: *appt})
		case studio.IsNotFound(err):
			moved, terr := s.store.TransitionReminder(ctx, r.ID, studio.ReminderPending, studio.ReminderFailed,
				studio.ReminderUpdate{At: now, Error: orphanReason})
			if terr != nil {
				s.logger.Error("reminders: orphan transition failed", "reminder_id", r.ID, "error", terr)
				continue
			}
			if moved {
				orphaned++
				s.metrics.ObserveReminder("orphaned")
				s.logger.Warn("reminders: orphaned reminder failed", "reminder_id", r.ID, "appointment_id", r.AppointmentID)
			}
		default:
			s.logger.Error("reminders: load appointment failed", "reminder_id", r.ID, "appointment_id", r.AppointmentID, "error", err)
		}
	}
	return out, orphaned, nil
}

// Dispatch sends one due reminder and records the outcome. Failures are
// recorded, never retried. Reminders of appointments that are no longer
// active are cancelled instead.
func (s *Scheduler) Dispatch(ctx context.Context, d Due, now time.Time) studio.ReminderStatus {
	ctx, span := tracer.Start(ctx, "reminders.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("reminder.id", d.Reminder.ID.String()),
		attribute.String("reminder.type", d.Reminder.ReminderType),
		attribute.String("appointment.id", d.Appointment.ID.String()),
	)

	if !d.Appointment.Active() {
		return s.finish(ctx, d.Reminder, studio.ReminderCancelled, studio.ReminderUpdate{At: now})
	}
	if s.notifier == nil {
		return s.finish(ctx, d.Reminder, studio.ReminderFailed, studio.ReminderUpdate{At: now, Error: "notifier not configured"})
	}

	client := s.clientFor(ctx, d.Appointment)
	to := d.Appointment.ClientEmail
	if to == "" {
		to = client.Email
	}
	timeUntil := TimeUntilText(d.Appointment.StartTime, now)

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	messageID, err := s.notifier.Notify(sendCtx, notify.Notification{
		To:       to,
		ToName:   client.Name,
		Subject:  notify.ReminderSubject(d.Appointment.SessionType, timeUntil),
		Template: d.Reminder.ReminderType,
		Data: templates.Context{
			Appointment: d.Appointment,
			Client:      client,
			Reminder:    d.Reminder,
			TimeUntil:   timeUntil,
		},
	})
	s.metrics.ObserveGateway("email.reminder", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		s.logger.Error("reminders: send failed", "reminder_id", d.Reminder.ID, "appointment_id", d.Appointment.ID, "error", err)
		return s.finish(ctx, d.Reminder, studio.ReminderFailed, studio.ReminderUpdate{At: now, Error: err.Error()})
	}
	return s.finish(ctx, d.Reminder, studio.ReminderSent, studio.ReminderUpdate{At: now, MessageID: messageID})
}

// finish records the outcome even when the sweep deadline has passed, so a
// sent reminder never stays pending.
func (s *Scheduler) finish(ctx context.Context, r studio.Reminder, to studio.ReminderStatus, upd studio.ReminderUpdate) studio.ReminderStatus {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	moved, err := s.store.TransitionReminder(ctx, r.ID, studio.ReminderPending, to, upd)
	if err != nil {
		s.logger.Error("reminders: record outcome failed", "reminder_id", r.ID, "status", to, "error", err)
		return studio.ReminderPending
	}
	if !moved {
		s.logger.Warn("reminders: reminder already settled", "reminder_id", r.ID, "status", to)
		return r.Status
	}
	s.metrics.ObserveReminder(string(to))
	return to
}

func (s *Scheduler) clientFor(ctx context.Context, appt studio.Appointment) studio.Client {
	fallback := studio.Client{Name: appt.ClientName, Email: appt.ClientEmail}
	if appt.ClientID == nil {
		return fallback
	}
	c, err := s.store.GetClient(ctx, *appt.ClientID)
	if err != nil {
		s.logger.Warn("reminders: client lookup failed", "client_id", *appt.ClientID, "error", err)
		return fallback
	}
	return *c
}

// SweepTimeout is the longest a single Sweep runs.
func (s *Scheduler) SweepTimeout() time.Duration { return s.sweepFor }

// Sweep dispatches every reminder due at now. One failing reminder does not
// stop the rest. When a locker is configured only one sweep runs at a time
// and a concurrent call returns ErrSweepInProgress. The sweep lock outlives
// the sweep deadline, so it cannot expire while reminders are in flight.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	ctx, span := tracer.Start(ctx, "reminders.sweep")
	defer span.End()
	started := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(started).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, s.sweepFor)
	defer cancel()

	if s.locker != nil {
		release, err := s.locker.TryAcquire(ctx, locks.SweepKey, s.sweepFor+sweepLockMargin)
		if errors.Is(err, locks.ErrNotAcquired) {
			return SweepResult{}, ErrSweepInProgress
		}
		if err != nil {
			return SweepResult{}, fmt.Errorf("reminders: sweep lock: %w", err)
		}
		defer release()
	}

	due, orphaned, err := s.dueReminders(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load due failed")
		return SweepResult{}, err
	}
	res := SweepResult{Due: len(due), Orphaned: orphaned}
	for _, d := range due {
		if ctx.Err() != nil {
			break
		}
		switch s.Dispatch(ctx, d, now) {
		case studio.ReminderSent:
			res.Sent++
		case studio.ReminderFailed:
			res.Failed++
		case studio.ReminderCancelled:
			res.Cancelled++
		}
	}
	span.SetAttributes(
		attribute.Int("reminders.due", res.Due),
		attribute.Int("reminders.sent", res.Sent),
		attribute.Int("reminders.failed", res.Failed),
	)
	s.logger.Info("reminders: sweep finished", "due", res.Due, "sent", res.Sent, "failed", res.Failed,
		"cancelled", res.Cancelled, "orphaned", res.Orphaned)
	return res, ctx.Err()
}

// TimeUntilText renders the gap between now and start in whole calendar
// days: "today", "1 day", "N days", then floor-based weeks.
func TimeUntilText(start, now time.Time) string {
	days := studio.CalendarDaysBetween(now, start)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "1 day"
	case days < 7:
		return fmt.Sprintf("%d days", days)
	case days < 14:
		return "1 week"
	default:
		return fmt.Sprintf("%d weeks", days/7)
	}
}
