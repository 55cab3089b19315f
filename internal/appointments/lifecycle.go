package appointments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/snapstudio-crm/internal/clients"
	"github.com/wolfman30/snapstudio-crm/internal/locks"
	"github.com/wolfman30/snapstudio-crm/internal/notify"
	"github.com/wolfman30/snapstudio-crm/internal/studio"
	"github.com/wolfman30/snapstudio-crm/internal/templates"
)

// Create books an appointment. The client is resolved by id or exact email
// (or created), the calendar is mirrored and reminders are materialized, and
// client, appointment and reminders are persisted together. Calendar and
// email failures never fail the booking.
func (m *Manager) Create(ctx context.Context, in studio.NewAppointment) (appt *studio.Appointment, err error) {
	ctx, span := m.startSpan(ctx, "create", attribute.String("session.type", in.SessionType))
	defer func() {
		m.metrics.ObserveAppointment("create", err)
		endSpan(span, err)
	}()

	now := m.now()
	appt, err = in.Build(m.studio.DefaultDuration, now)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID.String()))

	if in.ClientID == nil {
		if email := strings.TrimSpace(in.Client.Email); email != "" {
			release, err := m.lock(ctx, locks.ClientEmailKey(email))
			if err != nil {
				return nil, err
			}
			defer release()
		}
	}

	client, created, err := m.resolveClient(ctx, in)
	if err != nil {
		return nil, err
	}
	release, err := m.lock(ctx, locks.ClientKey(client.ID.String()))
	if err != nil {
		return nil, err
	}
	defer release()
	if !created {
		if client, err = m.reloadClient(ctx, client.ID, in, now); err != nil {
			return nil, err
		}
	}
	clientID := client.ID
	appt.ClientID = &clientID
	if appt.ClientName == "" {
		appt.ClientName = client.Name
	}
	if appt.ClientEmail == "" {
		appt.ClientEmail = client.Email
	}

	appt.CalendarEventID = m.createEvent(ctx, *appt)
	batch := m.reminders.Materialize(*appt, now)
	clients.Accrue(client, appt.TotalAmount, now)

	err = m.store.Atomic(ctx, func(tx studio.RecordStore) error {
		if err := tx.SaveClient(ctx, client); err != nil {
			return err
		}
		if err := tx.SaveAppointment(ctx, appt); err != nil {
			return err
		}
		return tx.InsertReminders(ctx, batch)
	})
	if err != nil {
		m.cancelEvent(ctx, appt.CalendarEventID)
		return nil, fmt.Errorf("appointments: create: %w", err)
	}
	m.logger.Info("appointments: created", "appointment_id", appt.ID, "client_id", clientID,
		"new_client", created, "reminders", len(batch), "calendar_event_id", appt.CalendarEventID)

	if id := m.notify(ctx, "email.confirmation", *appt, *client, notify.ConfirmationSubject(appt.SessionType), templates.Confirmation, ""); id != "" {
		appt.GmailMessageID = id
		if err := m.store.SaveAppointment(ctx, appt); err != nil {
			m.logger.Warn("appointments: record confirmation id failed", "appointment_id", appt.ID, "error", err)
		}
	}
	return appt, nil
}

func (m *Manager) resolveClient(ctx context.Context, in studio.NewAppointment) (*studio.Client, bool, error) {
	if in.ClientID == nil {
		return clients.ResolveOrCreate(ctx, m.store, in.Client, m.now())
	}
	c, err := m.store.GetClient(ctx, *in.ClientID)
	if studio.IsNotFound(err) {
		return nil, false, studio.Invalid("client_id", "unknown client "+in.ClientID.String())
	}
	if err != nil {
		return nil, false, fmt.Errorf("appointments: load client: %w", err)
	}
	return c, false, nil
}

// reloadClient rereads an existing client once its lock is held, so metrics
// accrue on the stored row rather than a copy read before the lock.
func (m *Manager) reloadClient(ctx context.Context, id uuid.UUID, in studio.NewAppointment, now time.Time) (*studio.Client, error) {
	c, err := m.store.GetClient(ctx, id)
	if studio.IsNotFound(err) {
		return nil, fmt.Errorf("appointments: client %s removed during booking: %w", id, studio.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: load client: %w", err)
	}
	if in.ClientID == nil {
		clients.Refresh(c, in.Client, now)
	}
	return c, nil
}

// Cancel marks an appointment cancelled, cancels its pending reminders and
// calendar event, and notifies the client. It reports false when the
// appointment does not exist. Client metrics are left as they are.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID, reason string) (ok bool, err error) {
	ctx, span := m.startSpan(ctx, "cancel", attribute.String("appointment.id", id.String()))
	defer func() {
		m.metrics.ObserveAppointment("cancel", err)
		endSpan(span, err)
	}()

	release, err := m.lock(ctx, locks.AppointmentKey(id.String()))
	if err != nil {
		return false, err
	}
	defer release()

	appt, err := m.store.GetAppointment(ctx, id)
	if studio.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("appointments: cancel: %w", err)
	}
	if !appt.Status.CanTransition(studio.StatusCancelled) {
		return false, studio.Invalid("status", "appointment is already "+string(appt.Status))
	}

	reason = strings.TrimSpace(reason)
	appt.Status = studio.StatusCancelled
	if reason != "" {
		appt.Notes += "\nCancelled: " + reason
	}
	appt.UpdatedAt = m.now()

	var cancelled int64
	err = m.store.Atomic(ctx, func(tx studio.RecordStore) error {
		if err := tx.SaveAppointment(ctx, appt); err != nil {
			return err
		}
		n, err := tx.CancelPendingReminders(ctx, id)
		cancelled = n
		return err
	})
	if err != nil {
		return false, fmt.Errorf("appointments: cancel: %w", err)
	}
	m.cancelEvent(ctx, appt.CalendarEventID)
	m.logger.Info("appointments: cancelled", "appointment_id", id, "reminders_cancelled", cancelled)

	m.notify(ctx, "email.cancellation", *appt, m.clientOf(ctx, *appt), notify.CancellationSubject(appt.SessionType), templates.Cancellation, reason)
	return true, nil
}

// Update applies a partial edit. End time and total are recomputed from
// changed inputs; a time change on an active appointment re-mirrors the
// calendar and reschedules pending reminders. Client metrics are never
// touched.
func (m *Manager) Update(ctx context.Context, id uuid.UUID, patch studio.AppointmentPatch) (appt *studio.Appointment, err error) {
	ctx, span := m.startSpan(ctx, "update", attribute.String("appointment.id", id.String()))
	defer func() {
		m.metrics.ObserveAppointment("update", err)
		endSpan(span, err)
	}()

	release, err := m.lock(ctx, locks.AppointmentKey(id.String()))
	if err != nil {
		return nil, err
	}
	defer release()

	appt, err = m.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	wasActive := appt.Active()
	now := m.now()
	res, err := patch.Apply(appt, now)
	if err != nil {
		return nil, err
	}

	switch {
	case wasActive && !appt.Active():
		m.cancelEvent(ctx, appt.CalendarEventID)
	case res.TimesChanged && appt.Active() && m.calendar != nil:
		if appt.CalendarEventID == "" {
			appt.CalendarEventID = m.createEvent(ctx, *appt)
			break
		}
		eventID := appt.CalendarEventID
		_ = m.gateway(ctx, "calendar.update", func(ctx context.Context) error {
			return m.calendar.UpdateEvent(ctx, eventID, *appt)
		})
	}

	var batch []studio.Reminder
	reschedule := res.TimesChanged && appt.Active()
	if reschedule {
		batch = m.reminders.Materialize(*appt, now)
	}
	err = m.store.Atomic(ctx, func(tx studio.RecordStore) error {
		if err := tx.SaveAppointment(ctx, appt); err != nil {
			return err
		}
		if reschedule || (wasActive && !appt.Active()) {
			if _, err := tx.CancelPendingReminders(ctx, id); err != nil {
				return err
			}
		}
		return tx.InsertReminders(ctx, batch)
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: update: %w", err)
	}
	m.logger.Info("appointments: updated", "appointment_id", id, "times_changed", res.TimesChanged,
		"amount_changed", res.AmountChanged, "status", appt.Status)
	return appt, nil
}

// Delete removes an appointment and its reminders and cancels its calendar
// event. It reports false when the appointment does not exist.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) (ok bool, err error) {
	ctx, span := m.startSpan(ctx, "delete", attribute.String("appointment.id", id.String()))
	defer func() {
		m.metrics.ObserveAppointment("delete", err)
		endSpan(span, err)
	}()

	release, err := m.lock(ctx, locks.AppointmentKey(id.String()))
	if err != nil {
		return false, err
	}
	defer release()

	appt, err := m.store.GetAppointment(ctx, id)
	if studio.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("appointments: delete: %w", err)
	}

	var deleted bool
	err = m.store.Atomic(ctx, func(tx studio.RecordStore) error {
		if _, err := tx.CancelPendingReminders(ctx, id); err != nil {
			return err
		}
		ok, err := tx.DeleteAppointment(ctx, id)
		deleted = ok
		return err
	})
	if err != nil {
		return false, fmt.Errorf("appointments: delete: %w", err)
	}
	if deleted {
		m.cancelEvent(ctx, appt.CalendarEventID)
		m.logger.Info("appointments: deleted", "appointment_id", id)
	}
	return deleted, nil
}

// notify sends a best-effort client email and returns its message id, or ""
// when nothing was sent.
func (m *Manager) notify(ctx context.Context, gateway string, appt studio.Appointment, client studio.Client, subject, template, reason string) string {
	if m.notifier == nil {
		return ""
	}
	to := appt.ClientEmail
	if to == "" {
		to = client.Email
	}
	if to == "" {
		m.logger.Debug("appointments: no recipient, skipping email", "appointment_id", appt.ID, "template", template)
		return ""
	}
	var messageID string
	_ = m.gateway(ctx, gateway, func(ctx context.Context) error {
		id, err := m.notifier.Notify(ctx, notify.Notification{
			To:       to,
			ToName:   client.Name,
			Subject:  subject,
			Template: template,
			Data:     templates.Context{Appointment: appt, Client: client, Reason: reason},
		})
		messageID = id
		return err
	})
	return messageID
}

func (m *Manager) clientOf(ctx context.Context, appt studio.Appointment) studio.Client {
	fallback := studio.Client{Name: appt.ClientName, Email: appt.ClientEmail}
	if appt.ClientID == nil {
		return fallback
	}
	c, err := m.store.GetClient(ctx, *appt.ClientID)
	if err != nil {
		return fallback
	}
	return *c
}
