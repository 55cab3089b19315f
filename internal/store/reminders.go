package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

const reminderColumns = `id, appointment_id, reminder_type, scheduled_time, status, sent_time,
	email_message_id, last_error, created_at`

const reminderColumnCount = 9

// InsertReminders writes the whole batch in one statement, so it lands
// entirely or not at all.
func (s *Postgres) InsertReminders(ctx context.Context, batch []studio.Reminder) error {
	if len(batch) == 0 {
		return nil
	}
	now := time.Now().UTC()
	values := make([]string, 0, len(batch))
	args := make([]any, 0, len(batch)*reminderColumnCount)
	for i := range batch {
		r := &batch[i]
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		if r.Status == "" {
			r.Status = studio.ReminderPending
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		base := i * reminderColumnCount
		placeholders := make([]string, reminderColumnCount)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args, r.ID, r.AppointmentID, r.ReminderType, r.ScheduledTime, string(r.Status),
			r.SentTime, r.EmailMessageID, r.LastError, r.CreatedAt)
	}

	_, err := s.db.Exec(ctx, `INSERT INTO reminders (`+reminderColumns+`) VALUES `+strings.Join(values, ", "), args...)
	if err != nil {
		return fmt.Errorf("store: insert reminders: %w", err)
	}
	return nil
}

// ListReminders returns an appointment's reminders by scheduled time.
func (s *Postgres) ListReminders(ctx context.Context, appointmentID uuid.UUID) ([]studio.Reminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE appointment_id = $1
		ORDER BY scheduled_time ASC`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("store: list reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// PendingDue returns pending reminders scheduled at or before asOf.
func (s *Postgres) PendingDue(ctx context.Context, asOf time.Time) ([]studio.Reminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE status = 'pending' AND scheduled_time <= $1
		ORDER BY scheduled_time ASC`, asOf)
	if err != nil {
		return nil, fmt.Errorf("store: pending due: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// TransitionReminder moves a reminder from one status to another only if it
// is still in from. It reports whether a row changed.
func (s *Postgres) TransitionReminder(ctx context.Context, id uuid.UUID, from, to studio.ReminderStatus, upd studio.ReminderUpdate) (bool, error) {
	if from.Terminal() || from == to {
		return false, fmt.Errorf("store: transition reminder: %s -> %s not allowed", from, to)
	}
	var sentAt *time.Time
	if to == studio.ReminderSent {
		at := upd.At
		sentAt = &at
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders SET status = $1, sent_time = $2, email_message_id = $3, last_error = $4
		WHERE id = $5 AND status = $6`,
		string(to), sentAt, upd.MessageID, upd.Error, id, string(from))
	if err != nil {
		return false, fmt.Errorf("store: transition reminder: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CancelPendingReminders cancels every pending reminder of an appointment.
// Sent and failed reminders are left alone.
func (s *Postgres) CancelPendingReminders(ctx context.Context, appointmentID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders SET status = 'cancelled'
		WHERE appointment_id = $1 AND status = 'pending'`, appointmentID)
	if err != nil {
		return 0, fmt.Errorf("store: cancel reminders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanReminders(rows pgx.Rows) ([]studio.Reminder, error) {
	var out []studio.Reminder
	for rows.Next() {
		var (
			r      studio.Reminder
			status string
		)
		err := rows.Scan(&r.ID, &r.AppointmentID, &r.ReminderType, &r.ScheduledTime, &status,
			&r.SentTime, &r.EmailMessageID, &r.LastError, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("store: scan reminder: %w", err)
		}
		r.Status = studio.ReminderStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
