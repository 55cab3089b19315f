package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

const appointmentColumns = `id, client_id, client_name, client_email, start_time, end_time, duration,
	session_type, milestone, session_fee, additional_charges, discount, total_amount,
	payment_status, status, location, calendar_event_id, gmail_message_id, notes,
	created_at, updated_at`

// GetAppointment loads one appointment by id.
func (s *Postgres) GetAppointment(ctx context.Context, id uuid.UUID) (*studio.Appointment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	a, err := scanAppointment(row)
	if err != nil {
		return nil, notFound("get appointment", err)
	}
	return a, nil
}

// SaveAppointment inserts or replaces an appointment row.
func (s *Postgres) SaveAppointment(ctx context.Context, a *studio.Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id) DO UPDATE SET
			client_id = EXCLUDED.client_id,
			client_name = EXCLUDED.client_name,
			client_email = EXCLUDED.client_email,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			duration = EXCLUDED.duration,
			session_type = EXCLUDED.session_type,
			milestone = EXCLUDED.milestone,
			session_fee = EXCLUDED.session_fee,
			additional_charges = EXCLUDED.additional_charges,
			discount = EXCLUDED.discount,
			total_amount = EXCLUDED.total_amount,
			payment_status = EXCLUDED.payment_status,
			status = EXCLUDED.status,
			location = EXCLUDED.location,
			calendar_event_id = EXCLUDED.calendar_event_id,
			gmail_message_id = EXCLUDED.gmail_message_id,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at`,
		a.ID, a.ClientID, a.ClientName, a.ClientEmail, a.StartTime, a.EndTime, a.Duration,
		a.SessionType, a.Milestone, a.SessionFee, a.AdditionalCharges, a.Discount, a.TotalAmount,
		string(a.PaymentStatus), string(a.Status), a.Location, a.CalendarEventID, a.GmailMessageID, a.Notes,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: save appointment: %w", err)
	}
	return nil
}

// DeleteAppointment removes an appointment; its reminders cascade.
func (s *Postgres) DeleteAppointment(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("store: delete appointment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListAppointments returns appointments matching q ordered by start time.
func (s *Postgres) ListAppointments(ctx context.Context, q studio.AppointmentQuery) ([]studio.Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if q.ClientID != nil {
		add("client_id = $%d", *q.ClientID)
	}
	if q.From != nil {
		add("start_time >= $%d", *q.From)
	}
	if q.To != nil {
		add("start_time <= $%d", *q.To)
	}
	if q.Status != "" {
		add("status = $%d", string(q.Status))
	}

	sql := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY start_time ASC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list appointments: %w", err)
	}
	defer rows.Close()

	var out []studio.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan appointment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (*studio.Appointment, error) {
	var (
		a                     studio.Appointment
		paymentStatus, status string
	)
	err := row.Scan(
		&a.ID, &a.ClientID, &a.ClientName, &a.ClientEmail, &a.StartTime, &a.EndTime, &a.Duration,
		&a.SessionType, &a.Milestone, &a.SessionFee, &a.AdditionalCharges, &a.Discount, &a.TotalAmount,
		&paymentStatus, &status, &a.Location, &a.CalendarEventID, &a.GmailMessageID, &a.Notes,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.PaymentStatus = studio.PaymentStatus(paymentStatus)
	a.Status = studio.AppointmentStatus(status)
	return &a, nil
}
