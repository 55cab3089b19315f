package studio

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus tracks where an appointment is in its lifecycle.
type AppointmentStatus string

const (
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusCompleted   AppointmentStatus = "completed"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted, StatusRescheduled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransition reports whether moving from s to next is allowed. Staying in
// the same non-terminal status is a no-op and allowed; only rescheduled may
// return to confirmed.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	if !next.Valid() || s.Terminal() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case StatusConfirmed:
		return next != StatusConfirmed
	case StatusRescheduled:
		return true
	}
	return false
}

// PaymentStatus tracks what the client has paid for an appointment.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
	PaymentOverdue PaymentStatus = "overdue"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentPartial, PaymentPaid, PaymentOverdue:
		return true
	}
	return false
}

// ReminderStatus tracks a reminder's dispatch state.
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderFailed    ReminderStatus = "failed"
	ReminderCancelled ReminderStatus = "cancelled"
)

// Terminal reports whether the reminder can no longer change state.
func (s ReminderStatus) Terminal() bool {
	return s == ReminderSent || s == ReminderFailed || s == ReminderCancelled
}

// Client is a studio customer with aggregate metrics derived from their
// appointment history.
type Client struct {
	ID                    uuid.UUID  `json:"id"`
	Name                  string     `json:"name"`
	Email                 string     `json:"email"`
	Phone                 string     `json:"phone,omitempty"`
	Address               string     `json:"address,omitempty"`
	FamilyType            string     `json:"family_type,omitempty"`
	Tags                  []string   `json:"tags"`
	Notes                 string     `json:"notes,omitempty"`
	TotalAppointments     int        `json:"total_appointments"`
	TotalSpent            float64    `json:"total_spent"`
	AverageSessionValue   float64    `json:"average_session_value"`
	CustomerLifetimeValue float64    `json:"customer_lifetime_value"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	LastContact           *time.Time `json:"last_contact,omitempty"`
	LastAppointment       *time.Time `json:"last_appointment,omitempty"`
}

// Clone returns a deep copy of c.
func (c Client) Clone() Client {
	out := c
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	out.LastContact = cloneTime(c.LastContact)
	out.LastAppointment = cloneTime(c.LastAppointment)
	return out
}

// ClientNote is a free-form note attached to a client record.
type ClientNote struct {
	ID        uuid.UUID `json:"id"`
	ClientID  uuid.UUID `json:"client_id"`
	NoteType  string    `json:"note_type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author,omitempty"`
	Internal  bool      `json:"internal"`
	CreatedAt time.Time `json:"created_at"`
}

// Appointment is a booked photography session.
type Appointment struct {
	ID                uuid.UUID         `json:"id"`
	ClientID          *uuid.UUID        `json:"client_id,omitempty"`
	ClientName        string            `json:"client_name"`
	ClientEmail       string            `json:"client_email"`
	StartTime         time.Time         `json:"start_time"`
	EndTime           time.Time         `json:"end_time"`
	Duration          int               `json:"duration"`
	SessionType       string            `json:"session_type"`
	Milestone         string            `json:"milestone,omitempty"`
	SessionFee        float64           `json:"session_fee"`
	AdditionalCharges float64           `json:"additional_charges"`
	Discount          float64           `json:"discount"`
	TotalAmount       float64           `json:"total_amount"`
	PaymentStatus     PaymentStatus     `json:"payment_status"`
	Status            AppointmentStatus `json:"status"`
	Location          string            `json:"location,omitempty"`
	CalendarEventID   string            `json:"calendar_event_id,omitempty"`
	GmailMessageID    string            `json:"gmail_message_id,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of a.
func (a Appointment) Clone() Appointment {
	out := a
	if a.ClientID != nil {
		id := *a.ClientID
		out.ClientID = &id
	}
	return out
}

// Active reports whether the appointment is still expected to happen.
func (a Appointment) Active() bool {
	return a.Status == StatusConfirmed || a.Status == StatusRescheduled
}

// DaysUntil is the number of calendar days between now and the start, in
// now's location. Past appointments yield negative values.
func (a Appointment) DaysUntil(now time.Time) int {
	return CalendarDaysBetween(now, a.StartTime)
}

// IsUpcoming reports whether the appointment starts after now.
func (a Appointment) IsUpcoming(now time.Time) bool {
	return a.StartTime.After(now)
}

// IsToday reports whether the appointment starts on now's calendar date.
func (a Appointment) IsToday(now time.Time) bool {
	return a.DaysUntil(now) == 0
}

// MilestoneKey buckets the appointment by how far away it is, matching the
// reminder template names.
func (a Appointment) MilestoneKey(now time.Time) string {
	days := a.DaysUntil(now)
	switch {
	case days >= 14:
		return "reminder_2weeks"
	case days >= 7:
		return "reminder_1week"
	case days >= 3:
		return "reminder_3days"
	case days >= 2:
		return "reminder_2days"
	case days >= 1:
		return "reminder_1day"
	default:
		return "reminder_same_day"
	}
}

// Reminder is a scheduled notification owned by an appointment.
type Reminder struct {
	ID             uuid.UUID      `json:"id"`
	AppointmentID  uuid.UUID      `json:"appointment_id"`
	ReminderType   string         `json:"reminder_type"`
	ScheduledTime  time.Time      `json:"scheduled_time"`
	Status         ReminderStatus `json:"status"`
	SentTime       *time.Time     `json:"sent_time,omitempty"`
	EmailMessageID string         `json:"email_message_id,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// CalendarDaysBetween counts whole calendar days from from's date to to's
// date, evaluated in from's location.
func CalendarDaysBetween(from, to time.Time) int {
	loc := from.Location()
	to = to.In(loc)
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	toDay := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)
	hours := toDay.Sub(fromDay).Hours()
	// DST days are 23 or 25 hours long.
	if hours >= 0 {
		return int((hours + 12) / 24)
	}
	return -int((-hours + 12) / 24)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
