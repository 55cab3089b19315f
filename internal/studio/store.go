package studio

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ClientStore persists clients and their notes.
type ClientStore interface {
	GetClient(ctx context.Context, id uuid.UUID) (*Client, error)
	FindClientByEmail(ctx context.Context, email string) (*Client, error)
	SaveClient(ctx context.Context, c *Client) error
	DeleteClient(ctx context.Context, id uuid.UUID) (bool, error)
	SearchClients(ctx context.Context, query string, limit int) ([]Client, error)
	AddClientNote(ctx context.Context, n *ClientNote) error
	ListClientNotes(ctx context.Context, clientID uuid.UUID, includeInternal bool) ([]ClientNote, error)
}

// AppointmentQuery filters ListAppointments. Zero values match everything.
type AppointmentQuery struct {
	ClientID *uuid.UUID
	From     *time.Time
	To       *time.Time
	Status   AppointmentStatus
	Limit    int
}

// AppointmentStore persists appointments.
type AppointmentStore interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	SaveAppointment(ctx context.Context, a *Appointment) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) (bool, error)
	ListAppointments(ctx context.Context, q AppointmentQuery) ([]Appointment, error)
}

// ReminderUpdate carries the fields written alongside a status transition.
type ReminderUpdate struct {
	At        time.Time
	MessageID string
	Error     string
}

// ReminderStore persists reminders. Transitions are compare-and-set on status.
type ReminderStore interface {
	InsertReminders(ctx context.Context, batch []Reminder) error
	ListReminders(ctx context.Context, appointmentID uuid.UUID) ([]Reminder, error)
	PendingDue(ctx context.Context, asOf time.Time) ([]Reminder, error)
	TransitionReminder(ctx context.Context, id uuid.UUID, from, to ReminderStatus, upd ReminderUpdate) (bool, error)
	CancelPendingReminders(ctx context.Context, appointmentID uuid.UUID) (int64, error)
}

// RecordStore is the full persistence contract. Atomic runs fn against a
// transactional view; any error rolls every write in fn back.
type RecordStore interface {
	ClientStore
	AppointmentStore
	ReminderStore
	Atomic(ctx context.Context, fn func(tx RecordStore) error) error
}
