package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

func seedAppointment(t *testing.T, m *Memory, clientID uuid.UUID, start time.Time) studio.Appointment {
	t.Helper()
	a := studio.Appointment{
		ID:          uuid.New(),
		ClientID:    &clientID,
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Duration:    60,
		SessionType: "portrait",
		Status:      studio.StatusConfirmed,
	}
	require.NoError(t, m.SaveAppointment(context.Background(), &a))
	return a
}

func TestMemoryReadsReturnCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	c := &studio.Client{Name: "Ada", Email: "ada@example.com", Tags: []string{"vip"}}
	require.NoError(t, m.SaveClient(ctx, c))

	got, err := m.GetClient(ctx, c.ID)
	require.NoError(t, err)
	got.Tags[0] = "changed"
	got.Name = "Other"

	again, err := m.GetClient(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", again.Name)
	assert.Equal(t, []string{"vip"}, again.Tags)
}

func TestMemoryEmailUniqueness(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveClient(ctx, &studio.Client{Name: "Ada", Email: "ada@example.com"}))
	err := m.SaveClient(ctx, &studio.Client{Name: "Imposter", Email: "ada@example.com"})
	assert.True(t, studio.IsConflict(err))

	found, err := m.FindClientByEmail(ctx, " ada@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "Ada", found.Name)

	_, err = m.FindClientByEmail(ctx, "ADA@example.com")
	assert.True(t, studio.IsNotFound(err), "email matching is exact")
}

func TestMemoryAtomicRollsBack(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	client := &studio.Client{Name: "Ada"}

	err := m.Atomic(ctx, func(tx studio.RecordStore) error {
		if err := tx.SaveClient(ctx, client); err != nil {
			return err
		}
		if err := tx.InsertReminders(ctx, []studio.Reminder{{AppointmentID: uuid.New(), ReminderType: "reminder_1day"}}); err != nil {
			return err
		}
		return errors.New("appointment write failed")
	})
	require.Error(t, err)

	_, err = m.GetClient(ctx, client.ID)
	assert.True(t, studio.IsNotFound(err))
	due, err := m.PendingDue(ctx, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMemoryAtomicCommits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	client := &studio.Client{Name: "Ada"}

	require.NoError(t, m.Atomic(ctx, func(tx studio.RecordStore) error {
		return tx.SaveClient(ctx, client)
	}))
	_, err := m.GetClient(ctx, client.ID)
	require.NoError(t, err)
}

func TestMemoryInsertRemindersIsAllOrNothing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	apptID := uuid.New()
	first := studio.Reminder{ID: uuid.New(), AppointmentID: apptID, ReminderType: "reminder_1week"}
	require.NoError(t, m.InsertReminders(ctx, []studio.Reminder{first}))

	err := m.InsertReminders(ctx, []studio.Reminder{
		{AppointmentID: apptID, ReminderType: "reminder_1day"},
		first,
	})
	require.Error(t, err)

	all, err := m.ListReminders(ctx, apptID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryTransitionReminder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	batch := []studio.Reminder{{AppointmentID: uuid.New(), ReminderType: "reminder_1day", ScheduledTime: now.Add(-time.Minute)}}
	require.NoError(t, m.InsertReminders(ctx, batch))
	id := batch[0].ID
	require.NotEqual(t, uuid.Nil, id)

	moved, err := m.TransitionReminder(ctx, id, studio.ReminderPending, studio.ReminderSent, studio.ReminderUpdate{At: now, MessageID: "msg-1"})
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = m.TransitionReminder(ctx, id, studio.ReminderPending, studio.ReminderFailed, studio.ReminderUpdate{At: now, Error: "late"})
	require.NoError(t, err)
	assert.False(t, moved, "sent reminders never move again")

	_, err = m.TransitionReminder(ctx, id, studio.ReminderSent, studio.ReminderPending, studio.ReminderUpdate{})
	require.Error(t, err)

	list, err := m.ListReminders(ctx, batch[0].AppointmentID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, studio.ReminderSent, list[0].Status)
	require.NotNil(t, list[0].SentTime)
	assert.Equal(t, now, *list[0].SentTime)
	assert.Equal(t, "msg-1", list[0].EmailMessageID)
}

func TestMemoryCancelPendingLeavesTerminal(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	apptID := uuid.New()
	now := time.Now()
	batch := []studio.Reminder{
		{AppointmentID: apptID, ReminderType: "reminder_1week", ScheduledTime: now.Add(-time.Hour)},
		{AppointmentID: apptID, ReminderType: "reminder_1day", ScheduledTime: now.Add(time.Hour)},
	}
	require.NoError(t, m.InsertReminders(ctx, batch))
	_, err := m.TransitionReminder(ctx, batch[0].ID, studio.ReminderPending, studio.ReminderSent, studio.ReminderUpdate{At: now})
	require.NoError(t, err)

	n, err := m.CancelPendingReminders(ctx, apptID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := m.ListReminders(ctx, apptID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, studio.ReminderSent, list[0].Status)
	assert.Equal(t, studio.ReminderCancelled, list[1].Status)
}

func TestMemoryDeleteClientCascades(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	client := &studio.Client{Name: "Ada"}
	require.NoError(t, m.SaveClient(ctx, client))
	appt := seedAppointment(t, m, client.ID, time.Now().Add(48*time.Hour))
	require.NoError(t, m.InsertReminders(ctx, []studio.Reminder{{AppointmentID: appt.ID, ReminderType: "reminder_1day"}}))
	require.NoError(t, m.AddClientNote(ctx, &studio.ClientNote{ClientID: client.ID, Content: "likes outdoor shoots"}))

	deleted, err := m.DeleteClient(ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = m.GetAppointment(ctx, appt.ID)
	assert.True(t, studio.IsNotFound(err))
	reminders, err := m.ListReminders(ctx, appt.ID)
	require.NoError(t, err)
	assert.Empty(t, reminders)

	deleted, err = m.DeleteClient(ctx, client.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemoryNotesTouchClient(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	client := &studio.Client{Name: "Ada"}
	require.NoError(t, m.SaveClient(ctx, client))
	at := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.AddClientNote(ctx, &studio.ClientNote{ClientID: client.ID, Content: "public", CreatedAt: at}))
	require.NoError(t, m.AddClientNote(ctx, &studio.ClientNote{ClientID: client.ID, Content: "secret", Internal: true, CreatedAt: at.Add(time.Hour)}))

	public, err := m.ListClientNotes(ctx, client.ID, false)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "public", public[0].Content)

	all, err := m.ListClientNotes(ctx, client.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "secret", all[0].Content, "newest first")

	got, err := m.GetClient(ctx, client.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastContact)
	assert.Equal(t, at.Add(time.Hour), *got.LastContact)

	err = m.AddClientNote(ctx, &studio.ClientNote{ClientID: uuid.New(), Content: "x"})
	assert.True(t, studio.IsNotFound(err))
}

func TestMemoryListAppointmentsFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	a, b := uuid.New(), uuid.New()
	late := seedAppointment(t, m, a, now.AddDate(0, 0, 40))
	soon := seedAppointment(t, m, a, now.AddDate(0, 0, 2))
	seedAppointment(t, m, b, now.AddDate(0, 0, 1))

	to := now.AddDate(0, 0, 30)
	got, err := m.ListAppointments(ctx, studio.AppointmentQuery{ClientID: &a, From: &now, To: &to})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, soon.ID, got[0].ID)

	all, err := m.ListAppointments(ctx, studio.AppointmentQuery{ClientID: &a})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, late.ID, all[1].ID)

	limited, err := m.ListAppointments(ctx, studio.AppointmentQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemorySearchClients(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveClient(ctx, &studio.Client{Name: "Bea Smith", Email: "bea@example.com"}))
	require.NoError(t, m.SaveClient(ctx, &studio.Client{Name: "Ada Smith", Phone: "555-0101"}))
	require.NoError(t, m.SaveClient(ctx, &studio.Client{Name: "Cy Jones"}))

	got, err := m.SearchClients(ctx, "smith", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Ada Smith", got[0].Name)

	got, err = m.SearchClients(ctx, "0101", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = m.SearchClients(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
