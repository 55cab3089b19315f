package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

// Memory is an in-process RecordStore for development runs and tests. Reads
// return copies. Deletes cascade like the Postgres schema; other foreign keys
// are not enforced.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

var _ studio.RecordStore = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{data: newMemData()}
}

// Atomic serializes fn against every other call and restores the previous
// state if fn fails. fn must use the tx it is given, not m.
func (m *Memory) Atomic(ctx context.Context, fn func(tx studio.RecordStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{m.data}).Atomic(ctx, fn)
}

func (m *Memory) GetClient(ctx context.Context, id uuid.UUID) (*studio.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.GetClient(ctx, id)
}

func (m *Memory) FindClientByEmail(ctx context.Context, email string) (*studio.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.FindClientByEmail(ctx, email)
}

func (m *Memory) SaveClient(ctx context.Context, c *studio.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.SaveClient(ctx, c)
}

func (m *Memory) DeleteClient(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.DeleteClient(ctx, id)
}

func (m *Memory) SearchClients(ctx context.Context, query string, limit int) ([]studio.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.SearchClients(ctx, query, limit)
}

func (m *Memory) AddClientNote(ctx context.Context, n *studio.ClientNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.AddClientNote(ctx, n)
}

func (m *Memory) ListClientNotes(ctx context.Context, clientID uuid.UUID, includeInternal bool) ([]studio.ClientNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.ListClientNotes(ctx, clientID, includeInternal)
}

func (m *Memory) GetAppointment(ctx context.Context, id uuid.UUID) (*studio.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.GetAppointment(ctx, id)
}

func (m *Memory) SaveAppointment(ctx context.Context, a *studio.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.SaveAppointment(ctx, a)
}

func (m *Memory) DeleteAppointment(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.DeleteAppointment(ctx, id)
}

func (m *Memory) ListAppointments(ctx context.Context, q studio.AppointmentQuery) ([]studio.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.ListAppointments(ctx, q)
}

func (m *Memory) InsertReminders(ctx context.Context, batch []studio.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.InsertReminders(ctx, batch)
}

func (m *Memory) ListReminders(ctx context.Context, appointmentID uuid.UUID) ([]studio.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.ListReminders(ctx, appointmentID)
}

func (m *Memory) PendingDue(ctx context.Context, asOf time.Time) ([]studio.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.PendingDue(ctx, asOf)
}

func (m *Memory) TransitionReminder(ctx context.Context, id uuid.UUID, from, to studio.ReminderStatus, upd studio.ReminderUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.TransitionReminder(ctx, id, from, to, upd)
}

func (m *Memory) CancelPendingReminders(ctx context.Context, appointmentID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.CancelPendingReminders(ctx, appointmentID)
}

// memTx is the view handed to Atomic callbacks. The caller already holds the
// store mutex.
type memTx struct {
	*memData
}

func (t *memTx) Atomic(_ context.Context, fn func(tx studio.RecordStore) error) error {
	snapshot := t.memData.clone()
	if err := fn(t); err != nil {
		*t.memData = *snapshot
		return err
	}
	return nil
}

type memData struct {
	clients      map[uuid.UUID]studio.Client
	notes        map[uuid.UUID][]studio.ClientNote
	appointments map[uuid.UUID]studio.Appointment
	reminders    map[uuid.UUID]studio.Reminder
}

func newMemData() *memData {
	return &memData{
		clients:      make(map[uuid.UUID]studio.Client),
		notes:        make(map[uuid.UUID][]studio.ClientNote),
		appointments: make(map[uuid.UUID]studio.Appointment),
		reminders:    make(map[uuid.UUID]studio.Reminder),
	}
}

func (d *memData) clone() *memData {
	out := newMemData()
	for k, v := range d.clients {
		out.clients[k] = v.Clone()
	}
	for k, v := range d.notes {
		out.notes[k] = append([]studio.ClientNote(nil), v...)
	}
	for k, v := range d.appointments {
		out.appointments[k] = v.Clone()
	}
	for k, v := range d.reminders {
		out.reminders[k] = cloneReminder(v)
	}
	return out
}

func (d *memData) GetClient(_ context.Context, id uuid.UUID) (*studio.Client, error) {
	c, ok := d.clients[id]
	if !ok {
		return nil, fmt.Errorf("store: get client %s: %w", id, studio.ErrNotFound)
	}
	out := c.Clone()
	return &out, nil
}

func (d *memData) FindClientByEmail(_ context.Context, email string) (*studio.Client, error) {
	email = strings.TrimSpace(email)
	if email != "" {
		for _, c := range d.clients {
			if c.Email == email {
				out := c.Clone()
				return &out, nil
			}
		}
	}
	return nil, fmt.Errorf("store: find client by email: %w", studio.ErrNotFound)
}

func (d *memData) SaveClient(_ context.Context, c *studio.Client) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Email != "" {
		for id, other := range d.clients {
			if id != c.ID && other.Email == c.Email {
				return fmt.Errorf("store: save client: email %q: %w", c.Email, studio.ErrConflict)
			}
		}
	}
	stored := c.Clone()
	if existing, ok := d.clients[c.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	d.clients[c.ID] = stored
	return nil
}

func (d *memData) DeleteClient(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, ok := d.clients[id]; !ok {
		return false, nil
	}
	for apptID, a := range d.appointments {
		if a.ClientID != nil && *a.ClientID == id {
			_, _ = d.DeleteAppointment(ctx, apptID)
		}
	}
	delete(d.notes, id)
	delete(d.clients, id)
	return true, nil
}

func (d *memData) SearchClients(_ context.Context, query string, limit int) ([]studio.Client, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var out []studio.Client
	for _, c := range d.clients {
		if strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.Email), q) ||
			strings.Contains(strings.ToLower(c.Phone), q) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *memData) AddClientNote(_ context.Context, n *studio.ClientNote) error {
	c, ok := d.clients[n.ClientID]
	if !ok {
		return fmt.Errorf("store: add note: client %s: %w", n.ClientID, studio.ErrNotFound)
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	at := n.CreatedAt
	c.LastContact = &at
	c.UpdatedAt = at
	d.clients[n.ClientID] = c
	d.notes[n.ClientID] = append(d.notes[n.ClientID], *n)
	return nil
}

func (d *memData) ListClientNotes(_ context.Context, clientID uuid.UUID, includeInternal bool) ([]studio.ClientNote, error) {
	var out []studio.ClientNote
	for _, n := range d.notes[clientID] {
		if n.Internal && !includeInternal {
			continue
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (d *memData) GetAppointment(_ context.Context, id uuid.UUID) (*studio.Appointment, error) {
	a, ok := d.appointments[id]
	if !ok {
		return nil, fmt.Errorf("store: get appointment %s: %w", id, studio.ErrNotFound)
	}
	out := a.Clone()
	return &out, nil
}

func (d *memData) SaveAppointment(_ context.Context, a *studio.Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	stored := a.Clone()
	if existing, ok := d.appointments[a.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	d.appointments[a.ID] = stored
	return nil
}

func (d *memData) DeleteAppointment(_ context.Context, id uuid.UUID) (bool, error) {
	if _, ok := d.appointments[id]; !ok {
		return false, nil
	}
	for rid, r := range d.reminders {
		if r.AppointmentID == id {
			delete(d.reminders, rid)
		}
	}
	delete(d.appointments, id)
	return true, nil
}

func (d *memData) ListAppointments(_ context.Context, q studio.AppointmentQuery) ([]studio.Appointment, error) {
	var out []studio.Appointment
	for _, a := range d.appointments {
		if q.ClientID != nil && (a.ClientID == nil || *a.ClientID != *q.ClientID) {
			continue
		}
		if q.From != nil && a.StartTime.Before(*q.From) {
			continue
		}
		if q.To != nil && a.StartTime.After(*q.To) {
			continue
		}
		if q.Status != "" && a.Status != q.Status {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (d *memData) InsertReminders(_ context.Context, batch []studio.Reminder) error {
	now := time.Now().UTC()
	for i := range batch {
		if batch[i].ID != uuid.Nil {
			if _, exists := d.reminders[batch[i].ID]; exists {
				return fmt.Errorf("store: insert reminders: duplicate id %s", batch[i].ID)
			}
		}
	}
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
		d.reminders[r.ID] = cloneReminder(*r)
	}
	return nil
}

func (d *memData) ListReminders(_ context.Context, appointmentID uuid.UUID) ([]studio.Reminder, error) {
	return d.selectReminders(func(r studio.Reminder) bool { return r.AppointmentID == appointmentID }), nil
}

func (d *memData) PendingDue(_ context.Context, asOf time.Time) ([]studio.Reminder, error) {
	return d.selectReminders(func(r studio.Reminder) bool {
		return r.Status == studio.ReminderPending && !r.ScheduledTime.After(asOf)
	}), nil
}

func (d *memData) TransitionReminder(_ context.Context, id uuid.UUID, from, to studio.ReminderStatus, upd studio.ReminderUpdate) (bool, error) {
	if from.Terminal() || from == to {
		return false, fmt.Errorf("store: transition reminder: %s -> %s not allowed", from, to)
	}
	r, ok := d.reminders[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.SentTime = nil
	if to == studio.ReminderSent {
		at := upd.At
		r.SentTime = &at
	}
	r.EmailMessageID = upd.MessageID
	r.LastError = upd.Error
	d.reminders[id] = r
	return true, nil
}

func (d *memData) CancelPendingReminders(_ context.Context, appointmentID uuid.UUID) (int64, error) {
	var n int64
	for id, r := range d.reminders {
		if r.AppointmentID == appointmentID && r.Status == studio.ReminderPending {
			r.Status = studio.ReminderCancelled
			d.reminders[id] = r
			n++
		}
	}
	return n, nil
}

func (d *memData) selectReminders(keep func(studio.Reminder) bool) []studio.Reminder {
	var out []studio.Reminder
	for _, r := range d.reminders {
		if keep(r) {
			out = append(out, cloneReminder(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(out[j].ScheduledTime)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func cloneReminder(r studio.Reminder) studio.Reminder {
	if r.SentTime != nil {
		t := *r.SentTime
		r.SentTime = &t
	}
	return r
}
