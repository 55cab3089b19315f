package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/snapstudio-crm/internal/locks"
	"github.com/wolfman30/snapstudio-crm/internal/studio"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

// ErrArchiveDisabled is returned by Archive when no export bucket is configured.
var ErrArchiveDisabled = errors.New("clients: archive not configured")

// Archiver stores an exported client document under key.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte) error
}

// NoteInput is the caller-supplied part of a client note.
type NoteInput struct {
	NoteType string `json:"note_type,omitempty"`
	Title    string `json:"title,omitempty"`
	Content  string `json:"content"`
	Author   string `json:"author,omitempty"`
	Internal bool   `json:"internal,omitempty"`
}

// Export is a client's full record as of ExportedAt.
type Export struct {
	Client       studio.Client        `json:"client"`
	Appointments []studio.Appointment `json:"appointments"`
	Notes        []studio.ClientNote  `json:"notes"`
	ExportedAt   time.Time            `json:"exported_at"`
}

// Service manages client records outside of booking.
type Service struct {
	store    studio.RecordStore
	locker   locks.Locker
	archiver Archiver
	logger   *logging.Logger
	now      func() time.Time
}

// NewService wires the client service. locker and archiver may be nil.
func NewService(store studio.RecordStore, locker locks.Locker, archiver Archiver, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		locker:   locker,
		archiver: archiver,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a client explicitly. A second client with the same email
// is a conflict.
func (s *Service) Register(ctx context.Context, fields studio.ClientFields) (*studio.Client, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	fields = fields.Normalized()

	if fields.Email != "" {
		release, err := s.lock(ctx, locks.ClientEmailKey(fields.Email))
		if err != nil {
			return nil, fmt.Errorf("clients: register: %w", err)
		}
		defer release()
	}

	var client *studio.Client
	err := s.store.Atomic(ctx, func(tx studio.RecordStore) error {
		if fields.Email != "" {
			_, err := tx.FindClientByEmail(ctx, fields.Email)
			if err == nil {
				return fmt.Errorf("clients: email %s already registered: %w", fields.Email, studio.ErrConflict)
			}
			if !studio.IsNotFound(err) {
				return err
			}
		}
		client = newClient(fields, s.now())
		return tx.SaveClient(ctx, client)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("clients: registered", "client_id", client.ID)
	return client, nil
}

// Get loads one client.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*studio.Client, error) {
	return s.store.GetClient(ctx, id)
}

// Search matches name, email or phone substrings.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]studio.Client, error) {
	return s.store.SearchClients(ctx, strings.TrimSpace(query), limit)
}

// Update applies a partial update. Aggregate metrics are never patched.
func (s *Service) Update(ctx context.Context, id uuid.UUID, patch studio.ClientPatch) (*studio.Client, error) {
	release, err := s.lock(ctx, locks.ClientKey(id.String()))
	if err != nil {
		return nil, fmt.Errorf("clients: update: %w", err)
	}
	defer release()

	var client *studio.Client
	err = s.store.Atomic(ctx, func(tx studio.RecordStore) error {
		c, err := tx.GetClient(ctx, id)
		if err != nil {
			return err
		}
		if err := patch.Apply(c, s.now()); err != nil {
			return err
		}
		client = c
		return tx.SaveClient(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Delete removes a client with its appointments, reminders and notes.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	release, err := s.lock(ctx, locks.ClientKey(id.String()))
	if err != nil {
		return false, fmt.Errorf("clients: delete: %w", err)
	}
	defer release()

	deleted, err := s.store.DeleteClient(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("clients: deleted", "client_id", id)
	}
	return deleted, nil
}

// AddNote attaches a note and marks the client as contacted.
func (s *Service) AddNote(ctx context.Context, clientID uuid.UUID, in NoteInput) (*studio.ClientNote, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, studio.Invalid("content", "required")
	}
	noteType := strings.TrimSpace(in.NoteType)
	if noteType == "" {
		noteType = "general"
	}
	note := &studio.ClientNote{
		ID:        uuid.New(),
		ClientID:  clientID,
		NoteType:  noteType,
		Title:     strings.TrimSpace(in.Title),
		Content:   content,
		Author:    strings.TrimSpace(in.Author),
		Internal:  in.Internal,
		CreatedAt: s.now(),
	}
	if err := s.store.AddClientNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// Notes lists a client's notes, newest first.
func (s *Service) Notes(ctx context.Context, clientID uuid.UUID, includeInternal bool) ([]studio.ClientNote, error) {
	if _, err := s.store.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	return s.store.ListClientNotes(ctx, clientID, includeInternal)
}

// Export gathers a client's record, appointments and notes.
func (s *Service) Export(ctx context.Context, id uuid.UUID) (*Export, error) {
	c, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	appts, err := s.store.ListAppointments(ctx, studio.AppointmentQuery{ClientID: &id})
	if err != nil {
		return nil, fmt.Errorf("clients: export appointments: %w", err)
	}
	notes, err := s.store.ListClientNotes(ctx, id, true)
	if err != nil {
		return nil, fmt.Errorf("clients: export notes: %w", err)
	}
	if appts == nil {
		appts = []studio.Appointment{}
	}
	if notes == nil {
		notes = []studio.ClientNote{}
	}
	return &Export{Client: *c, Appointments: appts, Notes: notes, ExportedAt: s.now()}, nil
}

// Archive uploads the client's export and returns the object key.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) (string, error) {
	if s.archiver == nil {
		return "", ErrArchiveDisabled
	}
	exp, err := s.Export(ctx, id)
	if err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("clients: encode export: %w", err)
	}
	key := ArchiveKey(id, exp.ExportedAt)
	if err := s.archiver.Put(ctx, key, body); err != nil {
		return "", fmt.Errorf("clients: archive %s: %w", id, err)
	}
	s.logger.Info("clients: archived", "client_id", id, "key", key)
	return key, nil
}

// Recompute rebuilds a client's aggregates from stored appointments.
func (s *Service) Recompute(ctx context.Context, id uuid.UUID) (*studio.Client, error) {
	release, err := s.lock(ctx, locks.ClientKey(id.String()))
	if err != nil {
		return nil, fmt.Errorf("clients: recompute: %w", err)
	}
	defer release()

	var client *studio.Client
	err = s.store.Atomic(ctx, func(tx studio.RecordStore) error {
		c, err := tx.GetClient(ctx, id)
		if err != nil {
			return err
		}
		appts, err := tx.ListAppointments(ctx, studio.AppointmentQuery{ClientID: &id})
		if err != nil {
			return err
		}
		Recompute(c, appts)
		c.UpdatedAt = s.now()
		client = c
		return tx.SaveClient(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (s *Service) lock(ctx context.Context, key string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	return s.locker.Acquire(ctx, key, 0)
}

// ArchiveKey is the object key of a client export taken at t.
func ArchiveKey(id uuid.UUID, t time.Time) string {
	return fmt.Sprintf("exports/%s/%s.json", id, t.UTC().Format("20060102T150405Z"))
}
