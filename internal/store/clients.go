package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

const clientColumns = `id, name, email, phone, address, family_type, tags, notes,
	total_appointments, total_spent, average_session_value, customer_lifetime_value,
	created_at, updated_at, last_contact, last_appointment`

const defaultSearchLimit = 50

// GetClient loads one client by id.
func (s *Postgres) GetClient(ctx context.Context, id uuid.UUID) (*studio.Client, error) {
	row := s.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if err != nil {
		return nil, notFound("get client", err)
	}
	return c, nil
}

// FindClientByEmail returns the client with exactly this email.
func (s *Postgres) FindClientByEmail(ctx context.Context, email string) (*studio.Client, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("store: find client by email: %w", studio.ErrNotFound)
	}
	row := s.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE email = $1`, email)
	c, err := scanClient(row)
	if err != nil {
		return nil, notFound("find client by email", err)
	}
	return c, nil
}

// SaveClient inserts or replaces a client row.
func (s *Postgres) SaveClient(ctx context.Context, c *studio.Client) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			family_type = EXCLUDED.family_type,
			tags = EXCLUDED.tags,
			notes = EXCLUDED.notes,
			total_appointments = EXCLUDED.total_appointments,
			total_spent = EXCLUDED.total_spent,
			average_session_value = EXCLUDED.average_session_value,
			customer_lifetime_value = EXCLUDED.customer_lifetime_value,
			updated_at = EXCLUDED.updated_at,
			last_contact = EXCLUDED.last_contact,
			last_appointment = EXCLUDED.last_appointment`,
		c.ID, c.Name, c.Email, c.Phone, c.Address, c.FamilyType, tags, c.Notes,
		c.TotalAppointments, c.TotalSpent, c.AverageSessionValue, c.CustomerLifetimeValue,
		c.CreatedAt, c.UpdatedAt, c.LastContact, c.LastAppointment,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("store: save client: email %q: %w", c.Email, studio.ErrConflict)
		}
		return fmt.Errorf("store: save client: %w", err)
	}
	return nil
}

// DeleteClient removes a client; appointments, reminders and notes cascade.
func (s *Postgres) DeleteClient(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("store: delete client: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SearchClients matches a case-insensitive substring of name, email or phone.
func (s *Postgres) SearchClients(ctx context.Context, query string, limit int) ([]studio.Client, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := s.db.Query(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1
		ORDER BY name ASC, created_at ASC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search clients: %w", err)
	}
	defer rows.Close()

	var out []studio.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan client: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// AddClientNote stores the note and touches the client's last contact in
// one transaction.
func (s *Postgres) AddClientNote(ctx context.Context, n *studio.ClientNote) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return s.inTx(ctx, func(tx *Postgres) error {
		tag, err := tx.db.Exec(ctx, `
			UPDATE clients SET last_contact = $1, updated_at = $1 WHERE id = $2`,
			n.CreatedAt, n.ClientID)
		if err != nil {
			return fmt.Errorf("store: touch client: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("store: add note: client %s: %w", n.ClientID, studio.ErrNotFound)
		}
		_, err = tx.db.Exec(ctx, `
			INSERT INTO client_notes (id, client_id, note_type, title, content, author, internal, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			n.ID, n.ClientID, n.NoteType, n.Title, n.Content, n.Author, n.Internal, n.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("store: add note: %w", err)
		}
		return nil
	})
}

// ListClientNotes returns notes newest first.
func (s *Postgres) ListClientNotes(ctx context.Context, clientID uuid.UUID, includeInternal bool) ([]studio.ClientNote, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, client_id, note_type, title, content, author, internal, created_at
		FROM client_notes
		WHERE client_id = $1 AND ($2 OR internal = FALSE)
		ORDER BY created_at DESC`, clientID, includeInternal)
	if err != nil {
		return nil, fmt.Errorf("store: list notes: %w", err)
	}
	defer rows.Close()

	var out []studio.ClientNote
	for rows.Next() {
		var n studio.ClientNote
		if err := rows.Scan(&n.ID, &n.ClientID, &n.NoteType, &n.Title, &n.Content, &n.Author, &n.Internal, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanClient(row pgx.Row) (*studio.Client, error) {
	var c studio.Client
	err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.FamilyType, &c.Tags, &c.Notes,
		&c.TotalAppointments, &c.TotalSpent, &c.AverageSessionValue, &c.CustomerLifetimeValue,
		&c.CreatedAt, &c.UpdatedAt, &c.LastContact, &c.LastAppointment,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
