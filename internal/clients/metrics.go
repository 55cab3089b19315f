// Package clients maintains client records and the aggregate metrics derived
// from their appointment history.
package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/snapstudio-crm/internal/studio"
)

// Accrue records one booked appointment worth amount against c.
func Accrue(c *studio.Client, amount float64, now time.Time) {
	c.TotalAppointments++
	c.TotalSpent += amount
	c.AverageSessionValue = c.TotalSpent / float64(c.TotalAppointments)
	c.CustomerLifetimeValue = c.TotalSpent
	at := now
	c.LastAppointment = &at
	c.UpdatedAt = now
}

// Recompute rebuilds c's aggregates from its full appointment history. Every
// booked appointment counts, cancelled ones included, matching Accrue.
func Recompute(c *studio.Client, appts []studio.Appointment) {
	c.TotalAppointments = 0
	c.TotalSpent = 0
	c.AverageSessionValue = 0
	c.LastAppointment = nil
	for _, a := range appts {
		c.TotalAppointments++
		c.TotalSpent += a.TotalAmount
		if c.LastAppointment == nil || a.CreatedAt.After(*c.LastAppointment) {
			at := a.CreatedAt
			c.LastAppointment = &at
		}
	}
	if c.TotalAppointments > 0 {
		c.AverageSessionValue = c.TotalSpent / float64(c.TotalAppointments)
	}
	c.CustomerLifetimeValue = c.TotalSpent
}

// ResolveOrCreate finds the client with exactly fields.Email and refreshes
// its non-empty attributes, or builds a new client with zero metrics. Nothing
// is persisted. The bool reports whether the client is new.
func ResolveOrCreate(ctx context.Context, store studio.ClientStore, fields studio.ClientFields, now time.Time) (*studio.Client, bool, error) {
	fields = fields.Normalized()
	if fields.Email != "" {
		existing, err := store.FindClientByEmail(ctx, fields.Email)
		switch {
		case err == nil:
			Refresh(existing, fields, now)
			return existing, false, nil
		case !errors.Is(err, studio.ErrNotFound):
			return nil, false, fmt.Errorf("clients: resolve %s: %w", fields.Email, err)
		}
	}
	return newClient(fields, now), true, nil
}

func newClient(fields studio.ClientFields, now time.Time) *studio.Client {
	tags := fields.Tags
	if tags == nil {
		tags = []string{}
	}
	return &studio.Client{
		ID:         uuid.New(),
		Name:       fields.Name,
		Email:      fields.Email,
		Phone:      fields.Phone,
		Address:    fields.Address,
		FamilyType: fields.FamilyType,
		Tags:       tags,
		Notes:      fields.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Refresh copies the non-empty attributes of f onto c. Metrics are untouched.
func Refresh(c *studio.Client, f studio.ClientFields, now time.Time) {
	f = f.Normalized()
	c.UpdatedAt = now
	if f.Name != "" {
		c.Name = f.Name
	}
	if f.Phone != "" {
		c.Phone = f.Phone
	}
	if f.Address != "" {
		c.Address = f.Address
	}
	if f.FamilyType != "" {
		c.FamilyType = f.FamilyType
	}
	if len(f.Tags) > 0 {
		c.Tags = f.Tags
	}
	if f.Notes != "" {
		c.Notes = f.Notes
	}
}
