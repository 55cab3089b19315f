// Package analytics computes studio-wide business totals for the admin API.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// recentWindow is how far back the "recent" figures look.
const recentWindow = 30 * 24 * time.Hour

// Report is a snapshot of studio totals.
type Report struct {
	GeneratedAt         time.Time      `json:"generated_at"`
	TotalClients        int            `json:"total_clients"`
	NewClients30d       int            `json:"new_clients_30d"`
	TotalAppointments   int            `json:"total_appointments"`
	Appointments30d     int            `json:"appointments_30d"`
	TotalRevenue        float64        `json:"total_revenue"`
	Revenue30d          float64        `json:"revenue_30d"`
	AverageSessionValue float64        `json:"average_session_value"`
	PaymentStatusCounts map[string]int `json:"payment_status_distribution"`
	SessionTypeCounts   map[string]int `json:"session_type_distribution"`
	TagCounts           map[string]int `json:"tag_distribution"`
}

// Reporter runs the analytics queries.
type Reporter struct {
	db *sql.DB
}

func NewReporter(db *sql.DB) *Reporter {
	return &Reporter{db: db}
}

// Report computes totals as of now. Revenue counts paid appointments only.
func (r *Reporter) Report(ctx context.Context, now time.Time) (*Report, error) {
	since := now.Add(-recentWindow)
	rep := &Report{GeneratedAt: now}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE created_at >= $1)
		FROM clients`, since).Scan(&rep.TotalClients, &rep.NewClients30d)
	if err != nil {
		return nil, fmt.Errorf("analytics: client totals: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE created_at >= $1)
		FROM appointments`, since).Scan(&rep.TotalAppointments, &rep.Appointments30d)
	if err != nil {
		return nil, fmt.Errorf("analytics: appointment totals: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0),
		       COALESCE(SUM(total_amount) FILTER (WHERE created_at >= $1), 0),
		       COALESCE(AVG(total_amount), 0)
		FROM appointments
		WHERE payment_status = 'paid'`, since).Scan(&rep.TotalRevenue, &rep.Revenue30d, &rep.AverageSessionValue)
	if err != nil {
		return nil, fmt.Errorf("analytics: revenue: %w", err)
	}

	if rep.PaymentStatusCounts, err = r.distribution(ctx, `
		SELECT payment_status, COUNT(*) FROM appointments GROUP BY payment_status`); err != nil {
		return nil, fmt.Errorf("analytics: payment status: %w", err)
	}
	if rep.SessionTypeCounts, err = r.distribution(ctx, `
		SELECT session_type, COUNT(*) FROM appointments GROUP BY session_type`); err != nil {
		return nil, fmt.Errorf("analytics: session types: %w", err)
	}
	if rep.TagCounts, err = r.tagCounts(ctx); err != nil {
		return nil, fmt.Errorf("analytics: tags: %w", err)
	}
	return rep, nil
}

func (r *Reporter) distribution(ctx context.Context, query string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		out[key] = count
	}
	return out, rows.Err()
}

func (r *Reporter) tagCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tags FROM clients WHERE cardinality(tags) > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var tags []string
		if err := rows.Scan(pq.Array(&tags)); err != nil {
			return nil, err
		}
		for _, t := range tags {
			out[t]++
		}
	}
	return out, rows.Err()
}
