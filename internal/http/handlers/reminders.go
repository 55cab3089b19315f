package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/wolfman30/snapstudio-crm/internal/analytics"
	"github.com/wolfman30/snapstudio-crm/internal/reminders"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

// Sweeper runs one reminder sweep.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (reminders.SweepResult, error)
}

// Reporter builds the analytics report.
type Reporter interface {
	Report(ctx context.Context, now time.Time) (*analytics.Report, error)
}

// OperationsHandler serves the reminder sweep and analytics endpoints.
type OperationsHandler struct {
	sweeper  Sweeper
	reporter Reporter
	now      func() time.Time
	logger   *logging.Logger
}

// NewOperationsHandler creates the handler. reporter may be nil when no SQL
// database is configured.
func NewOperationsHandler(sweeper Sweeper, reporter Reporter, logger *logging.Logger) *OperationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &OperationsHandler{
		sweeper:  sweeper,
		reporter: reporter,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// Sweep dispatches due reminders now.
// POST /api/v1/reminders/sweep
func (h *OperationsHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.Sweep(r.Context(), h.now())
	if errors.Is(err, reminders.ErrSweepInProgress) {
		jsonError(w, "a sweep is already running", http.StatusConflict)
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Analytics returns studio totals.
// GET /api/v1/analytics
func (h *OperationsHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		jsonError(w, "analytics requires DATABASE_URL", http.StatusServiceUnavailable)
		return
	}
	rep, err := h.reporter.Report(r.Context(), h.now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
