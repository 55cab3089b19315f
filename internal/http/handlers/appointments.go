package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/snapstudio-crm/internal/studio"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

// AppointmentService is the lifecycle surface the handler drives.
type AppointmentService interface {
	Create(ctx context.Context, in studio.NewAppointment) (*studio.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*studio.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, patch studio.AppointmentPatch) (*studio.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	Upcoming(ctx context.Context, days int) ([]studio.Appointment, error)
	ForClient(ctx context.Context, clientID uuid.UUID) ([]studio.Appointment, error)
	Reminders(ctx context.Context, id uuid.UUID) ([]studio.Reminder, error)
}

// AppointmentsHandler serves /appointments.
type AppointmentsHandler struct {
	svc    AppointmentService
	logger *logging.Logger
}

// NewAppointmentsHandler creates the appointments handler.
func NewAppointmentsHandler(svc AppointmentService, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{svc: svc, logger: logger}
}

// Routes mounts the appointment endpoints on r.
func (h *AppointmentsHandler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.Upcoming)
	r.Route("/{appointmentID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/cancel", h.Cancel)
		r.Get("/reminders", h.Reminders)
	})
}

// Create books an appointment.
// POST /api/v1/appointments
func (h *AppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in studio.NewAppointment
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	appt, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// Upcoming lists confirmed appointments in the next ?days= days.
// GET /api/v1/appointments
func (h *AppointmentsHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.logger, studio.Invalid("days", "must be a non-negative integer"))
			return
		}
		days = n
	}
	appts, err := h.svc.Upcoming(r.Context(), days)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if appts == nil {
		appts = []studio.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts, "total": len(appts)})
}

func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "appointmentID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *AppointmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "appointmentID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var patch studio.AppointmentPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}
	appt, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel cancels an appointment. The body is optional.
// POST /api/v1/appointments/{appointmentID}/cancel
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "appointmentID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	ok, err := h.svc.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !ok {
		jsonError(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": studio.StatusCancelled})
}

func (h *AppointmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "appointmentID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ok, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !ok {
		jsonError(w, "not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AppointmentsHandler) Reminders(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "appointmentID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	list, err := h.svc.Reminders(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []studio.Reminder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": list})
}

// ForClient lists a client's appointments.
// GET /api/v1/clients/{clientID}/appointments
func (h *AppointmentsHandler) ForClient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "clientID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	appts, err := h.svc.ForClient(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if appts == nil {
		appts = []studio.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": appts, "total": len(appts)})
}
