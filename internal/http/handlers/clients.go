package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/snapstudio-crm/internal/clients"
	"github.com/wolfman30/snapstudio-crm/internal/studio"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

// ClientService is the client-record surface the handler drives.
type ClientService interface {
	Register(ctx context.Context, fields studio.ClientFields) (*studio.Client, error)
	Get(ctx context.Context, id uuid.UUID) (*studio.Client, error)
	Search(ctx context.Context, query string, limit int) ([]studio.Client, error)
	Update(ctx context.Context, id uuid.UUID, patch studio.ClientPatch) (*studio.Client, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	AddNote(ctx context.Context, clientID uuid.UUID, in clients.NoteInput) (*studio.ClientNote, error)
	Notes(ctx context.Context, clientID uuid.UUID, includeInternal bool) ([]studio.ClientNote, error)
	Export(ctx context.Context, id uuid.UUID) (*clients.Export, error)
	Archive(ctx context.Context, id uuid.UUID) (string, error)
	Recompute(ctx context.Context, id uuid.UUID) (*studio.Client, error)
}

// ClientsHandler serves /clients.
type ClientsHandler struct {
	svc          ClientService
	appointments http.HandlerFunc
	logger       *logging.Logger
}

// NewClientsHandler creates the clients handler. appointments, when set,
// serves GET /clients/{clientID}/appointments.
func NewClientsHandler(svc ClientService, appointments http.HandlerFunc, logger *logging.Logger) *ClientsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ClientsHandler{svc: svc, appointments: appointments, logger: logger}
}

// Routes mounts the client endpoints on r.
func (h *ClientsHandler) Routes(r chi.Router) {
	r.Post("/", h.Register)
	r.Get("/", h.Search)
	r.Route("/{clientID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Get("/notes", h.Notes)
		r.Post("/notes", h.AddNote)
		r.Get("/export", h.Export)
		r.Post("/archive", h.Archive)
		r.Post("/recompute", h.Recompute)
		if h.appointments != nil {
			r.Get("/appointments", h.appointments)
		}
	})
}

func (h *ClientsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var fields studio.ClientFields
	if err := decodeJSON(w, r, &fields); err != nil {
		writeError(w, h.logger, err)
		return
	}
	c, err := h.svc.Register(r.Context(), fields)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Search matches ?q= against name, email and phone.
// GET /api/v1/clients
func (h *ClientsHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.logger, studio.Invalid("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}
	list, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []studio.Client{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": list, "total": len(list)})
}

func (h *ClientsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "clientID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ClientsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "clientID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var patch studio.ClientPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}
	c, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ClientsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "clientID")
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

// Notes lists notes; ?internal=true includes internal ones.
func (h *ClientsHandler) Notes(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "clientID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	internal, _ := strconv.ParseBool(r.URL.Query().Get("internal"))
	notes, err := h.svc.Notes(r.Context(), id, internal)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if notes == nil {
		notes = []studio.ClientNote{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (h *ClientsHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "clientID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var in clients.NoteInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	note, err := h.svc.AddNote(r.Context(), id, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *ClientsHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "clientID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	exp, err := h.svc.Export(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

// Archive uploads the client's export to the configured bucket.
// POST /api/v1/clients/{clientID}/archive
func (h *ClientsHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "clientID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	key, err := h.svc.Archive(r.Context(), id)
	if errors.Is(err, clients.ErrArchiveDisabled) {
		jsonError(w, "archiving is not configured", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (h *ClientsHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "clientID")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	c, err := h.svc.Recompute(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
