package doctors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// Handler handles HTTP requests for doctors.
type Handler struct {
	repo   *PostgresRepository
	logger *logging.Logger
}

// NewHandler creates a new doctors handler.
func NewHandler(repo *PostgresRepository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// CreateDoctor handles POST /doctors.
func (h *Handler) CreateDoctor(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	var req CreateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	d, err := h.repo.Create(r.Context(), actor.TenantID, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ListDoctors handles GET /doctors?active=true.
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	list, err := h.repo.List(r.Context(), actor.TenantID, activeOnly)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": list, "count": len(list)})
}

// GetDoctor handles GET /doctors/{doctorID}.
func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	d, err := h.repo.GetByID(r.Context(), actor.TenantID, chi.URLParam(r, "doctorID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// SetDoctorActive handles PATCH /doctors/{doctorID}/active.
func (h *Handler) SetDoctorActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.repo.SetActive(r.Context(), actor.TenantID, chi.URLParam(r, "doctorID"), req.Active); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDoctorNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidName):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("doctors request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
