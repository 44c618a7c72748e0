package patients

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/graftline/clinic-crm/internal/scheduling"
	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// Handler handles HTTP requests for patients.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a new patients handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreatePatient handles POST /patients.
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.svc.Create(r.Context(), actor, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// ListPatientsResponse is the response for listing patients.
type ListPatientsResponse struct {
	Patients []*Patient `json:"patients"`
	Count    int        `json:"count"`
}

// ListPatients handles GET /patients?q=...&status=...
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	filter := ListFilter{
		Search: r.URL.Query().Get("q"),
		Status: PatientStatus(r.URL.Query().Get("status")),
	}
	if filter.Status != "" && !validStatuses[filter.Status] {
		http.Error(w, "invalid status filter", http.StatusBadRequest)
		return
	}

	list, err := h.svc.List(r.Context(), actor, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListPatientsResponse{Patients: list, Count: len(list)})
}

// GetPatient handles GET /patients/{patientID}.
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	p, err := h.svc.Get(r.Context(), actor, chi.URLParam(r, "patientID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePatient handles PATCH /patients/{patientID}.
func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	var req UpdatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.svc.Update(r.Context(), actor, chi.URLParam(r, "patientID"), &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeletePatient handles DELETE /patients/{patientID}.
func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), actor, chi.URLParam(r, "patientID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MilestonesResponse pairs the saved patient with the calendar sync outcome.
type MilestonesResponse struct {
	Patient *Patient               `json:"patient"`
	Sync    *scheduling.SyncResult `json:"sync"`
}

// SaveMilestones handles PUT /patients/{patientID}/milestones.
func (h *Handler) SaveMilestones(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	var m scheduling.Milestones
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, result, err := h.svc.SaveMilestones(r.Context(), actor, chi.URLParam(r, "patientID"), m)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Partial sync failures still return the saved patient; the sync block
	// carries the per-slot errors.
	status := http.StatusOK
	if result.Failed() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, MilestonesResponse{Patient: p, Sync: result})
}

// EnsureMilestones handles POST /patients/{patientID}/milestones/ensure.
func (h *Handler) EnsureMilestones(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	p, err := h.svc.EnsureMilestones(r.Context(), actor, chi.URLParam(r, "patientID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPatientNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrMissingContact), errors.Is(err, ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("patients request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
