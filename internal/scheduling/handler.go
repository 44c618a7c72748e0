package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// Handler exposes the scheduling core over HTTP.
type Handler struct {
	coordinator *Coordinator
	store       Store
	logger      *logging.Logger
}

// NewHandler creates a scheduling handler.
func NewHandler(coordinator *Coordinator, store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{coordinator: coordinator, store: store, logger: logger}
}

// CreateAppointment handles POST /appointments.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := h.coordinator.Book(r.Context(), actor, req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, appt)
}

// ListAppointments handles GET /appointments?from=...&to=...
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	from, to, err := parseWindow(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var appts []Appointment
	if doctorID := r.URL.Query().Get("doctor_id"); doctorID != "" {
		appts, err = h.store.ListByDoctorAndWindow(r.Context(), actor.TenantID, doctorID, from, to)
	} else {
		appts, err = h.store.ListByTenant(r.Context(), actor.TenantID, from, to)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": appts,
		"count":        len(appts),
	})
}

// GetAppointment handles GET /appointments/{appointmentID}.
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	appt, err := h.store.Get(r.Context(), actor.TenantID, chi.URLParam(r, "appointmentID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type transitionRequest struct {
	Status AppointmentStatus `json:"status"`
}

// TransitionAppointment handles PATCH /appointments/{appointmentID}/status.
func (h *Handler) TransitionAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	appt, err := h.coordinator.Transition(r.Context(), actor, chi.URLParam(r, "appointmentID"), req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// DeleteAppointment handles DELETE /appointments/{appointmentID}.
func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	if err := h.coordinator.Delete(r.Context(), actor, chi.URLParam(r, "appointmentID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	var transitionErr *TransitionError
	switch {
	case errors.Is(err, ErrConflict):
		// Expected, recoverable outcome: the caller picks another slot.
		writeJSON(w, http.StatusConflict, map[string]string{"error": "time slot conflict"})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "appointment not found"})
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationErr.Error()})
	case errors.As(err, &transitionErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": transitionErr.Error()})
	case IsRetryable(err):
		h.logger.Error("scheduling store failure", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "temporary failure, retry shortly"})
	default:
		h.logger.Error("scheduling request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	const layout = time.RFC3339
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	now := time.Now().UTC()
	from := now.AddDate(0, -1, 0)
	to := now.AddDate(0, 1, 0)

	if fromStr != "" {
		parsed, err := time.Parse(layout, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid from timestamp")
		}
		from = parsed
	}
	if toStr != "" {
		parsed, err := time.Parse(layout, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid to timestamp")
		}
		to = parsed
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errors.New("to must be after from")
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
