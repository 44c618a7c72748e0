package quotes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// Handler handles HTTP requests for quotes.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a new quotes handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// CreateQuote handles POST /quotes.
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	var req CreateQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	q, err := h.svc.Create(r.Context(), actor, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// GetQuote handles GET /quotes/{quoteID}.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	q, err := h.svc.Get(r.Context(), actor, chi.URLParam(r, "quoteID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ListPatientQuotes handles GET /patients/{patientID}/quotes.
func (h *Handler) ListPatientQuotes(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	list, err := h.svc.ListByPatient(r.Context(), actor, chi.URLParam(r, "patientID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": list, "count": len(list)})
}

type transitionRequest struct {
	Status QuoteStatus `json:"status"`
}

// TransitionQuote handles PATCH /quotes/{quoteID}/status.
func (h *Handler) TransitionQuote(w http.ResponseWriter, r *http.Request) {
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

	q, err := h.svc.Transition(r.Context(), actor, chi.URLParam(r, "quoteID"), req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// DeleteQuote handles DELETE /quotes/{quoteID}.
func (h *Handler) DeleteQuote(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), actor, chi.URLParam(r, "quoteID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrQuoteNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrIllegalStatusChange):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrNoLineItems), errors.Is(err, ErrInvalidLineItem), errors.Is(err, ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("quotes request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
