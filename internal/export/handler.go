package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/graftline/clinic-crm/internal/patients"
	"github.com/graftline/clinic-crm/internal/quotes"
	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// PatientGetter loads a patient for the acting tenant.
type PatientGetter interface {
	Get(ctx context.Context, actor tenancy.Actor, id string) (*patients.Patient, error)
}

// QuoteLookup loads quotes for the acting tenant.
type QuoteLookup interface {
	Get(ctx context.Context, actor tenancy.Actor, id string) (*quotes.Quote, error)
	ListByPatient(ctx context.Context, actor tenancy.Actor, patientID string) ([]*quotes.Quote, error)
}

// Handler serves PDF downloads.
type Handler struct {
	renderer *Renderer
	patients PatientGetter
	quotes   QuoteLookup
	logger   *logging.Logger
}

func NewHandler(renderer *Renderer, p PatientGetter, q QuoteLookup, logger *logging.Logger) *Handler {
	if renderer == nil {
		panic("export: renderer is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{renderer: renderer, patients: p, quotes: q, logger: logger}
}

// PatientSummary handles GET /patients/{patientID}/export/pdf.
func (h *Handler) PatientSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}
	patientID := chi.URLParam(r, "patientID")

	patient, err := h.patients.Get(r.Context(), actor, patientID)
	if err != nil {
		h.lookupError(w, err)
		return
	}
	quoteList, err := h.quotes.ListByPatient(r.Context(), actor, patientID)
	if err != nil {
		h.logger.Error("export: list quotes failed", "patient_id", patientID, "error", err)
		http.Error(w, "failed to assemble summary", http.StatusInternalServerError)
		return
	}

	h.servePDF(w, fmt.Sprintf("patient-%s.pdf", shortID(patientID)), func(w2 http.ResponseWriter) error {
		return h.renderer.PatientSummary(w2, patient, quoteList)
	})
}

// Quote handles GET /quotes/{quoteID}/pdf.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}
	quoteID := chi.URLParam(r, "quoteID")

	quote, err := h.quotes.Get(r.Context(), actor, quoteID)
	if err != nil {
		h.lookupError(w, err)
		return
	}
	patient, err := h.patients.Get(r.Context(), actor, quote.PatientID)
	if err != nil {
		h.lookupError(w, err)
		return
	}

	h.servePDF(w, fmt.Sprintf("quote-%s.pdf", shortID(quoteID)), func(w2 http.ResponseWriter) error {
		return h.renderer.Quote(w2, patient, quote)
	})
}

func (h *Handler) servePDF(w http.ResponseWriter, filename string, render func(http.ResponseWriter) error) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := render(w); err != nil {
		// Headers are already out; all we can do is log.
		h.logger.Error("export: pdf render failed", "filename", filename, "error", err)
	}
}

func (h *Handler) lookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, patients.ErrPatientNotFound), errors.Is(err, quotes.ErrQuoteNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		h.logger.Error("export: lookup failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
