package calendar

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// Handler handles HTTP requests for calendar views.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a new calendar handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// GetCalendar handles GET /calendar?view=week&date=2024-06-01&doctor_id=...
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	view := View(r.URL.Query().Get("view"))
	if view == "" {
		view = ViewWeek
	}

	anchor := time.Now().UTC()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		anchor = parsed
	}

	grid, err := h.svc.Get(r.Context(), actor, view, anchor, r.URL.Query().Get("doctor_id"))
	if err != nil {
		if errors.Is(err, ErrInvalidView) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("calendar request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(grid)
}
