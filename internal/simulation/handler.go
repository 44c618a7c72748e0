package simulation

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// Handler handles HTTP requests for image simulations.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a new simulation handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

type simulateRequest struct {
	// Image is base64, with or without a data-URL prefix.
	Image    string `json:"image"`
	MIMEType string `json:"mime_type"`
	Prompt   string `json:"prompt"`
}

type simulateResponse struct {
	PatientID string `json:"patient_id"`
	BeforeKey string `json:"before_key,omitempty"`
	AfterKey  string `json:"after_key,omitempty"`
	Image     string `json:"image"`
	MIMEType  string `json:"mime_type"`
}

// Simulate handles POST /patients/{patientID}/simulation.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	actor, ok := tenancy.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "missing tenant context", http.StatusBadRequest)
		return
	}

	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	data, mimeType, err := decodeImage(req.Image, req.MIMEType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.svc.Simulate(r.Context(), actor, chi.URLParam(r, "patientID"), data, mimeType, req.Prompt)
	if err != nil {
		if errors.Is(err, ErrNoSourceImage) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("simulation request failed", "error", err)
		http.Error(w, "simulation failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(simulateResponse{
		PatientID: result.PatientID,
		BeforeKey: result.BeforeKey,
		AfterKey:  result.AfterKey,
		Image:     base64.StdEncoding.EncodeToString(result.Image),
		MIMEType:  result.MIMEType,
	})
}

// decodeImage accepts raw base64 or a data URL and returns the bytes plus the
// effective mime type.
func decodeImage(encoded, mimeType string) ([]byte, string, error) {
	if strings.TrimSpace(encoded) == "" {
		return nil, "", ErrNoSourceImage
	}
	if strings.HasPrefix(encoded, "data:") {
		header, rest, ok := strings.Cut(encoded, ",")
		if !ok {
			return nil, "", errors.New("invalid image data url")
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
		encoded = rest
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", errors.New("image must be base64 encoded")
	}
	return data, normalizeMIME(mimeType), nil
}
