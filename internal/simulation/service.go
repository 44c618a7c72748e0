package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/graftline/clinic-crm/internal/observability/metrics"
	"github.com/graftline/clinic-crm/internal/scheduling"
	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// ErrNoSourceImage is returned when a simulation request carries no photo.
var ErrNoSourceImage = errors.New("source image is required")

// Result is one completed simulation run.
type Result struct {
	PatientID string `json:"patient_id"`
	BeforeKey string `json:"before_key,omitempty"`
	AfterKey  string `json:"after_key,omitempty"`
	Image     []byte `json:"-"`
	MIMEType  string `json:"mime_type"`
}

// Service runs the simulation pipeline: archive the source photo, call the
// image model, archive the render.
type Service struct {
	generator ImageGenerator
	photos    *PhotoStore
	metrics   *metrics.SimulationMetrics
	clock     scheduling.Clock
	logger    *logging.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.SimulationMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithClock injects a clock.
func WithClock(clock scheduling.Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService creates a simulation service.
func NewService(generator ImageGenerator, photos *PhotoStore, logger *logging.Logger, opts ...ServiceOption) *Service {
	if generator == nil {
		panic("simulation: image generator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		generator: generator,
		photos:    photos,
		clock:     scheduling.SystemClock(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Simulate produces the "after" preview for a patient photo. Photo archival
// failures on the before shot abort the run; a failed after-archive still
// returns the render.
func (s *Service) Simulate(ctx context.Context, actor tenancy.Actor, patientID string, image []byte, mimeType, prompt string) (*Result, error) {
	if len(image) == 0 {
		return nil, ErrNoSourceImage
	}

	now := s.clock.Now()
	started := time.Now()

	beforeKey, err := s.photos.Save(ctx, actor.TenantID, patientID, VariantBefore, image, normalizeMIME(mimeType), now)
	if err != nil {
		s.metrics.ObserveRun("store_error", time.Since(started).Seconds())
		return nil, err
	}

	rendered, renderedMIME, err := s.generator.GenerateImage(ctx, prompt, image, mimeType)
	if err != nil {
		s.metrics.ObserveRun("model_error", time.Since(started).Seconds())
		return nil, fmt.Errorf("simulation: generate: %w", err)
	}

	afterKey, err := s.photos.Save(ctx, actor.TenantID, patientID, VariantAfter, rendered, renderedMIME, now)
	if err != nil {
		// The render exists; losing the archive copy is not fatal.
		s.logger.Error("after photo archive failed", "patient_id", patientID, "error", err)
		afterKey = ""
	}

	s.metrics.ObserveRun("ok", time.Since(started).Seconds())
	s.logger.Info("simulation complete",
		"tenant_id", actor.TenantID,
		"patient_id", patientID,
		"before_key", beforeKey,
		"after_key", afterKey,
	)
	return &Result{
		PatientID: patientID,
		BeforeKey: beforeKey,
		AfterKey:  afterKey,
		Image:     rendered,
		MIMEType:  renderedMIME,
	}, nil
}
