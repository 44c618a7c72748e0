package quotes

import (
	"context"

	"github.com/google/uuid"

	"github.com/graftline/clinic-crm/internal/scheduling"
	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// Repository abstracts quote persistence.
type Repository interface {
	Create(ctx context.Context, q *Quote) error
	GetByID(ctx context.Context, tenantID, id string) (*Quote, error)
	ListByPatient(ctx context.Context, tenantID, patientID string) ([]*Quote, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status QuoteStatus) error
	Delete(ctx context.Context, tenantID, id string) error
}

// MilestoneStamper records the proposal-sent milestone on a patient. The
// patients service satisfies this.
type MilestoneStamper interface {
	StampProposalSent(ctx context.Context, actor tenancy.Actor, patientID string) error
}

// Notifier emails the patient when a proposal goes out. The notify service
// satisfies this.
type Notifier interface {
	SendQuoteNotice(ctx context.Context, to, toName, quoteTitle string, totalCents int64, currency string) error
}

// Service applies the quote lifecycle and its patient-funnel side effects.
type Service struct {
	repo      Repository
	stamper   MilestoneStamper
	notifier  Notifier
	directory scheduling.PatientDirectory
	clock     scheduling.Clock
	logger    *logging.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithServiceClock injects a clock.
func WithServiceClock(clock scheduling.Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMilestoneStamper wires the patient milestone side effect of sending a
// quote.
func WithMilestoneStamper(st MilestoneStamper) ServiceOption {
	return func(s *Service) { s.stamper = st }
}

// WithNotifier wires the patient email sent alongside a proposal.
func WithNotifier(n Notifier, dir scheduling.PatientDirectory) ServiceOption {
	return func(s *Service) {
		s.notifier = n
		s.directory = dir
	}
}

// NewService creates a quote service.
func NewService(repo Repository, logger *logging.Logger, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("quotes: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, clock: scheduling.SystemClock(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create builds a draft quote with computed totals.
func (s *Service) Create(ctx context.Context, actor tenancy.Actor, req *CreateQuoteRequest) (*Quote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	q := &Quote{
		ID:            uuid.NewString(),
		TenantID:      actor.TenantID,
		PatientID:     req.PatientID,
		Title:         req.Title,
		Currency:      req.Currency,
		Status:        StatusDraft,
		LineItems:     req.LineItems,
		DiscountCents: req.DiscountCents,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	q.Recalculate()
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, err
	}
	s.logger.Info("quote created",
		"tenant_id", q.TenantID,
		"quote_id", q.ID,
		"patient_id", q.PatientID,
		"total_cents", q.TotalCents,
	)
	return q, nil
}

// Get fetches one quote.
func (s *Service) Get(ctx context.Context, actor tenancy.Actor, id string) (*Quote, error) {
	return s.repo.GetByID(ctx, actor.TenantID, id)
}

// ListByPatient returns the patient's quotes, newest first.
func (s *Service) ListByPatient(ctx context.Context, actor tenancy.Actor, patientID string) ([]*Quote, error) {
	return s.repo.ListByPatient(ctx, actor.TenantID, patientID)
}

// Transition moves the quote through its lifecycle. Sending a quote stamps
// the patient's proposal milestone, which in turn materializes the proposal
// appointment on the calendar.
func (s *Service) Transition(ctx context.Context, actor tenancy.Actor, id string, to QuoteStatus) (*Quote, error) {
	if !validStatuses[to] {
		return nil, ErrInvalidStatus
	}
	q, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(q.Status, to) {
		return nil, ErrIllegalStatusChange
	}
	if err := s.repo.UpdateStatus(ctx, actor.TenantID, id, to); err != nil {
		return nil, err
	}
	q.Status = to
	q.UpdatedAt = s.clock.Now()

	if to == StatusSent {
		if s.stamper != nil {
			if err := s.stamper.StampProposalSent(ctx, actor, q.PatientID); err != nil {
				// The quote is already sent; the milestone stamp is best effort.
				s.logger.Error("proposal milestone stamp failed",
					"quote_id", q.ID, "patient_id", q.PatientID, "error", err)
			}
		}
		s.notifySent(ctx, actor, q)
	}

	s.logger.Info("quote status changed", "quote_id", q.ID, "to", to)
	return q, nil
}

func (s *Service) notifySent(ctx context.Context, actor tenancy.Actor, q *Quote) {
	if s.notifier == nil || s.directory == nil {
		return
	}
	name, email, err := s.directory.ContactInfo(ctx, actor, q.PatientID)
	if err != nil {
		s.logger.Warn("contact lookup for quote notice failed",
			"patient_id", q.PatientID, "error", err)
		return
	}
	if err := s.notifier.SendQuoteNotice(ctx, email, name, q.Title, q.TotalCents, q.Currency); err != nil {
		s.logger.Warn("quote notice failed", "quote_id", q.ID, "error", err)
	}
}

// Delete removes a quote.
func (s *Service) Delete(ctx context.Context, actor tenancy.Actor, id string) error {
	return s.repo.Delete(ctx, actor.TenantID, id)
}
