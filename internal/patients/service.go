package patients

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/graftline/clinic-crm/internal/scheduling"
	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// Service wraps the repository with the milestone synchronization side
// effect: whenever a patient's milestone dates change, the scheduling
// synchronizer reconciles the derived calendar appointments.
type Service struct {
	repo   Repository
	sync   *scheduling.Synchronizer
	clock  scheduling.Clock
	logger *logging.Logger
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

// NewService creates a patient service.
func NewService(repo Repository, sync *scheduling.Synchronizer, logger *logging.Logger, opts ...ServiceOption) *Service {
	if repo == nil {
		panic("patients: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{repo: repo, sync: sync, clock: scheduling.SystemClock(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new patient.
func (s *Service) Create(ctx context.Context, actor tenancy.Actor, req *CreatePatientRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	p := &Patient{
		ID:              uuid.NewString(),
		TenantID:        actor.TenantID,
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		DateOfBirth:     req.DateOfBirth,
		Status:          req.Status,
		PrimaryDoctorID: req.PrimaryDoctorID,
		MedicalNotes:    req.MedicalNotes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("patient created", "tenant_id", p.TenantID, "patient_id", p.ID)
	return p, nil
}

// Get fetches one patient.
func (s *Service) Get(ctx context.Context, actor tenancy.Actor, id string) (*Patient, error) {
	return s.repo.GetByID(ctx, actor.TenantID, id)
}

// ContactInfo resolves the patient's display name and email for outbound
// notifications.
func (s *Service) ContactInfo(ctx context.Context, actor tenancy.Actor, id string) (name, email string, err error) {
	p, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return "", "", err
	}
	return p.Name, p.Email, nil
}

// List returns the tenant's patients. DOCTOR-role callers only see the
// patients whose primary doctor they are.
func (s *Service) List(ctx context.Context, actor tenancy.Actor, filter ListFilter) ([]*Patient, error) {
	if actor.Role == tenancy.RoleDoctor {
		filter.DoctorID = actor.UserID
	}
	return s.repo.List(ctx, actor.TenantID, filter)
}

// Update applies a partial update. Milestones are untouched here; use
// SaveMilestones so the calendar stays in sync.
func (s *Service) Update(ctx context.Context, actor tenancy.Actor, id string, req *UpdatePatientRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	req.Apply(p)
	p.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the patient and the derived calendar appointments tied to
// their milestones.
func (s *Service) Delete(ctx context.Context, actor tenancy.Actor, id string) error {
	p, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, actor.TenantID, id); err != nil {
		return err
	}
	if s.sync != nil {
		// Clearing every milestone deletes the derived appointments.
		_, err := s.sync.Sync(ctx, actor, scheduling.SyncInput{
			PatientID:   p.ID,
			PatientName: p.Name,
			DoctorID:    p.PrimaryDoctorID,
		})
		if err != nil {
			s.logger.Error("milestone cleanup after delete failed", "patient_id", p.ID, "error", err)
		}
	}
	return nil
}

// SaveMilestones persists new milestone dates and reconciles the derived
// calendar appointments in the same call.
func (s *Service) SaveMilestones(ctx context.Context, actor tenancy.Actor, id string, m scheduling.Milestones) (*Patient, *scheduling.SyncResult, error) {
	p, err := s.repo.UpdateMilestones(ctx, actor.TenantID, id, m)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.syncMilestones(ctx, actor, p)
	if err != nil {
		return nil, nil, err
	}
	return p, result, nil
}

// EnsureMilestones backfills generated milestone dates for a patient with no
// milestone data at all, then reconciles the calendar. Patients that already
// have any milestone are returned untouched.
func (s *Service) EnsureMilestones(ctx context.Context, actor tenancy.Actor, id string) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if !p.Milestones.Empty() {
		return p, nil
	}

	generated := scheduling.GeneratePlaceholderMilestones(p.ID)
	p, err = s.repo.UpdateMilestones(ctx, actor.TenantID, id, generated)
	if err != nil {
		return nil, err
	}
	if _, err := s.syncMilestones(ctx, actor, p); err != nil {
		return nil, err
	}
	s.logger.Info("milestones backfilled", "tenant_id", p.TenantID, "patient_id", p.ID)
	return p, nil
}

// StampProposalSent records today's date as the proposal milestone, used when
// a quote is marked sent. No-op when the milestone is already set.
func (s *Service) StampProposalSent(ctx context.Context, actor tenancy.Actor, id string) error {
	p, err := s.repo.GetByID(ctx, actor.TenantID, id)
	if err != nil {
		return err
	}
	if p.Milestones.ProposalSentDate != nil {
		return nil
	}
	today := s.clock.Now().Truncate(24 * time.Hour)
	m := p.Milestones
	m.ProposalSentDate = &today
	if _, _, err := s.SaveMilestones(ctx, actor, id, m); err != nil {
		return fmt.Errorf("patients: stamp proposal milestone: %w", err)
	}
	return nil
}

func (s *Service) syncMilestones(ctx context.Context, actor tenancy.Actor, p *Patient) (*scheduling.SyncResult, error) {
	if s.sync == nil {
		return &scheduling.SyncResult{}, nil
	}
	result, err := s.sync.Sync(ctx, actor, scheduling.SyncInput{
		PatientID:   p.ID,
		PatientName: p.Name,
		DoctorID:    p.PrimaryDoctorID,
		Milestones:  p.Milestones,
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
