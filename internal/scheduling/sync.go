package scheduling

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/graftline/clinic-crm/internal/observability/metrics"
	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// MilestoneKey identifies one of the four per-patient treatment dates.
type MilestoneKey string

const (
	MilestoneConsult  MilestoneKey = "consultDate"
	MilestoneProposal MilestoneKey = "proposalSentDate"
	MilestoneSurgery  MilestoneKey = "surgeryDate"
	MilestoneFollowUp MilestoneKey = "followUpDate"
)

// Milestones holds the four optional key dates of a patient's treatment
// journey. Each is either a calendar date or absent.
type Milestones struct {
	ConsultDate      *time.Time `json:"consult_date,omitempty"`
	ProposalSentDate *time.Time `json:"proposal_sent_date,omitempty"`
	SurgeryDate      *time.Time `json:"surgery_date,omitempty"`
	FollowUpDate     *time.Time `json:"follow_up_date,omitempty"`
}

// Empty reports whether no milestone date is set.
func (m Milestones) Empty() bool {
	return m.ConsultDate == nil && m.ProposalSentDate == nil && m.SurgeryDate == nil && m.FollowUpDate == nil
}

func (m Milestones) date(key MilestoneKey) *time.Time {
	switch key {
	case MilestoneConsult:
		return m.ConsultDate
	case MilestoneProposal:
		return m.ProposalSentDate
	case MilestoneSurgery:
		return m.SurgeryDate
	case MilestoneFollowUp:
		return m.FollowUpDate
	}
	return nil
}

// milestoneSlot fixes the calendar shape of each derived appointment.
type milestoneSlot struct {
	Key             MilestoneKey
	Label           string
	Type            AppointmentType
	IDSuffix        string
	Hour            int
	DurationMinutes int
}

var milestoneSlots = []milestoneSlot{
	{Key: MilestoneConsult, Label: "Consultation", Type: TypeConsult, IDSuffix: "consult", Hour: 9, DurationMinutes: 60},
	{Key: MilestoneProposal, Label: "Proposal Sent", Type: TypeProposal, IDSuffix: "proposal", Hour: 10, DurationMinutes: 30},
	{Key: MilestoneSurgery, Label: "Surgery", Type: TypeSurgery, IDSuffix: "surgery", Hour: 11, DurationMinutes: 240},
	{Key: MilestoneFollowUp, Label: "Follow-up", Type: TypeFollowUp, IDSuffix: "followup", Hour: 15, DurationMinutes: 45},
}

// DerivedAppointmentID returns the deterministic id of the appointment
// representing a milestone, so repeated synchronization upserts instead of
// duplicating.
func DerivedAppointmentID(patientID string, key MilestoneKey) string {
	for _, slot := range milestoneSlots {
		if slot.Key == key {
			return patientID + "-" + slot.IDSuffix
		}
	}
	return ""
}

// SyncInput names the patient whose milestones are being reconciled.
type SyncInput struct {
	PatientID   string
	PatientName string
	DoctorID    string
	Milestones  Milestones
}

// SyncResult summarizes one synchronizer run. Per-slot failures are isolated:
// one slot failing never blocks the other three.
type SyncResult struct {
	Upserted []string                `json:"upserted,omitempty"`
	Deleted  []string                `json:"deleted,omitempty"`
	Errors   map[MilestoneKey]string `json:"errors,omitempty"`
}

// Failed reports whether any slot failed.
func (r SyncResult) Failed() bool { return len(r.Errors) > 0 }

// Synchronizer maintains a deterministic 1:1 mapping from each milestone
// date to a calendar appointment. It writes only to the derived id space
// (patientID + suffix) and never runs conflict detection: milestone-derived
// appointments carry clinical scheduling authority.
type Synchronizer struct {
	store       Store
	clock       Clock
	logger      *logging.Logger
	metrics     *metrics.SchedulingMetrics
	invalidator CacheInvalidator
}

// SyncOption customizes a Synchronizer.
type SyncOption func(*Synchronizer)

// WithSyncClock injects a clock.
func WithSyncClock(clock Clock) SyncOption {
	return func(s *Synchronizer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSyncMetrics attaches Prometheus instrumentation.
func WithSyncMetrics(m *metrics.SchedulingMetrics) SyncOption {
	return func(s *Synchronizer) { s.metrics = m }
}

// WithSyncCacheInvalidator attaches a derived-view cache.
func WithSyncCacheInvalidator(inv CacheInvalidator) SyncOption {
	return func(s *Synchronizer) { s.invalidator = inv }
}

// NewSynchronizer creates a milestone synchronizer.
func NewSynchronizer(store Store, logger *logging.Logger, opts ...SyncOption) *Synchronizer {
	if store == nil {
		panic("scheduling: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Synchronizer{
		store:  store,
		clock:  SystemClock(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync reconciles the four derived appointments with the given milestones:
// present dates are upserted, absent dates delete their derived appointment.
// Re-running with unchanged milestones is idempotent.
func (s *Synchronizer) Sync(ctx context.Context, actor tenancy.Actor, input SyncInput) (SyncResult, error) {
	ctx, span := bookingTracer.Start(ctx, "scheduling.MilestoneSync")
	defer span.End()

	result := SyncResult{}
	if !actor.Valid() {
		return result, &ValidationError{Field: "tenant_id", Reason: "tenant id is required"}
	}
	if input.PatientID == "" {
		return result, &ValidationError{Field: "patient_id", Reason: "patient id is required"}
	}
	span.SetAttributes(attribute.String("patient_id", input.PatientID))

	now := s.clock.Now()
	mutated := false

	for _, slot := range milestoneSlots {
		id := input.PatientID + "-" + slot.IDSuffix
		date := input.Milestones.date(slot.Key)

		if date == nil {
			err := s.store.Delete(ctx, actor.TenantID, id)
			switch {
			case err == nil:
				result.Deleted = append(result.Deleted, id)
				s.metrics.ObserveSyncOp("delete", "ok")
				mutated = true
			case errors.Is(err, ErrNotFound):
				// Nothing derived for this slot; nothing to remove.
			default:
				s.recordSlotError(&result, slot.Key, fmt.Errorf("delete %s: %w", id, err))
			}
			continue
		}

		start := time.Date(date.Year(), date.Month(), date.Day(), slot.Hour, 0, 0, 0, time.UTC)
		end := start.Add(time.Duration(slot.DurationMinutes) * time.Minute)
		status := StatusConfirmed
		if end.Before(now) {
			status = StatusCompleted
		}

		appt := Appointment{
			ID:             id,
			TenantID:       actor.TenantID,
			PatientID:      input.PatientID,
			DoctorID:       input.DoctorID,
			Type:           slot.Type,
			Status:         status,
			Start:          start,
			End:            end,
			Notes:          slot.Label,
			TeamIDs:        []string{},
			AutoGenerated:  true,
			Source:         SourceMilestone,
			MilestoneType:  string(slot.Key),
			MilestoneLabel: slot.Label,
			CreatedAt:      start,
			UpdatedAt:      now,
		}

		if _, err := s.store.Upsert(ctx, appt); err != nil {
			s.recordSlotError(&result, slot.Key, fmt.Errorf("upsert %s: %w", id, err))
			continue
		}
		result.Upserted = append(result.Upserted, id)
		s.metrics.ObserveSyncOp("upsert", "ok")
		mutated = true
	}

	if mutated {
		s.invalidate(ctx, actor.TenantID)
	}
	s.logger.Info("milestone sync complete",
		"tenant_id", actor.TenantID,
		"patient_id", input.PatientID,
		"upserted", len(result.Upserted),
		"deleted", len(result.Deleted),
		"failed", len(result.Errors),
	)
	return result, nil
}

func (s *Synchronizer) recordSlotError(result *SyncResult, key MilestoneKey, err error) {
	if result.Errors == nil {
		result.Errors = make(map[MilestoneKey]string)
	}
	result.Errors[key] = err.Error()
	s.metrics.ObserveSyncOp(opForError(err), "error")
	s.logger.Error("milestone sync slot failed", "milestone", key, "error", err)
}

func opForError(err error) string {
	if err == nil {
		return "unknown"
	}
	if strings.HasPrefix(err.Error(), "delete") {
		return "delete"
	}
	return "upsert"
}

func (s *Synchronizer) invalidate(ctx context.Context, tenantID string) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.InvalidateTenant(ctx, tenantID)
}

// placeholderEpoch anchors generated demo milestones.
var placeholderEpoch = time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)

// GeneratePlaceholderMilestones derives demo milestone dates from a seeded
// pseudo-random function keyed by patient id. Deterministic: the same
// patient id always yields the same dates. Callers must only apply this when
// the patient has no milestone data at all.
func GeneratePlaceholderMilestones(patientID string) Milestones {
	base := seededInt(patientID+"-base", 0, 60)
	consult := placeholderEpoch.AddDate(0, 0, base)
	proposal := placeholderEpoch.AddDate(0, 0, base+5+seededInt(patientID+"-proposal", 0, 5))
	surgery := placeholderEpoch.AddDate(0, 0, base+25+seededInt(patientID+"-surgery", 0, 15))
	followUp := placeholderEpoch.AddDate(0, 0, base+55+seededInt(patientID+"-follow", 0, 15))

	return Milestones{
		ConsultDate:      &consult,
		ProposalSentDate: &proposal,
		SurgeryDate:      &surgery,
		FollowUpDate:     &followUp,
	}
}

func seededInt(seed string, min, max int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	return min + rng.Intn(max-min+1)
}
