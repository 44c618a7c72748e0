package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/graftline/clinic-crm/internal/observability/metrics"
	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

var bookingTracer = otel.Tracer("clinic/scheduling")

// BookingRequest carries the caller-supplied fields for a new booking.
type BookingRequest struct {
	PatientID string          `json:"patient_id"`
	DoctorID  string          `json:"doctor_id"`
	Type      AppointmentType `json:"type"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	RoomID    string          `json:"room_id,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	TeamIDs   []string        `json:"team_ids,omitempty"`

	// Hold requests a provisional 24h reservation instead of a confirmed
	// booking.
	Hold bool `json:"hold"`
}

// PatientDirectory resolves patient contact details for outbound emails.
type PatientDirectory interface {
	ContactInfo(ctx context.Context, actor tenancy.Actor, patientID string) (name, email string, err error)
}

// BookingNotifier delivers patient-facing booking emails. Delivery is
// best-effort: failures never unwind a committed booking.
type BookingNotifier interface {
	SendBookingConfirmation(ctx context.Context, to, toName string, appt Appointment) error
	SendHoldReminder(ctx context.Context, to, toName string, appt Appointment) error
}

// Coordinator orchestrates "read existing bookings, check conflicts, write"
// as a single atomic unit against the store. Two concurrent coordinators
// targeting overlapping slots for the same doctor cannot both succeed.
type Coordinator struct {
	store        Store
	clock        Clock
	holds        HoldPolicy
	logger       *logging.Logger
	metrics      *metrics.SchedulingMetrics
	invalidator  CacheInvalidator
	notifier     BookingNotifier
	directory    PatientDirectory
	windowMargin time.Duration
	minDuration  time.Duration
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithClock injects a clock.
func WithClock(clock Clock) CoordinatorOption {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithHoldPolicy overrides the default 24h hold TTL.
func WithHoldPolicy(p HoldPolicy) CoordinatorOption {
	return func(c *Coordinator) { c.holds = p }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.SchedulingMetrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithCacheInvalidator attaches a derived-view cache to invalidate on writes.
func WithCacheInvalidator(inv CacheInvalidator) CoordinatorOption {
	return func(c *Coordinator) { c.invalidator = inv }
}

// WithBookingNotifier wires patient confirmation emails into the booking
// path. Both the notifier and the directory are required.
func WithBookingNotifier(n BookingNotifier, dir PatientDirectory) CoordinatorOption {
	return func(c *Coordinator) {
		c.notifier = n
		c.directory = dir
	}
}

// WithWindowMargin widens the conflict query window beyond the candidate's
// own interval. The window always covers at least [start-margin, end+margin)
// so long appointments are never under-queried.
func WithWindowMargin(margin time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if margin > 0 {
			c.windowMargin = margin
		}
	}
}

// WithMinDuration sets the minimum accepted appointment duration.
func WithMinDuration(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.minDuration = d }
}

// NewCoordinator creates a booking coordinator.
func NewCoordinator(store Store, logger *logging.Logger, opts ...CoordinatorOption) *Coordinator {
	if store == nil {
		panic("scheduling: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Coordinator{
		store:        store,
		clock:        SystemClock(),
		holds:        NewHoldPolicy(DefaultHoldTTL),
		logger:       logger,
		windowMargin: 24 * time.Hour,
		minDuration:  5 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Book atomically creates a new appointment after proving no conflict exists.
// Returns ErrConflict when the slot is taken, a *ValidationError for
// malformed input, and a *StoreError for transient store failures.
func (c *Coordinator) Book(ctx context.Context, actor tenancy.Actor, req BookingRequest) (Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "scheduling.Book")
	defer span.End()

	if !actor.Valid() {
		return Appointment{}, &ValidationError{Field: "tenant_id", Reason: "tenant id is required"}
	}

	now := c.clock.Now()
	appt := Appointment{
		ID:        uuid.NewString(),
		TenantID:  actor.TenantID,
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Type:      req.Type,
		Status:    StatusConfirmed,
		Start:     req.Start.UTC(),
		End:       req.End.UTC(),
		RoomID:    req.RoomID,
		Notes:     req.Notes,
		TeamIDs:   req.TeamIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Hold {
		appt.Status = StatusHold
		expires := c.holds.ExpiresAt(now)
		appt.HoldExpiresAt = &expires
	}

	if err := appt.Validate(c.minDuration); err != nil {
		c.metrics.ObserveBooking(string(appt.Status), "invalid")
		return Appointment{}, err
	}

	span.SetAttributes(
		attribute.String("doctor_id", appt.DoctorID),
		attribute.String("status", string(appt.Status)),
	)

	windowStart := appt.Start.Add(-c.windowMargin)
	windowEnd := appt.End.Add(c.windowMargin)

	started := time.Now()
	var created Appointment
	err := c.store.RunAtomic(ctx, appt.TenantID, appt.DoctorID, func(ctx context.Context, tx Tx) error {
		existing, err := tx.ListByDoctorAndWindow(ctx, appt.TenantID, appt.DoctorID, windowStart, windowEnd)
		if err != nil {
			return err
		}
		if HasConflict(appt, existing, now) {
			return ErrConflict
		}
		created, err = tx.Insert(ctx, appt)
		return err
	})
	c.metrics.ObserveBookingLatency(time.Since(started).Seconds())

	if err != nil {
		if errors.Is(err, ErrConflict) {
			c.metrics.ObserveBooking(string(appt.Status), "conflict")
			c.metrics.ObserveConflict()
			c.logger.Info("booking rejected: slot conflict",
				"tenant_id", appt.TenantID,
				"doctor_id", appt.DoctorID,
				"start", appt.Start,
			)
			return Appointment{}, ErrConflict
		}
		c.metrics.ObserveBooking(string(appt.Status), "error")
		return Appointment{}, fmt.Errorf("scheduling: book: %w", err)
	}

	c.metrics.ObserveBooking(string(appt.Status), "created")
	c.logger.Info("appointment booked",
		"tenant_id", created.TenantID,
		"appointment_id", created.ID,
		"doctor_id", created.DoctorID,
		"status", created.Status,
	)
	c.invalidate(ctx, created.TenantID)
	c.notifyBooked(ctx, actor, created)
	return created, nil
}

// Transition applies an explicit status change (confirm, cancel, no-show,
// complete), enforcing the hold lifecycle table.
func (c *Coordinator) Transition(ctx context.Context, actor tenancy.Actor, id string, to AppointmentStatus) (Appointment, error) {
	if !actor.Valid() {
		return Appointment{}, &ValidationError{Field: "tenant_id", Reason: "tenant id is required"}
	}
	if !validStatuses[to] {
		return Appointment{}, &ValidationError{Field: "status", Reason: "unknown appointment status"}
	}

	appt, err := c.store.Get(ctx, actor.TenantID, id)
	if err != nil {
		return Appointment{}, err
	}

	now := c.clock.Now()
	from := appt.Status
	// An expired hold behaves as cancelled for lifecycle purposes.
	if c.holds.Expired(appt, now) {
		from = StatusCancelled
	}
	if !CanTransition(from, to) {
		return Appointment{}, &TransitionError{From: from, To: to}
	}

	appt.Status = to
	appt.UpdatedAt = now
	if to != StatusHold {
		appt.HoldExpiresAt = nil
	}

	updated, err := c.store.Upsert(ctx, appt)
	if err != nil {
		return Appointment{}, fmt.Errorf("scheduling: transition: %w", err)
	}
	c.logger.Info("appointment status changed",
		"tenant_id", updated.TenantID,
		"appointment_id", updated.ID,
		"from", from,
		"to", to,
	)
	c.invalidate(ctx, updated.TenantID)
	if from == StatusHold && to == StatusConfirmed {
		c.notifyBooked(ctx, actor, updated)
	}
	return updated, nil
}

// Delete removes an appointment outright.
func (c *Coordinator) Delete(ctx context.Context, actor tenancy.Actor, id string) error {
	if !actor.Valid() {
		return &ValidationError{Field: "tenant_id", Reason: "tenant id is required"}
	}
	if err := c.store.Delete(ctx, actor.TenantID, id); err != nil {
		return err
	}
	c.invalidate(ctx, actor.TenantID)
	return nil
}

func (c *Coordinator) notifyBooked(ctx context.Context, actor tenancy.Actor, appt Appointment) {
	if c.notifier == nil || c.directory == nil {
		return
	}
	name, email, err := c.directory.ContactInfo(ctx, actor, appt.PatientID)
	if err != nil {
		c.logger.Warn("contact lookup for booking notification failed",
			"patient_id", appt.PatientID,
			"error", err,
		)
		return
	}
	if appt.Status == StatusHold {
		err = c.notifier.SendHoldReminder(ctx, email, name, appt)
	} else {
		err = c.notifier.SendBookingConfirmation(ctx, email, name, appt)
	}
	if err != nil {
		c.logger.Warn("booking notification failed",
			"appointment_id", appt.ID,
			"error", err,
		)
	}
}

func (c *Coordinator) invalidate(ctx context.Context, tenantID string) {
	if c.invalidator == nil {
		return
	}
	c.invalidator.InvalidateTenant(ctx, tenantID)
}
