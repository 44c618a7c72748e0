package scheduling

import "time"

// DefaultHoldTTL is how long a provisional HOLD blocks its slot.
const DefaultHoldTTL = 24 * time.Hour

// HoldPolicy models the HOLD status as a provisional, time-limited
// reservation. Expiry is logical: no background sweeper runs, readers and
// the coordinator simply treat an expired hold as a free slot.
type HoldPolicy struct {
	TTL time.Duration
}

// NewHoldPolicy returns a policy with the given TTL, defaulting to 24h.
func NewHoldPolicy(ttl time.Duration) HoldPolicy {
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	return HoldPolicy{TTL: ttl}
}

// ExpiresAt computes the hold expiry for a hold created at the given instant.
func (p HoldPolicy) ExpiresAt(createdAt time.Time) time.Time {
	return createdAt.Add(p.TTL)
}

// Expired reports whether a HOLD appointment has lapsed. Non-hold statuses
// never expire.
func (p HoldPolicy) Expired(appt Appointment, now time.Time) bool {
	return appt.Status == StatusHold && appt.HoldExpiresAt != nil && appt.HoldExpiresAt.Before(now)
}

// holdTransitions enumerates the legal explicit status transitions.
var holdTransitions = map[AppointmentStatus]map[AppointmentStatus]bool{
	StatusHold: {
		StatusConfirmed: true,
		StatusCancelled: true,
		StatusNoShow:    true,
	},
	StatusConfirmed: {
		StatusCompleted: true,
		StatusCancelled: true,
		StatusNoShow:    true,
	},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusNoShow:    {},
}

// CanTransition reports whether the explicit status change is allowed.
func CanTransition(from, to AppointmentStatus) bool {
	allowed, ok := holdTransitions[from]
	return ok && allowed[to]
}
