package scheduling

import "time"

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect. Touching boundaries (e1 == s2) do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// BlocksSlot reports whether an existing appointment still occupies its slot
// at the given instant. Cancelled and no-show appointments never block, and a
// hold whose expiry has passed is treated as free.
func BlocksSlot(appt Appointment, now time.Time) bool {
	switch appt.Status {
	case StatusCancelled, StatusNoShow:
		return false
	case StatusHold:
		if appt.HoldExpiresAt != nil && appt.HoldExpiresAt.Before(now) {
			return false
		}
	}
	return true
}

// HasConflict reports whether the candidate overlaps any blocking appointment
// for the same doctor. Pure over its inputs: no side effects, never fails.
// An existing appointment sharing the candidate's id is skipped so
// reschedules do not conflict with themselves.
func HasConflict(candidate Appointment, existing []Appointment, now time.Time) bool {
	for _, appt := range existing {
		if appt.ID != "" && appt.ID == candidate.ID {
			continue
		}
		if appt.DoctorID != candidate.DoctorID {
			continue
		}
		if !BlocksSlot(appt, now) {
			continue
		}
		if Overlaps(candidate.Start, candidate.End, appt.Start, appt.End) {
			return true
		}
	}
	return false
}
