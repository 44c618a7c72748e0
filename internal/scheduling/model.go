// Package scheduling implements the appointment scheduling core: conflict
// detection, atomic booking, hold lifecycle, and milestone-derived calendar
// synchronization.
package scheduling

import (
	"strings"
	"time"
)

// AppointmentType categorizes what the slot is booked for.
type AppointmentType string

const (
	TypeConsult  AppointmentType = "CONSULT"
	TypeSurgery  AppointmentType = "SURGERY"
	TypeFollowUp AppointmentType = "FOLLOWUP"
	TypeProposal AppointmentType = "PROPOSAL"
)

// AppointmentStatus is the lifecycle state of a booking.
type AppointmentStatus string

const (
	StatusHold      AppointmentStatus = "HOLD"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

// SourceMilestone marks appointments derived from patient milestone dates.
const SourceMilestone = "PATIENT_MILESTONE"

// Appointment is a scheduled resource booking. Start/End form a half-open
// interval [Start, End): an appointment ending exactly when another starts
// does not overlap it.
type Appointment struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenant_id"`
	PatientID string            `json:"patient_id"`
	DoctorID  string            `json:"doctor_id"`
	Type      AppointmentType   `json:"type"`
	Status    AppointmentStatus `json:"status"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	RoomID    string            `json:"room_id,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	TeamIDs   []string          `json:"team_ids,omitempty"`

	// HoldExpiresAt is set only while Status is HOLD.
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`

	// Milestone-derived appointments carry provenance so the synchronizer
	// can recognize records it owns.
	AutoGenerated  bool   `json:"auto_generated,omitempty"`
	Source         string `json:"source,omitempty"`
	MilestoneType  string `json:"milestone_type,omitempty"`
	MilestoneLabel string `json:"milestone_label,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var validTypes = map[AppointmentType]bool{
	TypeConsult:  true,
	TypeSurgery:  true,
	TypeFollowUp: true,
	TypeProposal: true,
}

var validStatuses = map[AppointmentStatus]bool{
	StatusHold:      true,
	StatusConfirmed: true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

// Validate rejects malformed appointments before any store access.
func (a *Appointment) Validate(minDuration time.Duration) error {
	if strings.TrimSpace(a.TenantID) == "" {
		return &ValidationError{Field: "tenant_id", Reason: "tenant id is required"}
	}
	if strings.TrimSpace(a.PatientID) == "" {
		return &ValidationError{Field: "patient_id", Reason: "patient id is required"}
	}
	if strings.TrimSpace(a.DoctorID) == "" {
		return &ValidationError{Field: "doctor_id", Reason: "doctor id is required"}
	}
	if !validTypes[a.Type] {
		return &ValidationError{Field: "type", Reason: "unknown appointment type"}
	}
	if !validStatuses[a.Status] {
		return &ValidationError{Field: "status", Reason: "unknown appointment status"}
	}
	if a.Start.IsZero() || a.End.IsZero() {
		return &ValidationError{Field: "start", Reason: "start and end are required"}
	}
	if !a.End.After(a.Start) {
		return &ValidationError{Field: "end", Reason: "end must be after start"}
	}
	if minDuration > 0 && a.End.Sub(a.Start) < minDuration {
		return &ValidationError{Field: "end", Reason: "appointment is shorter than the minimum duration"}
	}
	return nil
}
