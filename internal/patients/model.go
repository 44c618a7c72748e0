package patients

import (
	"strings"
	"time"

	"github.com/graftline/clinic-crm/internal/scheduling"
)

// PatientStatus tracks a patient through the clinic funnel.
type PatientStatus string

const (
	StatusNewLead   PatientStatus = "NEW_LEAD"
	StatusLead      PatientStatus = "LEAD"
	StatusConsulted PatientStatus = "CONSULTED"
	StatusQuoted    PatientStatus = "QUOTED"
	StatusBooked    PatientStatus = "BOOKED"
	StatusCompleted PatientStatus = "COMPLETED"
	StatusCancelled PatientStatus = "CANCELLED"
)

var validStatuses = map[PatientStatus]bool{
	StatusNewLead:   true,
	StatusLead:      true,
	StatusConsulted: true,
	StatusQuoted:    true,
	StatusBooked:    true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// Patient is a clinic patient record. Milestone dates drive the derived
// calendar appointments maintained by the scheduling synchronizer.
type Patient struct {
	ID              string                `json:"id"`
	TenantID        string                `json:"tenant_id"`
	Name            string                `json:"name"`
	Email           string                `json:"email"`
	Phone           string                `json:"phone"`
	DateOfBirth     *time.Time            `json:"date_of_birth,omitempty"`
	Status          PatientStatus         `json:"status"`
	PrimaryDoctorID string                `json:"primary_doctor_id"`
	MedicalNotes    string                `json:"medical_notes,omitempty"`
	Milestones      scheduling.Milestones `json:"milestones"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// CreatePatientRequest is the request body for creating a patient.
type CreatePatientRequest struct {
	Name            string        `json:"name"`
	Email           string        `json:"email"`
	Phone           string        `json:"phone"`
	DateOfBirth     *time.Time    `json:"date_of_birth,omitempty"`
	Status          PatientStatus `json:"status"`
	PrimaryDoctorID string        `json:"primary_doctor_id"`
	MedicalNotes    string        `json:"medical_notes"`
}

// Validate checks the create request.
func (r *CreatePatientRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if r.Email == "" && r.Phone == "" {
		return ErrMissingContact
	}
	if r.Status == "" {
		r.Status = StatusNewLead
	}
	if !validStatuses[r.Status] {
		return ErrInvalidStatus
	}
	return nil
}

// UpdatePatientRequest carries a partial patient update. Nil fields are left
// unchanged.
type UpdatePatientRequest struct {
	Name            *string        `json:"name,omitempty"`
	Email           *string        `json:"email,omitempty"`
	Phone           *string        `json:"phone,omitempty"`
	DateOfBirth     *time.Time     `json:"date_of_birth,omitempty"`
	Status          *PatientStatus `json:"status,omitempty"`
	PrimaryDoctorID *string        `json:"primary_doctor_id,omitempty"`
	MedicalNotes    *string        `json:"medical_notes,omitempty"`
}

// Validate checks the update request.
func (r *UpdatePatientRequest) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return ErrInvalidName
	}
	if r.Status != nil && !validStatuses[*r.Status] {
		return ErrInvalidStatus
	}
	return nil
}

// Apply copies the non-nil update fields onto the patient.
func (r *UpdatePatientRequest) Apply(p *Patient) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Email != nil {
		p.Email = *r.Email
	}
	if r.Phone != nil {
		p.Phone = *r.Phone
	}
	if r.DateOfBirth != nil {
		p.DateOfBirth = r.DateOfBirth
	}
	if r.Status != nil {
		p.Status = *r.Status
	}
	if r.PrimaryDoctorID != nil {
		p.PrimaryDoctorID = *r.PrimaryDoctorID
	}
	if r.MedicalNotes != nil {
		p.MedicalNotes = *r.MedicalNotes
	}
}

// ListFilter narrows a patient listing.
type ListFilter struct {
	// Search matches name, email, or phone, case-insensitively.
	Search string
	// Status keeps only patients in the given funnel stage.
	Status PatientStatus
	// DoctorID keeps only patients whose primary doctor matches. Set for
	// DOCTOR-role callers so they only see their own panel.
	DoctorID string
}
