package patients

import "errors"

var (
	// ErrInvalidName is returned when the patient name is missing
	ErrInvalidName = errors.New("name is required")

	// ErrMissingContact is returned when both email and phone are missing
	ErrMissingContact = errors.New("either email or phone is required")

	// ErrInvalidStatus is returned for an unknown funnel status
	ErrInvalidStatus = errors.New("invalid patient status")

	// ErrPatientNotFound is returned when a patient is not found
	ErrPatientNotFound = errors.New("patient not found")
)
