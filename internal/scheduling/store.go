package scheduling

import (
	"context"
	"time"
)

// Tx is the view of the store visible inside an atomic booking transaction.
// The coordinator re-validates the conflict condition using reads made
// through Tx, never from a pre-fetched cache.
type Tx interface {
	// ListByDoctorAndWindow returns the doctor's appointments intersecting
	// [start, end), ordered by start time ascending.
	ListByDoctorAndWindow(ctx context.Context, tenantID, doctorID string, start, end time.Time) ([]Appointment, error)

	// Insert writes a new appointment within the transaction.
	Insert(ctx context.Context, appt Appointment) (Appointment, error)
}

// Store is the durable appointment store. Implementations must guarantee
// that two RunAtomic calls for the same (tenant, doctor) pair serialize:
// one observes the other's committed write.
type Store interface {
	// RunAtomic executes fn as a single atomic unit scoped to one doctor's
	// timeline. If fn returns an error the transaction is fully aborted and
	// no partial appointment is written.
	RunAtomic(ctx context.Context, tenantID, doctorID string, fn func(ctx context.Context, tx Tx) error) error

	ListByDoctorAndWindow(ctx context.Context, tenantID, doctorID string, start, end time.Time) ([]Appointment, error)

	// ListByTenant returns all of a tenant's appointments intersecting
	// [start, end), ordered by start time ascending.
	ListByTenant(ctx context.Context, tenantID string, start, end time.Time) ([]Appointment, error)

	Get(ctx context.Context, tenantID, id string) (Appointment, error)

	// Upsert creates or replaces an appointment by id.
	Upsert(ctx context.Context, appt Appointment) (Appointment, error)

	// Delete removes an appointment. Returns ErrNotFound when absent.
	Delete(ctx context.Context, tenantID, id string) error
}

// CacheInvalidator drops derived appointment views (calendar grids) for a
// tenant after the store is mutated. Implementations must be safe to call
// with a nil receiver.
type CacheInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string)
}
