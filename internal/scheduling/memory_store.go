package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and demo environments. A
// single mutex serializes RunAtomic calls, giving the same at-most-one-winner
// guarantee the Postgres store provides through its transaction.
type MemoryStore struct {
	mu    sync.Mutex
	appts map[string]map[string]Appointment // tenantID -> id -> appointment
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{appts: make(map[string]map[string]Appointment)}
}

type memoryTx struct {
	store *MemoryStore
}

func (s *MemoryStore) RunAtomic(ctx context.Context, tenantID, doctorID string, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, &memoryTx{store: s})
}

func (tx *memoryTx) ListByDoctorAndWindow(ctx context.Context, tenantID, doctorID string, start, end time.Time) ([]Appointment, error) {
	return tx.store.listLocked(tenantID, doctorID, start, end), nil
}

func (tx *memoryTx) Insert(ctx context.Context, appt Appointment) (Appointment, error) {
	return tx.store.putLocked(appt), nil
}

func (s *MemoryStore) ListByDoctorAndWindow(ctx context.Context, tenantID, doctorID string, start, end time.Time) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(tenantID, doctorID, start, end), nil
}

func (s *MemoryStore) ListByTenant(ctx context.Context, tenantID string, start, end time.Time) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(tenantID, "", start, end), nil
}

func (s *MemoryStore) Get(ctx context.Context, tenantID, id string) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[tenantID][id]
	if !ok {
		return Appointment{}, ErrNotFound
	}
	return appt, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, appt Appointment) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(appt), nil
}

// ListExpiringHolds returns HOLD appointments across all tenants whose hold
// lapses before the given time, soonest first.
func (s *MemoryStore) ListExpiringHolds(ctx context.Context, before time.Time, limit int) ([]Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Appointment
	for _, tenant := range s.appts {
		for _, appt := range tenant {
			if appt.Status == StatusHold && appt.HoldExpiresAt != nil && appt.HoldExpiresAt.Before(before) {
				out = append(out, appt)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].HoldExpiresAt.Before(*out[j].HoldExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appts[tenantID][id]; !ok {
		return ErrNotFound
	}
	delete(s.appts[tenantID], id)
	return nil
}

func (s *MemoryStore) putLocked(appt Appointment) Appointment {
	tenant, ok := s.appts[appt.TenantID]
	if !ok {
		tenant = make(map[string]Appointment)
		s.appts[appt.TenantID] = tenant
	}
	tenant[appt.ID] = appt
	return appt
}

// listLocked returns appointments intersecting [start, end), ordered by
// start ascending. Empty doctorID matches every doctor.
func (s *MemoryStore) listLocked(tenantID, doctorID string, start, end time.Time) []Appointment {
	var out []Appointment
	for _, appt := range s.appts[tenantID] {
		if doctorID != "" && appt.DoctorID != doctorID {
			continue
		}
		if !Overlaps(start, end, appt.Start, appt.End) {
			continue
		}
		out = append(out, appt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
