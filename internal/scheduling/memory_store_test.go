package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedAppointment(t *testing.T, store *MemoryStore, id, tenantID, doctorID string, start, end time.Time) {
	t.Helper()
	_, err := store.Upsert(context.Background(), Appointment{
		ID:        id,
		TenantID:  tenantID,
		PatientID: "pat-" + id,
		DoctorID:  doctorID,
		Type:      TypeConsult,
		Status:    StatusConfirmed,
		Start:     start,
		End:       end,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestMemoryStoreTenantIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	seedAppointment(t, store, "a1", "clinic-1", "doc-1", start, start.Add(time.Hour))
	seedAppointment(t, store, "b1", "clinic-2", "doc-1", start, start.Add(time.Hour))

	appts, err := store.ListByTenant(ctx, "clinic-1", start.Add(-time.Hour), start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(appts) != 1 || appts[0].ID != "a1" {
		t.Fatalf("tenant listing leaked across tenants: %v", appts)
	}

	if _, err := store.Get(ctx, "clinic-1", "b1"); !errors.Is(err, ErrNotFound) {
		t.Fatal("get must not cross tenant boundaries")
	}
	if err := store.Delete(ctx, "clinic-1", "b1"); !errors.Is(err, ErrNotFound) {
		t.Fatal("delete must not cross tenant boundaries")
	}
}

func TestMemoryStoreWindowFiltering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	seedAppointment(t, store, "morning", "clinic-1", "doc-1", day.Add(9*time.Hour), day.Add(10*time.Hour))
	seedAppointment(t, store, "evening", "clinic-1", "doc-1", day.Add(18*time.Hour), day.Add(19*time.Hour))
	seedAppointment(t, store, "other-doc", "clinic-1", "doc-2", day.Add(9*time.Hour), day.Add(10*time.Hour))

	appts, err := store.ListByDoctorAndWindow(ctx, "clinic-1", "doc-1", day.Add(8*time.Hour), day.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(appts) != 1 || appts[0].ID != "morning" {
		t.Fatalf("expected only the morning appointment, got %v", appts)
	}

	// A window touching only the boundary excludes the appointment.
	appts, _ = store.ListByDoctorAndWindow(ctx, "clinic-1", "doc-1", day.Add(10*time.Hour), day.Add(12*time.Hour))
	if len(appts) != 0 {
		t.Fatalf("half-open window must exclude boundary touch, got %v", appts)
	}
}

func TestMemoryStoreListOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	seedAppointment(t, store, "late", "clinic-1", "doc-1", day.Add(15*time.Hour), day.Add(16*time.Hour))
	seedAppointment(t, store, "early", "clinic-1", "doc-1", day.Add(9*time.Hour), day.Add(10*time.Hour))
	seedAppointment(t, store, "mid", "clinic-1", "doc-1", day.Add(12*time.Hour), day.Add(13*time.Hour))

	appts, err := store.ListByTenant(ctx, "clinic-1", day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := []string{"early", "mid", "late"}
	if len(appts) != len(want) {
		t.Fatalf("expected %d appointments, got %d", len(want), len(appts))
	}
	for i, id := range want {
		if appts[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, appts[i].ID)
		}
	}
}

func TestMemoryStoreUpsertReplaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	seedAppointment(t, store, "a1", "clinic-1", "doc-1", start, start.Add(time.Hour))

	updated := Appointment{
		ID:       "a1",
		TenantID: "clinic-1",
		DoctorID: "doc-1",
		Type:     TypeConsult,
		Status:   StatusCancelled,
		Start:    start,
		End:      start.Add(time.Hour),
	}
	if _, err := store.Upsert(ctx, updated); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	got, err := store.Get(ctx, "clinic-1", "a1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("upsert should replace: expected CANCELLED, got %s", got.Status)
	}

	appts, _ := store.ListByTenant(ctx, "clinic-1", start.Add(-time.Hour), start.Add(2*time.Hour))
	if len(appts) != 1 {
		t.Fatalf("upsert must not duplicate, got %d", len(appts))
	}
}
