package scheduling

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

var testActor = tenancy.Actor{TenantID: "clinic-1", UserID: "user-1", Role: tenancy.RoleCoordinator}

func newTestCoordinator(store Store, now time.Time) *Coordinator {
	return NewCoordinator(store, logging.New("error"), WithClock(FixedClock(now)))
}

func TestBookSucceedsOnFreeSlot(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	coord := newTestCoordinator(store, now)

	appt, err := coord.Book(context.Background(), testActor, BookingRequest{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Type:      TypeConsult,
		Start:     time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if appt.ID == "" {
		t.Fatal("expected server-assigned id")
	}
	if appt.Status != StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", appt.Status)
	}
	if !appt.CreatedAt.Equal(now) || !appt.UpdatedAt.Equal(now) {
		t.Fatal("expected clock-assigned timestamps")
	}
}

// Matches the concrete conflict scenario: doctor D confirmed 09:00-10:00 on
// 2024-06-01; 09:30-10:30 conflicts, 10:00-11:00 does not, another doctor is
// unaffected.
func TestBookConflictScenario(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	coord := newTestCoordinator(store, now)
	ctx := context.Background()

	book := func(doctorID string, startHour, startMin, endHour, endMin int) error {
		_, err := coord.Book(ctx, testActor, BookingRequest{
			PatientID: "pat-1",
			DoctorID:  doctorID,
			Type:      TypeConsult,
			Start:     time.Date(2024, 6, 1, startHour, startMin, 0, 0, time.UTC),
			End:       time.Date(2024, 6, 1, endHour, endMin, 0, 0, time.UTC),
		})
		return err
	}

	if err := book("doc-D", 9, 0, 10, 0); err != nil {
		t.Fatalf("initial booking failed: %v", err)
	}
	if err := book("doc-D", 9, 30, 10, 30); !errors.Is(err, ErrConflict) {
		t.Fatalf("overlapping slot should conflict, got %v", err)
	}
	if err := book("doc-D", 10, 0, 11, 0); err != nil {
		t.Fatalf("boundary-touching slot should succeed, got %v", err)
	}
	if err := book("doc-E", 9, 30, 10, 30); err != nil {
		t.Fatalf("different doctor should succeed, got %v", err)
	}
}

func TestBookHoldSetsExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	coord := newTestCoordinator(store, now)

	appt, err := coord.Book(context.Background(), testActor, BookingRequest{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Type:      TypeSurgery,
		Start:     time.Date(2024, 6, 2, 11, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 6, 2, 15, 0, 0, 0, time.UTC),
		Hold:      true,
	})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if appt.Status != StatusHold {
		t.Fatalf("expected HOLD, got %s", appt.Status)
	}
	if appt.HoldExpiresAt == nil {
		t.Fatal("expected hold expiry to be set")
	}
	if want := now.Add(24 * time.Hour); !appt.HoldExpiresAt.Equal(want) {
		t.Fatalf("expected hold expiry %v, got %v", want, *appt.HoldExpiresAt)
	}
}

func TestBookValidation(t *testing.T) {
	store := NewMemoryStore()
	coord := newTestCoordinator(store, time.Now().UTC())
	ctx := context.Background()

	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		req  BookingRequest
	}{
		{"zero-length interval", BookingRequest{PatientID: "p", DoctorID: "d", Type: TypeConsult, Start: start, End: start}},
		{"end before start", BookingRequest{PatientID: "p", DoctorID: "d", Type: TypeConsult, Start: start, End: start.Add(-time.Hour)}},
		{"missing doctor", BookingRequest{PatientID: "p", Type: TypeConsult, Start: start, End: start.Add(time.Hour)}},
		{"missing patient", BookingRequest{DoctorID: "d", Type: TypeConsult, Start: start, End: start.Add(time.Hour)}},
		{"unknown type", BookingRequest{PatientID: "p", DoctorID: "d", Type: "MASSAGE", Start: start, End: start.Add(time.Hour)}},
		{"below minimum duration", BookingRequest{PatientID: "p", DoctorID: "d", Type: TypeConsult, Start: start, End: start.Add(time.Minute)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := coord.Book(ctx, testActor, tc.req)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	// Nothing must reach the store on validation failure.
	appts, _ := store.ListByTenant(ctx, testActor.TenantID, start.AddDate(-1, 0, 0), start.AddDate(1, 0, 0))
	if len(appts) != 0 {
		t.Fatalf("validation failures must not write: found %d appointments", len(appts))
	}
}

func TestBookOverExpiredHold(t *testing.T) {
	store := NewMemoryStore()
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	expiry := start.Add(-2 * time.Hour)
	seed := Appointment{
		ID:            "stale-hold",
		TenantID:      testActor.TenantID,
		PatientID:     "pat-9",
		DoctorID:      "doc-1",
		Type:          TypeConsult,
		Status:        StatusHold,
		Start:         start,
		End:           start.Add(time.Hour),
		HoldExpiresAt: &expiry,
	}
	if _, err := store.Upsert(context.Background(), seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	now := start.Add(-time.Hour) // hold already lapsed
	coord := newTestCoordinator(store, now)
	_, err := coord.Book(context.Background(), testActor, BookingRequest{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Type:      TypeConsult,
		Start:     start,
		End:       start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("expected expired hold to free the slot, got %v", err)
	}
}

// At-most-one-winner: two concurrent bookings for overlapping slots of the
// same doctor; exactly one commits. Repeated with randomized interleavings.
func TestBookConcurrentRace(t *testing.T) {
	const rounds = 100

	for round := 0; round < rounds; round++ {
		store := NewMemoryStore()
		now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
		coord := newTestCoordinator(store, now)

		start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
		reqA := BookingRequest{PatientID: "pat-a", DoctorID: "doc-1", Type: TypeConsult, Start: start, End: start.Add(time.Hour)}
		offset := time.Duration(rand.Intn(31)) * time.Minute
		reqB := BookingRequest{PatientID: "pat-b", DoctorID: "doc-1", Type: TypeConsult, Start: start.Add(offset), End: start.Add(offset + time.Hour)}

		var wg sync.WaitGroup
		results := make([]error, 2)
		for i, req := range []BookingRequest{reqA, reqB} {
			wg.Add(1)
			go func(i int, req BookingRequest) {
				defer wg.Done()
				_, err := coord.Book(context.Background(), testActor, req)
				results[i] = err
			}(i, req)
		}
		wg.Wait()

		var wins, conflicts int
		for _, err := range results {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Fatalf("round %d: unexpected error: %v", round, err)
			}
		}
		if wins != 1 || conflicts != 1 {
			t.Fatalf("round %d: expected exactly one winner, got %d wins / %d conflicts", round, wins, conflicts)
		}
	}
}

func TestTransitionHoldLifecycle(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	coord := newTestCoordinator(store, now)
	ctx := context.Background()

	appt, err := coord.Book(ctx, testActor, BookingRequest{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Type:      TypeConsult,
		Start:     time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC),
		Hold:      true,
	})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}

	confirmed, err := coord.Transition(ctx, testActor, appt.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", confirmed.Status)
	}
	if confirmed.HoldExpiresAt != nil {
		t.Fatal("confirming must clear the hold expiry")
	}

	// COMPLETED is terminal.
	if _, err := coord.Transition(ctx, testActor, appt.ID, StatusCompleted); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	_, err = coord.Transition(ctx, testActor, appt.ID, StatusCancelled)
	var transitionErr *TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expected TransitionError from terminal state, got %v", err)
	}
}

func TestTransitionExpiredHoldBehavesCancelled(t *testing.T) {
	store := NewMemoryStore()
	start := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	expiry := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	seed := Appointment{
		ID:            "stale",
		TenantID:      testActor.TenantID,
		PatientID:     "pat-1",
		DoctorID:      "doc-1",
		Type:          TypeConsult,
		Status:        StatusHold,
		Start:         start,
		End:           start.Add(time.Hour),
		HoldExpiresAt: &expiry,
	}
	if _, err := store.Upsert(context.Background(), seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	coord := newTestCoordinator(store, expiry.Add(time.Hour))
	_, err := coord.Transition(context.Background(), testActor, "stale", StatusConfirmed)
	var transitionErr *TransitionError
	if !errors.As(err, &transitionErr) {
		t.Fatalf("expired hold should not be confirmable, got %v", err)
	}
}

type recordingInvalidator struct {
	mu      sync.Mutex
	tenants []string
}

func (r *recordingInvalidator) InvalidateTenant(ctx context.Context, tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = append(r.tenants, tenantID)
}

func TestBookInvalidatesCache(t *testing.T) {
	store := NewMemoryStore()
	inv := &recordingInvalidator{}
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	coord := NewCoordinator(store, logging.New("error"), WithClock(FixedClock(now)), WithCacheInvalidator(inv))

	_, err := coord.Book(context.Background(), testActor, BookingRequest{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Type:      TypeConsult,
		Start:     time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if len(inv.tenants) != 1 || inv.tenants[0] != testActor.TenantID {
		t.Fatalf("expected one cache invalidation for the tenant, got %v", inv.tenants)
	}
}

type recordingNotifier struct {
	confirmations []string
	reminders     []string
}

func (r *recordingNotifier) SendBookingConfirmation(_ context.Context, to, _ string, _ Appointment) error {
	r.confirmations = append(r.confirmations, to)
	return nil
}

func (r *recordingNotifier) SendHoldReminder(_ context.Context, to, _ string, _ Appointment) error {
	r.reminders = append(r.reminders, to)
	return nil
}

type staticDirectory struct{}

func (staticDirectory) ContactInfo(_ context.Context, _ tenancy.Actor, patientID string) (string, string, error) {
	return "Pat " + patientID, patientID + "@example.com", nil
}

func TestBookSendsConfirmationEmail(t *testing.T) {
	store := NewMemoryStore()
	notifier := &recordingNotifier{}
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	coord := NewCoordinator(store, logging.New("error"),
		WithClock(FixedClock(now)),
		WithBookingNotifier(notifier, staticDirectory{}),
	)

	_, err := coord.Book(context.Background(), testActor, BookingRequest{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Type:      TypeConsult,
		Start:     time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if len(notifier.confirmations) != 1 || notifier.confirmations[0] != "pat-1@example.com" {
		t.Fatalf("confirmations = %v", notifier.confirmations)
	}
	if len(notifier.reminders) != 0 {
		t.Fatalf("unexpected hold reminders: %v", notifier.reminders)
	}
}

func TestBookHoldSendsReminderAndConfirmOnTransition(t *testing.T) {
	store := NewMemoryStore()
	notifier := &recordingNotifier{}
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	coord := NewCoordinator(store, logging.New("error"),
		WithClock(FixedClock(now)),
		WithBookingNotifier(notifier, staticDirectory{}),
	)

	appt, err := coord.Book(context.Background(), testActor, BookingRequest{
		PatientID: "pat-2",
		DoctorID:  "doc-1",
		Type:      TypeSurgery,
		Start:     time.Date(2024, 6, 2, 11, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 6, 2, 15, 0, 0, 0, time.UTC),
		Hold:      true,
	})
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if len(notifier.reminders) != 1 {
		t.Fatalf("reminders = %v", notifier.reminders)
	}

	if _, err := coord.Transition(context.Background(), testActor, appt.ID, StatusConfirmed); err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if len(notifier.confirmations) != 1 || notifier.confirmations[0] != "pat-2@example.com" {
		t.Fatalf("confirmations = %v", notifier.confirmations)
	}
}
