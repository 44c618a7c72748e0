package scheduling

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/graftline/clinic-crm/pkg/logging"
)

func dateOf(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}

func newTestSynchronizer(store Store, now time.Time) *Synchronizer {
	return NewSynchronizer(store, logging.New("error"), WithSyncClock(FixedClock(now)))
}

// Setting surgeryDate=2024-07-10 must materialize a SURGERY block
// 11:00-15:00 that day under the deterministic derived id.
func TestSyncCreatesDerivedAppointments(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	sync := newTestSynchronizer(store, now)
	ctx := context.Background()

	result, err := sync.Sync(ctx, testActor, SyncInput{
		PatientID:  "pat-1",
		DoctorID:   "doc-1",
		Milestones: Milestones{SurgeryDate: dateOf(2024, time.July, 10)},
	})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.Failed() {
		t.Fatalf("unexpected slot errors: %v", result.Errors)
	}
	if len(result.Upserted) != 1 || result.Upserted[0] != "pat-1-surgery" {
		t.Fatalf("expected one surgery upsert, got %v", result.Upserted)
	}

	appt, err := store.Get(ctx, testActor.TenantID, "pat-1-surgery")
	if err != nil {
		t.Fatalf("derived appointment missing: %v", err)
	}
	if appt.Type != TypeSurgery {
		t.Fatalf("expected SURGERY, got %s", appt.Type)
	}
	wantStart := time.Date(2024, 7, 10, 11, 0, 0, 0, time.UTC)
	if !appt.Start.Equal(wantStart) || !appt.End.Equal(wantStart.Add(4*time.Hour)) {
		t.Fatalf("expected 11:00-15:00 block, got %v-%v", appt.Start, appt.End)
	}
	if appt.Status != StatusConfirmed {
		t.Fatalf("future milestone should be CONFIRMED, got %s", appt.Status)
	}
	if !appt.AutoGenerated || appt.Source != SourceMilestone {
		t.Fatal("derived appointment must be marked auto-generated")
	}
}

func TestSyncStatusClassification(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	sync := newTestSynchronizer(store, now)
	ctx := context.Background()

	_, err := sync.Sync(ctx, testActor, SyncInput{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Milestones: Milestones{
			ConsultDate: dateOf(2024, time.June, 1),  // past
			SurgeryDate: dateOf(2024, time.July, 10), // future
		},
	})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	consult, _ := store.Get(ctx, testActor.TenantID, "pat-1-consult")
	if consult.Status != StatusCompleted {
		t.Fatalf("past milestone should be COMPLETED, got %s", consult.Status)
	}
	surgery, _ := store.Get(ctx, testActor.TenantID, "pat-1-surgery")
	if surgery.Status != StatusConfirmed {
		t.Fatalf("future milestone should be CONFIRMED, got %s", surgery.Status)
	}
}

func TestSyncIdempotent(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	sync := newTestSynchronizer(store, now)
	ctx := context.Background()

	input := SyncInput{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Milestones: Milestones{
			ConsultDate:      dateOf(2024, time.June, 1),
			ProposalSentDate: dateOf(2024, time.June, 5),
			SurgeryDate:      dateOf(2024, time.July, 10),
			FollowUpDate:     dateOf(2024, time.August, 1),
		},
	}

	first, err := sync.Sync(ctx, testActor, input)
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	second, err := sync.Sync(ctx, testActor, input)
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if len(first.Upserted) != 4 || len(second.Upserted) != 4 {
		t.Fatalf("expected 4 upserts each run, got %d then %d", len(first.Upserted), len(second.Upserted))
	}

	appts, err := store.ListByTenant(ctx, testActor.TenantID,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(appts) != 4 {
		t.Fatalf("re-sync must not duplicate: expected 4 appointments, got %d", len(appts))
	}
}

func TestSyncClearDeletesExactlyOne(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	sync := newTestSynchronizer(store, now)
	ctx := context.Background()

	full := Milestones{
		ConsultDate:      dateOf(2024, time.June, 1),
		ProposalSentDate: dateOf(2024, time.June, 5),
		SurgeryDate:      dateOf(2024, time.July, 10),
		FollowUpDate:     dateOf(2024, time.August, 1),
	}
	if _, err := sync.Sync(ctx, testActor, SyncInput{PatientID: "pat-1", DoctorID: "doc-1", Milestones: full}); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}

	full.ProposalSentDate = nil
	result, err := sync.Sync(ctx, testActor, SyncInput{PatientID: "pat-1", DoctorID: "doc-1", Milestones: full})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if len(result.Deleted) != 1 || result.Deleted[0] != "pat-1-proposal" {
		t.Fatalf("expected exactly the proposal appointment deleted, got %v", result.Deleted)
	}
	if _, err := store.Get(ctx, testActor.TenantID, "pat-1-proposal"); !errors.Is(err, ErrNotFound) {
		t.Fatal("proposal appointment should be gone")
	}
	for _, id := range []string{"pat-1-consult", "pat-1-surgery", "pat-1-followup"} {
		if _, err := store.Get(ctx, testActor.TenantID, id); err != nil {
			t.Fatalf("%s should survive: %v", id, err)
		}
	}
}

func TestSyncAbsentMilestoneWithNoDerivedAppointment(t *testing.T) {
	store := NewMemoryStore()
	sync := newTestSynchronizer(store, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))

	result, err := sync.Sync(context.Background(), testActor, SyncInput{
		PatientID:  "pat-1",
		DoctorID:   "doc-1",
		Milestones: Milestones{},
	})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if result.Failed() || len(result.Deleted) != 0 {
		t.Fatalf("deleting nothing should be a no-op, got %+v", result)
	}
}

// failingStore wraps MemoryStore and fails upserts for a chosen id.
type failingStore struct {
	*MemoryStore
	failID string
}

func (f *failingStore) Upsert(ctx context.Context, appt Appointment) (Appointment, error) {
	if appt.ID == f.failID {
		return Appointment{}, &StoreError{Op: "upsert", Err: fmt.Errorf("connection reset")}
	}
	return f.MemoryStore.Upsert(ctx, appt)
}

func TestSyncIsolatesSlotFailures(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore(), failID: "pat-1-proposal"}
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	sync := NewSynchronizer(store, logging.New("error"), WithSyncClock(FixedClock(now)))
	ctx := context.Background()

	result, err := sync.Sync(ctx, testActor, SyncInput{
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Milestones: Milestones{
			ConsultDate:      dateOf(2024, time.June, 1),
			ProposalSentDate: dateOf(2024, time.June, 5),
			SurgeryDate:      dateOf(2024, time.July, 10),
		},
	})
	if err != nil {
		t.Fatalf("sync should not fail wholesale: %v", err)
	}
	if !result.Failed() {
		t.Fatal("expected the proposal slot to fail")
	}
	if _, ok := result.Errors[MilestoneProposal]; !ok {
		t.Fatalf("expected error keyed by proposal milestone, got %v", result.Errors)
	}
	if len(result.Upserted) != 2 {
		t.Fatalf("other slots must still sync: expected 2 upserts, got %v", result.Upserted)
	}
}

func TestDerivedAppointmentID(t *testing.T) {
	cases := map[MilestoneKey]string{
		MilestoneConsult:  "pat-7-consult",
		MilestoneProposal: "pat-7-proposal",
		MilestoneSurgery:  "pat-7-surgery",
		MilestoneFollowUp: "pat-7-followup",
	}
	for key, want := range cases {
		if got := DerivedAppointmentID("pat-7", key); got != want {
			t.Errorf("DerivedAppointmentID(%q) = %q, want %q", key, got, want)
		}
	}
	if got := DerivedAppointmentID("pat-7", "bogus"); got != "" {
		t.Errorf("unknown key should yield empty id, got %q", got)
	}
}

func TestGeneratePlaceholderMilestonesDeterministic(t *testing.T) {
	a := GeneratePlaceholderMilestones("pat-42")
	b := GeneratePlaceholderMilestones("pat-42")
	if !a.ConsultDate.Equal(*b.ConsultDate) || !a.SurgeryDate.Equal(*b.SurgeryDate) {
		t.Fatal("placeholder generation must be deterministic per patient id")
	}
	if a.Empty() {
		t.Fatal("placeholders must set all four milestones")
	}

	// Journey ordering: consult before proposal before surgery before follow-up.
	if !a.ConsultDate.Before(*a.ProposalSentDate) {
		t.Fatal("consult must precede proposal")
	}
	if !a.ProposalSentDate.Before(*a.SurgeryDate) {
		t.Fatal("proposal must precede surgery")
	}
	if !a.SurgeryDate.Before(*a.FollowUpDate) {
		t.Fatal("surgery must precede follow-up")
	}
}
