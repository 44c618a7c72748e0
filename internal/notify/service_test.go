package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/graftline/clinic-crm/internal/scheduling"
	"github.com/graftline/clinic-crm/pkg/logging"
)

type recordingSender struct {
	sent []EmailMessage
}

func (r *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	r.sent = append(r.sent, msg)
	return nil
}

func sampleAppointment() scheduling.Appointment {
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	return scheduling.Appointment{
		ID:        "appt-1",
		TenantID:  "clinic-1",
		PatientID: "pat-1",
		DoctorID:  "doc-1",
		Type:      scheduling.TypeConsult,
		Status:    scheduling.StatusConfirmed,
		Start:     start,
		End:       start.Add(time.Hour),
		RoomID:    "Suite 2",
	}
}

func TestSendBookingConfirmation(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, logging.New("error"))

	err := svc.SendBookingConfirmation(context.Background(), "ada@example.com", "Ada", sampleAppointment())
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "ada@example.com" {
		t.Fatalf("wrong recipient: %s", msg.To)
	}
	if !strings.Contains(msg.Body, "Monday, Jun 3, 2024") {
		t.Fatalf("body missing the appointment date: %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "Suite 2") {
		t.Fatalf("body missing the room: %q", msg.Body)
	}
}

func TestSendBookingConfirmationNoRecipient(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, logging.New("error"))

	if err := svc.SendBookingConfirmation(context.Background(), "", "", sampleAppointment()); err != nil {
		t.Fatalf("missing recipient should be a silent no-op, got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should be sent without a recipient")
	}
}

func TestSendHoldReminder(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, logging.New("error"))

	appt := sampleAppointment()
	appt.Status = scheduling.StatusHold
	expiry := appt.Start.Add(-time.Hour)
	appt.HoldExpiresAt = &expiry

	if err := svc.SendHoldReminder(context.Background(), "ada@example.com", "Ada", appt); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].Body, "hold expires") {
		t.Fatalf("body should mention the expiry: %q", sender.sent[0].Body)
	}

	// Appointments without a hold never trigger a reminder.
	confirmed := sampleAppointment()
	if err := svc.SendHoldReminder(context.Background(), "ada@example.com", "Ada", confirmed); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatal("confirmed appointments must not get hold reminders")
	}
}

func TestSendQuoteNotice(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, logging.New("error"))

	err := svc.SendQuoteNotice(context.Background(), "ada@example.com", "Ada", "Rhinoplasty package", 500000, "USD")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].Body, "USD 5000.00") {
		t.Fatalf("body should show the formatted total: %q", sender.sent[0].Body)
	}
}

func TestStubSenderNeverFails(t *testing.T) {
	svc := NewService(nil, logging.New("error"))
	if err := svc.SendBookingConfirmation(context.Background(), "ada@example.com", "Ada", sampleAppointment()); err != nil {
		t.Fatalf("stub-backed service should never fail: %v", err)
	}
}
