package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/graftline/clinic-crm/internal/scheduling"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// Service sends patient-facing scheduling and quote emails. Delivery failures
// are logged and returned but never block the booking path: callers decide
// whether a failed notification matters.
type Service struct {
	email  EmailSender
	logger *logging.Logger
}

// NewService creates a notification service. A nil sender disables delivery.
func NewService(email EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if email == nil {
		email = NewStubEmailSender(logger)
	}
	return &Service{email: email, logger: logger}
}

// SendBookingConfirmation emails the patient after a successful booking.
func (s *Service) SendBookingConfirmation(ctx context.Context, to, toName string, appt scheduling.Appointment) error {
	if to == "" {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", displayName(toName))
	fmt.Fprintf(&b, "Your %s appointment is confirmed for %s.\n",
		strings.ToLower(string(appt.Type)), formatSlot(appt.Start, appt.End))
	if appt.RoomID != "" {
		fmt.Fprintf(&b, "Room: %s\n", appt.RoomID)
	}
	b.WriteString("\nIf you need to reschedule, reply to this email or call the clinic.\n")

	msg := EmailMessage{
		To:      to,
		ToName:  toName,
		Subject: fmt.Sprintf("Appointment confirmed — %s", appt.Start.Format("Jan 2, 2006")),
		Body:    b.String(),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("booking confirmation email failed", "appointment_id", appt.ID, "error", err)
		return err
	}
	return nil
}

// SendHoldReminder emails the patient that their provisional slot is about to
// lapse.
func (s *Service) SendHoldReminder(ctx context.Context, to, toName string, appt scheduling.Appointment) error {
	if to == "" || appt.HoldExpiresAt == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", displayName(toName))
	fmt.Fprintf(&b, "We are holding a %s slot for you on %s.\n",
		strings.ToLower(string(appt.Type)), formatSlot(appt.Start, appt.End))
	fmt.Fprintf(&b, "The hold expires %s — confirm before then to keep it.\n",
		appt.HoldExpiresAt.Format("Jan 2, 2006 at 15:04 MST"))

	msg := EmailMessage{
		To:      to,
		ToName:  toName,
		Subject: "Your held appointment slot expires soon",
		Body:    b.String(),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("hold reminder email failed", "appointment_id", appt.ID, "error", err)
		return err
	}
	return nil
}

// SendQuoteNotice emails the patient that a proposal is ready for review.
func (s *Service) SendQuoteNotice(ctx context.Context, to, toName, quoteTitle string, totalCents int64, currency string) error {
	if to == "" {
		return nil
	}

	title := quoteTitle
	if title == "" {
		title = "your treatment proposal"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", displayName(toName))
	fmt.Fprintf(&b, "We have prepared %s: %s %s.\n", title, currency, formatCents(totalCents))
	b.WriteString("Your coordinator will walk you through the details at your next visit.\n")

	msg := EmailMessage{
		To:      to,
		ToName:  toName,
		Subject: "Your treatment proposal is ready",
		Body:    b.String(),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("quote notice email failed", "error", err)
		return err
	}
	return nil
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "there"
	}
	return name
}

func formatSlot(start, end time.Time) string {
	return fmt.Sprintf("%s, %s–%s",
		start.Format("Monday, Jan 2, 2006"),
		start.Format("15:04"),
		end.Format("15:04 MST"))
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
