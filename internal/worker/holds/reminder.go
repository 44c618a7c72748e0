// Package holdsworker runs the background sweep over provisional bookings:
// patients holding a slot get a reminder email before the hold lapses.
package holdsworker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/graftline/clinic-crm/internal/scheduling"
	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

type holdStore interface {
	ListExpiringHolds(ctx context.Context, before time.Time, limit int) ([]scheduling.Appointment, error)
}

type reminderNotifier interface {
	SendHoldReminder(ctx context.Context, to, toName string, appt scheduling.Appointment) error
}

// Reminder sweeps holds that expire within the lead window and emails the
// patient once per hold. Dedup state lives in Redis so restarts and multiple
// replicas do not double-send.
type Reminder struct {
	store     holdStore
	notifier  reminderNotifier
	directory scheduling.PatientDirectory
	redis     *redis.Client
	logger    *logging.Logger
	interval  time.Duration
	leadTime  time.Duration
	batchSize int

	sent map[string]struct{} // fallback dedup when redis is absent
}

func NewReminder(store holdStore, notifier reminderNotifier, directory scheduling.PatientDirectory, redisClient *redis.Client, logger *logging.Logger) *Reminder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reminder{
		store:     store,
		notifier:  notifier,
		directory: directory,
		redis:     redisClient,
		logger:    logger,
		interval:  5 * time.Minute,
		leadTime:  2 * time.Hour,
		batchSize: 50,
		sent:      make(map[string]struct{}),
	}
}

func (r *Reminder) WithInterval(d time.Duration) *Reminder {
	if d > 0 {
		r.interval = d
	}
	return r
}

// WithLeadTime sets how far before expiry the reminder goes out.
func (r *Reminder) WithLeadTime(d time.Duration) *Reminder {
	if d > 0 {
		r.leadTime = d
	}
	return r
}

func (r *Reminder) WithBatchSize(n int) *Reminder {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

func (r *Reminder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	r.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Exposed so tests and one-shot invocations can drive
// it without the ticker.
func (r *Reminder) Sweep(ctx context.Context) {
	if r.store == nil || r.notifier == nil || r.directory == nil {
		return
	}
	now := time.Now()
	holds, err := r.store.ListExpiringHolds(ctx, now.Add(r.leadTime), r.batchSize)
	if err != nil {
		r.logger.Error("expiring holds fetch failed", "error", err)
		return
	}
	for _, appt := range holds {
		// Already lapsed holds are dead slots; no point nagging.
		if appt.HoldExpiresAt == nil || !appt.HoldExpiresAt.After(now) {
			continue
		}
		if !r.claim(ctx, appt.ID) {
			continue
		}
		actor := tenancy.Actor{TenantID: appt.TenantID, UserID: "system", Role: tenancy.RoleAdmin}
		name, email, err := r.directory.ContactInfo(ctx, actor, appt.PatientID)
		if err != nil {
			r.logger.Warn("contact lookup failed", "patient_id", appt.PatientID, "error", err)
			continue
		}
		if err := r.notifier.SendHoldReminder(ctx, email, name, appt); err != nil {
			r.logger.Warn("hold reminder failed", "appointment_id", appt.ID, "error", err)
			continue
		}
		r.logger.Info("hold reminder sent",
			"tenant_id", appt.TenantID,
			"appointment_id", appt.ID,
			"expires_at", appt.HoldExpiresAt,
		)
	}
}

// claim marks the hold as reminded, returning false when another sweep got
// there first.
func (r *Reminder) claim(ctx context.Context, apptID string) bool {
	key := "holdreminder:" + apptID
	if r.redis != nil {
		ok, err := r.redis.SetNX(ctx, key, "1", r.leadTime+24*time.Hour).Result()
		if err != nil {
			r.logger.Warn("reminder dedup failed", "appointment_id", apptID, "error", err)
			return false
		}
		return ok
	}
	if _, done := r.sent[apptID]; done {
		return false
	}
	r.sent[apptID] = struct{}{}
	return true
}
