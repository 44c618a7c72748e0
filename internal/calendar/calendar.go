// Package calendar builds day, week, and month views over the appointment
// store and caches the rendered grids in Redis. The scheduling coordinator
// and synchronizer invalidate a tenant's cached views on every write.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/graftline/clinic-crm/internal/scheduling"
	"github.com/graftline/clinic-crm/internal/tenancy"
	"github.com/graftline/clinic-crm/pkg/logging"
)

// ErrInvalidView is returned for an unknown view name.
var ErrInvalidView = errors.New("view must be day, week, or month")

// View selects the calendar granularity.
type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

// DefaultCacheTTL bounds how stale a cached view can get if an invalidation
// is ever missed.
const DefaultCacheTTL = 5 * time.Minute

// Day is one column of a calendar grid.
type Day struct {
	Date         string                   `json:"date"` // YYYY-MM-DD
	Appointments []scheduling.Appointment `json:"appointments"`
}

// Grid is a rendered calendar view.
type Grid struct {
	TenantID string    `json:"tenant_id"`
	View     View      `json:"view"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Days     []Day     `json:"days"`
}

// Lister is the slice of the appointment store the calendar reads.
type Lister interface {
	ListByTenant(ctx context.Context, tenantID string, start, end time.Time) ([]scheduling.Appointment, error)
	ListByDoctorAndWindow(ctx context.Context, tenantID, doctorID string, start, end time.Time) ([]scheduling.Appointment, error)
}

// Service renders and caches calendar views.
type Service struct {
	store  Lister
	redis  *redis.Client
	ttl    time.Duration
	clock  scheduling.Clock
	logger *logging.Logger
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithCacheTTL overrides the cached-view lifetime.
func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects a clock.
func WithClock(clock scheduling.Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService creates a calendar service. A nil redis client disables caching.
func NewService(store Lister, redisClient *redis.Client, logger *logging.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("calendar: appointment store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:  store,
		redis:  redisClient,
		ttl:    DefaultCacheTTL,
		clock:  scheduling.SystemClock(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get renders the view anchored at the given date, serving from cache when
// possible. doctorID narrows the grid to one doctor's appointments.
func (s *Service) Get(ctx context.Context, actor tenancy.Actor, view View, anchor time.Time, doctorID string) (*Grid, error) {
	start, end, err := viewBounds(view, anchor)
	if err != nil {
		return nil, err
	}

	key := s.cacheKey(actor.TenantID, view, start, doctorID)
	if cached := s.readCache(ctx, key); cached != nil {
		return cached, nil
	}

	var appts []scheduling.Appointment
	if doctorID != "" {
		appts, err = s.store.ListByDoctorAndWindow(ctx, actor.TenantID, doctorID, start, end)
	} else {
		appts, err = s.store.ListByTenant(ctx, actor.TenantID, start, end)
	}
	if err != nil {
		return nil, fmt.Errorf("calendar: load appointments: %w", err)
	}

	grid := buildGrid(actor.TenantID, view, start, end, appts)
	s.writeCache(ctx, key, grid)
	return grid, nil
}

// InvalidateTenant drops every cached view for the tenant. It satisfies
// scheduling.CacheInvalidator.
func (s *Service) InvalidateTenant(ctx context.Context, tenantID string) {
	if s.redis == nil {
		return
	}
	pattern := "calendar:" + tenantID + ":*"
	iter := s.redis.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Error("calendar cache scan failed", "tenant_id", tenantID, "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		s.logger.Error("calendar cache invalidation failed", "tenant_id", tenantID, "error", err)
	}
}

func (s *Service) cacheKey(tenantID string, view View, start time.Time, doctorID string) string {
	key := fmt.Sprintf("calendar:%s:%s:%s", tenantID, view, start.Format("2006-01-02"))
	if doctorID != "" {
		key += ":" + doctorID
	}
	return key
}

func (s *Service) readCache(ctx context.Context, key string) *Grid {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		s.logger.Error("calendar cache read failed", "key", key, "error", err)
		return nil
	}
	var grid Grid
	if err := json.Unmarshal(data, &grid); err != nil {
		return nil
	}
	return &grid
}

func (s *Service) writeCache(ctx context.Context, key string, grid *Grid) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(grid)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Error("calendar cache write failed", "key", key, "error", err)
	}
}

// viewBounds resolves the [start, end) window of a view. Weeks start on
// Monday; months cover the calendar month.
func viewBounds(view View, anchor time.Time) (time.Time, time.Time, error) {
	day := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)
	switch view {
	case ViewDay:
		return day, day.AddDate(0, 0, 1), nil
	case ViewWeek:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7), nil
	case ViewMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, ErrInvalidView
	}
}

// buildGrid buckets appointments into per-day columns. Appointments spanning
// midnight appear in every day they touch.
func buildGrid(tenantID string, view View, start, end time.Time, appts []scheduling.Appointment) *Grid {
	grid := &Grid{TenantID: tenantID, View: view, Start: start, End: end}
	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)
		col := Day{Date: day.Format("2006-01-02"), Appointments: []scheduling.Appointment{}}
		for _, appt := range appts {
			if scheduling.Overlaps(day, next, appt.Start, appt.End) {
				col.Appointments = append(col.Appointments, appt)
			}
		}
		grid.Days = append(grid.Days, col)
	}
	return grid
}
