package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx used for single statements, satisfied by
// pools, transactions, and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is the pool surface the store needs. *pgxpool.Pool and
// pgxmock pools both satisfy it.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Querier
}

// PostgresStore persists appointments in Postgres. Booking atomicity relies
// on a transaction-scoped advisory lock keyed by (tenant, doctor), so two
// concurrent bookings for the same doctor serialize and the second observes
// the first's committed write.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgresStore creates a store backed by a pgx pool.
func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		panic("scheduling: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

const appointmentColumns = `
	id, tenant_id, patient_id, doctor_id, type, status,
	start_at, end_at, room_id, notes, team_ids, hold_expires_at,
	auto_generated, source, milestone_type, milestone_label,
	created_at, updated_at`

func (s *PostgresStore) RunAtomic(ctx context.Context, tenantID, doctorID string, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &StoreError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serialize bookings per doctor timeline for the duration of the
	// transaction. Released automatically at commit/rollback.
	lockKey := tenantID + ":" + doctorID
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return &StoreError{Op: "advisory lock", Err: err}
	}

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return &StoreError{Op: "commit", Err: err}
	}
	return nil
}

type pgTx struct {
	q Querier
}

func (t *pgTx) ListByDoctorAndWindow(ctx context.Context, tenantID, doctorID string, start, end time.Time) ([]Appointment, error) {
	return listByDoctorAndWindow(ctx, t.q, tenantID, doctorID, start, end)
}

func (t *pgTx) Insert(ctx context.Context, appt Appointment) (Appointment, error) {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`
	if _, err := t.q.Exec(ctx, query, insertArgs(appt)...); err != nil {
		return Appointment{}, &StoreError{Op: "insert", Err: err}
	}
	return appt, nil
}

func (s *PostgresStore) ListByDoctorAndWindow(ctx context.Context, tenantID, doctorID string, start, end time.Time) ([]Appointment, error) {
	return listByDoctorAndWindow(ctx, s.pool, tenantID, doctorID, start, end)
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID string, start, end time.Time) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE tenant_id = $1 AND start_at < $3 AND end_at > $2
		ORDER BY start_at
	`
	rows, err := s.pool.Query(ctx, query, tenantID, start, end)
	if err != nil {
		return nil, &StoreError{Op: "list by tenant", Err: err}
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (s *PostgresStore) Get(ctx context.Context, tenantID, id string) (Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE tenant_id = $1 AND id = $2
	`
	row := s.pool.QueryRow(ctx, query, tenantID, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, &StoreError{Op: "get", Err: err}
	}
	return appt, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, appt Appointment) (Appointment, error) {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (id) DO UPDATE SET
			patient_id = EXCLUDED.patient_id,
			doctor_id = EXCLUDED.doctor_id,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			start_at = EXCLUDED.start_at,
			end_at = EXCLUDED.end_at,
			room_id = EXCLUDED.room_id,
			notes = EXCLUDED.notes,
			team_ids = EXCLUDED.team_ids,
			hold_expires_at = EXCLUDED.hold_expires_at,
			auto_generated = EXCLUDED.auto_generated,
			source = EXCLUDED.source,
			milestone_type = EXCLUDED.milestone_type,
			milestone_label = EXCLUDED.milestone_label,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, insertArgs(appt)...); err != nil {
		return Appointment{}, &StoreError{Op: "upsert", Err: err}
	}
	return appt, nil
}

func (s *PostgresStore) Delete(ctx context.Context, tenantID, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM appointments WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return &StoreError{Op: "delete", Err: err}
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExpiringHolds returns HOLD appointments across all tenants whose hold
// lapses before the given time, soonest first.
func (s *PostgresStore) ListExpiringHolds(ctx context.Context, before time.Time, limit int) ([]Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = $1 AND hold_expires_at IS NOT NULL AND hold_expires_at < $2
		ORDER BY hold_expires_at
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, string(StatusHold), before, limit)
	if err != nil {
		return nil, &StoreError{Op: "list expiring holds", Err: err}
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func listByDoctorAndWindow(ctx context.Context, q Querier, tenantID, doctorID string, start, end time.Time) ([]Appointment, error) {
	// The window bounds compare against the appointment's own interval, not
	// just its start, so multi-day bookings are never under-queried.
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE tenant_id = $1 AND doctor_id = $2 AND start_at < $4 AND end_at > $3
		ORDER BY start_at
	`
	rows, err := q.Query(ctx, query, tenantID, doctorID, start, end)
	if err != nil {
		return nil, &StoreError{Op: "list by doctor", Err: err}
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func insertArgs(appt Appointment) []any {
	teamIDs := appt.TeamIDs
	if teamIDs == nil {
		teamIDs = []string{}
	}
	return []any{
		appt.ID, appt.TenantID, appt.PatientID, appt.DoctorID, string(appt.Type), string(appt.Status),
		appt.Start, appt.End, appt.RoomID, appt.Notes, teamIDs, appt.HoldExpiresAt,
		appt.AutoGenerated, appt.Source, appt.MilestoneType, appt.MilestoneLabel,
		appt.CreatedAt, appt.UpdatedAt,
	}
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, &StoreError{Op: "scan", Err: err}
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "scan", Err: err}
	}
	return out, nil
}

// scanAppointment is the single normalization point between raw rows and the
// strict Appointment struct.
func scanAppointment(row pgx.Row) (Appointment, error) {
	var appt Appointment
	var apptType, status string
	err := row.Scan(
		&appt.ID, &appt.TenantID, &appt.PatientID, &appt.DoctorID, &apptType, &status,
		&appt.Start, &appt.End, &appt.RoomID, &appt.Notes, &appt.TeamIDs, &appt.HoldExpiresAt,
		&appt.AutoGenerated, &appt.Source, &appt.MilestoneType, &appt.MilestoneLabel,
		&appt.CreatedAt, &appt.UpdatedAt,
	)
	if err != nil {
		return Appointment{}, err
	}
	appt.Type = AppointmentType(apptType)
	appt.Status = AppointmentStatus(status)
	return appt, nil
}

// Ping verifies connectivity, for health checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `SELECT 1`); err != nil {
		return fmt.Errorf("scheduling: ping: %w", err)
	}
	return nil
}
