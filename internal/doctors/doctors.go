// Package doctors manages the clinic's bookable doctor resources. Every
// appointment is owned by exactly one doctor, so this is the resource
// dimension the scheduling conflict detector partitions on.
package doctors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDoctorNotFound is returned when a doctor is not found
	ErrDoctorNotFound = errors.New("doctor not found")

	// ErrInvalidName is returned when the doctor name is missing
	ErrInvalidName = errors.New("name is required")
)

// Doctor is a bookable clinician.
type Doctor struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateDoctorRequest is the request body for registering a doctor.
type CreateDoctorRequest struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// Validate checks the create request.
func (r *CreateDoctorRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	return nil
}

// Querier is the pgx query surface the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores doctors in the relational database.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool or mock.
func NewPostgresRepository(db Querier) *PostgresRepository {
	if db == nil {
		panic("doctors: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const doctorColumns = `id, tenant_id, user_id, name, specialty, active, created_at, updated_at`

// Create inserts a new doctor row.
func (r *PostgresRepository) Create(ctx context.Context, tenantID string, req *CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	d := &Doctor{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		UserID:    req.UserID,
		Name:      req.Name,
		Specialty: req.Specialty,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	query := `
		INSERT INTO doctors (` + doctorColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	if _, err := r.db.Exec(ctx, query,
		d.ID, d.TenantID, d.UserID, d.Name, d.Specialty, d.Active, d.CreatedAt, d.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("doctors: insert failed: %w", err)
	}
	return d, nil
}

// GetByID fetches a doctor scoped to the tenant.
func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, id string) (*Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE tenant_id = $1 AND id = $2`
	d, err := scanDoctor(r.db.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("doctors: select failed: %w", err)
	}
	return d, nil
}

// List returns the tenant's doctors ordered by name. activeOnly narrows to
// currently bookable doctors.
func (r *PostgresRepository) List(ctx context.Context, tenantID string, activeOnly bool) ([]*Doctor, error) {
	query := `SELECT ` + doctorColumns + ` FROM doctors WHERE tenant_id = $1`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("doctors: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("doctors: scan failed: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("doctors: rows failed: %w", err)
	}
	return out, nil
}

// SetActive toggles whether the doctor accepts new bookings.
func (r *PostgresRepository) SetActive(ctx context.Context, tenantID, id string, active bool) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE doctors SET active = $3, updated_at = now() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, active)
	if err != nil {
		return fmt.Errorf("doctors: update failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	if err := row.Scan(
		&d.ID, &d.TenantID, &d.UserID, &d.Name, &d.Specialty, &d.Active,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}
