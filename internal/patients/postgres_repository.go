package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/graftline/clinic-crm/internal/scheduling"
)

// Querier is the pgx query surface the repository needs, satisfied by pools,
// transactions, and pgxmock.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patients in the relational database.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool or mock.
func NewPostgresRepository(db Querier) *PostgresRepository {
	if db == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const patientColumns = `
	id, tenant_id, name, email, phone, date_of_birth, status,
	primary_doctor_id, medical_notes,
	consult_date, proposal_sent_date, surgery_date, follow_up_date,
	created_at, updated_at`

// Create inserts a new patient row.
func (r *PostgresRepository) Create(ctx context.Context, p *Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`
	if _, err := r.db.Exec(ctx, query,
		p.ID, p.TenantID, p.Name, p.Email, p.Phone, p.DateOfBirth, string(p.Status),
		p.PrimaryDoctorID, p.MedicalNotes,
		p.Milestones.ConsultDate, p.Milestones.ProposalSentDate,
		p.Milestones.SurgeryDate, p.Milestones.FollowUpDate,
		p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return fmt.Errorf("patients: insert failed: %w", err)
	}
	return nil
}

// GetByID fetches a patient scoped to the tenant.
func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, id string) (*Patient, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM patients
		WHERE tenant_id = $1 AND id = $2
	`
	p, err := scanPatient(r.db.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: select failed: %w", err)
	}
	return p, nil
}

// Update overwrites the mutable fields of a patient row.
func (r *PostgresRepository) Update(ctx context.Context, p *Patient) error {
	query := `
		UPDATE patients SET
			name = $3, email = $4, phone = $5, date_of_birth = $6,
			status = $7, primary_doctor_id = $8, medical_notes = $9,
			consult_date = $10, proposal_sent_date = $11,
			surgery_date = $12, follow_up_date = $13,
			updated_at = $14
		WHERE tenant_id = $1 AND id = $2
	`
	ct, err := r.db.Exec(ctx, query,
		p.TenantID, p.ID, p.Name, p.Email, p.Phone, p.DateOfBirth,
		string(p.Status), p.PrimaryDoctorID, p.MedicalNotes,
		p.Milestones.ConsultDate, p.Milestones.ProposalSentDate,
		p.Milestones.SurgeryDate, p.Milestones.FollowUpDate,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("patients: update failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

// UpdateMilestones replaces the four milestone dates and returns the fresh
// row.
func (r *PostgresRepository) UpdateMilestones(ctx context.Context, tenantID, id string, m scheduling.Milestones) (*Patient, error) {
	query := `
		UPDATE patients SET
			consult_date = $3, proposal_sent_date = $4,
			surgery_date = $5, follow_up_date = $6,
			updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING ` + patientColumns + `
	`
	p, err := scanPatient(r.db.QueryRow(ctx, query, tenantID, id,
		m.ConsultDate, m.ProposalSentDate, m.SurgeryDate, m.FollowUpDate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: milestone update failed: %w", err)
	}
	return p, nil
}

// List returns the tenant's patients, newest first, narrowed by the filter.
func (r *PostgresRepository) List(ctx context.Context, tenantID string, filter ListFilter) ([]*Patient, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + patientColumns + ` FROM patients WHERE tenant_id = $1`)
	args := []any{tenantID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	if filter.DoctorID != "" {
		args = append(args, filter.DoctorID)
		fmt.Fprintf(&sb, " AND primary_doctor_id = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		fmt.Fprintf(&sb, " AND (name ILIKE $%d OR email ILIKE $%d OR phone ILIKE $%d)", n, n, n)
	}
	sb.WriteString(" ORDER BY created_at DESC")

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("patients: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("patients: scan failed: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patients: rows failed: %w", err)
	}
	return out, nil
}

// Delete removes a patient row scoped to the tenant.
func (r *PostgresRepository) Delete(ctx context.Context, tenantID, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM patients WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("patients: delete failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var status string
	if err := row.Scan(
		&p.ID, &p.TenantID, &p.Name, &p.Email, &p.Phone, &p.DateOfBirth, &status,
		&p.PrimaryDoctorID, &p.MedicalNotes,
		&p.Milestones.ConsultDate, &p.Milestones.ProposalSentDate,
		&p.Milestones.SurgeryDate, &p.Milestones.FollowUpDate,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Status = PatientStatus(status)
	return &p, nil
}
