package quotes

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the pgx query surface the repository needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores quotes in the relational database. Line items
// live in a jsonb column; totals are persisted so listings never recompute.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository initializes a repo backed by a pgx pool or mock.
func NewPostgresRepository(db Querier) *PostgresRepository {
	if db == nil {
		panic("quotes: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

const quoteColumns = `
	id, tenant_id, patient_id, title, currency, status,
	line_items, discount_cents, subtotal_cents, total_cents,
	created_at, updated_at`

// Create inserts a new quote row.
func (r *PostgresRepository) Create(ctx context.Context, q *Quote) error {
	query := `
		INSERT INTO quotes (` + quoteColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`
	if _, err := r.db.Exec(ctx, query,
		q.ID, q.TenantID, q.PatientID, q.Title, q.Currency, string(q.Status),
		q.LineItems, q.DiscountCents, q.SubtotalCents, q.TotalCents,
		q.CreatedAt, q.UpdatedAt,
	); err != nil {
		return fmt.Errorf("quotes: insert failed: %w", err)
	}
	return nil
}

// GetByID fetches a quote scoped to the tenant.
func (r *PostgresRepository) GetByID(ctx context.Context, tenantID, id string) (*Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE tenant_id = $1 AND id = $2`
	q, err := scanQuote(r.db.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuoteNotFound
		}
		return nil, fmt.Errorf("quotes: select failed: %w", err)
	}
	return q, nil
}

// ListByPatient returns the patient's quotes, newest first.
func (r *PostgresRepository) ListByPatient(ctx context.Context, tenantID, patientID string) ([]*Quote, error) {
	query := `
		SELECT ` + quoteColumns + `
		FROM quotes
		WHERE tenant_id = $1 AND patient_id = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, tenantID, patientID)
	if err != nil {
		return nil, fmt.Errorf("quotes: list failed: %w", err)
	}
	defer rows.Close()

	var out []*Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("quotes: scan failed: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quotes: rows failed: %w", err)
	}
	return out, nil
}

// UpdateStatus writes a new lifecycle status.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, tenantID, id string, status QuoteStatus) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE quotes SET status = $3, updated_at = now() WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, string(status))
	if err != nil {
		return fmt.Errorf("quotes: status update failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

// Delete removes a quote row scoped to the tenant.
func (r *PostgresRepository) Delete(ctx context.Context, tenantID, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM quotes WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("quotes: delete failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	var status string
	if err := row.Scan(
		&q.ID, &q.TenantID, &q.PatientID, &q.Title, &q.Currency, &status,
		&q.LineItems, &q.DiscountCents, &q.SubtotalCents, &q.TotalCents,
		&q.CreatedAt, &q.UpdatedAt,
	); err != nil {
		return nil, err
	}
	q.Status = QuoteStatus(status)
	return &q, nil
}
