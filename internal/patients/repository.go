package patients

import (
	"context"

	"github.com/graftline/clinic-crm/internal/scheduling"
)

// Repository abstracts patient persistence.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, tenantID, id string) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	UpdateMilestones(ctx context.Context, tenantID, id string, m scheduling.Milestones) (*Patient, error)
	List(ctx context.Context, tenantID string, filter ListFilter) ([]*Patient, error)
	Delete(ctx context.Context, tenantID, id string) error
}
