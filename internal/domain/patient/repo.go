package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence interface for patient records.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID, scope Scope) (*Patient, error)
	List(ctx context.Context, scope Scope, limit, offset int) ([]*Patient, int, error)
	// Each streams every visible record, oldest first, without form data.
	Each(ctx context.Context, scope Scope, fn func(*Patient) error) error
	Counts(ctx context.Context, scope Scope, since time.Time) (*Dashboard, error)
}
