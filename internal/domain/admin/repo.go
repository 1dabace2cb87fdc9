package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ProfileRepository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	List(ctx context.Context, limit, offset int) ([]*Profile, int, error)
	// PromoteToAdmin calls the promote_to_admin procedure.
	PromoteToAdmin(ctx context.Context, id uuid.UUID) error
}

type CenterRepository interface {
	Create(ctx context.Context, c *Center) error
	List(ctx context.Context) ([]*Center, error)
}

type InvitationRepository interface {
	Create(ctx context.Context, inv *Invitation) error
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	ListPending(ctx context.Context, now time.Time, limit, offset int) ([]*Invitation, int, error)
	// Delete calls the delete_invitation procedure.
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
