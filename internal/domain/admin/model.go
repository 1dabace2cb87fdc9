package admin

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/diabcrf/crf/internal/platform/session"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalid            = errors.New("invalid request")
	ErrConflict           = errors.New("already exists")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationExpired  = errors.New("invitation expired")
	ErrEmailMismatch      = errors.New("invitation was issued for another email address")
	ErrProfileExists      = errors.New("profile already exists")
)

// Profile is the application identity of a signed-in user. ID equals the
// token subject.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CenterID  *int      `json:"center_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session converts p to the form carried on request contexts.
func (p *Profile) Session() *session.Profile {
	return &session.Profile{
		ID:       p.ID,
		Email:    p.Email,
		FullName: p.FullName,
		Role:     p.Role,
		CenterID: p.CenterID,
	}
}

type Center struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Invitation lets one person sign up with a preset role and center. It is
// consumed on sign-up.
type Invitation struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	CenterID  *int       `json:"center_id,omitempty"`
	Token     string     `json:"token"`
	InvitedBy *uuid.UUID `json:"invited_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

type InviteRequest struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	CenterID *int   `json:"center_id"`
}

// InviteResult carries the invitation and the sign-up link to send.
type InviteResult struct {
	Invitation *Invitation `json:"invitation"`
	Link       string      `json:"link"`
}

type SignupRequest struct {
	Token    string `json:"token"`
	FullName string `json:"full_name"`
}
