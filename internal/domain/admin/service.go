package admin

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/diabcrf/crf/internal/platform/auth"
	"github.com/diabcrf/crf/internal/platform/db"
	"github.com/diabcrf/crf/internal/platform/session"
)

type Options struct {
	// PublicURL is the web client's base URL used in invitation links.
	PublicURL     string
	InvitationTTL time.Duration
}

type Service struct {
	profiles    ProfileRepository
	centers     CenterRepository
	invitations InvitationRepository
	opts        Options
	logger      zerolog.Logger
	inTx        func(ctx context.Context, fn func(ctx context.Context) error) error
	now         func() time.Time
}

func NewService(profiles ProfileRepository, centers CenterRepository, invitations InvitationRepository, tx db.Beginner, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		profiles:    profiles,
		centers:     centers,
		invitations: invitations,
		opts:        opts,
		logger:      logger.With().Str("component", "admin").Logger(),
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, tx, fn)
		},
		now: time.Now,
	}
}

// LoadProfile implements session.ProfileLoader.
func (s *Service) LoadProfile(ctx context.Context, userID uuid.UUID) (*session.Profile, error) {
	p, err := s.profiles.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, session.ErrNoProfile
	}
	if err != nil {
		return nil, err
	}
	return p.Session(), nil
}

// -- Users --

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*Profile, int, error) {
	return s.profiles.List(ctx, limit, offset)
}

// Promote grants the admin role to an existing profile.
func (s *Service) Promote(ctx context.Context, actor, target uuid.UUID) (*Profile, error) {
	if err := s.profiles.PromoteToAdmin(ctx, target); err != nil {
		return nil, err
	}
	s.logger.Info().Str("actor", actor.String()).Str("user_id", target.String()).Msg("user promoted to admin")
	return s.profiles.GetByID(ctx, target)
}

// -- Centers --

func (s *Service) ListCenters(ctx context.Context) ([]*Center, error) {
	return s.centers.List(ctx)
}

func (s *Service) CreateCenter(ctx context.Context, c *Center) error {
	c.Name = strings.TrimSpace(c.Name)
	c.City = strings.TrimSpace(c.City)
	if c.Name == "" {
		return fmt.Errorf("%w: center name is required", ErrInvalid)
	}
	return s.centers.Create(ctx, c)
}

// -- Invitations --

// Invite records an invitation and returns the sign-up link for it.
// Investigators must be attached to a center.
func (s *Service) Invite(ctx context.Context, inviter uuid.UUID, req InviteRequest) (*InviteResult, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrInvalid)
	}
	if !auth.ValidRole(req.Role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalid, req.Role)
	}
	if req.Role == auth.RoleInvestigator && req.CenterID == nil {
		return nil, fmt.Errorf("%w: investigators need a center", ErrInvalid)
	}

	now := s.now()
	inv := &Invitation{
		Email:     strings.ToLower(addr.Address),
		Role:      req.Role,
		CenterID:  req.CenterID,
		Token:     newToken(),
		InvitedBy: &inviter,
		ExpiresAt: now.Add(s.opts.InvitationTTL),
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, err
	}
	s.logger.Info().Str("invitation_id", inv.ID.String()).Str("role", inv.Role).Msg("invitation created")
	return &InviteResult{Invitation: inv, Link: s.SignupLink(inv.Token)}, nil
}

// SignupLink is <PUBLIC_URL>/#/signup?token=<token>.
func (s *Service) SignupLink(token string) string {
	return strings.TrimRight(s.opts.PublicURL, "/") + "/#/signup?token=" + url.QueryEscape(token)
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *Service) ListInvitations(ctx context.Context, limit, offset int) ([]*Invitation, int, error) {
	return s.invitations.ListPending(ctx, s.now(), limit, offset)
}

// Lookup finds a pending invitation by exact token.
func (s *Service) Lookup(ctx context.Context, token string) (*Invitation, error) {
	if token == "" {
		return nil, ErrInvitationNotFound
	}
	inv, err := s.invitations.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Expired(s.now()) {
		return nil, ErrInvitationExpired
	}
	return inv, nil
}

// Signup consumes an invitation for the signed-in user: it creates the
// profile, promotes it when the invitation grants admin, and deletes the
// invitation, all in one transaction.
func (s *Service) Signup(ctx context.Context, sess *session.Session, req SignupRequest) (*Profile, error) {
	if sess.Profile != nil {
		return nil, ErrProfileExists
	}
	inv, err := s.Lookup(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		return nil, err
	}
	if sess.Email != "" && !strings.EqualFold(sess.Email, inv.Email) {
		return nil, ErrEmailMismatch
	}

	p := &Profile{
		ID:       sess.UserID,
		Email:    inv.Email,
		FullName: strings.TrimSpace(req.FullName),
		Role:     inv.Role,
		CenterID: inv.CenterID,
	}
	// Profiles are never inserted as admin; that role is only granted
	// through promote_to_admin.
	if inv.Role == auth.RoleAdmin {
		p.Role = auth.RoleResearcher
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.profiles.Create(ctx, p); err != nil {
			if errors.Is(err, ErrConflict) {
				return ErrProfileExists
			}
			return err
		}
		if inv.Role == auth.RoleAdmin {
			if err := s.profiles.PromoteToAdmin(ctx, p.ID); err != nil {
				return err
			}
			p.Role = auth.RoleAdmin
		}
		return s.invitations.Delete(ctx, inv.ID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", p.ID.String()).Str("role", p.Role).Msg("sign-up completed")
	return p, nil
}

// PurgeExpired deletes invitations past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) error {
	n, err := s.invitations.DeleteExpired(ctx, s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Msg("expired invitations purged")
	}
	return nil
}
