// Package session derives the caller's session (authenticated user plus
// application profile) for every request.
package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/diabcrf/crf/internal/platform/auth"
)

// ErrNoProfile is returned by a ProfileLoader when the user has signed in
// but has not completed sign-up.
var ErrNoProfile = errors.New("session: no profile for user")

// Profile is the application-level identity of a signed-in user.
type Profile struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
	CenterID *int      `json:"center_id,omitempty"`
}

// Session is the signed-in user. Profile is nil until sign-up completes.
type Session struct {
	UserID  uuid.UUID `json:"user_id"`
	Email   string    `json:"email"`
	Profile *Profile  `json:"profile"`
}

// Role returns the profile role, or "" without a profile.
func (s *Session) Role() string {
	if s == nil || s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}

// IsAdmin reports whether the session belongs to an administrator.
func (s *Session) IsAdmin() bool {
	return s.Role() == auth.RoleAdmin
}

// CenterID returns the profile's center, if any.
func (s *Session) CenterID() (int, bool) {
	if s == nil || s.Profile == nil || s.Profile.CenterID == nil {
		return 0, false
	}
	return *s.Profile.CenterID, true
}

// ProfileLoader fetches the profile for an authenticated user.
type ProfileLoader interface {
	LoadProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
}

type ctxKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	ctx = context.WithValue(ctx, ctxKey{}, s)
	if role := s.Role(); role != "" {
		ctx = auth.WithRoles(ctx, role)
	}
	return ctx
}

// FromContext returns the session stored by Loader.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

// Loader runs after auth.JWTMiddleware. It resolves the token subject to a
// profile and stores the resulting Session on the request context. The
// session is rebuilt on every request, so a new token is a new session.
func Loader(profiles ProfileLoader, logger zerolog.Logger, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			ctx := c.Request().Context()
			userID, err := uuid.Parse(auth.UserIDFromContext(ctx))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}

			s := &Session{UserID: userID, Email: auth.EmailFromContext(ctx)}
			profile, err := profiles.LoadProfile(ctx, userID)
			switch {
			case errors.Is(err, ErrNoProfile):
			case err != nil:
				logger.Error().Err(err).Str("user_id", userID.String()).Msg("load profile")
				return echo.NewHTTPError(http.StatusBadGateway, "profile lookup failed")
			default:
				s.Profile = profile
			}

			c.SetRequest(c.Request().WithContext(NewContext(ctx, s)))
			return next(c)
		}
	}
}

// RequireProfile rejects sessions that have not completed sign-up.
func RequireProfile() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s, ok := FromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
			}
			if s.Profile == nil {
				return echo.NewHTTPError(http.StatusForbidden, "profile required; complete sign-up first")
			}
			return next(c)
		}
	}
}

// Handler serves the current session.
func Handler(c echo.Context) error {
	s, ok := FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return c.JSON(http.StatusOK, s)
}
