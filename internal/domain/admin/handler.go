package admin

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/diabcrf/crf/internal/platform/auth"
	"github.com/diabcrf/crf/internal/platform/session"
	"github.com/diabcrf/crf/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the management endpoints on api, which must require
// a profile, and the sign-up endpoints on open, which must not.
func (h *Handler) RegisterRoutes(api, open *echo.Group) {
	api.GET("/centers", h.ListCenters)

	adminOnly := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminOnly.POST("/centers", h.CreateCenter)
	adminOnly.GET("/users", h.ListUsers)
	adminOnly.POST("/users/:id/promote", h.Promote)
	adminOnly.POST("/invitations", h.Invite)
	adminOnly.GET("/invitations", h.ListInvitations)

	open.GET("/invitations/lookup", h.Lookup)
	open.POST("/signup", h.Signup)
}

func (h *Handler) ListCenters(c echo.Context) error {
	centers, err := h.svc.ListCenters(c.Request().Context())
	if err != nil {
		return h.httpError(err, "list centers")
	}
	return c.JSON(http.StatusOK, centers)
}

func (h *Handler) CreateCenter(c echo.Context) error {
	var center Center
	if err := c.Bind(&center); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.CreateCenter(c.Request().Context(), &center); err != nil {
		return h.httpError(err, "create center")
	}
	return c.JSON(http.StatusCreated, center)
}

func (h *Handler) ListUsers(c echo.Context) error {
	p := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return h.httpError(err, "list users")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, p).WithNext(c.Request().URL, p))
}

func (h *Handler) Promote(c echo.Context) error {
	target, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, _ := session.FromContext(c.Request().Context())
	p, err := h.svc.Promote(c.Request().Context(), s.UserID, target)
	if err != nil {
		return h.httpError(err, "promote")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Invite(c echo.Context) error {
	var req InviteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	s, _ := session.FromContext(c.Request().Context())
	res, err := h.svc.Invite(c.Request().Context(), s.UserID, req)
	if err != nil {
		return h.httpError(err, "invite")
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListInvitations(c echo.Context) error {
	p := pagination.FromContext(c)
	invs, total, err := h.svc.ListInvitations(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return h.httpError(err, "list invitations")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(invs, total, p).WithNext(c.Request().URL, p))
}

func (h *Handler) Lookup(c echo.Context) error {
	inv, err := h.svc.Lookup(c.Request().Context(), c.QueryParam("token"))
	if err != nil {
		return h.httpError(err, "lookup invitation")
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *Handler) Signup(c echo.Context) error {
	s, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Signup(c.Request().Context(), s, req)
	if err != nil {
		return h.httpError(err, "signup")
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) httpError(err error, op string) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvitationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvitationExpired):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	case errors.Is(err, ErrConflict), errors.Is(err, ErrProfileExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrEmailMismatch):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	h.logger.Error().Err(err).Str("op", op).Msg("backend request failed")
	return echo.NewHTTPError(http.StatusBadGateway, "backend request failed").SetInternal(err)
}
