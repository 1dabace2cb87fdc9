package casereport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/diabcrf/crf/internal/platform/auth"
	"github.com/diabcrf/crf/internal/platform/form"
	"github.com/diabcrf/crf/internal/platform/session"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the schema and draft endpoints. api must already
// require a profile.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/form/schema", h.GetSchema)

	drafts := api.Group("/drafts", auth.RequireRole(auth.RoleAdmin, auth.RoleInvestigator))
	drafts.POST("", h.Open)
	drafts.GET("/:id", h.Get)
	drafts.DELETE("/:id", h.Discard)
	drafts.PUT("/:id/answers/:field", h.SetAnswer)
	drafts.POST("/:id/answers/:field/toggle", h.Toggle)
	drafts.PUT("/:id/grid/:day/:time", h.SetCell)
	drafts.POST("/:id/advance", h.Advance)
	drafts.POST("/:id/retreat", h.Retreat)
	drafts.POST("/:id/submit", h.Submit)
}

// ValidationResponse is the 422 body.
type ValidationResponse struct {
	Message string            `json:"message"`
	Fields  []form.FieldError `json:"fields"`
}

type answerRequest struct {
	Value interface{} `json:"value"`
}

type toggleRequest struct {
	Option   string `json:"option"`
	Included bool   `json:"included"`
}

type cellRequest struct {
	Value string `json:"value"`
}

func (h *Handler) GetSchema(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Schema())
}

func (h *Handler) Open(c echo.Context) error {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	return c.JSON(http.StatusCreated, h.svc.Open(c.Request().Context(), sess))
}

func (h *Handler) Get(c echo.Context) error {
	sess, id, err := draftParams(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Get(c.Request().Context(), sess, id)
	return respond(c, v, err)
}

func (h *Handler) SetAnswer(c echo.Context) error {
	sess, id, err := draftParams(c)
	if err != nil {
		return err
	}
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := h.svc.SetAnswer(c.Request().Context(), sess, id, c.Param("field"), req.Value)
	return respond(c, v, err)
}

func (h *Handler) Toggle(c echo.Context) error {
	sess, id, err := draftParams(c)
	if err != nil {
		return err
	}
	var req toggleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := h.svc.ToggleMultiChoice(c.Request().Context(), sess, id, c.Param("field"), req.Option, req.Included)
	return respond(c, v, err)
}

func (h *Handler) SetCell(c echo.Context) error {
	sess, id, err := draftParams(c)
	if err != nil {
		return err
	}
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid day")
	}
	var req cellRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	v, err := h.svc.SetCell(c.Request().Context(), sess, id, day, c.Param("time"), req.Value)
	return respond(c, v, err)
}

func (h *Handler) Advance(c echo.Context) error {
	sess, id, err := draftParams(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Advance(c.Request().Context(), sess, id)
	return respond(c, v, err)
}

func (h *Handler) Retreat(c echo.Context) error {
	sess, id, err := draftParams(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Retreat(c.Request().Context(), sess, id)
	return respond(c, v, err)
}

func (h *Handler) Submit(c echo.Context) error {
	sess, id, err := draftParams(c)
	if err != nil {
		return err
	}
	res, err := h.svc.Submit(c.Request().Context(), sess, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) Discard(c echo.Context) error {
	sess, id, err := draftParams(c)
	if err != nil {
		return err
	}
	if err := h.svc.Discard(c.Request().Context(), sess, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func draftParams(c echo.Context) (*session.Session, uuid.UUID, error) {
	sess, ok := session.FromContext(c.Request().Context())
	if !ok {
		return nil, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "not signed in")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, uuid.Nil, echo.NewHTTPError(http.StatusNotFound, "draft not found")
	}
	return sess, id, nil
}

func respond(c echo.Context, v *DraftView, err error) error {
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

// httpError maps service errors onto status codes.
func httpError(err error) error {
	var verr *form.ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, ValidationResponse{
			Message: "required fields are missing",
			Fields:  verr.Fields,
		})
	case errors.Is(err, ErrInvalidCenter):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, ValidationResponse{
			Message: err.Error(),
			Fields:  []form.FieldError{{ID: FieldCenterOverride, Label: "Center number"}},
		})
	case errors.Is(err, ErrNoCenter):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, ValidationResponse{
			Message: err.Error(),
			Fields:  []form.FieldError{},
		})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSubmitInProgress), errors.Is(err, ErrNotAtLastSection):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, form.ErrUnknownField), errors.Is(err, form.ErrKindMismatch), errors.Is(err, form.ErrInvalidCell):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrBackend):
		return echo.NewHTTPError(http.StatusBadGateway, "could not save the case report, try again").SetInternal(err)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}
