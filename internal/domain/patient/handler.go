package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

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

// RegisterRoutes mounts the read endpoints. api must already require a profile.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.List)
	api.GET("/patients/export.csv", h.Export)
	api.GET("/patients/:id", h.Get)
	api.GET("/dashboard", h.Dashboard)
}

func scope(c echo.Context) Scope {
	s, _ := session.FromContext(c.Request().Context())
	return ScopeFor(s)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	patients, total, err := h.svc.List(c.Request().Context(), scope(c), p.Limit, p.Offset)
	if err != nil {
		return h.backendError(err, "list patients")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, p).WithNext(c.Request().URL, p))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id, scope(c))
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return h.backendError(err, "get patient")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context(), scope(c))
	if err != nil {
		return h.backendError(err, "dashboard")
	}
	return c.JSON(http.StatusOK, d)
}

// Export streams the CSV. A failure after the header is written can only
// be logged; the client sees a truncated file.
func (h *Handler) Export(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="patients.csv"`)
	res.WriteHeader(http.StatusOK)

	n, err := h.svc.ExportCSV(c.Request().Context(), scope(c), res)
	if err != nil {
		h.logger.Error().Err(err).Int("rows", n).Msg("csv export aborted")
		return nil
	}
	h.logger.Info().Int("rows", n).Msg("csv export")
	return nil
}

func (h *Handler) backendError(err error, op string) error {
	h.logger.Error().Err(err).Str("op", op).Msg("backend failure")
	return echo.NewHTTPError(http.StatusBadGateway, "backend unavailable").SetInternal(err)
}
