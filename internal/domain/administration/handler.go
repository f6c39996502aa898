package administration

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/pkg/apperror"
	"github.com/clinicore/clinicore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/administrations", h.ListByDay)
	api.POST("/administrations", h.Record)
	api.GET("/administrations/:id", h.Get)
	api.PUT("/administrations/:id/notes", h.UpdateNotes)
	api.GET("/prescriptions/:id/administrations", h.ListByPrescription)
}

func httpError(err error) error {
	return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
}

func (h *Handler) Record(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	event, err := h.svc.Record(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, event)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	event, err := h.svc.Get(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}

// ListByDay serves the daily rounds view. The date query param defaults to
// today when absent.
func (h *Handler) ListByDay(c echo.Context) error {
	pg := pagination.FromContext(c)

	day := time.Now()
	if v := c.QueryParam("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		}
		day = parsed
	}

	var patientID *uuid.UUID
	if v := c.QueryParam("patient_id"); v != "" {
		pid, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		patientID = &pid
	}

	events, total, err := h.svc.ListByDay(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), day, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(events, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByPrescription(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	events, total, err := h.svc.ListByPrescription(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(events, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateNotes(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Notes *string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	event, err := h.svc.UpdateNotes(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), id, body.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, event)
}
