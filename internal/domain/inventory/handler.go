package inventory

import (
	"net/http"

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
	api.GET("/medication-items", h.ListItems)
	api.POST("/medication-items", h.CreateItem)
	api.GET("/medication-items/:id", h.GetItem)
	api.PUT("/medication-items/:id", h.UpdateItem)
	api.POST("/medication-items/:id/deactivate", h.DeactivateItem)
	api.POST("/medication-items/:id/reactivate", h.ReactivateItem)
	api.GET("/medication-items/:id/stock", h.GetStock)
	api.GET("/medication-items/:id/stock/movements", h.ListMovements)
	api.POST("/medication-items/:id/stock/movements", h.ApplyMovement)
	api.GET("/medication-items/:id/stock/replay", h.ReplayStock)
}

func httpError(err error) error {
	return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
}

func (h *Handler) CreateItem(c echo.Context) error {
	var in ItemInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.CreateItem(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	item, err := h.svc.GetItem(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListItems(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := map[string]string{}
	for _, k := range []string{"status", "category", "name"} {
		if v := c.QueryParam(k); v != "" {
			params[k] = v
		}
	}
	items, total, err := h.svc.ListItems(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), params, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in ItemInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.UpdateItem(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) DeactivateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeactivateItem(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ReactivateItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.ReactivateItem(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetStock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	stock, err := h.svc.CurrentStock(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"medication_id": id, "stock": stock})
}

func (h *Handler) ListMovements(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	movements, total, err := h.svc.ListMovements(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), id, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(movements, total, pg.Limit, pg.Offset))
}

func (h *Handler) ApplyMovement(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in MovementInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in.MedicationID = id
	mv, err := h.svc.ApplyMovement(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, mv)
}

func (h *Handler) ReplayStock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	report, err := h.svc.ReplayStock(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}
