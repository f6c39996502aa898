package alerts

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/pkg/apperror"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/alerts", h.ScanClinic)
	api.GET("/alerts/expiry", h.ScanExpiry)
	api.GET("/alerts/low-stock", h.ScanLowStock)
}

func (h *Handler) ScanClinic(c echo.Context) error {
	report, err := h.engine.ScanClinic(c.Request().Context(), db.ClinicFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

// ScanExpiry serves the expiry list. window=dispensary selects the short
// window used by dispensing staff; anything else gets the advisory window.
func (h *Handler) ScanExpiry(c echo.Context) error {
	windowDays := h.engine.AdvisoryDays()
	if c.QueryParam("window") == "dispensary" {
		windowDays = h.engine.DispensaryDays()
	}
	alerts, err := h.engine.ScanExpiry(c.Request().Context(), db.ClinicFromContext(c.Request().Context()), windowDays)
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"window_days": windowDays,
		"alerts":      alerts,
	})
}

func (h *Handler) ScanLowStock(c echo.Context) error {
	alerts, err := h.engine.ScanLowStock(c.Request().Context(), db.ClinicFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(apperror.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"alerts": alerts,
	})
}
