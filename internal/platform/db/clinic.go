package db

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	// ClinicIDKey carries the resolved clinic id through the request context.
	ClinicIDKey contextKey = "clinic_id"
	// DBTxKey carries an open transaction; repositories prefer it over the pool.
	DBTxKey contextKey = "db_tx"
)

// ClinicMiddleware resolves the tenant clinic for every request and threads
// it through the context. The clinic id is supplied by the surrounding
// application (auth layer, excluded here); this middleware only extracts and
// validates its shape. Every row written or read downstream is scoped to it.
func ClinicMiddleware(defaultClinic string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractClinicID(c, defaultClinic)
			if raw == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "missing clinic identifier")
			}

			clinicID, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid clinic identifier")
			}

			ctx := context.WithValue(c.Request().Context(), ClinicIDKey, clinicID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("clinic_id", clinicID)

			return next(c)
		}
	}
}

func extractClinicID(c echo.Context, defaultClinic string) string {
	// 1. Check X-Clinic-ID header (set by the surrounding application)
	if cid := c.Request().Header.Get("X-Clinic-ID"); cid != "" {
		return cid
	}

	// 2. Check query parameter
	if cid := c.QueryParam("clinic_id"); cid != "" {
		return cid
	}

	return defaultClinic
}

// ClinicFromContext retrieves the clinic id from context. Returns uuid.Nil
// when no clinic was resolved.
func ClinicFromContext(ctx context.Context) uuid.UUID {
	cid, _ := ctx.Value(ClinicIDKey).(uuid.UUID)
	return cid
}
