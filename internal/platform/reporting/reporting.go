package reporting

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/db"
)

// MeasureDefinition defines a reporting measure with its SQL query. Every
// measure is clinic-scoped: $1 is always the clinic id.
type MeasureDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SQL         string `json:"sql"`
}

// MeasureReport holds the results of evaluating a measure.
type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	ClinicID    uuid.UUID                `json:"clinic_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []map[string]interface{} `json:"results"`
}

// PredefinedMeasures is the list of available reporting measures.
var PredefinedMeasures = []MeasureDefinition{
	{
		ID:          "stock-on-hand",
		Name:        "Stock On Hand",
		Description: "Current stock per medication, largest holdings first",
		SQL: `SELECT name, dosage, category, stock, status FROM medication_item
			WHERE clinic_id = $1 ORDER BY stock DESC`,
	},
	{
		ID:          "stock-by-category",
		Name:        "Stock by Category",
		Description: "Total units held per medication category",
		SQL: `SELECT category, COUNT(*) AS items, COALESCE(SUM(stock), 0) AS units
			FROM medication_item WHERE clinic_id = $1 GROUP BY category ORDER BY units DESC`,
	},
	{
		ID:          "movement-volume",
		Name:        "Movement Volume",
		Description: "Ledger movements in the last 30 days, grouped by adjustment type",
		SQL: `SELECT adjustment_type, COUNT(*) AS movements, COALESCE(SUM(delta), 0) AS net_delta
			FROM stock_movement
			WHERE clinic_id = $1 AND created_at >= NOW() - INTERVAL '30 days'
			GROUP BY adjustment_type ORDER BY movements DESC`,
	},
	{
		ID:          "active-prescriptions",
		Name:        "Active Prescriptions",
		Description: "Prescriptions that are neither cancelled nor past their end date",
		SQL: `SELECT COUNT(*) AS total FROM prescription
			WHERE clinic_id = $1 AND NOT cancelled
			AND (end_date IS NULL OR end_date >= CURRENT_DATE)`,
	},
	{
		ID:          "administrations-today",
		Name:        "Administrations Today",
		Description: "Today's dose events grouped by outcome",
		SQL: `SELECT status, COUNT(*) AS total FROM administration
			WHERE clinic_id = $1 AND administered_at >= CURRENT_DATE
			AND administered_at < CURRENT_DATE + INTERVAL '1 day'
			GROUP BY status ORDER BY total DESC`,
	},
	{
		ID:          "expired-items",
		Name:        "Expired Items",
		Description: "Catalog items whose expiration date has passed",
		SQL: `SELECT name, dosage, batch_number, expiration_date, stock FROM medication_item
			WHERE clinic_id = $1 AND expiration_date IS NOT NULL AND expiration_date < CURRENT_DATE
			ORDER BY expiration_date`,
	},
}

// Handler provides HTTP handlers for the reporting API.
type Handler struct {
	pool *pgxpool.Pool
}

// NewHandler creates a new reporting handler.
func NewHandler(pool *pgxpool.Pool) *Handler {
	return &Handler{pool: pool}
}

// RegisterRoutes registers the reporting API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reports/measures", h.ListMeasures)
	api.GET("/reports/measures/:id/evaluate", h.EvaluateMeasure)
}

// ListMeasures returns all available measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure executes a measure's SQL for the caller's clinic.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	measure := FindMeasure(c.Param("id"))
	if measure == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}
	clinicID := db.ClinicFromContext(c.Request().Context())

	results, err := h.executeSQL(c.Request().Context(), measure.SQL, clinicID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}

	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   measure.ID,
		MeasureName: measure.Name,
		ClinicID:    clinicID,
		GeneratedAt: time.Now(),
		Results:     results,
	})
}

// executeSQL runs a SQL query and returns results as a slice of maps.
func (h *Handler) executeSQL(ctx context.Context, sql string, clinicID uuid.UUID) ([]map[string]interface{}, error) {
	rows, err := h.pool.Query(ctx, sql, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var results []map[string]interface{}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	return results, rows.Err()
}

// FindMeasure looks up a measure by ID.
func FindMeasure(id string) *MeasureDefinition {
	for i := range PredefinedMeasures {
		if PredefinedMeasures[i].ID == id {
			return &PredefinedMeasures[i]
		}
	}
	return nil
}
