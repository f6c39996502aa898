package alerts

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/domain/inventory"
	"github.com/clinicore/clinicore/internal/platform/telemetry"
)

// CatalogSource lists a clinic's catalog for scanning. The inventory item
// repository satisfies it.
type CatalogSource interface {
	ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*inventory.MedicationItem, error)
}

// ExpiryAlert is one catalog item flagged by the expiry scan.
type ExpiryAlert struct {
	Item           *inventory.MedicationItem `json:"item"`
	Classification string                    `json:"classification"`
	// DaysUntilExpiry is negative once the item has expired.
	DaysUntilExpiry int `json:"days_until_expiry"`
}

// LowStockAlert is one active catalog item at or below the stock threshold.
type LowStockAlert struct {
	Item      *inventory.MedicationItem `json:"item"`
	Stock     int                       `json:"stock"`
	Threshold int                       `json:"threshold"`
}

// Report is the combined alert view for a clinic.
type Report struct {
	ClinicID   uuid.UUID      `json:"clinic_id"`
	WindowDays int            `json:"window_days"`
	Expiry     []ExpiryAlert  `json:"expiry"`
	LowStock   []LowStockAlert `json:"low_stock"`
	ScannedAt  time.Time      `json:"scanned_at"`
}

// Engine runs on-demand alert scans. Scans read the live catalog; nothing is
// persisted, so an alert clears the moment the underlying condition does.
type Engine struct {
	catalog           CatalogSource
	dispensaryDays    int
	advisoryDays      int
	lowStockThreshold int
	now               func() time.Time
	metrics           *telemetry.Metrics
}

func NewEngine(catalog CatalogSource, dispensaryDays, advisoryDays, lowStockThreshold int) *Engine {
	return &Engine{
		catalog:           catalog,
		dispensaryDays:    dispensaryDays,
		advisoryDays:      advisoryDays,
		lowStockThreshold: lowStockThreshold,
		now:               time.Now,
	}
}

func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) SetMetrics(m *telemetry.Metrics) {
	e.metrics = m
}

// DispensaryDays reports the short scan window.
func (e *Engine) DispensaryDays() int { return e.dispensaryDays }

// AdvisoryDays reports the long scan window.
func (e *Engine) AdvisoryDays() int { return e.advisoryDays }

// ScanExpiry classifies every catalog item against the given window and
// returns the ones that are expiring or expired, soonest expiry first.
// Inactive items are scanned too: an expired item awaiting disposal is still
// worth flagging.
func (e *Engine) ScanExpiry(ctx context.Context, clinicID uuid.UUID, windowDays int) ([]ExpiryAlert, error) {
	items, err := e.catalog.ListByClinic(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.ExpiryScansTotal.Inc()
	}

	now := e.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var alerts []ExpiryAlert
	for _, item := range items {
		class := Classify(item.ExpirationDate, now, windowDays)
		if class == ExpiryNormal {
			continue
		}
		exp := time.Date(item.ExpirationDate.Year(), item.ExpirationDate.Month(), item.ExpirationDate.Day(),
			0, 0, 0, 0, now.Location())
		alerts = append(alerts, ExpiryAlert{
			Item:            item,
			Classification:  class,
			DaysUntilExpiry: int(exp.Sub(today).Hours() / 24),
		})
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].DaysUntilExpiry < alerts[j].DaysUntilExpiry
	})
	return alerts, nil
}

// ScanLowStock flags active items at or below the threshold. Inactive items
// are excluded; a deactivated drug with zero stock is the expected state, not
// an alert.
func (e *Engine) ScanLowStock(ctx context.Context, clinicID uuid.UUID) ([]LowStockAlert, error) {
	items, err := e.catalog.ListByClinic(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	var alerts []LowStockAlert
	for _, item := range items {
		if item.Status != inventory.StatusActive {
			continue
		}
		if item.Stock <= e.lowStockThreshold {
			alerts = append(alerts, LowStockAlert{
				Item:      item,
				Stock:     item.Stock,
				Threshold: e.lowStockThreshold,
			})
		}
	}
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Stock < alerts[j].Stock
	})
	return alerts, nil
}

// ScanClinic produces the combined report using the advisory window.
func (e *Engine) ScanClinic(ctx context.Context, clinicID uuid.UUID) (*Report, error) {
	expiry, err := e.ScanExpiry(ctx, clinicID, e.advisoryDays)
	if err != nil {
		return nil, err
	}
	lowStock, err := e.ScanLowStock(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	return &Report{
		ClinicID:   clinicID,
		WindowDays: e.advisoryDays,
		Expiry:     expiry,
		LowStock:   lowStock,
		ScannedAt:  e.now(),
	}, nil
}
