package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/telemetry"
	"github.com/clinicore/clinicore/pkg/apperror"
)

type Service struct {
	items     ItemRepository
	movements MovementRepository
	tx        db.Runner
	metrics   *telemetry.Metrics
}

func NewService(items ItemRepository, movements MovementRepository, tx db.Runner) *Service {
	return &Service{
		items:     items,
		movements: movements,
		tx:        tx,
	}
}

// SetMetrics attaches optional telemetry to the service.
func (s *Service) SetMetrics(m *telemetry.Metrics) {
	s.metrics = m
}

// -- Catalog --

func (s *Service) CreateItem(ctx context.Context, clinicID uuid.UUID, in ItemInput) (*MedicationItem, error) {
	if in.Name == "" {
		return nil, apperror.Validation("name", "is required")
	}
	if in.Category == "" {
		return nil, apperror.Validation("category", "is required")
	}
	if in.Dosage == "" {
		return nil, apperror.Validation("dosage", "is required")
	}

	item := &MedicationItem{
		ClinicID:         clinicID,
		Name:             in.Name,
		Dosage:           in.Dosage,
		Category:         in.Category,
		ActiveIngredient: in.ActiveIngredient,
		Manufacturer:     in.Manufacturer,
		BatchNumber:      in.BatchNumber,
		ExpirationDate:   in.ExpirationDate,
		Stock:            0,
		Status:           StatusActive,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create medication item: %w", err)
	}
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, clinicID, id uuid.UUID) (*MedicationItem, error) {
	return s.items.GetByID(ctx, clinicID, id)
}

// UpdateItem modifies catalog fields. Stock is deliberately not updatable
// here: the ledger is the only write path for it.
func (s *Service) UpdateItem(ctx context.Context, clinicID, id uuid.UUID, in ItemInput) (*MedicationItem, error) {
	item, err := s.items.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}

	if in.Name == "" {
		return nil, apperror.Validation("name", "is required")
	}
	if in.Category == "" {
		return nil, apperror.Validation("category", "is required")
	}
	if in.Dosage == "" {
		return nil, apperror.Validation("dosage", "is required")
	}

	item.Name = in.Name
	item.Dosage = in.Dosage
	item.Category = in.Category
	item.ActiveIngredient = in.ActiveIngredient
	item.Manufacturer = in.Manufacturer
	item.BatchNumber = in.BatchNumber
	item.ExpirationDate = in.ExpirationDate

	if err := s.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update medication item: %w", err)
	}
	return item, nil
}

func (s *Service) ListItems(ctx context.Context, clinicID uuid.UUID, params map[string]string, limit, offset int) ([]*MedicationItem, int, error) {
	return s.items.List(ctx, clinicID, params, limit, offset)
}

// DeactivateItem soft-deletes a catalog item. Items with remaining stock are
// rejected; the caller must zero the stock through the ledger first.
func (s *Service) DeactivateItem(ctx context.Context, clinicID, id uuid.UUID) error {
	item, err := s.items.GetByID(ctx, clinicID, id)
	if err != nil {
		return err
	}
	if item.Stock > 0 {
		return &apperror.InvalidStateError{
			Entity: "medication item",
			State:  fmt.Sprintf("stocked (%d units)", item.Stock),
			Action: "deactivate",
		}
	}
	if item.Status == StatusInactive {
		return nil
	}
	return s.items.SetStatus(ctx, clinicID, id, StatusInactive)
}

// ReactivateItem restores a soft-deleted item.
func (s *Service) ReactivateItem(ctx context.Context, clinicID, id uuid.UUID) error {
	if _, err := s.items.GetByID(ctx, clinicID, id); err != nil {
		return err
	}
	return s.items.SetStatus(ctx, clinicID, id, StatusActive)
}

// -- Stock ledger --

var validAdjustments = map[string]bool{
	AdjustIncrease: true, AdjustDecrease: true, AdjustCorrection: true,
}

// ApplyMovement appends a ledger entry and updates the derived stock counter
// in one transaction. The item row is locked first, so concurrent movements
// against the same medication serialize; a decrease that would drive stock
// negative fails with InsufficientStockError and nothing is written.
func (s *Service) ApplyMovement(ctx context.Context, clinicID uuid.UUID, in MovementInput) (*StockMovement, error) {
	if !validAdjustments[in.AdjustmentType] {
		return nil, apperror.Validation("adjustment_type", "must be increase, decrease, or correction")
	}
	switch in.AdjustmentType {
	case AdjustCorrection:
		if in.Quantity < 0 {
			return nil, apperror.Validation("quantity", "correction target must not be negative")
		}
	default:
		if in.Quantity <= 0 {
			return nil, apperror.Validation("quantity", "must be positive")
		}
	}

	var mv *StockMovement
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		item, err := s.items.GetForUpdate(ctx, clinicID, in.MedicationID)
		if err != nil {
			return err
		}

		var delta int
		switch in.AdjustmentType {
		case AdjustIncrease:
			delta = in.Quantity
		case AdjustDecrease:
			if item.Stock-in.Quantity < 0 {
				return &apperror.InsufficientStockError{
					MedicationID: item.ID.String(),
					Available:    item.Stock,
					Requested:    in.Quantity,
				}
			}
			delta = -in.Quantity
		case AdjustCorrection:
			delta = in.Quantity - item.Stock
		}

		mv = &StockMovement{
			ClinicID:       clinicID,
			MedicationID:   item.ID,
			AdjustmentType: in.AdjustmentType,
			Quantity:       in.Quantity,
			Delta:          delta,
			Notes:          in.Notes,
			CreatedBy:      in.CreatedBy,
		}
		if err := s.movements.Insert(ctx, mv); err != nil {
			return fmt.Errorf("insert stock movement: %w", err)
		}
		return s.items.SetStock(ctx, clinicID, item.ID, item.Stock+delta)
	})
	if err != nil {
		var ise *apperror.InsufficientStockError
		if s.metrics != nil && errors.As(err, &ise) {
			s.metrics.InsufficientStockTotal.Inc()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.StockMovementsApplied.WithLabelValues(in.AdjustmentType).Inc()
	}
	return mv, nil
}

// MedicationStatus reports the catalog status of a medication, for callers
// that validate references without needing the full item.
func (s *Service) MedicationStatus(ctx context.Context, clinicID, medicationID uuid.UUID) (string, error) {
	item, err := s.items.GetByID(ctx, clinicID, medicationID)
	if err != nil {
		return "", err
	}
	return item.Status, nil
}

// CurrentStock returns the derived counter for a medication.
func (s *Service) CurrentStock(ctx context.Context, clinicID, medicationID uuid.UUID) (int, error) {
	item, err := s.items.GetByID(ctx, clinicID, medicationID)
	if err != nil {
		return 0, err
	}
	return item.Stock, nil
}

// ListMovements returns the ledger for one medication, newest first.
func (s *Service) ListMovements(ctx context.Context, clinicID, medicationID uuid.UUID, limit, offset int) ([]*StockMovement, int, error) {
	if _, err := s.items.GetByID(ctx, clinicID, medicationID); err != nil {
		return nil, 0, err
	}
	return s.movements.ListByMedication(ctx, clinicID, medicationID, limit, offset)
}

// ReplayStock recomputes stock from the ledger and compares it to the stored
// counter. The two must always agree; the report exists for audits and tests.
func (s *Service) ReplayStock(ctx context.Context, clinicID, medicationID uuid.UUID) (*ReplayReport, error) {
	item, err := s.items.GetByID(ctx, clinicID, medicationID)
	if err != nil {
		return nil, err
	}
	sum, count, err := s.movements.SumDeltas(ctx, clinicID, medicationID)
	if err != nil {
		return nil, fmt.Errorf("replay ledger: %w", err)
	}
	return &ReplayReport{
		MedicationID: medicationID,
		LedgerSum:    sum,
		StoredStock:  item.Stock,
		Movements:    count,
		Consistent:   sum == item.Stock,
	}, nil
}
