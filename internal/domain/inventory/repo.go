package inventory

import (
	"context"

	"github.com/google/uuid"
)

// ItemRepository persists medication catalog items. Every method is scoped
// to a clinic; a lookup for another clinic's item behaves as not found.
type ItemRepository interface {
	Create(ctx context.Context, item *MedicationItem) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*MedicationItem, error)
	// GetForUpdate locks the item row for the duration of the surrounding
	// transaction. It is only valid inside one.
	GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*MedicationItem, error)
	Update(ctx context.Context, item *MedicationItem) error
	SetStock(ctx context.Context, clinicID, id uuid.UUID, stock int) error
	SetStatus(ctx context.Context, clinicID, id uuid.UUID, status string) error
	List(ctx context.Context, clinicID uuid.UUID, params map[string]string, limit, offset int) ([]*MedicationItem, int, error)
	// ListByClinic returns the whole clinic catalog, used by the expiry scan
	// and the low-stock advisory. Per-clinic catalogs are small.
	ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*MedicationItem, error)
}

// MovementRepository persists the append-only stock ledger. There is no
// update or delete.
type MovementRepository interface {
	Insert(ctx context.Context, mv *StockMovement) error
	ListByMedication(ctx context.Context, clinicID, medicationID uuid.UUID, limit, offset int) ([]*StockMovement, int, error)
	// SumDeltas replays the ledger for one medication and returns the summed
	// delta and the movement count.
	SumDeltas(ctx context.Context, clinicID, medicationID uuid.UUID) (sum int, count int, err error)
}
