package inventory

import (
	"time"

	"github.com/google/uuid"
)

// Medication item statuses. Status is independent of stock; an inactive item
// keeps its ledger history.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Adjustment types for stock movements.
const (
	AdjustIncrease   = "increase"
	AdjustDecrease   = "decrease"
	AdjustCorrection = "correction"
)

// MedicationItem maps to the medication_item table (the clinic drug catalog).
// Stock is a derived counter: it is only ever written in the same transaction
// as a StockMovement insert and always equals the ledger sum.
type MedicationItem struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ClinicID         uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	Name             string     `db:"name" json:"name"`
	Dosage           string     `db:"dosage" json:"dosage"`
	Category         string     `db:"category" json:"category"`
	ActiveIngredient *string    `db:"active_ingredient" json:"active_ingredient,omitempty"`
	Manufacturer     *string    `db:"manufacturer" json:"manufacturer,omitempty"`
	BatchNumber      *string    `db:"batch_number" json:"batch_number,omitempty"`
	ExpirationDate   *time.Time `db:"expiration_date" json:"expiration_date,omitempty"`
	Stock            int        `db:"stock" json:"stock"`
	Status           string     `db:"status" json:"status"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// StockMovement maps to the stock_movement table: the append-only ledger.
// Rows are never updated or deleted. Seq is strictly increasing per
// medication, so replaying deltas in seq order is deterministic.
//
// Quantity is the caller's requested magnitude (or the absolute target for a
// correction); Delta is the signed change actually applied to stock.
// Current stock equals the sum of Delta over the medication's movements.
type StockMovement struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ClinicID       uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	MedicationID   uuid.UUID  `db:"medication_id" json:"medication_id"`
	Seq            int64      `db:"seq" json:"seq"`
	AdjustmentType string     `db:"adjustment_type" json:"adjustment_type"`
	Quantity       int        `db:"quantity" json:"quantity"`
	Delta          int        `db:"delta" json:"delta"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy      *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// ItemInput carries the caller-supplied fields for creating a catalog item.
type ItemInput struct {
	Name             string     `json:"name"`
	Dosage           string     `json:"dosage"`
	Category         string     `json:"category"`
	ActiveIngredient *string    `json:"active_ingredient,omitempty"`
	Manufacturer     *string    `json:"manufacturer,omitempty"`
	BatchNumber      *string    `json:"batch_number,omitempty"`
	ExpirationDate   *time.Time `json:"expiration_date,omitempty"`
}

// MovementInput carries the caller-supplied fields for a ledger entry.
// For increase/decrease, Quantity is the positive magnitude; for correction,
// Quantity is the absolute stock value to set.
type MovementInput struct {
	MedicationID   uuid.UUID  `json:"medication_id"`
	AdjustmentType string     `json:"adjustment_type"`
	Quantity       int        `json:"quantity"`
	Notes          *string    `json:"notes,omitempty"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
}

// ReplayReport is the result of recomputing stock from the ledger, exposed
// for audits. Consistent is false when the stored counter has diverged from
// the ledger sum, which indicates a bug: no code path may write stock
// without a paired movement.
type ReplayReport struct {
	MedicationID uuid.UUID `json:"medication_id"`
	LedgerSum    int       `json:"ledger_sum"`
	StoredStock  int       `json:"stored_stock"`
	Movements    int       `json:"movements"`
	Consistent   bool      `json:"consistent"`
}
