package administration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists administration events. Events are immutable once
// written except for their free-text notes.
type Repository interface {
	Create(ctx context.Context, a *Administration) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Administration, error)
	SetNotes(ctx context.Context, clinicID, id uuid.UUID, notes *string) error
	// ListByDay returns the events whose administered_at falls on the given
	// calendar day, optionally filtered by patient.
	ListByDay(ctx context.Context, clinicID uuid.UUID, day time.Time, patientID *uuid.UUID, limit, offset int) ([]*Administration, int, error)
	ListByPrescription(ctx context.Context, clinicID, prescriptionID uuid.UUID, limit, offset int) ([]*Administration, int, error)
}
