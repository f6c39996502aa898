package prescription

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists prescriptions. All reads are clinic-scoped.
type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Prescription, error)
	// SetCancelled flips the one-way cancellation flag.
	SetCancelled(ctx context.Context, clinicID, id uuid.UUID) error
	SetObservations(ctx context.Context, clinicID, id uuid.UUID, observations *string) error
	List(ctx context.Context, clinicID uuid.UUID, patientID *uuid.UUID, limit, offset int) ([]*Prescription, int, error)
}
