package prescription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/pkg/apperror"
)

// MedicationSource resolves a medication for prescription validation. The
// inventory service satisfies it; the indirection keeps this package from
// importing inventory directly.
type MedicationSource interface {
	MedicationStatus(ctx context.Context, clinicID, medicationID uuid.UUID) (string, error)
}

type Service struct {
	repo        Repository
	medications MedicationSource
	now         func() time.Time
}

func NewService(repo Repository, medications MedicationSource) *Service {
	return &Service{
		repo:        repo,
		medications: medications,
		now:         time.Now,
	}
}

// SetClock overrides the time source; tests pin it to exercise status
// derivation around date boundaries.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Create(ctx context.Context, clinicID uuid.UUID, in Input) (*View, error) {
	if in.PatientID == uuid.Nil {
		return nil, apperror.Validation("patient_id", "is required")
	}
	if in.MedicationID == uuid.Nil {
		return nil, apperror.Validation("medication_id", "is required")
	}
	if in.Dosage == "" {
		return nil, apperror.Validation("dosage", "is required")
	}
	if in.Frequency == "" {
		return nil, apperror.Validation("frequency", "is required")
	}
	if in.StartDate.IsZero() {
		return nil, apperror.Validation("start_date", "is required")
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return nil, apperror.Validation("end_date", "must not be before start_date")
	}

	// The medication must exist in this clinic and be active; prescribing a
	// deactivated item is rejected the same way as a missing one would be.
	status, err := s.medications.MedicationStatus(ctx, clinicID, in.MedicationID)
	if err != nil {
		return nil, err
	}
	if status != "active" {
		return nil, apperror.NotFound("active medication item", in.MedicationID.String())
	}

	p := &Prescription{
		ClinicID:     clinicID,
		PatientID:    in.PatientID,
		MedicationID: in.MedicationID,
		Dosage:       in.Dosage,
		Frequency:    in.Frequency,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Observations: in.Observations,
		PrescribedBy: in.PrescribedBy,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}
	return s.view(p), nil
}

func (s *Service) Get(ctx context.Context, clinicID, id uuid.UUID) (*View, error) {
	p, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	return s.view(p), nil
}

// Cancel flips the one-way cancellation flag. Cancelling twice is an error;
// cancelling a completed prescription is allowed, the flag simply wins.
func (s *Service) Cancel(ctx context.Context, clinicID, id uuid.UUID) (*View, error) {
	p, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if p.Cancelled {
		return nil, &apperror.InvalidStateError{
			Entity: "prescription",
			State:  StatusCancelled,
			Action: "cancel",
		}
	}
	if err := s.repo.SetCancelled(ctx, clinicID, id); err != nil {
		return nil, err
	}
	p.Cancelled = true
	return s.view(p), nil
}

// UpdateObservations replaces the free-text clinical notes. Other fields are
// immutable after creation; dose changes are a new prescription.
func (s *Service) UpdateObservations(ctx context.Context, clinicID, id uuid.UUID, observations *string) (*View, error) {
	p, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetObservations(ctx, clinicID, id, observations); err != nil {
		return nil, err
	}
	p.Observations = observations
	return s.view(p), nil
}

func (s *Service) List(ctx context.Context, clinicID uuid.UUID, patientID *uuid.UUID, limit, offset int) ([]*View, int, error) {
	prescriptions, total, err := s.repo.List(ctx, clinicID, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views := make([]*View, len(prescriptions))
	for i, p := range prescriptions {
		views[i] = s.view(p)
	}
	return views, total, nil
}

func (s *Service) view(p *Prescription) *View {
	return &View{Prescription: p, Status: p.StatusAt(s.now())}
}
