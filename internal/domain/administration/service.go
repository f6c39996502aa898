package administration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/internal/domain/inventory"
	"github.com/clinicore/clinicore/internal/domain/prescription"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/telemetry"
	"github.com/clinicore/clinicore/pkg/apperror"
)

// PrescriptionSource resolves prescriptions for dose validation. The
// prescription repository satisfies it.
type PrescriptionSource interface {
	GetByID(ctx context.Context, clinicID, id uuid.UUID) (*prescription.Prescription, error)
}

// StockLedger applies stock movements. The inventory service satisfies it;
// inside a transaction its movement joins the surrounding unit of work.
type StockLedger interface {
	ApplyMovement(ctx context.Context, clinicID uuid.UUID, in inventory.MovementInput) (*inventory.StockMovement, error)
}

type Service struct {
	repo          Repository
	prescriptions PrescriptionSource
	ledger        StockLedger
	tx            db.Runner
	now           func() time.Time
	metrics       *telemetry.Metrics
}

func NewService(repo Repository, prescriptions PrescriptionSource, ledger StockLedger, tx db.Runner) *Service {
	return &Service{
		repo:          repo,
		prescriptions: prescriptions,
		ledger:        ledger,
		tx:            tx,
		now:           time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) SetMetrics(m *telemetry.Metrics) {
	s.metrics = m
}

var validStatuses = map[string]bool{
	StatusAdministered: true, StatusSkipped: true, StatusRefused: true,
}

// Record writes a dose event against a prescription. An administered dose
// requires the prescription to be active right now and decrements stock by
// one unit in the same transaction as the event insert: either both land or
// neither does, so a dose can never be recorded against stock that is not
// there. Skipped and refused doses are accepted regardless of prescription
// state or stock; the clinical record of a refusal matters even when the
// prescription has since been cancelled.
func (s *Service) Record(ctx context.Context, clinicID uuid.UUID, in Input) (*Administration, error) {
	if !validStatuses[in.Status] {
		return nil, apperror.Validation("status", "must be administered, skipped, or refused")
	}
	if in.PrescriptionID == uuid.Nil {
		return nil, apperror.Validation("prescription_id", "is required")
	}

	rx, err := s.prescriptions.GetByID(ctx, clinicID, in.PrescriptionID)
	if err != nil {
		return nil, err
	}

	at := in.AdministeredAt
	if at.IsZero() {
		at = s.now()
	}
	dosage := in.Dosage
	if dosage == "" {
		dosage = rx.Dosage
	}

	event := &Administration{
		ClinicID:       clinicID,
		PrescriptionID: rx.ID,
		MedicationID:   rx.MedicationID,
		PatientID:      rx.PatientID,
		Dosage:         dosage,
		Status:         in.Status,
		Notes:          in.Notes,
		AdministeredBy: in.AdministeredBy,
		AdministeredAt: at,
	}

	if in.Status != StatusAdministered {
		if err := s.repo.Create(ctx, event); err != nil {
			return nil, fmt.Errorf("record administration: %w", err)
		}
		s.countRecorded(in.Status)
		return event, nil
	}

	if status := rx.StatusAt(s.now()); status != prescription.StatusActive {
		return nil, &apperror.InvalidStateError{
			Entity: "prescription",
			State:  status,
			Action: "administer",
		}
	}

	notes := fmt.Sprintf("administered dose for prescription %s", rx.ID)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, event); err != nil {
			return fmt.Errorf("record administration: %w", err)
		}
		_, err := s.ledger.ApplyMovement(ctx, clinicID, inventory.MovementInput{
			MedicationID:   rx.MedicationID,
			AdjustmentType: inventory.AdjustDecrease,
			Quantity:       1,
			Notes:          &notes,
			CreatedBy:      in.AdministeredBy,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.countRecorded(in.Status)
	return event, nil
}

func (s *Service) countRecorded(status string) {
	if s.metrics != nil {
		s.metrics.AdministrationsRecorded.WithLabelValues(status).Inc()
	}
}

func (s *Service) Get(ctx context.Context, clinicID, id uuid.UUID) (*Administration, error) {
	return s.repo.GetByID(ctx, clinicID, id)
}

// UpdateNotes replaces the free-text notes on an event. The status and
// timestamps are immutable; a wrongly recorded dose is corrected through the
// stock ledger, not by editing the event.
func (s *Service) UpdateNotes(ctx context.Context, clinicID, id uuid.UUID, notes *string) (*Administration, error) {
	event, err := s.repo.GetByID(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetNotes(ctx, clinicID, id, notes); err != nil {
		return nil, err
	}
	event.Notes = notes
	return event, nil
}

// ListByDay returns the clinic's dose events for one calendar day, the view
// nursing staff work from during rounds.
func (s *Service) ListByDay(ctx context.Context, clinicID uuid.UUID, day time.Time, patientID *uuid.UUID, limit, offset int) ([]*Administration, int, error) {
	return s.repo.ListByDay(ctx, clinicID, day, patientID, limit, offset)
}

func (s *Service) ListByPrescription(ctx context.Context, clinicID, prescriptionID uuid.UUID, limit, offset int) ([]*Administration, int, error) {
	return s.repo.ListByPrescription(ctx, clinicID, prescriptionID, limit, offset)
}
