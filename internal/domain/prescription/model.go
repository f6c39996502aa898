package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Prescription statuses. Status is never stored: it is derived from the
// cancelled flag and the date range at read time, so a prescription whose end
// date passes overnight reads as completed with no batch job involved.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Prescription maps to the prescription table. EndDate nil means open-ended.
type Prescription struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ClinicID     uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	MedicationID uuid.UUID  `db:"medication_id" json:"medication_id"`
	Dosage       string     `db:"dosage" json:"dosage"`
	Frequency    string     `db:"frequency" json:"frequency"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	Cancelled    bool       `db:"cancelled" json:"cancelled"`
	Observations *string    `db:"observations" json:"observations,omitempty"`
	PrescribedBy *uuid.UUID `db:"prescribed_by" json:"prescribed_by,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusAt derives the prescription status at the given instant. Cancellation
// wins over everything; otherwise an end date strictly before today means
// completed. The comparison is at date granularity, so a prescription ending
// today is still active for the rest of the day.
func (p *Prescription) StatusAt(now time.Time) string {
	if p.Cancelled {
		return StatusCancelled
	}
	if p.EndDate != nil {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end := time.Date(p.EndDate.Year(), p.EndDate.Month(), p.EndDate.Day(), 0, 0, 0, 0, now.Location())
		if end.Before(today) {
			return StatusCompleted
		}
	}
	return StatusActive
}

// Input carries the caller-supplied fields for creating a prescription.
type Input struct {
	PatientID    uuid.UUID  `json:"patient_id"`
	MedicationID uuid.UUID  `json:"medication_id"`
	Dosage       string     `json:"dosage"`
	Frequency    string     `json:"frequency"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Observations *string    `json:"observations,omitempty"`
	PrescribedBy *uuid.UUID `json:"prescribed_by,omitempty"`
}

// View is a Prescription with its derived status attached for API responses.
type View struct {
	*Prescription
	Status string `json:"status"`
}
