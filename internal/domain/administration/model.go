package administration

import (
	"time"

	"github.com/google/uuid"
)

// Administration outcomes. Only an administered dose touches stock; skipped
// and refused are record-keeping events.
const (
	StatusAdministered = "administered"
	StatusSkipped      = "skipped"
	StatusRefused      = "refused"
)

// Administration maps to the administration table: one row per dose event.
// MedicationID and PatientID are denormalized from the prescription at write
// time so daily rounds can be listed without joins.
type Administration struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ClinicID       uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	PrescriptionID uuid.UUID  `db:"prescription_id" json:"prescription_id"`
	MedicationID   uuid.UUID  `db:"medication_id" json:"medication_id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	Dosage         string     `db:"dosage" json:"dosage"`
	Status         string     `db:"status" json:"status"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	AdministeredBy *uuid.UUID `db:"administered_by" json:"administered_by,omitempty"`
	AdministeredAt time.Time  `db:"administered_at" json:"administered_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Input carries the caller-supplied fields for recording a dose event.
// AdministeredAt defaults to the current time when zero; Dosage defaults to
// the prescription's dosage.
type Input struct {
	PrescriptionID uuid.UUID  `json:"prescription_id"`
	Dosage         string     `json:"dosage,omitempty"`
	Status         string     `json:"status"`
	Notes          *string    `json:"notes,omitempty"`
	AdministeredBy *uuid.UUID `json:"administered_by,omitempty"`
	AdministeredAt time.Time  `json:"administered_at,omitempty"`
}
