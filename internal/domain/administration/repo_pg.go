package administration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/pkg/apperror"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const cols = `id, clinic_id, prescription_id, medication_id, patient_id,
	dosage, status, notes, administered_by, administered_at, created_at`

func scan(row pgx.Row) (*Administration, error) {
	var a Administration
	err := row.Scan(&a.ID, &a.ClinicID, &a.PrescriptionID, &a.MedicationID, &a.PatientID,
		&a.Dosage, &a.Status, &a.Notes, &a.AdministeredBy, &a.AdministeredAt, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("administration", "")
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Administration) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO administration (id, clinic_id, prescription_id, medication_id, patient_id,
			dosage, status, notes, administered_by, administered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		a.ID, a.ClinicID, a.PrescriptionID, a.MedicationID, a.PatientID,
		a.Dosage, a.Status, a.Notes, a.AdministeredBy, a.AdministeredAt).
		Scan(&a.CreatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Administration, error) {
	return scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM administration WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (r *repoPG) SetNotes(ctx context.Context, clinicID, id uuid.UUID, notes *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE administration SET notes = $3 WHERE id = $1 AND clinic_id = $2`, id, clinicID, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("administration", id.String())
	}
	return nil
}

func (r *repoPG) ListByDay(ctx context.Context, clinicID uuid.UUID, day time.Time, patientID *uuid.UUID, limit, offset int) ([]*Administration, int, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	cond := `clinic_id = $1 AND administered_at >= $2 AND administered_at < $3`
	args := []interface{}{clinicID, dayStart, dayEnd}
	if patientID != nil {
		args = append(args, *patientID)
		cond += fmt.Sprintf(` AND patient_id = $%d`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM administration WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+cols+` FROM administration WHERE `+cond+
			fmt.Sprintf(` ORDER BY administered_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*Administration
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, a)
	}
	return events, total, rows.Err()
}

func (r *repoPG) ListByPrescription(ctx context.Context, clinicID, prescriptionID uuid.UUID, limit, offset int) ([]*Administration, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM administration WHERE clinic_id = $1 AND prescription_id = $2`,
		clinicID, prescriptionID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+cols+` FROM administration
		WHERE clinic_id = $1 AND prescription_id = $2
		ORDER BY administered_at DESC LIMIT $3 OFFSET $4`,
		clinicID, prescriptionID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*Administration
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, a)
	}
	return events, total, rows.Err()
}
