package prescription

import (
	"context"
	"errors"
	"fmt"

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

const cols = `id, clinic_id, patient_id, medication_id, dosage, frequency,
	start_date, end_date, cancelled, observations, prescribed_by, created_at, updated_at`

func scan(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.ClinicID, &p.PatientID, &p.MedicationID, &p.Dosage, &p.Frequency,
		&p.StartDate, &p.EndDate, &p.Cancelled, &p.Observations, &p.PrescribedBy,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("prescription", "")
	}
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescription (id, clinic_id, patient_id, medication_id, dosage, frequency,
			start_date, end_date, observations, prescribed_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING cancelled, created_at, updated_at`,
		p.ID, p.ClinicID, p.PatientID, p.MedicationID, p.Dosage, p.Frequency,
		p.StartDate, p.EndDate, p.Observations, p.PrescribedBy).
		Scan(&p.Cancelled, &p.CreatedAt, &p.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*Prescription, error) {
	return scan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM prescription WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (r *repoPG) SetCancelled(ctx context.Context, clinicID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET cancelled = TRUE, updated_at = NOW()
		WHERE id = $1 AND clinic_id = $2`, id, clinicID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("prescription", id.String())
	}
	return nil
}

func (r *repoPG) SetObservations(ctx context.Context, clinicID, id uuid.UUID, observations *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescription SET observations = $3, updated_at = NOW()
		WHERE id = $1 AND clinic_id = $2`, id, clinicID, observations)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("prescription", id.String())
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, clinicID uuid.UUID, patientID *uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	cond := `clinic_id = $1`
	args := []interface{}{clinicID}
	if patientID != nil {
		cond += ` AND patient_id = $2`
		args = append(args, *patientID)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM prescription WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+cols+` FROM prescription WHERE `+cond+
			fmt.Sprintf(` ORDER BY start_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
				len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var prescriptions []*Prescription
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		prescriptions = append(prescriptions, p)
	}
	return prescriptions, total, rows.Err()
}
