package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

// =========== MedicationItem Repository ===========

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository {
	return &itemRepoPG{pool: pool}
}

func (r *itemRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const itemCols = `id, clinic_id, name, dosage, category, active_ingredient,
	manufacturer, batch_number, expiration_date, stock, status, created_at, updated_at`

func scanItem(row pgx.Row) (*MedicationItem, error) {
	var m MedicationItem
	err := row.Scan(&m.ID, &m.ClinicID, &m.Name, &m.Dosage, &m.Category, &m.ActiveIngredient,
		&m.Manufacturer, &m.BatchNumber, &m.ExpirationDate, &m.Stock, &m.Status,
		&m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("medication item", "")
	}
	return &m, err
}

func (r *itemRepoPG) Create(ctx context.Context, m *MedicationItem) error {
	m.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medication_item (id, clinic_id, name, dosage, category, active_ingredient,
			manufacturer, batch_number, expiration_date, stock, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		m.ID, m.ClinicID, m.Name, m.Dosage, m.Category, m.ActiveIngredient,
		m.Manufacturer, m.BatchNumber, m.ExpirationDate, m.Stock, m.Status).
		Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *itemRepoPG) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*MedicationItem, error) {
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM medication_item WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (r *itemRepoPG) GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*MedicationItem, error) {
	// Serializes concurrent stock movements on the same medication row.
	return scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM medication_item WHERE id = $1 AND clinic_id = $2 FOR UPDATE`, id, clinicID))
}

func (r *itemRepoPG) Update(ctx context.Context, m *MedicationItem) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication_item SET name=$3, dosage=$4, category=$5, active_ingredient=$6,
			manufacturer=$7, batch_number=$8, expiration_date=$9, updated_at=NOW()
		WHERE id = $1 AND clinic_id = $2`,
		m.ID, m.ClinicID, m.Name, m.Dosage, m.Category, m.ActiveIngredient,
		m.Manufacturer, m.BatchNumber, m.ExpirationDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("medication item", m.ID.String())
	}
	return nil
}

func (r *itemRepoPG) SetStock(ctx context.Context, clinicID, id uuid.UUID, stock int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication_item SET stock=$3, updated_at=NOW()
		WHERE id = $1 AND clinic_id = $2`, id, clinicID, stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("medication item", id.String())
	}
	return nil
}

func (r *itemRepoPG) SetStatus(ctx context.Context, clinicID, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication_item SET status=$3, updated_at=NOW()
		WHERE id = $1 AND clinic_id = $2`, id, clinicID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("medication item", id.String())
	}
	return nil
}

func (r *itemRepoPG) List(ctx context.Context, clinicID uuid.UUID, params map[string]string, limit, offset int) ([]*MedicationItem, int, error) {
	where := []string{"clinic_id = $1"}
	args := []interface{}{clinicID}

	if v := params["status"]; v != "" {
		args = append(args, v)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if v := params["category"]; v != "" {
		args = append(args, v)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if v := params["name"]; v != "" {
		args = append(args, "%"+v+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM medication_item WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM medication_item WHERE `+cond+
			fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*MedicationItem
	for rows.Next() {
		m, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *itemRepoPG) ListByClinic(ctx context.Context, clinicID uuid.UUID) ([]*MedicationItem, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+itemCols+` FROM medication_item WHERE clinic_id = $1 ORDER BY created_at DESC`, clinicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*MedicationItem
	for rows.Next() {
		m, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// =========== StockMovement Repository ===========

type movementRepoPG struct{ pool *pgxpool.Pool }

func NewMovementRepoPG(pool *pgxpool.Pool) MovementRepository {
	return &movementRepoPG{pool: pool}
}

func (r *movementRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const movementCols = `id, clinic_id, medication_id, seq, adjustment_type,
	quantity, delta, notes, created_by, created_at`

func scanMovement(row pgx.Row) (*StockMovement, error) {
	var mv StockMovement
	err := row.Scan(&mv.ID, &mv.ClinicID, &mv.MedicationID, &mv.Seq, &mv.AdjustmentType,
		&mv.Quantity, &mv.Delta, &mv.Notes, &mv.CreatedBy, &mv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("stock movement", "")
	}
	return &mv, err
}

func (r *movementRepoPG) Insert(ctx context.Context, mv *StockMovement) error {
	mv.ID = uuid.New()
	// seq is a bigserial; RETURNING gives the ledger position.
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO stock_movement (id, clinic_id, medication_id, adjustment_type,
			quantity, delta, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING seq, created_at`,
		mv.ID, mv.ClinicID, mv.MedicationID, mv.AdjustmentType,
		mv.Quantity, mv.Delta, mv.Notes, mv.CreatedBy).
		Scan(&mv.Seq, &mv.CreatedAt)
}

func (r *movementRepoPG) ListByMedication(ctx context.Context, clinicID, medicationID uuid.UUID, limit, offset int) ([]*StockMovement, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_movement WHERE clinic_id = $1 AND medication_id = $2`,
		clinicID, medicationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+movementCols+` FROM stock_movement
		WHERE clinic_id = $1 AND medication_id = $2
		ORDER BY seq DESC LIMIT $3 OFFSET $4`,
		clinicID, medicationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var movements []*StockMovement
	for rows.Next() {
		mv, err := scanMovement(rows)
		if err != nil {
			return nil, 0, err
		}
		movements = append(movements, mv)
	}
	return movements, total, rows.Err()
}

func (r *movementRepoPG) SumDeltas(ctx context.Context, clinicID, medicationID uuid.UUID) (int, int, error) {
	var sum, count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(SUM(delta), 0), COUNT(*) FROM stock_movement
		WHERE clinic_id = $1 AND medication_id = $2`,
		clinicID, medicationID).Scan(&sum, &count)
	return sum, count, err
}
