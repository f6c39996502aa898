package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/pkg/apperror"
)

// -- Mock Repositories --

type itemKey struct {
	clinic uuid.UUID
	id     uuid.UUID
}

type mockItemRepo struct {
	mu    sync.Mutex
	items map[itemKey]*MedicationItem
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[itemKey]*MedicationItem)}
}

func (m *mockItemRepo) Create(_ context.Context, item *MedicationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()
	cp := *item
	m.items[itemKey{item.ClinicID, item.ID}] = &cp
	return nil
}

func (m *mockItemRepo) GetByID(_ context.Context, clinicID, id uuid.UUID) (*MedicationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemKey{clinicID, id}]
	if !ok {
		return nil, apperror.NotFound("medication item", id.String())
	}
	cp := *item
	return &cp, nil
}

func (m *mockItemRepo) GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*MedicationItem, error) {
	return m.GetByID(ctx, clinicID, id)
}

func (m *mockItemRepo) Update(_ context.Context, item *MedicationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := itemKey{item.ClinicID, item.ID}
	if _, ok := m.items[key]; !ok {
		return apperror.NotFound("medication item", item.ID.String())
	}
	cp := *item
	m.items[key] = &cp
	return nil
}

func (m *mockItemRepo) SetStock(_ context.Context, clinicID, id uuid.UUID, stock int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemKey{clinicID, id}]
	if !ok {
		return apperror.NotFound("medication item", id.String())
	}
	item.Stock = stock
	return nil
}

func (m *mockItemRepo) SetStatus(_ context.Context, clinicID, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemKey{clinicID, id}]
	if !ok {
		return apperror.NotFound("medication item", id.String())
	}
	item.Status = status
	return nil
}

func (m *mockItemRepo) List(_ context.Context, clinicID uuid.UUID, params map[string]string, limit, offset int) ([]*MedicationItem, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*MedicationItem
	for key, item := range m.items {
		if key.clinic != clinicID {
			continue
		}
		if v := params["status"]; v != "" && item.Status != v {
			continue
		}
		if v := params["category"]; v != "" && item.Category != v {
			continue
		}
		cp := *item
		result = append(result, &cp)
	}
	total := len(result)
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockItemRepo) ListByClinic(_ context.Context, clinicID uuid.UUID) ([]*MedicationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*MedicationItem
	for key, item := range m.items {
		if key.clinic == clinicID {
			cp := *item
			result = append(result, &cp)
		}
	}
	return result, nil
}

type mockMovementRepo struct {
	mu        sync.Mutex
	movements []*StockMovement
	nextSeq   int64
}

func newMockMovementRepo() *mockMovementRepo {
	return &mockMovementRepo{}
}

func (m *mockMovementRepo) Insert(_ context.Context, mv *StockMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSeq++
	mv.ID = uuid.New()
	mv.Seq = m.nextSeq
	mv.CreatedAt = time.Now()
	cp := *mv
	m.movements = append(m.movements, &cp)
	return nil
}

func (m *mockMovementRepo) ListByMedication(_ context.Context, clinicID, medicationID uuid.UUID, limit, offset int) ([]*StockMovement, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*StockMovement
	for i := len(m.movements) - 1; i >= 0; i-- {
		mv := m.movements[i]
		if mv.ClinicID == clinicID && mv.MedicationID == medicationID {
			cp := *mv
			result = append(result, &cp)
		}
	}
	total := len(result)
	if offset >= len(result) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], total, nil
}

func (m *mockMovementRepo) SumDeltas(_ context.Context, clinicID, medicationID uuid.UUID) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum, count := 0, 0
	for _, mv := range m.movements {
		if mv.ClinicID == clinicID && mv.MedicationID == medicationID {
			sum += mv.Delta
			count++
		}
	}
	return sum, count, nil
}

// mockTxRunner serializes transactions with a mutex, mimicking the row lock
// concurrent movements contend on in Postgres.
type mockTxRunner struct {
	mu sync.Mutex
}

func (r *mockTxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx)
}

func newTestService() (*Service, *mockItemRepo, *mockMovementRepo) {
	items := newMockItemRepo()
	movements := newMockMovementRepo()
	svc := NewService(items, movements, &mockTxRunner{})
	return svc, items, movements
}

func seedItem(t *testing.T, svc *Service, clinicID uuid.UUID) *MedicationItem {
	t.Helper()
	item, err := svc.CreateItem(context.Background(), clinicID, ItemInput{
		Name:     "Methadone",
		Dosage:   "10mg",
		Category: "opioid-agonist",
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return item
}

// -- Catalog tests --

func TestCreateItemStartsWithZeroStock(t *testing.T) {
	svc, _, _ := newTestService()
	clinicID := uuid.New()

	item := seedItem(t, svc, clinicID)

	if item.Stock != 0 {
		t.Errorf("new item stock = %d, want 0", item.Stock)
	}
	if item.Status != StatusActive {
		t.Errorf("new item status = %q, want %q", item.Status, StatusActive)
	}
}

func TestCreateItemValidation(t *testing.T) {
	svc, _, _ := newTestService()
	clinicID := uuid.New()

	cases := []struct {
		name string
		in   ItemInput
	}{
		{"missing name", ItemInput{Dosage: "10mg", Category: "opioid-agonist"}},
		{"missing dosage", ItemInput{Name: "Methadone", Category: "opioid-agonist"}},
		{"missing category", ItemInput{Name: "Methadone", Dosage: "10mg"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateItem(context.Background(), clinicID, tc.in)
			var ve *apperror.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestGetItemScopedToClinic(t *testing.T) {
	svc, _, _ := newTestService()
	clinicID := uuid.New()
	item := seedItem(t, svc, clinicID)

	if _, err := svc.GetItem(context.Background(), clinicID, item.ID); err != nil {
		t.Fatalf("same clinic get: %v", err)
	}

	_, err := svc.GetItem(context.Background(), uuid.New(), item.ID)
	var nf *apperror.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("cross-clinic get = %v, want NotFoundError", err)
	}
}

func TestDeactivateItemWithStockRejected(t *testing.T) {
	svc, _, _ := newTestService()
	clinicID := uuid.New()
	item := seedItem(t, svc, clinicID)

	if _, err := svc.ApplyMovement(context.Background(), clinicID, MovementInput{
		MedicationID: item.ID, AdjustmentType: AdjustIncrease, Quantity: 5,
	}); err != nil {
		t.Fatalf("increase: %v", err)
	}

	err := svc.DeactivateItem(context.Background(), clinicID, item.ID)
	var ise *apperror.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("deactivate stocked item = %v, want InvalidStateError", err)
	}

	// Zero out through the ledger, then deactivation works.
	if _, err := svc.ApplyMovement(context.Background(), clinicID, MovementInput{
		MedicationID: item.ID, AdjustmentType: AdjustCorrection, Quantity: 0,
	}); err != nil {
		t.Fatalf("correction to zero: %v", err)
	}
	if err := svc.DeactivateItem(context.Background(), clinicID, item.ID); err != nil {
		t.Fatalf("deactivate empty item: %v", err)
	}

	got, _ := svc.GetItem(context.Background(), clinicID, item.ID)
	if got.Status != StatusInactive {
		t.Errorf("status = %q, want %q", got.Status, StatusInactive)
	}

	// Idempotent.
	if err := svc.DeactivateItem(context.Background(), clinicID, item.ID); err != nil {
		t.Errorf("second deactivate: %v", err)
	}
}

func TestUpdateItemCannotTouchStock(t *testing.T) {
	svc, _, _ := newTestService()
	clinicID := uuid.New()
	item := seedItem(t, svc, clinicID)

	if _, err := svc.ApplyMovement(context.Background(), clinicID, MovementInput{
		MedicationID: item.ID, AdjustmentType: AdjustIncrease, Quantity: 7,
	}); err != nil {
		t.Fatalf("increase: %v", err)
	}

	updated, err := svc.UpdateItem(context.Background(), clinicID, item.ID, ItemInput{
		Name: "Methadone HCl", Dosage: "10mg", Category: "opioid-agonist",
	})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if updated.Stock != 7 {
		t.Errorf("stock after catalog update = %d, want 7", updated.Stock)
	}
	if updated.Name != "Methadone HCl" {
		t.Errorf("name = %q", updated.Name)
	}
}

// -- Ledger tests --

func TestApplyMovementIncreaseDecrease(t *testing.T) {
	svc, _, _ := newTestService()
	clinicID := uuid.New()
	item := seedItem(t, svc, clinicID)
	ctx := context.Background()

	mv, err := svc.ApplyMovement(ctx, clinicID, MovementInput{
		MedicationID: item.ID, AdjustmentType: AdjustIncrease, Quantity: 10,
	})
	if err != nil {
		t.Fatalf("increase: %v", err)
	}
	if mv.Delta != 10 {
		t.Errorf("increase delta = %d, want 10", mv.Delta)
	}

	mv, err = svc.ApplyMovement(ctx, clinicID, MovementInput{
		MedicationID: item.ID, AdjustmentType: AdjustDecrease, Quantity: 4,
	})
	if err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if mv.Delta != -4 {
		t.Errorf("decrease delta = %d, want -4", mv.Delta)
	}

	stock, err := svc.CurrentStock(ctx, clinicID, item.ID)
	if err != nil {
		t.Fatalf("CurrentStock: %v", err)
	}
	if stock != 6 {
		t.Errorf("stock = %d, want 6", stock)
	}
}

func TestApplyMovementInsufficientStock(t *testing.T) {
	svc, _, movements := newTestService()
	clinicID := uuid.New()
	item := seedItem(t, svc, clinicID)
	ctx := context.Background()

	if _, err := svc.ApplyMovement(ctx, clinicID, MovementInput{
		MedicationID: item.ID, AdjustmentType: AdjustIncrease, Quantity: 3,
	}); err != nil {
		t.Fatalf("increase: %v", err)
	}

	_, err := svc.ApplyMovement(ctx, clinicID, MovementInput{
		MedicationID: item.ID, AdjustmentType: AdjustDecrease, Quantity: 5,
	})
	var ise *apperror.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("got %v, want InsufficientStockError", err)
	}
	if ise.Available != 3 || ise.Requested != 5 {
		t.Errorf("error detail = %d/%d, want 3/5", ise.Available, ise.Requested)
	}

	// The rejected movement must not have been written.
	_, count, _ := movements.SumDeltas(ctx, clinicID, item.ID)
	if count != 1 {
		t.Errorf("ledger entries = %d, want 1", count)
	}
	stock, _ := svc.CurrentStock(ctx, clinicID, item.ID)
	if stock != 3 {
		t.Errorf("stock = %d, want 3", stock)
	}
}

func TestApplyMovementCorrection(t *testing.T) {
	svc, _, _ := newTestService()
	clinicID := uuid.New()
	item := seedItem(t, svc, clinicID)
	ctx := context.Background()

	if _, err := svc.ApplyMovement(ctx, clinicID, MovementInput{
		MedicationID: item.ID, AdjustmentType: AdjustIncrease, Quantity: 10,
	}); err != nil {
		t.Fatalf("increase: %v", err)
	}

	// Correction records the signed delta, not the target.
	mv, err := svc.ApplyMovement(ctx, clinicID, MovementInput{
		MedicationID: item.ID, AdjustmentType: AdjustCorrection, Quantity: 4,
	})
	if err != nil {
		t.Fatalf("correction down: %v", err)
	}
	if mv.Delta != -6 {
		t.Errorf("correction delta = %d, want -6", mv.Delta)
	}
	if mv.Quantity != 4 {
		t.Errorf("correction quantity = %d, want 4", mv.Quantity)
	}

	mv, err = svc.ApplyMovement(ctx, clinicID, MovementInput{
		MedicationID: item.ID, AdjustmentType: AdjustCorrection, Quantity: 9,
	})
	if err != nil {
		t.Fatalf("correction up: %v", err)
	}
	if mv.Delta != 5 {
		t.Errorf("correction delta = %d, want 5", mv.Delta)
	}

	stock, _ := svc.CurrentStock(ctx, clinicID, item.ID)
	if stock != 9 {
		t.Errorf("stock = %d, want 9", stock)
	}
}

func TestApplyMovementValidation(t *testing.T) {
	svc, _, _ := newTestService()
	clinicID := uuid.New()
	item := seedItem(t, svc, clinicID)
	ctx := context.Background()

	cases := []struct {
		name string
		in   MovementInput
	}{
		{"unknown type", MovementInput{MedicationID: item.ID, AdjustmentType: "transfer", Quantity: 1}},
		{"zero increase", MovementInput{MedicationID: item.ID, AdjustmentType: AdjustIncrease, Quantity: 0}},
		{"negative decrease", MovementInput{MedicationID: item.ID, AdjustmentType: AdjustDecrease, Quantity: -1}},
		{"negative correction", MovementInput{MedicationID: item.ID, AdjustmentType: AdjustCorrection, Quantity: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ApplyMovement(ctx, clinicID, tc.in)
			var ve *apperror.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestReplayStockMatchesLedger(t *testing.T) {
	svc, _, _ := newTestService()
	clinicID := uuid.New()
	item := seedItem(t, svc, clinicID)
	ctx := context.Background()

	steps := []MovementInput{
		{MedicationID: item.ID, AdjustmentType: AdjustIncrease, Quantity: 20},
		{MedicationID: item.ID, AdjustmentType: AdjustDecrease, Quantity: 3},
		{MedicationID: item.ID, AdjustmentType: AdjustCorrection, Quantity: 12},
		{MedicationID: item.ID, AdjustmentType: AdjustDecrease, Quantity: 2},
	}
	for i, in := range steps {
		if _, err := svc.ApplyMovement(ctx, clinicID, in); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	report, err := svc.ReplayStock(ctx, clinicID, item.ID)
	if err != nil {
		t.Fatalf("ReplayStock: %v", err)
	}
	if !report.Consistent {
		t.Errorf("ledger sum %d diverged from stored stock %d", report.LedgerSum, report.StoredStock)
	}
	if report.StoredStock != 10 {
		t.Errorf("stored stock = %d, want 10", report.StoredStock)
	}
	if report.Movements != 4 {
		t.Errorf("movements = %d, want 4", report.Movements)
	}
}

func TestConcurrentDecrementsNeverGoNegative(t *testing.T) {
	svc, _, _ := newTestService()
	clinicID := uuid.New()
	item := seedItem(t, svc, clinicID)
	ctx := context.Background()

	if _, err := svc.ApplyMovement(ctx, clinicID, MovementInput{
		MedicationID: item.ID, AdjustmentType: AdjustIncrease, Quantity: 1,
	}); err != nil {
		t.Fatalf("increase: %v", err)
	}

	// Two simultaneous decrements against stock of one: exactly one wins.
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.ApplyMovement(ctx, clinicID, MovementInput{
				MedicationID: item.ID, AdjustmentType: AdjustDecrease, Quantity: 1,
			})
			results <- err
		}()
	}

	var failures int
	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			var ise *apperror.InsufficientStockError
			if !errors.As(err, &ise) {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Errorf("failures = %d, want exactly 1", failures)
	}

	stock, _ := svc.CurrentStock(ctx, clinicID, item.ID)
	if stock != 0 {
		t.Errorf("stock = %d, want 0", stock)
	}
}

func TestListMovementsNewestFirst(t *testing.T) {
	svc, _, _ := newTestService()
	clinicID := uuid.New()
	item := seedItem(t, svc, clinicID)
	ctx := context.Background()

	for _, q := range []int{5, 3, 8} {
		if _, err := svc.ApplyMovement(ctx, clinicID, MovementInput{
			MedicationID: item.ID, AdjustmentType: AdjustIncrease, Quantity: q,
		}); err != nil {
			t.Fatalf("increase %d: %v", q, err)
		}
	}

	movements, total, err := svc.ListMovements(ctx, clinicID, item.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListMovements: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	for i := 1; i < len(movements); i++ {
		if movements[i].Seq > movements[i-1].Seq {
			t.Errorf("movements not in descending seq order")
		}
	}
}
