package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clinicore/clinicore/internal/domain/inventory"
	"github.com/clinicore/clinicore/pkg/apperror"
)

func TestInventoryItemLifecycle(t *testing.T) {
	ctx := context.Background()
	clinicID := newClinic()
	svc := newInventoryService()

	item := createTestItem(t, ctx, svc, clinicID, "Methadone")
	if item.Stock != 0 {
		t.Errorf("new item stock = %d, want 0", item.Stock)
	}
	if item.Status != inventory.StatusActive {
		t.Errorf("new item status = %q, want active", item.Status)
	}

	t.Run("Update_Details", func(t *testing.T) {
		updated, err := svc.UpdateItem(ctx, clinicID, item.ID, inventory.ItemInput{
			Name:         "Methadone",
			Dosage:       "10mg",
			Category:     "opioid-agonist",
			Manufacturer: ptrStr("Pharma Co"),
		})
		if err != nil {
			t.Fatalf("UpdateItem: %v", err)
		}
		if updated.Dosage != "10mg" || updated.Manufacturer == nil {
			t.Errorf("update not applied: %+v", updated)
		}
	})

	t.Run("Deactivate_And_Reactivate", func(t *testing.T) {
		if err := svc.DeactivateItem(ctx, clinicID, item.ID); err != nil {
			t.Fatalf("DeactivateItem: %v", err)
		}
		got, err := svc.GetItem(ctx, clinicID, item.ID)
		if err != nil {
			t.Fatalf("GetItem: %v", err)
		}
		if got.Status != inventory.StatusInactive {
			t.Errorf("status = %q, want inactive", got.Status)
		}
		if err := svc.ReactivateItem(ctx, clinicID, item.ID); err != nil {
			t.Fatalf("ReactivateItem: %v", err)
		}
	})

	t.Run("List_By_Category", func(t *testing.T) {
		_, total, err := svc.ListItems(ctx, clinicID, map[string]string{"category": "opioid-agonist"}, 50, 0)
		if err != nil {
			t.Fatalf("ListItems: %v", err)
		}
		if total != 1 {
			t.Errorf("total = %d, want 1", total)
		}
	})
}

func TestStockLedger(t *testing.T) {
	ctx := context.Background()
	clinicID := newClinic()
	svc := newInventoryService()
	item := createTestItem(t, ctx, svc, clinicID, "Buprenorphine")

	apply := func(kind string, qty int) (*inventory.StockMovement, error) {
		return svc.ApplyMovement(ctx, clinicID, inventory.MovementInput{
			MedicationID:   item.ID,
			AdjustmentType: kind,
			Quantity:       qty,
		})
	}

	t.Run("Increase_Then_Decrease", func(t *testing.T) {
		if _, err := apply(inventory.AdjustIncrease, 20); err != nil {
			t.Fatalf("increase: %v", err)
		}
		mv, err := apply(inventory.AdjustDecrease, 6)
		if err != nil {
			t.Fatalf("decrease: %v", err)
		}
		if mv.Delta != -6 {
			t.Errorf("decrease delta = %d, want -6", mv.Delta)
		}
		stock, err := svc.CurrentStock(ctx, clinicID, item.ID)
		if err != nil {
			t.Fatalf("CurrentStock: %v", err)
		}
		if stock != 14 {
			t.Errorf("stock = %d, want 14", stock)
		}
	})

	t.Run("Decrease_Below_Zero_Rejected", func(t *testing.T) {
		_, err := apply(inventory.AdjustDecrease, 100)
		var ise *apperror.InsufficientStockError
		if !errors.As(err, &ise) {
			t.Fatalf("got %v, want InsufficientStockError", err)
		}
		stock, err := svc.CurrentStock(ctx, clinicID, item.ID)
		if err != nil {
			t.Fatalf("CurrentStock: %v", err)
		}
		if stock != 14 {
			t.Errorf("stock after rejected decrease = %d, want 14", stock)
		}
	})

	t.Run("Correction_Sets_Absolute_Target", func(t *testing.T) {
		mv, err := apply(inventory.AdjustCorrection, 9)
		if err != nil {
			t.Fatalf("correction: %v", err)
		}
		if mv.Delta != -5 || mv.Quantity != 9 {
			t.Errorf("correction delta=%d quantity=%d, want -5/9", mv.Delta, mv.Quantity)
		}
	})

	t.Run("Replay_Matches_Counter", func(t *testing.T) {
		report, err := svc.ReplayStock(ctx, clinicID, item.ID)
		if err != nil {
			t.Fatalf("ReplayStock: %v", err)
		}
		if !report.Consistent {
			t.Errorf("ledger sum %d != stored stock %d", report.LedgerSum, report.StoredStock)
		}
		if report.Movements != 3 {
			t.Errorf("movements = %d, want 3", report.Movements)
		}
	})

	t.Run("Movements_Newest_First", func(t *testing.T) {
		movements, total, err := svc.ListMovements(ctx, clinicID, item.ID, 50, 0)
		if err != nil {
			t.Fatalf("ListMovements: %v", err)
		}
		if total != 3 {
			t.Fatalf("total = %d, want 3", total)
		}
		for i := 1; i < len(movements); i++ {
			if movements[i].Seq >= movements[i-1].Seq {
				t.Errorf("movements not in descending seq order at %d", i)
			}
		}
	})
}

// Concurrent decrements against the same row must serialize on the row lock;
// the stock may never go negative no matter the interleaving.
func TestConcurrentDecrements(t *testing.T) {
	ctx := context.Background()
	clinicID := newClinic()
	svc := newInventoryService()
	item := stockItem(t, ctx, svc, clinicID, "Naltrexone", 5)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyMovement(ctx, clinicID, inventory.MovementInput{
				MedicationID:   item.ID,
				AdjustmentType: inventory.AdjustDecrease,
				Quantity:       1,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	failed := 0
	for err := range errs {
		if err != nil {
			var ise *apperror.InsufficientStockError
			if !errors.As(err, &ise) {
				t.Fatalf("unexpected error: %v", err)
			}
			failed++
		}
	}
	if failed != workers-5 {
		t.Errorf("failed decrements = %d, want %d", failed, workers-5)
	}

	stock, err := svc.CurrentStock(ctx, clinicID, item.ID)
	if err != nil {
		t.Fatalf("CurrentStock: %v", err)
	}
	if stock != 0 {
		t.Errorf("final stock = %d, want 0", stock)
	}

	report, err := svc.ReplayStock(ctx, clinicID, item.ID)
	if err != nil {
		t.Fatalf("ReplayStock: %v", err)
	}
	if !report.Consistent {
		t.Errorf("ledger diverged: sum %d, stored %d", report.LedgerSum, report.StoredStock)
	}
}

func TestDeactivateRequiresZeroStock(t *testing.T) {
	ctx := context.Background()
	clinicID := newClinic()
	svc := newInventoryService()
	item := stockItem(t, ctx, svc, clinicID, "Disulfiram", 3)

	err := svc.DeactivateItem(ctx, clinicID, item.ID)
	var ise *apperror.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("got %v, want InvalidStateError", err)
	}

	_, err = svc.ApplyMovement(ctx, clinicID, inventory.MovementInput{
		MedicationID:   item.ID,
		AdjustmentType: inventory.AdjustCorrection,
		Quantity:       0,
		Notes:          ptrStr("write-off before retiring the item"),
	})
	if err != nil {
		t.Fatalf("correction to zero: %v", err)
	}
	if err := svc.DeactivateItem(ctx, clinicID, item.ID); err != nil {
		t.Fatalf("deactivate after write-off: %v", err)
	}
}

func TestExpirationDateRoundTrip(t *testing.T) {
	ctx := context.Background()
	clinicID := newClinic()
	svc := newInventoryService()

	exp := time.Date(2027, time.January, 31, 0, 0, 0, 0, time.UTC)
	item, err := svc.CreateItem(ctx, clinicID, inventory.ItemInput{
		Name:           "Acamprosate",
		Dosage:         "333mg",
		Category:       "anti-craving",
		ExpirationDate: &exp,
		BatchNumber:    ptrStr("LOT-2027-01"),
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	got, err := svc.GetItem(ctx, clinicID, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.ExpirationDate == nil || !got.ExpirationDate.Equal(exp) {
		t.Errorf("expiration = %v, want %v", got.ExpirationDate, exp)
	}
}
