package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/trade-ledger/ledger"
	"github.com/warp/trade-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedItem(t *testing.T, st *sqlite.Store, id string) ledger.Item {
	t.Helper()
	item := ledger.Item{
		ID:            ledger.ItemID(id),
		BusinessID:    "biz-1",
		Name:          "Rice 5kg",
		Unit:          "bag",
		PurchasePrice: ledger.MustDecimal("10.25"),
		SellingPrice:  ledger.MustDecimal("14.50"),
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, st.InsertItem(context.Background(), item))
	return item
}

// =============================================================================
// ROUND-TRIP TESTS
// =============================================================================

func TestSQLite_Item_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	want := seedItem(t, st, "item-1")

	got, err := st.GetItem(context.Background(), "item-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.True(t, got.PurchasePrice.Equal(want.PurchasePrice), "decimal survived as text")
	assert.True(t, got.SellingPrice.Equal(want.SellingPrice))
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
	assert.False(t, got.Deleted)
}

func TestSQLite_GetMissing_ReturnsNil(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	item, err := st.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, item)

	p, err := st.GetPurchase(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSQLite_Order_NullableReferences(t *testing.T) {
	// Orders start with no partner/purchase/sale links; the NULL columns
	// must survive a round trip and later fill in on update.

	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	o := ledger.Order{
		ID:         "order-1",
		BusinessID: "biz-1",
		ItemID:     "item-1",
		Quantity:   5,
		Status:     ledger.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, st.InsertOrder(ctx, o))

	got, err := st.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.PartnerID)
	assert.Nil(t, got.PurchaseID)
	assert.Nil(t, got.SaleID)

	purchaseID := ledger.PurchaseID("p-1")
	got.Status = ledger.StatusPurchased
	got.PurchaseID = &purchaseID
	got.UpdatedAt = now.Add(time.Second)
	require.NoError(t, st.UpdateOrder(ctx, *got))

	got, err = st.GetOrder(ctx, "order-1")
	require.NoError(t, err)
	require.NotNil(t, got.PurchaseID)
	assert.Equal(t, purchaseID, *got.PurchaseID)
	assert.Equal(t, ledger.StatusPurchased, got.Status)
}

func TestSQLite_UpdateMissingOrder_NotFound(t *testing.T) {
	st := newTestStore(t)

	err := st.UpdateOrder(context.Background(), ledger.Order{
		ID: "missing", BusinessID: "biz-1", Status: ledger.StatusPending,
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// =============================================================================
// REVERSAL GUARD TESTS
// =============================================================================

func TestSQLite_MarkPurchaseReversed_Guards(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p := ledger.Purchase{
		ID:         "p-1",
		BusinessID: "biz-1",
		ItemID:     "item-1",
		PartnerID:  "partner-1",
		Quantity:   5,
		UnitPrice:  ledger.MustDecimal("10"),
		Unpaid:     ledger.MustDecimal("0"),
		LineTotal:  ledger.MustDecimal("50"),
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, st.InsertPurchase(ctx, p))

	require.NoError(t, st.MarkPurchaseReversed(ctx, "p-1"))

	got, err := st.GetPurchase(ctx, "p-1")
	require.NoError(t, err)
	assert.True(t, got.Reversed)

	err = st.MarkPurchaseReversed(ctx, "p-1")
	assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)

	err = st.MarkPurchaseReversed(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// =============================================================================
// MOVEMENT TESTS
// =============================================================================

func TestSQLite_Movements_AppendOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, delta := range []int64{5, -3, 2} {
		require.NoError(t, st.AppendInventory(ctx, ledger.InventoryMovement{
			ID:     ledger.MovementID(string(rune('a' + i))),
			ItemID: "item-1",
			Delta:  delta,
			At:     base.Add(time.Duration(i) * time.Second),
		}))
	}

	moves, err := st.InventoryMovements(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, moves, 3)
	assert.Equal(t, int64(5), moves[0].Delta)
	assert.Equal(t, int64(-3), moves[1].Delta)
	assert.Equal(t, int64(2), moves[2].Delta)
}

func TestSQLite_CashMovements_ScopedToBusiness(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, st.AppendCash(ctx, ledger.CashMovement{
		ID: "c-1", BusinessID: "biz-1", Kind: ledger.CashCapital,
		Amount: ledger.MustDecimal("1000"), At: now,
	}))
	require.NoError(t, st.AppendCash(ctx, ledger.CashMovement{
		ID: "c-2", BusinessID: "biz-2", Kind: ledger.CashCapital,
		Amount: ledger.MustDecimal("5"), At: now,
	}))

	moves, err := st.CashMovements(ctx, "biz-1")
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.True(t, moves[0].Amount.Equal(ledger.MustDecimal("1000")))
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.InsertItem(ctx, ledger.Item{
			ID: "item-1", BusinessID: "biz-1", Name: "Widget",
			PurchasePrice: ledger.MustDecimal("1"), SellingPrice: ledger.MustDecimal("2"),
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	item, err := st.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Nil(t, item, "insert should have been rolled back")
}

func TestSQLite_WithTx_CommitsOnSuccess(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx ledger.Store) error {
		return tx.InsertItem(ctx, ledger.Item{
			ID: "item-1", BusinessID: "biz-1", Name: "Widget",
			PurchasePrice: ledger.MustDecimal("1"), SellingPrice: ledger.MustDecimal("2"),
			CreatedAt: time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	item, err := st.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.NotNil(t, item)
}

// The full trading flow must behave identically on SQLite and the memory
// store. This exercises balance checks and reversals through real SQL.
func TestSQLite_TradingFlow(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedItem(t, st, "item-1")

	require.NoError(t, st.AppendCash(ctx, ledger.CashMovement{
		ID: "c-1", BusinessID: "biz-1", Kind: ledger.CashCapital,
		Amount: ledger.MustDecimal("1000"), At: time.Now().UTC(),
	}))

	l := ledger.NewLedger(st)
	cash, err := l.NetCash(ctx, "biz-1")
	require.NoError(t, err)
	assert.True(t, cash.Equal(ledger.MustDecimal("1000")))

	require.NoError(t, l.RecordInventory(ctx, ledger.InventoryMovement{
		ID: "m-1", ItemID: "item-1", Delta: 5, At: time.Now().UTC(),
	}))
	stock, err := l.NetStock(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), stock)
}
