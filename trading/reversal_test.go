package trading_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/trade-ledger/ledger"
	"github.com/warp/trade-ledger/trading"
)

// =============================================================================
// PURCHASE REVERSAL TESTS
// =============================================================================

func TestReversePurchase_RestoresBalances(t *testing.T) {
	// GIVEN: A purchase of 5 units at 10 out of 1000 cash
	// WHEN: Reversing it
	// THEN: Cash is back to 1000, stock back to 0, record tombstoned

	svc, biz := newTestService(t)
	itemID, supplierID, _ := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	ctx := context.Background()

	p, err := svc.Purchase(ctx, biz, trading.TradeInput{
		ItemID: itemID, PartnerID: supplierID, Quantity: 5, UnitPrice: ledger.MustDecimal("10"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReversePurchase(ctx, biz, p.ID))

	cash, err := svc.NetCash(ctx, biz)
	require.NoError(t, err)
	assert.True(t, cash.Equal(ledger.MustDecimal("1000")), "cash should be restored, got %s", cash)

	stock, err := svc.NetStock(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stock)

	got, err := svc.Store.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Reversed, "purchase should be tombstoned, not deleted")
}

func TestReversePurchase_AppendsCompensatingMovements(t *testing.T) {
	// Reversal never rewrites history: the ledgers grow by one compensating
	// row each, referencing the original purchase.

	svc, biz := newTestService(t)
	itemID, supplierID, _ := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	ctx := context.Background()

	p, err := svc.Purchase(ctx, biz, trading.TradeInput{
		ItemID: itemID, PartnerID: supplierID, Quantity: 5, UnitPrice: ledger.MustDecimal("10"),
	})
	require.NoError(t, err)
	require.NoError(t, svc.ReversePurchase(ctx, biz, p.ID))

	inv, err := svc.StockHistory(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, inv, 2)
	assert.Equal(t, int64(5), inv[0].Delta)
	assert.Equal(t, int64(-5), inv[1].Delta)
	assert.Equal(t, string(p.ID), inv[1].ReferenceID)

	cashRows, err := svc.CashHistory(ctx, biz)
	require.NoError(t, err)
	require.Len(t, cashRows, 3) // capital, purchase, reversal
	last := cashRows[2]
	assert.Equal(t, ledger.CashPurchaseReversal, last.Kind)
	assert.True(t, last.Amount.Equal(ledger.MustDecimal("50")))
	assert.Equal(t, string(p.ID), last.ReferenceID)
}

func TestReversePurchase_Twice_Rejected(t *testing.T) {
	// GIVEN: An already reversed purchase
	// WHEN: Reversing it again
	// THEN: Rejected, balances untouched

	svc, biz := newTestService(t)
	itemID, supplierID, _ := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	ctx := context.Background()

	p, err := svc.Purchase(ctx, biz, trading.TradeInput{
		ItemID: itemID, PartnerID: supplierID, Quantity: 5, UnitPrice: ledger.MustDecimal("10"),
	})
	require.NoError(t, err)
	require.NoError(t, svc.ReversePurchase(ctx, biz, p.ID))

	err = svc.ReversePurchase(ctx, biz, p.ID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)

	cash, err := svc.NetCash(ctx, biz)
	require.NoError(t, err)
	assert.True(t, cash.Equal(ledger.MustDecimal("1000")))
}

func TestReversePurchase_StockAlreadySold_Rejected(t *testing.T) {
	// GIVEN: 5 units purchased, 4 already sold on
	// WHEN: Reversing the purchase (which must hand back all 5 units)
	// THEN: Rejected, the units are gone

	svc, biz := newTestService(t)
	itemID, supplierID, customerID := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	ctx := context.Background()

	p, err := svc.Purchase(ctx, biz, trading.TradeInput{
		ItemID: itemID, PartnerID: supplierID, Quantity: 5, UnitPrice: ledger.MustDecimal("10"),
	})
	require.NoError(t, err)

	_, err = svc.Sell(ctx, biz, trading.TradeInput{
		ItemID: itemID, PartnerID: customerID, Quantity: 4, UnitPrice: ledger.MustDecimal("14"),
	})
	require.NoError(t, err)

	err = svc.ReversePurchase(ctx, biz, p.ID)
	assert.ErrorIs(t, err, ledger.ErrInsufficientInventory)

	got, err := svc.Store.GetPurchase(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Reversed)
}

func TestReversePurchase_WrongBusiness_NotFound(t *testing.T) {
	svc, biz := newTestService(t)
	itemID, supplierID, _ := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	ctx := context.Background()

	p, err := svc.Purchase(ctx, biz, trading.TradeInput{
		ItemID: itemID, PartnerID: supplierID, Quantity: 5, UnitPrice: ledger.MustDecimal("10"),
	})
	require.NoError(t, err)

	other := trading.NewBusinessContext("biz-2")
	err = svc.ReversePurchase(ctx, other, p.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// =============================================================================
// SALE REVERSAL TESTS
// =============================================================================

func TestReverseSale_RestoresBalances(t *testing.T) {
	// GIVEN: A sale of 3 units at 14
	// WHEN: Reversing it
	// THEN: Stock is back, the sale proceeds are handed back

	svc, biz := newTestService(t)
	itemID, supplierID, customerID := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	ctx := context.Background()

	_, err := svc.Purchase(ctx, biz, trading.TradeInput{
		ItemID: itemID, PartnerID: supplierID, Quantity: 5, UnitPrice: ledger.MustDecimal("10"),
	})
	require.NoError(t, err)

	s, err := svc.Sell(ctx, biz, trading.TradeInput{
		ItemID: itemID, PartnerID: customerID, Quantity: 3, UnitPrice: ledger.MustDecimal("14"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReverseSale(ctx, biz, s.ID))

	stock, err := svc.NetStock(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stock)

	cash, err := svc.NetCash(ctx, biz)
	require.NoError(t, err)
	// 1000 - 50 + 42 - 42
	assert.True(t, cash.Equal(ledger.MustDecimal("950")), "cash should be 950, got %s", cash)

	got, err := svc.Store.GetSale(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Reversed)
}

func TestReverseSale_CashAlreadySpent_Rejected(t *testing.T) {
	// GIVEN: Sale proceeds already spent on fees
	// WHEN: Reversing the sale (which must hand the proceeds back)
	// THEN: Rejected, cash can't go negative

	svc, biz := newTestService(t)
	itemID, supplierID, customerID := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "50")
	ctx := context.Background()

	_, err := svc.Purchase(ctx, biz, trading.TradeInput{
		ItemID: itemID, PartnerID: supplierID, Quantity: 5, UnitPrice: ledger.MustDecimal("10"),
	})
	require.NoError(t, err)

	s, err := svc.Sell(ctx, biz, trading.TradeInput{
		ItemID: itemID, PartnerID: customerID, Quantity: 3, UnitPrice: ledger.MustDecimal("14"),
	})
	require.NoError(t, err)

	// Spend almost everything
	_, err = svc.RecordRecurringFee(ctx, biz, ledger.MustDecimal("40"))
	require.NoError(t, err)

	err = svc.ReverseSale(ctx, biz, s.ID)
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	got, err := svc.Store.GetSale(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, got.Reversed)
}

func TestReverseSale_Twice_Rejected(t *testing.T) {
	svc, biz := newTestService(t)
	itemID, supplierID, customerID := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	ctx := context.Background()

	_, err := svc.Purchase(ctx, biz, trading.TradeInput{
		ItemID: itemID, PartnerID: supplierID, Quantity: 5, UnitPrice: ledger.MustDecimal("10"),
	})
	require.NoError(t, err)

	s, err := svc.Sell(ctx, biz, trading.TradeInput{
		ItemID: itemID, PartnerID: customerID, Quantity: 3, UnitPrice: ledger.MustDecimal("14"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReverseSale(ctx, biz, s.ID))
	err = svc.ReverseSale(ctx, biz, s.ID)
	assert.ErrorIs(t, err, ledger.ErrAlreadyReversed)
}
