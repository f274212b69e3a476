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
// TRANSITION TABLE TESTS
// =============================================================================

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ledger.OrderStatus
		want     bool
	}{
		{ledger.StatusPending, ledger.StatusPurchased, true},
		{ledger.StatusPurchased, ledger.StatusPending, true},
		{ledger.StatusPurchased, ledger.StatusDelivered, true},
		{ledger.StatusDelivered, ledger.StatusPurchased, true},

		{ledger.StatusPending, ledger.StatusDelivered, false},
		{ledger.StatusDelivered, ledger.StatusPending, false},
		{ledger.StatusPending, ledger.StatusPending, false},
		{ledger.StatusPurchased, ledger.StatusPurchased, false},
		{ledger.StatusDelivered, ledger.StatusDelivered, false},
		{"bogus", ledger.StatusPending, false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, trading.CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

// =============================================================================
// ORDER LIFECYCLE TESTS
// =============================================================================

func newTestOrder(t *testing.T, svc *trading.Service, biz trading.BusinessContext,
	itemID ledger.ItemID, customerID ledger.PartnerID) *ledger.Order {
	t.Helper()
	o, err := svc.CreateOrder(context.Background(), biz, trading.OrderInput{
		ItemID:      itemID,
		PartnerID:   &customerID,
		Quantity:    5,
		Description: "standing weekly order",
	})
	require.NoError(t, err)
	return o
}

func TestCreateOrder_StartsPending(t *testing.T) {
	svc, biz := newTestService(t)
	itemID, _, customerID := seedCatalog(t, svc, biz)

	o := newTestOrder(t, svc, biz, itemID, customerID)

	assert.Equal(t, ledger.StatusPending, o.Status)
	assert.Nil(t, o.PurchaseID)
	assert.Nil(t, o.SaleID)

	// No ledger effect on creation
	cash, err := svc.NetCash(context.Background(), biz)
	require.NoError(t, err)
	assert.True(t, cash.IsZero())
}

func TestCreateOrder_UnknownItem_NotFound(t *testing.T) {
	svc, biz := newTestService(t)
	_, err := svc.CreateOrder(context.Background(), biz, trading.OrderInput{
		ItemID: "missing", Quantity: 5,
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestChangeStatus_PendingToPurchased(t *testing.T) {
	// GIVEN: A pending order for 5 units and 1000 cash
	// WHEN: Moving it to purchased with a supplier at unit price 10
	// THEN: A purchase is executed and linked to the order

	svc, biz := newTestService(t)
	itemID, supplierID, customerID := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	o := newTestOrder(t, svc, biz, itemID, customerID)
	ctx := context.Background()

	o, err := svc.ChangeStatus(ctx, biz, ledger.StatusPurchased, o.ID, trading.ChangeInput{
		UnitPrice: ledger.MustDecimal("10"),
		PartnerID: &supplierID,
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusPurchased, o.Status)
	require.NotNil(t, o.PurchaseID)

	cash, err := svc.NetCash(ctx, biz)
	require.NoError(t, err)
	assert.True(t, cash.Equal(ledger.MustDecimal("950")))

	stock, err := svc.NetStock(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stock)

	p, err := svc.Store.GetPurchase(ctx, *o.PurchaseID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(5), p.Quantity)
}

func TestChangeStatus_PendingToPurchased_NoSupplier_Rejected(t *testing.T) {
	svc, biz := newTestService(t)
	itemID, _, customerID := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	o := newTestOrder(t, svc, biz, itemID, customerID)

	_, err := svc.ChangeStatus(context.Background(), biz, ledger.StatusPurchased, o.ID, trading.ChangeInput{
		UnitPrice: ledger.MustDecimal("10"),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidInput)
}

func TestChangeStatus_PendingToDelivered_Rejected(t *testing.T) {
	// GIVEN: A pending order
	// WHEN: Trying to skip straight to delivered
	// THEN: InvalidTransition, the order is untouched

	svc, biz := newTestService(t)
	itemID, _, customerID := seedCatalog(t, svc, biz)
	o := newTestOrder(t, svc, biz, itemID, customerID)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, biz, ledger.StatusDelivered, o.ID, trading.ChangeInput{
		UnitPrice: ledger.MustDecimal("14"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrInvalidTransition)

	var trErr *ledger.InvalidTransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, ledger.StatusPending, trErr.From)
	assert.Equal(t, ledger.StatusDelivered, trErr.To)

	got, err := svc.GetOrder(ctx, biz, o.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, got.Status)
}

func TestChangeStatus_FullLifecycle(t *testing.T) {
	// GIVEN: 1000 capital, an order for 5 units with a consumer attached
	// WHEN: pending -> purchased (buy at 10) -> delivered (sell at 14)
	// THEN: Cash ends at 1020 and both trade records are linked

	svc, biz := newTestService(t)
	itemID, supplierID, customerID := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	o := newTestOrder(t, svc, biz, itemID, customerID)
	ctx := context.Background()

	o, err := svc.ChangeStatus(ctx, biz, ledger.StatusPurchased, o.ID, trading.ChangeInput{
		UnitPrice: ledger.MustDecimal("10"),
		PartnerID: &supplierID,
	})
	require.NoError(t, err)

	o, err = svc.ChangeStatus(ctx, biz, ledger.StatusDelivered, o.ID, trading.ChangeInput{
		UnitPrice: ledger.MustDecimal("14"),
	})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusDelivered, o.Status)
	require.NotNil(t, o.PurchaseID)
	require.NotNil(t, o.SaleID)

	// 1000 - 50 + 70
	cash, err := svc.NetCash(ctx, biz)
	require.NoError(t, err)
	assert.True(t, cash.Equal(ledger.MustDecimal("1020")), "cash should be 1020, got %s", cash)

	stock, err := svc.NetStock(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stock)
}

func TestChangeStatus_PurchasedBackToPending_ReversesPurchase(t *testing.T) {
	// Walking an order back to pending undoes the purchase and clears the link.

	svc, biz := newTestService(t)
	itemID, supplierID, customerID := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	o := newTestOrder(t, svc, biz, itemID, customerID)
	ctx := context.Background()

	o, err := svc.ChangeStatus(ctx, biz, ledger.StatusPurchased, o.ID, trading.ChangeInput{
		UnitPrice: ledger.MustDecimal("10"),
		PartnerID: &supplierID,
	})
	require.NoError(t, err)
	purchaseID := *o.PurchaseID

	o, err = svc.ChangeStatus(ctx, biz, ledger.StatusPending, o.ID, trading.ChangeInput{})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusPending, o.Status)
	assert.Nil(t, o.PurchaseID)

	cash, err := svc.NetCash(ctx, biz)
	require.NoError(t, err)
	assert.True(t, cash.Equal(ledger.MustDecimal("1000")))

	p, err := svc.Store.GetPurchase(ctx, purchaseID)
	require.NoError(t, err)
	assert.True(t, p.Reversed)
}

func TestChangeStatus_DeliveredBackToPurchased_ReversesSale(t *testing.T) {
	// Undelivering reverses the sale, restores stock, and clears the link.

	svc, biz := newTestService(t)
	itemID, supplierID, customerID := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	o := newTestOrder(t, svc, biz, itemID, customerID)
	ctx := context.Background()

	o, err := svc.ChangeStatus(ctx, biz, ledger.StatusPurchased, o.ID, trading.ChangeInput{
		UnitPrice: ledger.MustDecimal("10"),
		PartnerID: &supplierID,
	})
	require.NoError(t, err)

	o, err = svc.ChangeStatus(ctx, biz, ledger.StatusDelivered, o.ID, trading.ChangeInput{
		UnitPrice: ledger.MustDecimal("14"),
	})
	require.NoError(t, err)
	saleID := *o.SaleID

	o, err = svc.ChangeStatus(ctx, biz, ledger.StatusPurchased, o.ID, trading.ChangeInput{})
	require.NoError(t, err)

	assert.Equal(t, ledger.StatusPurchased, o.Status)
	assert.Nil(t, o.SaleID)
	require.NotNil(t, o.PurchaseID)

	stock, err := svc.NetStock(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stock)

	s, err := svc.Store.GetSale(ctx, saleID)
	require.NoError(t, err)
	assert.True(t, s.Reversed)
}

func TestChangeStatus_PurchaseFails_StatusUnchanged(t *testing.T) {
	// GIVEN: An order whose purchase side effect cannot be afforded
	// WHEN: Moving pending -> purchased
	// THEN: The whole transition rolls back, status stays pending

	svc, biz := newTestService(t)
	itemID, supplierID, customerID := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "10")
	o := newTestOrder(t, svc, biz, itemID, customerID)
	ctx := context.Background()

	_, err := svc.ChangeStatus(ctx, biz, ledger.StatusPurchased, o.ID, trading.ChangeInput{
		UnitPrice: ledger.MustDecimal("10"),
		PartnerID: &supplierID,
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	got, err := svc.GetOrder(ctx, biz, o.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, got.Status)
	assert.Nil(t, got.PurchaseID)

	cash, err := svc.NetCash(ctx, biz)
	require.NoError(t, err)
	assert.True(t, cash.Equal(ledger.MustDecimal("10")))
}

func TestChangeStatus_WrongBusiness_NotFound(t *testing.T) {
	svc, biz := newTestService(t)
	itemID, supplierID, customerID := seedCatalog(t, svc, biz)
	fund(t, svc, biz, "1000")
	o := newTestOrder(t, svc, biz, itemID, customerID)

	other := trading.NewBusinessContext("biz-2")
	_, err := svc.ChangeStatus(context.Background(), other, ledger.StatusPurchased, o.ID, trading.ChangeInput{
		UnitPrice: ledger.MustDecimal("10"),
		PartnerID: &supplierID,
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
