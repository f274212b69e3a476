/*
handlers_test.go - HTTP tests over the full router

Drives the API end to end against the in-memory store: catalog setup,
funding, trades, reversals, order lifecycle, and the error mapping.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/trade-ledger/api"
	"github.com/warp/trade-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return api.NewRouter(api.NewHandler(store.NewMemory()))
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

// seedBusiness registers an item, a supplier, a customer and 1000 capital,
// returning their ids.
func seedBusiness(t *testing.T, router http.Handler, biz string) (item, supplier, customer string) {
	t.Helper()
	base := "/api/businesses/" + biz

	rec := doJSON(t, router, http.MethodPost, base+"/items", api.CreateItemRequest{
		Name: "Rice 5kg", Unit: "bag", PurchasePrice: "10", SellingPrice: "14",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item = decode[api.ItemDTO](t, rec).ID

	rec = doJSON(t, router, http.MethodPost, base+"/partners", api.CreatePartnerRequest{
		Name: "Acme Wholesale", Role: "supplier",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	supplier = decode[api.PartnerDTO](t, rec).ID

	rec = doJSON(t, router, http.MethodPost, base+"/partners", api.CreatePartnerRequest{
		Name: "Corner Shop", Role: "customer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	customer = decode[api.PartnerDTO](t, rec).ID

	rec = doJSON(t, router, http.MethodPost, base+"/capital", api.AmountRequest{Amount: "1000"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	return item, supplier, customer
}

// =============================================================================
// TRADE FLOW TESTS
// =============================================================================

func TestAPI_PurchaseAndSaleFlow(t *testing.T) {
	// GIVEN: A seeded business with 1000 capital
	// WHEN: Purchasing 5 at 10 and selling 3 at 14 over HTTP
	// THEN: Cash and stock endpoints report the derived balances

	router := newTestRouter(t)
	item, supplier, customer := seedBusiness(t, router, "biz-1")

	rec := doJSON(t, router, http.MethodPost, "/api/businesses/biz-1/purchases", api.TradeRequest{
		ItemID: item, PartnerID: supplier, Quantity: 5, UnitPrice: "10",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	purchase := decode[api.TradeDTO](t, rec)
	assert.Equal(t, "50", purchase.LineTotal)

	rec = doJSON(t, router, http.MethodPost, "/api/businesses/biz-1/sales", api.TradeRequest{
		ItemID: item, PartnerID: customer, Quantity: 3, UnitPrice: "14",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/businesses/biz-1/cash", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cash := decode[api.CashBalanceDTO](t, rec)
	assert.Equal(t, "992", cash.Cash)

	rec = doJSON(t, router, http.MethodGet, "/api/items/"+item+"/stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stock := decode[api.StockBalanceDTO](t, rec)
	assert.Equal(t, int64(2), stock.Stock)

	rec = doJSON(t, router, http.MethodGet, "/api/businesses/biz-1/cash/movements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	moves := decode[[]api.CashMovementDTO](t, rec)
	require.Len(t, moves, 3) // capital, purchase, sale
	assert.Equal(t, "capital", moves[0].Kind)
	assert.Equal(t, "-50", moves[1].Amount)
	assert.Equal(t, "42", moves[2].Amount)
}

func TestAPI_Purchase_InsufficientFunds_409(t *testing.T) {
	router := newTestRouter(t)
	item, supplier, _ := seedBusiness(t, router, "biz-1")

	rec := doJSON(t, router, http.MethodPost, "/api/businesses/biz-1/purchases", api.TradeRequest{
		ItemID: item, PartnerID: supplier, Quantity: 500, UnitPrice: "10",
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	errResp := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, "insufficient_funds", errResp.Code)
}

func TestAPI_Sale_InsufficientInventory_409(t *testing.T) {
	router := newTestRouter(t)
	item, _, customer := seedBusiness(t, router, "biz-1")

	rec := doJSON(t, router, http.MethodPost, "/api/businesses/biz-1/sales", api.TradeRequest{
		ItemID: item, PartnerID: customer, Quantity: 1, UnitPrice: "14",
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	errResp := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, "insufficient_inventory", errResp.Code)
}

func TestAPI_Purchase_UnknownItem_404(t *testing.T) {
	router := newTestRouter(t)
	_, supplier, _ := seedBusiness(t, router, "biz-1")

	rec := doJSON(t, router, http.MethodPost, "/api/businesses/biz-1/purchases", api.TradeRequest{
		ItemID: "missing", PartnerID: supplier, Quantity: 1, UnitPrice: "10",
	})
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	errResp := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, "not_found", errResp.Code)
}

func TestAPI_CreateItem_BadDecimal_400(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/businesses/biz-1/items", api.CreateItemRequest{
		Name: "Rice", PurchasePrice: "ten dollars", SellingPrice: "14",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REVERSAL TESTS
// =============================================================================

func TestAPI_ReversePurchase(t *testing.T) {
	// GIVEN: A recorded purchase
	// WHEN: POSTing to its reverse endpoint
	// THEN: The record comes back tombstoned and cash is restored

	router := newTestRouter(t)
	item, supplier, _ := seedBusiness(t, router, "biz-1")

	rec := doJSON(t, router, http.MethodPost, "/api/businesses/biz-1/purchases", api.TradeRequest{
		ItemID: item, PartnerID: supplier, Quantity: 5, UnitPrice: "10",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	purchase := decode[api.TradeDTO](t, rec)

	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/purchases/%s/reverse", purchase.ID),
		api.ReverseRequest{BusinessID: "biz-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reversed := decode[api.TradeDTO](t, rec)
	assert.True(t, reversed.Reversed)

	rec = doJSON(t, router, http.MethodGet, "/api/businesses/biz-1/cash", nil)
	cash := decode[api.CashBalanceDTO](t, rec)
	assert.Equal(t, "1000", cash.Cash)

	// Second reversal conflicts
	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/purchases/%s/reverse", purchase.ID),
		api.ReverseRequest{BusinessID: "biz-1"})
	require.Equal(t, http.StatusConflict, rec.Code)
	errResp := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, "already_reversed", errResp.Code)
}

// =============================================================================
// ORDER LIFECYCLE TESTS
// =============================================================================

func TestAPI_OrderLifecycle(t *testing.T) {
	// GIVEN: An order for 5 units with a consumer
	// WHEN: Driving pending -> purchased -> delivered over HTTP
	// THEN: Status and linked trade ids update at each step

	router := newTestRouter(t)
	item, supplier, customer := seedBusiness(t, router, "biz-1")

	rec := doJSON(t, router, http.MethodPost, "/api/businesses/biz-1/orders", api.CreateOrderRequest{
		ItemID: item, PartnerID: &customer, Quantity: 5, Description: "weekly order",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[api.OrderDTO](t, rec)
	assert.Equal(t, "pending", order.Status)

	statusURL := fmt.Sprintf("/api/orders/%s/status", order.ID)

	rec = doJSON(t, router, http.MethodPost, statusURL, api.ChangeStatusRequest{
		BusinessID: "biz-1", Target: "purchased", PartnerID: &supplier, UnitPrice: "10",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order = decode[api.OrderDTO](t, rec)
	assert.Equal(t, "purchased", order.Status)
	assert.NotNil(t, order.PurchaseID)

	rec = doJSON(t, router, http.MethodPost, statusURL, api.ChangeStatusRequest{
		BusinessID: "biz-1", Target: "delivered", UnitPrice: "14",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order = decode[api.OrderDTO](t, rec)
	assert.Equal(t, "delivered", order.Status)
	assert.NotNil(t, order.SaleID)

	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/orders/%s?business_id=biz-1", order.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[api.OrderDTO](t, rec)
	assert.Equal(t, "delivered", got.Status)

	rec = doJSON(t, router, http.MethodGet, "/api/businesses/biz-1/cash", nil)
	cash := decode[api.CashBalanceDTO](t, rec)
	assert.Equal(t, "1020", cash.Cash)
}

func TestAPI_Order_InvalidTransition_409(t *testing.T) {
	router := newTestRouter(t)
	item, _, customer := seedBusiness(t, router, "biz-1")

	rec := doJSON(t, router, http.MethodPost, "/api/businesses/biz-1/orders", api.CreateOrderRequest{
		ItemID: item, PartnerID: &customer, Quantity: 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decode[api.OrderDTO](t, rec)

	rec = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/orders/%s/status", order.ID),
		api.ChangeStatusRequest{BusinessID: "biz-1", Target: "delivered", UnitPrice: "14"})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	errResp := decode[api.ErrorResponse](t, rec)
	assert.Equal(t, "invalid_transition", errResp.Code)
}

func TestAPI_Order_OtherBusiness_404(t *testing.T) {
	router := newTestRouter(t)
	item, _, customer := seedBusiness(t, router, "biz-1")

	rec := doJSON(t, router, http.MethodPost, "/api/businesses/biz-1/orders", api.CreateOrderRequest{
		ItemID: item, PartnerID: &customer, Quantity: 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decode[api.OrderDTO](t, rec)

	rec = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/orders/%s?business_id=biz-2", order.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
