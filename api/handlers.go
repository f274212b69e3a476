/*
handlers.go - HTTP API handlers for the trade ledger

PURPOSE:
  Exposes the trading operations via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Catalog:
    GET    /api/businesses/{biz}/items       List items
    POST   /api/businesses/{biz}/items       Register item
    GET    /api/businesses/{biz}/partners    List partners
    POST   /api/businesses/{biz}/partners    Register partner

  Trades:
    GET    /api/businesses/{biz}/purchases   List purchases
    POST   /api/businesses/{biz}/purchases   Record a purchase
    GET    /api/businesses/{biz}/sales       List sales
    POST   /api/businesses/{biz}/sales       Record a sale
    POST   /api/purchases/{id}/reverse       Reverse a purchase
    POST   /api/sales/{id}/reverse           Reverse a sale

  Orders:
    GET    /api/businesses/{biz}/orders      List orders
    POST   /api/businesses/{biz}/orders      Open an order
    GET    /api/orders/{id}                  Get order (business_id query)
    POST   /api/orders/{id}/status           Drive the lifecycle

  Balances:
    GET    /api/businesses/{biz}/cash            Derived cash position
    GET    /api/businesses/{biz}/cash/movements  Cash ledger rows
    GET    /api/items/{id}/stock                 Derived stock level
    GET    /api/items/{id}/movements             Stock ledger rows

  Funding:
    POST   /api/businesses/{biz}/capital     Record owner capital
    POST   /api/businesses/{biz}/fees        Record a recurring fee

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (trading.Service)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found (or owned by a different business)
  - 409: Business rule conflicts (balances, transitions, reversals)
  - 500: Storage errors

SECURITY NOTE:
  Business scoping comes from the URL, not from authentication. All
  endpoints are public; put an auth layer in front for production.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - trading/operations.go: Domain logic
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/trade-ledger/ledger"
	"github.com/warp/trade-ledger/trading"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *trading.Service
}

// NewHandler creates a new handler over the given store.
func NewHandler(store ledger.TxStore) *Handler {
	return &Handler{Service: trading.NewService(store)}
}

func bizFromURL(r *http.Request) trading.BusinessContext {
	return trading.NewBusinessContext(ledger.BusinessID(chi.URLParam(r, "biz")))
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListItems returns the business's catalog.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListItems(r.Context(), bizFromURL(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateItem registers a new catalog item.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	purchasePrice, err := parseAmount(req.PurchasePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid purchase_price", err)
		return
	}
	sellingPrice, err := parseAmount(req.SellingPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid selling_price", err)
		return
	}

	item, err := h.Service.CreateItem(r.Context(), bizFromURL(r), trading.ItemInput{
		Name:          req.Name,
		Unit:          req.Unit,
		PurchasePrice: purchasePrice,
		SellingPrice:  sellingPrice,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemDTO(*item))
}

// ListPartners returns the business's suppliers and customers.
func (h *Handler) ListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.Service.ListPartners(r.Context(), bizFromURL(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]PartnerDTO, len(partners))
	for i, p := range partners {
		dtos[i] = toPartnerDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePartner registers a supplier or customer.
func (h *Handler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	var req CreatePartnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Service.CreatePartner(r.Context(), bizFromURL(r), trading.PartnerInput{
		Name:    req.Name,
		Role:    ledger.PartnerRole(req.Role),
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPartnerDTO(*p))
}

// =============================================================================
// TRADE HANDLERS
// =============================================================================

func (h *Handler) tradeInput(req TradeRequest) (trading.TradeInput, error) {
	unitPrice, err := parseAmount(req.UnitPrice)
	if err != nil {
		return trading.TradeInput{}, err
	}
	unpaid, err := parseAmount(req.Unpaid)
	if err != nil {
		return trading.TradeInput{}, err
	}
	return trading.TradeInput{
		ItemID:    ledger.ItemID(req.ItemID),
		PartnerID: ledger.PartnerID(req.PartnerID),
		Quantity:  req.Quantity,
		UnitPrice: unitPrice,
		Unpaid:    unpaid,
	}, nil
}

// ListPurchases returns all purchase records for the business.
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.Service.ListPurchases(r.Context(), bizFromURL(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TradeDTO, len(purchases))
	for i, p := range purchases {
		dtos[i] = toPurchaseDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePurchase records a purchase from a supplier.
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := h.tradeInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	p, err := h.Service.Purchase(r.Context(), bizFromURL(r), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseDTO(*p))
}

// ListSales returns all sale records for the business.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Service.ListSales(r.Context(), bizFromURL(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TradeDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSale records a sale to a customer.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := h.tradeInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	s, err := h.Service.Sell(r.Context(), bizFromURL(r), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(*s))
}

// ReversePurchase undoes a purchase, restoring cash and removing stock.
func (h *Handler) ReversePurchase(w http.ResponseWriter, r *http.Request) {
	id := ledger.PurchaseID(chi.URLParam(r, "id"))

	var req ReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BusinessID == "" {
		writeError(w, http.StatusBadRequest, "business_id is required", nil)
		return
	}

	biz := trading.NewBusinessContext(ledger.BusinessID(req.BusinessID))
	if err := h.Service.ReversePurchase(r.Context(), biz, id); err != nil {
		writeDomainError(w, err)
		return
	}

	p, err := h.Service.Store.GetPurchase(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseDTO(*p))
}

// ReverseSale undoes a sale, restoring stock and removing cash.
func (h *Handler) ReverseSale(w http.ResponseWriter, r *http.Request) {
	id := ledger.SaleID(chi.URLParam(r, "id"))

	var req ReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BusinessID == "" {
		writeError(w, http.StatusBadRequest, "business_id is required", nil)
		return
	}

	biz := trading.NewBusinessContext(ledger.BusinessID(req.BusinessID))
	if err := h.Service.ReverseSale(r.Context(), biz, id); err != nil {
		writeDomainError(w, err)
		return
	}

	s, err := h.Service.Store.GetSale(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(*s))
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// ListOrders returns all orders for the business.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Service.ListOrders(r.Context(), bizFromURL(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		dtos[i] = toOrderDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOrder opens a new order in pending.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := trading.OrderInput{
		ItemID:      ledger.ItemID(req.ItemID),
		Quantity:    req.Quantity,
		Description: req.Description,
	}
	if req.PartnerID != nil {
		pid := ledger.PartnerID(*req.PartnerID)
		in.PartnerID = &pid
	}

	o, err := h.Service.CreateOrder(r.Context(), bizFromURL(r), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(*o))
}

// GetOrder returns a single order. The owning business comes from the
// business_id query parameter.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := ledger.OrderID(chi.URLParam(r, "id"))
	businessID := r.URL.Query().Get("business_id")
	if businessID == "" {
		writeError(w, http.StatusBadRequest, "business_id query parameter is required", nil)
		return
	}

	biz := trading.NewBusinessContext(ledger.BusinessID(businessID))
	o, err := h.Service.GetOrder(r.Context(), biz, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(*o))
}

// ChangeOrderStatus drives an order through its lifecycle. The transition's
// accounting side effect runs in the same transaction as the status change.
func (h *Handler) ChangeOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := ledger.OrderID(chi.URLParam(r, "id"))

	var req ChangeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BusinessID == "" {
		writeError(w, http.StatusBadRequest, "business_id is required", nil)
		return
	}

	unitPrice, err := parseAmount(req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit_price", err)
		return
	}
	unpaid, err := parseAmount(req.Unpaid)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unpaid", err)
		return
	}

	in := trading.ChangeInput{UnitPrice: unitPrice, Unpaid: unpaid}
	if req.PartnerID != nil {
		pid := ledger.PartnerID(*req.PartnerID)
		in.PartnerID = &pid
	}

	biz := trading.NewBusinessContext(ledger.BusinessID(req.BusinessID))
	o, err := h.Service.ChangeStatus(r.Context(), biz, ledger.OrderStatus(req.Target), id, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(*o))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetCash returns the business's derived cash position.
func (h *Handler) GetCash(w http.ResponseWriter, r *http.Request) {
	biz := bizFromURL(r)
	cash, err := h.Service.NetCash(r.Context(), biz)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CashBalanceDTO{
		BusinessID: string(biz.BusinessID),
		Cash:       cash.String(),
	})
}

// GetStock returns the item's derived stock level.
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	itemID := ledger.ItemID(chi.URLParam(r, "id"))
	stock, err := h.Service.NetStock(r.Context(), itemID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StockBalanceDTO{
		ItemID: string(itemID),
		Stock:  stock,
	})
}

// ListCashMovements returns the business's cash ledger in append order.
func (h *Handler) ListCashMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.Service.CashHistory(r.Context(), bizFromURL(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]CashMovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = toCashMovementDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListItemMovements returns the item's stock ledger in append order.
func (h *Handler) ListItemMovements(w http.ResponseWriter, r *http.Request) {
	itemID := ledger.ItemID(chi.URLParam(r, "id"))
	movements, err := h.Service.StockHistory(r.Context(), itemID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]InventoryMovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = toInventoryMovementDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// FUNDING HANDLERS
// =============================================================================

// RecordCapital records owner capital paid into the business.
func (h *Handler) RecordCapital(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	m, err := h.Service.RecordCapital(r.Context(), bizFromURL(r), amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCashMovementDTO(*m))
}

// RecordFee records a recurring business fee (rent, subscriptions).
func (h *Handler) RecordFee(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	m, err := h.Service.RecordRecurringFee(r.Context(), bizFromURL(r), amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCashMovementDTO(*m))
}

// =============================================================================
// HELPERS
// =============================================================================

// parseAmount parses a decimal string from the wire. Empty means zero.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP statuses and stable codes.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_input"
	case ledger.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		status, code = http.StatusConflict, "insufficient_funds"
	case errors.Is(err, ledger.ErrInsufficientInventory):
		status, code = http.StatusConflict, "insufficient_inventory"
	case errors.Is(err, ledger.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, ledger.ErrAlreadyReversed):
		status, code = http.StatusConflict, "already_reversed"
	case errors.Is(err, ledger.ErrStorage):
		status, code = http.StatusInternalServerError, "storage_error"
	}

	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}
