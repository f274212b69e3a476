/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  All monetary amounts cross the wire as JSON strings ("12.50"), never as
  floats. shopspring/decimal marshals that way by default when MarshalJSON
  is used through these DTOs' string fields.

VALIDATION:
  Structural validation (parseable decimals, known roles) happens in the
  handlers; business validation (balances, transitions) happens in the
  trading package. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain model
*/
package api

import (
	"time"

	"github.com/warp/trade-ledger/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ItemDTO represents a catalog item in API responses.
type ItemDTO struct {
	ID            string `json:"id"`
	BusinessID    string `json:"business_id"`
	Name          string `json:"name"`
	Unit          string `json:"unit,omitempty"`
	PurchasePrice string `json:"purchase_price"`
	SellingPrice  string `json:"selling_price"`
	Deleted       bool   `json:"deleted,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CreateItemRequest is the request to register an item.
type CreateItemRequest struct {
	Name          string `json:"name"`
	Unit          string `json:"unit,omitempty"`
	PurchasePrice string `json:"purchase_price"`
	SellingPrice  string `json:"selling_price"`
}

// PartnerDTO represents a supplier or customer.
type PartnerDTO struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	Deleted    bool   `json:"deleted,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreatePartnerRequest is the request to register a partner.
type CreatePartnerRequest struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// TradeRequest is the request body for both purchases and sales.
type TradeRequest struct {
	ItemID    string `json:"item_id"`
	PartnerID string `json:"partner_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Unpaid    string `json:"unpaid,omitempty"`
}

// TradeDTO represents a purchase or sale record.
type TradeDTO struct {
	ID         string `json:"id"`
	BusinessID string `json:"business_id"`
	ItemID     string `json:"item_id"`
	PartnerID  string `json:"partner_id"`
	Quantity   int64  `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	Unpaid     string `json:"unpaid"`
	LineTotal  string `json:"line_total"`
	Reversed   bool   `json:"reversed"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// ReverseRequest identifies the business a reversal belongs to.
type ReverseRequest struct {
	BusinessID string `json:"business_id"`
}

// CreateOrderRequest is the request to open a customer order.
type CreateOrderRequest struct {
	ItemID      string  `json:"item_id"`
	PartnerID   *string `json:"partner_id,omitempty"`
	Quantity    int64   `json:"quantity"`
	Description string  `json:"description,omitempty"`
}

// ChangeStatusRequest drives an order through its lifecycle. The optional
// fields feed the side effect of the transition: partner_id and unit_price
// for pending->purchased, unit_price for purchased->delivered.
type ChangeStatusRequest struct {
	BusinessID string  `json:"business_id"`
	Target     string  `json:"target"`
	PartnerID  *string `json:"partner_id,omitempty"`
	UnitPrice  string  `json:"unit_price,omitempty"`
	Unpaid     string  `json:"unpaid,omitempty"`
}

// OrderDTO represents an order.
type OrderDTO struct {
	ID          string  `json:"id"`
	BusinessID  string  `json:"business_id"`
	ItemID      string  `json:"item_id"`
	PartnerID   *string `json:"partner_id,omitempty"`
	Quantity    int64   `json:"quantity"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status"`
	PurchaseID  *string `json:"purchase_id,omitempty"`
	SaleID      *string `json:"sale_id,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// CashBalanceDTO is the derived cash position of a business.
type CashBalanceDTO struct {
	BusinessID string `json:"business_id"`
	Cash       string `json:"cash"`
}

// StockBalanceDTO is the derived stock level of an item.
type StockBalanceDTO struct {
	ItemID string `json:"item_id"`
	Stock  int64  `json:"stock"`
}

// CashMovementDTO represents one row of the cash ledger.
type CashMovementDTO struct {
	ID          string `json:"id"`
	BusinessID  string `json:"business_id"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	ReferenceID string `json:"reference_id,omitempty"`
	At          string `json:"at"`
}

// InventoryMovementDTO represents one row of the stock ledger.
type InventoryMovementDTO struct {
	ID          string `json:"id"`
	ItemID      string `json:"item_id"`
	Delta       int64  `json:"delta"`
	ReferenceID string `json:"reference_id,omitempty"`
	At          string `json:"at"`
}

// AmountRequest carries a bare monetary amount (capital, fees).
type AmountRequest struct {
	Amount string `json:"amount"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toItemDTO(item ledger.Item) ItemDTO {
	return ItemDTO{
		ID:            string(item.ID),
		BusinessID:    string(item.BusinessID),
		Name:          item.Name,
		Unit:          item.Unit,
		PurchasePrice: item.PurchasePrice.String(),
		SellingPrice:  item.SellingPrice.String(),
		Deleted:       item.Deleted,
		CreatedAt:     item.CreatedAt.Format(time.RFC3339),
	}
}

func toPartnerDTO(p ledger.Partner) PartnerDTO {
	return PartnerDTO{
		ID:         string(p.ID),
		BusinessID: string(p.BusinessID),
		Name:       p.Name,
		Role:       string(p.Role),
		Phone:      p.Phone,
		Address:    p.Address,
		Deleted:    p.Deleted,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}

func toPurchaseDTO(p ledger.Purchase) TradeDTO {
	return TradeDTO{
		ID:         string(p.ID),
		BusinessID: string(p.BusinessID),
		ItemID:     string(p.ItemID),
		PartnerID:  string(p.PartnerID),
		Quantity:   p.Quantity,
		UnitPrice:  p.UnitPrice.String(),
		Unpaid:     p.Unpaid.String(),
		LineTotal:  p.LineTotal.String(),
		Reversed:   p.Reversed,
		CreatedAt:  p.CreatedAt.Format(time.RFC3339),
	}
}

func toSaleDTO(s ledger.Sale) TradeDTO {
	return TradeDTO{
		ID:         string(s.ID),
		BusinessID: string(s.BusinessID),
		ItemID:     string(s.ItemID),
		PartnerID:  string(s.PartnerID),
		Quantity:   s.Quantity,
		UnitPrice:  s.UnitPrice.String(),
		Unpaid:     s.Unpaid.String(),
		LineTotal:  s.LineTotal.String(),
		Reversed:   s.Reversed,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
	}
}

func toOrderDTO(o ledger.Order) OrderDTO {
	dto := OrderDTO{
		ID:          string(o.ID),
		BusinessID:  string(o.BusinessID),
		ItemID:      string(o.ItemID),
		Quantity:    o.Quantity,
		Description: o.Description,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   o.UpdatedAt.Format(time.RFC3339),
	}
	if o.PartnerID != nil {
		s := string(*o.PartnerID)
		dto.PartnerID = &s
	}
	if o.PurchaseID != nil {
		s := string(*o.PurchaseID)
		dto.PurchaseID = &s
	}
	if o.SaleID != nil {
		s := string(*o.SaleID)
		dto.SaleID = &s
	}
	return dto
}

func toCashMovementDTO(m ledger.CashMovement) CashMovementDTO {
	return CashMovementDTO{
		ID:          string(m.ID),
		BusinessID:  string(m.BusinessID),
		Kind:        string(m.Kind),
		Amount:      m.Amount.String(),
		ReferenceID: m.ReferenceID,
		At:          m.At.Format(time.RFC3339),
	}
}

func toInventoryMovementDTO(m ledger.InventoryMovement) InventoryMovementDTO {
	return InventoryMovementDTO{
		ID:          string(m.ID),
		ItemID:      string(m.ItemID),
		Delta:       m.Delta,
		ReferenceID: m.ReferenceID,
		At:          m.At.Format(time.RFC3339),
	}
}
