/*
Package ledger provides the core trading-ledger engine.

PURPOSE:
  This package contains the domain-agnostic building blocks for the trading
  back office: typed identifiers, the append-only movement records for
  inventory and cash, the durable entity records they reference, and the
  balance calculator that derives net stock and net cash by replaying
  movements.

KEY CONCEPTS IN THIS FILE (types.go):
  - InventoryMovement: signed stock delta for an item (append-only)
  - CashMovement:      signed cash delta for a business (append-only)
  - Item/Partner:      catalog records, referenced but never mutated here
  - Purchase/Sale:     trade records, tombstoned (never erased) on reversal
  - Order:             lifecycle record driven by the trading package

DESIGN PRINCIPLES:
  1. Immutability: Movements are never modified, only compensated
  2. Precision: Uses decimal.Decimal for money to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing item/partner/order IDs
  4. Derivation: Balances are computed from movements, never stored

SEE ALSO:
  - ledger.go: Balance calculation from movements
  - store.go:  Persistence interfaces
  - errors.go: Error taxonomy
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	BusinessID string
	ItemID     string
	PartnerID  string
	OrderID    string
	PurchaseID string
	SaleID     string
	MovementID string
)

// MustDecimal parses a decimal literal, returning zero on malformed input.
// Intended for constants and tests, not for user input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// MOVEMENTS - Append-only ledger rows
// =============================================================================

// CashKind classifies a cash movement. The sign convention is fixed per kind:
// purchases and fees flow out (negative), sales and capital flow in (positive),
// reversal kinds carry the opposite sign of the record they compensate.
type CashKind string

const (
	CashPurchase         CashKind = "purchase"
	CashSale             CashKind = "sale"
	CashRecurringFee     CashKind = "recurringFee"
	CashPurchaseReversal CashKind = "purchaseReversal"
	CashSaleReversal     CashKind = "saleReversal"
	CashCapital          CashKind = "capital"
)

// InventoryMovement records a signed stock change for an item.
// Net stock for an item is the sum of its deltas.
type InventoryMovement struct {
	ID          MovementID
	ItemID      ItemID
	Delta       int64  // positive: goods in, negative: goods out
	ReferenceID string // purchase/sale that caused the movement, if any
	At          time.Time
}

// CashMovement records a signed cash change for a business.
// Net cash for a business is the sum of its amounts.
type CashMovement struct {
	ID          MovementID
	BusinessID  BusinessID
	Kind        CashKind
	Amount      decimal.Decimal // signed per Kind convention
	ReferenceID string
	At          time.Time
}

// =============================================================================
// CATALOG RECORDS - Referenced, never mutated, by the core
// =============================================================================

// Item is a catalog entry owned by a business.
type Item struct {
	ID            ItemID
	BusinessID    BusinessID
	Name          string
	Unit          string // unit of measure, e.g. "kg", "piece"
	PurchasePrice decimal.Decimal // price hint, not binding
	SellingPrice  decimal.Decimal // price hint, not binding
	Deleted       bool
	CreatedAt     time.Time
}

type PartnerRole string

const (
	RoleSupplier PartnerRole = "supplier"
	RoleCustomer PartnerRole = "customer"
)

// Partner is a supplier or customer of a business.
type Partner struct {
	ID         PartnerID
	BusinessID BusinessID
	Name       string
	Role       PartnerRole
	Phone      string
	Address    string
	Deleted    bool
	CreatedAt  time.Time
}

// =============================================================================
// TRADE RECORDS - Tombstoned on reversal, never erased
// =============================================================================

// Purchase records goods bought from a supplier. LineTotal is always
// UnitPrice x Quantity; Unpaid tracks the part not yet settled in cash.
type Purchase struct {
	ID         PurchaseID
	BusinessID BusinessID
	ItemID     ItemID
	PartnerID  PartnerID
	Quantity   int64
	UnitPrice  decimal.Decimal
	Unpaid     decimal.Decimal
	LineTotal  decimal.Decimal
	Reversed   bool
	CreatedAt  time.Time
}

// Sale records goods sold to a customer. Symmetric to Purchase.
type Sale struct {
	ID         SaleID
	BusinessID BusinessID
	ItemID     ItemID
	PartnerID  PartnerID
	Quantity   int64
	UnitPrice  decimal.Decimal
	Unpaid     decimal.Decimal
	LineTotal  decimal.Decimal
	Reversed   bool
	CreatedAt  time.Time
}

// =============================================================================
// ORDER - Lifecycle record
// =============================================================================

// OrderStatus is the lifecycle stage of an order.
// The valid transitions are defined by the trading package.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPurchased OrderStatus = "purchased"
	StatusDelivered OrderStatus = "delivered"
)

// Order ties a requested quantity of an item to its lifecycle stage.
// PurchaseID/SaleID link the at-most-one active trade record per side;
// they are cleared when the linked record is reversed.
type Order struct {
	ID          OrderID
	BusinessID  BusinessID
	ItemID      ItemID
	PartnerID   *PartnerID // consumer; nullable
	Quantity    int64
	Description string
	Status      OrderStatus
	PurchaseID  *PurchaseID
	SaleID      *SaleID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
