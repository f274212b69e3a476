/*
operations.go - Purchase and sale operations

PURPOSE:
  Atomic trade operations: validate referenced records, compute the line
  total, gate on the relevant net balance, then append the trade record
  and its movement pair. Nothing is written if any check fails, and the
  record and its movements commit together or not at all.

OPERATION FLOW (purchase):
  1. Validate item exists, belongs to the business, not soft-deleted
  2. Validate partner likewise
  3. lineTotal = unitPrice x quantity
  4. Funds gate: netCash - lineTotal must be >= 0
  5. Insert Purchase, append InventoryMovement(+qty) and
     CashMovement(purchase, -lineTotal)
  All five steps run in one store transaction.

Sale is symmetric, gated on the item's net stock instead of cash.

SEE ALSO:
  - reversal.go: the compensating counterparts
  - orders.go:   drives these as order-transition side effects
*/
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/trade-ledger/ledger"
)

// Service exposes the trading operations. All methods run their multi-step
// sequences under a single store transaction.
type Service struct {
	Store ledger.TxStore
}

func NewService(store ledger.TxStore) *Service {
	return &Service{Store: store}
}

// TradeInput is the single argument set for purchase and sale. Named
// fields keep price and quantity from being swapped at call sites.
type TradeInput struct {
	ItemID    ledger.ItemID
	PartnerID ledger.PartnerID
	UnitPrice decimal.Decimal
	Quantity  int64
	Unpaid    decimal.Decimal
}

func (in TradeInput) validate() error {
	if in.ItemID == "" {
		return fmt.Errorf("item id is required: %w", ledger.ErrInvalidInput)
	}
	if in.PartnerID == "" {
		return fmt.Errorf("partner id is required: %w", ledger.ErrInvalidInput)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d: %w", in.Quantity, ledger.ErrInvalidInput)
	}
	if in.UnitPrice.IsNegative() {
		return fmt.Errorf("unit price must not be negative: %w", ledger.ErrInvalidInput)
	}
	if in.Unpaid.IsNegative() {
		return fmt.Errorf("unpaid amount must not be negative: %w", ledger.ErrInvalidInput)
	}
	return nil
}

// =============================================================================
// PURCHASE
// =============================================================================

// Purchase buys quantity of an item from a supplier, appending the inventory
// and cash movements together with the Purchase record.
func (s *Service) Purchase(ctx context.Context, biz BusinessContext, in TradeInput) (*ledger.Purchase, error) {
	var out *ledger.Purchase
	err := s.Store.WithTx(ctx, func(st ledger.Store) error {
		p, err := purchaseTx(ctx, st, biz, in)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// purchaseTx runs the purchase sequence against an in-transaction store.
// orders.go calls it directly so an order transition and its side effect
// share one transaction.
func purchaseTx(ctx context.Context, st ledger.Store, biz BusinessContext, in TradeInput) (*ledger.Purchase, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := lockAggregates(ctx, st, biz.BusinessID, in.ItemID); err != nil {
		return nil, err
	}

	item, err := activeItem(ctx, st, biz, in.ItemID)
	if err != nil {
		return nil, err
	}
	if _, err := activePartner(ctx, st, biz, in.PartnerID); err != nil {
		return nil, err
	}

	lineTotal := in.UnitPrice.Mul(decimal.NewFromInt(in.Quantity))

	l := ledger.NewLedger(st)
	cash, err := l.NetCash(ctx, biz.BusinessID)
	if err != nil {
		return nil, err
	}
	if cash.Sub(lineTotal).IsNegative() {
		return nil, &ledger.InsufficientFundsError{
			BusinessID: biz.BusinessID,
			Available:  cash,
			Required:   lineTotal,
		}
	}

	now := time.Now().UTC()
	p := ledger.Purchase{
		ID:         ledger.PurchaseID(uuid.NewString()),
		BusinessID: biz.BusinessID,
		ItemID:     item.ID,
		PartnerID:  in.PartnerID,
		Quantity:   in.Quantity,
		UnitPrice:  in.UnitPrice,
		Unpaid:     in.Unpaid,
		LineTotal:  lineTotal,
		CreatedAt:  now,
	}
	if err := st.InsertPurchase(ctx, p); err != nil {
		return nil, err
	}

	if err := l.RecordInventory(ctx, ledger.InventoryMovement{
		ID:          ledger.MovementID(uuid.NewString()),
		ItemID:      item.ID,
		Delta:       in.Quantity,
		ReferenceID: string(p.ID),
		At:          now,
	}); err != nil {
		return nil, err
	}
	if err := l.RecordCash(ctx, ledger.CashMovement{
		ID:          ledger.MovementID(uuid.NewString()),
		BusinessID:  biz.BusinessID,
		Kind:        ledger.CashPurchase,
		Amount:      lineTotal.Neg(),
		ReferenceID: string(p.ID),
		At:          now,
	}); err != nil {
		return nil, err
	}

	return &p, nil
}

// =============================================================================
// SALE
// =============================================================================

// Sell sells quantity of an item to a customer. The stock gate is evaluated
// per item, immediately before the insert, inside the same transaction.
func (s *Service) Sell(ctx context.Context, biz BusinessContext, in TradeInput) (*ledger.Sale, error) {
	var out *ledger.Sale
	err := s.Store.WithTx(ctx, func(st ledger.Store) error {
		sale, err := sellTx(ctx, st, biz, in)
		if err != nil {
			return err
		}
		out = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sellTx(ctx context.Context, st ledger.Store, biz BusinessContext, in TradeInput) (*ledger.Sale, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := lockAggregates(ctx, st, biz.BusinessID, in.ItemID); err != nil {
		return nil, err
	}

	item, err := activeItem(ctx, st, biz, in.ItemID)
	if err != nil {
		return nil, err
	}
	if _, err := activePartner(ctx, st, biz, in.PartnerID); err != nil {
		return nil, err
	}

	lineTotal := in.UnitPrice.Mul(decimal.NewFromInt(in.Quantity))

	l := ledger.NewLedger(st)
	stock, err := l.NetStock(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if stock < in.Quantity {
		return nil, &ledger.InsufficientInventoryError{
			ItemID:    item.ID,
			Available: stock,
			Requested: in.Quantity,
		}
	}

	now := time.Now().UTC()
	sale := ledger.Sale{
		ID:         ledger.SaleID(uuid.NewString()),
		BusinessID: biz.BusinessID,
		ItemID:     item.ID,
		PartnerID:  in.PartnerID,
		Quantity:   in.Quantity,
		UnitPrice:  in.UnitPrice,
		Unpaid:     in.Unpaid,
		LineTotal:  lineTotal,
		CreatedAt:  now,
	}
	if err := st.InsertSale(ctx, sale); err != nil {
		return nil, err
	}

	if err := l.RecordInventory(ctx, ledger.InventoryMovement{
		ID:          ledger.MovementID(uuid.NewString()),
		ItemID:      item.ID,
		Delta:       -in.Quantity,
		ReferenceID: string(sale.ID),
		At:          now,
	}); err != nil {
		return nil, err
	}
	if err := l.RecordCash(ctx, ledger.CashMovement{
		ID:          ledger.MovementID(uuid.NewString()),
		BusinessID:  biz.BusinessID,
		Kind:        ledger.CashSale,
		Amount:      lineTotal,
		ReferenceID: string(sale.ID),
		At:          now,
	}); err != nil {
		return nil, err
	}

	return &sale, nil
}

// =============================================================================
// STANDALONE CASH OPERATIONS
// =============================================================================

// RecordCapital records owner funding (positive) or a withdrawal (negative).
// Withdrawals are funds-gated like any other outflow.
func (s *Service) RecordCapital(ctx context.Context, biz BusinessContext, amount decimal.Decimal) (*ledger.CashMovement, error) {
	if amount.IsZero() {
		return nil, fmt.Errorf("capital amount must not be zero: %w", ledger.ErrInvalidInput)
	}
	return s.appendCashGated(ctx, biz, ledger.CashCapital, amount)
}

// RecordRecurringFee records an operating-cost outflow of the given
// (positive) amount.
func (s *Service) RecordRecurringFee(ctx context.Context, biz BusinessContext, amount decimal.Decimal) (*ledger.CashMovement, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("fee amount must be positive: %w", ledger.ErrInvalidInput)
	}
	return s.appendCashGated(ctx, biz, ledger.CashRecurringFee, amount.Neg())
}

func (s *Service) appendCashGated(ctx context.Context, biz BusinessContext, kind ledger.CashKind, amount decimal.Decimal) (*ledger.CashMovement, error) {
	var out *ledger.CashMovement
	err := s.Store.WithTx(ctx, func(st ledger.Store) error {
		if err := lockAggregates(ctx, st, biz.BusinessID, ""); err != nil {
			return err
		}
		l := ledger.NewLedger(st)
		if amount.IsNegative() {
			cash, err := l.NetCash(ctx, biz.BusinessID)
			if err != nil {
				return err
			}
			if cash.Add(amount).IsNegative() {
				return &ledger.InsufficientFundsError{
					BusinessID: biz.BusinessID,
					Available:  cash,
					Required:   amount.Neg(),
				}
			}
		}
		m := ledger.CashMovement{
			ID:         ledger.MovementID(uuid.NewString()),
			BusinessID: biz.BusinessID,
			Kind:       kind,
			Amount:     amount,
			At:         time.Now().UTC(),
		}
		if err := l.RecordCash(ctx, m); err != nil {
			return err
		}
		out = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// BALANCE READS
// =============================================================================

// NetCash returns the business's current net cash.
func (s *Service) NetCash(ctx context.Context, biz BusinessContext) (decimal.Decimal, error) {
	return ledger.NewLedger(s.Store).NetCash(ctx, biz.BusinessID)
}

// NetStock returns the item's current net stock.
func (s *Service) NetStock(ctx context.Context, itemID ledger.ItemID) (int64, error) {
	return ledger.NewLedger(s.Store).NetStock(ctx, itemID)
}

// =============================================================================
// SHARED VALIDATION
// =============================================================================

func activeItem(ctx context.Context, st ledger.Store, biz BusinessContext, id ledger.ItemID) (*ledger.Item, error) {
	item, err := st.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.Deleted || item.BusinessID != biz.BusinessID {
		return nil, &ledger.NotFoundError{Kind: "item", ID: string(id)}
	}
	return item, nil
}

func activePartner(ctx context.Context, st ledger.Store, biz BusinessContext, id ledger.PartnerID) (*ledger.Partner, error) {
	p, err := st.GetPartner(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil || p.Deleted || p.BusinessID != biz.BusinessID {
		return nil, &ledger.NotFoundError{Kind: "partner", ID: string(id)}
	}
	return p, nil
}

// lockAggregates serializes the transaction on the aggregate keys it will
// check and write, when the store supports per-key locking. Stores that
// serialize writers globally satisfy the same contract without it.
func lockAggregates(ctx context.Context, st ledger.Store, businessID ledger.BusinessID, itemID ledger.ItemID) error {
	locker, ok := st.(ledger.AggregateLocker)
	if !ok {
		return nil
	}
	if businessID != "" {
		if err := locker.LockBusiness(ctx, businessID); err != nil {
			return err
		}
	}
	if itemID != "" {
		if err := locker.LockItem(ctx, itemID); err != nil {
			return err
		}
	}
	return nil
}
