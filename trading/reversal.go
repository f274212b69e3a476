/*
reversal.go - Compensating operations

PURPOSE:
  Undo a purchase or sale without deleting anything. The original record is
  tombstoned (Reversed = true) and the opposite movement pair is appended in
  the same transaction, so the net ledger effect goes back to zero and no
  failure can leave a tombstoned record without its compensation.

ONE REVERSAL PATH:
  Every caller, including the order state machine, goes through
  reversePurchaseTx / reverseSaleTx. Keeping a single implementation is
  what guarantees the two ledgers can never drift apart on an undo.

GATES:
  Reversing a purchase hands the goods back, so the item must still have
  the quantity in stock. Reversing a sale refunds the customer, so the
  business must still have the line total in cash. The gates run inside the
  transaction, like every other balance check.
*/
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/trade-ledger/ledger"
)

// ReversePurchase tombstones the purchase and appends the compensating
// movements: inventory -quantity, cash +lineTotal (kind purchaseReversal).
func (s *Service) ReversePurchase(ctx context.Context, biz BusinessContext, id ledger.PurchaseID) error {
	return s.Store.WithTx(ctx, func(st ledger.Store) error {
		return reversePurchaseTx(ctx, st, biz, id)
	})
}

func reversePurchaseTx(ctx context.Context, st ledger.Store, biz BusinessContext, id ledger.PurchaseID) error {
	p, err := st.GetPurchase(ctx, id)
	if err != nil {
		return err
	}
	if p == nil || p.BusinessID != biz.BusinessID {
		return &ledger.NotFoundError{Kind: "purchase", ID: string(id)}
	}
	if p.Reversed {
		return fmt.Errorf("purchase %s: %w", id, ledger.ErrAlreadyReversed)
	}

	if err := lockAggregates(ctx, st, biz.BusinessID, p.ItemID); err != nil {
		return err
	}

	l := ledger.NewLedger(st)
	stock, err := l.NetStock(ctx, p.ItemID)
	if err != nil {
		return err
	}
	if stock < p.Quantity {
		return &ledger.InsufficientInventoryError{
			ItemID:    p.ItemID,
			Available: stock,
			Requested: p.Quantity,
		}
	}

	if err := st.MarkPurchaseReversed(ctx, id); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := l.RecordInventory(ctx, ledger.InventoryMovement{
		ID:          ledger.MovementID(uuid.NewString()),
		ItemID:      p.ItemID,
		Delta:       -p.Quantity,
		ReferenceID: string(id),
		At:          now,
	}); err != nil {
		return err
	}
	return l.RecordCash(ctx, ledger.CashMovement{
		ID:          ledger.MovementID(uuid.NewString()),
		BusinessID:  biz.BusinessID,
		Kind:        ledger.CashPurchaseReversal,
		Amount:      p.LineTotal,
		ReferenceID: string(id),
		At:          now,
	})
}

// ReverseSale tombstones the sale and appends the compensating movements:
// inventory +quantity, cash -lineTotal (kind saleReversal).
func (s *Service) ReverseSale(ctx context.Context, biz BusinessContext, id ledger.SaleID) error {
	return s.Store.WithTx(ctx, func(st ledger.Store) error {
		return reverseSaleTx(ctx, st, biz, id)
	})
}

func reverseSaleTx(ctx context.Context, st ledger.Store, biz BusinessContext, id ledger.SaleID) error {
	sale, err := st.GetSale(ctx, id)
	if err != nil {
		return err
	}
	if sale == nil || sale.BusinessID != biz.BusinessID {
		return &ledger.NotFoundError{Kind: "sale", ID: string(id)}
	}
	if sale.Reversed {
		return fmt.Errorf("sale %s: %w", id, ledger.ErrAlreadyReversed)
	}

	if err := lockAggregates(ctx, st, biz.BusinessID, sale.ItemID); err != nil {
		return err
	}

	l := ledger.NewLedger(st)
	cash, err := l.NetCash(ctx, biz.BusinessID)
	if err != nil {
		return err
	}
	if cash.Sub(sale.LineTotal).IsNegative() {
		return &ledger.InsufficientFundsError{
			BusinessID: biz.BusinessID,
			Available:  cash,
			Required:   sale.LineTotal,
		}
	}

	if err := st.MarkSaleReversed(ctx, id); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := l.RecordInventory(ctx, ledger.InventoryMovement{
		ID:          ledger.MovementID(uuid.NewString()),
		ItemID:      sale.ItemID,
		Delta:       sale.Quantity,
		ReferenceID: string(id),
		At:          now,
	}); err != nil {
		return err
	}
	return l.RecordCash(ctx, ledger.CashMovement{
		ID:          ledger.MovementID(uuid.NewString()),
		BusinessID:  biz.BusinessID,
		Kind:        ledger.CashSaleReversal,
		Amount:      sale.LineTotal.Neg(),
		ReferenceID: string(id),
		At:          now,
	})
}
