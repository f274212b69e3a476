/*
ledger.go - Net balance computation over the movement log

PURPOSE:
  The movement tables are the immutable source of truth for stock and cash.
  Net stock for an item and net cash for a business are always computed by
  replaying movements - there is no separate balance column that can drift.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: movements are never updated or deleted
  2. DERIVED: NetStock/NetCash are pure reads with no side effects
  3. COMPENSATED: a reversed purchase/sale contributes a zero net effect,
     because reversal appends the opposite movement pair

CORRECTIONS:
  A mistaken purchase is not edited. The trading package tombstones the
  record and appends a purchaseReversal cash movement plus the opposite
  inventory movement. Both the original and the compensation stay in the
  log, so history is preserved and the net balance is correct.

SEE ALSO:
  - store.go:           Persistence interface
  - trading/reversal.go: Compensating operations
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Ledger computes net balances and appends movements through a Store.
// It is safe to construct one per transaction: NewLedger(txStore) inside
// WithTx gives balance reads the same isolation as the writes that follow.
type Ledger struct {
	Store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store}
}

// NetStock returns the sum of all inventory movement deltas for the item.
func (l *Ledger) NetStock(ctx context.Context, itemID ItemID) (int64, error) {
	movements, err := l.Store.InventoryMovements(ctx, itemID)
	if err != nil {
		return 0, err
	}

	var net int64
	for _, m := range movements {
		net += m.Delta
	}
	return net, nil
}

// NetCash returns the sum of all cash movement amounts for the business.
func (l *Ledger) NetCash(ctx context.Context, businessID BusinessID) (decimal.Decimal, error) {
	movements, err := l.Store.CashMovements(ctx, businessID)
	if err != nil {
		return decimal.Zero, err
	}

	net := decimal.Zero
	for _, m := range movements {
		net = net.Add(m.Amount)
	}
	return net, nil
}

// RecordInventory appends an inventory movement. Always succeeds unless the
// store is unreachable.
func (l *Ledger) RecordInventory(ctx context.Context, m InventoryMovement) error {
	return l.Store.AppendInventory(ctx, m)
}

// RecordCash appends a cash movement, signed per its kind's convention.
func (l *Ledger) RecordCash(ctx context.Context, m CashMovement) error {
	return l.Store.AppendCash(ctx, m)
}
