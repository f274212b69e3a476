/*
store.go - Persistence interfaces for ledger records

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations back the same contract: in-memory (tests/dev),
  SQLite (default) and PostgreSQL.

APPEND-ONLY CONTRACT:
  Movements are append-only: AppendInventory / AppendCash exist, no update
  or delete. Corrections are made via compensating movements recorded by
  the trading package's reversal operations.

TOMBSTONES:
  Purchases and sales are never erased. MarkPurchaseReversed /
  MarkSaleReversed flip the Reversed flag exactly once; a second call
  returns ErrAlreadyReversed.

ATOMICITY:
  TxStore.WithTx runs a function against a transactional view of the
  store. If the function returns an error, nothing is applied. Every
  multi-step operation in the trading package runs under WithTx so the
  balance check and the writes that follow are linearizable per
  business id (cash) and item id (stock).

IMPLEMENTATIONS:
  - ledger/store/memory.go:   In-memory, snapshot-rollback transactions
  - store/sqlite/sqlite.go:   SQLite with WAL, mutex-serialized writers
  - store/postgres/postgres.go: pgx with advisory locks per aggregate key

SEE ALSO:
  - ledger.go:  Balance calculator built on Store
  - trading:    The only package that mutates ledger state
*/
package ledger

import "context"

// Store handles persistence of catalog, trade, order and movement records.
// All writes surface store failures as *StorageError.
type Store interface {
	// Catalog.
	InsertItem(ctx context.Context, item Item) error
	GetItem(ctx context.Context, id ItemID) (*Item, error)
	ListItems(ctx context.Context, businessID BusinessID) ([]Item, error)
	InsertPartner(ctx context.Context, p Partner) error
	GetPartner(ctx context.Context, id PartnerID) (*Partner, error)
	ListPartners(ctx context.Context, businessID BusinessID) ([]Partner, error)

	// Trade records. Mark* tombstones exactly once.
	InsertPurchase(ctx context.Context, p Purchase) error
	GetPurchase(ctx context.Context, id PurchaseID) (*Purchase, error)
	ListPurchases(ctx context.Context, businessID BusinessID) ([]Purchase, error)
	MarkPurchaseReversed(ctx context.Context, id PurchaseID) error
	InsertSale(ctx context.Context, s Sale) error
	GetSale(ctx context.Context, id SaleID) (*Sale, error)
	ListSales(ctx context.Context, businessID BusinessID) ([]Sale, error)
	MarkSaleReversed(ctx context.Context, id SaleID) error

	// Orders. UpdateOrder is the raw status/foreign-key mutator; it performs
	// no validation and must only be reached through the trading package.
	InsertOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, id OrderID) (*Order, error)
	ListOrders(ctx context.Context, businessID BusinessID) ([]Order, error)
	UpdateOrder(ctx context.Context, o Order) error

	// Movements (append-only).
	AppendInventory(ctx context.Context, m InventoryMovement) error
	AppendCash(ctx context.Context, m CashMovement) error
	InventoryMovements(ctx context.Context, itemID ItemID) ([]InventoryMovement, error)
	CashMovements(ctx context.Context, businessID BusinessID) ([]CashMovement, error)
}

// TxStore wraps Store with transaction support.
//
// WithTx executes fn within a transaction. If fn returns an error the
// transaction is rolled back and nothing is applied; if fn returns nil the
// transaction is committed. Commit failures surface as *StorageError.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}

// AggregateLocker is an optional store capability: serializing access per
// aggregate key before a check-then-act sequence. Implementations that
// already serialize writers globally (memory, SQLite) do not provide it;
// the PostgreSQL store maps it to transaction-scoped advisory locks.
//
// Locks are released when the surrounding transaction ends.
type AggregateLocker interface {
	LockBusiness(ctx context.Context, id BusinessID) error
	LockItem(ctx context.Context, id ItemID) error
}
