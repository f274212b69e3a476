/*
Package sqlite provides the SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  The default durable store. The same patterns apply to PostgreSQL - see
  store/postgres for the pgx implementation - only SQL dialect and locking
  details differ.

APPEND-ONLY ENFORCEMENT:
  The movement tables have no UPDATE or DELETE statements anywhere in this
  package. Corrections happen via compensating movements appended by the
  trading package.

TOMBSTONES:
  Purchases and sales are never deleted; MarkPurchaseReversed and
  MarkSaleReversed flip is_reversed exactly once with a guarded UPDATE.

KEY TABLES:
  items, partners:       catalog (soft-delete via is_deleted)
  orders:                lifecycle records with purchase_id/sale_id links
  purchases, sales:      trade records (tombstone via is_reversed)
  inventory_movements:   append-only stock log
  cash_movements:        append-only cash log

CONCURRENCY:
  Writers are serialized with a sync.Mutex around WithTx and every single
  write, so a balance check and the writes that follow inside one WithTx
  can never interleave with another operation. SQLite is opened in WAL
  mode so readers don't block.

MONEY:
  Decimal values are stored as TEXT and parsed with shopspring/decimal,
  never as floating point.

USAGE:
  store, err := sqlite.New("./data/trade.db")   // or ":memory:"
  defer store.Close()
  svc := trading.NewService(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/trade-ledger/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and sidesteps
	// SQLite's writer contention.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Catalog
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		purchase_price TEXT NOT NULL DEFAULT '0',
		selling_price TEXT NOT NULL DEFAULT '0',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_items_business ON items(business_id);

	CREATE TABLE IF NOT EXISTS partners (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_partners_business ON partners(business_id);

	-- Orders (lifecycle records; soft lifecycle only, never deleted)
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		partner_id TEXT,
		quantity INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		purchase_id TEXT,
		sale_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_business ON orders(business_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

	-- Trade records (tombstoned via is_reversed, never deleted)
	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		partner_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		unpaid TEXT NOT NULL,
		line_total TEXT NOT NULL,
		is_reversed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_purchases_business ON purchases(business_id);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		partner_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		unpaid TEXT NOT NULL,
		line_total TEXT NOT NULL,
		is_reversed INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sales_business ON sales(business_id);

	-- Movements (append-only ledger)
	CREATE TABLE IF NOT EXISTS inventory_movements (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		delta INTEGER NOT NULL,
		reference_id TEXT NOT NULL DEFAULT '',
		at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_inventory_movements_item
		ON inventory_movements(item_id, at);

	CREATE TABLE IF NOT EXISTS cash_movements (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		reference_id TEXT NOT NULL DEFAULT '',
		at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cash_movements_business
		ON cash_movements(business_id, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func storageErr(op string, err error) error {
	return &ledger.StorageError{Op: op, Err: err}
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) InsertItem(ctx context.Context, item ledger.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertItem(ctx, s.db, item)
}

func insertItem(ctx context.Context, q dbtx, item ledger.Item) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO items (id, business_id, name, unit, purchase_price, selling_price, is_deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.BusinessID, item.Name, item.Unit,
		item.PurchasePrice.String(), item.SellingPrice.String(),
		boolToInt(item.Deleted), item.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storageErr("InsertItem", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, id ledger.ItemID) (*ledger.Item, error) {
	return getItem(ctx, s.db, id)
}

func getItem(ctx context.Context, q dbtx, id ledger.ItemID) (*ledger.Item, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, business_id, name, unit, purchase_price, selling_price, is_deleted, created_at
		FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("GetItem", err)
	}
	return item, nil
}

func (s *Store) ListItems(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Item, error) {
	return listItems(ctx, s.db, businessID)
}

func listItems(ctx context.Context, q dbtx, businessID ledger.BusinessID) ([]ledger.Item, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, business_id, name, unit, purchase_price, selling_price, is_deleted, created_at
		FROM items WHERE business_id = ? ORDER BY created_at ASC, id ASC`, businessID)
	if err != nil {
		return nil, storageErr("ListItems", err)
	}
	defer rows.Close()

	var out []ledger.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("ListItems", err)
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListItems", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (*ledger.Item, error) {
	var (
		item          ledger.Item
		purchasePrice string
		sellingPrice  string
		deleted       int
		createdAt     string
	)
	if err := r.Scan(&item.ID, &item.BusinessID, &item.Name, &item.Unit,
		&purchasePrice, &sellingPrice, &deleted, &createdAt); err != nil {
		return nil, err
	}
	item.PurchasePrice = parseDecimal(purchasePrice)
	item.SellingPrice = parseDecimal(sellingPrice)
	item.Deleted = deleted != 0
	item.CreatedAt = parseTime(createdAt)
	return &item, nil
}

func (s *Store) InsertPartner(ctx context.Context, p ledger.Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPartner(ctx, s.db, p)
}

func insertPartner(ctx context.Context, q dbtx, p ledger.Partner) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO partners (id, business_id, name, role, phone, address, is_deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BusinessID, p.Name, p.Role, p.Phone, p.Address,
		boolToInt(p.Deleted), p.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storageErr("InsertPartner", err)
	}
	return nil
}

func (s *Store) GetPartner(ctx context.Context, id ledger.PartnerID) (*ledger.Partner, error) {
	return getPartner(ctx, s.db, id)
}

func getPartner(ctx context.Context, q dbtx, id ledger.PartnerID) (*ledger.Partner, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, business_id, name, role, phone, address, is_deleted, created_at
		FROM partners WHERE id = ?`, id)
	p, err := scanPartner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("GetPartner", err)
	}
	return p, nil
}

func (s *Store) ListPartners(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Partner, error) {
	return listPartners(ctx, s.db, businessID)
}

func listPartners(ctx context.Context, q dbtx, businessID ledger.BusinessID) ([]ledger.Partner, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, business_id, name, role, phone, address, is_deleted, created_at
		FROM partners WHERE business_id = ? ORDER BY created_at ASC, id ASC`, businessID)
	if err != nil {
		return nil, storageErr("ListPartners", err)
	}
	defer rows.Close()

	var out []ledger.Partner
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, storageErr("ListPartners", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListPartners", err)
	}
	return out, nil
}

func scanPartner(r rowScanner) (*ledger.Partner, error) {
	var (
		p         ledger.Partner
		deleted   int
		createdAt string
	)
	if err := r.Scan(&p.ID, &p.BusinessID, &p.Name, &p.Role, &p.Phone, &p.Address,
		&deleted, &createdAt); err != nil {
		return nil, err
	}
	p.Deleted = deleted != 0
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// =============================================================================
// TRADE RECORDS
// =============================================================================

func (s *Store) InsertPurchase(ctx context.Context, p ledger.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPurchase(ctx, s.db, p)
}

func insertPurchase(ctx context.Context, q dbtx, p ledger.Purchase) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO purchases (id, business_id, item_id, partner_id, quantity, unit_price, unpaid, line_total, is_reversed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BusinessID, p.ItemID, p.PartnerID, p.Quantity,
		p.UnitPrice.String(), p.Unpaid.String(), p.LineTotal.String(),
		boolToInt(p.Reversed), p.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storageErr("InsertPurchase", err)
	}
	return nil
}

func (s *Store) GetPurchase(ctx context.Context, id ledger.PurchaseID) (*ledger.Purchase, error) {
	return getPurchase(ctx, s.db, id)
}

func getPurchase(ctx context.Context, q dbtx, id ledger.PurchaseID) (*ledger.Purchase, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, business_id, item_id, partner_id, quantity, unit_price, unpaid, line_total, is_reversed, created_at
		FROM purchases WHERE id = ?`, id)
	p, err := scanPurchase(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("GetPurchase", err)
	}
	return p, nil
}

func (s *Store) ListPurchases(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Purchase, error) {
	return listPurchases(ctx, s.db, businessID)
}

func listPurchases(ctx context.Context, q dbtx, businessID ledger.BusinessID) ([]ledger.Purchase, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, business_id, item_id, partner_id, quantity, unit_price, unpaid, line_total, is_reversed, created_at
		FROM purchases WHERE business_id = ? ORDER BY created_at ASC, id ASC`, businessID)
	if err != nil {
		return nil, storageErr("ListPurchases", err)
	}
	defer rows.Close()

	var out []ledger.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, storageErr("ListPurchases", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListPurchases", err)
	}
	return out, nil
}

func scanPurchase(r rowScanner) (*ledger.Purchase, error) {
	var (
		p         ledger.Purchase
		unitPrice string
		unpaid    string
		lineTotal string
		reversed  int
		createdAt string
	)
	if err := r.Scan(&p.ID, &p.BusinessID, &p.ItemID, &p.PartnerID, &p.Quantity,
		&unitPrice, &unpaid, &lineTotal, &reversed, &createdAt); err != nil {
		return nil, err
	}
	p.UnitPrice = parseDecimal(unitPrice)
	p.Unpaid = parseDecimal(unpaid)
	p.LineTotal = parseDecimal(lineTotal)
	p.Reversed = reversed != 0
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func (s *Store) MarkPurchaseReversed(ctx context.Context, id ledger.PurchaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markPurchaseReversed(ctx, s.db, id)
}

func markPurchaseReversed(ctx context.Context, q dbtx, id ledger.PurchaseID) error {
	// Guarded update: flips the tombstone exactly once.
	res, err := q.ExecContext(ctx,
		`UPDATE purchases SET is_reversed = 1 WHERE id = ? AND is_reversed = 0`, id)
	if err != nil {
		return storageErr("MarkPurchaseReversed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("MarkPurchaseReversed", err)
	}
	if n == 0 {
		p, err := getPurchase(ctx, q, id)
		if err != nil {
			return err
		}
		if p == nil {
			return &ledger.NotFoundError{Kind: "purchase", ID: string(id)}
		}
		return fmt.Errorf("purchase %s: %w", id, ledger.ErrAlreadyReversed)
	}
	return nil
}

func (s *Store) InsertSale(ctx context.Context, sale ledger.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertSale(ctx, s.db, sale)
}

func insertSale(ctx context.Context, q dbtx, sale ledger.Sale) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO sales (id, business_id, item_id, partner_id, quantity, unit_price, unpaid, line_total, is_reversed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.BusinessID, sale.ItemID, sale.PartnerID, sale.Quantity,
		sale.UnitPrice.String(), sale.Unpaid.String(), sale.LineTotal.String(),
		boolToInt(sale.Reversed), sale.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storageErr("InsertSale", err)
	}
	return nil
}

func (s *Store) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	return getSale(ctx, s.db, id)
}

func getSale(ctx context.Context, q dbtx, id ledger.SaleID) (*ledger.Sale, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, business_id, item_id, partner_id, quantity, unit_price, unpaid, line_total, is_reversed, created_at
		FROM sales WHERE id = ?`, id)
	sale, err := scanSale(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("GetSale", err)
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Sale, error) {
	return listSales(ctx, s.db, businessID)
}

func listSales(ctx context.Context, q dbtx, businessID ledger.BusinessID) ([]ledger.Sale, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, business_id, item_id, partner_id, quantity, unit_price, unpaid, line_total, is_reversed, created_at
		FROM sales WHERE business_id = ? ORDER BY created_at ASC, id ASC`, businessID)
	if err != nil {
		return nil, storageErr("ListSales", err)
	}
	defer rows.Close()

	var out []ledger.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, storageErr("ListSales", err)
		}
		out = append(out, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListSales", err)
	}
	return out, nil
}

func scanSale(r rowScanner) (*ledger.Sale, error) {
	var (
		sale      ledger.Sale
		unitPrice string
		unpaid    string
		lineTotal string
		reversed  int
		createdAt string
	)
	if err := r.Scan(&sale.ID, &sale.BusinessID, &sale.ItemID, &sale.PartnerID, &sale.Quantity,
		&unitPrice, &unpaid, &lineTotal, &reversed, &createdAt); err != nil {
		return nil, err
	}
	sale.UnitPrice = parseDecimal(unitPrice)
	sale.Unpaid = parseDecimal(unpaid)
	sale.LineTotal = parseDecimal(lineTotal)
	sale.Reversed = reversed != 0
	sale.CreatedAt = parseTime(createdAt)
	return &sale, nil
}

func (s *Store) MarkSaleReversed(ctx context.Context, id ledger.SaleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markSaleReversed(ctx, s.db, id)
}

func markSaleReversed(ctx context.Context, q dbtx, id ledger.SaleID) error {
	res, err := q.ExecContext(ctx,
		`UPDATE sales SET is_reversed = 1 WHERE id = ? AND is_reversed = 0`, id)
	if err != nil {
		return storageErr("MarkSaleReversed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("MarkSaleReversed", err)
	}
	if n == 0 {
		sale, err := getSale(ctx, q, id)
		if err != nil {
			return err
		}
		if sale == nil {
			return &ledger.NotFoundError{Kind: "sale", ID: string(id)}
		}
		return fmt.Errorf("sale %s: %w", id, ledger.ErrAlreadyReversed)
	}
	return nil
}

// =============================================================================
// ORDERS
// =============================================================================

func (s *Store) InsertOrder(ctx context.Context, o ledger.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertOrder(ctx, s.db, o)
}

func insertOrder(ctx context.Context, q dbtx, o ledger.Order) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (id, business_id, item_id, partner_id, quantity, description, status, purchase_id, sale_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.BusinessID, o.ItemID, nullablePartner(o.PartnerID), o.Quantity,
		o.Description, o.Status, nullablePurchase(o.PurchaseID), nullableSale(o.SaleID),
		o.CreatedAt.UTC().Format(time.RFC3339Nano), o.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storageErr("InsertOrder", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id ledger.OrderID) (*ledger.Order, error) {
	return getOrder(ctx, s.db, id)
}

func getOrder(ctx context.Context, q dbtx, id ledger.OrderID) (*ledger.Order, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, business_id, item_id, partner_id, quantity, description, status, purchase_id, sale_id, created_at, updated_at
		FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("GetOrder", err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Order, error) {
	return listOrders(ctx, s.db, businessID)
}

func listOrders(ctx context.Context, q dbtx, businessID ledger.BusinessID) ([]ledger.Order, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, business_id, item_id, partner_id, quantity, description, status, purchase_id, sale_id, created_at, updated_at
		FROM orders WHERE business_id = ? ORDER BY created_at ASC, id ASC`, businessID)
	if err != nil {
		return nil, storageErr("ListOrders", err)
	}
	defer rows.Close()

	var out []ledger.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, storageErr("ListOrders", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListOrders", err)
	}
	return out, nil
}

func scanOrder(r rowScanner) (*ledger.Order, error) {
	var (
		o          ledger.Order
		partnerID  sql.NullString
		purchaseID sql.NullString
		saleID     sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := r.Scan(&o.ID, &o.BusinessID, &o.ItemID, &partnerID, &o.Quantity,
		&o.Description, &o.Status, &purchaseID, &saleID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if partnerID.Valid {
		id := ledger.PartnerID(partnerID.String)
		o.PartnerID = &id
	}
	if purchaseID.Valid {
		id := ledger.PurchaseID(purchaseID.String)
		o.PurchaseID = &id
	}
	if saleID.Valid {
		id := ledger.SaleID(saleID.String)
		o.SaleID = &id
	}
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	return &o, nil
}

func (s *Store) UpdateOrder(ctx context.Context, o ledger.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateOrder(ctx, s.db, o)
}

func updateOrder(ctx context.Context, q dbtx, o ledger.Order) error {
	res, err := q.ExecContext(ctx, `
		UPDATE orders SET status = ?, purchase_id = ?, sale_id = ?, updated_at = ?
		WHERE id = ?`,
		o.Status, nullablePurchase(o.PurchaseID), nullableSale(o.SaleID),
		o.UpdatedAt.UTC().Format(time.RFC3339Nano), o.ID,
	)
	if err != nil {
		return storageErr("UpdateOrder", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("UpdateOrder", err)
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: "order", ID: string(o.ID)}
	}
	return nil
}

// =============================================================================
// MOVEMENTS (append-only)
// =============================================================================

func (s *Store) AppendInventory(ctx context.Context, m ledger.InventoryMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendInventory(ctx, s.db, m)
}

func appendInventory(ctx context.Context, q dbtx, m ledger.InventoryMovement) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO inventory_movements (id, item_id, delta, reference_id, at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ItemID, m.Delta, m.ReferenceID, m.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storageErr("AppendInventory", err)
	}
	return nil
}

func (s *Store) AppendCash(ctx context.Context, m ledger.CashMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendCash(ctx, s.db, m)
}

func appendCash(ctx context.Context, q dbtx, m ledger.CashMovement) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO cash_movements (id, business_id, kind, amount, reference_id, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.BusinessID, m.Kind, m.Amount.String(), m.ReferenceID,
		m.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storageErr("AppendCash", err)
	}
	return nil
}

func (s *Store) InventoryMovements(ctx context.Context, itemID ledger.ItemID) ([]ledger.InventoryMovement, error) {
	return inventoryMovements(ctx, s.db, itemID)
}

func inventoryMovements(ctx context.Context, q dbtx, itemID ledger.ItemID) ([]ledger.InventoryMovement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, item_id, delta, reference_id, at
		FROM inventory_movements WHERE item_id = ? ORDER BY at ASC, id ASC`, itemID)
	if err != nil {
		return nil, storageErr("InventoryMovements", err)
	}
	defer rows.Close()

	var out []ledger.InventoryMovement
	for rows.Next() {
		var (
			m  ledger.InventoryMovement
			at string
		)
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Delta, &m.ReferenceID, &at); err != nil {
			return nil, storageErr("InventoryMovements", err)
		}
		m.At = parseTime(at)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("InventoryMovements", err)
	}
	return out, nil
}

func (s *Store) CashMovements(ctx context.Context, businessID ledger.BusinessID) ([]ledger.CashMovement, error) {
	return cashMovements(ctx, s.db, businessID)
}

func cashMovements(ctx context.Context, q dbtx, businessID ledger.BusinessID) ([]ledger.CashMovement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, business_id, kind, amount, reference_id, at
		FROM cash_movements WHERE business_id = ? ORDER BY at ASC, id ASC`, businessID)
	if err != nil {
		return nil, storageErr("CashMovements", err)
	}
	defer rows.Close()

	var out []ledger.CashMovement
	for rows.Next() {
		var (
			m      ledger.CashMovement
			amount string
			at     string
		)
		if err := rows.Scan(&m.ID, &m.BusinessID, &m.Kind, &amount, &m.ReferenceID, &at); err != nil {
			return nil, storageErr("CashMovements", err)
		}
		m.Amount = parseDecimal(amount)
		m.At = parseTime(at)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("CashMovements", err)
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONS (ledger.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. The store mutex is held
// for the duration, so the whole check-then-act sequence is serialized
// against every other write.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("BeginTx", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return storageErr("Commit", err)
	}
	return nil
}

// txStore is the in-transaction view; it routes every call through the
// shared helpers with the *sql.Tx as the executor.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) InsertItem(ctx context.Context, item ledger.Item) error {
	return insertItem(ctx, t.tx, item)
}
func (t *txStore) GetItem(ctx context.Context, id ledger.ItemID) (*ledger.Item, error) {
	return getItem(ctx, t.tx, id)
}
func (t *txStore) ListItems(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Item, error) {
	return listItems(ctx, t.tx, businessID)
}
func (t *txStore) InsertPartner(ctx context.Context, p ledger.Partner) error {
	return insertPartner(ctx, t.tx, p)
}
func (t *txStore) GetPartner(ctx context.Context, id ledger.PartnerID) (*ledger.Partner, error) {
	return getPartner(ctx, t.tx, id)
}
func (t *txStore) ListPartners(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Partner, error) {
	return listPartners(ctx, t.tx, businessID)
}
func (t *txStore) InsertPurchase(ctx context.Context, p ledger.Purchase) error {
	return insertPurchase(ctx, t.tx, p)
}
func (t *txStore) GetPurchase(ctx context.Context, id ledger.PurchaseID) (*ledger.Purchase, error) {
	return getPurchase(ctx, t.tx, id)
}
func (t *txStore) ListPurchases(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Purchase, error) {
	return listPurchases(ctx, t.tx, businessID)
}
func (t *txStore) MarkPurchaseReversed(ctx context.Context, id ledger.PurchaseID) error {
	return markPurchaseReversed(ctx, t.tx, id)
}
func (t *txStore) InsertSale(ctx context.Context, sale ledger.Sale) error {
	return insertSale(ctx, t.tx, sale)
}
func (t *txStore) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	return getSale(ctx, t.tx, id)
}
func (t *txStore) ListSales(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Sale, error) {
	return listSales(ctx, t.tx, businessID)
}
func (t *txStore) MarkSaleReversed(ctx context.Context, id ledger.SaleID) error {
	return markSaleReversed(ctx, t.tx, id)
}
func (t *txStore) InsertOrder(ctx context.Context, o ledger.Order) error {
	return insertOrder(ctx, t.tx, o)
}
func (t *txStore) GetOrder(ctx context.Context, id ledger.OrderID) (*ledger.Order, error) {
	return getOrder(ctx, t.tx, id)
}
func (t *txStore) ListOrders(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Order, error) {
	return listOrders(ctx, t.tx, businessID)
}
func (t *txStore) UpdateOrder(ctx context.Context, o ledger.Order) error {
	return updateOrder(ctx, t.tx, o)
}
func (t *txStore) AppendInventory(ctx context.Context, m ledger.InventoryMovement) error {
	return appendInventory(ctx, t.tx, m)
}
func (t *txStore) AppendCash(ctx context.Context, m ledger.CashMovement) error {
	return appendCash(ctx, t.tx, m)
}
func (t *txStore) InventoryMovements(ctx context.Context, itemID ledger.ItemID) ([]ledger.InventoryMovement, error) {
	return inventoryMovements(ctx, t.tx, itemID)
}
func (t *txStore) CashMovements(ctx context.Context, businessID ledger.BusinessID) ([]ledger.CashMovement, error) {
	return cashMovements(ctx, t.tx, businessID)
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullablePartner(id *ledger.PartnerID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func nullablePurchase(id *ledger.PurchaseID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func nullableSale(id *ledger.SaleID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}
