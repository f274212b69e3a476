/*
Package postgres provides the PostgreSQL-backed implementation of
ledger.TxStore using pgx.

PURPOSE:
  Same contract as store/sqlite, for deployments backed by a hosted
  Postgres. Unlike the SQLite store there is no process-wide mutex:
  concurrency control is the database's job.

LOCKING:
  The in-transaction store implements ledger.AggregateLocker with
  transaction-scoped advisory locks (pg_advisory_xact_lock), keyed by
  business id for cash and item id for stock. The trading package takes
  the locks before its balance checks, so two concurrent purchases
  against the same business serialize while different businesses proceed
  in parallel. Locks release automatically at commit/rollback.

MONEY:
  Decimal values live in NUMERIC columns; they are sent as strings and
  read back with a ::text cast, so no float conversion ever happens.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool with versioned migrations.
*/
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/trade-ledger/ledger"
)

// Store implements ledger.TxStore using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the given DSN and migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		purchase_price NUMERIC(20,6) NOT NULL DEFAULT 0,
		selling_price NUMERIC(20,6) NOT NULL DEFAULT 0,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_items_business ON items(business_id);

	CREATE TABLE IF NOT EXISTS partners (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_partners_business ON partners(business_id);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		partner_id TEXT,
		quantity BIGINT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		purchase_id TEXT,
		sale_id TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_business ON orders(business_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		partner_id TEXT NOT NULL,
		quantity BIGINT NOT NULL,
		unit_price NUMERIC(20,6) NOT NULL,
		unpaid NUMERIC(20,6) NOT NULL,
		line_total NUMERIC(20,6) NOT NULL,
		is_reversed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_purchases_business ON purchases(business_id);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		item_id TEXT NOT NULL,
		partner_id TEXT NOT NULL,
		quantity BIGINT NOT NULL,
		unit_price NUMERIC(20,6) NOT NULL,
		unpaid NUMERIC(20,6) NOT NULL,
		line_total NUMERIC(20,6) NOT NULL,
		is_reversed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sales_business ON sales(business_id);

	CREATE TABLE IF NOT EXISTS inventory_movements (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL,
		delta BIGINT NOT NULL,
		reference_id TEXT NOT NULL DEFAULT '',
		at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_inventory_movements_item
		ON inventory_movements(item_id, at);

	CREATE TABLE IF NOT EXISTS cash_movements (
		id TEXT PRIMARY KEY,
		business_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		amount NUMERIC(20,6) NOT NULL,
		reference_id TEXT NOT NULL DEFAULT '',
		at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cash_movements_business
		ON cash_movements(business_id, at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// pgdb is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgdb interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func storageErr(op string, err error) error {
	return &ledger.StorageError{Op: op, Err: err}
}

// =============================================================================
// CATALOG
// =============================================================================

func insertItem(ctx context.Context, q pgdb, item ledger.Item) error {
	_, err := q.Exec(ctx, `
		INSERT INTO items (id, business_id, name, unit, purchase_price, selling_price, is_deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.BusinessID, item.Name, item.Unit,
		item.PurchasePrice.String(), item.SellingPrice.String(),
		item.Deleted, item.CreatedAt,
	)
	if err != nil {
		return storageErr("InsertItem", err)
	}
	return nil
}

func getItem(ctx context.Context, q pgdb, id ledger.ItemID) (*ledger.Item, error) {
	var (
		item          ledger.Item
		purchasePrice string
		sellingPrice  string
	)
	err := q.QueryRow(ctx, `
		SELECT id, business_id, name, unit, purchase_price::text, selling_price::text, is_deleted, created_at
		FROM items WHERE id = $1`, id).
		Scan(&item.ID, &item.BusinessID, &item.Name, &item.Unit,
			&purchasePrice, &sellingPrice, &item.Deleted, &item.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("GetItem", err)
	}
	item.PurchasePrice = mustDecimal(purchasePrice)
	item.SellingPrice = mustDecimal(sellingPrice)
	return &item, nil
}

func listItems(ctx context.Context, q pgdb, businessID ledger.BusinessID) ([]ledger.Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, business_id, name, unit, purchase_price::text, selling_price::text, is_deleted, created_at
		FROM items WHERE business_id = $1 ORDER BY created_at ASC, id ASC`, businessID)
	if err != nil {
		return nil, storageErr("ListItems", err)
	}
	defer rows.Close()

	var out []ledger.Item
	for rows.Next() {
		var (
			item          ledger.Item
			purchasePrice string
			sellingPrice  string
		)
		if err := rows.Scan(&item.ID, &item.BusinessID, &item.Name, &item.Unit,
			&purchasePrice, &sellingPrice, &item.Deleted, &item.CreatedAt); err != nil {
			return nil, storageErr("ListItems", err)
		}
		item.PurchasePrice = mustDecimal(purchasePrice)
		item.SellingPrice = mustDecimal(sellingPrice)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListItems", err)
	}
	return out, nil
}

func insertPartner(ctx context.Context, q pgdb, p ledger.Partner) error {
	_, err := q.Exec(ctx, `
		INSERT INTO partners (id, business_id, name, role, phone, address, is_deleted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.BusinessID, p.Name, p.Role, p.Phone, p.Address, p.Deleted, p.CreatedAt,
	)
	if err != nil {
		return storageErr("InsertPartner", err)
	}
	return nil
}

func getPartner(ctx context.Context, q pgdb, id ledger.PartnerID) (*ledger.Partner, error) {
	var p ledger.Partner
	err := q.QueryRow(ctx, `
		SELECT id, business_id, name, role, phone, address, is_deleted, created_at
		FROM partners WHERE id = $1`, id).
		Scan(&p.ID, &p.BusinessID, &p.Name, &p.Role, &p.Phone, &p.Address, &p.Deleted, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("GetPartner", err)
	}
	return &p, nil
}

func listPartners(ctx context.Context, q pgdb, businessID ledger.BusinessID) ([]ledger.Partner, error) {
	rows, err := q.Query(ctx, `
		SELECT id, business_id, name, role, phone, address, is_deleted, created_at
		FROM partners WHERE business_id = $1 ORDER BY created_at ASC, id ASC`, businessID)
	if err != nil {
		return nil, storageErr("ListPartners", err)
	}
	defer rows.Close()

	var out []ledger.Partner
	for rows.Next() {
		var p ledger.Partner
		if err := rows.Scan(&p.ID, &p.BusinessID, &p.Name, &p.Role, &p.Phone, &p.Address,
			&p.Deleted, &p.CreatedAt); err != nil {
			return nil, storageErr("ListPartners", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListPartners", err)
	}
	return out, nil
}

// =============================================================================
// TRADE RECORDS
// =============================================================================

func insertPurchase(ctx context.Context, q pgdb, p ledger.Purchase) error {
	_, err := q.Exec(ctx, `
		INSERT INTO purchases (id, business_id, item_id, partner_id, quantity, unit_price, unpaid, line_total, is_reversed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.BusinessID, p.ItemID, p.PartnerID, p.Quantity,
		p.UnitPrice.String(), p.Unpaid.String(), p.LineTotal.String(),
		p.Reversed, p.CreatedAt,
	)
	if err != nil {
		return storageErr("InsertPurchase", err)
	}
	return nil
}

func getPurchase(ctx context.Context, q pgdb, id ledger.PurchaseID) (*ledger.Purchase, error) {
	var (
		p         ledger.Purchase
		unitPrice string
		unpaid    string
		lineTotal string
	)
	err := q.QueryRow(ctx, `
		SELECT id, business_id, item_id, partner_id, quantity, unit_price::text, unpaid::text, line_total::text, is_reversed, created_at
		FROM purchases WHERE id = $1`, id).
		Scan(&p.ID, &p.BusinessID, &p.ItemID, &p.PartnerID, &p.Quantity,
			&unitPrice, &unpaid, &lineTotal, &p.Reversed, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("GetPurchase", err)
	}
	p.UnitPrice = mustDecimal(unitPrice)
	p.Unpaid = mustDecimal(unpaid)
	p.LineTotal = mustDecimal(lineTotal)
	return &p, nil
}

func listPurchases(ctx context.Context, q pgdb, businessID ledger.BusinessID) ([]ledger.Purchase, error) {
	rows, err := q.Query(ctx, `
		SELECT id, business_id, item_id, partner_id, quantity, unit_price::text, unpaid::text, line_total::text, is_reversed, created_at
		FROM purchases WHERE business_id = $1 ORDER BY created_at ASC, id ASC`, businessID)
	if err != nil {
		return nil, storageErr("ListPurchases", err)
	}
	defer rows.Close()

	var out []ledger.Purchase
	for rows.Next() {
		var (
			p         ledger.Purchase
			unitPrice string
			unpaid    string
			lineTotal string
		)
		if err := rows.Scan(&p.ID, &p.BusinessID, &p.ItemID, &p.PartnerID, &p.Quantity,
			&unitPrice, &unpaid, &lineTotal, &p.Reversed, &p.CreatedAt); err != nil {
			return nil, storageErr("ListPurchases", err)
		}
		p.UnitPrice = mustDecimal(unitPrice)
		p.Unpaid = mustDecimal(unpaid)
		p.LineTotal = mustDecimal(lineTotal)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListPurchases", err)
	}
	return out, nil
}

func markPurchaseReversed(ctx context.Context, q pgdb, id ledger.PurchaseID) error {
	tag, err := q.Exec(ctx,
		`UPDATE purchases SET is_reversed = TRUE WHERE id = $1 AND is_reversed = FALSE`, id)
	if err != nil {
		return storageErr("MarkPurchaseReversed", err)
	}
	if tag.RowsAffected() == 0 {
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

func insertSale(ctx context.Context, q pgdb, sale ledger.Sale) error {
	_, err := q.Exec(ctx, `
		INSERT INTO sales (id, business_id, item_id, partner_id, quantity, unit_price, unpaid, line_total, is_reversed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sale.ID, sale.BusinessID, sale.ItemID, sale.PartnerID, sale.Quantity,
		sale.UnitPrice.String(), sale.Unpaid.String(), sale.LineTotal.String(),
		sale.Reversed, sale.CreatedAt,
	)
	if err != nil {
		return storageErr("InsertSale", err)
	}
	return nil
}

func getSale(ctx context.Context, q pgdb, id ledger.SaleID) (*ledger.Sale, error) {
	var (
		sale      ledger.Sale
		unitPrice string
		unpaid    string
		lineTotal string
	)
	err := q.QueryRow(ctx, `
		SELECT id, business_id, item_id, partner_id, quantity, unit_price::text, unpaid::text, line_total::text, is_reversed, created_at
		FROM sales WHERE id = $1`, id).
		Scan(&sale.ID, &sale.BusinessID, &sale.ItemID, &sale.PartnerID, &sale.Quantity,
			&unitPrice, &unpaid, &lineTotal, &sale.Reversed, &sale.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("GetSale", err)
	}
	sale.UnitPrice = mustDecimal(unitPrice)
	sale.Unpaid = mustDecimal(unpaid)
	sale.LineTotal = mustDecimal(lineTotal)
	return &sale, nil
}

func listSales(ctx context.Context, q pgdb, businessID ledger.BusinessID) ([]ledger.Sale, error) {
	rows, err := q.Query(ctx, `
		SELECT id, business_id, item_id, partner_id, quantity, unit_price::text, unpaid::text, line_total::text, is_reversed, created_at
		FROM sales WHERE business_id = $1 ORDER BY created_at ASC, id ASC`, businessID)
	if err != nil {
		return nil, storageErr("ListSales", err)
	}
	defer rows.Close()

	var out []ledger.Sale
	for rows.Next() {
		var (
			sale      ledger.Sale
			unitPrice string
			unpaid    string
			lineTotal string
		)
		if err := rows.Scan(&sale.ID, &sale.BusinessID, &sale.ItemID, &sale.PartnerID, &sale.Quantity,
			&unitPrice, &unpaid, &lineTotal, &sale.Reversed, &sale.CreatedAt); err != nil {
			return nil, storageErr("ListSales", err)
		}
		sale.UnitPrice = mustDecimal(unitPrice)
		sale.Unpaid = mustDecimal(unpaid)
		sale.LineTotal = mustDecimal(lineTotal)
		out = append(out, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListSales", err)
	}
	return out, nil
}

func markSaleReversed(ctx context.Context, q pgdb, id ledger.SaleID) error {
	tag, err := q.Exec(ctx,
		`UPDATE sales SET is_reversed = TRUE WHERE id = $1 AND is_reversed = FALSE`, id)
	if err != nil {
		return storageErr("MarkSaleReversed", err)
	}
	if tag.RowsAffected() == 0 {
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

func insertOrder(ctx context.Context, q pgdb, o ledger.Order) error {
	_, err := q.Exec(ctx, `
		INSERT INTO orders (id, business_id, item_id, partner_id, quantity, description, status, purchase_id, sale_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.BusinessID, o.ItemID, o.PartnerID, o.Quantity,
		o.Description, o.Status, o.PurchaseID, o.SaleID, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return storageErr("InsertOrder", err)
	}
	return nil
}

func getOrder(ctx context.Context, q pgdb, id ledger.OrderID) (*ledger.Order, error) {
	var o ledger.Order
	err := q.QueryRow(ctx, `
		SELECT id, business_id, item_id, partner_id, quantity, description, status, purchase_id, sale_id, created_at, updated_at
		FROM orders WHERE id = $1`, id).
		Scan(&o.ID, &o.BusinessID, &o.ItemID, &o.PartnerID, &o.Quantity,
			&o.Description, &o.Status, &o.PurchaseID, &o.SaleID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("GetOrder", err)
	}
	return &o, nil
}

func listOrders(ctx context.Context, q pgdb, businessID ledger.BusinessID) ([]ledger.Order, error) {
	rows, err := q.Query(ctx, `
		SELECT id, business_id, item_id, partner_id, quantity, description, status, purchase_id, sale_id, created_at, updated_at
		FROM orders WHERE business_id = $1 ORDER BY created_at ASC, id ASC`, businessID)
	if err != nil {
		return nil, storageErr("ListOrders", err)
	}
	defer rows.Close()

	var out []ledger.Order
	for rows.Next() {
		var o ledger.Order
		if err := rows.Scan(&o.ID, &o.BusinessID, &o.ItemID, &o.PartnerID, &o.Quantity,
			&o.Description, &o.Status, &o.PurchaseID, &o.SaleID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, storageErr("ListOrders", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("ListOrders", err)
	}
	return out, nil
}

func updateOrder(ctx context.Context, q pgdb, o ledger.Order) error {
	tag, err := q.Exec(ctx, `
		UPDATE orders SET status = $1, purchase_id = $2, sale_id = $3, updated_at = $4
		WHERE id = $5`,
		o.Status, o.PurchaseID, o.SaleID, o.UpdatedAt, o.ID,
	)
	if err != nil {
		return storageErr("UpdateOrder", err)
	}
	if tag.RowsAffected() == 0 {
		return &ledger.NotFoundError{Kind: "order", ID: string(o.ID)}
	}
	return nil
}

// =============================================================================
// MOVEMENTS (append-only)
// =============================================================================

func appendInventory(ctx context.Context, q pgdb, m ledger.InventoryMovement) error {
	_, err := q.Exec(ctx, `
		INSERT INTO inventory_movements (id, item_id, delta, reference_id, at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ItemID, m.Delta, m.ReferenceID, m.At,
	)
	if err != nil {
		return storageErr("AppendInventory", err)
	}
	return nil
}

func appendCash(ctx context.Context, q pgdb, m ledger.CashMovement) error {
	_, err := q.Exec(ctx, `
		INSERT INTO cash_movements (id, business_id, kind, amount, reference_id, at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.BusinessID, m.Kind, m.Amount.String(), m.ReferenceID, m.At,
	)
	if err != nil {
		return storageErr("AppendCash", err)
	}
	return nil
}

func inventoryMovements(ctx context.Context, q pgdb, itemID ledger.ItemID) ([]ledger.InventoryMovement, error) {
	rows, err := q.Query(ctx, `
		SELECT id, item_id, delta, reference_id, at
		FROM inventory_movements WHERE item_id = $1 ORDER BY at ASC, id ASC`, itemID)
	if err != nil {
		return nil, storageErr("InventoryMovements", err)
	}
	defer rows.Close()

	var out []ledger.InventoryMovement
	for rows.Next() {
		var m ledger.InventoryMovement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Delta, &m.ReferenceID, &m.At); err != nil {
			return nil, storageErr("InventoryMovements", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("InventoryMovements", err)
	}
	return out, nil
}

func cashMovements(ctx context.Context, q pgdb, businessID ledger.BusinessID) ([]ledger.CashMovement, error) {
	rows, err := q.Query(ctx, `
		SELECT id, business_id, kind, amount::text, reference_id, at
		FROM cash_movements WHERE business_id = $1 ORDER BY at ASC, id ASC`, businessID)
	if err != nil {
		return nil, storageErr("CashMovements", err)
	}
	defer rows.Close()

	var out []ledger.CashMovement
	for rows.Next() {
		var (
			m      ledger.CashMovement
			amount string
		)
		if err := rows.Scan(&m.ID, &m.BusinessID, &m.Kind, &amount, &m.ReferenceID, &m.At); err != nil {
			return nil, storageErr("CashMovements", err)
		}
		m.Amount = mustDecimal(amount)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("CashMovements", err)
	}
	return out, nil
}

// =============================================================================
// POOL-LEVEL STORE METHODS
// =============================================================================

func (s *Store) InsertItem(ctx context.Context, item ledger.Item) error {
	return insertItem(ctx, s.pool, item)
}
func (s *Store) GetItem(ctx context.Context, id ledger.ItemID) (*ledger.Item, error) {
	return getItem(ctx, s.pool, id)
}
func (s *Store) ListItems(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Item, error) {
	return listItems(ctx, s.pool, businessID)
}
func (s *Store) InsertPartner(ctx context.Context, p ledger.Partner) error {
	return insertPartner(ctx, s.pool, p)
}
func (s *Store) GetPartner(ctx context.Context, id ledger.PartnerID) (*ledger.Partner, error) {
	return getPartner(ctx, s.pool, id)
}
func (s *Store) ListPartners(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Partner, error) {
	return listPartners(ctx, s.pool, businessID)
}
func (s *Store) InsertPurchase(ctx context.Context, p ledger.Purchase) error {
	return insertPurchase(ctx, s.pool, p)
}
func (s *Store) GetPurchase(ctx context.Context, id ledger.PurchaseID) (*ledger.Purchase, error) {
	return getPurchase(ctx, s.pool, id)
}
func (s *Store) ListPurchases(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Purchase, error) {
	return listPurchases(ctx, s.pool, businessID)
}
func (s *Store) MarkPurchaseReversed(ctx context.Context, id ledger.PurchaseID) error {
	return markPurchaseReversed(ctx, s.pool, id)
}
func (s *Store) InsertSale(ctx context.Context, sale ledger.Sale) error {
	return insertSale(ctx, s.pool, sale)
}
func (s *Store) GetSale(ctx context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	return getSale(ctx, s.pool, id)
}
func (s *Store) ListSales(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Sale, error) {
	return listSales(ctx, s.pool, businessID)
}
func (s *Store) MarkSaleReversed(ctx context.Context, id ledger.SaleID) error {
	return markSaleReversed(ctx, s.pool, id)
}
func (s *Store) InsertOrder(ctx context.Context, o ledger.Order) error {
	return insertOrder(ctx, s.pool, o)
}
func (s *Store) GetOrder(ctx context.Context, id ledger.OrderID) (*ledger.Order, error) {
	return getOrder(ctx, s.pool, id)
}
func (s *Store) ListOrders(ctx context.Context, businessID ledger.BusinessID) ([]ledger.Order, error) {
	return listOrders(ctx, s.pool, businessID)
}
func (s *Store) UpdateOrder(ctx context.Context, o ledger.Order) error {
	return updateOrder(ctx, s.pool, o)
}
func (s *Store) AppendInventory(ctx context.Context, m ledger.InventoryMovement) error {
	return appendInventory(ctx, s.pool, m)
}
func (s *Store) AppendCash(ctx context.Context, m ledger.CashMovement) error {
	return appendCash(ctx, s.pool, m)
}
func (s *Store) InventoryMovements(ctx context.Context, itemID ledger.ItemID) ([]ledger.InventoryMovement, error) {
	return inventoryMovements(ctx, s.pool, itemID)
}
func (s *Store) CashMovements(ctx context.Context, businessID ledger.BusinessID) ([]ledger.CashMovement, error) {
	return cashMovements(ctx, s.pool, businessID)
}

// =============================================================================
// TRANSACTIONS (ledger.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction. The in-transaction
// store supports ledger.AggregateLocker, which the trading package uses to
// serialize per business/item.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storageErr("BeginTx", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("Commit", err)
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
}

var _ ledger.AggregateLocker = (*txStore)(nil)

// LockBusiness takes a transaction-scoped advisory lock on the business's
// cash aggregate. Released at commit/rollback.
func (t *txStore) LockBusiness(ctx context.Context, id ledger.BusinessID) error {
	if _, err := t.tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('cash:' || $1::text))`, string(id)); err != nil {
		return storageErr("LockBusiness", err)
	}
	return nil
}

// LockItem takes a transaction-scoped advisory lock on the item's stock
// aggregate.
func (t *txStore) LockItem(ctx context.Context, id ledger.ItemID) error {
	if _, err := t.tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('stock:' || $1::text))`, string(id)); err != nil {
		return storageErr("LockItem", err)
	}
	return nil
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

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
