// Package store provides an in-memory ledger.TxStore for tests and dev.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/trade-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	d  data
}

type data struct {
	items     map[ledger.ItemID]ledger.Item
	partners  map[ledger.PartnerID]ledger.Partner
	purchases map[ledger.PurchaseID]ledger.Purchase
	sales     map[ledger.SaleID]ledger.Sale
	orders    map[ledger.OrderID]ledger.Order
	inventory map[ledger.ItemID][]ledger.InventoryMovement
	cash      map[ledger.BusinessID][]ledger.CashMovement
	seq       uint64 // insertion counter, preserves listing order
	order     map[string]uint64
}

func newData() data {
	return data{
		items:     make(map[ledger.ItemID]ledger.Item),
		partners:  make(map[ledger.PartnerID]ledger.Partner),
		purchases: make(map[ledger.PurchaseID]ledger.Purchase),
		sales:     make(map[ledger.SaleID]ledger.Sale),
		orders:    make(map[ledger.OrderID]ledger.Order),
		inventory: make(map[ledger.ItemID][]ledger.InventoryMovement),
		cash:      make(map[ledger.BusinessID][]ledger.CashMovement),
		order:     make(map[string]uint64),
	}
}

func NewMemory() *Memory {
	return &Memory{d: newData()}
}

func (m *Memory) track(id string) {
	m.d.seq++
	m.d.order[id] = m.d.seq
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) InsertItem(_ context.Context, item ledger.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertItemLocked(item)
}

func (m *Memory) insertItemLocked(item ledger.Item) error {
	if _, ok := m.d.items[item.ID]; ok {
		return &ledger.StorageError{Op: "InsertItem", Err: fmt.Errorf("duplicate item id %s", item.ID)}
	}
	m.d.items[item.ID] = item
	m.track(string(item.ID))
	return nil
}

func (m *Memory) GetItem(_ context.Context, id ledger.ItemID) (*ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getItemLocked(id)
}

func (m *Memory) getItemLocked(id ledger.ItemID) (*ledger.Item, error) {
	item, ok := m.d.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *Memory) ListItems(_ context.Context, businessID ledger.BusinessID) ([]ledger.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listItemsLocked(businessID)
}

func (m *Memory) listItemsLocked(businessID ledger.BusinessID) ([]ledger.Item, error) {
	var out []ledger.Item
	for _, item := range m.d.items {
		if item.BusinessID == businessID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.d.order[string(out[i].ID)] < m.d.order[string(out[j].ID)] })
	return out, nil
}

func (m *Memory) InsertPartner(_ context.Context, p ledger.Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertPartnerLocked(p)
}

func (m *Memory) insertPartnerLocked(p ledger.Partner) error {
	if _, ok := m.d.partners[p.ID]; ok {
		return &ledger.StorageError{Op: "InsertPartner", Err: fmt.Errorf("duplicate partner id %s", p.ID)}
	}
	m.d.partners[p.ID] = p
	m.track(string(p.ID))
	return nil
}

func (m *Memory) GetPartner(_ context.Context, id ledger.PartnerID) (*ledger.Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPartnerLocked(id)
}

func (m *Memory) getPartnerLocked(id ledger.PartnerID) (*ledger.Partner, error) {
	p, ok := m.d.partners[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListPartners(_ context.Context, businessID ledger.BusinessID) ([]ledger.Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPartnersLocked(businessID)
}

func (m *Memory) listPartnersLocked(businessID ledger.BusinessID) ([]ledger.Partner, error) {
	var out []ledger.Partner
	for _, p := range m.d.partners {
		if p.BusinessID == businessID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.d.order[string(out[i].ID)] < m.d.order[string(out[j].ID)] })
	return out, nil
}

// =============================================================================
// TRADE RECORDS
// =============================================================================

func (m *Memory) InsertPurchase(_ context.Context, p ledger.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertPurchaseLocked(p)
}

func (m *Memory) insertPurchaseLocked(p ledger.Purchase) error {
	if _, ok := m.d.purchases[p.ID]; ok {
		return &ledger.StorageError{Op: "InsertPurchase", Err: fmt.Errorf("duplicate purchase id %s", p.ID)}
	}
	m.d.purchases[p.ID] = p
	m.track(string(p.ID))
	return nil
}

func (m *Memory) GetPurchase(_ context.Context, id ledger.PurchaseID) (*ledger.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPurchaseLocked(id)
}

func (m *Memory) getPurchaseLocked(id ledger.PurchaseID) (*ledger.Purchase, error) {
	p, ok := m.d.purchases[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListPurchases(_ context.Context, businessID ledger.BusinessID) ([]ledger.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPurchasesLocked(businessID)
}

func (m *Memory) listPurchasesLocked(businessID ledger.BusinessID) ([]ledger.Purchase, error) {
	var out []ledger.Purchase
	for _, p := range m.d.purchases {
		if p.BusinessID == businessID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.d.order[string(out[i].ID)] < m.d.order[string(out[j].ID)] })
	return out, nil
}

func (m *Memory) MarkPurchaseReversed(_ context.Context, id ledger.PurchaseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markPurchaseReversedLocked(id)
}

func (m *Memory) markPurchaseReversedLocked(id ledger.PurchaseID) error {
	p, ok := m.d.purchases[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "purchase", ID: string(id)}
	}
	if p.Reversed {
		return fmt.Errorf("purchase %s: %w", id, ledger.ErrAlreadyReversed)
	}
	p.Reversed = true
	m.d.purchases[id] = p
	return nil
}

func (m *Memory) InsertSale(_ context.Context, s ledger.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertSaleLocked(s)
}

func (m *Memory) insertSaleLocked(s ledger.Sale) error {
	if _, ok := m.d.sales[s.ID]; ok {
		return &ledger.StorageError{Op: "InsertSale", Err: fmt.Errorf("duplicate sale id %s", s.ID)}
	}
	m.d.sales[s.ID] = s
	m.track(string(s.ID))
	return nil
}

func (m *Memory) GetSale(_ context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSaleLocked(id)
}

func (m *Memory) getSaleLocked(id ledger.SaleID) (*ledger.Sale, error) {
	s, ok := m.d.sales[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) ListSales(_ context.Context, businessID ledger.BusinessID) ([]ledger.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSalesLocked(businessID)
}

func (m *Memory) listSalesLocked(businessID ledger.BusinessID) ([]ledger.Sale, error) {
	var out []ledger.Sale
	for _, s := range m.d.sales {
		if s.BusinessID == businessID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.d.order[string(out[i].ID)] < m.d.order[string(out[j].ID)] })
	return out, nil
}

func (m *Memory) MarkSaleReversed(_ context.Context, id ledger.SaleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markSaleReversedLocked(id)
}

func (m *Memory) markSaleReversedLocked(id ledger.SaleID) error {
	s, ok := m.d.sales[id]
	if !ok {
		return &ledger.NotFoundError{Kind: "sale", ID: string(id)}
	}
	if s.Reversed {
		return fmt.Errorf("sale %s: %w", id, ledger.ErrAlreadyReversed)
	}
	s.Reversed = true
	m.d.sales[id] = s
	return nil
}

// =============================================================================
// ORDERS
// =============================================================================

func (m *Memory) InsertOrder(_ context.Context, o ledger.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertOrderLocked(o)
}

func (m *Memory) insertOrderLocked(o ledger.Order) error {
	if _, ok := m.d.orders[o.ID]; ok {
		return &ledger.StorageError{Op: "InsertOrder", Err: fmt.Errorf("duplicate order id %s", o.ID)}
	}
	m.d.orders[o.ID] = o
	m.track(string(o.ID))
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id ledger.OrderID) (*ledger.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getOrderLocked(id)
}

func (m *Memory) getOrderLocked(id ledger.OrderID) (*ledger.Order, error) {
	o, ok := m.d.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *Memory) ListOrders(_ context.Context, businessID ledger.BusinessID) ([]ledger.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listOrdersLocked(businessID)
}

func (m *Memory) listOrdersLocked(businessID ledger.BusinessID) ([]ledger.Order, error) {
	var out []ledger.Order
	for _, o := range m.d.orders {
		if o.BusinessID == businessID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.d.order[string(out[i].ID)] < m.d.order[string(out[j].ID)] })
	return out, nil
}

func (m *Memory) UpdateOrder(_ context.Context, o ledger.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateOrderLocked(o)
}

func (m *Memory) updateOrderLocked(o ledger.Order) error {
	if _, ok := m.d.orders[o.ID]; !ok {
		return &ledger.NotFoundError{Kind: "order", ID: string(o.ID)}
	}
	m.d.orders[o.ID] = o
	return nil
}

// =============================================================================
// MOVEMENTS (append-only)
// =============================================================================

func (m *Memory) AppendInventory(_ context.Context, mv ledger.InventoryMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendInventoryLocked(mv)
}

func (m *Memory) appendInventoryLocked(mv ledger.InventoryMovement) error {
	m.d.inventory[mv.ItemID] = append(m.d.inventory[mv.ItemID], mv)
	return nil
}

func (m *Memory) AppendCash(_ context.Context, mv ledger.CashMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendCashLocked(mv)
}

func (m *Memory) appendCashLocked(mv ledger.CashMovement) error {
	m.d.cash[mv.BusinessID] = append(m.d.cash[mv.BusinessID], mv)
	return nil
}

func (m *Memory) InventoryMovements(_ context.Context, itemID ledger.ItemID) ([]ledger.InventoryMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inventoryMovementsLocked(itemID)
}

func (m *Memory) inventoryMovementsLocked(itemID ledger.ItemID) ([]ledger.InventoryMovement, error) {
	src := m.d.inventory[itemID]
	out := make([]ledger.InventoryMovement, len(src))
	copy(out, src)
	return out, nil
}

func (m *Memory) CashMovements(_ context.Context, businessID ledger.BusinessID) ([]ledger.CashMovement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cashMovementsLocked(businessID)
}

func (m *Memory) cashMovementsLocked(businessID ledger.BusinessID) ([]ledger.CashMovement, error) {
	src := m.d.cash[businessID]
	out := make([]ledger.CashMovement, len(src))
	copy(out, src)
	return out, nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback on error
// =============================================================================

// WithTx executes fn against a transactional view of the store.
// For the memory store this is simulated with a snapshot: the whole store
// is locked for the duration, and on error the pre-transaction state is
// restored. This also serializes every check-then-act sequence, matching
// the isolation the SQL stores provide.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()

	if err := fn(&memView{parent: m}); err != nil {
		m.d = snapshot
		return err
	}
	return nil
}

func (m *Memory) snapshot() data {
	s := newData()
	for k, v := range m.d.items {
		s.items[k] = v
	}
	for k, v := range m.d.partners {
		s.partners[k] = v
	}
	for k, v := range m.d.purchases {
		s.purchases[k] = v
	}
	for k, v := range m.d.sales {
		s.sales[k] = v
	}
	for k, v := range m.d.orders {
		s.orders[k] = v
	}
	for k, v := range m.d.inventory {
		s.inventory[k] = append([]ledger.InventoryMovement{}, v...)
	}
	for k, v := range m.d.cash {
		s.cash[k] = append([]ledger.CashMovement{}, v...)
	}
	for k, v := range m.d.order {
		s.order[k] = v
	}
	s.seq = m.d.seq
	return s
}

// memView is the in-transaction view. The parent's mutex is already held,
// so it delegates to the unexported non-locking methods.
type memView struct {
	parent *Memory
}

func (v *memView) InsertItem(_ context.Context, item ledger.Item) error {
	return v.parent.insertItemLocked(item)
}
func (v *memView) GetItem(_ context.Context, id ledger.ItemID) (*ledger.Item, error) {
	return v.parent.getItemLocked(id)
}
func (v *memView) ListItems(_ context.Context, businessID ledger.BusinessID) ([]ledger.Item, error) {
	return v.parent.listItemsLocked(businessID)
}
func (v *memView) InsertPartner(_ context.Context, p ledger.Partner) error {
	return v.parent.insertPartnerLocked(p)
}
func (v *memView) GetPartner(_ context.Context, id ledger.PartnerID) (*ledger.Partner, error) {
	return v.parent.getPartnerLocked(id)
}
func (v *memView) ListPartners(_ context.Context, businessID ledger.BusinessID) ([]ledger.Partner, error) {
	return v.parent.listPartnersLocked(businessID)
}
func (v *memView) InsertPurchase(_ context.Context, p ledger.Purchase) error {
	return v.parent.insertPurchaseLocked(p)
}
func (v *memView) GetPurchase(_ context.Context, id ledger.PurchaseID) (*ledger.Purchase, error) {
	return v.parent.getPurchaseLocked(id)
}
func (v *memView) ListPurchases(_ context.Context, businessID ledger.BusinessID) ([]ledger.Purchase, error) {
	return v.parent.listPurchasesLocked(businessID)
}
func (v *memView) MarkPurchaseReversed(_ context.Context, id ledger.PurchaseID) error {
	return v.parent.markPurchaseReversedLocked(id)
}
func (v *memView) InsertSale(_ context.Context, s ledger.Sale) error {
	return v.parent.insertSaleLocked(s)
}
func (v *memView) GetSale(_ context.Context, id ledger.SaleID) (*ledger.Sale, error) {
	return v.parent.getSaleLocked(id)
}
func (v *memView) ListSales(_ context.Context, businessID ledger.BusinessID) ([]ledger.Sale, error) {
	return v.parent.listSalesLocked(businessID)
}
func (v *memView) MarkSaleReversed(_ context.Context, id ledger.SaleID) error {
	return v.parent.markSaleReversedLocked(id)
}
func (v *memView) InsertOrder(_ context.Context, o ledger.Order) error {
	return v.parent.insertOrderLocked(o)
}
func (v *memView) GetOrder(_ context.Context, id ledger.OrderID) (*ledger.Order, error) {
	return v.parent.getOrderLocked(id)
}
func (v *memView) ListOrders(_ context.Context, businessID ledger.BusinessID) ([]ledger.Order, error) {
	return v.parent.listOrdersLocked(businessID)
}
func (v *memView) UpdateOrder(_ context.Context, o ledger.Order) error {
	return v.parent.updateOrderLocked(o)
}
func (v *memView) AppendInventory(_ context.Context, mv ledger.InventoryMovement) error {
	return v.parent.appendInventoryLocked(mv)
}
func (v *memView) AppendCash(_ context.Context, mv ledger.CashMovement) error {
	return v.parent.appendCashLocked(mv)
}
func (v *memView) InventoryMovements(_ context.Context, itemID ledger.ItemID) ([]ledger.InventoryMovement, error) {
	return v.parent.inventoryMovementsLocked(itemID)
}
func (v *memView) CashMovements(_ context.Context, businessID ledger.BusinessID) ([]ledger.CashMovement, error) {
	return v.parent.cashMovementsLocked(businessID)
}
