/*
catalog.go - Item and partner management

PURPOSE:
  Registration and listing of the catalog a business trades with: the
  items it buys and sells, and the partners (suppliers, customers) on the
  other side of each trade. Catalog rows are soft-deleted, never removed,
  because movements and trade records reference them forever.

SEE ALSO:
  - operations.go: Purchase/Sell resolve catalog rows before trading
  - ledger/types.go: Item, Partner
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

// ItemInput describes a new catalog item.
type ItemInput struct {
	Name          string
	Unit          string
	PurchasePrice decimal.Decimal
	SellingPrice  decimal.Decimal
}

func (in ItemInput) validate() error {
	if in.Name == "" {
		return fmt.Errorf("name is required: %w", ledger.ErrInvalidInput)
	}
	if in.PurchasePrice.IsNegative() || in.SellingPrice.IsNegative() {
		return fmt.Errorf("prices must be non-negative: %w", ledger.ErrInvalidInput)
	}
	return nil
}

// PartnerInput describes a new trading partner.
type PartnerInput struct {
	Name    string
	Role    ledger.PartnerRole
	Phone   string
	Address string
}

func (in PartnerInput) validate() error {
	if in.Name == "" {
		return fmt.Errorf("name is required: %w", ledger.ErrInvalidInput)
	}
	switch in.Role {
	case ledger.RoleSupplier, ledger.RoleCustomer:
	default:
		return fmt.Errorf("role must be %q or %q: %w",
			ledger.RoleSupplier, ledger.RoleCustomer, ledger.ErrInvalidInput)
	}
	return nil
}

// CreateItem registers an item in the business's catalog.
func (s *Service) CreateItem(ctx context.Context, biz BusinessContext, in ItemInput) (*ledger.Item, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	item := ledger.Item{
		ID:            ledger.ItemID(uuid.NewString()),
		BusinessID:    biz.BusinessID,
		Name:          in.Name,
		Unit:          in.Unit,
		PurchasePrice: in.PurchasePrice,
		SellingPrice:  in.SellingPrice,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.Store.InsertItem(ctx, item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItem returns an item, tenancy-checked.
func (s *Service) GetItem(ctx context.Context, biz BusinessContext, id ledger.ItemID) (*ledger.Item, error) {
	item, err := s.Store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.BusinessID != biz.BusinessID {
		return nil, &ledger.NotFoundError{Kind: "item", ID: string(id)}
	}
	return item, nil
}

// ListItems returns the business's catalog, soft-deleted rows included.
func (s *Service) ListItems(ctx context.Context, biz BusinessContext) ([]ledger.Item, error) {
	return s.Store.ListItems(ctx, biz.BusinessID)
}

// CreatePartner registers a supplier or customer.
func (s *Service) CreatePartner(ctx context.Context, biz BusinessContext, in PartnerInput) (*ledger.Partner, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	p := ledger.Partner{
		ID:         ledger.PartnerID(uuid.NewString()),
		BusinessID: biz.BusinessID,
		Name:       in.Name,
		Role:       in.Role,
		Phone:      in.Phone,
		Address:    in.Address,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.Store.InsertPartner(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPartners returns the business's partners.
func (s *Service) ListPartners(ctx context.Context, biz BusinessContext) ([]ledger.Partner, error) {
	return s.Store.ListPartners(ctx, biz.BusinessID)
}

// ListPurchases returns all purchase records for the business, reversed
// ones included.
func (s *Service) ListPurchases(ctx context.Context, biz BusinessContext) ([]ledger.Purchase, error) {
	return s.Store.ListPurchases(ctx, biz.BusinessID)
}

// ListSales returns all sale records for the business.
func (s *Service) ListSales(ctx context.Context, biz BusinessContext) ([]ledger.Sale, error) {
	return s.Store.ListSales(ctx, biz.BusinessID)
}

// ListOrders returns all orders for the business.
func (s *Service) ListOrders(ctx context.Context, biz BusinessContext) ([]ledger.Order, error) {
	return s.Store.ListOrders(ctx, biz.BusinessID)
}

// CashHistory returns the business's cash movements in append order.
func (s *Service) CashHistory(ctx context.Context, biz BusinessContext) ([]ledger.CashMovement, error) {
	return s.Store.CashMovements(ctx, biz.BusinessID)
}

// StockHistory returns an item's inventory movements in append order.
func (s *Service) StockHistory(ctx context.Context, itemID ledger.ItemID) ([]ledger.InventoryMovement, error) {
	return s.Store.InventoryMovements(ctx, itemID)
}
