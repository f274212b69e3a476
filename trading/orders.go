/*
orders.go - Order state machine

PURPOSE:
  Ties an order's lifecycle stage to the presence of its purchase or sale
  record. The chain is strictly linear with two reversal edges:

      pending <---> purchased <---> delivered

  Forward edges create the trade record and store its id on the order;
  reverse edges reverse the linked record and clear the id. No edge skips
  a state: pending -> delivered is rejected.

ORDERING GUARANTEE:
  Status is asserted, then the accounting side effect runs, then the order
  row is updated - all inside one transaction. A failed side effect leaves
  the status untouched, and a failed row update rolls the side effect back.

  changeOrderStatus is the raw status-field mutator. It validates nothing,
  which is why it is unexported: external callers go through ChangeStatus.
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

// orderTransitions is the exhaustive edge set. Anything absent here fails
// with InvalidTransition.
var orderTransitions = map[ledger.OrderStatus]map[ledger.OrderStatus]bool{
	ledger.StatusPending:   {ledger.StatusPurchased: true},
	ledger.StatusPurchased: {ledger.StatusPending: true, ledger.StatusDelivered: true},
	ledger.StatusDelivered: {ledger.StatusPurchased: true},
}

// CanTransition reports whether the edge from -> to exists.
func CanTransition(from, to ledger.OrderStatus) bool {
	return orderTransitions[from][to]
}

// OrderInput describes a new order. PartnerID is the optional consumer the
// order will eventually be delivered to.
type OrderInput struct {
	ItemID      ledger.ItemID
	PartnerID   *ledger.PartnerID
	Quantity    int64
	Description string
}

// ChangeInput carries the pricing a transition's side effect needs.
// Forward edges require UnitPrice; pending -> purchased additionally
// requires the supplier PartnerID. Reverse edges need none of it.
type ChangeInput struct {
	UnitPrice decimal.Decimal
	Unpaid    decimal.Decimal
	PartnerID *ledger.PartnerID
}

// CreateOrder records a new order in pending. The item and the optional
// consumer are validated; no ledger effect happens until the first
// transition.
func (s *Service) CreateOrder(ctx context.Context, biz BusinessContext, in OrderInput) (*ledger.Order, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d: %w", in.Quantity, ledger.ErrInvalidInput)
	}

	var out *ledger.Order
	err := s.Store.WithTx(ctx, func(st ledger.Store) error {
		if _, err := activeItem(ctx, st, biz, in.ItemID); err != nil {
			return err
		}
		if in.PartnerID != nil {
			if _, err := activePartner(ctx, st, biz, *in.PartnerID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		o := ledger.Order{
			ID:          ledger.OrderID(uuid.NewString()),
			BusinessID:  biz.BusinessID,
			ItemID:      in.ItemID,
			PartnerID:   in.PartnerID,
			Quantity:    in.Quantity,
			Description: in.Description,
			Status:      ledger.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := st.InsertOrder(ctx, o); err != nil {
			return err
		}
		out = &o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder loads an order owned by the business.
func (s *Service) GetOrder(ctx context.Context, biz BusinessContext, id ledger.OrderID) (*ledger.Order, error) {
	o, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil || o.BusinessID != biz.BusinessID {
		return nil, &ledger.NotFoundError{Kind: "order", ID: string(id)}
	}
	return o, nil
}

// ChangeStatus moves an order along the lifecycle, executing the edge's
// accounting side effect and the row update in one transaction.
func (s *Service) ChangeStatus(ctx context.Context, biz BusinessContext, target ledger.OrderStatus, orderID ledger.OrderID, in ChangeInput) (*ledger.Order, error) {
	var out *ledger.Order
	err := s.Store.WithTx(ctx, func(st ledger.Store) error {
		o, err := st.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil || o.BusinessID != biz.BusinessID {
			return &ledger.NotFoundError{Kind: "order", ID: string(orderID)}
		}

		if !CanTransition(o.Status, target) {
			return &ledger.InvalidTransitionError{From: o.Status, To: target}
		}

		switch {
		case o.Status == ledger.StatusPending && target == ledger.StatusPurchased:
			if in.PartnerID == nil {
				return fmt.Errorf("supplier partner id is required to purchase: %w", ledger.ErrInvalidInput)
			}
			p, err := purchaseTx(ctx, st, biz, TradeInput{
				ItemID:    o.ItemID,
				PartnerID: *in.PartnerID,
				UnitPrice: in.UnitPrice,
				Quantity:  o.Quantity,
				Unpaid:    in.Unpaid,
			})
			if err != nil {
				return err
			}
			o.PurchaseID = &p.ID

		case o.Status == ledger.StatusPurchased && target == ledger.StatusPending:
			if o.PurchaseID == nil {
				return &ledger.NotFoundError{Kind: "purchase", ID: "order " + string(o.ID)}
			}
			if err := reversePurchaseTx(ctx, st, biz, *o.PurchaseID); err != nil {
				return err
			}
			o.PurchaseID = nil

		case o.Status == ledger.StatusPurchased && target == ledger.StatusDelivered:
			if o.PartnerID == nil {
				return fmt.Errorf("order %s has no consumer to deliver to: %w", o.ID, ledger.ErrInvalidInput)
			}
			sale, err := sellTx(ctx, st, biz, TradeInput{
				ItemID:    o.ItemID,
				PartnerID: *o.PartnerID,
				UnitPrice: in.UnitPrice,
				Quantity:  o.Quantity,
				Unpaid:    in.Unpaid,
			})
			if err != nil {
				return err
			}
			o.SaleID = &sale.ID

		case o.Status == ledger.StatusDelivered && target == ledger.StatusPurchased:
			if o.SaleID == nil {
				return &ledger.NotFoundError{Kind: "sale", ID: "order " + string(o.ID)}
			}
			if err := reverseSaleTx(ctx, st, biz, *o.SaleID); err != nil {
				return err
			}
			o.SaleID = nil
		}

		if err := changeOrderStatus(ctx, st, o, target); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// changeOrderStatus writes the status field and the current foreign keys.
// No validation: callers have already asserted the edge.
func changeOrderStatus(ctx context.Context, st ledger.Store, o *ledger.Order, target ledger.OrderStatus) error {
	o.Status = target
	o.UpdatedAt = time.Now().UTC()
	return st.UpdateOrder(ctx, *o)
}
