package registry

import (
	"context"
	"fmt"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/xid"
)

// Hold snapshots the active order and defocuses it. A second hold of the same
// order replaces the earlier snapshot. Takeaway and delivery tickets leave the
// live set; a table keeps its live cart, so it stays occupied and cannot be
// handed to another guest while the snapshot exists.
func (r *Registry) Hold(ctx context.Context) (domain.HeldOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.activeOrder()
	if err != nil {
		return domain.HeldOrder{}, err
	}
	if len(order.Cart) == 0 {
		return domain.HeldOrder{}, ErrEmptyCart
	}

	held := domain.HeldOrder{
		ID:                 xid.New("hold"),
		Name:               r.holdName(ctx, order),
		OrderType:          order.Type,
		OrderID:            order.ID,
		Cart:               cloneCart(order.Cart),
		SelectedCustomerID: order.SelectedCustomerID,
		OverallDiscount:    order.OverallDiscount,
		ServiceChargeCents: order.ServiceChargeCents,
		HeldAt:             r.now(),
	}

	if idx := r.heldIndexByKey(order.Key()); idx >= 0 {
		held.ID = r.held[idx].ID
		r.held[idx] = held
	} else {
		r.held = append([]domain.HeldOrder{held}, r.held...)
	}

	if order.Type == domain.OrderTypeDineIn {
		r.defocus()
	} else {
		r.clearLocked(order, true)
	}
	r.logger.Debug().Str("hold_id", held.ID).Str("order_type", string(held.OrderType)).Str("order_id", held.OrderID).Int("lines", len(held.Cart)).Msg("order held")
	return cloneHeld(held), nil
}

// Restore puts a held snapshot back into the live set and focuses it. For a
// table the snapshot fields replace the table's live cart.
func (r *Registry) Restore(holdID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.heldIndex(holdID)
	if idx < 0 {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrHeldNotFound, holdID)
	}
	held := r.held[idx]
	key := held.Key()

	order, exists := r.orders[key]
	switch {
	case key.Type == domain.OrderTypeDineIn && !exists:
		return domain.Order{}, fmt.Errorf("%w: %s", ErrUnknownTable, key.ID)
	case !exists:
		order = &domain.Order{Type: key.Type, ID: key.ID, Name: held.Name, CreatedAt: held.HeldAt}
		r.orders[key] = order
	}

	order.Cart = cloneCart(held.Cart)
	order.SelectedCustomerID = held.SelectedCustomerID
	order.OverallDiscount = held.OverallDiscount
	order.ServiceChargeCents = held.ServiceChargeCents

	r.held = append(r.held[:idx], r.held[idx+1:]...)
	r.focus(key)
	r.cartOpen = true
	return cloneOrder(order), nil
}

func (r *Registry) DiscardHeld(holdID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.heldIndex(holdID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrHeldNotFound, holdID)
	}
	r.held = append(r.held[:idx], r.held[idx+1:]...)
	return nil
}

// HeldOrders lists snapshots newest first.
func (r *Registry) HeldOrders() []domain.HeldOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heldCopy()
}

func (r *Registry) heldCopy() []domain.HeldOrder {
	out := make([]domain.HeldOrder, 0, len(r.held))
	for _, held := range r.held {
		out = append(out, cloneHeld(held))
	}
	return out
}

// holdName labels a snapshot: the table name joined with the customer for
// dine-in, the customer for tickets, and the order name otherwise.
func (r *Registry) holdName(ctx context.Context, order *domain.Order) string {
	customerName := ""
	if order.SelectedCustomerID != "" {
		customer, err := r.ledger.GetCustomer(ctx, order.SelectedCustomerID)
		if err == nil {
			customerName = customer.Name
		}
	}
	switch {
	case customerName == "":
		return order.Name
	case order.Type == domain.OrderTypeDineIn:
		return order.Name + " · " + customerName
	default:
		return customerName
	}
}

func (r *Registry) heldIndex(holdID string) int {
	for i, held := range r.held {
		if held.ID == holdID {
			return i
		}
	}
	return -1
}

func (r *Registry) heldIndexByKey(key domain.OrderKey) int {
	for i, held := range r.held {
		if held.Key() == key {
			return i
		}
	}
	return -1
}

// dropHeld removes the snapshot of key, if any.
func (r *Registry) dropHeld(key domain.OrderKey) {
	if idx := r.heldIndexByKey(key); idx >= 0 {
		r.held = append(r.held[:idx], r.held[idx+1:]...)
	}
}

func cloneHeld(held domain.HeldOrder) domain.HeldOrder {
	held.Cart = cloneCart(held.Cart)
	return held
}
