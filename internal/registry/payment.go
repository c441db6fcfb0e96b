package registry

import (
	"context"
	"fmt"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/pricing"
	"rasapos/backend/internal/xid"
)

type PaymentLine struct {
	ProductID string
	Quantity  int
}

type PaymentInput struct {
	// Lines selects the quantities being paid. Empty pays the whole cart.
	Lines         []PaymentLine
	Method        string
	DeliveryRepID string
	CashierID     string
	ShiftID       string
}

// ConfirmPayment turns the paid part of the active order into a Sale,
// consumes recipe ingredients and leaves the unpaid remainder on the order.
// An order with nothing left is cleared.
func (r *Registry) ConfirmPayment(ctx context.Context, in PaymentInput) (*domain.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.activeOrder()
	if err != nil {
		return nil, err
	}
	return r.commit(ctx, order, in)
}

func (r *Registry) commit(ctx context.Context, order *domain.Order, in PaymentInput) (*domain.Sale, error) {
	if order.Type == domain.OrderTypeDelivery && order.SelectedCustomerID == "" {
		r.cartOpen = true
		return nil, ErrCustomerRequired
	}
	paid, err := resolvePaid(order.Cart, in.Lines)
	if err != nil {
		return nil, err
	}
	if len(paid) == 0 {
		return nil, ErrEmptyCart
	}

	var customer *domain.Customer
	if order.SelectedCustomerID != "" {
		found, err := r.ledger.GetCustomer(ctx, order.SelectedCustomerID)
		if err != nil {
			return nil, fmt.Errorf("resolve customer %s: %w", order.SelectedCustomerID, err)
		}
		customer = found
	}

	method := in.Method
	if method == "" {
		method = domain.PaymentMethodCash
	}

	totals := pricing.ComputeTotals(paid, order.OverallDiscount, order.ServiceChargeCents)
	sale := domain.Sale{
		ID:                 xid.New("sale"),
		Items:              paid,
		SubtotalCents:      totals.SubtotalCents,
		DiscountCents:      totals.TotalDiscountCents,
		ServiceChargeCents: totals.ServiceChargeCents,
		TotalCents:         totals.FinalTotalCents,
		PaymentMethod:      method,
		CreatedAt:          r.now(),
		Customer:           customer,
		OrderType:          order.Type,
		OrderID:            order.ID,
		DeliveryRepID:      in.DeliveryRepID,
		CashierID:          in.CashierID,
		ShiftID:            in.ShiftID,
	}

	saved, err := r.ledger.CreateSale(ctx, sale)
	if err != nil {
		return nil, fmt.Errorf("record sale: %w", err)
	}

	r.consumeIngredients(ctx, paid)

	order.Cart = subtractPaid(order.Cart, paid)
	if len(order.Cart) == 0 {
		r.dropHeld(order.Key())
		r.clearLocked(order, true)
	}

	r.logger.Info().Str("sale_id", saved.ID).Str("order_type", string(order.Type)).Str("order_id", order.ID).Int64("total_cents", saved.TotalCents).Str("payment_method", method).Msg("sale recorded")
	return saved, nil
}

// consumeIngredients subtracts recipe quantities for every paid line. Stock is
// allowed to go negative and failures never undo the sale.
func (r *Registry) consumeIngredients(ctx context.Context, paid []domain.CartItem) {
	for _, item := range paid {
		if item.RecipeID == "" {
			continue
		}
		recipe, err := r.ledger.GetRecipe(ctx, item.RecipeID)
		if err != nil {
			r.logger.Warn().Err(err).Str("recipe_id", item.RecipeID).Str("product_id", item.ID).Msg("recipe lookup failed; stock not decremented")
			continue
		}
		for _, ing := range recipe.Ingredients {
			delta := -ing.Qty * float64(item.Quantity)
			if err := r.ledger.AdjustRawMaterialStock(ctx, ing.RawMaterialID, delta); err != nil {
				r.logger.Warn().Err(err).Str("raw_material_id", ing.RawMaterialID).Float64("delta", delta).Msg("stock decrement failed")
			}
		}
	}
}

// resolvePaid maps requested quantities onto live cart lines, taking price and
// discount from the cart. Duplicate ids are summed.
func resolvePaid(cart []domain.CartItem, lines []PaymentLine) ([]domain.CartItem, error) {
	if len(lines) == 0 {
		return cloneCart(cart), nil
	}

	wanted := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", ErrInvalidPayment, line.ProductID)
		}
		if lineIndex(cart, line.ProductID) < 0 {
			return nil, fmt.Errorf("%w: %s is not in the cart", ErrInvalidPayment, line.ProductID)
		}
		wanted[line.ProductID] += line.Quantity
	}

	paid := make([]domain.CartItem, 0, len(wanted))
	for _, item := range cart {
		qty, ok := wanted[item.ID]
		if !ok {
			continue
		}
		if qty > item.Quantity {
			return nil, fmt.Errorf("%w: paying %d of %s but only %d in cart", ErrInvalidPayment, qty, item.ID, item.Quantity)
		}
		item.Quantity = qty
		paid = append(paid, item)
	}
	return paid, nil
}

// subtractPaid reduces live lines by the paid quantities. Lines reaching zero
// are dropped; unpaid lines are untouched.
func subtractPaid(cart []domain.CartItem, paid []domain.CartItem) []domain.CartItem {
	paidQty := make(map[string]int, len(paid))
	for _, item := range paid {
		paidQty[item.ID] += item.Quantity
	}
	remainder := make([]domain.CartItem, 0, len(cart))
	for _, item := range cart {
		item.Quantity -= paidQty[item.ID]
		if item.Quantity > 0 {
			remainder = append(remainder, item)
		}
	}
	return remainder
}
