// Package registry owns the live orders of a single till: one per dine-in
// table plus the open takeaway and delivery tickets, the focused order, the
// held snapshots and the current split-bill session.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/pricing"
	"rasapos/backend/internal/split"
	"rasapos/backend/internal/xid"
)

var (
	ErrNoActiveOrder    = errors.New("select order type")
	ErrCustomerRequired = errors.New("customer required")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidPayment   = errors.New("invalid payment")
	ErrSplitNotOpen     = errors.New("split bill is not open")
	ErrUnknownTable     = errors.New("unknown table")
	ErrLineNotFound     = errors.New("item not in cart")
	ErrHeldNotFound     = errors.New("held order not found")
)

// Ledger is the slice of the repository the registry needs.
type Ledger interface {
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	GetRecipe(ctx context.Context, id string) (*domain.Recipe, error)
	AdjustRawMaterialStock(ctx context.Context, id string, delta float64) error
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSettings(ctx context.Context) (domain.Settings, error)
}

type Options struct {
	MaxSplits int
	// DefaultDeliveryFeeCents applies when settings carry no delivery fee.
	DefaultDeliveryFeeCents int64
	Now                     func() time.Time
}

type splitSession struct {
	key  domain.OrderKey
	bill *split.Bill
}

type Registry struct {
	mu     sync.Mutex
	ledger Ledger
	logger zerolog.Logger
	opts   Options
	seq    *xid.Sequence

	orders   map[domain.OrderKey]*domain.Order
	tables   []domain.Table
	active   *domain.OrderKey
	cartOpen bool
	held     []domain.HeldOrder
	split    *splitSession
}

func New(ledger Ledger, logger zerolog.Logger, opts Options) *Registry {
	if opts.MaxSplits < 1 {
		opts.MaxSplits = split.DefaultMaxSplits
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		ledger: ledger,
		logger: logger.With().Str("component", "registry").Logger(),
		opts:   opts,
		seq:    xid.NewSequence(),
		orders: make(map[domain.OrderKey]*domain.Order),
	}
}

// LoadTables registers a dine-in order for every table. Carts of tables that
// still exist are kept; orders of removed tables are dropped.
func (r *Registry) LoadTables(tables []domain.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keep := make(map[string]struct{}, len(tables))
	for _, table := range tables {
		keep[table.ID] = struct{}{}
		key := domain.OrderKey{Type: domain.OrderTypeDineIn, ID: table.ID}
		if order, ok := r.orders[key]; ok {
			order.Name = table.Name
			continue
		}
		r.orders[key] = &domain.Order{Type: domain.OrderTypeDineIn, ID: table.ID, Name: table.Name, CreatedAt: r.now()}
	}
	for key := range r.orders {
		if key.Type != domain.OrderTypeDineIn {
			continue
		}
		if _, ok := keep[key.ID]; !ok {
			delete(r.orders, key)
			if r.active != nil && *r.active == key {
				r.defocus()
			}
		}
	}
	r.tables = append([]domain.Table(nil), tables...)
}

// Reset drops every live order, held snapshot, the cursor and the split session.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders = make(map[domain.OrderKey]*domain.Order)
	r.tables = nil
	r.held = nil
	r.defocus()
}

func (r *Registry) OpenDineIn(tableID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := domain.OrderKey{Type: domain.OrderTypeDineIn, ID: tableID}
	order, ok := r.orders[key]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrUnknownTable, tableID)
	}
	r.focus(key)
	r.cartOpen = len(order.Cart) > 0
	return cloneOrder(order), nil
}

func (r *Registry) OpenNewTakeaway() domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	order := r.newTicket(domain.OrderTypeTakeaway, "Takeaway")
	r.cartOpen = false
	return cloneOrder(order)
}

// OpenNewDelivery starts a delivery ticket charged with the delivery fee and
// opens the cart view so a customer can be chosen.
func (r *Registry) OpenNewDelivery(ctx context.Context) (domain.Order, error) {
	fee := r.opts.DefaultDeliveryFeeCents
	settings, err := r.ledger.GetSettings(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load settings: %w", err)
	}
	if settings.DeliveryFeeCents > 0 {
		fee = settings.DeliveryFeeCents
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order := r.newTicket(domain.OrderTypeDelivery, "Delivery")
	order.ServiceChargeCents = fee
	r.cartOpen = true
	return cloneOrder(order), nil
}

func (r *Registry) newTicket(orderType domain.OrderType, label string) *domain.Order {
	id := strconv.FormatInt(r.seq.Next(), 10)
	order := &domain.Order{Type: orderType, ID: id, Name: label + " #" + id, CreatedAt: r.now()}
	r.orders[order.Key()] = order
	r.focus(order.Key())
	return order
}

func (r *Registry) AddLineItem(product domain.Product) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.activeOrder()
	if err != nil {
		return domain.Order{}, err
	}
	if idx := lineIndex(order.Cart, product.ID); idx >= 0 {
		order.Cart[idx].Quantity++
	} else {
		order.Cart = append(order.Cart, domain.CartItem{Product: product, Quantity: 1})
	}
	r.cartOpen = true
	return cloneOrder(order), nil
}

// UpdateLineQuantity applies delta, never going below zero. A line that
// reaches zero is removed.
func (r *Registry) UpdateLineQuantity(productID string, delta int) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.activeOrder()
	if err != nil {
		return domain.Order{}, err
	}
	idx := lineIndex(order.Cart, productID)
	if idx < 0 {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrLineNotFound, productID)
	}
	qty := max(order.Cart[idx].Quantity+delta, 0)
	if qty == 0 {
		order.Cart = append(order.Cart[:idx], order.Cart[idx+1:]...)
		r.afterShrink(order)
	} else {
		order.Cart[idx].Quantity = qty
	}
	return cloneOrder(order), nil
}

func (r *Registry) RemoveLineItem(productID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.activeOrder()
	if err != nil {
		return domain.Order{}, err
	}
	idx := lineIndex(order.Cart, productID)
	if idx < 0 {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrLineNotFound, productID)
	}
	order.Cart = append(order.Cart[:idx], order.Cart[idx+1:]...)
	r.afterShrink(order)
	return cloneOrder(order), nil
}

func (r *Registry) SetLineDiscount(productID string, pct float64) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.activeOrder()
	if err != nil {
		return domain.Order{}, err
	}
	idx := lineIndex(order.Cart, productID)
	if idx < 0 {
		return domain.Order{}, fmt.Errorf("%w: %s", ErrLineNotFound, productID)
	}
	order.Cart[idx].Discount = pricing.ClampPercent(pct)
	return cloneOrder(order), nil
}

func (r *Registry) SetOverallDiscount(pct float64) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.activeOrder()
	if err != nil {
		return domain.Order{}, err
	}
	order.OverallDiscount = pricing.ClampPercent(pct)
	return cloneOrder(order), nil
}

func (r *Registry) SetServiceCharge(amountCents int64) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.activeOrder()
	if err != nil {
		return domain.Order{}, err
	}
	order.ServiceChargeCents = max(amountCents, 0)
	return cloneOrder(order), nil
}

// SetCustomer attaches a customer to the active order. An empty id detaches.
func (r *Registry) SetCustomer(ctx context.Context, customerID string) (domain.Order, error) {
	if customerID != "" {
		if _, err := r.ledger.GetCustomer(ctx, customerID); err != nil {
			return domain.Order{}, fmt.Errorf("customer %s: %w", customerID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.activeOrder()
	if err != nil {
		return domain.Order{}, err
	}
	order.SelectedCustomerID = customerID
	return cloneOrder(order), nil
}

// Clear wipes the active order. Dine-in tables keep their row; tickets are
// deleted. The cursor is dropped except for a manual dine-in clear.
func (r *Registry) Clear(isPayment bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.activeOrder()
	if err != nil {
		return err
	}
	r.clearLocked(order, isPayment)
	return nil
}

func (r *Registry) clearLocked(order *domain.Order, isPayment bool) {
	if r.split != nil && r.split.key == order.Key() {
		r.split = nil
	}
	r.cartOpen = false

	if order.Type == domain.OrderTypeDineIn {
		order.Cart = nil
		order.SelectedCustomerID = ""
		order.OverallDiscount = 0
		order.ServiceChargeCents = 0
		r.dropHeld(order.Key())
		if isPayment {
			r.defocus()
		}
		return
	}
	delete(r.orders, order.Key())
	r.defocus()
}

// afterShrink resets invoice adjustments once the cart is empty and closes the
// cart view for everything but delivery. An emptied table has no guest left,
// so its held snapshot goes too.
func (r *Registry) afterShrink(order *domain.Order) {
	if len(order.Cart) > 0 {
		return
	}
	order.OverallDiscount = 0
	order.ServiceChargeCents = 0
	if order.Type == domain.OrderTypeDineIn {
		r.dropHeld(order.Key())
	}
	if order.Type != domain.OrderTypeDelivery {
		r.cartOpen = false
	}
}

func (r *Registry) activeOrder() (*domain.Order, error) {
	if r.active == nil {
		return nil, ErrNoActiveOrder
	}
	order, ok := r.orders[*r.active]
	if !ok {
		r.defocus()
		return nil, ErrNoActiveOrder
	}
	return order, nil
}

func (r *Registry) focus(key domain.OrderKey) {
	if r.split != nil && r.split.key != key {
		r.split = nil
	}
	k := key
	r.active = &k
}

func (r *Registry) defocus() {
	r.active = nil
	r.cartOpen = false
	r.split = nil
}

func (r *Registry) now() time.Time {
	return r.opts.Now().UTC()
}

func lineIndex(cart []domain.CartItem, productID string) int {
	for i, item := range cart {
		if item.ID == productID {
			return i
		}
	}
	return -1
}

func cloneCart(cart []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(cart))
	copy(out, cart)
	return out
}

func cloneOrder(order *domain.Order) domain.Order {
	out := *order
	out.Cart = cloneCart(order.Cart)
	return out
}
