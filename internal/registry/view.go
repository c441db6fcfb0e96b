package registry

import (
	"cmp"
	"slices"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/pricing"
	"rasapos/backend/internal/split"
)

type ActiveOrder struct {
	domain.Order
	Totals domain.Totals `json:"totals"`
}

type TableStatus struct {
	domain.Table
	Occupied   bool  `json:"occupied"`
	ItemCount  int   `json:"item_count"`
	TotalCents int64 `json:"total_cents"`
	Active     bool  `json:"active"`
}

type TicketSummary struct {
	OrderType  domain.OrderType `json:"order_type"`
	OrderID    string           `json:"order_id"`
	Name       string           `json:"name"`
	ItemCount  int              `json:"item_count"`
	TotalCents int64            `json:"total_cents"`
}

// View is a consistent snapshot of the till for rendering.
type View struct {
	Active    *ActiveOrder       `json:"active,omitempty"`
	CartOpen  bool               `json:"cart_open"`
	Held      []domain.HeldOrder `json:"held"`
	HeldCount int                `json:"held_count"`
	Tables    []TableStatus      `json:"tables"`
	Tickets   []TicketSummary    `json:"tickets"`
	Split     *split.View        `json:"split,omitempty"`
}

func (r *Registry) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	view := View{
		CartOpen: r.cartOpen,
		Held:     r.heldCopy(),
		Tables:   make([]TableStatus, 0, len(r.tables)),
		Tickets:  make([]TicketSummary, 0),
	}
	view.HeldCount = len(view.Held)

	if order, err := r.activeOrder(); err == nil {
		view.Active = &ActiveOrder{
			Order:  cloneOrder(order),
			Totals: pricing.ComputeTotals(order.Cart, order.OverallDiscount, order.ServiceChargeCents),
		}
	}

	for _, table := range r.tables {
		status := TableStatus{Table: table}
		key := domain.OrderKey{Type: domain.OrderTypeDineIn, ID: table.ID}
		if order, ok := r.orders[key]; ok {
			totals := pricing.ComputeTotals(order.Cart, order.OverallDiscount, order.ServiceChargeCents)
			status.Occupied = len(order.Cart) > 0
			status.ItemCount = totals.ItemCount
			status.TotalCents = totals.FinalTotalCents
		}
		status.Active = r.active != nil && *r.active == key
		view.Tables = append(view.Tables, status)
	}

	for key, order := range r.orders {
		if key.Type == domain.OrderTypeDineIn {
			continue
		}
		totals := pricing.ComputeTotals(order.Cart, order.OverallDiscount, order.ServiceChargeCents)
		view.Tickets = append(view.Tickets, TicketSummary{
			OrderType:  order.Type,
			OrderID:    order.ID,
			Name:       order.Name,
			ItemCount:  totals.ItemCount,
			TotalCents: totals.FinalTotalCents,
		})
	}
	slices.SortFunc(view.Tickets, func(a, b TicketSummary) int {
		if a.OrderType != b.OrderType {
			return cmp.Compare(a.OrderType, b.OrderType)
		}
		return compareTicketIDs(a.OrderID, b.OrderID)
	})

	if r.split != nil {
		sv := r.split.bill.View()
		view.Split = &sv
	}
	return view
}

// compareTicketIDs orders decimal ticket ids numerically: a shorter id is
// the smaller number.
func compareTicketIDs(a, b string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}
