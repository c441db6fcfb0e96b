package service

import (
	"context"
	"errors"
	"strings"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/registry"
	"rasapos/backend/internal/split"
	"rasapos/backend/internal/store"
)

func (s *Service) OrderView() registry.View {
	return s.orders.View()
}

func (s *Service) OpenOrder(ctx context.Context, req domain.OpenOrderRequest) (registry.View, error) {
	var err error
	switch req.OrderType {
	case domain.OrderTypeDineIn:
		_, err = s.orders.OpenDineIn(strings.TrimSpace(req.TableID))
	case domain.OrderTypeTakeaway:
		s.orders.OpenNewTakeaway()
	case domain.OrderTypeDelivery:
		_, err = s.orders.OpenNewDelivery(ctx)
	default:
		err = store.ErrInvalidInput
	}
	if err != nil {
		return registry.View{}, err
	}
	return s.orders.View(), nil
}

// AddItem adds one unit of an active product, looked up by id or barcode.
func (s *Service) AddItem(ctx context.Context, req domain.AddItemRequest) (registry.View, error) {
	var (
		product *domain.Product
		err     error
	)
	switch {
	case strings.TrimSpace(req.ProductID) != "":
		product, err = s.repo.GetProduct(ctx, strings.TrimSpace(req.ProductID))
	case strings.TrimSpace(req.Barcode) != "":
		product, err = s.repo.GetProductByBarcode(ctx, strings.TrimSpace(req.Barcode))
	default:
		err = store.ErrInvalidInput
	}
	if err != nil {
		return registry.View{}, err
	}
	if !product.Active {
		return registry.View{}, store.ErrInvalidInput
	}

	if _, err := s.orders.AddLineItem(*product); err != nil {
		return registry.View{}, err
	}
	return s.orders.View(), nil
}

// UpdateItem applies a quantity delta and/or a line discount.
func (s *Service) UpdateItem(req domain.UpdateItemRequest) (registry.View, error) {
	if req.Delta == 0 && req.Discount == nil {
		return registry.View{}, store.ErrInvalidInput
	}
	if req.Discount != nil {
		if _, err := s.orders.SetLineDiscount(req.ProductID, *req.Discount); err != nil {
			return registry.View{}, err
		}
	}
	if req.Delta != 0 {
		if _, err := s.orders.UpdateLineQuantity(req.ProductID, req.Delta); err != nil {
			return registry.View{}, err
		}
	}
	return s.orders.View(), nil
}

func (s *Service) RemoveItem(productID string) (registry.View, error) {
	if _, err := s.orders.RemoveLineItem(productID); err != nil {
		return registry.View{}, err
	}
	return s.orders.View(), nil
}

func (s *Service) AdjustOrder(ctx context.Context, req domain.OrderAdjustRequest) (registry.View, error) {
	if req.OverallDiscount != nil {
		if _, err := s.orders.SetOverallDiscount(*req.OverallDiscount); err != nil {
			return registry.View{}, err
		}
	}
	if req.ServiceChargeCents != nil {
		if _, err := s.orders.SetServiceCharge(*req.ServiceChargeCents); err != nil {
			return registry.View{}, err
		}
	}
	if req.CustomerID != nil {
		if _, err := s.orders.SetCustomer(ctx, strings.TrimSpace(*req.CustomerID)); err != nil {
			return registry.View{}, err
		}
	}
	return s.orders.View(), nil
}

func (s *Service) ClearOrder(req domain.ClearOrderRequest) (registry.View, error) {
	if err := s.orders.Clear(req.IsPayment); err != nil {
		return registry.View{}, err
	}
	return s.orders.View(), nil
}

func (s *Service) HoldOrder(ctx context.Context) (domain.HeldOrder, error) {
	return s.orders.Hold(ctx)
}

func (s *Service) ListHeldOrders() []domain.HeldOrder {
	return s.orders.HeldOrders()
}

func (s *Service) RestoreHeldOrder(holdID string) (registry.View, error) {
	if _, err := s.orders.Restore(strings.TrimSpace(holdID)); err != nil {
		return registry.View{}, err
	}
	return s.orders.View(), nil
}

func (s *Service) DiscardHeldOrder(holdID string) error {
	return s.orders.DiscardHeld(strings.TrimSpace(holdID))
}

func (s *Service) ConfirmPayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	in := s.paymentInput(ctx, req.PaymentMethod, req.DeliveryRepID)
	for _, line := range req.Items {
		in.Lines = append(in.Lines, registry.PaymentLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	sale, err := s.orders.ConfirmPayment(ctx, in)
	if err != nil {
		return domain.PaymentResponse{}, err
	}
	s.publishSale(ctx, *sale)
	return domain.PaymentResponse{SaleID: sale.ID, Sale: *sale}, nil
}

func (s *Service) OpenSplit() (split.View, error) {
	return s.orders.OpenSplit()
}

func (s *Service) AddSplit() (split.View, error) {
	_, view, err := s.orders.AddSplit()
	return view, err
}

func (s *Service) MoveSplitItem(req domain.SplitMoveRequest) (split.View, error) {
	from, err := split.ParseBucket(req.From)
	if err != nil {
		return split.View{}, err
	}
	to, err := split.ParseBucket(req.To)
	if err != nil {
		return split.View{}, err
	}
	return s.orders.MoveSplitItem(strings.TrimSpace(req.ProductID), from, to)
}

func (s *Service) PaySplit(ctx context.Context, req domain.SplitPayRequest) (domain.PaymentResponse, error) {
	bucket, err := split.ParseBucket(req.Bucket)
	if err != nil {
		return domain.PaymentResponse{}, err
	}
	sale, err := s.orders.PaySplit(ctx, bucket, s.paymentInput(ctx, req.PaymentMethod, req.DeliveryRepID))
	if err != nil {
		return domain.PaymentResponse{}, err
	}
	s.publishSale(ctx, *sale)
	return domain.PaymentResponse{SaleID: sale.ID, Sale: *sale}, nil
}

func (s *Service) CloseSplit() {
	s.orders.CloseSplit()
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// paymentInput stamps the cashier and, when one is open, the shift.
func (s *Service) paymentInput(ctx context.Context, method string, deliveryRepID string) registry.PaymentInput {
	in := registry.PaymentInput{
		Method:        strings.ToLower(strings.TrimSpace(method)),
		DeliveryRepID: strings.TrimSpace(deliveryRepID),
	}
	if actor, ok := ActorFromContext(ctx); ok {
		in.CashierID = actor.Username
	}
	shift, err := s.repo.GetActiveShift(ctx)
	switch {
	case err == nil:
		in.ShiftID = shift.ID
	case !errors.Is(err, store.ErrNotFound):
		s.logger.Warn().Err(err).Msg("active shift lookup failed; sale will not reference a shift")
	}
	return in
}

func (s *Service) publishSale(ctx context.Context, sale domain.Sale) {
	if err := s.publisher.PublishSale(ctx, sale); err != nil {
		s.logger.Warn().Err(err).Str("sale_id", sale.ID).Msg("sale event publish failed")
	}
}
