package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/store"
	"rasapos/backend/internal/xid"
)

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.Shift, error) {
	if req.OpeningFloatCents < 0 {
		return domain.Shift{}, store.ErrInvalidInput
	}
	actor, _ := ActorFromContext(ctx)

	shift := domain.Shift{
		ID:                xid.New("shift"),
		CashierID:         actor.Username,
		OpeningFloatCents: req.OpeningFloatCents,
		Status:            domain.ShiftStatusOpen,
		OpenedAt:          s.now().UTC(),
	}
	saved, err := s.repo.CreateShift(ctx, shift)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Shift{}, ErrShiftAlreadyOpen
		}
		return domain.Shift{}, err
	}
	s.logger.Info().Str("shift_id", saved.ID).Str("cashier", saved.CashierID).Int64("opening_float_cents", saved.OpeningFloatCents).Msg("shift opened")
	return *saved, nil
}

func (s *Service) ActiveShift(ctx context.Context) (domain.Shift, error) {
	shift, err := s.repo.GetActiveShift(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Shift{}, ErrNoOpenShift
		}
		return domain.Shift{}, err
	}
	return *shift, nil
}

// CloseShift records the counted cash and reports the difference against the
// cash the drawer should hold.
func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.ShiftCloseResponse, error) {
	if req.ClosingCashCents < 0 {
		return domain.ShiftCloseResponse{}, store.ErrInvalidInput
	}
	shift, err := s.ActiveShift(ctx)
	if err != nil {
		return domain.ShiftCloseResponse{}, err
	}

	expected, err := s.expectedCash(ctx, shift)
	if err != nil {
		return domain.ShiftCloseResponse{}, err
	}
	closed, err := s.repo.CloseShift(ctx, shift.ID, req.ClosingCashCents, expected, s.now())
	if err != nil {
		return domain.ShiftCloseResponse{}, err
	}

	variance := req.ClosingCashCents - expected
	s.logger.Info().Str("shift_id", closed.ID).Int64("expected_cash_cents", expected).Int64("variance_cents", variance).Msg("shift closed")
	return domain.ShiftCloseResponse{Shift: *closed, VarianceCents: variance}, nil
}

// expectedCash is opening float + cash sales + cash in - cash out - expenses
// paid from the drawer, all within the shift.
func (s *Service) expectedCash(ctx context.Context, shift domain.Shift) (int64, error) {
	expected := shift.OpeningFloatCents

	sales, err := s.repo.ListSales(ctx, shift.OpenedAt, time.Time{})
	if err != nil {
		return 0, err
	}
	for _, sale := range sales {
		if sale.ShiftID == shift.ID && sale.PaymentMethod == domain.PaymentMethodCash {
			expected += sale.TotalCents
		}
	}

	entries, err := s.repo.ListCashDrawerEntries(ctx, shift.ID)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		switch entry.Type {
		case domain.CashDrawerIn:
			expected += entry.AmountCents
		case domain.CashDrawerOut:
			expected -= entry.AmountCents
		}
	}

	expenses, err := s.repo.ListExpenses(ctx, shift.OpenedAt, time.Time{})
	if err != nil {
		return 0, err
	}
	for _, expense := range expenses {
		if expense.PaidFromDrawer && expense.ShiftID == shift.ID {
			expected -= expense.AmountCents
		}
	}
	return expected, nil
}

func (s *Service) RecordCashDrawer(ctx context.Context, req domain.CashDrawerRequest) (domain.CashDrawerEntry, error) {
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.Reason = strings.TrimSpace(req.Reason)
	if (req.Type != domain.CashDrawerIn && req.Type != domain.CashDrawerOut) || req.AmountCents < 1 {
		return domain.CashDrawerEntry{}, store.ErrInvalidInput
	}
	shift, err := s.ActiveShift(ctx)
	if err != nil {
		return domain.CashDrawerEntry{}, err
	}
	actor, _ := ActorFromContext(ctx)

	saved, err := s.repo.CreateCashDrawerEntry(ctx, domain.CashDrawerEntry{
		ID:          xid.New("cd"),
		ShiftID:     shift.ID,
		Type:        req.Type,
		AmountCents: req.AmountCents,
		Reason:      req.Reason,
		CashierID:   actor.Username,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return domain.CashDrawerEntry{}, err
	}
	return *saved, nil
}

func (s *Service) ListCashDrawerEntries(ctx context.Context) ([]domain.CashDrawerEntry, error) {
	shift, err := s.ActiveShift(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCashDrawerEntries(ctx, shift.ID)
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)
	if req.Description == "" || req.AmountCents < 1 {
		return domain.Expense{}, store.ErrInvalidInput
	}

	expense := domain.Expense{
		ID:             xid.New("exp"),
		Description:    req.Description,
		Category:       req.Category,
		AmountCents:    req.AmountCents,
		PaidFromDrawer: req.PaidFromDrawer,
		CreatedAt:      s.now().UTC(),
	}
	shift, err := s.ActiveShift(ctx)
	switch {
	case err == nil:
		expense.ShiftID = shift.ID
	case errors.Is(err, ErrNoOpenShift):
		if req.PaidFromDrawer {
			return domain.Expense{}, err
		}
	default:
		return domain.Expense{}, err
	}

	saved, err := s.repo.CreateExpense(ctx, expense)
	if err != nil {
		return domain.Expense{}, err
	}
	return *saved, nil
}

func (s *Service) ListExpenses(ctx context.Context, from string, to string) ([]domain.Expense, error) {
	start, end, err := parseRange(from, to, s.now())
	if err != nil {
		return nil, err
	}
	return s.repo.ListExpenses(ctx, start, end)
}

// CreatePurchase records goods received from a supplier, raising stock and
// taking the purchase price as the new unit cost.
func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseCreateRequest) (domain.Purchase, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.Purchase{}, err
	}
	req.SupplierID = strings.TrimSpace(req.SupplierID)
	if req.SupplierID == "" || len(req.Items) == 0 {
		return domain.Purchase{}, store.ErrInvalidInput
	}
	if _, err := s.repo.GetSupplier(ctx, req.SupplierID); err != nil {
		return domain.Purchase{}, fmt.Errorf("supplier %s: %w", req.SupplierID, err)
	}

	total := decimal.Zero
	for _, item := range req.Items {
		if item.RawMaterialID == "" || item.Qty <= 0 || item.CostCents < 0 {
			return domain.Purchase{}, store.ErrInvalidInput
		}
		if _, err := s.repo.GetRawMaterial(ctx, item.RawMaterialID); err != nil {
			return domain.Purchase{}, fmt.Errorf("raw material %s: %w", item.RawMaterialID, err)
		}
		total = total.Add(decimal.NewFromFloat(item.Qty).Mul(decimal.NewFromInt(item.CostCents)))
	}

	saved, err := s.repo.CreatePurchase(ctx, domain.Purchase{
		ID:         xid.New("po"),
		SupplierID: req.SupplierID,
		Items:      req.Items,
		TotalCents: total.Round(0).IntPart(),
		CreatedBy:  actor.Username,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return domain.Purchase{}, err
	}

	for _, item := range saved.Items {
		if err := s.repo.AdjustRawMaterialStock(ctx, item.RawMaterialID, item.Qty); err != nil {
			return domain.Purchase{}, fmt.Errorf("receive %s: %w", item.RawMaterialID, err)
		}
		material, err := s.repo.GetRawMaterial(ctx, item.RawMaterialID)
		if err != nil {
			return domain.Purchase{}, err
		}
		material.CostCents = item.CostCents
		if _, err := s.repo.SaveRawMaterial(ctx, *material); err != nil {
			return domain.Purchase{}, err
		}
	}
	return *saved, nil
}

func (s *Service) ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error) {
	return s.repo.ListPurchases(ctx, limit)
}
