package service

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/pricing"
	"rasapos/backend/internal/store"
)

const (
	dateLayout       = "2006-01-02"
	topProductsLimit = 10
)

// parseRange turns inclusive from/to dates into a half-open UTC interval.
// Missing dates default to today.
func parseRange(from string, to string, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	start := today
	if strings.TrimSpace(from) != "" {
		parsed, err := time.Parse(dateLayout, strings.TrimSpace(from))
		if err != nil {
			return time.Time{}, time.Time{}, store.ErrInvalidInput
		}
		start = parsed.UTC()
	}
	end := start
	if strings.TrimSpace(to) != "" {
		parsed, err := time.Parse(dateLayout, strings.TrimSpace(to))
		if err != nil {
			return time.Time{}, time.Time{}, store.ErrInvalidInput
		}
		end = parsed.UTC()
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, store.ErrInvalidInput
	}
	return start, end.Add(24 * time.Hour), nil
}

func (s *Service) SalesReport(ctx context.Context, from string, to string) (domain.SalesReport, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.SalesReport{}, err
	}
	start, end, err := parseRange(from, to, s.now())
	if err != nil {
		return domain.SalesReport{}, err
	}

	sales, err := s.repo.ListSales(ctx, start, end)
	if err != nil {
		return domain.SalesReport{}, err
	}
	expenses, err := s.repo.ListExpenses(ctx, start, end)
	if err != nil {
		return domain.SalesReport{}, err
	}

	report := domain.SalesReport{
		From:        start.Format(dateLayout),
		To:          end.Add(-24 * time.Hour).Format(dateLayout),
		ByPayment:   []domain.SalesReportPayment{},
		ByOrderType: []domain.SalesReportOrderType{},
		TopProducts: []domain.SalesReportProduct{},
	}

	byPayment := make(map[string]*domain.SalesReportPayment)
	byType := make(map[domain.OrderType]*domain.SalesReportOrderType)
	byProduct := make(map[string]*domain.SalesReportProduct)

	for _, sale := range sales {
		report.Sales++
		report.GrossSalesCents += sale.SubtotalCents
		report.DiscountCents += sale.DiscountCents
		report.ServiceChargeCents += sale.ServiceChargeCents
		report.NetSalesCents += sale.TotalCents

		pay, ok := byPayment[sale.PaymentMethod]
		if !ok {
			pay = &domain.SalesReportPayment{PaymentMethod: sale.PaymentMethod}
			byPayment[sale.PaymentMethod] = pay
		}
		pay.Sales++
		pay.TotalCents += sale.TotalCents

		kind, ok := byType[sale.OrderType]
		if !ok {
			kind = &domain.SalesReportOrderType{OrderType: sale.OrderType}
			byType[sale.OrderType] = kind
		}
		kind.Sales++
		kind.TotalCents += sale.TotalCents

		for _, item := range sale.Items {
			line, ok := byProduct[item.ID]
			if !ok {
				line = &domain.SalesReportProduct{ProductID: item.ID, Name: item.Name}
				byProduct[item.ID] = line
			}
			line.Quantity += item.Quantity
			line.GrossCents += pricing.LineGross(item).IntPart()
		}
	}
	for _, expense := range expenses {
		report.ExpensesCents += expense.AmountCents
	}
	if report.Sales > 0 {
		report.AverageTicketCents = report.NetSalesCents / report.Sales
	}

	for _, pay := range byPayment {
		report.ByPayment = append(report.ByPayment, *pay)
	}
	slices.SortFunc(report.ByPayment, func(a, b domain.SalesReportPayment) int {
		return cmp.Compare(a.PaymentMethod, b.PaymentMethod)
	})
	for _, kind := range byType {
		report.ByOrderType = append(report.ByOrderType, *kind)
	}
	slices.SortFunc(report.ByOrderType, func(a, b domain.SalesReportOrderType) int {
		return cmp.Compare(a.OrderType, b.OrderType)
	})
	for _, line := range byProduct {
		report.TopProducts = append(report.TopProducts, *line)
	}
	slices.SortFunc(report.TopProducts, func(a, b domain.SalesReportProduct) int {
		if a.Quantity != b.Quantity {
			return cmp.Compare(b.Quantity, a.Quantity)
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	if len(report.TopProducts) > topProductsLimit {
		report.TopProducts = report.TopProducts[:topProductsLimit]
	}
	return report, nil
}

// LowStock lists raw materials at or below their minimum. Materials without a
// minimum fall back to the store-wide threshold.
func (s *Service) LowStock(ctx context.Context) ([]domain.LowStockItem, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	materials, err := s.repo.ListRawMaterials(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]domain.LowStockItem, 0)
	for _, material := range materials {
		threshold := material.MinStock
		if threshold <= 0 {
			threshold = settings.LowStockThreshold
		}
		if material.Stock <= threshold {
			items = append(items, domain.LowStockItem{RawMaterial: material, Threshold: threshold})
		}
	}
	slices.SortFunc(items, func(a, b domain.LowStockItem) int {
		return cmp.Compare(a.RawMaterial.Stock-a.Threshold, b.RawMaterial.Stock-b.Threshold)
	})
	return items, nil
}
