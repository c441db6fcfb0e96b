package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/registry"
	"rasapos/backend/internal/store/memory"
)

var testNow = time.Date(2026, 4, 2, 11, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	sales []domain.Sale
}

func (p *recordingPublisher) PublishSale(_ context.Context, sale domain.Sale) error {
	p.sales = append(p.sales, sale)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type countingCache struct {
	products    []domain.Product
	gets        int
	sets        int
	invalidated int
}

func (c *countingCache) GetProducts(_ context.Context) ([]domain.Product, bool, error) {
	c.gets++
	return c.products, c.products != nil, nil
}

func (c *countingCache) SetProducts(_ context.Context, products []domain.Product, _ time.Duration) error {
	c.sets++
	c.products = products
	return nil
}

func (c *countingCache) Invalidate(_ context.Context) error {
	c.invalidated++
	c.products = nil
	return nil
}

type fixture struct {
	svc       *Service
	repo      *memory.Store
	publisher *recordingPublisher
	cache     *countingCache
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := memory.NewSeeded()
	clock := func() time.Time { return testNow }
	orders := registry.New(repo, zerolog.Nop(), registry.Options{Now: clock})
	publisher := &recordingPublisher{}
	catalog := &countingCache{}
	svc := New(repo, orders, catalog, publisher, zerolog.Nop(), Options{CatalogTTL: time.Minute, Now: clock})
	if err := svc.LoadTables(context.Background()); err != nil {
		t.Fatalf("load tables: %v", err)
	}
	return fixture{svc: svc, repo: repo, publisher: publisher, cache: catalog}
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: domain.RoleCashier})
}

func sell(t *testing.T, svc *Service, ctx context.Context, method string, productIDs ...string) domain.Sale {
	t.Helper()
	if _, err := svc.OpenOrder(ctx, domain.OpenOrderRequest{OrderType: domain.OrderTypeTakeaway}); err != nil {
		t.Fatalf("open order: %v", err)
	}
	for _, id := range productIDs {
		if _, err := svc.AddItem(ctx, domain.AddItemRequest{ProductID: id}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	resp, err := svc.ConfirmPayment(ctx, domain.PaymentRequest{PaymentMethod: method})
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	return resp.Sale
}

func TestConfirmPaymentStampsCashierAndShift(t *testing.T) {
	f := newFixture(t)
	ctx := cashierCtx()

	shift, err := f.svc.OpenShift(ctx, domain.ShiftOpenRequest{OpeningFloatCents: 100000})
	if err != nil {
		t.Fatalf("open shift failed: %v", err)
	}

	sale := sell(t, f.svc, ctx, "cash", "prd-nasgor")
	if sale.CashierID != "cashier" {
		t.Fatalf("expected cashier id, got %q", sale.CashierID)
	}
	if sale.ShiftID != shift.ID {
		t.Fatalf("expected shift %s on sale, got %q", shift.ID, sale.ShiftID)
	}
	if len(f.publisher.sales) != 1 || f.publisher.sales[0].ID != sale.ID {
		t.Fatalf("expected sale event to be published, got %+v", f.publisher.sales)
	}
}

func TestConfirmPaymentWithoutShift(t *testing.T) {
	f := newFixture(t)

	sale := sell(t, f.svc, cashierCtx(), "", "prd-air")
	if sale.ShiftID != "" {
		t.Fatalf("expected no shift id, got %q", sale.ShiftID)
	}
	if sale.PaymentMethod != domain.PaymentMethodCash {
		t.Fatalf("expected default cash payment, got %q", sale.PaymentMethod)
	}
}

func TestPartialPaymentThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := cashierCtx()

	if _, err := f.svc.OpenOrder(ctx, domain.OpenOrderRequest{OrderType: domain.OrderTypeDineIn, TableID: "tbl-meja-1"}); err != nil {
		t.Fatalf("open table: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := f.svc.AddItem(ctx, domain.AddItemRequest{Barcode: "8990003"}); err != nil {
			t.Fatalf("add by barcode: %v", err)
		}
	}

	resp, err := f.svc.ConfirmPayment(ctx, domain.PaymentRequest{
		Items:         []domain.PaymentLine{{ProductID: "prd-kerupuk", Quantity: 2}},
		PaymentMethod: "QRIS",
	})
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if resp.Sale.SubtotalCents != 6000 || resp.Sale.PaymentMethod != "qris" {
		t.Fatalf("unexpected sale %+v", resp.Sale)
	}
	view := f.svc.OrderView()
	if view.Active == nil || len(view.Active.Cart) != 1 || view.Active.Cart[0].Quantity != 1 {
		t.Fatalf("expected one kerupuk left, got %+v", view.Active)
	}
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	product, err := f.svc.SaveProduct(ctx, domain.Product{Name: "Es Campur", PriceCents: 12000})
	if err != nil {
		t.Fatalf("save product: %v", err)
	}
	product.Active = false
	if _, err := f.svc.SaveProduct(ctx, product); err != nil {
		t.Fatalf("deactivate product: %v", err)
	}

	f.svc.OpenOrder(ctx, domain.OpenOrderRequest{OrderType: domain.OrderTypeTakeaway})
	if _, err := f.svc.AddItem(ctx, domain.AddItemRequest{ProductID: product.ID}); err == nil {
		t.Fatalf("expected inactive product to be rejected")
	}
}

func TestOpenShiftTwiceFails(t *testing.T) {
	f := newFixture(t)
	ctx := cashierCtx()

	if _, err := f.svc.OpenShift(ctx, domain.ShiftOpenRequest{OpeningFloatCents: 1000}); err != nil {
		t.Fatalf("open shift: %v", err)
	}
	_, err := f.svc.OpenShift(ctx, domain.ShiftOpenRequest{OpeningFloatCents: 1000})
	if !errors.Is(err, ErrShiftAlreadyOpen) {
		t.Fatalf("expected ErrShiftAlreadyOpen, got %v", err)
	}
}

func TestCloseShiftReportsVariance(t *testing.T) {
	f := newFixture(t)
	ctx := cashierCtx()

	if _, err := f.svc.OpenShift(ctx, domain.ShiftOpenRequest{OpeningFloatCents: 100000}); err != nil {
		t.Fatalf("open shift: %v", err)
	}
	sell(t, f.svc, ctx, "cash", "prd-nasgor")
	sell(t, f.svc, ctx, "card", "prd-air")
	if _, err := f.svc.RecordCashDrawer(ctx, domain.CashDrawerRequest{Type: "in", AmountCents: 20000, Reason: "change"}); err != nil {
		t.Fatalf("cash in: %v", err)
	}
	if _, err := f.svc.RecordCashDrawer(ctx, domain.CashDrawerRequest{Type: "out", AmountCents: 5000, Reason: "ice"}); err != nil {
		t.Fatalf("cash out: %v", err)
	}
	if _, err := f.svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Description: "Gas", AmountCents: 10000, PaidFromDrawer: true}); err != nil {
		t.Fatalf("expense: %v", err)
	}
	if _, err := f.svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Description: "Internet", AmountCents: 30000}); err != nil {
		t.Fatalf("expense: %v", err)
	}

	resp, err := f.svc.CloseShift(ctx, domain.ShiftCloseRequest{ClosingCashCents: 129000})
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if resp.Shift.ExpectedCashCents != 130000 {
		t.Fatalf("expected 130000 in drawer, got %d", resp.Shift.ExpectedCashCents)
	}
	if resp.VarianceCents != -1000 {
		t.Fatalf("expected variance -1000, got %d", resp.VarianceCents)
	}
	if resp.Shift.Status != domain.ShiftStatusClosed {
		t.Fatalf("expected closed shift, got %s", resp.Shift.Status)
	}
}

func TestCashDrawerRequiresOpenShift(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordCashDrawer(cashierCtx(), domain.CashDrawerRequest{Type: "in", AmountCents: 500})
	if !errors.Is(err, ErrNoOpenShift) {
		t.Fatalf("expected ErrNoOpenShift, got %v", err)
	}
	_, err = f.svc.CreateExpense(cashierCtx(), domain.ExpenseCreateRequest{Description: "Gas", AmountCents: 500, PaidFromDrawer: true})
	if !errors.Is(err, ErrNoOpenShift) {
		t.Fatalf("expected drawer expense to need a shift, got %v", err)
	}
}

func TestCreatePurchaseRaisesStockAndCost(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	purchase, err := f.svc.CreatePurchase(ctx, domain.PurchaseCreateRequest{
		SupplierID: "sup-pasar",
		Items: []domain.PurchaseItem{
			{RawMaterialID: "rm-rice", Qty: 10, CostCents: 15000},
			{RawMaterialID: "rm-egg", Qty: 2.5, CostCents: 2000},
		},
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if purchase.TotalCents != 155000 {
		t.Fatalf("expected total 155000, got %d", purchase.TotalCents)
	}

	rice, err := f.repo.GetRawMaterial(ctx, "rm-rice")
	if err != nil {
		t.Fatalf("get rice: %v", err)
	}
	if rice.Stock != 60 || rice.CostCents != 15000 {
		t.Fatalf("expected stock 60 at 15000, got %v at %d", rice.Stock, rice.CostCents)
	}
}

func TestCreatePurchaseRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreatePurchase(cashierCtx(), domain.PurchaseCreateRequest{
		SupplierID: "sup-pasar",
		Items:      []domain.PurchaseItem{{RawMaterialID: "rm-rice", Qty: 1, CostCents: 1}},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestSalesReportAggregatesToday(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	sell(t, f.svc, ctx, "cash", "prd-nasgor", "prd-nasgor", "prd-air")
	sell(t, f.svc, ctx, "qris", "prd-air")

	report, err := f.svc.SalesReport(ctx, "", "")
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if report.Sales != 2 || report.NetSalesCents != 60000 || report.AverageTicketCents != 30000 {
		t.Fatalf("unexpected totals %+v", report)
	}
	if report.From != "2026-04-02" || report.To != "2026-04-02" {
		t.Fatalf("unexpected range %s..%s", report.From, report.To)
	}
	if len(report.ByPayment) != 2 || report.ByPayment[0].PaymentMethod != "cash" {
		t.Fatalf("unexpected payment breakdown %+v", report.ByPayment)
	}
	if len(report.TopProducts) != 2 || report.TopProducts[0].Quantity != 2 {
		t.Fatalf("unexpected top products %+v", report.TopProducts)
	}

	if _, err := f.svc.SalesReport(ctx, "2026-04-03", "2026-04-01"); err == nil {
		t.Fatalf("expected inverted range to be rejected")
	}
}

func TestLowStockUsesMinimumOrThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	if err := f.repo.AdjustRawMaterialStock(ctx, "rm-tea", -1.6); err != nil {
		t.Fatalf("adjust tea: %v", err)
	}
	items, err := f.svc.LowStock(ctx)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(items) != 1 || items[0].RawMaterial.ID != "rm-tea" {
		t.Fatalf("expected only tea to be low, got %+v", items)
	}
}

func TestListProductsUsesCatalogCache(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	first, err := f.svc.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if _, err := f.svc.ListProducts(ctx); err != nil {
		t.Fatalf("list products: %v", err)
	}
	if f.cache.sets != 1 {
		t.Fatalf("expected one cache fill, got %d", f.cache.sets)
	}

	if _, err := f.svc.SaveProduct(ctx, domain.Product{Name: "Teh Tarik", PriceCents: 9000}); err != nil {
		t.Fatalf("save product: %v", err)
	}
	if f.cache.invalidated != 1 {
		t.Fatalf("expected cache invalidation after product write")
	}
	after, err := f.svc.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(after) != len(first)+1 {
		t.Fatalf("expected new product in list, got %d vs %d", len(after), len(first))
	}
}

func TestSaveTableRegistersDineInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	table, err := f.svc.SaveTable(ctx, domain.Table{Name: "VIP", Seats: 8})
	if err != nil {
		t.Fatalf("save table: %v", err)
	}
	if _, err := f.svc.OpenOrder(ctx, domain.OpenOrderRequest{OrderType: domain.OrderTypeDineIn, TableID: table.ID}); err != nil {
		t.Fatalf("expected new table to be selectable: %v", err)
	}
}

func TestUpdateSettingsChangesDeliveryFee(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	fee := int64(12000)
	if _, err := f.svc.UpdateSettings(ctx, domain.SettingsUpdateRequest{DeliveryFeeCents: &fee}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	view, err := f.svc.OpenOrder(ctx, domain.OpenOrderRequest{OrderType: domain.OrderTypeDelivery})
	if err != nil {
		t.Fatalf("open delivery: %v", err)
	}
	if view.Active.ServiceChargeCents != 12000 {
		t.Fatalf("expected delivery fee 12000, got %d", view.Active.ServiceChargeCents)
	}

	bad := "RP"
	if _, err := f.svc.UpdateSettings(ctx, domain.SettingsUpdateRequest{Currency: &bad}); err == nil {
		t.Fatalf("expected invalid currency to be rejected")
	}
}

func TestBackupRoundTripResetsOrders(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	sell(t, f.svc, ctx, "cash", "prd-nasgor")
	f.svc.OpenOrder(ctx, domain.OpenOrderRequest{OrderType: domain.OrderTypeTakeaway})
	f.svc.AddItem(ctx, domain.AddItemRequest{ProductID: "prd-air"})
	if _, err := f.svc.HoldOrder(ctx); err != nil {
		t.Fatalf("hold: %v", err)
	}

	backup, err := f.svc.ExportBackup(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	backup.Tables = backup.Tables[:2]
	raw, err := json.Marshal(backup)
	if err != nil {
		t.Fatalf("marshal backup: %v", err)
	}
	for _, key := range domain.BackupKeys {
		if !strings.Contains(string(raw), `"`+key+`":`) {
			t.Fatalf("export is missing key %q", key)
		}
	}

	if err := f.svc.ImportBackup(ctx, raw); err != nil {
		t.Fatalf("import: %v", err)
	}
	view := f.svc.OrderView()
	if view.HeldCount != 0 || view.Active != nil || len(view.Tickets) != 0 {
		t.Fatalf("expected runtime state to be reset, got %+v", view)
	}
	if len(view.Tables) != 2 {
		t.Fatalf("expected 2 restored tables, got %d", len(view.Tables))
	}
	sales, err := f.repo.ListSales(ctx, time.Time{}, time.Time{})
	if err != nil || len(sales) != 1 {
		t.Fatalf("expected restored sale, got %d (%v)", len(sales), err)
	}
	if f.cache.invalidated == 0 {
		t.Fatalf("expected catalog cache invalidation on restore")
	}
}

func TestImportMalformedBackupLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := adminCtx()

	f.svc.OpenOrder(ctx, domain.OpenOrderRequest{OrderType: domain.OrderTypeTakeaway})
	f.svc.AddItem(ctx, domain.AddItemRequest{ProductID: "prd-air"})
	f.svc.HoldOrder(ctx)
	before, _ := f.svc.ListProducts(ctx)

	cases := map[string]string{
		"not json":      `{"products": [`,
		"missing users": `{"products":[],"categories":[],"customers":[],"deliveryReps":[],"expenses":[],"cashDrawerEntries":[],"purchases":[],"rawMaterials":[],"recipes":[],"roles":[],"sales":[],"settings":{},"shifts":[],"suppliers":[],"tables":[]}`,
		"wrong shape":   `{"products":{},"categories":[],"customers":[],"deliveryReps":[],"expenses":[],"cashDrawerEntries":[],"purchases":[],"rawMaterials":[],"recipes":[],"roles":[],"sales":[],"settings":{},"shifts":[],"suppliers":[],"tables":[],"users":[]}`,
		"duplicate id":  `{"products":[{"id":"dup","name":"a"},{"id":"dup","name":"b"}],"categories":[],"customers":[],"deliveryReps":[],"expenses":[],"cashDrawerEntries":[],"purchases":[],"rawMaterials":[],"recipes":[],"roles":[],"sales":[],"settings":{},"shifts":[],"suppliers":[],"tables":[],"users":[]}`,
		"blank id":      `{"products":[{"name":"x"}],"categories":[],"customers":[],"deliveryReps":[],"expenses":[],"cashDrawerEntries":[],"purchases":[],"rawMaterials":[],"recipes":[],"roles":[],"sales":[],"settings":{},"shifts":[],"suppliers":[],"tables":[],"users":[]}`,
	}
	for name, raw := range cases {
		err := f.svc.ImportBackup(ctx, []byte(raw))
		if !errors.Is(err, ErrMalformedBackup) {
			t.Fatalf("%s: expected ErrMalformedBackup, got %v", name, err)
		}
	}

	after, _ := f.repo.ListProducts(ctx)
	if len(after) != len(before) {
		t.Fatalf("expected products untouched, got %d vs %d", len(after), len(before))
	}
	if f.svc.OrderView().HeldCount != 1 {
		t.Fatalf("expected held order to survive failed import")
	}
}

func TestBackupRequiresAdmin(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.ExportBackup(cashierCtx()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on export, got %v", err)
	}
	if err := f.svc.ImportBackup(cashierCtx(), []byte(`{}`)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on import, got %v", err)
	}
}
