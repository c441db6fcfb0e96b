package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/store"
	"rasapos/backend/internal/store/memory"
)

// The test replaces every document, so point it at a throwaway database.
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("RASAPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set RASAPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM documents`)
		_ = s.Close()
	})

	seed, err := memory.NewSeeded().Snapshot(ctx)
	if err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}
	if err := s.ReplaceAll(ctx, seed); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	return s
}

func TestSeededCatalogRoundTrips(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	products, err := s.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) == 0 {
		t.Fatalf("expected seeded products")
	}
	product, err := s.GetProductByBarcode(ctx, "8990001")
	if err != nil {
		t.Fatalf("barcode lookup: %v", err)
	}
	if product.ID != "prd-nasgor" {
		t.Fatalf("expected prd-nasgor, got %s", product.ID)
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.Currency != "IDR" {
		t.Fatalf("expected IDR settings, got %+v", settings)
	}

	empty, err := s.Empty(ctx)
	if err != nil || empty {
		t.Fatalf("expected seeded users, empty=%v err=%v", empty, err)
	}
}

func TestAdjustRawMaterialStockInPlace(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	if err := s.AdjustRawMaterialStock(ctx, "rm-egg", -2); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	egg, err := s.GetRawMaterial(ctx, "rm-egg")
	if err != nil {
		t.Fatalf("get egg: %v", err)
	}
	if egg.Stock != 118 {
		t.Fatalf("expected 118 eggs, got %v", egg.Stock)
	}
	if err := s.AdjustRawMaterialStock(ctx, "rm-missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOnlyOneOpenShift(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	first, err := s.CreateShift(ctx, domain.Shift{CashierID: "cashier", OpeningFloatCents: 50000})
	if err != nil {
		t.Fatalf("create shift: %v", err)
	}
	if _, err := s.CreateShift(ctx, domain.Shift{CashierID: "admin"}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	closed, err := s.CloseShift(ctx, first.ID, 51000, 50000, time.Now())
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if closed.Status != domain.ShiftStatusClosed || closed.ClosedAt == nil {
		t.Fatalf("unexpected closed shift %+v", closed)
	}
	if _, err := s.CreateShift(ctx, domain.Shift{CashierID: "admin"}); err != nil {
		t.Fatalf("expected new shift after close: %v", err)
	}
}

func TestListSalesHalfOpenRange(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	day := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	for i, at := range []time.Time{day.Add(-time.Minute), day, day.Add(23 * time.Hour), day.Add(24 * time.Hour)} {
		sale := domain.Sale{
			ID:         "sale-it-" + string(rune('a'+i)),
			Items:      []domain.CartItem{{Product: domain.Product{ID: "prd-air", PriceCents: 5000}, Quantity: 1}},
			TotalCents: 5000,
			CreatedAt:  at,
		}
		if _, err := s.CreateSale(ctx, sale); err != nil {
			t.Fatalf("create sale %d: %v", i, err)
		}
	}
	if _, err := s.CreateSale(ctx, domain.Sale{ID: "sale-it-a", Items: []domain.CartItem{{Quantity: 1}}}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected duplicate sale conflict, got %v", err)
	}

	sales, err := s.ListSales(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 2 || sales[0].ID != "sale-it-b" || sales[1].ID != "sale-it-c" {
		t.Fatalf("unexpected sales in range: %+v", sales)
	}
}

func TestSnapshotMatchesReplaceAll(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	before, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := s.ReplaceAll(ctx, domain.Backup{Products: []domain.Product{{Name: "no id"}}}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	after, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(after.Products) != len(before.Products) || len(after.Tables) != len(before.Tables) {
		t.Fatalf("rejected backup changed the data")
	}
	if len(after.Users) == 0 || after.Users[0].Password == "" {
		t.Fatalf("expected users with password hashes in the snapshot")
	}
}
