package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rasapos/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	SaveProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	SaveCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	ListRecipes(ctx context.Context) ([]domain.Recipe, error)
	GetRecipe(ctx context.Context, id string) (*domain.Recipe, error)
	SaveRecipe(ctx context.Context, recipe domain.Recipe) (*domain.Recipe, error)
	ListRawMaterials(ctx context.Context) ([]domain.RawMaterial, error)
	GetRawMaterial(ctx context.Context, id string) (*domain.RawMaterial, error)
	SaveRawMaterial(ctx context.Context, material domain.RawMaterial) (*domain.RawMaterial, error)
	// AdjustRawMaterialStock adds delta to the stock. The result may go negative.
	AdjustRawMaterialStock(ctx context.Context, id string, delta float64) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	SaveCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	ListDeliveryReps(ctx context.Context) ([]domain.DeliveryRep, error)
	SaveDeliveryRep(ctx context.Context, rep domain.DeliveryRep) (*domain.DeliveryRep, error)
	ListTables(ctx context.Context) ([]domain.Table, error)
	SaveTable(ctx context.Context, table domain.Table) (*domain.Table, error)

	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)

	CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	GetActiveShift(ctx context.Context) (*domain.Shift, error)
	CloseShift(ctx context.Context, id string, closingCashCents int64, expectedCashCents int64, closedAt time.Time) (*domain.Shift, error)
	CreateCashDrawerEntry(ctx context.Context, entry domain.CashDrawerEntry) (*domain.CashDrawerEntry, error)
	ListCashDrawerEntries(ctx context.Context, shiftID string) ([]domain.CashDrawerEntry, error)
	CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error)

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	SaveSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error)
	ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error)

	ListRoles(ctx context.Context) ([]domain.Role, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	SaveUser(ctx context.Context, user domain.User) error

	GetSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) error

	// Snapshot exports every collection. ReplaceAll swaps every collection in
	// one step; on error no collection is modified.
	Snapshot(ctx context.Context) (domain.Backup, error)
	ReplaceAll(ctx context.Context, backup domain.Backup) error
}

// ValidateBackupIDs rejects a backup holding a row without an id, or two rows
// of one collection sharing an id. Usernames compare case-insensitively, the
// way both stores key them.
func ValidateBackupIDs(b domain.Backup) error {
	collections := []struct {
		name string
		ids  []string
	}{
		{"products", idsOf(b.Products, func(v domain.Product) string { return v.ID })},
		{"categories", idsOf(b.Categories, func(v domain.Category) string { return v.ID })},
		{"recipes", idsOf(b.Recipes, func(v domain.Recipe) string { return v.ID })},
		{"rawMaterials", idsOf(b.RawMaterials, func(v domain.RawMaterial) string { return v.ID })},
		{"customers", idsOf(b.Customers, func(v domain.Customer) string { return v.ID })},
		{"deliveryReps", idsOf(b.DeliveryReps, func(v domain.DeliveryRep) string { return v.ID })},
		{"tables", idsOf(b.Tables, func(v domain.Table) string { return v.ID })},
		{"sales", idsOf(b.Sales, func(v domain.Sale) string { return v.ID })},
		{"shifts", idsOf(b.Shifts, func(v domain.Shift) string { return v.ID })},
		{"cashDrawerEntries", idsOf(b.CashDrawerEntries, func(v domain.CashDrawerEntry) string { return v.ID })},
		{"expenses", idsOf(b.Expenses, func(v domain.Expense) string { return v.ID })},
		{"suppliers", idsOf(b.Suppliers, func(v domain.Supplier) string { return v.ID })},
		{"purchases", idsOf(b.Purchases, func(v domain.Purchase) string { return v.ID })},
		{"roles", idsOf(b.Roles, func(v domain.Role) string { return v.ID })},
		{"users", idsOf(b.Users, func(v domain.User) string { return strings.ToLower(strings.TrimSpace(v.Username)) })},
	}

	for _, c := range collections {
		seen := make(map[string]struct{}, len(c.ids))
		for _, id := range c.ids {
			if strings.TrimSpace(id) == "" {
				return fmt.Errorf("%w: %s has a row without an id", ErrInvalidInput, c.name)
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: %s has duplicate id %q", ErrInvalidInput, c.name, id)
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}

func idsOf[T any](rows []T, id func(T) string) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = id(row)
	}
	return out
}
