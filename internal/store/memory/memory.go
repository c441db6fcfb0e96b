package memory

import (
	"cmp"
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/store"
	"rasapos/backend/internal/xid"
)

// collection keeps rows by id and remembers insertion order so listings are stable.
type collection[T any] struct {
	rows  map[string]T
	order []string
}

func newCollection[T any]() *collection[T] {
	return &collection[T]{rows: make(map[string]T)}
}

func (c *collection[T]) put(id string, row T) {
	if _, exists := c.rows[id]; !exists {
		c.order = append(c.order, id)
	}
	c.rows[id] = row
}

func (c *collection[T]) get(id string) (T, bool) {
	row, ok := c.rows[id]
	return row, ok
}

func (c *collection[T]) list() []T {
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.rows[id])
	}
	return out
}

func collectionOf[T any](rows []T, idOf func(T) string) *collection[T] {
	c := newCollection[T]()
	for _, row := range rows {
		c.put(idOf(row), row)
	}
	return c
}

type Store struct {
	mu           sync.RWMutex
	products     *collection[domain.Product]
	categories   *collection[domain.Category]
	recipes      *collection[domain.Recipe]
	rawMaterials *collection[domain.RawMaterial]
	customers    *collection[domain.Customer]
	deliveryReps *collection[domain.DeliveryRep]
	tables       *collection[domain.Table]
	sales        *collection[domain.Sale]
	shifts       *collection[domain.Shift]
	cashDrawer   *collection[domain.CashDrawerEntry]
	expenses     *collection[domain.Expense]
	suppliers    *collection[domain.Supplier]
	purchases    *collection[domain.Purchase]
	roles        *collection[domain.Role]
	users        *collection[domain.User]
	settings     domain.Settings
}

func New() *Store {
	return &Store{
		products:     newCollection[domain.Product](),
		categories:   newCollection[domain.Category](),
		recipes:      newCollection[domain.Recipe](),
		rawMaterials: newCollection[domain.RawMaterial](),
		customers:    newCollection[domain.Customer](),
		deliveryReps: newCollection[domain.DeliveryRep](),
		tables:       newCollection[domain.Table](),
		sales:        newCollection[domain.Sale](),
		shifts:       newCollection[domain.Shift](),
		cashDrawer:   newCollection[domain.CashDrawerEntry](),
		expenses:     newCollection[domain.Expense](),
		suppliers:    newCollection[domain.Supplier](),
		purchases:    newCollection[domain.Purchase](),
		roles:        newCollection[domain.Role](),
		users:        newCollection[domain.User](),
		settings:     domain.Settings{Currency: "IDR"},
	}
}

// seedUsers builds the dev/demo accounts. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD, falling back to dev defaults.
func seedUsers() []domain.User {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Warn().Str("component", "memory-store").Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := make([]domain.User, 0, 2)
	for _, u := range []struct {
		username string
		name     string
		password string
		role     string
	}{
		{"admin", "Pemilik", adminPwd, domain.RoleAdmin},
		{"cashier", "Kasir Depan", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.MinCost)
		if err != nil {
			log.Fatal().Err(err).Str("username", u.username).Msg("failed to hash seed password")
		}
		users = append(users, domain.User{
			Username:  u.username,
			Name:      u.name,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		})
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()

	for _, c := range []domain.Category{
		{ID: "cat-food", Name: "Makanan", NameAlt: "Food"},
		{ID: "cat-drink", Name: "Minuman", NameAlt: "Drinks"},
	} {
		s.categories.put(c.ID, c)
	}

	for _, m := range []domain.RawMaterial{
		{ID: "rm-rice", Name: "Beras", Unit: "kg", Stock: 50, MinStock: 10, CostCents: 14000},
		{ID: "rm-egg", Name: "Telur", Unit: "pcs", Stock: 120, MinStock: 30, CostCents: 2000},
		{ID: "rm-chicken", Name: "Ayam", Unit: "kg", Stock: 20, MinStock: 5, CostCents: 38000},
		{ID: "rm-noodle", Name: "Mie", Unit: "pcs", Stock: 80, MinStock: 20, CostCents: 3000},
		{ID: "rm-tea", Name: "Teh", Unit: "kg", Stock: 2, MinStock: 0.5, CostCents: 90000},
		{ID: "rm-coffee", Name: "Kopi", Unit: "kg", Stock: 3, MinStock: 0.5, CostCents: 150000},
		{ID: "rm-milk", Name: "Susu", Unit: "l", Stock: 12, MinStock: 3, CostCents: 18000},
		{ID: "rm-sugar", Name: "Gula", Unit: "kg", Stock: 10, MinStock: 2, CostCents: 16000},
	} {
		s.rawMaterials.put(m.ID, m)
	}

	for _, r := range []domain.Recipe{
		{ID: "rcp-nasgor", Name: "Nasi Goreng", Ingredients: []domain.RecipeIngredient{
			{RawMaterialID: "rm-rice", Qty: 0.2}, {RawMaterialID: "rm-egg", Qty: 1},
		}},
		{ID: "rcp-mie-ayam", Name: "Mie Ayam", Ingredients: []domain.RecipeIngredient{
			{RawMaterialID: "rm-noodle", Qty: 1}, {RawMaterialID: "rm-chicken", Qty: 0.1},
		}},
		{ID: "rcp-es-teh", Name: "Es Teh", Ingredients: []domain.RecipeIngredient{
			{RawMaterialID: "rm-tea", Qty: 0.01}, {RawMaterialID: "rm-sugar", Qty: 0.02},
		}},
		{ID: "rcp-kopi-susu", Name: "Kopi Susu", Ingredients: []domain.RecipeIngredient{
			{RawMaterialID: "rm-coffee", Qty: 0.018}, {RawMaterialID: "rm-milk", Qty: 0.15},
		}},
	} {
		s.recipes.put(r.ID, r)
	}

	for _, p := range []domain.Product{
		{ID: "prd-nasgor", Name: "Nasi Goreng", NameAlt: "Fried Rice", PriceCents: 25000, Barcode: "8990001", RecipeID: "rcp-nasgor", CategoryID: "cat-food", Active: true},
		{ID: "prd-mie-ayam", Name: "Mie Ayam", NameAlt: "Chicken Noodle", PriceCents: 22000, Barcode: "8990002", RecipeID: "rcp-mie-ayam", CategoryID: "cat-food", Active: true},
		{ID: "prd-kerupuk", Name: "Kerupuk", NameAlt: "Crackers", PriceCents: 3000, Barcode: "8990003", CategoryID: "cat-food", Active: true},
		{ID: "prd-es-teh", Name: "Es Teh Manis", NameAlt: "Iced Sweet Tea", PriceCents: 6000, Barcode: "8990010", RecipeID: "rcp-es-teh", CategoryID: "cat-drink", Active: true},
		{ID: "prd-kopi-susu", Name: "Kopi Susu", NameAlt: "Milk Coffee", PriceCents: 18000, Barcode: "8990011", RecipeID: "rcp-kopi-susu", CategoryID: "cat-drink", Active: true},
		{ID: "prd-air", Name: "Air Mineral", NameAlt: "Mineral Water", PriceCents: 5000, Barcode: "8990012", CategoryID: "cat-drink", Active: true},
	} {
		s.products.put(p.ID, p)
	}

	for i, name := range []string{"Meja 1", "Meja 2", "Meja 3", "Meja 4", "Teras 1", "Teras 2"} {
		id := "tbl-" + strings.ToLower(strings.ReplaceAll(name, " ", "-"))
		s.tables.put(id, domain.Table{ID: id, Name: name, Seats: 4 + (i%2)*2})
	}

	for _, c := range []domain.Customer{
		{ID: "cus-budi", Name: "Budi Santoso", Phone: "081200000001", Address: "Jl. Melati 10"},
		{ID: "cus-sari", Name: "Sari Wulandari", Phone: "081200000002", Address: "Jl. Kenanga 4"},
	} {
		s.customers.put(c.ID, c)
	}
	s.deliveryReps.put("rep-andi", domain.DeliveryRep{ID: "rep-andi", Name: "Andi", Phone: "081300000001"})
	s.suppliers.put("sup-pasar", domain.Supplier{ID: "sup-pasar", Name: "Pasar Induk", CreatedAt: time.Now().UTC()})

	for _, r := range []domain.Role{
		{ID: domain.RoleAdmin, Name: "Administrator", Permissions: []string{"*"}},
		{ID: domain.RoleCashier, Name: "Kasir", Permissions: []string{"orders", "shifts", "cash_drawer"}},
	} {
		s.roles.put(r.ID, r)
	}
	for _, u := range seedUsers() {
		s.users.put(u.Username, u)
	}

	s.settings = domain.Settings{StoreName: "Rasa Nusantara", Currency: "IDR", DeliveryFeeCents: 8000, LowStockThreshold: 5}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products.rows))
	for _, p := range s.products.list() {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.CategoryID == b.CategoryID {
			return cmp.Compare(a.Name, b.Name)
		}
		return cmp.Compare(a.CategoryID, b.CategoryID)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products.get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products.list() {
		if p.Barcode != "" && p.Barcode == barcode {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) SaveProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	s.products.put(product.ID, product)
	return &product, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categories.list(), nil
}

func (s *Store) SaveCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	if category.Name == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	s.categories.put(category.ID, category)
	return &category, nil
}

func (s *Store) ListRecipes(_ context.Context) ([]domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recipes := s.recipes.list()
	for i := range recipes {
		recipes[i] = cloneRecipe(recipes[i])
	}
	return recipes, nil
}

func (s *Store) GetRecipe(_ context.Context, id string) (*domain.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recipe, ok := s.recipes.get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cloneRecipe(recipe)
	return &copied, nil
}

func (s *Store) SaveRecipe(_ context.Context, recipe domain.Recipe) (*domain.Recipe, error) {
	if recipe.Name == "" {
		return nil, store.ErrInvalidInput
	}
	for _, ing := range recipe.Ingredients {
		if ing.RawMaterialID == "" || ing.Qty <= 0 {
			return nil, store.ErrInvalidInput
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if recipe.ID == "" {
		recipe.ID = xid.New("rcp")
	}
	recipe = cloneRecipe(recipe)
	s.recipes.put(recipe.ID, recipe)
	saved := cloneRecipe(recipe)
	return &saved, nil
}

func (s *Store) ListRawMaterials(_ context.Context) ([]domain.RawMaterial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawMaterials.list(), nil
}

func (s *Store) GetRawMaterial(_ context.Context, id string) (*domain.RawMaterial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	material, ok := s.rawMaterials.get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &material, nil
}

func (s *Store) SaveRawMaterial(_ context.Context, material domain.RawMaterial) (*domain.RawMaterial, error) {
	if material.Name == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if material.ID == "" {
		material.ID = xid.New("rm")
	}
	s.rawMaterials.put(material.ID, material)
	return &material, nil
}

func (s *Store) AdjustRawMaterialStock(_ context.Context, id string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	material, ok := s.rawMaterials.get(id)
	if !ok {
		return store.ErrNotFound
	}
	material.Stock += delta
	s.rawMaterials.put(id, material)
	return nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.customers.list(), nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers.get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) SaveCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	s.customers.put(customer.ID, customer)
	return &customer, nil
}

func (s *Store) ListDeliveryReps(_ context.Context) ([]domain.DeliveryRep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deliveryReps.list(), nil
}

func (s *Store) SaveDeliveryRep(_ context.Context, rep domain.DeliveryRep) (*domain.DeliveryRep, error) {
	if rep.Name == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rep.ID == "" {
		rep.ID = xid.New("rep")
	}
	s.deliveryReps.put(rep.ID, rep)
	return &rep, nil
}

func (s *Store) ListTables(_ context.Context) ([]domain.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables.list(), nil
}

func (s *Store) SaveTable(_ context.Context, table domain.Table) (*domain.Table, error) {
	if table.Name == "" || table.Seats < 0 {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if table.ID == "" {
		table.ID = xid.New("tbl")
	}
	s.tables.put(table.ID, table)
	return &table, nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sales.get(sale.ID); exists {
		return nil, store.ErrConflict
	}
	s.sales.put(sale.ID, cloneSale(sale))
	saved := cloneSale(sale)
	return &saved, nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales.get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := cloneSale(sale)
	return &copied, nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.sales.rows))
	for _, sale := range s.sales.list() {
		if !inRange(sale.CreatedAt, from, to) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	return sales, nil
}

func (s *Store) CreateShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shifts.list() {
		if existing.Status == domain.ShiftStatusOpen {
			return nil, store.ErrConflict
		}
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	shift.Status = domain.ShiftStatusOpen
	s.shifts.put(shift.ID, shift)
	return &shift, nil
}

func (s *Store) GetActiveShift(_ context.Context) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, shift := range s.shifts.list() {
		if shift.Status == domain.ShiftStatusOpen {
			return &shift, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CloseShift(_ context.Context, id string, closingCashCents int64, expectedCashCents int64, closedAt time.Time) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, ok := s.shifts.get(id)
	if !ok || shift.Status != domain.ShiftStatusOpen {
		return nil, store.ErrNotFound
	}
	closed := closedAt.UTC()
	shift.Status = domain.ShiftStatusClosed
	shift.ClosingCashCents = closingCashCents
	shift.ExpectedCashCents = expectedCashCents
	shift.ClosedAt = &closed
	s.shifts.put(id, shift)
	return &shift, nil
}

func (s *Store) CreateCashDrawerEntry(_ context.Context, entry domain.CashDrawerEntry) (*domain.CashDrawerEntry, error) {
	if entry.ShiftID == "" || entry.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("cd")
	}
	s.cashDrawer.put(entry.ID, entry)
	return &entry, nil
}

func (s *Store) ListCashDrawerEntries(_ context.Context, shiftID string) ([]domain.CashDrawerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.CashDrawerEntry, 0)
	for _, entry := range s.cashDrawer.list() {
		if shiftID != "" && entry.ShiftID != shiftID {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.Description == "" || expense.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	s.expenses.put(expense.ID, expense)
	return &expense, nil
}

func (s *Store) ListExpenses(_ context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0)
	for _, expense := range s.expenses.list() {
		if inRange(expense.CreatedAt, from, to) {
			expenses = append(expenses, expense)
		}
	}
	return expenses, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.suppliers.list(), nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, ok := s.suppliers.get(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &supplier, nil
}

func (s *Store) SaveSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.Name == "" {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliers.put(supplier.ID, supplier)
	return &supplier, nil
}

func (s *Store) CreatePurchase(_ context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.SupplierID == "" || len(purchase.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if purchase.ID == "" {
		purchase.ID = xid.New("po")
	}
	purchase = clonePurchase(purchase)
	s.purchases.put(purchase.ID, purchase)
	saved := clonePurchase(purchase)
	return &saved, nil
}

func (s *Store) ListPurchases(_ context.Context, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.purchases.list()
	slices.Reverse(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	for i := range all {
		all[i] = clonePurchase(all[i])
	}
	return all, nil
}

func (s *Store) ListRoles(_ context.Context) ([]domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roles.list(), nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.list(), nil
}

func (s *Store) SaveUser(_ context.Context, user domain.User) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users.put(username, user)
	return nil
}

func (s *Store) GetSettings(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *Store) SaveSettings(_ context.Context, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

func (s *Store) Snapshot(_ context.Context) (domain.Backup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := s.sales.list()
	for i := range sales {
		sales[i] = cloneSale(sales[i])
	}
	recipes := s.recipes.list()
	for i := range recipes {
		recipes[i] = cloneRecipe(recipes[i])
	}
	purchases := s.purchases.list()
	for i := range purchases {
		purchases[i] = clonePurchase(purchases[i])
	}

	return domain.Backup{
		Products:          s.products.list(),
		Categories:        s.categories.list(),
		Customers:         s.customers.list(),
		DeliveryReps:      s.deliveryReps.list(),
		Expenses:          s.expenses.list(),
		CashDrawerEntries: s.cashDrawer.list(),
		Purchases:         purchases,
		RawMaterials:      s.rawMaterials.list(),
		Recipes:           recipes,
		Roles:             s.roles.list(),
		Sales:             sales,
		Settings:          s.settings,
		Shifts:            s.shifts.list(),
		Suppliers:         s.suppliers.list(),
		Tables:            s.tables.list(),
		Users:             s.users.list(),
	}, nil
}

func (s *Store) ReplaceAll(_ context.Context, backup domain.Backup) error {
	if err := store.ValidateBackupIDs(backup); err != nil {
		return err
	}

	products := collectionOf(backup.Products, func(p domain.Product) string { return p.ID })
	categories := collectionOf(backup.Categories, func(c domain.Category) string { return c.ID })
	recipes := newCollection[domain.Recipe]()
	for _, r := range backup.Recipes {
		recipes.put(r.ID, cloneRecipe(r))
	}
	rawMaterials := collectionOf(backup.RawMaterials, func(m domain.RawMaterial) string { return m.ID })
	customers := collectionOf(backup.Customers, func(c domain.Customer) string { return c.ID })
	deliveryReps := collectionOf(backup.DeliveryReps, func(r domain.DeliveryRep) string { return r.ID })
	tables := collectionOf(backup.Tables, func(t domain.Table) string { return t.ID })
	sales := newCollection[domain.Sale]()
	for _, sale := range backup.Sales {
		sales.put(sale.ID, cloneSale(sale))
	}
	shifts := collectionOf(backup.Shifts, func(sh domain.Shift) string { return sh.ID })
	cashDrawer := collectionOf(backup.CashDrawerEntries, func(e domain.CashDrawerEntry) string { return e.ID })
	expenses := collectionOf(backup.Expenses, func(e domain.Expense) string { return e.ID })
	suppliers := collectionOf(backup.Suppliers, func(sp domain.Supplier) string { return sp.ID })
	purchases := newCollection[domain.Purchase]()
	for _, p := range backup.Purchases {
		purchases.put(p.ID, clonePurchase(p))
	}
	roles := collectionOf(backup.Roles, func(r domain.Role) string { return r.ID })
	users := newCollection[domain.User]()
	for _, u := range backup.Users {
		u.Username = strings.ToLower(strings.TrimSpace(u.Username))
		users.put(u.Username, u)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = products
	s.categories = categories
	s.recipes = recipes
	s.rawMaterials = rawMaterials
	s.customers = customers
	s.deliveryReps = deliveryReps
	s.tables = tables
	s.sales = sales
	s.shifts = shifts
	s.cashDrawer = cashDrawer
	s.expenses = expenses
	s.suppliers = suppliers
	s.purchases = purchases
	s.roles = roles
	s.users = users
	s.settings = backup.Settings
	return nil
}

func inRange(at time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}

func cloneSale(src domain.Sale) domain.Sale {
	dst := src
	dst.Items = append([]domain.CartItem(nil), src.Items...)
	if src.Customer != nil {
		customer := *src.Customer
		dst.Customer = &customer
	}
	return dst
}

func cloneRecipe(src domain.Recipe) domain.Recipe {
	dst := src
	dst.Ingredients = append([]domain.RecipeIngredient(nil), src.Ingredients...)
	return dst
}

func clonePurchase(src domain.Purchase) domain.Purchase {
	dst := src
	dst.Items = append([]domain.PurchaseItem(nil), src.Items...)
	return dst
}
