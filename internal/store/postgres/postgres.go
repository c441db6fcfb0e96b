package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/store"
	"rasapos/backend/internal/xid"
)

const (
	colProducts     = "products"
	colCategories   = "categories"
	colRecipes      = "recipes"
	colRawMaterials = "raw_materials"
	colCustomers    = "customers"
	colDeliveryReps = "delivery_reps"
	colTables       = "tables"
	colSales        = "sales"
	colShifts       = "shifts"
	colCashDrawer   = "cash_drawer"
	colExpenses     = "expenses"
	colSuppliers    = "suppliers"
	colPurchases    = "purchases"
	colRoles        = "roles"
	colUsers        = "users"
	colSettings     = "settings"

	settingsID = "store"
)

// Every entity is one JSONB document keyed by (collection, id). created_at
// carries the business timestamp used for range queries and ordering.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection text        NOT NULL,
	id         text        NOT NULL,
	body       jsonb       NOT NULL,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_created_at_idx ON documents (collection, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS documents_one_open_shift
	ON documents (collection)
	WHERE collection = 'shifts' AND body->>'status' = 'open';
`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Empty reports whether no user has been stored yet.
func (s *Store) Empty(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1)
	`, colUsers).Scan(&exists)
	return !exists, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return listDocs[domain.Product](ctx, s.db, `
		SELECT body FROM documents
		WHERE collection = $1 AND COALESCE((body->>'active')::boolean, false)
		ORDER BY COALESCE(body->>'category_id', ''), body->>'name'
	`, colProducts)
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return getDoc[domain.Product](ctx, s.db, colProducts, id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	if barcode == "" {
		return nil, store.ErrNotFound
	}
	products, err := listDocs[domain.Product](ctx, s.db, `
		SELECT body FROM documents
		WHERE collection = $1 AND body->>'barcode' = $2
		ORDER BY created_at
		LIMIT 1
	`, colProducts, barcode)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, store.ErrNotFound
	}
	return &products[0], nil
}

func (s *Store) SaveProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if err := putDoc(ctx, s.db, colProducts, product.ID, product, time.Time{}); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return listCollection[domain.Category](ctx, s.db, colCategories)
}

func (s *Store) SaveCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if err := putDoc(ctx, s.db, colCategories, category.ID, category, time.Time{}); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *Store) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	return listCollection[domain.Recipe](ctx, s.db, colRecipes)
}

func (s *Store) GetRecipe(ctx context.Context, id string) (*domain.Recipe, error) {
	return getDoc[domain.Recipe](ctx, s.db, colRecipes, id)
}

func (s *Store) SaveRecipe(ctx context.Context, recipe domain.Recipe) (*domain.Recipe, error) {
	if recipe.Name == "" {
		return nil, store.ErrInvalidInput
	}
	for _, ing := range recipe.Ingredients {
		if ing.RawMaterialID == "" || ing.Qty <= 0 {
			return nil, store.ErrInvalidInput
		}
	}
	if recipe.ID == "" {
		recipe.ID = xid.New("rcp")
	}
	if recipe.Ingredients == nil {
		recipe.Ingredients = []domain.RecipeIngredient{}
	}
	if err := putDoc(ctx, s.db, colRecipes, recipe.ID, recipe, time.Time{}); err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (s *Store) ListRawMaterials(ctx context.Context) ([]domain.RawMaterial, error) {
	return listCollection[domain.RawMaterial](ctx, s.db, colRawMaterials)
}

func (s *Store) GetRawMaterial(ctx context.Context, id string) (*domain.RawMaterial, error) {
	return getDoc[domain.RawMaterial](ctx, s.db, colRawMaterials, id)
}

func (s *Store) SaveRawMaterial(ctx context.Context, material domain.RawMaterial) (*domain.RawMaterial, error) {
	if material.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if material.ID == "" {
		material.ID = xid.New("rm")
	}
	if err := putDoc(ctx, s.db, colRawMaterials, material.ID, material, time.Time{}); err != nil {
		return nil, err
	}
	return &material, nil
}

// AdjustRawMaterialStock applies delta inside the database so concurrent
// sales never lose an update.
func (s *Store) AdjustRawMaterialStock(ctx context.Context, id string, delta float64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET body = jsonb_set(body, '{stock}', to_jsonb(COALESCE((body->>'stock')::float8, 0) + $3::float8)),
			updated_at = now()
		WHERE collection = $1 AND id = $2
	`, colRawMaterials, id, delta)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return listCollection[domain.Customer](ctx, s.db, colCustomers)
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getDoc[domain.Customer](ctx, s.db, colCustomers, id)
}

func (s *Store) SaveCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New("cus")
	}
	if err := putDoc(ctx, s.db, colCustomers, customer.ID, customer, time.Time{}); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) ListDeliveryReps(ctx context.Context) ([]domain.DeliveryRep, error) {
	return listCollection[domain.DeliveryRep](ctx, s.db, colDeliveryReps)
}

func (s *Store) SaveDeliveryRep(ctx context.Context, rep domain.DeliveryRep) (*domain.DeliveryRep, error) {
	if rep.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if rep.ID == "" {
		rep.ID = xid.New("rep")
	}
	if err := putDoc(ctx, s.db, colDeliveryReps, rep.ID, rep, time.Time{}); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (s *Store) ListTables(ctx context.Context) ([]domain.Table, error) {
	return listCollection[domain.Table](ctx, s.db, colTables)
}

func (s *Store) SaveTable(ctx context.Context, table domain.Table) (*domain.Table, error) {
	if table.Name == "" || table.Seats < 0 {
		return nil, store.ErrInvalidInput
	}
	if table.ID == "" {
		table.ID = xid.New("tbl")
	}
	if err := putDoc(ctx, s.db, colTables, table.ID, table, time.Time{}); err != nil {
		return nil, err
	}
	return &table, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if err := insertDoc(ctx, s.db, colSales, sale.ID, sale, sale.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := sale
	return &saved, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return getDoc[domain.Sale](ctx, s.db, colSales, id)
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	return listDocs[domain.Sale](ctx, s.db, rangeQuery, colSales, nullTime(from), nullTime(to))
}

// rangeQuery selects a half-open [from, to) window. A NULL bound is open.
const rangeQuery = `
	SELECT body FROM documents
	WHERE collection = $1
		AND ($2::timestamptz IS NULL OR created_at >= $2)
		AND ($3::timestamptz IS NULL OR created_at < $3)
	ORDER BY created_at, id
`

func (s *Store) CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.OpenedAt.IsZero() {
		shift.OpenedAt = time.Now().UTC()
	}
	shift.Status = domain.ShiftStatusOpen
	shift.ClosedAt = nil

	if err := insertDoc(ctx, s.db, colShifts, shift.ID, shift, shift.OpenedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := shift
	return &saved, nil
}

func (s *Store) GetActiveShift(ctx context.Context) (*domain.Shift, error) {
	shifts, err := listDocs[domain.Shift](ctx, s.db, `
		SELECT body FROM documents
		WHERE collection = $1 AND body->>'status' = $2
		LIMIT 1
	`, colShifts, domain.ShiftStatusOpen)
	if err != nil {
		return nil, err
	}
	if len(shifts) == 0 {
		return nil, store.ErrNotFound
	}
	return &shifts[0], nil
}

func (s *Store) CloseShift(ctx context.Context, id string, closingCashCents int64, expectedCashCents int64, closedAt time.Time) (*domain.Shift, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	err = tx.QueryRowContext(ctx, `
		SELECT body FROM documents
		WHERE collection = $1 AND id = $2
		FOR UPDATE
	`, colShifts, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var shift domain.Shift
	if err := json.Unmarshal(raw, &shift); err != nil {
		return nil, err
	}
	if shift.Status != domain.ShiftStatusOpen {
		return nil, store.ErrNotFound
	}

	closed := closedAt.UTC()
	shift.Status = domain.ShiftStatusClosed
	shift.ClosingCashCents = closingCashCents
	shift.ExpectedCashCents = expectedCashCents
	shift.ClosedAt = &closed
	if err := putDoc(ctx, tx, colShifts, shift.ID, shift, shift.OpenedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &shift, nil
}

func (s *Store) CreateCashDrawerEntry(ctx context.Context, entry domain.CashDrawerEntry) (*domain.CashDrawerEntry, error) {
	if entry.ShiftID == "" || entry.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = xid.New("cd")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := insertDoc(ctx, s.db, colCashDrawer, entry.ID, entry, entry.CreatedAt); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) ListCashDrawerEntries(ctx context.Context, shiftID string) ([]domain.CashDrawerEntry, error) {
	return listDocs[domain.CashDrawerEntry](ctx, s.db, `
		SELECT body FROM documents
		WHERE collection = $1 AND ($2 = '' OR body->>'shift_id' = $2)
		ORDER BY created_at, id
	`, colCashDrawer, shiftID)
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) (*domain.Expense, error) {
	if expense.Description == "" || expense.AmountCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	if err := insertDoc(ctx, s.db, colExpenses, expense.ID, expense, expense.CreatedAt); err != nil {
		return nil, err
	}
	return &expense, nil
}

func (s *Store) ListExpenses(ctx context.Context, from time.Time, to time.Time) ([]domain.Expense, error) {
	return listDocs[domain.Expense](ctx, s.db, rangeQuery, colExpenses, nullTime(from), nullTime(to))
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return listCollection[domain.Supplier](ctx, s.db, colSuppliers)
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	return getDoc[domain.Supplier](ctx, s.db, colSuppliers, id)
}

func (s *Store) SaveSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	if err := putDoc(ctx, s.db, colSuppliers, supplier.ID, supplier, supplier.CreatedAt); err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.SupplierID == "" || len(purchase.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("po")
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now().UTC()
	}
	if err := insertDoc(ctx, s.db, colPurchases, purchase.ID, purchase, purchase.CreatedAt); err != nil {
		return nil, err
	}
	saved := purchase
	return &saved, nil
}

func (s *Store) ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	return listDocs[domain.Purchase](ctx, s.db, `
		SELECT body FROM documents
		WHERE collection = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, colPurchases, lim)
}

func (s *Store) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return listCollection[domain.Role](ctx, s.db, colRoles)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	return listCollection[domain.User](ctx, s.db, colUsers)
}

func (s *Store) SaveUser(ctx context.Context, user domain.User) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	return putDoc(ctx, s.db, colUsers, user.Username, user, user.CreatedAt)
}

// GetSettings returns zero settings until the first save.
func (s *Store) GetSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := getDoc[domain.Settings](ctx, s.db, colSettings, settingsID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Settings{}, nil
		}
		return domain.Settings{}, err
	}
	return *settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.Settings) error {
	return putDoc(ctx, s.db, colSettings, settingsID, settings, time.Time{})
}

// Snapshot reads every collection inside one repeatable-read transaction so
// the export is consistent.
func (s *Store) Snapshot(ctx context.Context) (domain.Backup, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return domain.Backup{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var b domain.Backup
	if b.Products, err = listCollection[domain.Product](ctx, tx, colProducts); err != nil {
		return domain.Backup{}, err
	}
	if b.Categories, err = listCollection[domain.Category](ctx, tx, colCategories); err != nil {
		return domain.Backup{}, err
	}
	if b.Customers, err = listCollection[domain.Customer](ctx, tx, colCustomers); err != nil {
		return domain.Backup{}, err
	}
	if b.DeliveryReps, err = listCollection[domain.DeliveryRep](ctx, tx, colDeliveryReps); err != nil {
		return domain.Backup{}, err
	}
	if b.Expenses, err = listCollection[domain.Expense](ctx, tx, colExpenses); err != nil {
		return domain.Backup{}, err
	}
	if b.CashDrawerEntries, err = listCollection[domain.CashDrawerEntry](ctx, tx, colCashDrawer); err != nil {
		return domain.Backup{}, err
	}
	if b.Purchases, err = listCollection[domain.Purchase](ctx, tx, colPurchases); err != nil {
		return domain.Backup{}, err
	}
	if b.RawMaterials, err = listCollection[domain.RawMaterial](ctx, tx, colRawMaterials); err != nil {
		return domain.Backup{}, err
	}
	if b.Recipes, err = listCollection[domain.Recipe](ctx, tx, colRecipes); err != nil {
		return domain.Backup{}, err
	}
	if b.Roles, err = listCollection[domain.Role](ctx, tx, colRoles); err != nil {
		return domain.Backup{}, err
	}
	if b.Sales, err = listCollection[domain.Sale](ctx, tx, colSales); err != nil {
		return domain.Backup{}, err
	}
	if b.Shifts, err = listCollection[domain.Shift](ctx, tx, colShifts); err != nil {
		return domain.Backup{}, err
	}
	if b.Suppliers, err = listCollection[domain.Supplier](ctx, tx, colSuppliers); err != nil {
		return domain.Backup{}, err
	}
	if b.Tables, err = listCollection[domain.Table](ctx, tx, colTables); err != nil {
		return domain.Backup{}, err
	}
	if b.Users, err = listCollection[domain.User](ctx, tx, colUsers); err != nil {
		return domain.Backup{}, err
	}
	settings, err := getDoc[domain.Settings](ctx, tx, colSettings, settingsID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Backup{}, err
	}
	if settings != nil {
		b.Settings = *settings
	}
	return b, nil
}

// ReplaceAll deletes every document and writes the backup in one serializable
// transaction.
func (s *Store) ReplaceAll(ctx context.Context, backup domain.Backup) error {
	if err := store.ValidateBackupIDs(backup); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return err
	}

	base := time.Now().UTC()
	w := writer{ctx: ctx, tx: tx, base: base}
	for i, v := range backup.Products {
		w.put(colProducts, v.ID, v, w.seq(i))
	}
	for i, v := range backup.Categories {
		w.put(colCategories, v.ID, v, w.seq(i))
	}
	for i, v := range backup.Recipes {
		w.put(colRecipes, v.ID, v, w.seq(i))
	}
	for i, v := range backup.RawMaterials {
		w.put(colRawMaterials, v.ID, v, w.seq(i))
	}
	for i, v := range backup.Customers {
		w.put(colCustomers, v.ID, v, w.seq(i))
	}
	for i, v := range backup.DeliveryReps {
		w.put(colDeliveryReps, v.ID, v, w.seq(i))
	}
	for i, v := range backup.Tables {
		w.put(colTables, v.ID, v, w.seq(i))
	}
	for i, v := range backup.Roles {
		w.put(colRoles, v.ID, v, w.seq(i))
	}
	for _, v := range backup.Sales {
		w.put(colSales, v.ID, v, v.CreatedAt)
	}
	for _, v := range backup.Shifts {
		w.put(colShifts, v.ID, v, v.OpenedAt)
	}
	for _, v := range backup.CashDrawerEntries {
		w.put(colCashDrawer, v.ID, v, v.CreatedAt)
	}
	for _, v := range backup.Expenses {
		w.put(colExpenses, v.ID, v, v.CreatedAt)
	}
	for _, v := range backup.Suppliers {
		w.put(colSuppliers, v.ID, v, v.CreatedAt)
	}
	for _, v := range backup.Purchases {
		w.put(colPurchases, v.ID, v, v.CreatedAt)
	}
	for _, v := range backup.Users {
		v.Username = strings.ToLower(strings.TrimSpace(v.Username))
		w.put(colUsers, v.Username, v, v.CreatedAt)
	}
	w.put(colSettings, settingsID, backup.Settings, base)
	if w.err != nil {
		if isUniqueViolation(w.err) {
			return fmt.Errorf("%w: %v", store.ErrInvalidInput, w.err)
		}
		return w.err
	}

	return tx.Commit()
}

// writer stops at the first failed insert.
type writer struct {
	ctx  context.Context
	tx   *sql.Tx
	base time.Time
	err  error
}

// seq spreads untimed rows a microsecond apart to keep their order.
func (w *writer) seq(i int) time.Time {
	return w.base.Add(time.Duration(i) * time.Microsecond)
}

func (w *writer) put(collection string, id string, body any, at time.Time) {
	if w.err != nil {
		return
	}
	w.err = insertDoc(w.ctx, w.tx, collection, id, body, at)
}

func putDoc(ctx context.Context, q querier, collection string, id string, body any, createdAt time.Time) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, created_at, updated_at)
		VALUES ($1,$2,$3::jsonb,$4,now())
		ON CONFLICT (collection, id)
		DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`, collection, id, string(raw), createdAt)
	return err
}

func insertDoc(ctx context.Context, q querier, collection string, id string, body any, createdAt time.Time) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, created_at, updated_at)
		VALUES ($1,$2,$3::jsonb,$4,now())
	`, collection, id, string(raw), createdAt)
	return err
}

func getDoc[T any](ctx context.Context, q querier, collection string, id string) (*T, error) {
	var raw []byte
	err := q.QueryRowContext(ctx, `
		SELECT body FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return &v, nil
}

func listCollection[T any](ctx context.Context, q querier, collection string) ([]T, error) {
	return listDocs[T](ctx, q, `
		SELECT body FROM documents
		WHERE collection = $1
		ORDER BY created_at, id
	`, collection)
}

func listDocs[T any](ctx context.Context, q querier, query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0, 32)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullTime(val time.Time) any {
	if val.IsZero() {
		return nil
	}
	return val.UTC()
}
