package domain

import "time"

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine-in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return true
	default:
		return false
	}
}

type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	NameAlt    string `json:"name_alt,omitempty"`
	PriceCents int64  `json:"price_cents"`
	Barcode    string `json:"barcode,omitempty"`
	RecipeID   string `json:"recipe_id,omitempty"`
	CategoryID string `json:"category_id,omitempty"`
	Active     bool   `json:"active"`
}

type Category struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	NameAlt string `json:"name_alt,omitempty"`
}

type RecipeIngredient struct {
	RawMaterialID string  `json:"raw_material_id"`
	Qty           float64 `json:"qty"`
}

type Recipe struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Ingredients []RecipeIngredient `json:"ingredients"`
}

type RawMaterial struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Stock     float64 `json:"stock"`
	MinStock  float64 `json:"min_stock"`
	CostCents int64   `json:"cost_cents"`
}

type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type DeliveryRep struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type Table struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Seats int    `json:"seats"`
}

// CartItem is a product snapshot taken when the line was added.
type CartItem struct {
	Product
	Quantity int     `json:"quantity"`
	Discount float64 `json:"discount"`
}

type OrderKey struct {
	Type OrderType `json:"order_type"`
	ID   string    `json:"order_id"`
}

type Order struct {
	Type               OrderType  `json:"order_type"`
	ID                 string     `json:"order_id"`
	Name               string     `json:"name"`
	Cart               []CartItem `json:"cart"`
	SelectedCustomerID string     `json:"selected_customer_id,omitempty"`
	OverallDiscount    float64    `json:"overall_discount"`
	ServiceChargeCents int64      `json:"service_charge_cents"`
	CreatedAt          time.Time  `json:"created_at"`
}

func (o Order) Key() OrderKey {
	return OrderKey{Type: o.Type, ID: o.ID}
}

type HeldOrder struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	OrderType          OrderType  `json:"order_type"`
	OrderID            string     `json:"order_id"`
	Cart               []CartItem `json:"cart"`
	SelectedCustomerID string     `json:"selected_customer_id,omitempty"`
	OverallDiscount    float64    `json:"overall_discount"`
	ServiceChargeCents int64      `json:"service_charge_cents"`
	HeldAt             time.Time  `json:"held_at"`
}

func (h HeldOrder) Key() OrderKey {
	return OrderKey{Type: h.OrderType, ID: h.OrderID}
}

type Totals struct {
	SubtotalCents        int64 `json:"subtotal_cents"`
	LineDiscountCents    int64 `json:"line_discount_cents"`
	OverallDiscountCents int64 `json:"overall_discount_cents"`
	TotalDiscountCents   int64 `json:"total_discount_cents"`
	ServiceChargeCents   int64 `json:"service_charge_cents"`
	FinalTotalCents      int64 `json:"final_total_cents"`
	ItemCount            int   `json:"item_count"`
}

type Sale struct {
	ID                 string     `json:"id"`
	Items              []CartItem `json:"items"`
	SubtotalCents      int64      `json:"subtotal_cents"`
	DiscountCents      int64      `json:"discount_cents"`
	ServiceChargeCents int64      `json:"service_charge_cents"`
	TotalCents         int64      `json:"total_cents"`
	PaymentMethod      string     `json:"payment_method"`
	CreatedAt          time.Time  `json:"created_at"`
	Customer           *Customer  `json:"customer,omitempty"`
	OrderType          OrderType  `json:"order_type"`
	OrderID            string     `json:"order_id"`
	DeliveryRepID      string     `json:"delivery_rep_id,omitempty"`
	CashierID          string     `json:"cashier_id"`
	ShiftID            string     `json:"shift_id,omitempty"`
}

type Shift struct {
	ID                string     `json:"id"`
	CashierID         string     `json:"cashier_id"`
	OpeningFloatCents int64      `json:"opening_float_cents"`
	ClosingCashCents  int64      `json:"closing_cash_cents,omitempty"`
	ExpectedCashCents int64      `json:"expected_cash_cents,omitempty"`
	Status            string     `json:"status"`
	OpenedAt          time.Time  `json:"opened_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
}

type CashDrawerEntry struct {
	ID          string    `json:"id"`
	ShiftID     string    `json:"shift_id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
	CashierID   string    `json:"cashier_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type Expense struct {
	ID             string    `json:"id"`
	Description    string    `json:"description"`
	Category       string    `json:"category,omitempty"`
	AmountCents    int64     `json:"amount_cents"`
	PaidFromDrawer bool      `json:"paid_from_drawer"`
	ShiftID        string    `json:"shift_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type PurchaseItem struct {
	RawMaterialID string  `json:"raw_material_id"`
	Qty           float64 `json:"qty"`
	CostCents     int64   `json:"cost_cents"`
}

type Purchase struct {
	ID         string         `json:"id"`
	SupplierID string         `json:"supplier_id"`
	Items      []PurchaseItem `json:"items"`
	TotalCents int64          `json:"total_cents"`
	CreatedBy  string         `json:"created_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// User is also the auth credential record; Password holds a bcrypt hash.
type User struct {
	Username  string    `json:"username"`
	Name      string    `json:"name,omitempty"`
	Password  string    `json:"password,omitempty"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Settings struct {
	StoreName         string  `json:"store_name"`
	Currency          string  `json:"currency"`
	DeliveryFeeCents  int64   `json:"delivery_fee_cents"`
	LowStockThreshold float64 `json:"low_stock_threshold"`
}

// Backup is the import/export interchange document. Every key is required on import.
type Backup struct {
	Products          []Product         `json:"products"`
	Categories        []Category        `json:"categories"`
	Customers         []Customer        `json:"customers"`
	DeliveryReps      []DeliveryRep     `json:"deliveryReps"`
	Expenses          []Expense         `json:"expenses"`
	CashDrawerEntries []CashDrawerEntry `json:"cashDrawerEntries"`
	Purchases         []Purchase        `json:"purchases"`
	RawMaterials      []RawMaterial     `json:"rawMaterials"`
	Recipes           []Recipe          `json:"recipes"`
	Roles             []Role            `json:"roles"`
	Sales             []Sale            `json:"sales"`
	Settings          Settings          `json:"settings"`
	Shifts            []Shift           `json:"shifts"`
	Suppliers         []Supplier        `json:"suppliers"`
	Tables            []Table           `json:"tables"`
	Users             []User            `json:"users"`
}

var BackupKeys = []string{
	"products", "categories", "customers", "deliveryReps", "expenses", "cashDrawerEntries",
	"purchases", "rawMaterials", "recipes", "roles", "sales", "settings", "shifts",
	"suppliers", "tables", "users",
}

type Actor struct {
	Username string
	Role     string
}

const (
	ShiftStatusOpen   = "open"
	ShiftStatusClosed = "closed"
)

const (
	CashDrawerIn  = "in"
	CashDrawerOut = "out"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const PaymentMethodCash = "cash"
