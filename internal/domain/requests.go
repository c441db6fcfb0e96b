package domain

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type OpenOrderRequest struct {
	OrderType OrderType `json:"order_type"`
	TableID   string    `json:"table_id,omitempty"`
}

type AddItemRequest struct {
	ProductID string `json:"product_id,omitempty"`
	Barcode   string `json:"barcode,omitempty"`
}

type UpdateItemRequest struct {
	ProductID string   `json:"product_id"`
	Delta     int      `json:"delta,omitempty"`
	Discount  *float64 `json:"discount,omitempty"`
}

type OrderAdjustRequest struct {
	OverallDiscount    *float64 `json:"overall_discount,omitempty"`
	ServiceChargeCents *int64   `json:"service_charge_cents,omitempty"`
	CustomerID         *string  `json:"customer_id,omitempty"`
}

type ClearOrderRequest struct {
	IsPayment bool `json:"is_payment"`
}

type PaymentLine struct {
	ProductID string `json:"id"`
	Quantity  int    `json:"quantity"`
}

type PaymentRequest struct {
	Items         []PaymentLine `json:"items,omitempty"`
	PaymentMethod string        `json:"payment_method"`
	DeliveryRepID string        `json:"delivery_rep_id,omitempty"`
}

type PaymentResponse struct {
	SaleID string `json:"sale_id"`
	Sale   Sale   `json:"sale"`
}

type SplitMoveRequest struct {
	ProductID string `json:"product_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

type SplitPayRequest struct {
	Bucket        string `json:"bucket"`
	PaymentMethod string `json:"payment_method"`
	DeliveryRepID string `json:"delivery_rep_id,omitempty"`
}

type ShiftOpenRequest struct {
	OpeningFloatCents int64 `json:"opening_float_cents"`
}

type ShiftCloseRequest struct {
	ClosingCashCents int64 `json:"closing_cash_cents"`
}

type ShiftCloseResponse struct {
	Shift         Shift `json:"shift"`
	VarianceCents int64 `json:"variance_cents"`
}

type CashDrawerRequest struct {
	Type        string `json:"type"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

type ExpenseCreateRequest struct {
	Description    string `json:"description"`
	Category       string `json:"category"`
	AmountCents    int64  `json:"amount_cents"`
	PaidFromDrawer bool   `json:"paid_from_drawer"`
}

type PurchaseCreateRequest struct {
	SupplierID string         `json:"supplier_id"`
	Items      []PurchaseItem `json:"items"`
}

type SettingsUpdateRequest struct {
	StoreName         *string  `json:"store_name,omitempty"`
	Currency          *string  `json:"currency,omitempty"`
	DeliveryFeeCents  *int64   `json:"delivery_fee_cents,omitempty"`
	LowStockThreshold *float64 `json:"low_stock_threshold,omitempty"`
}

type SalesReportPayment struct {
	PaymentMethod string `json:"payment_method"`
	Sales         int64  `json:"sales"`
	TotalCents    int64  `json:"total_cents"`
}

type SalesReportOrderType struct {
	OrderType  OrderType `json:"order_type"`
	Sales      int64     `json:"sales"`
	TotalCents int64     `json:"total_cents"`
}

type SalesReportProduct struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	GrossCents int64  `json:"gross_cents"`
}

type SalesReport struct {
	From               string                 `json:"from"`
	To                 string                 `json:"to"`
	Sales              int64                  `json:"sales"`
	GrossSalesCents    int64                  `json:"gross_sales_cents"`
	DiscountCents      int64                  `json:"discount_cents"`
	ServiceChargeCents int64                  `json:"service_charge_cents"`
	NetSalesCents      int64                  `json:"net_sales_cents"`
	AverageTicketCents int64                  `json:"average_ticket_cents"`
	ExpensesCents      int64                  `json:"expenses_cents"`
	ByPayment          []SalesReportPayment   `json:"by_payment"`
	ByOrderType        []SalesReportOrderType `json:"by_order_type"`
	TopProducts        []SalesReportProduct   `json:"top_products"`
}

type LowStockItem struct {
	RawMaterial RawMaterial `json:"raw_material"`
	Threshold   float64     `json:"threshold"`
}
