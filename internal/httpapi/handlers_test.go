package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rasapos/backend/internal/domain"
	"rasapos/backend/internal/registry"
	"rasapos/backend/internal/service"
	"rasapos/backend/internal/split"
	"rasapos/backend/internal/store"
	"rasapos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	orders := registry.New(repo, zerolog.Nop(), registry.Options{})
	svc := service.New(repo, orders, nil, nil, zerolog.Nop(), service.Options{})
	if err := svc.LoadTables(context.Background()); err != nil {
		t.Fatalf("load tables: %v", err)
	}
	auth := NewAuthManager("test-secret-key", time.Hour, "123456", repo)

	return New(svc, auth, "*", zerolog.Nop())
}

func login(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: username, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("%s login failed: %d %s", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(v)
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "wrongpassword"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string][]domain.Product
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body["products"]) == 0 {
		t.Fatalf("expected products in response, got %v", body)
	}
}

func TestCashierCannotWriteCatalog(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", token, domain.Product{Name: "Es Jeruk", PriceCents: 8000})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/users/cashiers", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on cashier admin route, got %d", rec.Code)
	}
}

func TestDineInOrderFlow(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "cashier", "cashier123")

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders/items", token, domain.AddItemRequest{ProductID: "prd-air"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 without an active order, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/open", token, domain.OpenOrderRequest{OrderType: domain.OrderTypeDineIn, TableID: "tbl-meja-2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("open table: %d %s", rec.Code, rec.Body.String())
	}
	for _, barcode := range []string{"8990001", "8990001", "8990012"} {
		rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/items", token, domain.AddItemRequest{Barcode: barcode})
		if rec.Code != http.StatusOK {
			t.Fatalf("add %s: %d %s", barcode, rec.Code, rec.Body.String())
		}
	}

	discount := 10.0
	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/orders/items", token, domain.UpdateItemRequest{ProductID: "prd-nasgor", Discount: &discount})
	if rec.Code != http.StatusOK {
		t.Fatalf("line discount: %d %s", rec.Code, rec.Body.String())
	}

	var view registry.View
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Active == nil || view.Active.Totals.FinalTotalCents != 50000 {
		t.Fatalf("expected total 50000 after 10%% off nasi goreng, got %+v", view.Active)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/pay", token, domain.PaymentRequest{PaymentMethod: "cash"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("pay: %d %s", rec.Code, rec.Body.String())
	}
	var paid domain.PaymentResponse
	if err := json.NewDecoder(rec.Body).Decode(&paid); err != nil {
		t.Fatalf("decode payment: %v", err)
	}
	if paid.Sale.TotalCents != 50000 || paid.Sale.CashierID != "cashier" {
		t.Fatalf("unexpected sale %+v", paid.Sale)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/"+paid.SaleID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get sale: %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/sale-missing", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sale, got %d", rec.Code)
	}
}

func TestDeliveryPaymentNeedsCustomer(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "cashier", "cashier123")

	doJSON(t, handler, http.MethodPost, "/api/v1/orders/open", token, domain.OpenOrderRequest{OrderType: domain.OrderTypeDelivery})
	doJSON(t, handler, http.MethodPost, "/api/v1/orders/items", token, domain.AddItemRequest{ProductID: "prd-mie-ayam"})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders/pay", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without customer, got %d (%s)", rec.Code, rec.Body.String())
	}

	customer := "cus-budi"
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/adjust", token, domain.OrderAdjustRequest{CustomerID: &customer})
	if rec.Code != http.StatusOK {
		t.Fatalf("attach customer: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/pay", token, domain.PaymentRequest{PaymentMethod: "cash", DeliveryRepID: "rep-andi"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("pay delivery: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHoldAndRestoreOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "cashier", "cashier123")

	doJSON(t, handler, http.MethodPost, "/api/v1/orders/open", token, domain.OpenOrderRequest{OrderType: domain.OrderTypeTakeaway})
	doJSON(t, handler, http.MethodPost, "/api/v1/orders/items", token, domain.AddItemRequest{ProductID: "prd-kopi-susu"})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders/hold", token, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("hold: %d %s", rec.Code, rec.Body.String())
	}
	var held struct {
		Held domain.HeldOrder `json:"held"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&held); err != nil {
		t.Fatalf("decode hold: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/held/"+held.Held.ID+"/restore", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/held/hold-missing/restore", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown hold, got %d", rec.Code)
	}
}

func TestSplitBillOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "cashier", "cashier123")

	doJSON(t, handler, http.MethodPost, "/api/v1/orders/open", token, domain.OpenOrderRequest{OrderType: domain.OrderTypeTakeaway})
	doJSON(t, handler, http.MethodPost, "/api/v1/orders/items", token, domain.AddItemRequest{ProductID: "prd-es-teh"})
	doJSON(t, handler, http.MethodPost, "/api/v1/orders/items", token, domain.AddItemRequest{ProductID: "prd-es-teh"})

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/orders/split/move", token, domain.SplitMoveRequest{ProductID: "prd-es-teh", From: "main", To: "0"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before opening a split, got %d", rec.Code)
	}

	for _, action := range []string{"open", "add"} {
		rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/split/"+action, token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("split %s: %d %s", action, rec.Code, rec.Body.String())
		}
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/split/move", token, domain.SplitMoveRequest{ProductID: "prd-es-teh", From: "main", To: "0"})
	if rec.Code != http.StatusOK {
		t.Fatalf("split move: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/orders/split/pay", token, domain.SplitPayRequest{Bucket: "0", PaymentMethod: "qris"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("split pay: %d %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Payment domain.PaymentResponse `json:"payment"`
		Order   registry.View          `json:"order"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode split pay: %v", err)
	}
	if resp.Payment.Sale.TotalCents != 6000 {
		t.Fatalf("expected one es teh paid, got %d", resp.Payment.Sale.TotalCents)
	}
	if resp.Order.Active == nil || len(resp.Order.Active.Cart) != 1 || resp.Order.Active.Cart[0].Quantity != 1 {
		t.Fatalf("expected one es teh left on the order, got %+v", resp.Order.Active)
	}
}

func TestSalesReportCSV(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	doJSON(t, handler, http.MethodPost, "/api/v1/orders/open", token, domain.OpenOrderRequest{OrderType: domain.OrderTypeTakeaway})
	doJSON(t, handler, http.MethodPost, "/api/v1/orders/items", token, domain.AddItemRequest{ProductID: "prd-kerupuk"})
	doJSON(t, handler, http.MethodPost, "/api/v1/orders/pay", token, nil)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/reports/sales?format=csv", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: %d %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/csv") {
		t.Fatalf("expected csv content type, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "summary,net_sales_cents,3000") {
		t.Fatalf("expected net sales row, got:\n%s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/reports/sales?from=bad", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestBackupImportNeedsManagerPIN(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "admin", "admin123")

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/backup", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	exported := rec.Body.Bytes()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/backup/import", bytes.NewReader(exported))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Manager-PIN", "000000")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong pin, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/backup/import", bytes.NewReader([]byte(`{"products":[]}`)))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Manager-PIN", "123456")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for malformed backup, got %d", res.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/backup/import", bytes.NewReader(exported))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Manager-PIN", "123456")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("import: %d %s", res.Code, res.Body.String())
	}

	login(t, handler, "admin", "admin123")
}

func TestStatusForMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{registry.ErrUnknownTable, http.StatusNotFound},
		{store.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("bucket: %w", split.ErrUnknownBucket), http.StatusBadRequest},
		{registry.ErrNoActiveOrder, http.StatusConflict},
		{split.ErrTooManySplits, http.StatusConflict},
		{service.ErrShiftAlreadyOpen, http.StatusConflict},
		{registry.ErrCustomerRequired, http.StatusUnprocessableEntity},
		{service.ErrMalformedBackup, http.StatusUnprocessableEntity},
		{service.ErrForbidden, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
